package domain

import "time"

// SenderRole identifies who authored a chat message.
type SenderRole string

const (
	SenderUser   SenderRole = "USER"
	SenderVet    SenderRole = "VET"
	SenderSystem SenderRole = "SYSTEM"
)

// MessageKind identifies the payload carried by a chat message.
type MessageKind string

const (
	KindText   MessageKind = "TEXT"
	KindImage  MessageKind = "IMAGE"
	KindFile   MessageKind = "FILE"
	KindSystem MessageKind = "SYSTEM"
	KindNotice MessageKind = "NOTICE"
)

// ChatMessage belongs to exactly one room. Body and sender are immutable once
// persisted; only the read and important flags mutate afterwards.
type ChatMessage struct {
	ID       int64       `json:"message_id"`
	RoomID   int64       `json:"room_id"`
	SenderID int64       `json:"sender_id"`
	Role     SenderRole  `json:"sender_role"`
	Kind     MessageKind `json:"message_kind"`
	Content  string      `json:"content"`

	// Attachment reference; file storage itself is an external collaborator.
	FileURL      string `json:"file_url,omitempty"`
	FileName     string `json:"file_name,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`

	Read      bool       `json:"read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	Important bool       `json:"important"`

	CreatedAt time.Time `json:"created_at"`

	// Denormalized sender display name, attached at read/echo time from the
	// connection principal. Not stored.
	SenderName string `json:"sender_name,omitempty" gorm:"-"`
}

// RoleForUserRole maps an auth role to the chat sender role.
func RoleForUserRole(role string) SenderRole {
	if role == "vet" {
		return SenderVet
	}
	return SenderUser
}

// ListMessagesRequest represents a paginated message listing request.
type ListMessagesRequest struct {
	Page     int `form:"page"`
	PageSize int `form:"page_size"`
}
