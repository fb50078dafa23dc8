package domain

import (
	"time"
)

// RoomModel is the GORM model for the consultation_rooms table.
type RoomModel struct {
	ID         int64  `gorm:"column:room_id;primaryKey;autoIncrement"`
	UUID       string `gorm:"column:room_uuid;type:varchar(36);uniqueIndex;not null"`
	UserID     int64  `gorm:"column:user_id;index;not null"`
	VetID      int64  `gorm:"column:vet_id;index;not null"`
	PetID      *int64 `gorm:"column:pet_id"`
	ScheduleID *int64 `gorm:"column:schedule_id"`
	Status     string `gorm:"column:room_status;type:varchar(20);index;not null;default:'CREATED'"`
	Type       string `gorm:"column:consultation_type;type:varchar(20);not null;default:'CHAT'"`

	ScheduledAt     *time.Time `gorm:"column:scheduled_at"`
	StartedAt       *time.Time `gorm:"column:started_at"`
	EndedAt         *time.Time `gorm:"column:ended_at"`
	DurationMinutes int        `gorm:"column:duration_minutes;default:0"`

	Fee           int64      `gorm:"column:consultation_fee;default:0"`
	PaymentStatus string     `gorm:"column:payment_status;type:varchar(20);default:'PENDING'"`
	PaymentMethod string     `gorm:"column:payment_method;type:varchar(20)"`
	PaidAt        *time.Time `gorm:"column:paid_at"`

	ChiefComplaint string `gorm:"column:chief_complaint;type:text"`
	Notes          string `gorm:"column:consultation_notes;type:text"`
	Prescription   string `gorm:"column:prescription;type:text"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for RoomModel.
func (RoomModel) TableName() string {
	return "consultation_rooms"
}

// ToDomain converts RoomModel to a domain Room.
func (m *RoomModel) ToDomain() *Room {
	return &Room{
		ID:              m.ID,
		UUID:            m.UUID,
		UserID:          m.UserID,
		VetID:           m.VetID,
		PetID:           m.PetID,
		ScheduleID:      m.ScheduleID,
		Status:          RoomStatus(m.Status),
		Type:            ConsultationType(m.Type),
		ScheduledAt:     m.ScheduledAt,
		StartedAt:       m.StartedAt,
		EndedAt:         m.EndedAt,
		DurationMinutes: m.DurationMinutes,
		Fee:             m.Fee,
		PaymentStatus:   PaymentStatus(m.PaymentStatus),
		PaymentMethod:   m.PaymentMethod,
		PaidAt:          m.PaidAt,
		ChiefComplaint:  m.ChiefComplaint,
		Notes:           m.Notes,
		Prescription:    m.Prescription,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// RoomToModel converts a domain Room to RoomModel.
func RoomToModel(r *Room) *RoomModel {
	return &RoomModel{
		ID:              r.ID,
		UUID:            r.UUID,
		UserID:          r.UserID,
		VetID:           r.VetID,
		PetID:           r.PetID,
		ScheduleID:      r.ScheduleID,
		Status:          string(r.Status),
		Type:            string(r.Type),
		ScheduledAt:     r.ScheduledAt,
		StartedAt:       r.StartedAt,
		EndedAt:         r.EndedAt,
		DurationMinutes: r.DurationMinutes,
		Fee:             r.Fee,
		PaymentStatus:   string(r.PaymentStatus),
		PaymentMethod:   r.PaymentMethod,
		PaidAt:          r.PaidAt,
		ChiefComplaint:  r.ChiefComplaint,
		Notes:           r.Notes,
		Prescription:    r.Prescription,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// ChatMessageModel is the GORM model for the chat_messages table.
type ChatMessageModel struct {
	ID       int64  `gorm:"column:message_id;primaryKey;autoIncrement"`
	RoomID   int64  `gorm:"column:room_id;index;not null"`
	SenderID int64  `gorm:"column:sender_id;not null"`
	Role     string `gorm:"column:sender_role;type:varchar(10);not null"`
	Kind     string `gorm:"column:message_kind;type:varchar(20);not null;default:'TEXT'"`
	Content  string `gorm:"column:content;type:text"`

	FileURL      string `gorm:"column:file_url;type:varchar(500)"`
	FileName     string `gorm:"column:file_name;type:varchar(255)"`
	FileSize     int64  `gorm:"column:file_size;default:0"`
	ThumbnailURL string `gorm:"column:thumbnail_url;type:varchar(500)"`

	Read      bool       `gorm:"column:is_read;default:false"`
	ReadAt    *time.Time `gorm:"column:read_at"`
	Important bool       `gorm:"column:is_important;default:false"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for ChatMessageModel.
func (ChatMessageModel) TableName() string {
	return "chat_messages"
}

// ToDomain converts ChatMessageModel to a domain ChatMessage.
func (m *ChatMessageModel) ToDomain() *ChatMessage {
	return &ChatMessage{
		ID:           m.ID,
		RoomID:       m.RoomID,
		SenderID:     m.SenderID,
		Role:         SenderRole(m.Role),
		Kind:         MessageKind(m.Kind),
		Content:      m.Content,
		FileURL:      m.FileURL,
		FileName:     m.FileName,
		FileSize:     m.FileSize,
		ThumbnailURL: m.ThumbnailURL,
		Read:         m.Read,
		ReadAt:       m.ReadAt,
		Important:    m.Important,
		CreatedAt:    m.CreatedAt,
	}
}

// MessageToModel converts a domain ChatMessage to ChatMessageModel.
func MessageToModel(msg *ChatMessage) *ChatMessageModel {
	return &ChatMessageModel{
		ID:           msg.ID,
		RoomID:       msg.RoomID,
		SenderID:     msg.SenderID,
		Role:         string(msg.Role),
		Kind:         string(msg.Kind),
		Content:      msg.Content,
		FileURL:      msg.FileURL,
		FileName:     msg.FileName,
		FileSize:     msg.FileSize,
		ThumbnailURL: msg.ThumbnailURL,
		Read:         msg.Read,
		ReadAt:       msg.ReadAt,
		Important:    msg.Important,
		CreatedAt:    msg.CreatedAt,
	}
}
