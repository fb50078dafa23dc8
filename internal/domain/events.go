package domain

import "time"

// Notification event types.
const (
	EventNewConsultation   = "NEW_CONSULTATION"
	EventStatusChange      = "STATUS_CHANGE"
	EventUserJoined        = "USER_JOINED"
	EventUserLeft          = "USER_LEFT"
	EventConsultationEnded = "CONSULTATION_ENDED"
)

// Notification is the payload delivered by the notification router, either to
// one addressed user or broadcast on a topic.
type Notification struct {
	Type     string `json:"type"`
	RoomID   int64  `json:"room_id,omitempty"`
	RoomUUID string `json:"room_uuid,omitempty"`

	// Actor fields.
	UserID   int64  `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	PetName  string `json:"pet_name,omitempty"`

	ChiefComplaint   string `json:"chief_complaint,omitempty"`
	ConsultationType string `json:"consultation_type,omitempty"`

	Status          string    `json:"status,omitempty"`
	Message         string    `json:"message,omitempty"`
	DurationMinutes int       `json:"duration_minutes,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// NewStatusChangeNotification builds the notification broadcast on a room's
// status topic whenever a lifecycle transition is accepted.
func NewStatusChangeNotification(room *Room, status RoomStatus, message string) *Notification {
	return &Notification{
		Type:      EventStatusChange,
		RoomID:    room.ID,
		RoomUUID:  room.UUID,
		Status:    string(status),
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewConsultationNotification builds the alert sent to the assigned vet (or
// broadcast fleet-wide when no vet is assigned) on room creation.
func NewConsultationNotification(room *Room, username, petName string) *Notification {
	return &Notification{
		Type:             EventNewConsultation,
		RoomID:           room.ID,
		RoomUUID:         room.UUID,
		UserID:           room.UserID,
		Username:         username,
		PetName:          petName,
		ChiefComplaint:   room.ChiefComplaint,
		ConsultationType: string(room.Type),
		Timestamp:        room.CreatedAt,
	}
}
