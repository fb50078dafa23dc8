package domain

import (
	"time"
)

// ConsultationType represents how the consultation is carried out.
type ConsultationType string

const (
	TypeChat  ConsultationType = "CHAT"
	TypeVideo ConsultationType = "VIDEO"
	TypePhone ConsultationType = "PHONE"
	TypeQNA   ConsultationType = "QNA"
)

// PaymentStatus represents payment state for a consultation.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentRefunded PaymentStatus = "REFUNDED"
	PaymentFailed   PaymentStatus = "FAILED"
)

// Room represents one consultation session between a pet owner and a vet.
// Identity is a durable numeric id plus a public UUID used in all wire
// addresses; the UUID is immutable once assigned and never reused.
type Room struct {
	ID         int64            `json:"room_id"`
	UUID       string           `json:"room_uuid"`
	UserID     int64            `json:"user_id"`
	VetID      int64            `json:"vet_id"`
	PetID      *int64           `json:"pet_id,omitempty"`
	ScheduleID *int64           `json:"schedule_id,omitempty"`
	Status     RoomStatus       `json:"status"`
	Type       ConsultationType `json:"consultation_type"`

	ScheduledAt     *time.Time `json:"scheduled_at,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`

	Fee           int64         `json:"fee"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	PaymentMethod string        `json:"payment_method,omitempty"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`

	ChiefComplaint string `json:"chief_complaint,omitempty"`
	Notes          string `json:"notes,omitempty"`
	Prescription   string `json:"prescription,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateRoomRequest represents a create consultation request.
type CreateRoomRequest struct {
	UserID         int64      `json:"user_id" binding:"required"`
	VetID          int64      `json:"vet_id" binding:"required"`
	PetID          *int64     `json:"pet_id"`
	ScheduleID     *int64     `json:"schedule_id"`
	Type           string     `json:"consultation_type"`
	ScheduledAt    *time.Time `json:"scheduled_at"`
	Fee            int64      `json:"fee"`
	ChiefComplaint string     `json:"chief_complaint"`
}

// TransitionRequest carries the optional reason for reject/cancel.
type TransitionRequest struct {
	Reason string `json:"reason"`
}

// AnswerRequest carries a vet's answer to a QNA consultation.
type AnswerRequest struct {
	Content string `json:"content" binding:"required"`
}

// UpdateNotesRequest updates free-text consultation notes.
type UpdateNotesRequest struct {
	Notes string `json:"notes" binding:"required"`
}

// UpdatePrescriptionRequest updates the prescription text.
type UpdatePrescriptionRequest struct {
	Prescription string `json:"prescription" binding:"required"`
}

// MarkPaidRequest records a completed payment.
type MarkPaidRequest struct {
	PaymentMethod string `json:"payment_method" binding:"required"`
}

// ListRoomsRequest represents a paginated room listing request.
type ListRoomsRequest struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	Status   string `form:"status"`
}

// ListRoomsResponse represents a paginated list response.
type ListRoomsResponse struct {
	Rooms      []Room `json:"rooms"`
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	TotalPages int    `json:"total_pages"`
}
