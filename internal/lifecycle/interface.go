package lifecycle

import (
	"context"
	"errors"

	"github.com/petlogue/consultation-service/internal/domain"
)

var (
	// ErrNotAnswerable is returned when Answer is attempted on a room that is
	// not a QNA consultation.
	ErrNotAnswerable = errors.New("room is not a QNA consultation")
	// ErrUnknownType is returned for an unrecognized consultation type on
	// creation.
	ErrUnknownType = errors.New("unknown consultation type")
)

// Engine drives every consultation lifecycle transition. All state changes go
// through it; handlers and the timeout reconciler never touch the repository
// directly.
type Engine interface {
	Create(ctx context.Context, req *domain.CreateRoomRequest) (*domain.Room, error)

	Approve(ctx context.Context, roomID int64) (*domain.Room, error)
	Start(ctx context.Context, roomID int64) (*domain.Room, error)
	Reject(ctx context.Context, roomID int64, reason string) (*domain.Room, error)
	Cancel(ctx context.Context, roomID int64, reason string) (*domain.Room, error)
	End(ctx context.Context, roomID int64) (*domain.Room, error)
	TimeOut(ctx context.Context, roomID int64) error
	Answer(ctx context.Context, roomID, vetID int64, content string) (*domain.Room, error)

	UpdateNotes(ctx context.Context, roomID int64, notes string) error
	UpdatePrescription(ctx context.Context, roomID int64, prescription string) error
	MarkPaid(ctx context.Context, roomID int64, method string) error
}

// Notifier is the slice of the notification router the engine uses.
type Notifier interface {
	NotifyNewConsultation(ctx context.Context, n *domain.Notification, vetLoginID string)
	BroadcastStatusChange(ctx context.Context, room *domain.Room, status domain.RoomStatus, message string)
	BroadcastConsultationEnded(ctx context.Context, room *domain.Room)
}

// TimeoutRegistry is the slice of the in-memory timeout registry the engine
// uses: register on entering a pending state, unregister on leaving it.
type TimeoutRegistry interface {
	Register(roomID int64)
	Unregister(roomID int64)
}
