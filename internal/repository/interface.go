package repository

import (
	"context"
	"errors"
	"time"

	"github.com/petlogue/consultation-service/internal/domain"
)

var (
	ErrRoomNotFound    = errors.New("consultation room not found")
	ErrMessageNotFound = errors.New("chat message not found")
)

// RoomRepository is the persistence collaborator for consultation rooms.
// Rooms are never deleted, only moved to a terminal state.
type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	GetByID(ctx context.Context, id int64) (*domain.Room, error)
	GetByUUID(ctx context.Context, uuid string) (*domain.Room, error)

	// Transition performs the single conditional write that guards every
	// lifecycle edge: the row is updated only if its current status is one of
	// the expected pre-states. If the room exists but the guard fails,
	// domain.ErrInvalidTransition is returned and nothing is mutated.
	Transition(ctx context.Context, roomID int64, from []domain.RoomStatus, to domain.RoomStatus, updates map[string]interface{}) (*domain.Room, error)

	// FindPendingOlderThan returns rooms still in a pending state whose
	// persisted creation timestamp is older than the threshold. A defensive
	// pre-filter for the reconciler, not the authoritative cutoff.
	FindPendingOlderThan(ctx context.Context, threshold time.Time) ([]domain.Room, error)

	ListByUser(ctx context.Context, userID int64, page, pageSize int, status string) ([]domain.Room, int, error)
	ListByVet(ctx context.Context, vetID int64, page, pageSize int, status string) ([]domain.Room, int, error)

	// UpdateFields updates non-lifecycle columns (notes, prescription,
	// payment fields). Never touches room_status.
	UpdateFields(ctx context.Context, roomID int64, updates map[string]interface{}) error
}

// MessageRepository is the persistence collaborator for chat messages.
type MessageRepository interface {
	Append(ctx context.Context, msg *domain.ChatMessage) error
	GetByID(ctx context.Context, id int64) (*domain.ChatMessage, error)
	ListByRoom(ctx context.Context, roomID int64, page, pageSize int) ([]domain.ChatMessage, int, error)
	Recent(ctx context.Context, roomID int64, limit int) ([]domain.ChatMessage, error)

	// MarkRead marks all messages in the room not authored by the reader as
	// read. Returns the number of messages updated.
	MarkRead(ctx context.Context, roomID, readerID int64) (int64, error)
	UnreadCount(ctx context.Context, roomID, readerID int64) (int64, error)
	ToggleImportant(ctx context.Context, messageID int64) error
}
