package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/petlogue/consultation-service/internal/domain"
	"github.com/petlogue/consultation-service/pkg/log"
)

// GormRoomRepository implements RoomRepository using GORM.
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository creates a new GORM-based room repository.
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	return &GormRoomRepository{db: db}
}

// Create creates a new consultation room. The public UUID is assigned here and
// never changes afterwards.
func (r *GormRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	l := log.Ctx(ctx)

	room.UUID = uuid.New().String()

	model := domain.RoomToModel(room)
	result := r.db.WithContext(ctx).Create(model)
	if result.Error != nil {
		l.Error().Err(result.Error).Msg("failed to create consultation room in db")
		return result.Error
	}

	room.ID = model.ID
	room.CreatedAt = model.CreatedAt
	room.UpdatedAt = model.UpdatedAt
	l.Debug().Int64(log.FieldRoomID, room.ID).Str(log.FieldRoomUUID, room.UUID).Msg("consultation room created in db")
	return nil
}

// GetByID retrieves a room by its durable numeric id.
func (r *GormRoomRepository) GetByID(ctx context.Context, id int64) (*domain.Room, error) {
	var model domain.RoomModel
	result := r.db.WithContext(ctx).First(&model, "room_id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		log.Ctx(ctx).Error().Err(result.Error).Int64(log.FieldRoomID, id).Msg("failed to get room by id")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// GetByUUID retrieves a room by its public UUID.
func (r *GormRoomRepository) GetByUUID(ctx context.Context, roomUUID string) (*domain.Room, error) {
	var model domain.RoomModel
	result := r.db.WithContext(ctx).First(&model, "room_uuid = ?", roomUUID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		log.Ctx(ctx).Error().Err(result.Error).Str(log.FieldRoomUUID, roomUUID).Msg("failed to get room by uuid")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// Transition applies a guarded status change. Whichever concurrent writer
// lands first wins; the loser observes zero affected rows and gets
// domain.ErrInvalidTransition.
func (r *GormRoomRepository) Transition(ctx context.Context, roomID int64, from []domain.RoomStatus, to domain.RoomStatus, updates map[string]interface{}) (*domain.Room, error) {
	l := log.Ctx(ctx)

	values := map[string]interface{}{"room_status": string(to)}
	for k, v := range updates {
		values[k] = v
	}

	fromStrs := make([]string, len(from))
	for i, s := range from {
		fromStrs[i] = string(s)
	}

	result := r.db.WithContext(ctx).Model(&domain.RoomModel{}).
		Where("room_id = ? AND room_status IN ?", roomID, fromStrs).
		Updates(values)
	if result.Error != nil {
		l.Error().Err(result.Error).Int64(log.FieldRoomID, roomID).Msg("failed to transition room status")
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		// Either the room is gone or another transition landed first.
		current, err := r.GetByID(ctx, roomID)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: room %d is %s, expected one of %v",
			domain.ErrInvalidTransition, roomID, current.Status, from)
	}

	room, err := r.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	l.Info().Int64(log.FieldRoomID, roomID).Str("to", string(to)).Msg("room status transitioned")
	return room, nil
}

// FindPendingOlderThan returns pending rooms created before the threshold.
func (r *GormRoomRepository) FindPendingOlderThan(ctx context.Context, threshold time.Time) ([]domain.Room, error) {
	var models []domain.RoomModel
	result := r.db.WithContext(ctx).
		Where("room_status IN ? AND created_at < ?",
			[]string{string(domain.StatusCreated), string(domain.StatusWaiting)}, threshold).
		Find(&models)
	if result.Error != nil {
		log.Ctx(ctx).Error().Err(result.Error).Msg("failed to query pending rooms")
		return nil, result.Error
	}

	rooms := make([]domain.Room, len(models))
	for i, model := range models {
		rooms[i] = *model.ToDomain()
	}
	return rooms, nil
}

// ListByUser retrieves a user's consultations, newest first.
func (r *GormRoomRepository) ListByUser(ctx context.Context, userID int64, page, pageSize int, status string) ([]domain.Room, int, error) {
	return r.list(ctx, "user_id = ?", userID, page, pageSize, status)
}

// ListByVet retrieves a vet's consultations, newest first.
func (r *GormRoomRepository) ListByVet(ctx context.Context, vetID int64, page, pageSize int, status string) ([]domain.Room, int, error) {
	return r.list(ctx, "vet_id = ?", vetID, page, pageSize, status)
}

func (r *GormRoomRepository) list(ctx context.Context, cond string, id int64, page, pageSize int, status string) ([]domain.Room, int, error) {
	l := log.Ctx(ctx)

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	query := r.db.WithContext(ctx).Model(&domain.RoomModel{}).Where(cond, id)
	if status != "" {
		query = query.Where("room_status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		l.Error().Err(err).Msg("failed to count rooms")
		return nil, 0, err
	}

	var models []domain.RoomModel
	if err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&models).Error; err != nil {
		l.Error().Err(err).Msg("failed to list rooms from db")
		return nil, 0, err
	}

	rooms := make([]domain.Room, len(models))
	for i, model := range models {
		rooms[i] = *model.ToDomain()
	}
	return rooms, int(total), nil
}

// UpdateFields updates non-lifecycle columns on a room.
func (r *GormRoomRepository) UpdateFields(ctx context.Context, roomID int64, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&domain.RoomModel{}).
		Where("room_id = ?", roomID).
		Updates(updates)
	if result.Error != nil {
		log.Ctx(ctx).Error().Err(result.Error).Int64(log.FieldRoomID, roomID).Msg("failed to update room fields")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	return nil
}
