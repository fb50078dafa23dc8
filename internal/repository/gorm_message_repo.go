package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/petlogue/consultation-service/internal/domain"
	"github.com/petlogue/consultation-service/pkg/log"
)

// GormMessageRepository implements MessageRepository using GORM.
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GORM-based message repository.
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// Append persists a chat message and fills in the generated id and timestamp.
// Body and sender are immutable after this point.
func (r *GormMessageRepository) Append(ctx context.Context, msg *domain.ChatMessage) error {
	l := log.Ctx(ctx)

	model := domain.MessageToModel(msg)
	result := r.db.WithContext(ctx).Create(model)
	if result.Error != nil {
		l.Error().Err(result.Error).Int64(log.FieldRoomID, msg.RoomID).Msg("failed to append chat message")
		return result.Error
	}

	msg.ID = model.ID
	msg.CreatedAt = model.CreatedAt
	l.Debug().Int64("message_id", msg.ID).Int64(log.FieldRoomID, msg.RoomID).Msg("chat message appended")
	return nil
}

// GetByID retrieves a message by id.
func (r *GormMessageRepository) GetByID(ctx context.Context, id int64) (*domain.ChatMessage, error) {
	var model domain.ChatMessageModel
	result := r.db.WithContext(ctx).First(&model, "message_id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// ListByRoom retrieves a room's messages, oldest first, paginated.
func (r *GormMessageRepository) ListByRoom(ctx context.Context, roomID int64, page, pageSize int) ([]domain.ChatMessage, int, error) {
	l := log.Ctx(ctx)

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	query := r.db.WithContext(ctx).Model(&domain.ChatMessageModel{}).Where("room_id = ?", roomID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		l.Error().Err(err).Msg("failed to count messages")
		return nil, 0, err
	}

	var models []domain.ChatMessageModel
	if err := query.Order("created_at ASC").Offset(offset).Limit(pageSize).Find(&models).Error; err != nil {
		l.Error().Err(err).Msg("failed to list messages from db")
		return nil, 0, err
	}

	messages := make([]domain.ChatMessage, len(models))
	for i, model := range models {
		messages[i] = *model.ToDomain()
	}
	return messages, int(total), nil
}

// Recent retrieves the most recent messages for a room, oldest first.
func (r *GormMessageRepository) Recent(ctx context.Context, roomID int64, limit int) ([]domain.ChatMessage, error) {
	if limit < 1 {
		limit = 50
	}

	var models []domain.ChatMessageModel
	result := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models)
	if result.Error != nil {
		log.Ctx(ctx).Error().Err(result.Error).Int64(log.FieldRoomID, roomID).Msg("failed to load recent messages")
		return nil, result.Error
	}

	// Reverse into chronological order.
	messages := make([]domain.ChatMessage, len(models))
	for i := range models {
		messages[len(models)-1-i] = *models[i].ToDomain()
	}
	return messages, nil
}

// MarkRead marks every message in the room not authored by the reader as read.
func (r *GormMessageRepository) MarkRead(ctx context.Context, roomID, readerID int64) (int64, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&domain.ChatMessageModel{}).
		Where("room_id = ? AND sender_id <> ? AND is_read = ?", roomID, readerID, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": now,
		})
	if result.Error != nil {
		log.Ctx(ctx).Error().Err(result.Error).Int64(log.FieldRoomID, roomID).Msg("failed to mark messages read")
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// UnreadCount counts unread messages in the room not authored by the reader.
func (r *GormMessageRepository) UnreadCount(ctx context.Context, roomID, readerID int64) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&domain.ChatMessageModel{}).
		Where("room_id = ? AND sender_id <> ? AND is_read = ?", roomID, readerID, false).
		Count(&count)
	if result.Error != nil {
		log.Ctx(ctx).Error().Err(result.Error).Int64(log.FieldRoomID, roomID).Msg("failed to count unread messages")
		return 0, result.Error
	}
	return count, nil
}

// ToggleImportant flips the important flag on a message.
func (r *GormMessageRepository) ToggleImportant(ctx context.Context, messageID int64) error {
	result := r.db.WithContext(ctx).Model(&domain.ChatMessageModel{}).
		Where("message_id = ?", messageID).
		Update("is_important", gorm.Expr("NOT is_important"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}
