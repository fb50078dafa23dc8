package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/petlogue/consultation-service/internal/domain"
	"github.com/petlogue/consultation-service/pkg/log"
)

var ErrScheduleUnavailable = errors.New("schedule slot is not available")

// ScheduleRepository books and releases vet schedule slots.
type ScheduleRepository interface {
	// Book marks a free slot as booked. Returns ErrScheduleUnavailable when
	// the slot does not exist or is already booked.
	Book(ctx context.Context, scheduleID int64) error
	// Release frees a booked slot. Releasing a free slot is a no-op.
	Release(ctx context.Context, scheduleID int64) error
}

// GormScheduleRepository implements ScheduleRepository using GORM.
type GormScheduleRepository struct {
	db *gorm.DB
}

// NewGormScheduleRepository creates a new GORM-based schedule repository.
func NewGormScheduleRepository(db *gorm.DB) *GormScheduleRepository {
	return &GormScheduleRepository{db: db}
}

// Book takes the slot with a conditional write so two consultations can
// never book the same slot.
func (r *GormScheduleRepository) Book(ctx context.Context, scheduleID int64) error {
	result := r.db.WithContext(ctx).Model(&domain.ScheduleModel{}).
		Where("schedule_id = ? AND is_booked = ?", scheduleID, false).
		Update("is_booked", true)
	if result.Error != nil {
		log.Ctx(ctx).Error().Err(result.Error).Int64("schedule_id", scheduleID).Msg("failed to book schedule slot")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrScheduleUnavailable
	}
	return nil
}

// Release frees the slot.
func (r *GormScheduleRepository) Release(ctx context.Context, scheduleID int64) error {
	result := r.db.WithContext(ctx).Model(&domain.ScheduleModel{}).
		Where("schedule_id = ?", scheduleID).
		Update("is_booked", false)
	if result.Error != nil {
		log.Ctx(ctx).Error().Err(result.Error).Int64("schedule_id", scheduleID).Msg("failed to release schedule slot")
		return result.Error
	}
	return nil
}
