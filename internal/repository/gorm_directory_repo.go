package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/petlogue/consultation-service/internal/domain"
	"github.com/petlogue/consultation-service/pkg/log"
)

var ErrUserNotFound = errors.New("user not found")

// UserDirectory resolves user ids to the identity fields the consultation
// flow needs: login ids for addressed delivery and display names for
// notification payloads.
type UserDirectory interface {
	UserByID(ctx context.Context, userID int64) (*domain.UserProfile, error)
	PetName(ctx context.Context, petID int64) (string, error)
}

// GormUserDirectory implements UserDirectory against the shared users and
// pets tables.
type GormUserDirectory struct {
	db *gorm.DB
}

// NewGormUserDirectory creates a new GORM-based user directory.
func NewGormUserDirectory(db *gorm.DB) *GormUserDirectory {
	return &GormUserDirectory{db: db}
}

// UserByID retrieves a user's profile.
func (r *GormUserDirectory) UserByID(ctx context.Context, userID int64) (*domain.UserProfile, error) {
	var model domain.UserModel
	result := r.db.WithContext(ctx).First(&model, "user_id = ?", userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		log.Ctx(ctx).Error().Err(result.Error).Int64("user_id", userID).Msg("failed to get user by id")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// PetName retrieves a pet's display name.
func (r *GormUserDirectory) PetName(ctx context.Context, petID int64) (string, error) {
	var model domain.PetModel
	result := r.db.WithContext(ctx).First(&model, "pet_id = ?", petID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", nil
		}
		log.Ctx(ctx).Error().Err(result.Error).Int64("pet_id", petID).Msg("failed to get pet by id")
		return "", result.Error
	}
	return model.Name, nil
}
