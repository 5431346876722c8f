// Package tokens persists the access/refresh token pairs users hold for
// providers. At most one record exists per (user, provider) pair; writes
// go through an upsert so concurrent callbacks cannot create duplicates.
package tokens

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/finhub-dev/finhub/internal/db/models"
	"github.com/finhub-dev/finhub/internal/finerrors"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Get returns the token record for a (user, provider) pair.
func (s *Store) Get(ctx context.Context, userID string, providerID uint) (models.TokenRecord, error) {
	var rec models.TokenRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND provider_id = ?", userID, providerID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.TokenRecord{}, finerrors.ErrNotConnected
	}
	if err != nil {
		return models.TokenRecord{}, err
	}
	return rec, nil
}

// ListForUser returns all token records a user holds.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]models.TokenRecord, error) {
	var recs []models.TokenRecord
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// Upsert stores a token record, replacing any existing record for the
// same (user, provider) pair.
func (s *Store) Upsert(ctx context.Context, rec *models.TokenRecord) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "provider_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"access_token", "refresh_token", "updated_at",
		}),
	}).Create(rec).Error
}

// Delete removes the token record for a (user, provider) pair.
func (s *Store) Delete(ctx context.Context, userID string, providerID uint) error {
	return s.db.WithContext(ctx).
		Where("user_id = ? AND provider_id = ?", userID, providerID).
		Delete(&models.TokenRecord{}).Error
}
