package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/spigell/hh-outreach/internal/profile"
)

// Profile returns the local profile. An empty profile is returned when none
// was saved yet.
func (s *Store) Profile(ctx context.Context) (*profile.Profile, error) {
	var row profileRow
	err := s.db.WithContext(ctx).Where("id = ?", profileRowID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &profile.Profile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return &row.Data, nil
}

// SaveProfile replaces the local profile.
func (s *Store) SaveProfile(ctx context.Context, p *profile.Profile) error {
	row := profileRow{ID: profileRowID, Data: *p}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}
