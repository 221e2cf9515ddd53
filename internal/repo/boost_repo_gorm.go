package repo

import (
	"context"

	"gorm.io/gorm/clause"

	"swipe-engine/internal/domain"
)

func (s *Store) FindBoostConfig(ctx context.Context) (*domain.BoostConfig, error) {
	var c domain.BoostConfig
	err := s.db.WithContext(ctx).First(&c, "id = ?", domain.GlobalBoostConfig).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SeedBoostConfig inserts c unless an operator already saved one.
func (s *Store) SeedBoostConfig(ctx context.Context, c *domain.BoostConfig) error {
	c.ID = domain.GlobalBoostConfig
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(c).Error
}

func (s *Store) SaveBoostConfig(ctx context.Context, c *domain.BoostConfig) error {
	c.ID = domain.GlobalBoostConfig
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"cost", "duration_hours", "enabled", "updated_at"}),
	}).Create(c).Error
}
