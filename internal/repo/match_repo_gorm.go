package repo

import (
	"context"

	"gorm.io/gorm/clause"

	"swipe-engine/internal/domain"
)

// CreateMatchOnce inserts m unless a match for its pair already exists and
// returns the stored match for the pair either way.
func (s *Store) CreateMatchOnce(ctx context.Context, m *domain.Match) (*domain.Match, bool, error) {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pair_key"}},
		DoNothing: true,
	}).Create(m)
	if res.Error != nil && !IsDuplicate(res.Error) {
		return nil, false, res.Error
	}
	created := res.Error == nil && res.RowsAffected > 0
	got, err := s.FindMatchByPair(ctx, m.PairKey)
	if err != nil {
		return nil, false, err
	}
	if got == nil {
		return nil, false, domain.Errorf(domain.KindUnknownEntity, "match %s vanished", m.PairKey)
	}
	return got, created, nil
}

func (s *Store) FindMatchByPair(ctx context.Context, pairKey string) (*domain.Match, error) {
	var m domain.Match
	err := s.db.WithContext(ctx).First(&m, "pair_key = ?", pairKey).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) ListMatches(ctx context.Context, userID string, offset, limit int) ([]domain.Match, error) {
	var ms []domain.Match
	q := s.db.WithContext(ctx).
		Where("participant_a = ? OR participant_b = ?", userID, userID).
		Order("created_at DESC").Order("id ASC").
		Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&ms).Error
	return ms, err
}

func (s *Store) CountMatches(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.Match{}).Count(&n).Error
	return n, err
}
