package repo

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"swipe-engine/internal/domain"
)

func (s *Store) SwipeExists(ctx context.Context, actorID, targetID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.Swipe{}).
		Where("actor_id = ? AND target_id = ?", actorID, targetID).
		Count(&n).Error
	return n > 0, err
}

// CreateSwipe maps the (actor, target) unique violation to ErrDuplicateSwipe.
func (s *Store) CreateSwipe(ctx context.Context, sw *domain.Swipe) error {
	err := s.db.WithContext(ctx).Create(sw).Error
	if IsDuplicate(err) {
		return domain.Errorf(domain.KindDuplicateSwipe, "already swiped %s", sw.TargetID)
	}
	return err
}

// FindReciprocalLike returns the earliest like by actorID on anything
// owned by ownerID, or nil.
func (s *Store) FindReciprocalLike(ctx context.Context, actorID, ownerID string) (*domain.Swipe, error) {
	var sw domain.Swipe
	err := s.db.WithContext(ctx).
		Where("actor_id = ? AND target_owner_id = ? AND action = ?", actorID, ownerID, domain.ActionLike).
		Order("created_at ASC").Order("id ASC").
		First(&sw).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sw, nil
}

// LockPair touches the pair's lock row so that concurrent transactions on
// the same unordered pair are serialized until commit.
func (s *Store) LockPair(ctx context.Context, pairKey string, now time.Time) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pair_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"updated_at"}),
	}).Create(&domain.PairLock{PairKey: pairKey, UpdatedAt: now}).Error
}

type SwipeCount struct {
	Action domain.Action `json:"action"`
	Count  int64         `json:"count"`
}

func (s *Store) CountSwipes(ctx context.Context) ([]SwipeCount, error) {
	var out []SwipeCount
	err := s.db.WithContext(ctx).Model(&domain.Swipe{}).
		Select("action, COUNT(*) AS count").
		Group("action").Order("action").
		Scan(&out).Error
	return out, err
}
