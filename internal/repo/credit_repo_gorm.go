package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"swipe-engine/internal/domain"
)

func (s *Store) FindAccount(ctx context.Context, userID string) (*domain.CreditAccount, error) {
	var a domain.CreditAccount
	err := s.db.WithContext(ctx).First(&a, "user_id = ?", userID).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// EnsureAccount creates a zero account for userID if none exists and
// reports whether it did.
func (s *Store) EnsureAccount(ctx context.Context, userID string, now time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&domain.CreditAccount{UserID: userID, UpdatedAt: now})
	return res.RowsAffected > 0, res.Error
}

// DebitUnlimited succeeds without decrement when the account is inside an
// unlimited window.
func (s *Store) DebitUnlimited(ctx context.Context, userID string, now time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&domain.CreditAccount{}).
		Where("user_id = ? AND unlimited_until > ?", userID, now).
		Update("updated_at", now)
	return res.RowsAffected > 0, res.Error
}

// DebitBalance is the conditional decrement; false means the balance was
// below amount and nothing changed.
func (s *Store) DebitBalance(ctx context.Context, userID string, amount int64, now time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&domain.CreditAccount{}).
		Where("user_id = ? AND balance >= ?", userID, amount).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance - ?", amount),
			"updated_at": now,
		})
	return res.RowsAffected > 0, res.Error
}

// AddBalance increments the balance atomically. It also takes the row
// lock for the remainder of the transaction.
func (s *Store) AddBalance(ctx context.Context, userID string, amount int64, now time.Time) error {
	return s.db.WithContext(ctx).Model(&domain.CreditAccount{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance + ?", amount),
			"updated_at": now,
		}).Error
}

// SetSubscription records the latest pack and its validity window. A nil
// unlimitedUntil leaves the free-like window untouched.
func (s *Store) SetSubscription(ctx context.Context, userID, pack string, expiresAt time.Time, unlimitedUntil *time.Time, now time.Time) error {
	fields := map[string]any{
		"subscription_pack": pack,
		"expires_at":        expiresAt,
		"updated_at":        now,
	}
	if unlimitedUntil != nil {
		fields["unlimited_until"] = *unlimitedUntil
	}
	return s.db.WithContext(ctx).Model(&domain.CreditAccount{}).
		Where("user_id = ?", userID).
		Updates(fields).Error
}

func (s *Store) CreateEntry(ctx context.Context, e *domain.CreditEntry) error {
	return s.db.WithContext(ctx).Create(e).Error
}

func (s *Store) ListEntries(ctx context.Context, userID string, offset, limit int) ([]domain.CreditEntry, error) {
	var es []domain.CreditEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&es).Error
	return es, err
}

// CreatePurchase maps a repeated (user, request) to ErrPurchaseAlreadyApplied.
func (s *Store) CreatePurchase(ctx context.Context, p *domain.CreditPurchase) error {
	err := s.db.WithContext(ctx).Create(p).Error
	if IsDuplicate(err) {
		return domain.Errorf(domain.KindPurchaseAlreadyApplied, "request %s already applied", p.RequestID)
	}
	return err
}

func (s *Store) CountPurchases(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.CreditPurchase{}).Count(&n).Error
	return n, err
}

func (s *Store) ListPacks(ctx context.Context) ([]domain.SubscriptionPack, error) {
	var ps []domain.SubscriptionPack
	err := s.db.WithContext(ctx).Order("sort_order ASC").Order("name ASC").Find(&ps).Error
	return ps, err
}

func (s *Store) UpsertPacks(ctx context.Context, packs []domain.SubscriptionPack) error {
	if len(packs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		UpdateAll: true,
	}).Create(&packs).Error
}
