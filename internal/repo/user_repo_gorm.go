package repo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm/clause"

	"swipe-engine/internal/domain"
)

func (s *Store) FindUser(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := s.db.WithContext(ctx).First(&u, "email = ?", email).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	return s.db.WithContext(ctx).Create(u).Error
}

func (s *Store) UpdateUser(ctx context.Context, u *domain.User) error {
	return s.db.WithContext(ctx).Save(u).Error
}

// SetUserStatus returns false when the user does not exist.
func (s *Store) SetUserStatus(ctx context.Context, id string, st domain.Status) (bool, error) {
	res := s.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Update("status", st)
	return res.RowsAffected > 0, res.Error
}

type UserFilter struct {
	Kind   domain.Kind
	Status domain.Status
	Q      string // email / display_name 模糊搜
}

func (s *Store) ListUsers(ctx context.Context, f UserFilter, offset, limit int) ([]domain.User, int64, error) {
	q := s.db.WithContext(ctx).Model(&domain.User{})
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if v := strings.TrimSpace(f.Q); v != "" {
		like := "%" + v + "%"
		q = q.Where("email LIKE ? OR display_name LIKE ?", like, like)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []domain.User
	if err := q.Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}, Desc: true}).
		Order("id").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// ProviderCursor is the sort key of the last provider a caller has seen.
type ProviderCursor struct {
	Boosted     bool
	Rating      float64
	RatingCount int
	ID          string
}

func ProviderCursorOf(u *domain.User, now time.Time) *ProviderCursor {
	return &ProviderCursor{Boosted: u.BoostedAt(now), Rating: u.Rating, RatingCount: u.RatingCount, ID: u.ID}
}

// ProviderQuery selects a page of the requester feed. After, when set,
// switches from offset to keyset paging.
type ProviderQuery struct {
	ViewerID string
	Now      time.Time
	After    *ProviderCursor
	Offset   int
	Limit    int
}

const boostedSQL = "(users.boosted_until IS NOT NULL AND users.boosted_until > ?)"

// ActiveProviders is the requester feed: active providers the viewer has
// not swiped yet. Boosted providers come first, then best rated.
func (s *Store) ActiveProviders(ctx context.Context, q ProviderQuery) ([]domain.User, error) {
	db := s.db.WithContext(ctx).
		Where("users.kind = ? AND users.status = ? AND users.id <> ?", domain.KindProvider, domain.StatusActive, q.ViewerID).
		Where("NOT EXISTS (SELECT 1 FROM swipes s WHERE s.actor_id = ? AND s.target_id = users.id)", q.ViewerID)
	if c := q.After; c != nil {
		rest := "(users.rating < ? OR (users.rating = ? AND (users.rating_count < ? OR (users.rating_count = ? AND users.id > ?))))"
		args := []any{c.Rating, c.Rating, c.RatingCount, c.RatingCount, c.ID}
		if c.Boosted {
			db = db.Where("((NOT "+boostedSQL+") OR ("+boostedSQL+" AND "+rest+"))", append([]any{q.Now, q.Now}, args...)...)
		} else {
			db = db.Where("(NOT "+boostedSQL+" AND "+rest+")", append([]any{q.Now}, args...)...)
		}
	}
	var users []domain.User
	err := db.Clauses(clause.OrderBy{Expression: clause.Expr{
		SQL:                "CASE WHEN " + boostedSQL + " THEN 0 ELSE 1 END, users.rating DESC, users.rating_count DESC, users.id ASC",
		Vars:               []any{q.Now},
		WithoutParentheses: true,
	}}).
		Offset(q.Offset).Limit(q.Limit).
		Find(&users).Error
	return users, err
}

// FeaturedProviders lists active providers with a running boost, latest
// boost end first.
func (s *Store) FeaturedProviders(ctx context.Context, now time.Time, limit int) ([]domain.User, error) {
	var users []domain.User
	err := s.db.WithContext(ctx).
		Where("kind = ? AND status = ? AND boosted_until > ?", domain.KindProvider, domain.StatusActive, now).
		Order("boosted_until DESC").Order("id ASC").
		Limit(limit).
		Find(&users).Error
	return users, err
}

// ExtendBoost sets the boost end. Callers compute until under the account
// row lock taken by the debit.
func (s *Store) ExtendBoost(ctx context.Context, userID string, until, now time.Time) error {
	return s.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{"boosted_until": until, "updated_at": now}).Error
}

type UserCount struct {
	Kind   domain.Kind   `json:"kind"`
	Status domain.Status `json:"status"`
	Count  int64         `json:"count"`
}

func (s *Store) CountUsers(ctx context.Context) ([]UserCount, error) {
	var out []UserCount
	err := s.db.WithContext(ctx).Model(&domain.User{}).
		Select("kind, status, COUNT(*) AS count").
		Group("kind, status").Order("kind, status").
		Scan(&out).Error
	return out, err
}

func (s *Store) FindUsers(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	out := make(map[string]*domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []domain.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out, nil
}
