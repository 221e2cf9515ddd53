// Package boost sells providers a time-limited spot at the top of the
// requester feed. The price is a single operator-editable setting and the
// credits come out of the provider's balance even during an unlimited-likes
// subscription.
package boost

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"swipe-engine/internal/core/config"
	"swipe-engine/internal/core/metrics"
	"swipe-engine/internal/domain"
	"swipe-engine/internal/feature/credit"
	"swipe-engine/internal/repo"
)

const (
	defaultFeatured = 10
	maxFeatured     = 50
	maxHours        = 24 * 30
)

type Result struct {
	BoostedUntil time.Time `json:"boostedUntil"`
	Cost         int64     `json:"cost"`
	Balance      int64     `json:"balance"`
}

// Update carries the fields an operator wants to change; nil keeps the
// stored value.
type Update struct {
	Cost          *int64 `json:"cost"`
	DurationHours *int   `json:"durationHours"`
	Enabled       *bool  `json:"enabled"`
}

type Service struct {
	store    *repo.Store
	ledger   *credit.Ledger
	defaults domain.BoostConfig
	log      *zap.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func New(store *repo.Store, ledger *credit.Ledger, cfg config.Boost, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	d := domain.BoostConfig{ID: domain.GlobalBoostConfig, Cost: cfg.Cost, DurationHours: cfg.DurationHours, Enabled: cfg.Enabled}
	if d.Cost <= 0 {
		d.Cost = 5
	}
	if d.DurationHours <= 0 {
		d.DurationHours = 24
	}
	s := &Service{store: store, ledger: ledger, defaults: d, log: log.Named("boost"), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) clock() time.Time { return s.now().UTC() }

// Seed stores the configured defaults unless an operator already saved a
// setting.
func (s *Service) Seed(ctx context.Context) error {
	c := s.defaults
	c.UpdatedAt = s.clock()
	if err := s.store.SeedBoostConfig(ctx, &c); err != nil {
		return fmt.Errorf("seed boost config: %w", err)
	}
	return nil
}

func (s *Service) Config(ctx context.Context) (*domain.BoostConfig, error) {
	return s.config(ctx, s.store)
}

func (s *Service) config(ctx context.Context, st *repo.Store) (*domain.BoostConfig, error) {
	c, err := st.FindBoostConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("find boost config: %w", err)
	}
	if c == nil {
		d := s.defaults
		return &d, nil
	}
	return c, nil
}

func (s *Service) Configure(ctx context.Context, u Update) (*domain.BoostConfig, error) {
	if u.Cost != nil && *u.Cost <= 0 {
		return nil, domain.Errorf(domain.KindInvalidArgument, "cost must be positive")
	}
	if u.DurationHours != nil && (*u.DurationHours <= 0 || *u.DurationHours > maxHours) {
		return nil, domain.Errorf(domain.KindInvalidArgument, "durationHours must be within 1..%d", maxHours)
	}
	var out *domain.BoostConfig
	err := s.store.Transaction(ctx, func(tx *repo.Store) error {
		c, err := s.config(ctx, tx)
		if err != nil {
			return err
		}
		if u.Cost != nil {
			c.Cost = *u.Cost
		}
		if u.DurationHours != nil {
			c.DurationHours = *u.DurationHours
		}
		if u.Enabled != nil {
			c.Enabled = *u.Enabled
		}
		c.UpdatedAt = s.clock()
		if err := tx.SaveBoostConfig(ctx, c); err != nil {
			return fmt.Errorf("save boost config: %w", err)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("boost config updated",
		zap.Int64("cost", out.Cost),
		zap.Int("hours", out.DurationHours),
		zap.Bool("enabled", out.Enabled))
	return out, nil
}

// Boost charges the configured cost and pushes the provider's boost end
// forward from the later of now and the running boost.
func (s *Service) Boost(ctx context.Context, userID string) (res *Result, err error) {
	defer func() { metrics.Boosts.WithLabelValues(metrics.Result(err)).Inc() }()

	now := s.clock()
	err = s.store.Transaction(ctx, func(tx *repo.Store) error {
		u, err := tx.FindUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}
		if u == nil {
			return domain.Errorf(domain.KindUnknownEntity, "user %s not found", userID)
		}
		if u.Kind != domain.KindProvider || !u.IsActive() {
			return domain.Errorf(domain.KindNotAllowed, "only active providers can boost")
		}
		c, err := s.config(ctx, tx)
		if err != nil {
			return err
		}
		if !c.Enabled {
			return domain.Errorf(domain.KindNotAllowed, "boost is disabled")
		}

		acc, err := s.ledger.SpendWith(ctx, tx, userID, c.Cost, domain.EntryBoost, "boost:"+strconv.Itoa(c.DurationHours)+"h")
		if err != nil {
			return err
		}
		// 扣费已持有账户行锁，重读拿到并发 boost 写入的到期时间
		u, err = tx.FindUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}
		base := now
		if u.BoostedAt(now) {
			base = u.BoostedUntil.UTC()
		}
		until := base.Add(time.Duration(c.DurationHours) * time.Hour)
		if err := tx.ExtendBoost(ctx, userID, until, now); err != nil {
			return fmt.Errorf("extend boost: %w", err)
		}
		res = &Result{BoostedUntil: until, Cost: c.Cost, Balance: acc.Balance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("profile boosted",
		zap.String("user", userID),
		zap.Time("until", res.BoostedUntil),
		zap.Int64("balance", res.Balance))
	return res, nil
}

// Featured lists providers with a running boost.
func (s *Service) Featured(ctx context.Context, limit int) ([]domain.PublicProfile, error) {
	if limit <= 0 {
		limit = defaultFeatured
	}
	if limit > maxFeatured {
		limit = maxFeatured
	}
	users, err := s.store.FeaturedProviders(ctx, s.clock(), limit)
	if err != nil {
		return nil, fmt.Errorf("featured providers: %w", err)
	}
	out := make([]domain.PublicProfile, 0, len(users))
	for i := range users {
		p := users[i].Public()
		p.Featured = true
		out = append(out, p)
	}
	return out, nil
}
