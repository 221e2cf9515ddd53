// Package catalog serves the subscription packs providers can buy.
package catalog

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"swipe-engine/internal/core/cache"
	"swipe-engine/internal/core/config"
	"swipe-engine/internal/domain"
	"swipe-engine/internal/repo"
)

const cacheKey = "catalog:packs"

type Catalog struct {
	store *repo.Store
	cache *cache.Cache // nil 表示不走缓存
	ttl   time.Duration
	log   *zap.Logger
}

func New(store *repo.Store, c *cache.Cache, ttl time.Duration, log *zap.Logger) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Catalog{store: store, cache: c, ttl: ttl, log: log.Named("catalog")}
}

// Packs returns every pack ordered for display.
func (c *Catalog) Packs(ctx context.Context) ([]domain.SubscriptionPack, error) {
	if c.cache == nil {
		return c.load(ctx)
	}
	ps, err := cache.GetOrLoadJSON(c.cache, ctx, cacheKey, c.ttl,
		func(ctx context.Context) (*[]domain.SubscriptionPack, error) {
			ps, err := c.load(ctx)
			if err != nil {
				return nil, err
			}
			return &ps, nil
		})
	if err != nil {
		return nil, err
	}
	if ps == nil {
		return []domain.SubscriptionPack{}, nil
	}
	return *ps, nil
}

func (c *Catalog) load(ctx context.Context) ([]domain.SubscriptionPack, error) {
	ps, err := c.store.ListPacks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list packs: %w", err)
	}
	return ps, nil
}

func (c *Catalog) Find(ctx context.Context, name string) (*domain.SubscriptionPack, error) {
	if name == "" {
		return nil, domain.Errorf(domain.KindInvalidArgument, "pack is required")
	}
	ps, err := c.Packs(ctx)
	if err != nil {
		return nil, err
	}
	for i := range ps {
		if ps[i].Name == name {
			return &ps[i], nil
		}
	}
	return nil, domain.Errorf(domain.KindUnknownEntity, "pack %q not found", name)
}

// Sync upserts packs and drops the cached list.
func (c *Catalog) Sync(ctx context.Context, packs []domain.SubscriptionPack) error {
	for _, p := range packs {
		if p.Name == "" || p.Credits <= 0 || p.Price < 0 || p.DurationDays <= 0 {
			return domain.Errorf(domain.KindInvalidArgument, "bad pack %q", p.Name)
		}
	}
	if err := c.store.UpsertPacks(ctx, packs); err != nil {
		return fmt.Errorf("upsert packs: %w", err)
	}
	if c.cache != nil {
		if err := c.cache.Invalidate(ctx, cacheKey); err != nil {
			c.log.Warn("invalidate cache failed", zap.Error(err))
		}
	}
	c.log.Info("catalog synced", zap.Int("packs", len(packs)))
	return nil
}

func DefaultPacks() []domain.SubscriptionPack {
	return []domain.SubscriptionPack{
		{
			Name: "starter", Title: "Starter", Price: 29, Credits: 10, DurationDays: 30,
			Features: []string{"10 likes", "Profile visibility", "Email support"},
			SortOrder: 0,
		},
		{
			Name: "business", Title: "Business", Price: 59, Credits: domain.UnlimitedCredits, DurationDays: 30,
			Features: []string{"Unlimited likes", "Featured profile", "Priority support"},
			Popular:  true, SortOrder: 1,
		},
		{
			Name: "premium", Title: "Premium", Price: 99, Credits: domain.UnlimitedCredits, DurationDays: 30,
			Features: []string{"Unlimited likes", "Top placement", "Dedicated account manager"},
			SortOrder: 2,
		},
	}
}

// FromConfig converts configured packs, falling back to DefaultPacks.
func FromConfig(cfg []config.Pack) []domain.SubscriptionPack {
	if len(cfg) == 0 {
		return DefaultPacks()
	}
	out := make([]domain.SubscriptionPack, 0, len(cfg))
	for i, p := range cfg {
		days := p.DurationDays
		if days <= 0 {
			days = 30
		}
		title := p.Title
		if title == "" {
			title = p.Name
		}
		out = append(out, domain.SubscriptionPack{
			Name:         p.Name,
			Title:        title,
			Price:        p.Price,
			Credits:      p.Credits,
			DurationDays: days,
			Features:     p.Features,
			Popular:      p.Popular,
			SortOrder:    i,
		})
	}
	return out
}
