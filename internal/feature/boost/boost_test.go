package boost

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"swipe-engine/internal/core/config"
	"swipe-engine/internal/domain"
	"swipe-engine/internal/feature/catalog"
	"swipe-engine/internal/feature/credit"
	"swipe-engine/internal/repo"
	"swipe-engine/internal/testkit"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func setup(t *testing.T, cfg config.Boost) (*gorm.DB, *Service, *fakeClock) {
	t.Helper()
	db := testkit.NewDB(t)
	store := repo.NewStore(db)
	clk := &fakeClock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	ledger := credit.NewLedger(store, nil, credit.WithClock(clk.Now))
	s := New(store, ledger, cfg, nil, WithClock(clk.Now))
	require.NoError(t, s.Seed(context.Background()))
	return db, s, clk
}

var enabled = config.Boost{Cost: 5, DurationHours: 24, Enabled: true}

func boostedUntil(t *testing.T, db *gorm.DB, id string) *time.Time {
	t.Helper()
	var u domain.User
	require.NoError(t, db.First(&u, "id = ?", id).Error)
	return u.BoostedUntil
}

func TestBoost_ChargesAndExtends(t *testing.T) {
	ctx := context.Background()
	db, s, clk := setup(t, enabled)
	p := testkit.User(t, db, domain.KindProvider)
	testkit.Account(t, db, p.ID, 12)
	start := clk.Now()

	res, err := s.Boost(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 7, res.Balance)
	assert.EqualValues(t, 5, res.Cost)
	assert.True(t, start.Add(24*time.Hour).Equal(res.BoostedUntil))

	// a second boost stacks on the running one
	clk.Advance(time.Hour)
	res, err = s.Boost(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Balance)
	assert.True(t, start.Add(48*time.Hour).Equal(res.BoostedUntil))
	got := boostedUntil(t, db, p.ID)
	require.NotNil(t, got)
	assert.WithinDuration(t, res.BoostedUntil, *got, time.Millisecond)

	_, err = s.Boost(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrInsufficientCredits)
	assert.EqualValues(t, 2, testkit.Balance(t, db, p.ID))
	assert.WithinDuration(t, start.Add(48*time.Hour), *boostedUntil(t, db, p.ID), time.Millisecond)

	var entries []domain.CreditEntry
	require.NoError(t, db.Where("user_id = ? AND entry_type = ?", p.ID, domain.EntryBoost).Find(&entries).Error)
	assert.Len(t, entries, 2)
}

func TestBoost_AfterExpiryStartsFromNow(t *testing.T) {
	ctx := context.Background()
	db, s, clk := setup(t, enabled)
	p := testkit.User(t, db, domain.KindProvider)
	testkit.Account(t, db, p.ID, 10)

	_, err := s.Boost(ctx, p.ID)
	require.NoError(t, err)
	clk.Advance(72 * time.Hour)
	res, err := s.Boost(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, clk.Now().Add(24*time.Hour).Equal(res.BoostedUntil))
}

func TestBoost_UnlimitedSubscriberStillPays(t *testing.T) {
	ctx := context.Background()
	db, s, _ := setup(t, enabled)
	store := repo.NewStore(db)
	ledger := credit.NewLedger(store, nil)
	p := testkit.User(t, db, domain.KindProvider)

	var business domain.SubscriptionPack
	for _, pk := range catalog.DefaultPacks() {
		if pk.Name == "business" {
			business = pk
		}
	}
	_, err := ledger.Grant(ctx, p.ID, &business, "biz")
	require.NoError(t, err)

	_, err = s.Boost(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrInsufficientCredits)
	assert.Nil(t, boostedUntil(t, db, p.ID))
}

func TestBoost_Rejections(t *testing.T) {
	ctx := context.Background()
	db, s, _ := setup(t, enabled)
	requester := testkit.User(t, db, domain.KindRequester)
	suspended := testkit.User(t, db, domain.KindProvider, testkit.WithStatus(domain.StatusSuspended))
	testkit.Account(t, db, suspended.ID, 50)

	_, err := s.Boost(ctx, requester.ID)
	assert.ErrorIs(t, err, domain.ErrNotAllowed)
	_, err = s.Boost(ctx, suspended.ID)
	assert.ErrorIs(t, err, domain.ErrNotAllowed)
	_, err = s.Boost(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrUnknownEntity)
	assert.EqualValues(t, 50, testkit.Balance(t, db, suspended.ID))
}

func TestBoost_Disabled(t *testing.T) {
	ctx := context.Background()
	db, s, _ := setup(t, config.Boost{Cost: 5, DurationHours: 24, Enabled: false})
	p := testkit.User(t, db, domain.KindProvider)
	testkit.Account(t, db, p.ID, 50)

	_, err := s.Boost(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrNotAllowed)

	on := true
	_, err = s.Configure(ctx, Update{Enabled: &on})
	require.NoError(t, err)
	res, err := s.Boost(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 45, res.Balance)
}

func TestConfigure(t *testing.T) {
	ctx := context.Background()
	_, s, _ := setup(t, enabled)

	c, err := s.Config(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, c.Cost)
	assert.True(t, c.Enabled)

	cost, hours := int64(9), 48
	c, err = s.Configure(ctx, Update{Cost: &cost, DurationHours: &hours})
	require.NoError(t, err)
	assert.EqualValues(t, 9, c.Cost)
	assert.Equal(t, 48, c.DurationHours)
	assert.True(t, c.Enabled)

	// reseeding keeps the operator's values
	require.NoError(t, s.Seed(ctx))
	c, err = s.Config(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 9, c.Cost)

	zero, tooLong := int64(0), maxHours+1
	_, err = s.Configure(ctx, Update{Cost: &zero})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = s.Configure(ctx, Update{DurationHours: &tooLong})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestFeatured(t *testing.T) {
	ctx := context.Background()
	db, s, clk := setup(t, enabled)
	now := clk.Now()
	later := testkit.User(t, db, domain.KindProvider, testkit.WithBoost(now.Add(3*time.Hour)))
	sooner := testkit.User(t, db, domain.KindProvider, testkit.WithBoost(now.Add(time.Hour)))
	testkit.User(t, db, domain.KindProvider, testkit.WithBoost(now.Add(-time.Hour)))
	testkit.User(t, db, domain.KindProvider, testkit.WithStatus(domain.StatusSuspended), testkit.WithBoost(now.Add(time.Hour)))
	testkit.User(t, db, domain.KindProvider)

	got, err := s.Featured(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, later.ID, got[0].ID)
	assert.Equal(t, sooner.ID, got[1].ID)
	assert.True(t, got[0].Featured)

	one, err := s.Featured(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}
