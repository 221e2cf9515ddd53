package credit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"swipe-engine/internal/domain"
	"swipe-engine/internal/feature/catalog"
	"swipe-engine/internal/repo"
	"swipe-engine/internal/testkit"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func setup(t *testing.T, opts ...Option) (*gorm.DB, *Ledger) {
	t.Helper()
	db := testkit.NewDB(t)
	return db, NewLedger(repo.NewStore(db), nil, opts...)
}

func pack(name string) *domain.SubscriptionPack {
	for _, p := range catalog.DefaultPacks() {
		if p.Name == name {
			return &p
		}
	}
	panic("no pack " + name)
}

func TestDebit_ConcurrentAgainstSingleCredit(t *testing.T) {
	db, l := setup(t)
	p := testkit.User(t, db, domain.KindProvider)
	testkit.Account(t, db, p.ID, 1)

	const n = 10
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		ok, rejected int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Debit(context.Background(), p.ID, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case assert.ErrorIs(t, err, domain.ErrInsufficientCredits):
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, rejected)
	assert.EqualValues(t, 0, testkit.Balance(t, db, p.ID))
	assert.EqualValues(t, 1, testkit.Count(t, db, &domain.CreditEntry{}))
}

func TestDebit_WritesLedgerEntry(t *testing.T) {
	db, l := setup(t)
	p := testkit.User(t, db, domain.KindProvider)
	testkit.Account(t, db, p.ID, 5)

	acc, err := l.Debit(context.Background(), p.ID, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, acc.Balance)

	es, err := l.History(context.Background(), p.ID, 0)
	require.NoError(t, err)
	require.Len(t, es, 1)
	assert.Equal(t, domain.EntryDebit, es[0].EntryType)
	assert.EqualValues(t, -2, es[0].Amount)
	assert.EqualValues(t, 3, es[0].BalanceAfter)
}

func TestDebit_Rejections(t *testing.T) {
	ctx := context.Background()
	db, l := setup(t)
	provider := testkit.User(t, db, domain.KindProvider)
	requester := testkit.User(t, db, domain.KindRequester)

	_, err := l.Debit(ctx, provider.ID, 1)
	assert.ErrorIs(t, err, domain.ErrInsufficientCredits, "no account reads as zero")

	_, err = l.Debit(ctx, requester.ID, 1)
	assert.ErrorIs(t, err, domain.ErrNotAllowed)

	_, err = l.Debit(ctx, "missing", 1)
	assert.ErrorIs(t, err, domain.ErrUnknownEntity)

	_, err = l.Debit(ctx, provider.ID, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestGrant_RepeatedRequestIsNotApplied(t *testing.T) {
	ctx := context.Background()
	db, l := setup(t)
	p := testkit.User(t, db, domain.KindProvider)

	acc, err := l.Grant(ctx, p.ID, pack("starter"), "req-1")
	require.NoError(t, err)
	assert.EqualValues(t, 10, acc.Balance)
	require.NotNil(t, acc.Pack)
	assert.Equal(t, "starter", *acc.Pack)

	_, err = l.Grant(ctx, p.ID, pack("starter"), "req-1")
	assert.ErrorIs(t, err, domain.ErrPurchaseAlreadyApplied)

	assert.EqualValues(t, 10, testkit.Balance(t, db, p.ID))
	assert.EqualValues(t, 1, testkit.Count(t, db, &domain.CreditPurchase{}))
}

func TestGrant_ExtendsFromLaterOfNowAndExpiry(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	db, l := setup(t, WithClock(clk.Now))
	p := testkit.User(t, db, domain.KindProvider)
	start := clk.Now()

	_, err := l.Grant(ctx, p.ID, pack("starter"), "a")
	require.NoError(t, err)

	clk.Advance(24 * time.Hour)
	acc, err := l.Grant(ctx, p.ID, pack("starter"), "b")
	require.NoError(t, err)
	assert.EqualValues(t, 20, acc.Balance)
	require.NotNil(t, acc.ExpiresAt)
	assert.WithinDuration(t, start.AddDate(0, 0, 60), *acc.ExpiresAt, time.Second)

	clk.Advance(90 * 24 * time.Hour)
	acc, err = l.Grant(ctx, p.ID, pack("starter"), "c")
	require.NoError(t, err)
	assert.WithinDuration(t, clk.Now().AddDate(0, 0, 30), *acc.ExpiresAt, time.Second)
}

func TestGrant_UnlimitedUntilExpiry(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	db, l := setup(t, WithClock(clk.Now))
	p := testkit.User(t, db, domain.KindProvider)

	acc, err := l.Grant(ctx, p.ID, pack("business"), "biz")
	require.NoError(t, err)
	assert.True(t, acc.Unlimited)
	assert.EqualValues(t, 0, acc.Balance)

	for i := 0; i < 5; i++ {
		acc, err = l.Debit(ctx, p.ID, 1)
		require.NoError(t, err)
		assert.True(t, acc.Unlimited)
	}
	assert.EqualValues(t, 0, testkit.Balance(t, db, p.ID))

	clk.Advance(31 * 24 * time.Hour)
	_, err = l.Debit(ctx, p.ID, 1)
	assert.ErrorIs(t, err, domain.ErrInsufficientCredits)

	acc, err = l.Balance(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, acc.Unlimited)
}

func TestGrant_Validation(t *testing.T) {
	ctx := context.Background()
	db, l := setup(t)
	requester := testkit.User(t, db, domain.KindRequester)
	provider := testkit.User(t, db, domain.KindProvider)

	_, err := l.Grant(ctx, requester.ID, pack("starter"), "x")
	assert.ErrorIs(t, err, domain.ErrNotAllowed)

	_, err = l.Grant(ctx, provider.ID, pack("starter"), "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = l.Grant(ctx, provider.ID, nil, "x")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.EqualValues(t, 0, testkit.Count(t, db, &domain.CreditPurchase{}))
}

func TestBalance(t *testing.T) {
	ctx := context.Background()
	db, l := setup(t)
	p := testkit.User(t, db, domain.KindProvider)

	acc, err := l.Balance(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, acc.Balance)
	assert.Nil(t, acc.Pack)

	r := testkit.User(t, db, domain.KindRequester)
	_, err = l.Balance(ctx, r.ID)
	assert.ErrorIs(t, err, domain.ErrNotAllowed)
}

func TestOpen_WelcomeCreditedOnce(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	db, l := setup(t, WithClock(clk.Now))
	p := testkit.User(t, db, domain.KindProvider)

	require.NoError(t, l.Open(ctx, p.ID, 3))
	require.NoError(t, l.Open(ctx, p.ID, 3))
	assert.EqualValues(t, 3, testkit.Balance(t, db, p.ID))

	clk.Advance(time.Minute)
	_, err := l.Debit(ctx, p.ID, 1)
	require.NoError(t, err)

	es, err := l.History(ctx, p.ID, 10)
	require.NoError(t, err)
	require.Len(t, es, 2)
	assert.Equal(t, domain.EntryDebit, es[0].EntryType)
	assert.Equal(t, domain.EntryWelcome, es[1].EntryType)
}

func TestGrant_CreditPackDoesNotExtendUnlimited(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	db, l := setup(t, WithClock(clk.Now))
	p := testkit.User(t, db, domain.KindProvider)
	start := clk.Now()

	_, err := l.Grant(ctx, p.ID, pack("business"), "biz")
	require.NoError(t, err)

	clk.Advance(20 * 24 * time.Hour)
	acc, err := l.Grant(ctx, p.ID, pack("starter"), "top-up")
	require.NoError(t, err)
	assert.True(t, acc.Unlimited)
	assert.EqualValues(t, 10, acc.Balance)
	require.NotNil(t, acc.UnlimitedUntil)
	assert.WithinDuration(t, start.AddDate(0, 0, 30), *acc.UnlimitedUntil, time.Second)
	require.NotNil(t, acc.ExpiresAt)
	assert.WithinDuration(t, start.AddDate(0, 0, 60), *acc.ExpiresAt, time.Second)

	// still free inside the business window
	_, err = l.Debit(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 10, testkit.Balance(t, db, p.ID))

	// business ended, starter credits are now spent
	clk.Advance(11 * 24 * time.Hour)
	acc, err = l.Debit(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.False(t, acc.Unlimited)
	assert.Nil(t, acc.UnlimitedUntil)
	assert.EqualValues(t, 9, acc.Balance)
}

func TestGrant_UnlimitedPacksStack(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	db, l := setup(t, WithClock(clk.Now))
	p := testkit.User(t, db, domain.KindProvider)
	start := clk.Now()

	_, err := l.Grant(ctx, p.ID, pack("business"), "a")
	require.NoError(t, err)
	clk.Advance(24 * time.Hour)
	acc, err := l.Grant(ctx, p.ID, pack("premium"), "b")
	require.NoError(t, err)
	require.NotNil(t, acc.UnlimitedUntil)
	assert.WithinDuration(t, start.AddDate(0, 0, 60), *acc.UnlimitedUntil, time.Second)
}

func TestInactiveProviderCannotUseCredits(t *testing.T) {
	ctx := context.Background()
	db, l := setup(t)

	for _, st := range []domain.Status{domain.StatusPending, domain.StatusSuspended} {
		t.Run(string(st), func(t *testing.T) {
			p := testkit.User(t, db, domain.KindProvider, testkit.WithStatus(st))
			require.NoError(t, l.Open(ctx, p.ID, 3), "import opens accounts for any status")

			_, err := l.Grant(ctx, p.ID, pack("starter"), "req-"+p.ID)
			assert.ErrorIs(t, err, domain.ErrNotAllowed)
			_, err = l.Balance(ctx, p.ID)
			assert.ErrorIs(t, err, domain.ErrNotAllowed)
			_, err = l.History(ctx, p.ID, 0)
			assert.ErrorIs(t, err, domain.ErrNotAllowed)
			_, err = l.Debit(ctx, p.ID, 1)
			assert.ErrorIs(t, err, domain.ErrNotAllowed)

			assert.EqualValues(t, 3, testkit.Balance(t, db, p.ID))
		})
	}
	assert.EqualValues(t, 0, testkit.Count(t, db, &domain.CreditPurchase{}))
}

func TestSpendWith_IgnoresUnlimited(t *testing.T) {
	ctx := context.Background()
	db, l := setup(t)
	p := testkit.User(t, db, domain.KindProvider)
	store := repo.NewStore(db)

	_, err := l.Grant(ctx, p.ID, pack("business"), "biz")
	require.NoError(t, err)
	_, err = l.Grant(ctx, p.ID, pack("starter"), "top-up")
	require.NoError(t, err)

	var acc *Account
	require.NoError(t, store.Transaction(ctx, func(tx *repo.Store) error {
		acc, err = l.SpendWith(ctx, tx, p.ID, 4, domain.EntryBoost, "boost")
		return err
	}))
	assert.EqualValues(t, 6, acc.Balance)

	err = store.Transaction(ctx, func(tx *repo.Store) error {
		_, err := l.SpendWith(ctx, tx, p.ID, 7, domain.EntryBoost, "boost")
		return err
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientCredits)

	es, err := l.History(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.EntryBoost, es[0].EntryType)
}
