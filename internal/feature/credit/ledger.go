// Package credit keeps provider credit balances. Every movement is a
// single conditional statement inside a transaction plus an entry in the
// append-only ledger.
package credit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"swipe-engine/internal/core/metrics"
	"swipe-engine/internal/domain"
	"swipe-engine/internal/repo"
	"swipe-engine/pkg/utils"
)

// Account is the caller-facing view of a credit account.
type Account struct {
	Balance        int64      `json:"balance"`
	Unlimited      bool       `json:"unlimited"`
	Pack           *string    `json:"pack"`
	ExpiresAt      *time.Time `json:"expiresAt"`
	UnlimitedUntil *time.Time `json:"unlimitedUntil,omitempty"`
}

type Ledger struct {
	store *repo.Store
	log   *zap.Logger
	now   func() time.Time
}

type Option func(*Ledger)

// WithClock replaces time.Now; tests use it to move across expiry.
func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.now = now } }

func NewLedger(store *repo.Store, log *zap.Logger, opts ...Option) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Ledger{store: store, log: log.Named("credit"), now: time.Now}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Ledger) clock() time.Time { return l.now().UTC() }

func (l *Ledger) view(a *domain.CreditAccount, now time.Time) *Account {
	if a == nil {
		return &Account{}
	}
	v := &Account{
		Balance:   a.Balance,
		Unlimited: a.UnlimitedAt(now),
		Pack:      a.SubscriptionPack,
		ExpiresAt: a.ExpiresAt,
	}
	if v.Unlimited {
		v.UnlimitedUntil = a.UnlimitedUntil
	}
	return v
}

func (l *Ledger) Debit(ctx context.Context, userID string, amount int64) (*Account, error) {
	var out *Account
	err := l.store.Transaction(ctx, func(tx *repo.Store) error {
		var err error
		out, err = l.DebitWith(ctx, tx, userID, amount, "")
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DebitWith debits inside the caller's transaction. An account inside its
// unlimited window is not decremented. ref is stored on the ledger entry.
func (l *Ledger) DebitWith(ctx context.Context, tx *repo.Store, userID string, amount int64, ref string) (*Account, error) {
	return l.debit(ctx, tx, userID, amount, domain.EntryDebit, ref, true)
}

// SpendWith always takes amount from the balance, unlimited or not.
func (l *Ledger) SpendWith(ctx context.Context, tx *repo.Store, userID string, amount int64, typ domain.EntryType, ref string) (*Account, error) {
	return l.debit(ctx, tx, userID, amount, typ, ref, false)
}

func (l *Ledger) debit(ctx context.Context, tx *repo.Store, userID string, amount int64, typ domain.EntryType, ref string, unlimitedOK bool) (acc *Account, err error) {
	defer func() { metrics.CreditDebits.WithLabelValues(metrics.Result(err)).Inc() }()
	if amount <= 0 {
		return nil, domain.Errorf(domain.KindInvalidArgument, "debit amount must be positive")
	}
	if err := l.requireProvider(ctx, tx, userID); err != nil {
		return nil, err
	}
	now := l.clock()

	if unlimitedOK {
		ok, err := tx.DebitUnlimited(ctx, userID, now)
		if err != nil {
			return nil, fmt.Errorf("debit unlimited: %w", err)
		}
		if ok {
			a, err := tx.FindAccount(ctx, userID)
			if err != nil {
				return nil, fmt.Errorf("find account: %w", err)
			}
			return l.view(a, now), nil
		}
	}

	ok, err := tx.DebitBalance(ctx, userID, amount, now)
	if err != nil {
		return nil, fmt.Errorf("debit balance: %w", err)
	}
	if !ok {
		return nil, domain.Errorf(domain.KindInsufficientCredits, "need %d credits", amount)
	}

	a, err := tx.FindAccount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	if err := tx.CreateEntry(ctx, &domain.CreditEntry{
		ID:           utils.NewID(),
		UserID:       userID,
		EntryType:    typ,
		Amount:       -amount,
		BalanceAfter: a.Balance,
		Reference:    ref,
		CreatedAt:    now,
	}); err != nil {
		return nil, fmt.Errorf("ledger entry: %w", err)
	}
	return l.view(a, now), nil
}

// provider loads userID and checks it can hold an account.
func (l *Ledger) provider(ctx context.Context, s *repo.Store, userID string) (*domain.User, error) {
	u, err := s.FindUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if u == nil {
		return nil, domain.Errorf(domain.KindUnknownEntity, "user %s not found", userID)
	}
	if u.Kind != domain.KindProvider {
		return nil, domain.Errorf(domain.KindNotAllowed, "only providers hold credits")
	}
	return u, nil
}

// requireProvider additionally requires an active account; pending and
// suspended providers can neither read nor move credits.
func (l *Ledger) requireProvider(ctx context.Context, s *repo.Store, userID string) error {
	u, err := l.provider(ctx, s, userID)
	if err != nil {
		return err
	}
	if !u.IsActive() {
		return domain.Errorf(domain.KindNotAllowed, "provider %s is %s", userID, u.Status)
	}
	return nil
}

// Grant applies a purchased pack once per (user, requestID).
func (l *Ledger) Grant(ctx context.Context, userID string, pack *domain.SubscriptionPack, requestID string) (*Account, error) {
	if pack == nil {
		return nil, domain.Errorf(domain.KindInvalidArgument, "pack is required")
	}
	if requestID == "" {
		return nil, domain.Errorf(domain.KindInvalidArgument, "request id is required")
	}
	now := l.clock()
	var out *Account
	err := l.store.Transaction(ctx, func(tx *repo.Store) error {
		if err := l.requireProvider(ctx, tx, userID); err != nil {
			return err
		}
		if err := tx.CreatePurchase(ctx, &domain.CreditPurchase{
			ID:        utils.NewID(),
			UserID:    userID,
			RequestID: requestID,
			Pack:      pack.Name,
			Credits:   pack.Credits,
			Price:     pack.Price,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		if _, err := tx.EnsureAccount(ctx, userID, now); err != nil {
			return fmt.Errorf("ensure account: %w", err)
		}

		var credits int64
		if !pack.Unlimited() {
			credits = pack.Credits
		}
		// 先加余额拿到行锁，再读出当前到期时间
		if err := tx.AddBalance(ctx, userID, credits, now); err != nil {
			return fmt.Errorf("add balance: %w", err)
		}
		a, err := tx.FindAccount(ctx, userID)
		if err != nil {
			return fmt.Errorf("find account: %w", err)
		}

		expires := extend(now, a.ExpiresAt, pack.DurationDays)
		var unlimitedUntil *time.Time
		if pack.Unlimited() {
			u := extend(now, a.UnlimitedUntil, pack.DurationDays)
			unlimitedUntil = &u
		}
		if err := tx.SetSubscription(ctx, userID, pack.Name, expires, unlimitedUntil, now); err != nil {
			return fmt.Errorf("set subscription: %w", err)
		}
		if err := tx.CreateEntry(ctx, &domain.CreditEntry{
			ID:           utils.NewID(),
			UserID:       userID,
			EntryType:    domain.EntryGrant,
			Amount:       credits,
			BalanceAfter: a.Balance,
			Reference:    pack.Name + ":" + requestID,
			CreatedAt:    now,
		}); err != nil {
			return fmt.Errorf("ledger entry: %w", err)
		}

		name := pack.Name
		a.SubscriptionPack, a.ExpiresAt = &name, &expires
		if unlimitedUntil != nil {
			a.UnlimitedUntil = unlimitedUntil
		}
		out = l.view(a, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.CreditGrants.WithLabelValues(pack.Name).Inc()
	l.log.Info("pack granted",
		zap.String("user", userID),
		zap.String("pack", pack.Name),
		zap.String("request", requestID),
		zap.Int64("balance", out.Balance))
	return out, nil
}

// extend adds days to the later of now and the current end.
func extend(now time.Time, end *time.Time, days int) time.Time {
	base := now
	if end != nil && end.After(now) {
		base = end.UTC()
	}
	return base.AddDate(0, 0, days)
}

// Balance is a pure read; a provider without an account has zero credits.
func (l *Ledger) Balance(ctx context.Context, userID string) (*Account, error) {
	if err := l.requireProvider(ctx, l.store, userID); err != nil {
		return nil, err
	}
	a, err := l.store.FindAccount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	return l.view(a, l.clock()), nil
}

// Open creates the provider's account, crediting welcome the first time.
// Imported providers are usually still pending, so status is not checked.
func (l *Ledger) Open(ctx context.Context, userID string, welcome int64) error {
	now := l.clock()
	return l.store.Transaction(ctx, func(tx *repo.Store) error {
		if _, err := l.provider(ctx, tx, userID); err != nil {
			return err
		}
		created, err := tx.EnsureAccount(ctx, userID, now)
		if err != nil {
			return fmt.Errorf("ensure account: %w", err)
		}
		if !created || welcome <= 0 {
			return nil
		}
		if err := tx.AddBalance(ctx, userID, welcome, now); err != nil {
			return fmt.Errorf("add balance: %w", err)
		}
		return tx.CreateEntry(ctx, &domain.CreditEntry{
			ID:           utils.NewID(),
			UserID:       userID,
			EntryType:    domain.EntryWelcome,
			Amount:       welcome,
			BalanceAfter: welcome,
			CreatedAt:    now,
		})
	})
}

const (
	defaultHistory = 50
	maxHistory     = 200
)

// History lists ledger entries, newest first.
func (l *Ledger) History(ctx context.Context, userID string, limit int) ([]domain.CreditEntry, error) {
	if err := l.requireProvider(ctx, l.store, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistory
	}
	if limit > maxHistory {
		limit = maxHistory
	}
	es, err := l.store.ListEntries(ctx, userID, 0, limit)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return es, nil
}
