// Package testkit provides an in-memory store and fixture builders for
// package tests.
package testkit

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"swipe-engine/internal/core/database"
	"swipe-engine/internal/domain"
	"swipe-engine/internal/repo"
	"swipe-engine/pkg/utils"
)

// NewDB opens a private in-memory SQLite database with the full schema.
// A single connection keeps concurrent tests serialized the way row locks
// serialize them on a server database.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func NewStore(t testing.TB) *repo.Store { return repo.NewStore(NewDB(t)) }

type UserOpt func(*domain.User)

func WithStatus(s domain.Status) UserOpt { return func(u *domain.User) { u.Status = s } }

func WithRating(r float64, n int) UserOpt {
	return func(u *domain.User) { u.Rating, u.RatingCount = r, n }
}

func WithID(id string) UserOpt { return func(u *domain.User) { u.ID = id } }

func WithBoost(until time.Time) UserOpt { return func(u *domain.User) { u.BoostedUntil = &until } }

// User inserts an active user of the given kind.
func User(t testing.TB, db *gorm.DB, kind domain.Kind, opts ...UserOpt) *domain.User {
	t.Helper()
	id := utils.NewID()
	u := &domain.User{
		ID:          id,
		Kind:        kind,
		Status:      domain.StatusActive,
		Email:       id + "@example.test",
		DisplayName: string(kind) + "-" + id[:8],
		Available:   true,
	}
	for _, o := range opts {
		o(u)
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func Project(t testing.TB, db *gorm.DB, ownerID string, created time.Time) *domain.Project {
	t.Helper()
	p := &domain.Project{
		ID:        utils.NewID(),
		OwnerID:   ownerID,
		Title:     "Kitchen renovation",
		Status:    domain.ProjectOpen,
		CreatedAt: created,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func Account(t testing.TB, db *gorm.DB, userID string, balance int64) *domain.CreditAccount {
	t.Helper()
	a := &domain.CreditAccount{UserID: userID, Balance: balance}
	require.NoError(t, db.Create(a).Error)
	return a
}

// Balance reads the stored balance, failing the test if no account exists.
func Balance(t testing.TB, db *gorm.DB, userID string) int64 {
	t.Helper()
	var a domain.CreditAccount
	require.NoError(t, db.First(&a, "user_id = ?", userID).Error)
	return a.Balance
}

func Count(t testing.TB, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}
