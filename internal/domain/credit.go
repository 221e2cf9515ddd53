package domain

import (
	"time"

	"gorm.io/datatypes"
)

// UnlimitedCredits is the catalog sentinel for packs without a credit cap.
const UnlimitedCredits int64 = 999999

type CreditAccount struct {
	UserID           string     `gorm:"primaryKey;size:36" json:"userId"`
	Balance          int64      `gorm:"not null;default:0" json:"balance"`
	SubscriptionPack *string    `gorm:"size:32" json:"pack"`
	// ExpiresAt is the validity of the latest pack; the free-like window is
	// tracked separately in UnlimitedUntil.
	ExpiresAt      *time.Time `json:"expiresAt"`
	UnlimitedUntil *time.Time `json:"unlimitedUntil"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

func (CreditAccount) TableName() string { return "credit_accounts" }

// UnlimitedAt reports whether likes are free at now. Only unlimited packs
// move UnlimitedUntil.
func (a *CreditAccount) UnlimitedAt(now time.Time) bool {
	return a.UnlimitedUntil != nil && a.UnlimitedUntil.After(now)
}

type EntryType string

const (
	EntryDebit   EntryType = "debit"
	EntryGrant   EntryType = "grant"
	EntryWelcome EntryType = "welcome"
	EntryBoost   EntryType = "boost"
)

// CreditEntry is an append-only record of every balance movement.
type CreditEntry struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	UserID       string    `gorm:"size:36;not null;index:idx_credit_entries_user,priority:1" json:"userId"`
	EntryType    EntryType `gorm:"size:16;not null" json:"entryType"`
	Amount       int64     `gorm:"not null" json:"amount"`
	BalanceAfter int64     `gorm:"not null" json:"balanceAfter"`
	Reference    string    `gorm:"size:64" json:"reference,omitempty"`
	CreatedAt    time.Time `gorm:"index:idx_credit_entries_user,priority:2" json:"createdAt"`
}

func (CreditEntry) TableName() string { return "credit_entries" }

// CreditPurchase dedups grants on (user, request id).
type CreditPurchase struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"size:36;not null;uniqueIndex:ux_purchase_request,priority:1" json:"userId"`
	RequestID string    `gorm:"size:64;not null;uniqueIndex:ux_purchase_request,priority:2" json:"requestId"`
	Pack      string    `gorm:"size:32;not null" json:"pack"`
	Credits   int64     `gorm:"not null" json:"credits"`
	Price     float64   `gorm:"not null" json:"price"`
	CreatedAt time.Time `json:"createdAt"`
}

func (CreditPurchase) TableName() string { return "credit_purchases" }

type SubscriptionPack struct {
	Name         string                     `gorm:"primaryKey;size:32" json:"pack"`
	Title        string                     `gorm:"size:64" json:"name"`
	Price        float64                    `gorm:"not null" json:"price"`
	Credits      int64                      `gorm:"not null" json:"credits"`
	DurationDays int                        `gorm:"not null" json:"durationDays"`
	Features     datatypes.JSONSlice[string] `json:"features"`
	Popular      bool                       `gorm:"not null" json:"popular"`
	SortOrder    int                        `gorm:"not null" json:"-"`
}

func (SubscriptionPack) TableName() string { return "subscription_packs" }

func (p *SubscriptionPack) Unlimited() bool { return p.Credits >= UnlimitedCredits }
