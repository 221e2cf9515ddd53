package database

import (
	"gorm.io/gorm"

	"swipe-engine/internal/domain"
)

// Models is every table the engine owns, in dependency order.
func Models() []any {
	return []any{
		&domain.User{},
		&domain.Project{},
		&domain.Swipe{},
		&domain.Match{},
		&domain.PairLock{},
		&domain.CreditAccount{},
		&domain.CreditEntry{},
		&domain.CreditPurchase{},
		&domain.SubscriptionPack{},
		&domain.BoostConfig{},
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
