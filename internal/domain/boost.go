package domain

import "time"

// GlobalBoostConfig is the id of the single platform-wide boost setting.
const GlobalBoostConfig = "global"

// BoostConfig prices the paid feed boost. Operators change it at runtime.
type BoostConfig struct {
	ID            string    `gorm:"primaryKey;size:32" json:"-"`
	Cost          int64     `gorm:"not null" json:"cost"`
	DurationHours int       `gorm:"not null" json:"durationHours"`
	Enabled       bool      `gorm:"not null" json:"enabled"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (BoostConfig) TableName() string { return "boost_configs" }
