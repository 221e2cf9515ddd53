package domain

import (
	"time"

	"gorm.io/datatypes"
)

type Kind string

const (
	KindRequester Kind = "requester"
	KindProvider  Kind = "provider"
	KindAdmin     Kind = "admin"
)

func (k Kind) Valid() bool {
	switch k {
	case KindRequester, KindProvider, KindAdmin:
		return true
	}
	return false
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusSuspended:
		return true
	}
	return false
}

// User is a requester, provider or admin profile. Users are never deleted,
// only suspended.
type User struct {
	ID          string `gorm:"primaryKey;size:36" json:"id"`
	Kind        Kind   `gorm:"size:16;not null;index:idx_users_feed,priority:1" json:"kind"`
	Status      Status `gorm:"size:16;not null;default:pending;index:idx_users_feed,priority:2" json:"status"`
	Email       string `gorm:"uniqueIndex;size:191;not null" json:"email"`
	DisplayName string `gorm:"size:64" json:"displayName"`
	Location    string `gorm:"size:128" json:"location,omitempty"`
	Description string `gorm:"size:2000" json:"description,omitempty"`

	// provider only
	Profession     string                     `gorm:"size:64" json:"profession,omitempty"`
	Certifications datatypes.JSONSlice[string] `json:"certifications,omitempty"`
	Rating         float64                    `gorm:"not null;default:0" json:"rating"`
	RatingCount    int                        `gorm:"not null;default:0" json:"ratingCount"`
	HourlyRate     *float64                   `json:"hourlyRate,omitempty"`
	Available      bool                       `gorm:"not null" json:"available"`
	// BoostedUntil is the end of the paid feed boost.
	BoostedUntil *time.Time `gorm:"index" json:"boostedUntil,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (User) TableName() string { return "users" }

func (u *User) IsActive() bool { return u.Status == StatusActive }

// BoostedAt reports whether a paid boost is running at now.
func (u *User) BoostedAt(now time.Time) bool {
	return u.BoostedUntil != nil && u.BoostedUntil.After(now)
}

// PublicProfile is what the other side of a feed or match gets to see.
type PublicProfile struct {
	ID             string   `json:"id"`
	Kind           Kind     `json:"kind"`
	DisplayName    string   `json:"displayName"`
	Location       string   `json:"location,omitempty"`
	Description    string   `json:"description,omitempty"`
	Profession     string   `json:"profession,omitempty"`
	Certifications []string `json:"certifications,omitempty"`
	Rating         float64  `json:"rating,omitempty"`
	RatingCount    int      `json:"ratingCount,omitempty"`
	HourlyRate     *float64 `json:"hourlyRate,omitempty"`
	Available      bool     `json:"available"`
	Featured       bool     `json:"featured,omitempty"`
}

func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:             u.ID,
		Kind:           u.Kind,
		DisplayName:    u.DisplayName,
		Location:       u.Location,
		Description:    u.Description,
		Profession:     u.Profession,
		Certifications: []string(u.Certifications),
		Rating:         u.Rating,
		RatingCount:    u.RatingCount,
		HourlyRate:     u.HourlyRate,
		Available:      u.Available,
	}
}
