package domain

import (
	"strings"
	"time"
)

// PairKey is the order-independent identity of two users.
func PairKey(a, b string) string {
	lo, hi := OrderPair(a, b)
	return lo + ":" + hi
}

func OrderPair(a, b string) (string, string) {
	if strings.Compare(a, b) > 0 {
		return b, a
	}
	return a, b
}

type Match struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	PairKey       string     `gorm:"size:80;not null;uniqueIndex" json:"-"`
	ParticipantA  string     `gorm:"size:36;not null;index" json:"participantA"`
	ParticipantB  string     `gorm:"size:36;not null;index" json:"participantB"`
	ProjectID     *string    `gorm:"size:36" json:"projectId,omitempty"`
	IsActive      bool       `gorm:"not null;default:true" json:"isActive"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func (Match) TableName() string { return "matches" }

// Other returns the participant that is not userID.
func (m *Match) Other(userID string) string {
	if m.ParticipantA == userID {
		return m.ParticipantB
	}
	return m.ParticipantA
}

// PairLock is upserted at the start of a swipe transaction; its row lock
// serializes swipes between the same two users until commit.
type PairLock struct {
	PairKey   string    `gorm:"primaryKey;size:80"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (PairLock) TableName() string { return "pair_locks" }
