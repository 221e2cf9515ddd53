package domain

import "time"

type Action string

const (
	ActionLike Action = "like"
	ActionPass Action = "pass"
)

func (a Action) Valid() bool { return a == ActionLike || a == ActionPass }

type TargetKind string

const (
	TargetProfile TargetKind = "profile"
	TargetProject TargetKind = "project"
)

func (k TargetKind) Valid() bool { return k == TargetProfile || k == TargetProject }

// Target is the tagged swipe subject: a user profile or a project.
type Target struct {
	Kind TargetKind `json:"kind"`
	ID   string     `json:"id"`
}

// DefaultTargetKind is what an actor of the given kind swipes on when the
// caller does not say.
func DefaultTargetKind(actor Kind) TargetKind {
	if actor == KindProvider {
		return TargetProject
	}
	return TargetProfile
}

// Swipe is an immutable decision of one actor about one target.
// TargetOwnerID is the user behind the target (the profile itself, or the
// project owner); reciprocity is checked on it.
type Swipe struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	ActorID       string     `gorm:"size:36;not null;uniqueIndex:ux_swipes_actor_target,priority:1;index:idx_swipes_reciprocal,priority:1" json:"actorId"`
	TargetKind    TargetKind `gorm:"size:16;not null" json:"targetKind"`
	TargetID      string     `gorm:"size:36;not null;uniqueIndex:ux_swipes_actor_target,priority:2" json:"targetId"`
	TargetOwnerID string     `gorm:"size:36;not null;index:idx_swipes_reciprocal,priority:2" json:"targetOwnerId"`
	Action        Action     `gorm:"size:8;not null" json:"action"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func (Swipe) TableName() string { return "swipes" }

func (s *Swipe) Target() Target { return Target{Kind: s.TargetKind, ID: s.TargetID} }
