// Package match turns reciprocal likes into matches.
package match

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"swipe-engine/internal/core/metrics"
	"swipe-engine/internal/domain"
	"swipe-engine/internal/feature/notify"
	"swipe-engine/internal/repo"
	"swipe-engine/pkg/utils"
)

// Notifier delivers events to a user's open connections.
type Notifier interface {
	Publish(userID string, ev notify.Event) int
}

type Detector struct {
	store    *repo.Store
	log      *zap.Logger
	now      func() time.Time
	notifier Notifier
}

type Option func(*Detector)

func WithNotifier(n Notifier) Option { return func(d *Detector) { d.notifier = n } }

func NewDetector(store *repo.Store, log *zap.Logger, opts ...Option) *Detector {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Detector{store: store, log: log.Named("match"), now: time.Now}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Outcome is what a like did to its pair. Created is true only for the
// caller that inserted the match.
type Outcome struct {
	Match   *domain.Match
	Created bool
}

// TryMatch is Detect reduced to the match id, "" when there is none.
func (d *Detector) TryMatch(ctx context.Context, tx *repo.Store, sw *domain.Swipe) (string, error) {
	o, err := d.Detect(ctx, tx, sw)
	if err != nil || o.Match == nil {
		return "", err
	}
	return o.Match.ID, nil
}

// Detect must run in the transaction that recorded sw. It finds the pair's
// match when the counterpart already liked something owned by sw's actor.
// Concurrent callers for the same pair all get the same match.
func (d *Detector) Detect(ctx context.Context, tx *repo.Store, sw *domain.Swipe) (Outcome, error) {
	if sw.Action != domain.ActionLike {
		return Outcome{}, nil
	}
	rec, err := tx.FindReciprocalLike(ctx, sw.TargetOwnerID, sw.ActorID)
	if err != nil {
		return Outcome{}, fmt.Errorf("find reciprocal like: %w", err)
	}
	if rec == nil {
		return Outcome{}, nil
	}

	a, b := domain.OrderPair(sw.ActorID, sw.TargetOwnerID)
	m := &domain.Match{
		ID:           utils.NewID(),
		PairKey:      domain.PairKey(a, b),
		ParticipantA: a,
		ParticipantB: b,
		ProjectID:    projectOf(sw, rec),
		IsActive:     true,
		CreatedAt:    d.now().UTC(),
	}
	got, created, err := tx.CreateMatchOnce(ctx, m)
	if err != nil {
		return Outcome{}, fmt.Errorf("create match: %w", err)
	}
	if created {
		metrics.MatchesCreated.Inc()
		d.log.Info("match created",
			zap.String("match", got.ID),
			zap.String("a", got.ParticipantA),
			zap.String("b", got.ParticipantB))
	}
	return Outcome{Match: got, Created: created}, nil
}

// Announce tells both participants about m. Call it after the transaction
// that created m has committed.
func (d *Detector) Announce(m *domain.Match) {
	if d.notifier == nil || m == nil {
		return
	}
	for _, uid := range []string{m.ParticipantA, m.ParticipantB} {
		n := d.notifier.Publish(uid, notify.Event{
			Type: notify.EventMatchCreated,
			At:   m.CreatedAt,
			Data: MatchEvent{
				MatchID:       m.ID,
				ProjectID:     m.ProjectID,
				CounterpartID: m.Other(uid),
				CreatedAt:     m.CreatedAt,
			},
		})
		d.log.Debug("match announced", zap.String("match", m.ID), zap.String("user", uid), zap.Int("conns", n))
	}
}

// MatchEvent is the payload of a match.created event.
type MatchEvent struct {
	MatchID       string    `json:"matchId"`
	ProjectID     *string   `json:"projectId,omitempty"`
	CounterpartID string    `json:"counterpartId"`
	CreatedAt     time.Time `json:"createdAt"`
}

// projectOf picks the project through which the pair connected, if any.
func projectOf(swipes ...*domain.Swipe) *string {
	for _, s := range swipes {
		if s.TargetKind == domain.TargetProject {
			id := s.TargetID
			return &id
		}
	}
	return nil
}

type MatchView struct {
	ID            string               `json:"id"`
	ProjectID     *string              `json:"projectId,omitempty"`
	IsActive      bool                 `json:"isActive"`
	LastMessageAt *time.Time           `json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time            `json:"createdAt"`
	Counterpart   domain.PublicProfile `json:"counterpart"`
}

// List returns userID's matches, newest first.
func (d *Detector) List(ctx context.Context, userID string) ([]MatchView, error) {
	u, err := d.store.FindUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if u == nil {
		return nil, domain.Errorf(domain.KindUnknownEntity, "user %s not found", userID)
	}
	ms, err := d.store.ListMatches(ctx, userID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	ids := make([]string, 0, len(ms))
	for i := range ms {
		ids = append(ids, ms[i].Other(userID))
	}
	users, err := d.store.FindUsers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("find counterparts: %w", err)
	}

	out := make([]MatchView, 0, len(ms))
	for i := range ms {
		m := &ms[i]
		v := MatchView{
			ID:            m.ID,
			ProjectID:     m.ProjectID,
			IsActive:      m.IsActive,
			LastMessageAt: m.LastMessageAt,
			CreatedAt:     m.CreatedAt,
		}
		if other := users[m.Other(userID)]; other != nil {
			v.Counterpart = other.Public()
		}
		out = append(out, v)
	}
	return out, nil
}
