// Package swipe records like/pass decisions, charging providers for likes
// and handing every like to the match detector in the same transaction.
package swipe

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"swipe-engine/internal/core/metrics"
	"swipe-engine/internal/domain"
	"swipe-engine/internal/feature/credit"
	"swipe-engine/internal/feature/match"
	"swipe-engine/internal/repo"
	"swipe-engine/pkg/utils"
)

type Request struct {
	TargetID   string            `json:"targetId" binding:"required"`
	TargetKind domain.TargetKind `json:"targetKind"`
	Action     domain.Action     `json:"action" binding:"required"`
}

type Result struct {
	Recorded bool   `json:"recorded"`
	MatchID  string `json:"matchId,omitempty"`
	Balance  *int64 `json:"balance,omitempty"`
}

type Recorder struct {
	store    *repo.Store
	ledger   *credit.Ledger
	detector *match.Detector
	likeCost int64
	log      *zap.Logger
}

func NewRecorder(store *repo.Store, ledger *credit.Ledger, detector *match.Detector, likeCost int64, log *zap.Logger) *Recorder {
	if likeCost <= 0 {
		likeCost = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{
		store:    store,
		ledger:   ledger,
		detector: detector,
		likeCost: likeCost,
		log:      log.Named("swipe"),
	}
}

// resolved is a validated (actor, target) combination.
type resolved struct {
	actor   *domain.User
	target  domain.Target
	ownerID string
}

func (r *Recorder) Record(ctx context.Context, actorID string, req Request) (res *Result, err error) {
	defer func() {
		action := string(req.Action)
		if !req.Action.Valid() {
			action = "invalid"
		}
		metrics.Swipes.WithLabelValues(action, metrics.Result(err)).Inc()
	}()

	if !req.Action.Valid() {
		return nil, domain.Errorf(domain.KindInvalidArgument, "unknown action %q", req.Action)
	}
	if req.TargetID == "" {
		return nil, domain.Errorf(domain.KindInvalidArgument, "target id is required")
	}
	if req.TargetKind != "" && !req.TargetKind.Valid() {
		return nil, domain.Errorf(domain.KindInvalidArgument, "unknown target kind %q", req.TargetKind)
	}

	// 事务外先解析出 owner，才能拿到 pair 锁
	pre, err := r.resolve(ctx, r.store, actorID, req)
	if err != nil {
		return nil, err
	}
	pairKey := domain.PairKey(actorID, pre.ownerID)

	res = &Result{}
	var outcome match.Outcome
	err = r.store.Transaction(ctx, func(tx *repo.Store) error {
		now := time.Now().UTC()
		if err := tx.LockPair(ctx, pairKey, now); err != nil {
			return fmt.Errorf("lock pair: %w", err)
		}
		rv, err := r.resolve(ctx, tx, actorID, req)
		if err != nil {
			return err
		}
		dup, err := tx.SwipeExists(ctx, actorID, rv.target.ID)
		if err != nil {
			return fmt.Errorf("swipe exists: %w", err)
		}
		if dup {
			return domain.Errorf(domain.KindDuplicateSwipe, "already swiped %s", rv.target.ID)
		}

		sw := &domain.Swipe{
			ID:            utils.NewID(),
			ActorID:       actorID,
			TargetKind:    rv.target.Kind,
			TargetID:      rv.target.ID,
			TargetOwnerID: rv.ownerID,
			Action:        req.Action,
			CreatedAt:     now,
		}
		if sw.Action == domain.ActionLike && rv.actor.Kind == domain.KindProvider {
			acc, err := r.ledger.DebitWith(ctx, tx, actorID, r.likeCost, "swipe:"+sw.ID)
			if err != nil {
				return err
			}
			res.Balance = &acc.Balance
		}
		if err := tx.CreateSwipe(ctx, sw); err != nil {
			return err
		}
		if sw.Action == domain.ActionLike {
			o, err := r.detector.Detect(ctx, tx, sw)
			if err != nil {
				return err
			}
			outcome = o
			if o.Match != nil {
				res.MatchID = o.Match.ID
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Recorded = true
	if outcome.Created {
		r.detector.Announce(outcome.Match)
	}
	r.log.Debug("swipe recorded",
		zap.String("actor", actorID),
		zap.String("target", req.TargetID),
		zap.String("action", string(req.Action)),
		zap.String("match", res.MatchID))
	return res, nil
}

func (r *Recorder) resolve(ctx context.Context, s *repo.Store, actorID string, req Request) (*resolved, error) {
	actor, err := s.FindUser(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("find actor: %w", err)
	}
	if actor == nil {
		return nil, domain.Errorf(domain.KindUnknownEntity, "user %s not found", actorID)
	}
	if !actor.IsActive() || (actor.Kind != domain.KindRequester && actor.Kind != domain.KindProvider) {
		return nil, domain.Errorf(domain.KindNotAllowed, "%s %s cannot swipe", actor.Status, actor.Kind)
	}

	kind := req.TargetKind
	if kind == "" {
		kind = domain.DefaultTargetKind(actor.Kind)
	}
	rv := &resolved{actor: actor, target: domain.Target{Kind: kind, ID: req.TargetID}}

	switch kind {
	case domain.TargetProfile:
		u, err := s.FindUser(ctx, req.TargetID)
		if err != nil {
			return nil, fmt.Errorf("find target user: %w", err)
		}
		if u == nil {
			return nil, domain.Errorf(domain.KindUnknownEntity, "profile %s not found", req.TargetID)
		}
		if u.ID == actorID {
			return nil, domain.ErrSelfTarget
		}
		if !u.IsActive() || u.Kind != counterpart(actor.Kind) {
			return nil, domain.Errorf(domain.KindIneligibleTarget, "profile %s is not swipeable", u.ID)
		}
		rv.ownerID = u.ID
	case domain.TargetProject:
		p, err := s.FindProject(ctx, req.TargetID)
		if err != nil {
			return nil, fmt.Errorf("find target project: %w", err)
		}
		if p == nil {
			return nil, domain.Errorf(domain.KindUnknownEntity, "project %s not found", req.TargetID)
		}
		if p.OwnerID == actorID {
			return nil, domain.ErrSelfTarget
		}
		if actor.Kind != domain.KindProvider || !p.IsOpen() {
			return nil, domain.Errorf(domain.KindIneligibleTarget, "project %s is not swipeable", p.ID)
		}
		owner, err := s.FindUser(ctx, p.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("find project owner: %w", err)
		}
		if owner == nil || !owner.IsActive() {
			return nil, domain.Errorf(domain.KindIneligibleTarget, "project %s owner is not active", p.ID)
		}
		rv.ownerID = p.OwnerID
	}
	return rv, nil
}

func counterpart(k domain.Kind) domain.Kind {
	if k == domain.KindRequester {
		return domain.KindProvider
	}
	return domain.KindRequester
}
