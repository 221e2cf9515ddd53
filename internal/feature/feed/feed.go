// Package feed builds the swipe deck for a viewer.
//
// Requesters see active providers, boosted ones first, then by rating DESC,
// rating_count DESC, id ASC. Providers see open projects of active owners
// ordered by created_at DESC, id ASC. Anything the viewer has already
// swiped is never shown.
package feed

import (
	"context"
	"fmt"
	"iter"
	"time"

	"swipe-engine/internal/domain"
	"swipe-engine/internal/repo"
)

// Candidate carries exactly one of Profile or Project, matching Target.Kind.
type Candidate struct {
	Target  domain.Target         `json:"target"`
	Profile *domain.PublicProfile `json:"profile,omitempty"`
	Project *domain.Project       `json:"project,omitempty"`
}

type Feed struct {
	store       *repo.Store
	pageSize    int
	maxPageSize int
	now         func() time.Time
}

type Option func(*Feed)

// WithClock replaces time.Now for boost ranking.
func WithClock(now func() time.Time) Option { return func(f *Feed) { f.now = now } }

func New(store *repo.Store, pageSize, maxPageSize int, opts ...Option) *Feed {
	if pageSize <= 0 {
		pageSize = 20
	}
	if maxPageSize < pageSize {
		maxPageSize = pageSize
	}
	f := &Feed{store: store, pageSize: pageSize, maxPageSize: maxPageSize, now: time.Now}
	for _, o := range opts {
		o(f)
	}
	return f
}

func (f *Feed) clamp(limit int) int {
	if limit <= 0 {
		return f.pageSize
	}
	if limit > f.maxPageSize {
		return f.maxPageSize
	}
	return limit
}

// cursor holds the last row of a page, one field per deck kind.
type cursor struct {
	provider *repo.ProviderCursor
	project  *repo.ProjectCursor
}

func (f *Feed) viewer(ctx context.Context, userID string) (*domain.User, error) {
	viewer, err := f.store.FindUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find viewer: %w", err)
	}
	if viewer == nil {
		return nil, domain.Errorf(domain.KindUnknownEntity, "user %s not found", userID)
	}
	if !viewer.IsActive() {
		return nil, domain.Errorf(domain.KindNotAllowed, "user %s is %s", userID, viewer.Status)
	}
	if viewer.Kind != domain.KindRequester && viewer.Kind != domain.KindProvider {
		return nil, domain.Errorf(domain.KindNotAllowed, "%s accounts have no feed", viewer.Kind)
	}
	return viewer, nil
}

func (f *Feed) page(ctx context.Context, viewer *domain.User, now time.Time, after cursor, offset, limit int) ([]Candidate, cursor, error) {
	if viewer.Kind == domain.KindRequester {
		users, err := f.store.ActiveProviders(ctx, repo.ProviderQuery{
			ViewerID: viewer.ID, Now: now, After: after.provider, Offset: offset, Limit: limit,
		})
		if err != nil {
			return nil, cursor{}, fmt.Errorf("list providers: %w", err)
		}
		out := make([]Candidate, 0, len(users))
		for i := range users {
			p := users[i].Public()
			p.Featured = users[i].BoostedAt(now)
			out = append(out, Candidate{
				Target:  domain.Target{Kind: domain.TargetProfile, ID: users[i].ID},
				Profile: &p,
			})
		}
		var next cursor
		if n := len(users); n > 0 {
			next.provider = repo.ProviderCursorOf(&users[n-1], now)
		}
		return out, next, nil
	}

	ps, err := f.store.OpenProjects(ctx, repo.ProjectQuery{
		ViewerID: viewer.ID, After: after.project, Offset: offset, Limit: limit,
	})
	if err != nil {
		return nil, cursor{}, fmt.Errorf("list projects: %w", err)
	}
	out := make([]Candidate, 0, len(ps))
	for i := range ps {
		out = append(out, Candidate{
			Target:  domain.Target{Kind: domain.TargetProject, ID: ps[i].ID},
			Project: &ps[i],
		})
	}
	var next cursor
	if n := len(ps); n > 0 {
		next.project = repo.ProjectCursorOf(&ps[n-1])
	}
	return out, next, nil
}

// Next returns one page of candidates. Calling it again after swiping
// yields the updated deck.
func (f *Feed) Next(ctx context.Context, userID string, limit, offset int) ([]Candidate, error) {
	if offset < 0 {
		return nil, domain.Errorf(domain.KindInvalidArgument, "offset must not be negative")
	}
	viewer, err := f.viewer(ctx, userID)
	if err != nil {
		return nil, err
	}
	out, _, err := f.page(ctx, viewer, f.now().UTC(), cursor{}, offset, f.clamp(limit))
	return out, err
}

// All walks the whole deck page by page, resuming each page after the last
// candidate yielded, so swiping while ranging does not skip anyone. The
// sequence is finite and can be ranged over again to restart from the top.
// It stops after the first error.
func (f *Feed) All(ctx context.Context, userID string) iter.Seq2[Candidate, error] {
	return func(yield func(Candidate, error) bool) {
		now := f.now().UTC()
		var after cursor
		for {
			viewer, err := f.viewer(ctx, userID)
			if err != nil {
				yield(Candidate{}, err)
				return
			}
			page, next, err := f.page(ctx, viewer, now, after, 0, f.maxPageSize)
			if err != nil {
				yield(Candidate{}, err)
				return
			}
			for _, c := range page {
				if !yield(c, nil) {
					return
				}
			}
			if len(page) < f.maxPageSize {
				return
			}
			after = next
		}
	}
}
