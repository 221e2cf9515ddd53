package match

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"swipe-engine/internal/domain"
	"swipe-engine/internal/feature/notify"
	"swipe-engine/internal/repo"
	"swipe-engine/internal/testkit"
	"swipe-engine/pkg/utils"
)

func like(t *testing.T, db *gorm.DB, actor string, target domain.Target, owner string) *domain.Swipe {
	t.Helper()
	sw := &domain.Swipe{
		ID:            utils.NewID(),
		ActorID:       actor,
		TargetKind:    target.Kind,
		TargetID:      target.ID,
		TargetOwnerID: owner,
		Action:        domain.ActionLike,
	}
	require.NoError(t, repo.NewStore(db).CreateSwipe(context.Background(), sw))
	return sw
}

func TestTryMatch_NoReciprocal(t *testing.T) {
	db := testkit.NewDB(t)
	store := repo.NewStore(db)
	d := NewDetector(store, nil)
	r := testkit.User(t, db, domain.KindRequester)
	p := testkit.User(t, db, domain.KindProvider)

	sw := like(t, db, r.ID, domain.Target{Kind: domain.TargetProfile, ID: p.ID}, p.ID)
	id, err := d.TryMatch(context.Background(), store, sw)
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.EqualValues(t, 0, testkit.Count(t, db, &domain.Match{}))
}

func TestTryMatch_PassNeverMatches(t *testing.T) {
	db := testkit.NewDB(t)
	store := repo.NewStore(db)
	r := testkit.User(t, db, domain.KindRequester)
	p := testkit.User(t, db, domain.KindProvider)
	like(t, db, r.ID, domain.Target{Kind: domain.TargetProfile, ID: p.ID}, p.ID)

	id, err := NewDetector(store, nil).TryMatch(context.Background(), store, &domain.Swipe{
		ActorID: p.ID, TargetKind: domain.TargetProfile, TargetID: r.ID, TargetOwnerID: r.ID, Action: domain.ActionPass,
	})
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestTryMatch_ReciprocalCreatesOnce(t *testing.T) {
	ctx := context.Background()
	db := testkit.NewDB(t)
	store := repo.NewStore(db)
	d := NewDetector(store, nil)
	r := testkit.User(t, db, domain.KindRequester)
	p := testkit.User(t, db, domain.KindProvider)
	proj := testkit.Project(t, db, r.ID, time.Now())

	like(t, db, r.ID, domain.Target{Kind: domain.TargetProfile, ID: p.ID}, p.ID)
	sw := like(t, db, p.ID, domain.Target{Kind: domain.TargetProject, ID: proj.ID}, r.ID)

	id, err := d.TryMatch(ctx, store, sw)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	again, err := d.TryMatch(ctx, store, sw)
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.EqualValues(t, 1, testkit.Count(t, db, &domain.Match{}))

	var m domain.Match
	require.NoError(t, db.First(&m, "id = ?", id).Error)
	assert.Equal(t, domain.PairKey(r.ID, p.ID), m.PairKey)
	assert.NotEqual(t, m.ParticipantA, m.ParticipantB)
	assert.True(t, m.ParticipantA < m.ParticipantB)
	require.NotNil(t, m.ProjectID)
	assert.Equal(t, proj.ID, *m.ProjectID)
	assert.True(t, m.IsActive)
}

func TestTryMatch_ConcurrentCallersConverge(t *testing.T) {
	db := testkit.NewDB(t)
	store := repo.NewStore(db)
	d := NewDetector(store, nil)
	r := testkit.User(t, db, domain.KindRequester)
	p := testkit.User(t, db, domain.KindProvider)

	a := like(t, db, r.ID, domain.Target{Kind: domain.TargetProfile, ID: p.ID}, p.ID)
	b := like(t, db, p.ID, domain.Target{Kind: domain.TargetProfile, ID: r.ID}, r.ID)

	const n = 8
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sw := a
			if i%2 == 1 {
				sw = b
			}
			err := store.Transaction(context.Background(), func(tx *repo.Store) error {
				var err error
				ids[i], err = d.TryMatch(context.Background(), tx, sw)
				return err
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Equal(t, ids[0], ids[i])
	}
	assert.EqualValues(t, 1, testkit.Count(t, db, &domain.Match{}))
}

func TestList(t *testing.T) {
	ctx := context.Background()
	db := testkit.NewDB(t)
	store := repo.NewStore(db)
	d := NewDetector(store, nil)
	r := testkit.User(t, db, domain.KindRequester)
	p := testkit.User(t, db, domain.KindProvider, testkit.WithRating(4.5, 12))

	like(t, db, r.ID, domain.Target{Kind: domain.TargetProfile, ID: p.ID}, p.ID)
	sw := like(t, db, p.ID, domain.Target{Kind: domain.TargetProfile, ID: r.ID}, r.ID)
	id, err := d.TryMatch(ctx, store, sw)
	require.NoError(t, err)

	views, err := d.List(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, id, views[0].ID)
	assert.Equal(t, p.ID, views[0].Counterpart.ID)
	assert.Equal(t, 4.5, views[0].Counterpart.Rating)
	assert.Nil(t, views[0].ProjectID)

	views, err = d.List(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, r.ID, views[0].Counterpart.ID)

	_, err = d.List(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrUnknownEntity)
}

type recorded struct {
	user string
	ev   notify.Event
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []recorded
}

func (f *fakeNotifier) Publish(userID string, ev notify.Event) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recorded{userID, ev})
	return 1
}

func TestDetect_CreatedOnlyForFirstCaller(t *testing.T) {
	ctx := context.Background()
	db := testkit.NewDB(t)
	store := repo.NewStore(db)
	d := NewDetector(store, nil)
	r := testkit.User(t, db, domain.KindRequester)
	p := testkit.User(t, db, domain.KindProvider)

	like(t, db, r.ID, domain.Target{Kind: domain.TargetProfile, ID: p.ID}, p.ID)
	sw := like(t, db, p.ID, domain.Target{Kind: domain.TargetProfile, ID: r.ID}, r.ID)

	first, err := d.Detect(ctx, store, sw)
	require.NoError(t, err)
	require.NotNil(t, first.Match)
	assert.True(t, first.Created)

	second, err := d.Detect(ctx, store, sw)
	require.NoError(t, err)
	require.NotNil(t, second.Match)
	assert.False(t, second.Created)
	assert.Equal(t, first.Match.ID, second.Match.ID)
}

func TestAnnounce_TellsBothParticipants(t *testing.T) {
	db := testkit.NewDB(t)
	n := &fakeNotifier{}
	d := NewDetector(repo.NewStore(db), nil, WithNotifier(n))
	proj := "project-1"
	m := &domain.Match{
		ID: "m1", ParticipantA: "a", ParticipantB: "b", ProjectID: &proj,
		CreatedAt: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}

	d.Announce(m)
	require.Len(t, n.events, 2)
	for i, want := range []struct{ user, other string }{{"a", "b"}, {"b", "a"}} {
		got := n.events[i]
		assert.Equal(t, want.user, got.user)
		assert.Equal(t, notify.EventMatchCreated, got.ev.Type)
		assert.Equal(t, m.CreatedAt, got.ev.At)
		assert.Equal(t, MatchEvent{MatchID: "m1", ProjectID: &proj, CounterpartID: want.other, CreatedAt: m.CreatedAt}, got.ev.Data)
	}

	// no notifier configured is a no-op
	NewDetector(repo.NewStore(db), nil).Announce(m)
}
