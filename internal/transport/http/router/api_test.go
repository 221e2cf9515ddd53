package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"swipe-engine/internal/core/auth"
	"swipe-engine/internal/core/config"
	"swipe-engine/internal/domain"
	"swipe-engine/internal/feature/boost"
	"swipe-engine/internal/feature/catalog"
	"swipe-engine/internal/feature/credit"
	"swipe-engine/internal/feature/feed"
	"swipe-engine/internal/feature/match"
	"swipe-engine/internal/feature/notify"
	"swipe-engine/internal/feature/swipe"
	"swipe-engine/internal/repo"
	"swipe-engine/internal/testkit"
	resp "swipe-engine/internal/transport/http/response"
)

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type harness struct {
	t     *testing.T
	db    *gorm.DB
	jwt   *auth.JWTer
	api   *gin.Engine
	admin *gin.Engine
	hub   *notify.Hub
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testkit.NewDB(t)
	store := repo.NewStore(db)
	log := zap.NewNop()
	ledger := credit.NewLedger(store, log)
	hub := notify.NewHub(notify.Options{}, log)
	t.Cleanup(hub.Close)
	detector := match.NewDetector(store, log, match.WithNotifier(hub))
	cat := catalog.New(store, nil, 0, log)
	require.NoError(t, cat.Sync(t.Context(), catalog.DefaultPacks()))
	boosts := boost.New(store, ledger, config.Boost{Cost: 5, DurationHours: 24, Enabled: true}, log)
	require.NoError(t, boosts.Seed(t.Context()))

	d := Deps{
		Log:      log,
		DB:       db,
		Store:    store,
		JWT:      &auth.JWTer{Secret: []byte("test-secret"), Issuer: "swipe-engine", TTL: time.Hour},
		Limits:   config.Limits{MaxBodyBytes: 1 << 20, TimeoutSec: 5},
		Mode:     gin.TestMode,
		Credits:  config.Credits{LikeCost: 1, WelcomeCredits: 2},
		Feed:     feed.New(store, 20, 100),
		Recorder: swipe.NewRecorder(store, ledger, detector, 1, log),
		Detector: detector,
		Ledger:   ledger,
		Catalog:  cat,
		Boost:    boosts,
		Hub:      hub,
	}
	return &harness{t: t, db: db, jwt: d.JWT, api: NewAPIEngine(d), admin: NewAdminEngine(d), hub: hub}
}

func (h *harness) token(u *domain.User) string {
	h.t.Helper()
	tok, err := h.jwt.Issue(u.ID, string(u.Kind))
	require.NoError(h.t, err)
	return tok
}

func (h *harness) do(engine *gin.Engine, method, path, token string, body any) envelope {
	h.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	require.Equal(h.t, http.StatusOK, w.Code)
	var env envelope
	require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	w := httptest.NewRecorder()
	h.api.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":1}`, w.Body.String())

	w = httptest.NewRecorder()
	h.api.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "swipe_engine_http_requests_total"))
}

func TestAPI_RequiresToken(t *testing.T) {
	h := newHarness(t)
	env := h.do(h.api, http.MethodGet, "/api/v1/candidates", "", nil)
	assert.Equal(t, resp.CodeUnauthorized, env.Code)

	env = h.do(h.api, http.MethodGet, "/api/v1/candidates", "garbage", nil)
	assert.Equal(t, resp.CodeUnauthorized, env.Code)
}

func TestAPI_SwipeMatchAndPurchaseFlow(t *testing.T) {
	h := newHarness(t)
	r := testkit.User(t, h.db, domain.KindRequester)
	p := testkit.User(t, h.db, domain.KindProvider)
	testkit.Account(t, h.db, p.ID, 1)
	proj := testkit.Project(t, h.db, r.ID, time.Now())
	other := testkit.Project(t, h.db, testkit.User(t, h.db, domain.KindRequester).ID, time.Now())
	rt, pt := h.token(r), h.token(p)

	env := h.do(h.api, http.MethodGet, "/api/v1/candidates", rt, nil)
	require.Equal(t, resp.CodeOK, env.Code, env.Msg)
	cands := decode[[]feed.Candidate](t, env)
	require.Len(t, cands, 1)
	assert.Equal(t, p.ID, cands[0].Target.ID)

	env = h.do(h.api, http.MethodPost, "/api/v1/swipes", rt, gin.H{"targetId": p.ID, "action": "like"})
	require.Equal(t, resp.CodeOK, env.Code, env.Msg)
	res := decode[swipe.Result](t, env)
	assert.True(t, res.Recorded)
	assert.Empty(t, res.MatchID)

	env = h.do(h.api, http.MethodGet, "/api/v1/candidates", rt, nil)
	assert.Empty(t, decode[[]feed.Candidate](t, env))

	env = h.do(h.api, http.MethodPost, "/api/v1/swipes", pt, gin.H{"targetId": proj.ID, "action": "like"})
	require.Equal(t, resp.CodeOK, env.Code, env.Msg)
	res = decode[swipe.Result](t, env)
	assert.NotEmpty(t, res.MatchID)
	require.NotNil(t, res.Balance)
	assert.EqualValues(t, 0, *res.Balance)

	env = h.do(h.api, http.MethodGet, "/api/v1/matches", pt, nil)
	views := decode[[]match.MatchView](t, env)
	require.Len(t, views, 1)
	assert.Equal(t, r.ID, views[0].Counterpart.ID)

	env = h.do(h.api, http.MethodPost, "/api/v1/swipes", pt, gin.H{"targetId": other.ID, "action": "like"})
	assert.Equal(t, resp.CodePaymentRequired, env.Code)
	assert.Equal(t, string(domain.KindInsufficientCredits), env.Kind)

	env = h.do(h.api, http.MethodGet, "/api/v1/packs", "", nil)
	require.Equal(t, resp.CodeOK, env.Code)
	assert.Len(t, decode[[]domain.SubscriptionPack](t, env), 3)

	env = h.do(h.api, http.MethodPost, "/api/v1/purchases", pt, gin.H{"pack": "starter", "requestId": "order-1"})
	require.Equal(t, resp.CodeOK, env.Code, env.Msg)
	assert.EqualValues(t, 10, decode[credit.Account](t, env).Balance)

	env = h.do(h.api, http.MethodPost, "/api/v1/purchases", pt, gin.H{"pack": "starter", "requestId": "order-1"})
	assert.Equal(t, resp.CodeConflict, env.Code)
	assert.Equal(t, string(domain.KindPurchaseAlreadyApplied), env.Kind)

	env = h.do(h.api, http.MethodPost, "/api/v1/purchases", pt, gin.H{"pack": "gold", "requestId": "order-2"})
	assert.Equal(t, resp.CodeNotFound, env.Code)

	env = h.do(h.api, http.MethodPost, "/api/v1/swipes", pt, gin.H{"targetId": other.ID, "action": "like"})
	require.Equal(t, resp.CodeOK, env.Code, env.Msg)
	assert.EqualValues(t, 9, *decode[swipe.Result](t, env).Balance)

	env = h.do(h.api, http.MethodGet, "/api/v1/credits", pt, nil)
	acc := decode[credit.Account](t, env)
	assert.EqualValues(t, 9, acc.Balance)
	require.NotNil(t, acc.Pack)
	assert.Equal(t, "starter", *acc.Pack)

	env = h.do(h.api, http.MethodGet, "/api/v1/credits/history?limit=10", pt, nil)
	assert.Len(t, decode[[]domain.CreditEntry](t, env), 3)

	env = h.do(h.api, http.MethodGet, "/api/v1/credits", rt, nil)
	assert.Equal(t, resp.CodeForbidden, env.Code)
}

func TestAPI_SwipeErrorCodes(t *testing.T) {
	h := newHarness(t)
	r := testkit.User(t, h.db, domain.KindRequester)
	r2 := testkit.User(t, h.db, domain.KindRequester)
	p := testkit.User(t, h.db, domain.KindProvider)
	rt := h.token(r)

	cases := []struct {
		name string
		body gin.H
		code int
	}{
		{"missing target", gin.H{"action": "like"}, resp.CodeBadRequest},
		{"bad action", gin.H{"targetId": p.ID, "action": "love"}, resp.CodeBadRequest},
		{"self", gin.H{"targetId": r.ID, "action": "like"}, resp.CodeUnprocessable},
		{"ineligible", gin.H{"targetId": r2.ID, "action": "like"}, resp.CodeUnprocessable},
		{"unknown", gin.H{"targetId": "nope", "action": "like"}, resp.CodeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := h.do(h.api, http.MethodPost, "/api/v1/swipes", rt, tc.body)
			assert.Equal(t, tc.code, env.Code, env.Msg)
		})
	}

	env := h.do(h.api, http.MethodPost, "/api/v1/swipes", rt, gin.H{"targetId": p.ID, "action": "pass"})
	require.Equal(t, resp.CodeOK, env.Code)
	env = h.do(h.api, http.MethodPost, "/api/v1/swipes", rt, gin.H{"targetId": p.ID, "action": "like"})
	assert.Equal(t, resp.CodeConflict, env.Code)
	assert.Equal(t, string(domain.KindDuplicateSwipe), env.Kind)
}

func TestAPI_Projects(t *testing.T) {
	h := newHarness(t)
	r := testkit.User(t, h.db, domain.KindRequester)
	stranger := testkit.User(t, h.db, domain.KindRequester)
	p := testkit.User(t, h.db, domain.KindProvider)
	rt := h.token(r)

	env := h.do(h.api, http.MethodPost, "/api/v1/projects", rt, gin.H{"title": "  Bathroom tiles ", "status": "closed", "category": "plumbing"})
	require.Equal(t, resp.CodeOK, env.Code, env.Msg)
	proj := decode[domain.Project](t, env)
	assert.Equal(t, "Bathroom tiles", proj.Title)
	assert.Equal(t, domain.ProjectOpen, proj.Status)
	assert.Equal(t, r.ID, proj.OwnerID)

	env = h.do(h.api, http.MethodPost, "/api/v1/projects", rt, gin.H{"title": "   "})
	assert.Equal(t, resp.CodeBadRequest, env.Code)

	env = h.do(h.api, http.MethodPost, "/api/v1/projects", h.token(p), gin.H{"title": "Not mine to post"})
	assert.Equal(t, resp.CodeForbidden, env.Code)

	env = h.do(h.api, http.MethodGet, "/api/v1/projects", rt, nil)
	require.Equal(t, resp.CodeOK, env.Code)
	list := decode[struct {
		List  []domain.Project `json:"list"`
		Total int64            `json:"total"`
	}](t, env)
	assert.EqualValues(t, 1, list.Total)

	env = h.do(h.api, http.MethodGet, "/api/v1/projects/"+proj.ID, h.token(stranger), nil)
	assert.Equal(t, resp.CodeNotFound, env.Code)

	env = h.do(h.api, http.MethodPut, "/api/v1/projects/"+proj.ID, rt, gin.H{"status": "closed", "budgetRange": "1-2k"})
	require.Equal(t, resp.CodeOK, env.Code, env.Msg)
	closed := decode[domain.Project](t, env)
	assert.Equal(t, domain.ProjectClosed, closed.Status)
	assert.NotNil(t, closed.ClosedAt)
	assert.Equal(t, "1-2k", closed.BudgetRange)

	env = h.do(h.api, http.MethodPut, "/api/v1/projects/"+proj.ID, rt, gin.H{"status": "open"})
	assert.Equal(t, resp.CodeBadRequest, env.Code)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/projects/"+proj.ID, nil)
	req.Header.Set("Authorization", "Bearer "+rt)
	h.api.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
