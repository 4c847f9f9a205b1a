package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/beatloom/internal/culture"
	"github.com/talgya/beatloom/internal/engine"
	"github.com/talgya/beatloom/internal/entropy"
	"github.com/talgya/beatloom/internal/llm"
	"github.com/talgya/beatloom/internal/lore"
	"github.com/talgya/beatloom/internal/motivation"
	"github.com/talgya/beatloom/internal/persistence"
	"github.com/talgya/beatloom/internal/scheduler"
	"github.com/talgya/beatloom/internal/story"
	"github.com/talgya/beatloom/internal/world"
)

const adminKey = "s3cret"

type downBackend struct{}

func (downBackend) Generate(context.Context, string, llm.Options) (string, error) {
	return "", errors.New("connection refused")
}

type fixture struct {
	srv     *Server
	handler http.Handler
	clock   *scheduler.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := persistence.Open(filepath.Join(t.TempDir(), "beatloom.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	worlds := world.NewModel(db, entropy.Fixed(1), 0)
	motives := motivation.NewModel(db, entropy.Fixed(1), 0)
	cultures := culture.NewModel(db, 0)
	provider := lore.NewProvider(lore.Sources{History: db}, lore.DefaultTTL)
	orch := engine.New(worlds, motives, cultures, provider, downBackend{}, db, engine.Config{GenerationTimeout: time.Second})

	clock := scheduler.NewFakeClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	sched := scheduler.New(ctx, db, orch, clock)
	t.Cleanup(sched.Stop)

	srv := &Server{
		Scheduler:  sched,
		Ledger:     scheduler.NewLedger(db, clock),
		DB:         db,
		World:      worlds,
		Motivation: motives,
		Culture:    cultures,
		AdminKey:   adminKey,
	}
	return &fixture{srv: srv, handler: srv.Handler(), clock: clock}
}

func (f *fixture) do(t *testing.T, method, path, body string, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if admin {
		req.Header.Set("Authorization", "Bearer "+adminKey)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (f *fixture) createGame(t *testing.T, id string, maxPlayers int) {
	t.Helper()
	body := `{"id":"` + id + `","name":"Harbor","frequency":"daily","max_players":` + strconv.Itoa(maxPlayers) + `}`
	rec := f.do(t, http.MethodPost, "/api/v1/games", body, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestAdminEndpointsRequireBearer(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/games", `{"name":"x"}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	f.srv.AdminKey = ""
	rec = f.do(t, http.MethodPost, "/api/v1/games", `{"name":"x"}`, true)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateAndListGames(t *testing.T) {
	f := newFixture(t)
	f.createGame(t, "harbor", 8)

	rec := f.do(t, http.MethodGet, "/api/v1/games", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	games := decodeBody[[]story.Game](t, rec)
	require.Len(t, games, 1)
	assert.Equal(t, "harbor", games[0].ID)
	assert.Equal(t, story.Daily, games[0].Frequency)

	rec = f.do(t, http.MethodGet, "/api/v1/games/harbor", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	sum := decodeBody[scheduler.Summary](t, rec)
	require.NotNil(t, sum.Open)
	assert.Equal(t, story.CycleScheduled, sum.Open.Status)
	assert.Equal(t, 1, sum.Open.Sequence)
}

func TestUnknownGameIsNotFound(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/api/v1/games/nowhere", "/api/v1/games/nowhere/state"} {
		rec := f.do(t, http.MethodGet, path, "", false)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestCreateGameRejectsUnknownFrequency(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/v1/games", `{"name":"x","frequency":"fortnightly"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitActionValidation(t *testing.T) {
	f := newFixture(t)
	f.createGame(t, "harbor", 8)

	rec := f.do(t, http.MethodPost, "/api/v1/games/harbor/actions", `{"actor_id":"p1","content":""}`, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/games/harbor/actions", `{"actor_id":"p1","bogus":1}`, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/games/harbor/actions", `{"actor_id":"p1","actor_name":"Mira","content":"I light the beacon"}`, false)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	a := decodeBody[story.Action](t, rec)
	assert.Equal(t, story.ActionPending, a.Status)
	assert.Equal(t, story.DefaultPriority, a.Priority)
	assert.Equal(t, "harbor", a.GameID)
}

func TestSubmitRosterFullConflicts(t *testing.T) {
	f := newFixture(t)
	f.createGame(t, "duel", 1)

	rec := f.do(t, http.MethodPost, "/api/v1/games/duel/actions", `{"actor_id":"p1","content":"draws"}`, false)
	require.Equal(t, http.StatusAccepted, rec.Code)
	rec = f.do(t, http.MethodPost, "/api/v1/games/duel/actions", `{"actor_id":"p2","content":"draws too"}`, false)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTriggerProducesNarrative(t *testing.T) {
	f := newFixture(t)
	f.createGame(t, "harbor", 8)
	for _, name := range []string{"Mira", "Tomas"} {
		rec := f.do(t, http.MethodPost, "/api/v1/games/harbor/actions",
			`{"actor_id":"p`+name+`","actor_name":"`+name+`","kind":"dialogue","content":"I speak for the harbor"}`, false)
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	rec := f.do(t, http.MethodPost, "/api/v1/games/harbor/trigger", "", true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	c := decodeBody[story.Cycle](t, rec)
	assert.Equal(t, story.CycleCompleted, c.Status)
	assert.Equal(t, 2, c.ActionsProcessed)
	assert.Contains(t, c.NarrativeText, "Mira")

	rec = f.do(t, http.MethodGet, "/api/v1/games/harbor/narratives", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	ns := decodeBody[[]engine.Narrative](t, rec)
	require.Len(t, ns, 1)
	assert.Equal(t, story.MethodTemplate, ns[0].Method)

	rec = f.do(t, http.MethodGet, "/api/v1/games/harbor/history", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]engine.TickRecord](t, rec), 1)

	rec = f.do(t, http.MethodGet, "/api/v1/games/harbor/cycles?limit=5", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	cycles := decodeBody[[]story.Cycle](t, rec)
	require.Len(t, cycles, 2)
	assert.Equal(t, story.CycleScheduled, cycles[0].Status)
	assert.Equal(t, story.CycleCompleted, cycles[1].Status)

	rec = f.do(t, http.MethodGet, "/api/v1/games/harbor/state", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"world"`)
	assert.Contains(t, rec.Body.String(), `"culture"`)
}

func TestArchiveBlocksSubmission(t *testing.T) {
	f := newFixture(t)
	f.createGame(t, "harbor", 8)

	rec := f.do(t, http.MethodPost, "/api/v1/games/harbor/archive", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/games/harbor/actions", `{"actor_id":"p1","content":"late"}`, false)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/games?status=archived", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]story.Game](t, rec), 1)
}

func TestRetryRejectsScheduledCycle(t *testing.T) {
	f := newFixture(t)
	f.createGame(t, "harbor", 8)

	rec := f.do(t, http.MethodGet, "/api/v1/games/harbor", "", false)
	sum := decodeBody[scheduler.Summary](t, rec)
	require.NotNil(t, sum.Open)

	rec = f.do(t, http.MethodPost, "/api/v1/games/harbor/cycles/"+strconv.FormatInt(sum.Open.ID, 10)+"/retry", "", true)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/games/harbor/cycles/abc/retry", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	f := newFixture(t)
	f.srv.CORSOrigins = []string{"https://loom.example"}
	f.handler = f.srv.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/games", nil)
	req.Header.Set("Origin", "https://loom.example")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://loom.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		persistence.ErrNotFound:        http.StatusNotFound,
		story.ErrInvalidAction:         http.StatusBadRequest,
		scheduler.ErrUnknownFrequency:  http.StatusBadRequest,
		scheduler.ErrRosterFull:        http.StatusConflict,
		scheduler.ErrCycleInProgress:   http.StatusConflict,
		scheduler.ErrInvalidTransition: http.StatusConflict,
		errors.New("disk on fire"):     http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(err), err.Error())
	}
}
