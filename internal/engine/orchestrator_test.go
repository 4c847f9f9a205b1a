package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/beatloom/internal/culture"
	"github.com/talgya/beatloom/internal/entropy"
	"github.com/talgya/beatloom/internal/llm"
	"github.com/talgya/beatloom/internal/lore"
	"github.com/talgya/beatloom/internal/motivation"
	"github.com/talgya/beatloom/internal/statestore"
	"github.com/talgya/beatloom/internal/story"
	"github.com/talgya/beatloom/internal/world"
)

const game = "g1"

type backendFunc func(ctx context.Context, prompt string, opts llm.Options) (string, error)

func (f backendFunc) Generate(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	return f(ctx, prompt, opts)
}

type memStore struct {
	mu         sync.Mutex
	narratives []Narrative
	records    []TickRecord
}

func (s *memStore) SaveNarrative(_ context.Context, n Narrative) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.narratives = append(s.narratives, n)
	return nil
}

func (s *memStore) AppendTickRecord(_ context.Context, rec TickRecord, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	if len(s.records) > keep {
		s.records = s.records[len(s.records)-keep:]
	}
	return nil
}

type fixture struct {
	states *statestore.Memory
	world  *world.Model
	motiv  *motivation.Model
	cult   *culture.Model
	store  *memStore
}

func newFixture() *fixture {
	states := statestore.NewMemory()
	return &fixture{
		states: states,
		world:  world.NewModel(states, entropy.Fixed(0.99), 0),
		motiv:  motivation.NewModel(states, entropy.Fixed(0.99), 0),
		cult:   culture.NewModel(states, 0),
		store:  &memStore{},
	}
}

func (f *fixture) orchestrator(backend llm.Backend, cfg Config) *Orchestrator {
	o := New(f.world, f.motiv, f.cult, nil, backend, f.store, cfg)
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	o.SetClock(func() time.Time { return at })
	return o
}

func dialogue(id int64, actor, name, content string, submitted time.Time) story.Action {
	return story.Action{
		ID:          id,
		GameID:      game,
		ActorID:     actor,
		ActorName:   name,
		Kind:        story.KindDialogue,
		Content:     content,
		Priority:    story.DefaultPriority,
		Status:      story.ActionPending,
		SubmittedAt: submitted,
	}
}

func threeActions() []story.Action {
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	return []story.Action{
		dialogue(1, "p1", "Mira", "We should rebuild the mill", base),
		dialogue(2, "p2", "Tomas", "The river will carry our grain", base.Add(time.Minute)),
		dialogue(3, "p3", "Ilse", "I will teach the children", base.Add(2*time.Minute)),
	}
}

// seedProsperousCreators stores a world at economic health 0.8 and a
// catalog where Create holds 0.6 of the weight.
func (f *fixture) seedProsperousCreators(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	w := world.Default()
	w.EconomicHealth = 0.8
	require.NoError(t, f.world.Save(ctx, game, w))

	m := motivation.State{Entities: []motivation.Entity{
		motivation.NewEntity("maker", "The Maker", motivation.Character, motivation.Create, motivation.Positive, motivation.Growth),
		motivation.NewEntity("crossroads", "The Crossroads", motivation.Location, motivation.Connect, motivation.Neutral, motivation.Unity),
	}}
	m.Entities[0].Influence = 0.75
	require.NoError(t, f.motiv.Save(ctx, game, m))

	got := f.motiv.GetState(ctx, game)
	require.Equal(t, motivation.Create, got.Dominant.Imperative)
	require.InDelta(t, 0.6, got.Dominant.Strength, 1e-9)
}

func TestRunTickFallsBackWhenBackendFails(t *testing.T) {
	f := newFixture()
	f.seedProsperousCreators(t)
	ctx := context.Background()
	before := f.cult.GetState(ctx, game)

	failing := backendFunc(func(context.Context, string, llm.Options) (string, error) {
		return "", errors.New("backend down")
	})
	cycle := int64(7)
	res, err := f.orchestrator(failing, Config{}).RunTick(ctx, TickRequest{
		GameID:  game,
		CycleID: &cycle,
		Actions: threeActions(),
		Dt:      1,
	})
	require.NoError(t, err)

	n := res.Narrative
	assert.Equal(t, story.MethodTemplate, n.Method)
	for _, name := range []string{"Mira", "Tomas", "Ilse"} {
		assert.Contains(t, n.Content, name)
	}
	assert.Equal(t, []int64{1, 2, 3}, n.ActionIDs)
	assert.Equal(t, &cycle, n.CycleID)
	assert.NotEmpty(t, n.ID)

	after := f.cult.GetState(ctx, game)
	assert.Greater(t, after.VAD.Valence, before.VAD.Valence)
	assert.InDelta(t, 0.36, after.VAD.Valence, 1e-9)
	assert.True(t, after.HasShift(culture.ShiftOptimism))
	assert.True(t, after.HasShift(culture.ShiftHarmony))

	require.Len(t, f.store.narratives, 1)
	require.Len(t, f.store.records, 1)
	assert.Equal(t, n.ID, f.store.records[0].NarrativeID)
	assert.Equal(t, 3, f.store.records[0].Actions)
}

func TestRunTickRegistersActors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.orchestrator(nil, Config{}).RunTick(ctx, TickRequest{GameID: game, Actions: threeActions(), Dt: 1})
	require.NoError(t, err)

	m := f.motiv.GetState(ctx, game)
	for _, id := range []string{"p1", "p2", "p3"} {
		assert.GreaterOrEqual(t, m.Find(id), 0, id)
	}
}

func TestRunTickUsesGeneratedText(t *testing.T) {
	f := newFixture()
	var gotPrompt string
	var gotOpts llm.Options
	ok := backendFunc(func(_ context.Context, prompt string, opts llm.Options) (string, error) {
		gotPrompt, gotOpts = prompt, opts
		return "Mira raised the mill while Tomas watched the river and Ilse taught the children.", nil
	})

	res, err := f.orchestrator(ok, Config{}).RunTick(context.Background(), TickRequest{GameID: game, Actions: threeActions(), Dt: 1})
	require.NoError(t, err)

	assert.Equal(t, story.MethodGenerated, res.Narrative.Method)
	assert.Contains(t, gotPrompt, "=== RECENT PLAYER ACTIONS ===")
	assert.Less(t, strings.Index(gotPrompt, "Mira"), strings.Index(gotPrompt, "Ilse"))
	assert.Equal(t, llm.DefaultModel, gotOpts.Model)
	assert.Equal(t, llm.DefaultMaxTokens, gotOpts.MaxTokens)
	assert.Equal(t, llm.SystemPrompt, gotOpts.System)
	assert.Positive(t, res.Narrative.PlayerInfluence[1])
}

func TestRunTickEnforcesTimeout(t *testing.T) {
	f := newFixture()
	release := make(chan struct{})
	defer close(release)
	stuck := backendFunc(func(context.Context, string, llm.Options) (string, error) {
		<-release // ignores cancellation
		return "too late", nil
	})

	start := time.Now()
	res, err := f.orchestrator(stuck, Config{GenerationTimeout: 20 * time.Millisecond}).
		RunTick(context.Background(), TickRequest{GameID: game, Actions: threeActions(), Dt: 1})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, story.MethodTemplate, res.Narrative.Method)
}

func TestRunTickBlankResponseFallsBack(t *testing.T) {
	f := newFixture()
	blank := backendFunc(func(context.Context, string, llm.Options) (string, error) { return "  \n", nil })
	res, err := f.orchestrator(blank, Config{}).RunTick(context.Background(), TickRequest{GameID: game, Actions: threeActions(), Dt: 1})
	require.NoError(t, err)
	assert.Equal(t, story.MethodTemplate, res.Narrative.Method)
}

func TestRunTickEmptyBatchSkipsBackend(t *testing.T) {
	f := newFixture()
	called := false
	backend := backendFunc(func(context.Context, string, llm.Options) (string, error) {
		called = true
		return "generated", nil
	})

	res, err := f.orchestrator(backend, Config{}).RunTick(context.Background(), TickRequest{GameID: game, Dt: 1})
	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, story.MethodTemplate, res.Narrative.Method)
	assert.Contains(t, res.Narrative.Content, llm.QuietLine)
	assert.Empty(t, res.Narrative.ActionIDs)
}

func TestRunTickStoreFailureIsReturned(t *testing.T) {
	f := newFixture()
	f.states.SetOffline(true)

	_, err := f.orchestrator(nil, Config{}).RunTick(context.Background(), TickRequest{GameID: game, Actions: threeActions(), Dt: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, statestore.ErrUnavailable)
	assert.Empty(t, f.store.narratives)
}

type staticLore struct{ ctx lore.Context }

func (s staticLore) Fetch(context.Context, string, []story.Action) lore.Context { return s.ctx }

func TestRunTickAppliesLoreRules(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	w := world.Default()
	w.MagicLevel = 0.9
	require.NoError(t, f.world.Save(ctx, game, w))

	lc := lore.Context{GameID: game, Rules: lore.Rules{MaxMagicLevel: lore.Float(0.2)}, Degraded: []string{"history"}}
	o := New(f.world, f.motiv, f.cult, staticLore{lc}, nil, f.store, Config{})

	res, err := o.RunTick(ctx, TickRequest{GameID: game, Actions: threeActions(), Dt: 1})
	require.NoError(t, err)
	assert.LessOrEqual(t, res.Narrative.World.MagicLevel, 0.2)
	assert.Equal(t, []string{"history"}, res.Degraded)
	assert.Equal(t, []string{"history"}, f.store.records[0].Degraded)
}

func TestTickHistoryBounded(t *testing.T) {
	f := newFixture()
	o := f.orchestrator(nil, Config{})
	for i := 0; i < MaxTickHistory+5; i++ {
		_, err := o.RunTick(context.Background(), TickRequest{GameID: game, Dt: 1})
		require.NoError(t, err)
	}
	assert.Len(t, f.store.records, MaxTickHistory)
}
