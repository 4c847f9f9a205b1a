// Package scheduler drives narrative cycles: one timer per game, cycles
// advancing strictly scheduled → processing → completed, and the ledger of
// participant actions each cycle collapses into a story beat.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/talgya/beatloom/internal/engine"
	"github.com/talgya/beatloom/internal/story"
)

var (
	// ErrInvalidTransition is returned when a cycle would move backward or
	// skip a status.
	ErrInvalidTransition = errors.New("invalid cycle transition")
	// ErrAlreadyScheduled is returned when a game already has a scheduled cycle.
	ErrAlreadyScheduled = errors.New("game already has a scheduled cycle")
	// ErrCycleInProgress is returned when a game's cycle is being processed.
	ErrCycleInProgress = errors.New("cycle in progress")
	// ErrGameArchived is returned for operations on an archived game.
	ErrGameArchived = errors.New("game archived")
	// ErrNoOpenCycle is returned by Trigger when nothing is scheduled.
	ErrNoOpenCycle = errors.New("no open cycle")
	// ErrRosterFull is returned when a new actor would exceed the player cap.
	ErrRosterFull = errors.New("roster full")
	// ErrUnknownFrequency is returned for a frequency with no policy.
	ErrUnknownFrequency = errors.New("unknown frequency")
)

const (
	// minDelay is the shortest timer the scheduler arms.
	minDelay = time.Second
	// maxRetryDelay caps the backoff for a cycle whose fire failed
	// before it started.
	maxRetryDelay = 5 * time.Minute
)

// GameStore persists games and their rosters.
type GameStore interface {
	CreateGame(ctx context.Context, g story.Game) error
	GetGame(ctx context.Context, id string) (story.Game, error)
	ListGames(ctx context.Context, status story.GameStatus) ([]story.Game, error)
	SetGameStatus(ctx context.Context, id string, status story.GameStatus) error
	JoinGame(ctx context.Context, p story.Player, maxPlayers int) (bool, error)
	Players(ctx context.Context, gameID string) ([]story.Player, error)
}

// CycleStore persists narrative cycles.
type CycleStore interface {
	InsertCycle(ctx context.Context, c story.Cycle) (story.Cycle, error)
	GetCycle(ctx context.Context, id int64) (story.Cycle, error)
	OpenCycle(ctx context.Context, gameID string) (story.Cycle, bool, error)
	LastCompleted(ctx context.Context, gameID string) (story.Cycle, bool, error)
	ScheduledCycles(ctx context.Context) ([]story.Cycle, error)
	StartCycle(ctx context.Context, id int64, at time.Time) (bool, error)
	SetCycleCollected(ctx context.Context, id int64, n int) error
	FailCycle(ctx context.Context, id int64, msg string) error
	CompleteCycle(ctx context.Context, c story.Cycle, actionIDs []int64, at time.Time) (bool, error)
}

// ActionStore persists participant actions.
type ActionStore interface {
	InsertAction(ctx context.Context, a story.Action) (story.Action, error)
	PendingActions(ctx context.Context, gameID string) ([]story.Action, error)
	ActorCounts(ctx context.Context, gameID string) (map[string]int, error)
}

// Store is everything the scheduler and ledger persist.
type Store interface {
	GameStore
	CycleStore
	ActionStore
}

// Ticker runs one simulation tick.
type Ticker interface {
	RunTick(ctx context.Context, req engine.TickRequest) (engine.TickResult, error)
}

type armed struct {
	timer    Timer
	cycleID  int64
	gen      uint64
	failures int // consecutive fires that failed before the cycle started
}

// Scheduler owns every game's timer. At most one timer is armed per game.
type Scheduler struct {
	store  Store
	ticker Ticker
	clock  Clock
	tracer trace.Tracer

	base context.Context

	mu      sync.Mutex
	timers  map[string]armed
	gen     uint64
	running map[string]bool
	stopped bool
	wg      sync.WaitGroup
}

// New creates a scheduler. Timer-fired cycles run under base.
func New(base context.Context, store Store, ticker Ticker, clock Clock) *Scheduler {
	if clock == nil {
		clock = RealClock()
	}
	return &Scheduler{
		store:   store,
		ticker:  ticker,
		clock:   clock,
		tracer:  otel.Tracer("github.com/talgya/beatloom/internal/scheduler"),
		base:    base,
		timers:  make(map[string]armed),
		running: make(map[string]bool),
	}
}

// CreateGame registers a game, filling defaults, and schedules its first
// cycle.
func (s *Scheduler) CreateGame(ctx context.Context, g story.Game) (story.Game, story.Cycle, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.Frequency == "" {
		g.Frequency = story.Daily
	}
	if g.MaxPlayers <= 0 {
		g.MaxPlayers = story.DefaultMaxPlayers
	}
	if g.Name == "" {
		g.Name = g.ID
	}
	g.Status = story.GameActive
	g.CreatedAt = s.clock.Now()
	if _, err := PolicyFor(g.Frequency); err != nil {
		return g, story.Cycle{}, err
	}

	if err := s.store.CreateGame(ctx, g); err != nil {
		return g, story.Cycle{}, err
	}
	slog.Info("game created", "game", g.ID, "frequency", g.Frequency, "max_players", g.MaxPlayers)

	c, err := s.ScheduleNext(ctx, g.ID)
	return g, c, err
}

// ScheduleNext inserts the game's next cycle and arms its timer, replacing
// any timer already armed for the game.
func (s *Scheduler) ScheduleNext(ctx context.Context, gameID string) (story.Cycle, error) {
	g, err := s.store.GetGame(ctx, gameID)
	if err != nil {
		return story.Cycle{}, err
	}
	if g.Status == story.GameArchived {
		return story.Cycle{}, ErrGameArchived
	}
	open, ok, err := s.store.OpenCycle(ctx, gameID)
	if err != nil {
		return story.Cycle{}, err
	}
	if ok {
		err := ErrAlreadyScheduled
		if open.Status == story.CycleProcessing {
			err = ErrCycleInProgress
		}
		slog.Error("refusing second open cycle", "game", gameID, "cycle", open.Sequence, "status", open.Status)
		return open, err
	}

	p, err := PolicyFor(g.Frequency)
	if err != nil {
		return story.Cycle{}, err
	}
	now := s.clock.Now()
	start, deadline := p.Window(now)
	c, err := s.store.InsertCycle(ctx, story.Cycle{
		GameID:         gameID,
		ScheduledStart: start,
		InputDeadline:  deadline,
	})
	if err != nil {
		return c, fmt.Errorf("schedule next %s: %w", gameID, err)
	}

	s.arm(c)
	slog.Info("cycle scheduled",
		"game", gameID,
		"cycle", c.Sequence,
		"starts", relative(start, now),
		"deadline", deadline.Format(time.RFC3339),
	)
	return c, nil
}

// arm replaces the game's timer with one firing at c's scheduled start.
func (s *Scheduler) arm(c story.Cycle) {
	delay := c.ScheduledStart.Sub(s.clock.Now())
	if delay < minDelay {
		delay = minDelay
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armLocked(c.GameID, c.ID, delay, 0)
}

// armLocked installs a timer for cycleID, stopping any previous one.
// Called with mu held.
func (s *Scheduler) armLocked(gameID string, cycleID int64, delay time.Duration, failures int) {
	if s.stopped {
		return
	}
	if prev, ok := s.timers[gameID]; ok {
		prev.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timers[gameID] = armed{
		timer:    s.clock.AfterFunc(delay, func() { s.fire(gameID, cycleID, gen) }),
		cycleID:  cycleID,
		gen:      gen,
		failures: failures,
	}
}

// relative phrases t against now for logs, e.g. "1 hour from now".
func relative(t, now time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}

// retryDelay doubles from minDelay per consecutive failure up to maxRetryDelay.
func retryDelay(failures int) time.Duration {
	d := minDelay
	for i := 1; i < failures && d < maxRetryDelay; i++ {
		d *= 2
	}
	return min(d, maxRetryDelay)
}

// disarm stops and forgets the game's timer.
func (s *Scheduler) disarm(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.timers[gameID]; ok {
		a.timer.Stop()
		delete(s.timers, gameID)
	}
}

// Armed reports the cycle id a game's timer will fire for.
func (s *Scheduler) Armed(gameID string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.timers[gameID]
	return a.cycleID, ok
}

func (s *Scheduler) fire(gameID string, cycleID int64, gen uint64) {
	s.mu.Lock()
	a, ok := s.timers[gameID]
	if s.stopped || !ok || a.gen != gen {
		// Superseded by a newer timer.
		s.mu.Unlock()
		return
	}
	delete(s.timers, gameID)
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	if _, err := s.ProcessCycle(s.base, gameID, cycleID); err != nil {
		slog.Error("cycle processing failed", "game", gameID, "cycle_id", cycleID, "error", err)
		s.rearm(gameID, cycleID, a.failures+1, err)
	}
}

// rearm puts a timer back on a cycle whose fire failed before it started,
// so a transient store error cannot leave the game without a timer. Cycles
// that reached processing, archived games and games re-armed in the
// meantime are left alone.
func (s *Scheduler) rearm(gameID string, cycleID int64, failures int, cause error) {
	if errors.Is(cause, ErrGameArchived) || errors.Is(cause, ErrInvalidTransition) || errors.Is(cause, ErrCycleInProgress) {
		return
	}
	// An unreadable store still gets a retry; the next fire re-checks status.
	if cur, ok, err := s.store.OpenCycle(s.base, gameID); err == nil {
		if !ok || cur.ID != cycleID || cur.Status != story.CycleScheduled {
			return
		}
	}

	delay := retryDelay(failures)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.timers[gameID]; taken {
		return
	}
	s.armLocked(gameID, cycleID, delay, failures)
	slog.Warn("cycle re-armed after failure", "game", gameID, "cycle_id", cycleID, "attempt", failures, "retry_in", delay)
}

// ProcessCycle moves a scheduled cycle to processing, runs one tick over
// the game's pending actions and completes the cycle. A tick failure leaves
// the cycle in processing for an operator to Retry.
func (s *Scheduler) ProcessCycle(ctx context.Context, gameID string, cycleID int64) (story.Cycle, error) {
	ctx, span := s.tracer.Start(ctx, "scheduler.ProcessCycle", trace.WithAttributes(
		attribute.String("game.id", gameID),
		attribute.Int64("cycle.id", cycleID),
	))
	defer span.End()

	c, err := s.processCycle(ctx, gameID, cycleID, story.CycleScheduled)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return c, err
}

// Retry reruns a cycle left in processing by a failed tick.
func (s *Scheduler) Retry(ctx context.Context, gameID string, cycleID int64) (story.Cycle, error) {
	slog.Info("retrying cycle", "game", gameID, "cycle_id", cycleID)
	return s.processCycle(ctx, gameID, cycleID, story.CycleProcessing)
}

func (s *Scheduler) processCycle(ctx context.Context, gameID string, cycleID int64, from story.CycleStatus) (story.Cycle, error) {
	if !s.enter(gameID) {
		return story.Cycle{}, ErrCycleInProgress
	}
	defer s.leave(gameID)

	c, err := s.store.GetCycle(ctx, cycleID)
	if err != nil {
		return c, err
	}
	if c.GameID != gameID {
		return c, fmt.Errorf("cycle %d belongs to game %s, not %s", cycleID, c.GameID, gameID)
	}
	if c.Status != from {
		slog.Error("illegal cycle transition", "game", gameID, "cycle", c.Sequence, "status", c.Status, "expected", from)
		return c, fmt.Errorf("cycle %d is %s: %w", cycleID, c.Status, ErrInvalidTransition)
	}

	g, err := s.store.GetGame(ctx, gameID)
	if err != nil {
		return c, err
	}
	if g.Status == story.GameArchived {
		return c, ErrGameArchived
	}
	p, err := PolicyFor(g.Frequency)
	if err != nil {
		return c, err
	}

	if from == story.CycleScheduled {
		now := s.clock.Now()
		ok, err := s.store.StartCycle(ctx, c.ID, now)
		if err != nil {
			return c, err
		}
		if !ok {
			return c, fmt.Errorf("start cycle %d: %w", c.ID, ErrInvalidTransition)
		}
		c.Status = story.CycleProcessing
		c.ActualStart = &now
	}

	actions, err := s.store.PendingActions(ctx, gameID)
	if err != nil {
		return c, s.fail(ctx, c, err)
	}
	story.SortForProcessing(actions)
	c.ActionsCollected = len(actions)
	if err := s.store.SetCycleCollected(ctx, c.ID, len(actions)); err != nil {
		return c, s.fail(ctx, c, err)
	}

	res, err := s.ticker.RunTick(ctx, engine.TickRequest{
		GameID:  gameID,
		CycleID: &c.ID,
		Actions: actions,
		Dt:      p.Dt,
	})
	if err != nil {
		return c, s.fail(ctx, c, err)
	}

	// An archive during the tick leaves the cycle in processing.
	if g, err := s.store.GetGame(ctx, gameID); err == nil && g.Status == story.GameArchived {
		return c, s.fail(ctx, c, ErrGameArchived)
	}

	done := s.clock.Now()
	c.ActionsProcessed = len(actions)
	c.NarrativeText = res.Narrative.Content
	ok, err := s.store.CompleteCycle(ctx, c, story.IDs(actions), done)
	if err != nil {
		return c, s.fail(ctx, c, err)
	}
	if !ok {
		return c, fmt.Errorf("complete cycle %d: %w", c.ID, ErrInvalidTransition)
	}
	c.Status = story.CycleCompleted
	c.CompletedAt = &done
	c.LastError = ""

	slog.Info("cycle completed",
		"game", gameID,
		"cycle", c.Sequence,
		"actions", len(actions),
		"method", res.Narrative.Method,
	)

	if _, err := s.ScheduleNext(ctx, gameID); err != nil {
		return c, fmt.Errorf("schedule after cycle %d: %w", c.Sequence, err)
	}
	return c, nil
}

func (s *Scheduler) fail(ctx context.Context, c story.Cycle, cause error) error {
	slog.Error("cycle left in processing", "game", c.GameID, "cycle", c.Sequence, "error", cause)
	if err := s.store.FailCycle(ctx, c.ID, cause.Error()); err != nil {
		slog.Warn("could not record cycle failure", "game", c.GameID, "cycle", c.Sequence, "error", err)
	}
	return fmt.Errorf("process cycle %s#%d: %w", c.GameID, c.Sequence, cause)
}

func (s *Scheduler) enter(gameID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[gameID] {
		return false
	}
	s.running[gameID] = true
	return true
}

func (s *Scheduler) leave(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, gameID)
}

// Trigger processes the game's scheduled cycle now instead of waiting for
// its timer.
func (s *Scheduler) Trigger(ctx context.Context, gameID string) (story.Cycle, error) {
	open, ok, err := s.store.OpenCycle(ctx, gameID)
	if err != nil {
		return story.Cycle{}, err
	}
	if !ok {
		return story.Cycle{}, ErrNoOpenCycle
	}
	if open.Status == story.CycleProcessing {
		return open, ErrCycleInProgress
	}
	s.disarm(gameID)
	c, err := s.ProcessCycle(ctx, gameID, open.ID)
	if err != nil {
		// Nothing started; keep the original schedule.
		if cur, ok, lerr := s.store.OpenCycle(ctx, gameID); lerr == nil && ok && cur.Status == story.CycleScheduled {
			s.arm(cur)
		}
	}
	return c, err
}

// Archive stops a game. Its timer is cleared; a processing cycle is left
// as it is for inspection.
func (s *Scheduler) Archive(ctx context.Context, gameID string) error {
	if err := s.store.SetGameStatus(ctx, gameID, story.GameArchived); err != nil {
		return err
	}
	s.disarm(gameID)
	slog.Info("game archived", "game", gameID)
	return nil
}

// Resume re-arms timers for scheduled cycles after a restart and schedules
// active games that have no open cycle. Cycles found in processing are left
// for Retry.
func (s *Scheduler) Resume(ctx context.Context) error {
	scheduled, err := s.store.ScheduledCycles(ctx)
	if err != nil {
		return err
	}
	for _, c := range scheduled {
		s.arm(c)
	}

	games, err := s.store.ListGames(ctx, story.GameActive)
	if err != nil {
		return err
	}
	for _, g := range games {
		open, ok, err := s.store.OpenCycle(ctx, g.ID)
		if err != nil {
			return err
		}
		switch {
		case !ok:
			if _, err := s.ScheduleNext(ctx, g.ID); err != nil {
				return err
			}
		case open.Status == story.CycleProcessing:
			slog.Warn("cycle stuck in processing, retry required", "game", g.ID, "cycle", open.Sequence, "error", open.LastError)
		}
	}
	slog.Info("scheduler resumed", "games", len(games), "timers", len(scheduled))
	return nil
}

// Stop clears every timer and waits for in-flight cycles to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for id, a := range s.timers {
		a.timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
	slog.Info("scheduler stopped")
}

// Summary is a game's engagement overview.
type Summary struct {
	Game          story.Game     `json:"game"`
	Open          *story.Cycle   `json:"open_cycle,omitempty"`
	LastCompleted *story.Cycle   `json:"last_completed,omitempty"`
	Pending       int            `json:"pending_actions"`
	ActorCounts   map[string]int `json:"actor_counts"`
	Players       []story.Player `json:"players"`
}

// Summary reports a game's open and last cycles, pending work and
// per-actor participation.
func (s *Scheduler) Summary(ctx context.Context, gameID string) (Summary, error) {
	g, err := s.store.GetGame(ctx, gameID)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{Game: g}

	if c, ok, err := s.store.OpenCycle(ctx, gameID); err != nil {
		return sum, err
	} else if ok {
		sum.Open = &c
	}
	if c, ok, err := s.store.LastCompleted(ctx, gameID); err != nil {
		return sum, err
	} else if ok {
		sum.LastCompleted = &c
	}

	pending, err := s.store.PendingActions(ctx, gameID)
	if err != nil {
		return sum, err
	}
	sum.Pending = len(pending)
	if sum.ActorCounts, err = s.store.ActorCounts(ctx, gameID); err != nil {
		return sum, err
	}
	if sum.Players, err = s.store.Players(ctx, gameID); err != nil {
		return sum, err
	}
	return sum, nil
}
