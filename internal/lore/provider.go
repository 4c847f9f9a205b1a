package lore

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/talgya/beatloom/internal/cache"
	"github.com/talgya/beatloom/internal/story"
)

// DefaultTTL is how long an aggregated context is reused for a game.
const DefaultTTL = 5 * time.Minute

// HistoryLimit is the number of past beats included in a context.
const HistoryLimit = 10

const sourceTimeout = 5 * time.Second

// StructureSource supplies the setting.
type StructureSource interface {
	WorldStructure(ctx context.Context, gameID string) (WorldStructure, error)
}

// HistorySource supplies recent story beats, newest last.
type HistorySource interface {
	History(ctx context.Context, gameID string, limit int) ([]HistoricalEvent, error)
}

// RelationshipSource supplies character relationships.
type RelationshipSource interface {
	Relationships(ctx context.Context, gameID string) ([]Relationship, error)
}

// EconomySource supplies economic lore.
type EconomySource interface {
	Economy(ctx context.Context, gameID string) (Economy, error)
}

// GeographySource supplies known places.
type GeographySource interface {
	Geography(ctx context.Context, gameID string) (Geography, error)
}

// RulesSource supplies hard constraints.
type RulesSource interface {
	Rules(ctx context.Context, gameID string) (Rules, error)
}

// Sources wires each context slice to its source. Nil sources yield empty slices.
type Sources struct {
	Structure     StructureSource
	History       HistorySource
	Relationships RelationshipSource
	Economy       EconomySource
	Geography     GeographySource
	Rules         RulesSource
}

// Provider aggregates lore from independent sources behind a TTL cache.
type Provider struct {
	sources Sources
	cache   *cache.Cache[Context]
	group   singleflight.Group
	now     func() time.Time
}

// NewProvider creates a provider caching each game's context for ttl.
func NewProvider(sources Sources, ttl time.Duration) *Provider {
	return &Provider{
		sources: sources,
		cache:   cache.New[Context](ttl),
		now:     time.Now,
	}
}

// SetClock replaces the time source for the provider and its cache.
func (p *Provider) SetClock(now func() time.Time) {
	p.now = now
	p.cache.WithClock(now)
}

// Fetch returns the context for gameID. It never fails: a source that errors
// contributes an empty slice and is listed in Context.Degraded.
func (p *Provider) Fetch(ctx context.Context, gameID string, actions []story.Action) Context {
	c, ok := p.cache.Get(gameID)
	if !ok {
		v, _, _ := p.group.Do(gameID, func() (any, error) {
			c := p.load(ctx, gameID)
			p.cache.Set(gameID, c)
			return c, nil
		})
		c = v.(Context)
	}
	c.Geography.Focus = focus(c, actions)
	return c
}

func (p *Provider) load(ctx context.Context, gameID string) Context {
	c := Context{GameID: gameID, FetchedAt: p.now().UTC()}

	var (
		mu       sync.Mutex
		degraded []string
		g        errgroup.Group
	)
	run := func(name string, present bool, fetch func(ctx context.Context) error) {
		if !present {
			return
		}
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(ctx, sourceTimeout)
			defer cancel()
			if err := fetch(sctx); err != nil {
				slog.Warn("lore source failed, using empty value", "game", gameID, "source", name, "error", err)
				mu.Lock()
				degraded = append(degraded, name)
				mu.Unlock()
			}
			return nil
		})
	}

	s := p.sources
	run("world_structure", s.Structure != nil, func(ctx context.Context) error {
		v, err := s.Structure.WorldStructure(ctx, gameID)
		if err != nil {
			return err
		}
		c.WorldStructure = v
		return nil
	})
	run("history", s.History != nil, func(ctx context.Context) error {
		v, err := s.History.History(ctx, gameID, HistoryLimit)
		if err != nil {
			return err
		}
		c.History = v
		return nil
	})
	run("relationships", s.Relationships != nil, func(ctx context.Context) error {
		v, err := s.Relationships.Relationships(ctx, gameID)
		if err != nil {
			return err
		}
		c.Relationships = v
		return nil
	})
	run("economy", s.Economy != nil, func(ctx context.Context) error {
		v, err := s.Economy.Economy(ctx, gameID)
		if err != nil {
			return err
		}
		c.Economy = v
		return nil
	})
	run("geography", s.Geography != nil, func(ctx context.Context) error {
		v, err := s.Geography.Geography(ctx, gameID)
		if err != nil {
			return err
		}
		c.Geography = v
		return nil
	})
	run("rules", s.Rules != nil, func(ctx context.Context) error {
		v, err := s.Rules.Rules(ctx, gameID)
		if err != nil {
			return err
		}
		c.Rules = v
		return nil
	})

	_ = g.Wait()
	slices.Sort(degraded)
	c.Degraded = degraded
	return c
}

// focus lists the known places the actions mention.
func focus(c Context, actions []story.Action) []string {
	if len(actions) == 0 {
		return nil
	}
	var names []string
	for _, r := range c.Geography.Regions {
		names = append(names, r.Name)
		names = append(names, r.Settlements...)
	}
	names = append(names, c.Geography.Landmarks...)

	var out []string
	seen := make(map[string]bool)
	for _, name := range names {
		if name == "" || seen[name] {
			continue
		}
		lower := strings.ToLower(name)
		for _, a := range actions {
			if strings.Contains(strings.ToLower(a.Content), lower) || strings.EqualFold(a.Target, name) {
				out = append(out, name)
				seen[name] = true
				break
			}
		}
	}
	return out
}
