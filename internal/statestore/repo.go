// Package statestore persists one slice of per-game simulation state as a
// JSON payload behind a short-lived read cache.
package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/talgya/beatloom/internal/cache"
)

// Slice names used as keys in the backing store.
const (
	SliceWorld      = "world"
	SliceMotivation = "motivation"
	SliceCulture    = "culture"
)

// SliceStore is per-game key/value storage for state slices.
type SliceStore interface {
	LoadSlice(ctx context.Context, gameID, slice string) (payload []byte, ok bool, err error)
	SaveSlice(ctx context.Context, gameID, slice string, payload []byte, at time.Time) error
}

// Repo reads and writes one typed slice.
type Repo[T any] struct {
	store    SliceStore
	slice    string
	baseline func() T
	cache    *cache.Cache[[]byte]
}

// NewRepo creates a repo for slice. baseline builds the default state for a
// game that has never been persisted.
func NewRepo[T any](store SliceStore, slice string, ttl time.Duration, baseline func() T) *Repo[T] {
	return &Repo[T]{
		store:    store,
		slice:    slice,
		baseline: baseline,
		cache:    cache.New[[]byte](ttl),
	}
}

// Load returns the stored state, or the baseline when none exists. Store
// errors are returned alongside the baseline so callers can choose to degrade.
func (r *Repo[T]) Load(ctx context.Context, gameID string) (T, error) {
	if payload, ok := r.cache.Get(gameID); ok {
		return r.decode(payload)
	}
	if r.store == nil {
		return r.baseline(), nil
	}

	payload, ok, err := r.store.LoadSlice(ctx, gameID, r.slice)
	if err != nil {
		return r.baseline(), fmt.Errorf("load %s state: %w", r.slice, err)
	}
	if !ok {
		return r.baseline(), nil
	}

	v, err := r.decode(payload)
	if err != nil {
		return v, err
	}
	r.cache.Set(gameID, payload)
	return v, nil
}

// Save persists v and drops any cached copy for gameID.
func (r *Repo[T]) Save(ctx context.Context, gameID string, v T, at time.Time) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s state: %w", r.slice, err)
	}
	r.cache.Delete(gameID)
	if r.store == nil {
		return fmt.Errorf("save %s state: no store configured", r.slice)
	}
	if err := r.store.SaveSlice(ctx, gameID, r.slice, payload, at); err != nil {
		return fmt.Errorf("save %s state: %w", r.slice, err)
	}
	return nil
}

func (r *Repo[T]) decode(payload []byte) (T, error) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return r.baseline(), fmt.Errorf("decode %s state: %w", r.slice, err)
	}
	return v, nil
}
