package statestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Level float64  `json:"level"`
	Tags  []string `json:"tags"`
}

func baseline() sample { return sample{Level: 0.5} }

func TestRepoBaselineWhenMissing(t *testing.T) {
	repo := NewRepo(NewMemory(), "sample", time.Minute, baseline)
	v, err := repo.Load(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, baseline(), v)
}

func TestRepoRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	repo := NewRepo(store, "sample", time.Minute, baseline)

	want := sample{Level: 0.25, Tags: []string{"a", "b"}}
	require.NoError(t, repo.Save(ctx, "g1", want, time.Now()))

	got, err := repo.Load(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	fresh := NewRepo(store, "sample", time.Minute, baseline)
	got, err = fresh.Load(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRepoServesCacheUntilSave(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	repo := NewRepo(store, "sample", time.Minute, baseline)
	require.NoError(t, repo.Save(ctx, "g1", sample{Level: 0.1}, time.Now()))
	_, err := repo.Load(ctx, "g1")
	require.NoError(t, err)

	store.SetOffline(true)
	v, err := repo.Load(ctx, "g1")
	require.NoError(t, err, "cached read should not touch the store")
	assert.Equal(t, 0.1, v.Level)

	assert.ErrorIs(t, repo.Save(ctx, "g1", sample{Level: 0.2}, time.Now()), ErrUnavailable)
	v, err = repo.Load(ctx, "g1")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, baseline(), v)
}
