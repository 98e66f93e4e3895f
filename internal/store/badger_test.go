package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/profilesync/internal/model"
)

func TestOpenBadger_RequiresPath(t *testing.T) {
	_, err := OpenBadger(BadgerConfig{})
	require.Error(t, err)
}

func TestBadgerBackend_RoundTripInMemory(t *testing.T) {
	ctx := context.Background()
	b, err := OpenBadger(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	defer b.Close()

	want := sampleSnapshot()
	require.NoError(t, b.Save(ctx, "token-1", want))

	got, err := b.Load(ctx, "token-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestBadgerBackend_SaveReplacesSnapshot(t *testing.T) {
	ctx := context.Background()
	b, err := OpenBadger(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Save(ctx, "token-1", sampleSnapshot()))
	require.NoError(t, b.Save(ctx, "token-1", Snapshot{}))

	got, err := b.Load(ctx, "token-1")
	require.NoError(t, err)
	assert.Empty(t, got.Merged)
	assert.Empty(t, got.Appends)
}

func TestBadgerBackend_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b1, err := OpenBadger(DefaultBadgerConfig(dir))
	require.NoError(t, err)
	s1, err := Open(ctx, b1, "token-1")
	require.NoError(t, err)
	for i := 0; i < 12; i++ {
		enqueue(t, s1, model.KindAppend, "n", i)
	}
	want := s1.Appends()
	require.NoError(t, s1.Close())

	b2, err := OpenBadger(DefaultBadgerConfig(dir))
	require.NoError(t, err)
	s2, err := Open(ctx, b2, "token-1")
	require.NoError(t, err)
	defer s2.Close()

	// Seq keys are zero-padded so entry 10 sorts after entry 9.
	assert.Equal(t, want, s2.Appends())
}
