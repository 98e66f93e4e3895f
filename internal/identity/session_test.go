package identity

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_StartsUnresolved(t *testing.T) {
	s := NewSession(NewFixedGenerator("anon-1"))

	assert.False(t, s.IsResolved())
	_, ok := s.CurrentProfileID()
	assert.False(t, ok)
	assert.Equal(t, "anon-1", s.DistinctID())
}

func TestSession_ResolveIsMonotonic(t *testing.T) {
	s := NewSession(NewFixedGenerator("anon-1"))

	first, err := s.Resolve("user-1")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := s.Resolve("user-2")
	require.NoError(t, err)
	assert.False(t, second, "second resolution has no effect")

	id, ok := s.CurrentProfileID()
	require.True(t, ok)
	assert.Equal(t, "user-1", id)
	assert.Equal(t, "user-1", s.DistinctID())
	assert.Equal(t, "anon-1", s.AnonymousID())
	assert.True(t, s.IsResolved())
}

func TestSession_ResolveRejectsEmpty(t *testing.T) {
	s := NewSession(NewFixedGenerator("anon"))
	_, err := s.Resolve("")
	assert.ErrorIs(t, err, ErrEmptyProfileID)
	assert.False(t, s.IsResolved())
}

func TestSession_IndependentSessions(t *testing.T) {
	a := NewSession(NewFixedGenerator("anon-a"))
	b := NewSession(NewFixedGenerator("anon-b"))

	_, err := a.Resolve("user-a")
	require.NoError(t, err)

	assert.True(t, a.IsResolved())
	assert.False(t, b.IsResolved(), "resolution does not leak across sessions")
}

func TestSession_ConcurrentResolve(t *testing.T) {
	s := NewSession(NewFixedGenerator("anon"))

	var wg sync.WaitGroup
	wins := make(chan string, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if ok, _ := s.Resolve(id); ok {
				wins <- id
			}
		}(string(rune('a' + i)))
	}
	wg.Wait()
	close(wins)

	var winners []string
	for w := range wins {
		winners = append(winners, w)
	}
	require.Len(t, winners, 1)
	id, _ := s.CurrentProfileID()
	assert.Equal(t, winners[0], id)
}

func TestNewResolvedSession(t *testing.T) {
	s := NewResolvedSession("user-7")
	assert.True(t, s.IsResolved())
	assert.Equal(t, "user-7", s.DistinctID())
}

func TestUUIDv7Generator(t *testing.T) {
	id := UUIDv7Generator{}.Generate()
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestFixedGenerator_PanicsWhenExhausted(t *testing.T) {
	g := NewFixedGenerator("only")
	assert.Equal(t, "only", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}
