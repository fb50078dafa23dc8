package timeout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndElapsed(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	registry.now = func() time.Time { return now }

	// Given a registered room
	registry.Register(42)
	req.True(registry.Contains(42))
	req.Equal(1, registry.Len())

	// When 12 seconds pass
	now = now.Add(12 * time.Second)

	// Then the elapsed reading follows the registry clock
	elapsed, ok := registry.Elapsed(42)
	req.True(ok)
	req.Equal(12*time.Second, elapsed)
}

func TestRegistry_ReRegisterKeepsOriginalInstant(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	registry.now = func() time.Time { return now }

	registry.Register(7)
	first, ok := registry.RegisteredAt(7)
	req.True(ok)

	// When the room is registered again later
	now = now.Add(5 * time.Second)
	registry.Register(7)

	// Then the original instant is kept
	again, ok := registry.RegisteredAt(7)
	req.True(ok)
	req.Equal(first, again)
}

func TestRegistry_UnregisterIsIdempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	registry.Register(9)
	registry.Unregister(9)
	registry.Unregister(9)

	req.False(registry.Contains(9))
	req.Equal(0, registry.Len())

	_, ok := registry.Elapsed(9)
	req.False(ok)
}
