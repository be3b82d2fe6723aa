package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheFreshnessWindow(t *testing.T) {
	state := NewSessionState()
	now := time.Now()
	state.now = func() time.Time { return now }

	messages := []ChatMessage{{ID: 1, OrderID: 7, Body: "hello"}}
	state.Put(7, RoleBuyer, messages)

	got, ok := state.Get(7, RoleBuyer)
	require.True(t, ok)
	assert.Equal(t, messages, got)

	// A different viewer role is a different cache entry.
	_, ok = state.Get(7, RoleOperator)
	assert.False(t, ok)

	// Still fresh just inside the window.
	now = now.Add(messageCacheWindow - time.Millisecond)
	_, ok = state.Get(7, RoleBuyer)
	assert.True(t, ok)

	// Stale beyond it.
	now = now.Add(2 * time.Millisecond)
	_, ok = state.Get(7, RoleBuyer)
	assert.False(t, ok)
}

func TestInvalidate(t *testing.T) {
	state := NewSessionState()
	state.Put(7, RoleBuyer, []ChatMessage{{ID: 1}})
	state.Invalidate(7, RoleBuyer)

	_, ok := state.Get(7, RoleBuyer)
	assert.False(t, ok)
}

func TestInFlightGuard(t *testing.T) {
	state := NewSessionState()

	require.True(t, state.TryAcquireInFlight("chat:7:buyer"))
	assert.False(t, state.TryAcquireInFlight("chat:7:buyer"))

	// Independent keys do not contend.
	assert.True(t, state.TryAcquireInFlight("chat:8:buyer"))
	assert.True(t, state.TryAcquireInFlight("chat:7:operator"))

	state.ReleaseInFlight("chat:7:buyer")
	assert.True(t, state.TryAcquireInFlight("chat:7:buyer"))
}

func TestResetClearsCachesAndGuards(t *testing.T) {
	state := NewSessionState()
	state.Put(7, RoleBuyer, []ChatMessage{{ID: 1}})
	require.True(t, state.TryAcquireInFlight("order-submit"))

	state.Reset()

	_, ok := state.Get(7, RoleBuyer)
	assert.False(t, ok)
	assert.True(t, state.TryAcquireInFlight("order-submit"))
}
