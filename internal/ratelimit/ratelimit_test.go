package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowWithinLimit(t *testing.T) {
	l := New(5, time.Second)

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("conn-1"), "event %d should be admitted", i+1)
	}
	assert.False(t, l.Allow("conn-1"), "6th event inside the window should be rejected")
}

func TestRejectionDoesNotConsumeSlot(t *testing.T) {
	now := time.Now()
	l := New(5, time.Second)
	l.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		require.True(t, l.Allow("conn-1"))
	}
	assert.False(t, l.Allow("conn-1"))

	// Once the original five fall out of the window, admission resumes.
	now = now.Add(1001 * time.Millisecond)
	assert.True(t, l.Allow("conn-1"))
}

func TestWindowSlides(t *testing.T) {
	now := time.Now()
	l := New(5, time.Second)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		require.True(t, l.Allow("conn-1"))
	}

	now = now.Add(600 * time.Millisecond)
	require.True(t, l.Allow("conn-1"))
	require.True(t, l.Allow("conn-1"))
	assert.False(t, l.Allow("conn-1"))

	// The first three expire; the two recent ones remain.
	now = now.Add(500 * time.Millisecond)
	assert.True(t, l.Allow("conn-1"))
	assert.True(t, l.Allow("conn-1"))
	assert.True(t, l.Allow("conn-1"))
	assert.False(t, l.Allow("conn-1"))
}

func TestConnectionsAreIndependent(t *testing.T) {
	l := New(5, time.Second)

	for i := 0; i < 5; i++ {
		require.True(t, l.Allow("conn-1"))
	}
	assert.False(t, l.Allow("conn-1"))
	assert.True(t, l.Allow("conn-2"))
}

func TestRemove(t *testing.T) {
	l := New(5, time.Second)

	for i := 0; i < 5; i++ {
		require.True(t, l.Allow("conn-1"))
	}
	require.Equal(t, 1, l.Tracked())

	l.Remove("conn-1")
	assert.Equal(t, 0, l.Tracked())

	// A reconnect under the same id starts fresh.
	assert.True(t, l.Allow("conn-1"))
}
