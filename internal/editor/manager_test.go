package editor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestManagerReusesControllers(t *testing.T) {
	m := NewManager(Options{Gateway: newFakeGateway()}, time.Minute)

	id, c1 := m.Controller("")
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	again, c2 := m.Controller(id)
	assert.Equal(t, id, again)
	assert.Same(t, c1, c2)

	other, c3 := m.Controller("not-a-uuid")
	assert.NotEqual(t, id, other)
	assert.NotSame(t, c1, c3)
	assert.Equal(t, 2, m.Len())
}

func TestManagerSweepsIdleEditors(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	m := NewManager(Options{Gateway: newFakeGateway(), Clock: clock.Now}, 10*time.Minute)

	idleID, idle := m.Controller("")
	_, err := idle.Open(context.Background(), target)
	require.NoError(t, err)
	_, err = idle.Edit("name", "Unsaved")
	require.NoError(t, err)

	clock.Advance(8 * time.Minute)
	activeID, _ := m.Controller("")

	clock.Advance(5 * time.Minute)
	assert.Equal(t, 1, m.Sweep())
	assert.False(t, idle.IsOpen())
	assert.Equal(t, 1, m.Len())

	_, again := m.Controller(idleID)
	assert.NotSame(t, idle, again)
	_, kept := m.Controller(activeID)
	assert.NotNil(t, kept)
}

func TestManagerStart(t *testing.T) {
	m := NewManager(Options{Gateway: newFakeGateway()}, time.Minute)
	assert.Error(t, m.Start("not a schedule"))
	require.NoError(t, m.Start("@every 1h"))

	_, c := m.Controller("")
	_, err := c.Open(context.Background(), target)
	require.NoError(t, err)

	m.Stop()
	assert.False(t, c.IsOpen())
	assert.Equal(t, 0, m.Len())
}
