package controller

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	mu    sync.Mutex
	calls int
}

func (c *counter) cancel() {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
}

func (c *counter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestKey(t *testing.T) {
	assert.Equal(t, "0,3", Key(0, 3))
	assert.Equal(t, "12,-1", Key(12, -1))
}

func TestRegistryAddStopRemove(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.HasPending())

	var c counter
	key := r.Add(1, 2, c.cancel)
	assert.Equal(t, "1,2", key)
	assert.True(t, r.HasPending())

	r.Stop(1, 2)
	assert.Equal(t, 1, c.count())
	// stopping does not remove
	assert.True(t, r.HasPending())

	r.Remove(1, 2)
	assert.False(t, r.HasPending())

	r.Stop(1, 2)
	assert.Equal(t, 1, c.count())
}

func TestRegistryStopUnknownKey(t *testing.T) {
	r := NewRegistry()
	assert.NotPanics(t, func() { r.Stop(9, 9) })
	assert.NotPanics(t, func() { r.Remove(9, 9) })
}

func TestRegistryOverwriteOrphansPreviousHandle(t *testing.T) {
	r := NewRegistry()
	var first, second counter
	r.Add(0, 0, first.cancel)
	r.Add(0, 0, second.cancel)
	assert.Equal(t, 1, r.Len())

	r.Stop(0, 0)
	assert.Equal(t, 0, first.count())
	assert.Equal(t, 1, second.count())
}

func TestRegistryStopAll(t *testing.T) {
	r := NewRegistry()
	var a, b counter
	r.Add(0, 1, a.cancel)
	r.Add(1, 1, b.cancel)

	r.StopAll()
	assert.Equal(t, 1, a.count())
	assert.Equal(t, 1, b.count())
	assert.Equal(t, 2, r.Len())
}

func TestRegistryCancelTwiceIsSafe(t *testing.T) {
	r := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	r.Add(0, 0, cancel)

	r.Stop(0, 0)
	r.Stop(0, 0)
	r.StopAll()
	require.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestRegistryConcurrentUse(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Add(0, i, func() {})
			r.Stop(0, i)
			r.HasPending()
			r.Remove(0, i)
		}(i)
	}
	wg.Wait()
	assert.False(t, r.HasPending())
}

func TestRegistryReleaseKeepsNewerHandle(t *testing.T) {
	r := NewRegistry()
	var first, second counter

	_, releaseFirst := r.Register(0, 0, first.cancel)
	_, releaseSecond := r.Register(0, 0, second.cancel)

	releaseFirst()
	require.True(t, r.HasPending())
	r.Stop(0, 0)
	assert.Equal(t, 0, first.count())
	assert.Equal(t, 1, second.count())

	releaseSecond()
	assert.False(t, r.HasPending())
	assert.Equal(t, 0, r.Len())
}
