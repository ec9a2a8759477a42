package carousel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestLoop_RunsInOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)

	var got []int
	for i := 0; i < 50; i++ {
		i := i
		require.True(t, loop.Post(func() { got = append(got, i) }))
	}
	require.True(t, loop.Call(func() {}))
	cancel()
	<-loop.Done()

	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestLoop_PostFromInsideLoop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)

	var order []string
	loop.Post(func() {
		order = append(order, "outer")
		loop.Post(func() { order = append(order, "inner") })
	})
	loop.Call(func() {})
	loop.Call(func() {})
	cancel()
	<-loop.Done()

	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestLoop_StoppedRejectsWork(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	cancel()
	<-loop.Done()

	assert.False(t, loop.Post(func() {}))
	assert.False(t, loop.Call(func() {}))
}

func TestLoopClock_DeliversOnLoop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	defer func() {
		cancel()
		<-loop.Done()
	}()

	fake := NewFakeClock(time.Unix(0, 0))
	clock := NewLoopClock(fake, loop)

	var mu sync.Mutex
	fired := false
	clock.AfterFunc(time.Second, func() {
		mu.Lock()
		fired = true
		mu.Unlock()
	})
	fake.Advance(time.Second)
	loop.Call(func() {})

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, fired)
}

func TestFakeClock_OrderAndStop(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	var got []string

	clock.AfterFunc(3*time.Second, func() { got = append(got, "c") })
	b := clock.AfterFunc(2*time.Second, func() { got = append(got, "b") })
	clock.AfterFunc(time.Second, func() {
		got = append(got, "a")
		clock.AfterFunc(500*time.Millisecond, func() { got = append(got, "a2") })
	})

	assert.True(t, b.Stop())
	assert.False(t, b.Stop())
	clock.Advance(5 * time.Second)

	assert.Equal(t, []string{"a", "a2", "c"}, got)
	assert.Equal(t, 0, clock.Pending())
	assert.Equal(t, time.Unix(5, 0), clock.Now())
}

func TestLoader_EnsureOnce(t *testing.T) {
	calls := 0
	loader := NewLoader(func() { calls++ })
	loader.Ensure()
	loader.Ensure()
	assert.Equal(t, 1, calls)
	assert.False(t, loader.IsReady())

	var order []int
	loader.OnReady(func() { order = append(order, 1) })
	loader.OnReady(func() { order = append(order, 2) })
	assert.Empty(t, order)

	loader.MarkReady()
	loader.MarkReady()
	assert.Equal(t, []int{1, 2}, order)

	loader.OnReady(func() { order = append(order, 3) })
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.True(t, loader.IsReady())
}

func TestPreloadCache_Mark(t *testing.T) {
	c := NewPreloadCache()
	assert.True(t, c.Mark("/a.png"))
	assert.False(t, c.Mark("/a.png"))
	assert.False(t, c.Mark(""))
	assert.True(t, c.Mark("/b.png"))
	assert.Len(t, c.paths, 2)
}
