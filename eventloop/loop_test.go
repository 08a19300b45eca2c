package eventloop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManual_RunPending(t *testing.T) {
	m := NewManual()

	var order []int
	m.Post(func() {
		order = append(order, 1)
		m.Post(func() { order = append(order, 3) })
	})
	m.Post(func() { order = append(order, 2) })

	assert.Equal(t, 3, m.RunPending())
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Zero(t, m.Pending())
}

func TestManual_Advance(t *testing.T) {
	m := NewManual()

	var order []string
	m.AfterFunc(50*time.Millisecond, func() { order = append(order, "50ms") })
	m.AfterFunc(10*time.Millisecond, func() {
		order = append(order, "10ms")
		m.AfterFunc(10*time.Millisecond, func() { order = append(order, "20ms") })
	})
	m.AfterFunc(500*time.Millisecond, func() { order = append(order, "500ms") })

	m.Advance(49 * time.Millisecond)
	assert.Equal(t, []string{"10ms", "20ms"}, order)
	assert.Equal(t, 49*time.Millisecond, m.Now())

	m.Advance(time.Millisecond)
	assert.Equal(t, []string{"10ms", "20ms", "50ms"}, order)

	m.Advance(time.Second)
	assert.Equal(t, []string{"10ms", "20ms", "50ms", "500ms"}, order)
}

func TestManual_Stop(t *testing.T) {
	m := NewManual()

	fired := false
	timer := m.AfterFunc(time.Millisecond, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	m.Advance(time.Second)
	assert.False(t, fired)

	timer = m.AfterFunc(time.Millisecond, func() { fired = true })
	m.Advance(time.Second)
	assert.True(t, fired)
	assert.False(t, timer.Stop())
}

func TestManual_Flush(t *testing.T) {
	m := NewManual()

	n := 0
	var again func()
	again = func() {
		n++
		m.AfterFunc(time.Millisecond, again)
	}
	m.Post(again)

	assert.False(t, m.Flush(5))

	m = NewManual()
	m.AfterFunc(time.Hour, func() {})
	assert.True(t, m.Flush(5))
	assert.Equal(t, time.Hour, m.Now())
}

func TestLoop_Run(t *testing.T) {
	l := New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	done := make(chan []string, 1)
	var order []string
	l.Post(func() { order = append(order, "task") })

	stopped := l.AfterFunc(time.Hour, func() { order = append(order, "stopped") })
	require.True(t, stopped.Stop())

	l.AfterFunc(10*time.Millisecond, func() {
		order = append(order, "timer")
		done <- order
	})

	select {
	case got := <-done:
		assert.Equal(t, []string{"task", "timer"}, got)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the timer")
	}

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}
