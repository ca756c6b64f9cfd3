package aio

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type source struct {
	notifier *Notifier
	value    atomic.Int32
}

func (s *source) set(v int32) {
	s.value.Store(v)
	s.notifier.Notify()
}

func (s *source) get() int32 {
	return s.value.Load()
}

func TestStreamFirstValueIsImmediate(t *testing.T) {
	src := &source{notifier: NewNotifier()}
	src.value.Store(7)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	v, err := NewStream(src.notifier, src.get).Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(7), v)
}

func TestStreamCoalescesChanges(t *testing.T) {
	src := &source{notifier: NewNotifier()}
	stream := NewStream(src.notifier, src.get)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	v, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(0), v)

	src.set(1)
	src.set(2)

	v, err = stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), v)
}

func TestStreamSkipsDuplicates(t *testing.T) {
	src := &source{notifier: NewNotifier()}
	stream := NewStream(src.notifier, src.get)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := stream.Next(ctx)
	require.NoError(t, err)

	got := make(chan int32, 1)
	go func() {
		v, err := stream.Next(ctx)
		if err == nil {
			got <- v
		}
	}()

	// Notifications without a change must not produce a value.
	for i := 0; i < 5; i++ {
		time.Sleep(5 * time.Millisecond)
		src.notifier.Notify()
	}
	select {
	case v := <-got:
		t.Fatalf("unexpected emission %d", v)
	default:
	}

	src.set(3)
	select {
	case v := <-got:
		assert.Equal(t, int32(3), v)
	case <-time.After(time.Second):
		t.Fatal("change was not emitted")
	}
}

func TestStreamNextHonoursContext(t *testing.T) {
	src := &source{notifier: NewNotifier()}
	stream := NewStream(src.notifier, src.get)

	_, err := stream.Next(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = stream.Next(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStreamChan(t *testing.T) {
	src := &source{notifier: NewNotifier()}
	ctx, cancel := context.WithCancel(context.Background())

	ch := NewStream(src.notifier, src.get).Chan(ctx)
	assert.Equal(t, int32(0), <-ch)

	src.set(4)
	assert.Equal(t, int32(4), <-ch)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}
