package aio

import "context"

// Stream yields the values of get that differ from the previously yielded
// one, suspending on the notifier in between.
//
// Changes happening while nobody pulls are coalesced: the next pull sees only
// the latest value. A Stream is not safe for concurrent pulls; build one per
// consumer.
type Stream[T comparable] struct {
	notifier *Notifier
	get      func() T

	prev    T
	started bool
}

func NewStream[T comparable](notifier *Notifier, get func() T) *Stream[T] {
	return &Stream[T]{notifier: notifier, get: get}
}

// Next blocks until a value different from the last one is available.
// The first call returns the current value immediately.
func (s *Stream[T]) Next(ctx context.Context) (T, error) {
	for {
		// The wait channel is taken before reading so a change landing
		// between the read and the wait is not lost.
		wake := s.notifier.Wait()

		current := s.get()
		if !s.started || current != s.prev {
			s.started = true
			s.prev = current
			return current, nil
		}

		select {
		case <-wake:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Chan pumps the stream into a channel until ctx is done.
// The channel is unbuffered and closed when the pump stops.
func (s *Stream[T]) Chan(ctx context.Context) <-chan T {
	ch := make(chan T)
	go func() {
		defer close(ch)
		for {
			value, err := s.Next(ctx)
			if err != nil {
				return
			}
			select {
			case ch <- value:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
