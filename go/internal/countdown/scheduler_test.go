package countdown

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func waitFired(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not fire")
	}
}

func blockUntil(t *testing.T, clock *clockwork.FakeClock, waiters int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, waiters); err != nil {
		t.Fatalf("waiting for %d clock waiters: %v", waiters, err)
	}
}

func TestClockSchedulerRunLater(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewClockScheduler(clock)
	defer s.Close()

	fired := make(chan struct{}, 1)
	if _, err := s.RunLater(5*time.Second, func() { fired <- struct{}{} }); err != nil {
		t.Fatalf("RunLater: %v", err)
	}

	blockUntil(t, clock, 1)
	clock.Advance(4 * time.Second)
	select {
	case <-fired:
		t.Fatal("fired before delay elapsed")
	default:
	}
	clock.Advance(time.Second)
	waitFired(t, fired)
}

func TestClockSchedulerFixedRate(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewClockScheduler(clock)
	defer s.Close()

	fired := make(chan struct{}, 10)
	task, err := s.RunAtFixedRate(0, time.Second, func() { fired <- struct{}{} })
	if err != nil {
		t.Fatalf("RunAtFixedRate: %v", err)
	}

	// First call happens without advancing the clock.
	waitFired(t, fired)

	for i := 0; i < 3; i++ {
		blockUntil(t, clock, 1)
		clock.Advance(time.Second)
		waitFired(t, fired)
	}

	task.Cancel()
	task.Cancel()
}

func TestClockSchedulerCancelBeforeFire(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewClockScheduler(clock)

	fired := make(chan struct{}, 1)
	task, err := s.RunLater(time.Second, func() { fired <- struct{}{} })
	if err != nil {
		t.Fatalf("RunLater: %v", err)
	}
	blockUntil(t, clock, 1)
	task.Cancel()
	s.Close()

	clock.Advance(time.Second)
	select {
	case <-fired:
		t.Fatal("cancelled task fired")
	default:
	}
}

func TestClockSchedulerClosed(t *testing.T) {
	s := NewClockScheduler(clockwork.NewFakeClock())
	s.Close()
	s.Close()

	if _, err := s.RunLater(time.Second, func() {}); !errors.Is(err, ErrSchedulerClosed) {
		t.Fatalf("RunLater after Close: got %v, want ErrSchedulerClosed", err)
	}
	if _, err := s.RunAtFixedRate(0, time.Second, func() {}); !errors.Is(err, ErrSchedulerClosed) {
		t.Fatalf("RunAtFixedRate after Close: got %v, want ErrSchedulerClosed", err)
	}
}
