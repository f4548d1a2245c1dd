// Package phase holds the durable server phase: whether the server has been
// opened and the remaining seconds of interrupted countdowns.
package phase

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/timing/go/internal/countdown"
)

// State is the in-memory view of the phase record. It is read once from the
// store at startup; started is written through on every change and the saved
// slots are written at shutdown.
type State struct {
	store Store

	mu  sync.RWMutex
	rec Record
}

// NewState creates a State backed by store.
func NewState(store Store) *State {
	return &State{store: store}
}

// Load reads the record from the store. On failure the zero record is kept.
func (s *State) Load(ctx context.Context) error {
	rec, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load phase state: %w", err)
	}
	if rec.BeginningRemaining < 0 {
		rec.BeginningRemaining = 0
	}
	if rec.EndRemaining < 0 {
		rec.EndRemaining = 0
	}

	s.mu.Lock()
	s.rec = rec
	s.mu.Unlock()

	log.Info().
		Bool("started", rec.Started).
		Int("saved_beginning", rec.BeginningRemaining).
		Int("saved_end", rec.EndRemaining).
		Msg("phase state loaded")
	return nil
}

// Started reports whether the server has been opened.
func (s *State) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Started
}

// SetStarted updates the started flag and persists the record. The in-memory
// value is kept even if the write fails.
func (s *State) SetStarted(ctx context.Context, started bool) error {
	s.mu.Lock()
	s.rec.Started = started
	rec := s.rec
	s.mu.Unlock()

	if err := s.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("persist started=%t: %w", started, err)
	}
	return nil
}

// Saved returns the remaining seconds saved for kind.
func (s *State) Saved(kind countdown.Kind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch kind {
	case countdown.KindBeginning:
		return s.rec.BeginningRemaining
	case countdown.KindEnd:
		return s.rec.EndRemaining
	default:
		return 0
	}
}

// SetSaved records remaining seconds for kind in memory. Flush persists it.
func (s *State) SetSaved(kind countdown.Kind, remaining int) error {
	if remaining < 0 {
		remaining = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case countdown.KindBeginning:
		s.rec.BeginningRemaining = remaining
	case countdown.KindEnd:
		s.rec.EndRemaining = remaining
	default:
		return fmt.Errorf("%w: %s", ErrUnknownSlot, kind)
	}
	return nil
}

// TakeSaved returns the saved seconds for kind and clears the slot, persisting
// the cleared value so a crash cannot resume the same countdown twice.
func (s *State) TakeSaved(ctx context.Context, kind countdown.Kind) (int, error) {
	s.mu.Lock()
	var remaining int
	switch kind {
	case countdown.KindBeginning:
		remaining = s.rec.BeginningRemaining
		s.rec.BeginningRemaining = 0
	case countdown.KindEnd:
		remaining = s.rec.EndRemaining
		s.rec.EndRemaining = 0
	default:
		s.mu.Unlock()
		return 0, fmt.Errorf("%w: %s", ErrUnknownSlot, kind)
	}
	rec := s.rec
	s.mu.Unlock()

	if remaining == 0 {
		return 0, nil
	}
	if err := s.store.Save(ctx, rec); err != nil {
		return remaining, fmt.Errorf("clear saved %s countdown: %w", kind, err)
	}
	return remaining, nil
}

// Snapshot returns a copy of the in-memory record.
func (s *State) Snapshot() Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec
}

// Flush writes the whole record to the store.
func (s *State) Flush(ctx context.Context) error {
	rec := s.Snapshot()
	if err := s.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("flush phase state: %w", err)
	}
	log.Info().
		Bool("started", rec.Started).
		Int("saved_beginning", rec.BeginningRemaining).
		Int("saved_end", rec.EndRemaining).
		Msg("phase state saved")
	return nil
}
