// Package events carries countdown lifecycle events to external consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type names an event. It doubles as the last subject token when published to NATS.
type Type string

const (
	TypeTimerStarted   Type = "TimerStarted"
	TypeTimerStopped   Type = "TimerStopped"
	TypeTimerThreshold Type = "TimerThreshold"
	TypeTimerCompleted Type = "TimerCompleted"
	TypeTimerResumed   Type = "TimerResumed"
	TypePhaseChanged   Type = "PhaseChanged"
)

// Event is one lifecycle occurrence. Kind is empty for phase events.
type Event struct {
	ID        uuid.UUID       `json:"eventId"`
	Type      Type            `json:"eventType"`
	Kind      string          `json:"kind,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// New builds an Event with a fresh ID, marshalling payload as JSON.
func New(typ Type, kind string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	return Event{
		ID:        uuid.New(),
		Type:      typ,
		Kind:      kind,
		Timestamp: time.Now().UTC(),
		Payload:   data,
	}, nil
}

// Publisher delivers events somewhere outside the process.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
