// Package health reports whether timingd and its backing services are usable.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/timing/go/internal/events"
)

// pendingAlert is the queue depth above which the event pipeline is reported as backed up.
const pendingAlert = 200

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Connectivity interface {
	IsConnected() bool
}

type EventStats interface {
	Stats() events.DispatcherStats
}

type Status struct {
	Healthy           bool      `json:"healthy"`
	Started           bool      `json:"started"`
	DatabaseConnected *bool     `json:"database_connected,omitempty"`
	NATSConnected     *bool     `json:"nats_connected,omitempty"`
	EventsPublished   uint64    `json:"events_published"`
	EventsFailed      uint64    `json:"events_failed"`
	EventsDropped     uint64    `json:"events_dropped"`
	PendingEvents     int       `json:"pending_events"`
	LastEventTime     time.Time `json:"last_event_time,omitzero"`
	Errors            []string  `json:"errors"`
}

// Checker checks the configured dependencies. Nil dependencies are skipped.
type Checker struct {
	DB      Pinger
	NATS    Connectivity
	Events  EventStats
	Started func() bool
}

func (c *Checker) Check(ctx context.Context) Status {
	status := Status{
		Healthy: true,
		Errors:  []string{},
	}
	if c.Started != nil {
		status.Started = c.Started()
	}

	// Check database connection
	if c.DB != nil {
		connected := true
		if err := c.DB.PingContext(ctx); err != nil {
			connected = false
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("database ping failed: %v", err))
		}
		status.DatabaseConnected = &connected
	}

	// Check NATS connection
	if c.NATS != nil {
		connected := c.NATS.IsConnected()
		if !connected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
		status.NATSConnected = &connected
	}

	if c.Events != nil {
		stats := c.Events.Stats()
		status.EventsPublished = stats.Published
		status.EventsFailed = stats.Failed
		status.EventsDropped = stats.Dropped
		status.PendingEvents = stats.Pending
		status.LastEventTime = stats.LastPublished

		if !stats.Running {
			status.Healthy = false
			status.Errors = append(status.Errors, "event dispatcher not running")
		}
		if stats.Pending > pendingAlert {
			status.Errors = append(status.Errors, fmt.Sprintf("high pending event count: %d", stats.Pending))
		}
	}

	return status
}

// ServeHTTP writes the status as JSON, with 503 when unhealthy.
func (c *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := c.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to encode health status")
	}
}
