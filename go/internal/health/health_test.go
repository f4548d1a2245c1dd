package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mcdev12/timing/go/internal/events"
)

type fakeDB struct{ err error }

func (f fakeDB) PingContext(context.Context) error { return f.err }

type fakeNATS bool

func (f fakeNATS) IsConnected() bool { return bool(f) }

type fakeEvents events.DispatcherStats

func (f fakeEvents) Stats() events.DispatcherStats { return events.DispatcherStats(f) }

func TestCheck(t *testing.T) {
	tests := []struct {
		name        string
		checker     Checker
		wantHealthy bool
		wantErrors  int
	}{
		{"nothing configured", Checker{}, true, 0},
		{"all good", Checker{DB: fakeDB{}, NATS: fakeNATS(true), Events: fakeEvents{Running: true}}, true, 0},
		{"database down", Checker{DB: fakeDB{err: errors.New("refused")}}, false, 1},
		{"nats down", Checker{NATS: fakeNATS(false)}, false, 1},
		{"dispatcher stopped", Checker{Events: fakeEvents{}}, false, 1},
		{"backlog only warns", Checker{Events: fakeEvents{Running: true, Pending: pendingAlert + 1}}, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := tt.checker.Check(context.Background())
			if status.Healthy != tt.wantHealthy {
				t.Errorf("expected healthy=%v, got %+v", tt.wantHealthy, status)
			}
			if len(status.Errors) != tt.wantErrors {
				t.Errorf("expected %d errors, got %v", tt.wantErrors, status.Errors)
			}
		})
	}
}

func TestServeHTTP(t *testing.T) {
	checker := &Checker{
		NATS:    fakeNATS(false),
		Started: func() bool { return true },
	}

	rec := httptest.NewRecorder()
	checker.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	var status Status
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.Started || status.NATSConnected == nil || *status.NATSConnected {
		t.Errorf("unexpected status %+v", status)
	}
	if status.DatabaseConnected != nil {
		t.Error("expected database to be omitted when not configured")
	}
}
