package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestHandleNotification(t *testing.T) {
	var got []string
	l := &CommandListener{
		handler: func(_ context.Context, command string) (string, error) {
			got = append(got, command)
			if strings.HasPrefix(command, "stop") {
				return "", errors.New("not running")
			}
			return "ok", nil
		},
		cfg: DefaultListenerConfig(),
	}

	ctx := context.Background()
	if err := l.handleNotification(ctx, "  start beginning 60\n"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := l.handleNotification(ctx, "stop end"); err == nil {
		t.Fatal("expected handler error to surface")
	}
	if err := l.handleNotification(ctx, "   "); err == nil {
		t.Fatal("expected error for empty payload")
	}
	if len(got) != 2 || got[0] != "start beginning 60" {
		t.Fatalf("handler saw %q", got)
	}
}

func TestSchemaCoversTables(t *testing.T) {
	for _, table := range []string{"timing_phase_state", "timing_events"} {
		if !strings.Contains(Schema, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("schema missing %s", table)
		}
	}
}
