package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/mcdev12/timing/go/internal/countdown"
	"github.com/mcdev12/timing/go/internal/orchestrator"
)

func TestLoadWritesDefaultsWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "timing.yml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default file to be written: %v", err)
	}
	if cfg.Store.Driver != StoreYAML {
		t.Errorf("expected yaml store by default, got %q", cfg.Store.Driver)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	want := orchestrator.DefaultConfig()
	got := again.Orchestrator()
	for _, kind := range countdown.Kinds {
		if got.Templates[kind] != want.Templates[kind] {
			t.Errorf("%s templates changed across write and reload: %+v", kind, got.Templates[kind])
		}
	}
	if got.DefaultStatus != want.DefaultStatus {
		t.Errorf("expected default MOTD %q, got %q", want.DefaultStatus, got.DefaultStatus)
	}
	if len(again.Announcements) != 1 || again.Announcements[0].Interval != 10*time.Minute {
		t.Errorf("unexpected announcements %+v", again.Announcements)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timing.yml")
	data := []byte(`
log-level: debug
store:
  driver: memory
motd:
  enabled: false
  line1: "<aqua>Hello</aqua>"
countdowns:
  beginning:
    status: "Opening in {time}"
    admission: "Wait {time}"
    broadcast: "{time} left"
messages:
  server-open: "Open!"
access:
  operators: [notch]
  restricted: true
announcements:
  - name: vote
    message: Vote!
    interval: 5m
    enabled: true
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("TIMING_STORE_DRIVER", "sqlite")
	t.Setenv("TIMING_STORE_PATH", "/var/lib/timing/state.db")
	t.Setenv("TIMING_ACCESS_OPERATORS", "notch,jeb_")
	t.Setenv("TIMING_API_TOKEN", "secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Store.Driver != StoreSQLite || cfg.Store.Path != "/var/lib/timing/state.db" {
		t.Errorf("expected env store override, got %+v", cfg.Store)
	}
	if !slices.Equal(cfg.Access.Operators, []string{"notch", "jeb_"}) {
		t.Errorf("expected env operators, got %v", cfg.Access.Operators)
	}
	if cfg.API.Token != "secret" {
		t.Errorf("expected token from env, got %q", cfg.API.Token)
	}
	if cfg.Level().String() != "debug" {
		t.Errorf("expected debug level, got %s", cfg.Level())
	}

	orch := cfg.Orchestrator()
	if orch.DefaultStatusEnabled {
		t.Error("expected MOTD disabled")
	}
	// line2 is absent from the file and keeps its default.
	if want := "<aqua>Hello</aqua>\n<gray>Welcome to the server!</gray>"; orch.DefaultStatus != want {
		t.Errorf("expected MOTD %q, got %q", want, orch.DefaultStatus)
	}
	if orch.Templates[countdown.KindBeginning].Status != "Opening in {time}" {
		t.Errorf("unexpected beginning templates %+v", orch.Templates[countdown.KindBeginning])
	}
	if orch.ServerOpenMessage != "Open!" {
		t.Errorf("unexpected server open message %q", orch.ServerOpenMessage)
	}
	// Keys absent from the file keep their defaults.
	if orch.RestartMessage != orchestrator.DefaultConfig().RestartMessage {
		t.Errorf("expected default restart message, got %q", orch.RestartMessage)
	}
	if len(cfg.Announcements) != 1 || cfg.Announcements[0].Interval != 5*time.Minute {
		t.Errorf("unexpected announcements %+v", cfg.Announcements)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"defaults", func(*Config) {}, nil},
		{"unknown driver", func(c *Config) { c.Store.Driver = "redis" }, ErrUnknownStoreDriver},
		{"sqlite without path", func(c *Config) { c.Store.Driver = StoreSQLite; c.Store.Path = "" }, ErrMissingStorePath},
		{"postgres without path", func(c *Config) { c.Store.Driver = StorePostgres; c.Store.Path = "" }, nil},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, ErrInvalidLogLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestGateConfig(t *testing.T) {
	cfg := Default()
	cfg.Gate.Backend = "127.0.0.1:25566"
	cfg.Gate.MaxPlayers = 50

	gc := cfg.GateConfig()
	if gc.BackendAddr != "127.0.0.1:25566" || gc.MaxPlayers != 50 || gc.ListenAddr != ":25565" {
		t.Errorf("unexpected gate config %+v", gc)
	}
}
