package yamlstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mcdev12/timing/go/internal/phase"
)

func TestNewRequiresPath(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "state.yml"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rec, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec != (phase.Record{}) {
		t.Fatalf("Load = %+v, want zero record", rec)
	}
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.yml")
	store, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	want := phase.Record{Started: true, EndRemaining: 120}
	if err := store.Save(context.Background(), want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "end-timer-remaining: 120") {
		t.Fatalf("unexpected file contents:\n%s", data)
	}

	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Fatalf("Load = %+v, want %+v", got, want)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temporary files left behind: %v", entries)
	}
}

func TestLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yml")
	if err := os.WriteFile(path, []byte("server-state:\n  beginning-timer-remaining: 42\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	store, _ := New(path)
	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != (phase.Record{BeginningRemaining: 42}) {
		t.Fatalf("Load = %+v", got)
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yml")
	if err := os.WriteFile(path, []byte("server-state: [unclosed"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	store, _ := New(path)
	if _, err := store.Load(context.Background()); err == nil {
		t.Fatal("expected parse error")
	}
}
