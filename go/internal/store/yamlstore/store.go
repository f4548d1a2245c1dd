// Package yamlstore persists the phase record as a small YAML file.
package yamlstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/timing/go/internal/phase"
)

// document mirrors the layout of the state file:
//
//	server-state:
//	  started: true
//	  beginning-timer-remaining: 0
//	  end-timer-remaining: 120
type document struct {
	ServerState phase.Record `yaml:"server-state"`
}

// Store reads and writes one YAML file. Writes go to a temporary file that is
// renamed over the original.
type Store struct {
	path string
	mu   sync.Mutex
}

// New returns a Store for path. The file is created on the first Save.
func New(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("state file path is required")
	}
	return &Store{path: filepath.Clean(path)}, nil
}

func (s *Store) Load(ctx context.Context) (phase.Record, error) {
	if err := ctx.Err(); err != nil {
		return phase.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return phase.Record{}, nil
	}
	if err != nil {
		return phase.Record{}, fmt.Errorf("read state file: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return phase.Record{}, fmt.Errorf("parse state file %s: %w", s.path, err)
	}
	return doc.ServerState, nil
}

func (s *Store) Save(ctx context.Context, rec phase.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := yaml.Marshal(document{ServerState: rec})
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
