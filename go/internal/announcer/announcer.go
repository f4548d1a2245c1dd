// Package announcer broadcasts configured announcements on a fixed interval.
package announcer

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/timing/go/internal/countdown"
)

var (
	ErrUnknownAnnouncement = errors.New("unknown announcement")
	ErrInvalidInterval     = errors.New("invalid announcement interval")
)

// Announcement is one configured message. Interval zero means manual only.
//
// In yaml the interval is whole seconds (interval: 300) or a duration string
// (interval: 5m) and is written back as seconds. JSON carries interval_seconds.
type Announcement struct {
	Name     string
	Message  string
	Interval time.Duration
	Enabled  bool
}

type announcementYAML struct {
	Name     string    `yaml:"name"`
	Message  string    `yaml:"message"`
	Interval yaml.Node `yaml:"interval"`
	Enabled  bool      `yaml:"enabled"`
}

type announcementJSON struct {
	Name            string `json:"name"`
	Message         string `json:"message"`
	IntervalSeconds int    `json:"interval_seconds"`
	Enabled         bool   `json:"enabled"`
}

func (a *Announcement) UnmarshalYAML(node *yaml.Node) error {
	var doc announcementYAML
	if err := node.Decode(&doc); err != nil {
		return err
	}
	interval, err := parseInterval(doc.Interval.Value)
	if err != nil {
		return fmt.Errorf("announcement %s: %w", doc.Name, err)
	}
	*a = Announcement{Name: doc.Name, Message: doc.Message, Interval: interval, Enabled: doc.Enabled}
	return nil
}

func (a Announcement) MarshalYAML() (any, error) {
	return struct {
		Name     string `yaml:"name"`
		Message  string `yaml:"message"`
		Interval int    `yaml:"interval"`
		Enabled  bool   `yaml:"enabled"`
	}{a.Name, a.Message, a.seconds(), a.Enabled}, nil
}

func (a *Announcement) UnmarshalJSON(data []byte) error {
	var doc announcementJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*a = Announcement{
		Name:     doc.Name,
		Message:  doc.Message,
		Interval: time.Duration(doc.IntervalSeconds) * time.Second,
		Enabled:  doc.Enabled,
	}
	return nil
}

func (a Announcement) MarshalJSON() ([]byte, error) {
	return json.Marshal(announcementJSON{
		Name:            a.Name,
		Message:         a.Message,
		IntervalSeconds: a.seconds(),
		Enabled:         a.Enabled,
	})
}

func (a Announcement) seconds() int {
	return int(a.Interval / time.Second)
}

// parseInterval reads whole seconds or a time.ParseDuration string. Empty is zero.
func parseInterval(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidInterval, value)
	}
	return d, nil
}

type Announcer struct {
	scheduler countdown.Scheduler
	notifier  countdown.Notifier

	mu            sync.Mutex
	announcements map[string]Announcement
	tasks         map[string]countdown.Task
}

func New(scheduler countdown.Scheduler, notifier countdown.Notifier) *Announcer {
	return &Announcer{
		scheduler:     scheduler,
		notifier:      notifier,
		announcements: make(map[string]Announcement),
		tasks:         make(map[string]countdown.Task),
	}
}

func key(name string) string {
	return strings.ToLower(name)
}

// Load replaces every announcement and schedules the enabled ones that have an interval.
func (a *Announcer) Load(list []Announcement) error {
	a.StopAll()

	a.mu.Lock()
	defer a.mu.Unlock()

	clear(a.announcements)
	var errs []error
	for _, ann := range list {
		a.announcements[key(ann.Name)] = ann
		if !ann.Enabled || ann.Interval <= 0 {
			continue
		}
		task, err := a.scheduler.RunAtFixedRate(ann.Interval, ann.Interval, func() { a.broadcast(ann) })
		if err != nil {
			errs = append(errs, fmt.Errorf("schedule announcement %s: %w", ann.Name, err))
			continue
		}
		a.tasks[key(ann.Name)] = task
	}

	log.Info().Int("announcements", len(a.announcements)).Int("scheduled", len(a.tasks)).Msg("loaded announcements")
	return errors.Join(errs...)
}

// Broadcast sends the named announcement now.
func (a *Announcer) Broadcast(name string) error {
	a.mu.Lock()
	ann, ok := a.announcements[key(name)]
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAnnouncement, name)
	}
	a.broadcast(ann)
	return nil
}

func (a *Announcer) broadcast(ann Announcement) {
	if !ann.Enabled {
		return
	}
	a.notifier.NotifyAll(ann.Message)
	log.Debug().Str("announcement", ann.Name).Msg("announcement broadcast")
}

// Announcements returns every loaded announcement sorted by name.
func (a *Announcer) Announcements() []Announcement {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Announcement, 0, len(a.announcements))
	for _, ann := range a.announcements {
		out = append(out, ann)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Scheduled reports the names of announcements with a running schedule.
func (a *Announcer) Scheduled() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]string, 0, len(a.tasks))
	for _, ann := range a.announcements {
		if _, ok := a.tasks[key(ann.Name)]; ok {
			out = append(out, ann.Name)
		}
	}
	slices.Sort(out)
	return out
}

// StopAll cancels every scheduled broadcast.
func (a *Announcer) StopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for name, task := range a.tasks {
		task.Cancel()
		delete(a.tasks, name)
	}
}
