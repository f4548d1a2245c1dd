package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrDispatcherRunning is returned by Start on a dispatcher that is already running.
var ErrDispatcherRunning = errors.New("event dispatcher already running")

type DispatcherConfig struct {
	QueueSize  int
	MaxRetries int
	RetryDelay time.Duration
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		QueueSize:  256,
		MaxRetries: 3,
		RetryDelay: 500 * time.Millisecond,
	}
}

// Dispatcher decouples event producers from slow publishers. Emit never
// blocks; a background worker drains the queue and retries failed publishes.
type Dispatcher struct {
	publisher Publisher
	config    DispatcherConfig
	queue     chan Event

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup

	published     atomic.Uint64
	failed        atomic.Uint64
	dropped       atomic.Uint64
	lastPublished atomic.Int64
}

// DispatcherStats counts what the dispatcher has done since it was created.
type DispatcherStats struct {
	Running       bool
	Pending       int
	Published     uint64
	Failed        uint64
	Dropped       uint64
	LastPublished time.Time
}

func (d *Dispatcher) Stats() DispatcherStats {
	d.mu.Lock()
	running := d.running
	d.mu.Unlock()

	stats := DispatcherStats{
		Running:   running,
		Pending:   len(d.queue),
		Published: d.published.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
	}
	if ns := d.lastPublished.Load(); ns != 0 {
		stats.LastPublished = time.Unix(0, ns)
	}
	return stats
}

func NewDispatcher(publisher Publisher, cfg DispatcherConfig) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultDispatcherConfig().QueueSize
	}
	return &Dispatcher{
		publisher: publisher,
		config:    cfg,
		queue:     make(chan Event, cfg.QueueSize),
		stopChan:  make(chan struct{}),
	}
}

// Emit builds an event and queues it. Failures are logged and dropped.
func (d *Dispatcher) Emit(typ Type, kind string, payload any) {
	event, err := New(typ, kind, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(typ)).Msg("failed to build event")
		return
	}
	select {
	case d.queue <- event:
	default:
		d.dropped.Add(1)
		log.Warn().
			Str("event_type", string(typ)).
			Str("kind", kind).
			Msg("event queue full, dropping event")
	}
}

func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return ErrDispatcherRunning
	}
	d.running = true
	d.mu.Unlock()

	d.wg.Add(1)
	go d.run(ctx)

	log.Info().Int("queue_size", d.config.QueueSize).Msg("event dispatcher started")
	return nil
}

// Stop drains what is already queued and waits for the worker to exit.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	close(d.stopChan)
	d.wg.Wait()
	log.Info().Msg("event dispatcher stopped")
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopChan:
			d.drain(ctx)
			return
		case event := <-d.queue:
			d.publish(ctx, event)
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case event := <-d.queue:
			d.publish(ctx, event)
		default:
			return
		}
	}
}

func (d *Dispatcher) publish(ctx context.Context, event Event) {
	if err := d.publishWithRetry(ctx, event); err != nil {
		d.failed.Add(1)
		log.Error().
			Err(err).
			Str("event_id", event.ID.String()).
			Str("event_type", string(event.Type)).
			Msg("failed to publish event")
		return
	}
	d.published.Add(1)
	d.lastPublished.Store(time.Now().UnixNano())
}

func (d *Dispatcher) publishWithRetry(ctx context.Context, event Event) error {
	var lastErr error
	for attempt := 0; attempt <= d.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.config.RetryDelay * time.Duration(attempt)):
			}
		}

		if err := d.publisher.Publish(ctx, event); err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Str("event_id", event.ID.String()).
				Int("attempt", attempt+1).
				Msg("failed to publish event, retrying")
			continue
		}
		return nil
	}
	return fmt.Errorf("publish after %d attempts: %w", d.config.MaxRetries+1, lastErr)
}

// Fanout publishes every event to each of its publishers and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogPublisher writes events to the log. It is used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, event Event) error {
	log.Debug().
		Str("event_id", event.ID.String()).
		Str("event_type", string(event.Type)).
		Str("kind", event.Kind).
		RawJSON("payload", event.Payload).
		Msg("event")
	return nil
}
