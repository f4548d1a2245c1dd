package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

type ListenerConfig struct {
	DatabaseURL  string // Postgres DSN for LISTEN/NOTIFY
	Channel      string // Channel name to LISTEN on
	PingInterval time.Duration
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		Channel:      DefaultCommandChannel,
		PingInterval: 90 * time.Second,
	}
}

// CommandHandler executes one text command and returns feedback for the log.
type CommandHandler func(ctx context.Context, command string) (string, error)

// CommandListener turns NOTIFY payloads such as 'start beginning 60' into
// countdown commands.
type CommandListener struct {
	listener *pq.Listener
	handler  CommandHandler
	cfg      ListenerConfig
}

func NewCommandListener(handler CommandHandler, cfg ListenerConfig) (*CommandListener, error) {
	if cfg.Channel == "" {
		cfg.Channel = DefaultCommandChannel
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultListenerConfig().PingInterval
	}

	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.Channel); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().Str("channel", cfg.Channel).Msg("listening for commands")

	return &CommandListener{
		listener: l,
		handler:  handler,
		cfg:      cfg,
	}, nil
}

// Start blocks, dispatching notifications until ctx is cancelled.
func (l *CommandListener) Start(ctx context.Context) error {
	pingTicker := time.NewTicker(l.cfg.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("command listener shutting down")
			return l.Stop()
		case note := <-l.listener.Notify:
			if note == nil {
				// nil notification means the connection was re-established
				continue
			}
			if err := l.handleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Str("payload", note.Extra).Msg("failed to handle command")
			}
		case <-pingTicker.C:
			if err := l.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

func (l *CommandListener) Stop() error {
	return l.listener.Close()
}

// handleNotification runs the command carried in a notification payload.
func (l *CommandListener) handleNotification(ctx context.Context, extra string) error {
	command := strings.TrimSpace(extra)
	if command == "" {
		return fmt.Errorf("empty command")
	}
	feedback, err := l.handler(ctx, command)
	if err != nil {
		return fmt.Errorf("command %q: %w", command, err)
	}
	log.Info().Str("command", command).Str("result", feedback).Msg("command executed")
	return nil
}
