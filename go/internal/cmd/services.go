package main

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/timing/go/internal/access"
	"github.com/mcdev12/timing/go/internal/announcer"
	"github.com/mcdev12/timing/go/internal/config"
	"github.com/mcdev12/timing/go/internal/countdown"
	"github.com/mcdev12/timing/go/internal/events"
	"github.com/mcdev12/timing/go/internal/gate"
	"github.com/mcdev12/timing/go/internal/gateway"
	"github.com/mcdev12/timing/go/internal/orchestrator"
	"github.com/mcdev12/timing/go/internal/phase"
	"github.com/mcdev12/timing/go/internal/store/postgres"
)

type Services struct {
	Storage      *storage
	Scheduler    *countdown.ClockScheduler
	Access       *access.List
	Connections  *gateway.ConnectionManager
	Dispatcher   *events.Dispatcher
	JetStream    *events.JetStreamPublisher
	Orchestrator *orchestrator.Orchestrator
	Announcer    *announcer.Announcer
	Gate         *gate.Gate
	Listener     *postgres.CommandListener
}

func setupServices(ctx context.Context, cfg *config.Config, shutdown func(reason string)) (*Services, error) {
	// Wire up dependency injection chain
	// Storage → Phase → Orchestrator → transports

	storage, err := setupStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("setup store: %w", err)
	}

	s := &Services{
		Storage:     storage,
		Scheduler:   countdown.NewClockScheduler(clockwork.NewRealClock()),
		Access:      access.NewList(cfg.Access.Operators, cfg.Access.AllowList, cfg.Access.Restricted),
		Connections: gateway.NewConnectionManager(gateway.DefaultConnectionConfig()),
	}

	publishers := events.Fanout{events.LogPublisher{}}
	if cfg.NATS.URL != "" {
		jsCfg := events.DefaultJetStreamConfig()
		jsCfg.URL = cfg.NATS.URL
		if cfg.NATS.Stream != "" {
			jsCfg.StreamName = cfg.NATS.Stream
		}
		if cfg.NATS.SubjectPrefix != "" {
			jsCfg.SubjectPrefix = cfg.NATS.SubjectPrefix
		}
		js, err := events.NewJetStreamPublisher(ctx, jsCfg)
		if err != nil {
			// Events are best effort; countdowns run without a broker.
			log.Error().Err(err).Str("url", cfg.NATS.URL).Msg("failed to connect to NATS, events will only be logged")
		} else {
			s.JetStream = js
			publishers = append(publishers, js)
		}
	}
	if storage.db != nil {
		publishers = append(publishers, postgres.NewEventLog(storage.db))
	}
	s.Dispatcher = events.NewDispatcher(publishers, events.DefaultDispatcherConfig())

	s.Orchestrator = orchestrator.New(cfg.Orchestrator(), orchestrator.Deps{
		Scheduler:  s.Scheduler,
		Phase:      phase.NewState(storage.store),
		Sink:       s.Connections,
		Whitelist:  s.Access,
		Privileges: s.Access,
		Events:     s.Dispatcher,
		Shutdown:   shutdown,
	})

	s.Announcer = announcer.New(s.Scheduler, s.Connections)

	if cfg.Gate.Enabled {
		s.Gate = gate.New(cfg.GateConfig(), s.Orchestrator, s.Access)
	}

	if storage.db != nil && cfg.Store.Listen {
		listenerCfg := postgres.DefaultListenerConfig()
		listenerCfg.DatabaseURL = storage.dsn
		if cfg.Store.Channel != "" {
			listenerCfg.Channel = cfg.Store.Channel
		}
		listener, err := postgres.NewCommandListener(s.executeCommand, listenerCfg)
		if err != nil {
			return nil, fmt.Errorf("setup command listener: %w", err)
		}
		s.Listener = listener
	}

	return s, nil
}

func (s *Services) executeCommand(_ context.Context, text string) (string, error) {
	cmd, err := orchestrator.ParseCommand(text)
	if err != nil {
		return "", err
	}
	return s.Orchestrator.Execute(cmd)
}
