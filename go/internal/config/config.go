// Package config loads timingd settings from a YAML file, an optional .env
// file, and TIMING_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/timing/go/internal/announcer"
	"github.com/mcdev12/timing/go/internal/countdown"
	"github.com/mcdev12/timing/go/internal/gate"
	"github.com/mcdev12/timing/go/internal/orchestrator"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreYAML     = "yaml"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

type Config struct {
	LogLevel string `yaml:"log-level" env:"TIMING_LOG_LEVEL"`

	Store StoreConfig `yaml:"store" envPrefix:"TIMING_STORE_"`
	Gate  GateConfig  `yaml:"gate" envPrefix:"TIMING_GATE_"`
	API   APIConfig   `yaml:"api" envPrefix:"TIMING_API_"`
	NATS  NATSConfig  `yaml:"nats" envPrefix:"TIMING_NATS_"`

	MOTD       MOTDConfig       `yaml:"motd"`
	Countdowns CountdownsConfig `yaml:"countdowns"`
	Messages   MessagesConfig   `yaml:"messages"`
	Access     AccessConfig     `yaml:"access" envPrefix:"TIMING_ACCESS_"`

	DisableWhitelistOnBeginningEnd bool `yaml:"disable-whitelist-on-beginning-end"`
	KickAllOnRestartEnd            bool `yaml:"kick-all-on-restart-end"`

	Announcements []announcer.Announcement `yaml:"announcements"`
}

type StoreConfig struct {
	Driver string `yaml:"driver" env:"DRIVER"`
	// Path is the file for the yaml and sqlite drivers.
	Path string `yaml:"path" env:"PATH"`
	// DSN for the postgres driver; DB_* variables are used when empty.
	DSN string `yaml:"dsn" env:"DSN"`
	// Listen enables the postgres NOTIFY command channel.
	Listen  bool   `yaml:"listen" env:"LISTEN"`
	Channel string `yaml:"channel" env:"CHANNEL"`
}

type GateConfig struct {
	Enabled     bool   `yaml:"enabled" env:"ENABLED"`
	Listen      string `yaml:"listen" env:"LISTEN"`
	Backend     string `yaml:"backend" env:"BACKEND"`
	VersionName string `yaml:"version-name" env:"VERSION_NAME"`
	MaxPlayers  int    `yaml:"max-players" env:"MAX_PLAYERS"`
}

type APIConfig struct {
	Listen         string   `yaml:"listen" env:"LISTEN"`
	Token          string   `yaml:"token" env:"TOKEN"`
	AllowedOrigins []string `yaml:"allowed-origins" env:"ALLOWED_ORIGINS" envSeparator:","`
}

type NATSConfig struct {
	URL           string `yaml:"url" env:"URL"`
	Stream        string `yaml:"stream" env:"STREAM"`
	SubjectPrefix string `yaml:"subject-prefix" env:"SUBJECT_PREFIX"`
}

type MOTDConfig struct {
	Enabled bool   `yaml:"enabled"`
	Line1   string `yaml:"line1"`
	Line2   string `yaml:"line2"`
}

type TemplateConfig struct {
	Status    string `yaml:"status"`
	Admission string `yaml:"admission,omitempty"`
	Broadcast string `yaml:"broadcast"`
}

type CountdownsConfig struct {
	Beginning TemplateConfig `yaml:"beginning"`
	Restart   TemplateConfig `yaml:"restart"`
	End       TemplateConfig `yaml:"end"`
}

type MessagesConfig struct {
	ServerOpen string `yaml:"server-open"`
	Restart    string `yaml:"restart"`
	FinalKick  string `yaml:"final-kick"`
	EndOpen    string `yaml:"end-open"`
}

type AccessConfig struct {
	Operators  []string `yaml:"operators" env:"OPERATORS" envSeparator:","`
	AllowList  []string `yaml:"allow-list" env:"ALLOW_LIST" envSeparator:","`
	Restricted bool     `yaml:"restricted" env:"RESTRICTED"`
}

// Default returns the configuration written when no file exists.
func Default() Config {
	orch := orchestrator.DefaultConfig()
	templates := orch.Templates
	fromTemplates := func(t countdown.Templates) TemplateConfig {
		return TemplateConfig{Status: t.Status, Admission: t.Admission, Broadcast: t.Broadcast}
	}
	gateDefaults := gate.DefaultConfig()

	return Config{
		LogLevel: "info",
		Store: StoreConfig{
			Driver:  StoreYAML,
			Path:    "timing-state.yml",
			Channel: "timing_commands",
		},
		Gate: GateConfig{
			Listen:      gateDefaults.ListenAddr,
			VersionName: gateDefaults.VersionName,
			MaxPlayers:  gateDefaults.MaxPlayers,
		},
		API: APIConfig{
			Listen: ":8080",
		},
		NATS: NATSConfig{
			Stream:        "TIMING_EVENTS",
			SubjectPrefix: "timing.events",
		},
		MOTD: MOTDConfig{
			Enabled: orch.DefaultStatusEnabled,
			Line1:   "<gradient:gold:yellow><bold>My Server</bold></gradient>",
			Line2:   "<gray>Welcome to the server!</gray>",
		},
		Countdowns: CountdownsConfig{
			Beginning: fromTemplates(templates[countdown.KindBeginning]),
			Restart:   fromTemplates(templates[countdown.KindRestart]),
			End:       fromTemplates(templates[countdown.KindEnd]),
		},
		Messages: MessagesConfig{
			ServerOpen: orch.ServerOpenMessage,
			Restart:    orch.RestartMessage,
			FinalKick:  orch.FinalKickMessage,
			EndOpen:    orch.EndOpenMessage,
		},
		Access: AccessConfig{
			Restricted: true,
		},
		DisableWhitelistOnBeginningEnd: orch.DisableWhitelistOnBeginningEnd,
		KickAllOnRestartEnd:            orch.KickAllOnRestartEnd,
		Announcements: []announcer.Announcement{
			{Name: "welcome", Message: "<gold>Thanks for playing!</gold>", Interval: 10 * time.Minute, Enabled: false},
		},
	}
}

// LoadDotEnv loads .env files into the process environment. A missing file is not an error.
func LoadDotEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}
}

// Load reads path, writing the defaults there first when the file does not
// exist, then applies TIMING_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := writeDefault(path, cfg); err != nil {
			return nil, err
		}
		log.Info().Str("path", path).Msg("wrote default config")
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func writeDefault(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}
	switch c.Store.Driver {
	case StoreMemory, StorePostgres:
	case StoreYAML, StoreSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("%w for driver %s", ErrMissingStorePath, c.Store.Driver)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStoreDriver, c.Store.Driver)
	}
	return nil
}

// Level returns the parsed log level.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// DefaultStatus joins the MOTD lines.
func (c *Config) DefaultStatus() string {
	if c.MOTD.Line2 == "" {
		return c.MOTD.Line1
	}
	return c.MOTD.Line1 + "\n" + c.MOTD.Line2
}

func (t TemplateConfig) templates() countdown.Templates {
	return countdown.Templates{Status: t.Status, Admission: t.Admission, Broadcast: t.Broadcast}
}

// Orchestrator maps the file onto the countdown configuration.
func (c *Config) Orchestrator() orchestrator.Config {
	cfg := orchestrator.DefaultConfig()
	cfg.Templates = map[countdown.Kind]countdown.Templates{
		countdown.KindBeginning: c.Countdowns.Beginning.templates(),
		countdown.KindRestart:   c.Countdowns.Restart.templates(),
		countdown.KindEnd:       c.Countdowns.End.templates(),
	}
	cfg.DisableWhitelistOnBeginningEnd = c.DisableWhitelistOnBeginningEnd
	cfg.KickAllOnRestartEnd = c.KickAllOnRestartEnd
	cfg.ServerOpenMessage = c.Messages.ServerOpen
	cfg.RestartMessage = c.Messages.Restart
	cfg.FinalKickMessage = c.Messages.FinalKick
	cfg.EndOpenMessage = c.Messages.EndOpen
	cfg.DefaultStatusEnabled = c.MOTD.Enabled
	cfg.DefaultStatus = c.DefaultStatus()
	return cfg
}

// GateConfig maps the file onto the Minecraft gate configuration.
func (c *Config) GateConfig() gate.Config {
	cfg := gate.DefaultConfig()
	cfg.ListenAddr = c.Gate.Listen
	cfg.BackendAddr = c.Gate.Backend
	cfg.VersionName = c.Gate.VersionName
	cfg.MaxPlayers = c.Gate.MaxPlayers
	return cfg
}
