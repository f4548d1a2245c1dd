package orchestrator

import (
	"time"

	"github.com/mcdev12/timing/go/internal/countdown"
)

// Config holds the text and behaviour switches of the lifecycle countdowns.
type Config struct {
	Templates map[countdown.Kind]countdown.Templates

	// DisableWhitelistOnBeginningEnd lifts the whitelist when the Beginning countdown completes.
	DisableWhitelistOnBeginningEnd bool
	// KickAllOnRestartEnd disconnects every observer when the Restart countdown completes.
	KickAllOnRestartEnd bool

	ServerOpenMessage string
	RestartMessage    string
	FinalKickMessage  string
	EndOpenMessage    string

	DefaultStatusEnabled bool
	DefaultStatus        string

	ResumeDelay    time.Duration
	ShutdownGrace  time.Duration
	PersistTimeout time.Duration
}

func DefaultTemplates() map[countdown.Kind]countdown.Templates {
	return map[countdown.Kind]countdown.Templates{
		countdown.KindBeginning: {
			Status:    "<red><bold>Server Starting</bold></red>\n<yellow>Starting in: <white>{time}</white></yellow>",
			Admission: "<red><bold>Server is Starting!</bold></red>\n\n<yellow>The server will open in <white>{time}</white></yellow>",
			Broadcast: "<yellow>Server starting in <white>{time}</white></yellow>",
		},
		countdown.KindRestart: {
			Status:    "<red><bold>Server Restarting</bold></red>\n<yellow>Stopping in: <white>{time}</white></yellow>",
			Admission: "<red><bold>Server is Stopping!</bold></red>\n\n<yellow>The server will stop in <white>{time}</white></yellow>",
			Broadcast: "<red>Server restarting in <white>{time}</white></red>",
		},
		countdown.KindEnd: {
			Status:    "<light_purple><bold>The End</bold></light_purple>\n<yellow>Opens in: <white>{time}</white></yellow>",
			Broadcast: "<light_purple>The End opens in <white>{time}</white></light_purple>",
		},
	}
}

func DefaultConfig() Config {
	return Config{
		Templates:                      DefaultTemplates(),
		DisableWhitelistOnBeginningEnd: true,
		KickAllOnRestartEnd:            true,
		ServerOpenMessage:              "<green><bold>Server is now open!</bold></green>",
		RestartMessage:                 "<red><bold>Server is restarting now!</bold></red>",
		FinalKickMessage:               "<red><bold>Server Stopped</bold></red>\n\n<gray>Please reconnect shortly!</gray>",
		EndOpenMessage:                 "<light_purple><bold>The End is now open!</bold></light_purple>",
		DefaultStatusEnabled:           true,
		DefaultStatus:                  "<gradient:gold:yellow><bold>My Server</bold></gradient>\n<gray>Welcome to the server!</gray>",
		ResumeDelay:                    time.Second,
		ShutdownGrace:                  2 * time.Second,
		PersistTimeout:                 5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Templates == nil {
		c.Templates = def.Templates
	}
	if c.ResumeDelay <= 0 {
		c.ResumeDelay = def.ResumeDelay
	}
	if c.ShutdownGrace < 0 {
		c.ShutdownGrace = 0
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = def.PersistTimeout
	}
	return c
}
