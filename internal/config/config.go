package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/dshills/mvpkit/internal/logging"
)

// Config holds all runtime settings.
type Config struct {
	Log        LogConfig        `toml:"log" yaml:"log" envPrefix:"LOG_"`
	Scheduler  SchedulerConfig  `toml:"scheduler" yaml:"scheduler" envPrefix:"SCHEDULER_"`
	Dispatcher DispatcherConfig `toml:"dispatcher" yaml:"dispatcher" envPrefix:"DISPATCHER_"`
	Events     EventsConfig     `toml:"events" yaml:"events" envPrefix:"EVENTS_"`
	Manifest   ManifestConfig   `toml:"manifest" yaml:"manifest" envPrefix:"MANIFEST_"`
	Editor     EditorConfig     `toml:"editor" yaml:"editor" envPrefix:"EDITOR_"`

	// Scripts are Lua files that register scripted actions at startup.
	Scripts []string `toml:"scripts" yaml:"scripts" env:"SCRIPTS" envSeparator:","`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `toml:"level" yaml:"level" env:"LEVEL"`
	Format string `toml:"format" yaml:"format" env:"FORMAT"`
}

// SchedulerConfig configures the background delivery loop.
type SchedulerConfig struct {
	QueueSize int `toml:"queue_size" yaml:"queue_size" env:"QUEUE_SIZE"`
}

// DispatcherConfig configures the action dispatcher.
type DispatcherConfig struct {
	GuardWindow int  `toml:"guard_window" yaml:"guard_window" env:"GUARD_WINDOW"`
	Metrics     bool `toml:"metrics" yaml:"metrics" env:"METRICS"`
}

// EventsConfig configures the event aggregator.
type EventsConfig struct {
	// SweepInterval is how often dead subscriptions are dropped. Zero
	// disables the sweeper; dead subscriptions are still purged on publish.
	SweepInterval Duration `toml:"sweep_interval" yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
}

// ManifestConfig locates the trigger binding manifest.
type ManifestConfig struct {
	Path  string `toml:"path" yaml:"path" env:"PATH"`
	Watch bool   `toml:"watch" yaml:"watch" env:"WATCH"`
}

// EditorConfig configures the demo editor.
type EditorConfig struct {
	// AutosaveInterval is how often a modified document is saved in the
	// background. Zero disables autosave.
	AutosaveInterval Duration `toml:"autosave_interval" yaml:"autosave_interval" env:"AUTOSAVE_INTERVAL"`
}

// Duration is a time.Duration written as "30s" in files and environment.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Scheduler: SchedulerConfig{
			QueueSize: 1024,
		},
		Dispatcher: DispatcherConfig{
			GuardWindow: 64,
		},
		Events: EventsConfig{
			SweepInterval: Duration{30 * time.Second},
		},
		Editor: EditorConfig{
			AutosaveInterval: Duration{10 * time.Second},
		},
	}
}

// Validate checks the configuration and returns a *ValidationError listing
// every problem, or nil.
func (c Config) Validate() error {
	var problems []string

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		problems = append(problems, fmt.Sprintf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format %q is not text or json", c.Log.Format))
	}
	if c.Scheduler.QueueSize <= 0 {
		problems = append(problems, "scheduler.queue_size must be positive")
	}
	if c.Dispatcher.GuardWindow <= 0 {
		problems = append(problems, "dispatcher.guard_window must be positive")
	}
	if c.Events.SweepInterval.Duration < 0 {
		problems = append(problems, "events.sweep_interval cannot be negative")
	}
	if c.Editor.AutosaveInterval.Duration < 0 {
		problems = append(problems, "editor.autosave_interval cannot be negative")
	}
	if c.Manifest.Watch && c.Manifest.Path == "" {
		problems = append(problems, "manifest.watch requires manifest.path")
	}
	for i, s := range c.Scripts {
		if strings.TrimSpace(s) == "" {
			problems = append(problems, fmt.Sprintf("scripts[%d] is empty", i))
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Logging returns the logger configuration for c.
func (c Config) Logging() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = logging.ParseLevel(c.Log.Level)
	lc.Format = strings.ToLower(c.Log.Format)
	return lc
}
