package dispatcher

import "github.com/dshills/mvpkit/internal/logging"

// DefaultGuardWindow is how many recent gesture tokens are remembered per action.
const DefaultGuardWindow = 64

// Config holds dispatcher configuration options.
type Config struct {
	// EnableMetrics enables dispatch timing and statistics collection.
	EnableMetrics bool

	// GuardWindow bounds the per-action gesture history used to suppress
	// duplicate dispatches. Values <= 0 use DefaultGuardWindow.
	GuardWindow int

	// Logger receives dispatch diagnostics. Nil means no logging.
	Logger logging.Logger
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		EnableMetrics: false,
		GuardWindow:   DefaultGuardWindow,
	}
}

// WithMetrics returns a copy of the config with metrics enabled.
func (c Config) WithMetrics() Config {
	c.EnableMetrics = true
	return c
}

// WithGuardWindow returns a copy of the config with the gesture window set.
func (c Config) WithGuardWindow(n int) Config {
	c.GuardWindow = n
	return c
}

// WithLogger returns a copy of the config with the logger set.
func (c Config) WithLogger(l logging.Logger) Config {
	c.Logger = l
	return c
}
