package genie

import (
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Config holds the engine configuration.
type Config struct {
	// Name tags every log line of the link, a random UUID by default
	Name string

	// Logger is the parent logger, logrus' standard logger by default
	Logger *log.Logger

	// Metrics receives counters for the link (optional)
	Metrics *Metrics

	// Timeout bounds WaitForIdle and the payload reads of magic reports.
	// Every received byte restarts it.
	Timeout time.Duration

	// QueueCapacity is the number of slots of the event queue, two are kept free
	QueueCapacity int

	// MaxLinkStates bounds the nesting of link states, a push beyond forces a resync
	MaxLinkStates int

	// MaxFatalErrors is the number of checksum, timeout and overflow errors
	// tolerated in a row before the link is resynchronized
	MaxFatalErrors int

	// PollRate paces the busy loops waiting for the display
	PollRate rate.Limit
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Name:           uuid.NewString(),
		Logger:         log.StandardLogger(),
		Timeout:        1000 * time.Millisecond,
		QueueCapacity:  16,
		MaxLinkStates:  20,
		MaxFatalErrors: 10,
		PollRate:       rate.Every(time.Millisecond),
	}
}

// Option is a functional option for configuring the Engine.
type Option func(*Config)

// WithName sets the link name used in log lines and metric labels.
func WithName(name string) Option {
	return func(c *Config) {
		if name != "" {
			c.Name = name
		}
	}
}

// WithLogger sets the logger of the engine.
func WithLogger(logger *log.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithMetrics attaches Prometheus metrics, see NewMetrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithTimeout sets the idle wait and payload read timeout. Default is one second.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.Timeout = timeout
		}
	}
}

// WithQueueCapacity sets the number of event queue slots, at least 3.
func WithQueueCapacity(n int) Option {
	return func(c *Config) {
		if n > queueMargin {
			c.QueueCapacity = n
		}
	}
}

// WithMaxLinkStates sets the depth of the link state stack, at least 2.
func WithMaxLinkStates(n int) Option {
	return func(c *Config) {
		if n >= 2 {
			c.MaxLinkStates = n
		}
	}
}

// WithMaxFatalErrors sets the fatal error threshold. Zero disables the forced resync.
func WithMaxFatalErrors(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.MaxFatalErrors = n
		}
	}
}

// WithPollRate sets how often the waiting loops poll the transport.
// rate.Inf disables pacing.
func WithPollRate(r rate.Limit) Option {
	return func(c *Config) {
		if r > 0 {
			c.PollRate = r
		}
	}
}
