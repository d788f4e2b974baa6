package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
)

// Config is the daemon configuration
type Config struct {
	Link    LinkConfig
	HTTP    HTTPConfig
	Log     LogConfig
	Journal JournalConfig
	Redis   RedisConfig
}

// LinkConfig describes the connection to the display
type LinkConfig struct {
	Name           string
	Device         string // socket://host:port, tcp://host:port or a serial device path
	Baud           int
	Timeout        time.Duration
	QueueCapacity  int
	MaxLinkStates  int
	MaxFatalErrors int
	PollInterval   time.Duration
}

type HTTPConfig struct {
	Listen string
}

type LogConfig struct {
	Level      string
	File       string // empty logs to stderr
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type JournalConfig struct {
	Path string // empty disables the journal
}

type RedisConfig struct {
	Addr    string // empty disables publishing
	DB      int
	Channel string
}

type fileConfig struct {
	Link struct {
		Name           string `toml:"name"`
		Device         string `toml:"device"`
		Baud           int    `toml:"baud"`
		Timeout        string `toml:"timeout"`
		QueueCapacity  int    `toml:"queue_capacity"`
		MaxLinkStates  int    `toml:"max_link_states"`
		MaxFatalErrors int    `toml:"max_fatal_errors"`
		PollInterval   string `toml:"poll_interval"`
	} `toml:"link"`
	HTTP struct {
		Listen string `toml:"listen"`
	} `toml:"http"`
	Log struct {
		Level      string `toml:"level"`
		File       string `toml:"file"`
		MaxSizeMB  int    `toml:"max_size_mb"`
		MaxBackups int    `toml:"max_backups"`
		MaxAgeDays int    `toml:"max_age_days"`
	} `toml:"log"`
	Journal struct {
		Path string `toml:"path"`
	} `toml:"journal"`
	Redis struct {
		Addr    string `toml:"addr"`
		DB      int    `toml:"db"`
		Channel string `toml:"channel"`
	} `toml:"redis"`
}

// Default returns the configuration used for anything the file leaves out
func Default() Config {
	return Config{
		Link: LinkConfig{
			Name:           "display",
			Baud:           9600,
			Timeout:        time.Second,
			QueueCapacity:  16,
			MaxLinkStates:  20,
			MaxFatalErrors: 10,
			PollInterval:   time.Millisecond,
		},
		HTTP: HTTPConfig{Listen: ":8080"},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Redis: RedisConfig{Channel: "genie:events"},
	}
}

// Load reads a TOML file on top of the defaults and validates the result
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read reads a TOML file on top of the defaults without validating it
func Read(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		log.Warnf("Ignoring unknown config keys: %v", undecoded)
	}

	str := func(key string, v string, dst *string) {
		if meta.IsDefined(strings.Split(key, ".")...) {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, v int, dst *int) {
		if meta.IsDefined(strings.Split(key, ".")...) {
			*dst = v
		}
	}
	dur := func(key string, v string, dst *time.Duration) error {
		if !meta.IsDefined(strings.Split(key, ".")...) {
			return nil
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse %s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str("link.name", raw.Link.Name, &cfg.Link.Name)
	str("link.device", raw.Link.Device, &cfg.Link.Device)
	num("link.baud", raw.Link.Baud, &cfg.Link.Baud)
	num("link.queue_capacity", raw.Link.QueueCapacity, &cfg.Link.QueueCapacity)
	num("link.max_link_states", raw.Link.MaxLinkStates, &cfg.Link.MaxLinkStates)
	num("link.max_fatal_errors", raw.Link.MaxFatalErrors, &cfg.Link.MaxFatalErrors)
	if err := dur("link.timeout", raw.Link.Timeout, &cfg.Link.Timeout); err != nil {
		return Config{}, err
	}
	if err := dur("link.poll_interval", raw.Link.PollInterval, &cfg.Link.PollInterval); err != nil {
		return Config{}, err
	}
	str("http.listen", raw.HTTP.Listen, &cfg.HTTP.Listen)
	str("log.level", raw.Log.Level, &cfg.Log.Level)
	str("log.file", raw.Log.File, &cfg.Log.File)
	num("log.max_size_mb", raw.Log.MaxSizeMB, &cfg.Log.MaxSizeMB)
	num("log.max_backups", raw.Log.MaxBackups, &cfg.Log.MaxBackups)
	num("log.max_age_days", raw.Log.MaxAgeDays, &cfg.Log.MaxAgeDays)
	str("journal.path", raw.Journal.Path, &cfg.Journal.Path)
	str("redis.addr", raw.Redis.Addr, &cfg.Redis.Addr)
	num("redis.db", raw.Redis.DB, &cfg.Redis.DB)
	str("redis.channel", raw.Redis.Channel, &cfg.Redis.Channel)

	return cfg, nil
}

// Validate checks the values that can not be corrected silently
func (c Config) Validate() error {
	if c.Link.Device == "" {
		return fmt.Errorf("link.device is required")
	}
	if _, err := url.Parse(c.Link.Device); err != nil {
		return fmt.Errorf("link.device: %w", err)
	}
	if c.Link.Baud <= 0 {
		return fmt.Errorf("link.baud must be positive, got %d", c.Link.Baud)
	}
	if c.Link.Timeout <= 0 {
		return fmt.Errorf("link.timeout must be positive, got %v", c.Link.Timeout)
	}
	if c.Link.QueueCapacity < 3 {
		return fmt.Errorf("link.queue_capacity must be at least 3, got %d", c.Link.QueueCapacity)
	}
	if c.Link.MaxLinkStates < 2 {
		return fmt.Errorf("link.max_link_states must be at least 2, got %d", c.Link.MaxLinkStates)
	}
	if c.Link.MaxFatalErrors < 0 {
		return fmt.Errorf("link.max_fatal_errors must not be negative, got %d", c.Link.MaxFatalErrors)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Redis.Addr != "" && c.Redis.Channel == "" {
		return fmt.Errorf("redis.channel is required when redis.addr is set")
	}
	return nil
}
