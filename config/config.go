// Package config loads bus settings and declarative wiring from TOML.
//
// Beyond scalar settings (queue size, strict mode, log level), a config
// file may carry [[route]] and [[timer]] tables that connect events to
// requests and arm periodic requests without any application code:
//
//	queue_size = 32
//	strict = false
//	log_level = "info"
//
//	[[route]]
//	event = "button:short_press"
//	request = "led.toggle"
//
//	[[timer]]
//	request = "led.blink"
//	payload = '{"on_ms":100,"off_ms":100,"count":1}'
//	interval_ms = 5000
//	repeat = true
package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"

	"github.com/wirebus/wirebus"
)

// Route declares an event-to-request connection.
type Route struct {
	Event   string `toml:"event"`
	Request string `toml:"request"`
	Payload string `toml:"payload"`
}

// Timer declares a scheduled fire-and-forget request.
type Timer struct {
	Request    string `toml:"request"`
	Payload    string `toml:"payload"`
	IntervalMS int64  `toml:"interval_ms"`
	Repeat     bool   `toml:"repeat"`
}

// Config is the TOML representation of bus settings.
type Config struct {
	QueueSize int    `toml:"queue_size"`
	Strict    bool   `toml:"strict"`
	LogLevel  string `toml:"log_level"`

	Routes []Route `toml:"route"`
	Timers []Timer `toml:"timer"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		QueueSize: 16,
		LogLevel:  "info",
	}
}

// Load reads a config file. A missing file is not an error; the defaults
// are returned so a bus can run unconfigured.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes TOML data over the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Level parses the configured log level. Unknown values fall back to
// info.
func (c Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// Options translates the scalar settings into bus construction options.
// The logger is filtered to the configured level.
func (c Config) Options(logger zerolog.Logger) []wirebus.Option {
	return []wirebus.Option{
		wirebus.WithQueueSize(c.QueueSize),
		wirebus.WithStrict(c.Strict),
		wirebus.WithLogger(logger.Level(c.Level())),
	}
}

// Apply installs the declarative wiring on a running bus: strict mode,
// routes via Connect, and timers as services issuing fire-and-forget
// requests. It returns the first error encountered.
func (c Config) Apply(b *wirebus.Bus) error {
	b.SetStrict(c.Strict)

	for _, rt := range c.Routes {
		var payload []byte
		if rt.Payload != "" {
			payload = []byte(rt.Payload)
		}
		if err := b.Connect(rt.Event, rt.Request, payload); err != nil {
			return fmt.Errorf("route %s -> %s: %w", rt.Event, rt.Request, err)
		}
	}

	for _, tm := range c.Timers {
		tm := tm
		fn := func(ctx context.Context) {
			var payload []byte
			if tm.Payload != "" {
				payload = []byte(tm.Payload)
			}
			_, _ = b.Request(ctx, tm.Request, payload, 0)
		}

		interval := time.Duration(tm.IntervalMS) * time.Millisecond
		var err error
		if tm.Repeat {
			_, err = b.Every(fn, interval)
		} else {
			_, err = b.After(fn, interval)
		}
		if err != nil {
			return fmt.Errorf("timer %s: %w", tm.Request, err)
		}
	}

	return nil
}
