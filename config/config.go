/*
Package config loads the service configuration.

FILE FORMAT (YAML, every key optional):

	database: standing-orders.db
	log_level: info
	http:
	  port: 8080
	  allowed_origins: ["http://localhost:5173"]
	scheduler:
	  enabled: true
	  run_at: "06:00"
	  timezone: Asia/Tokyo
	  template_timeout: 2m
	carriers:
	  yamato: ["Yamato Transport", "ヤマト運輸"]
	master_data: master.yaml
	temporal:
	  host: localhost:7233
	  task_queue: standing-orders
	  cron: "0 6 * * *"

Unknown keys are rejected so typos fail loudly. Command-line flags
override file values (see cli/).
*/
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/warp/standing-orders/carrier"
	"github.com/warp/standing-orders/scheduler"
)

type Config struct {
	Database   string              `yaml:"database"`
	LogLevel   string              `yaml:"log_level"`
	HTTP       HTTP                `yaml:"http"`
	Scheduler  Scheduler           `yaml:"scheduler"`
	Carriers   map[string][]string `yaml:"carriers"`
	MasterData string              `yaml:"master_data"`
	Temporal   Temporal            `yaml:"temporal"`
}

type HTTP struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type Scheduler struct {
	Enabled         bool          `yaml:"enabled"`
	RunAt           string        `yaml:"run_at"`
	Timezone        string        `yaml:"timezone"`
	TemplateTimeout time.Duration `yaml:"template_timeout"`
}

type Temporal struct {
	Host      string `yaml:"host"`
	Namespace string `yaml:"namespace"`
	TaskQueue string `yaml:"task_queue"`
	Cron      string `yaml:"cron"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Database: "standing-orders.db",
		LogLevel: "info",
		HTTP: HTTP{
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
		},
		Scheduler: Scheduler{
			Enabled:         true,
			RunAt:           "06:00",
			Timezone:        "Asia/Tokyo",
			TemplateTimeout: scheduler.DefaultTemplateTimeout,
		},
		Temporal: Temporal{
			Host:      "localhost:7233",
			Namespace: "default",
			TaskQueue: "standing-orders",
			Cron:      "0 6 * * *",
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks values the YAML types cannot.
func (c Config) Validate() error {
	var problems []string
	if c.Database == "" {
		problems = append(problems, "database is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		problems = append(problems, fmt.Sprintf("http.port %d out of range", c.HTTP.Port))
	}
	if _, _, err := scheduler.ParseRunAt(c.Scheduler.RunAt); err != nil {
		problems = append(problems, "scheduler."+err.Error())
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		problems = append(problems, fmt.Sprintf("scheduler.timezone %q: %v", c.Scheduler.Timezone, err))
	}
	if c.Scheduler.TemplateTimeout < 0 {
		problems = append(problems, "scheduler.template_timeout must not be negative")
	}
	for name := range c.Carriers {
		if _, ok := carrier.DefaultAliases[carrier.Kind(name)]; !ok {
			problems = append(problems, fmt.Sprintf("carriers.%s: unknown carrier", name))
		}
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Location returns the scheduler timezone.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CarrierAliases converts the carriers section for carrier.NewRegistry.
func (c Config) CarrierAliases() map[carrier.Kind][]string {
	out := make(map[carrier.Kind][]string, len(c.Carriers))
	for name, aliases := range c.Carriers {
		out[carrier.Kind(name)] = aliases
	}
	return out
}

// ParseLogLevel maps debug/info/warn/error to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level %q: want debug, info, warn or error", s)
	}
	return level, nil
}
