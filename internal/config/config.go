// Package config handles loading and validating the application configuration
// from YAML files with environment variable substitution.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Renderer backends.
const (
	RendererChrome = "chrome"
	RendererStatic = "static"
)

// Config is the top-level application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Renderer      RendererConfig      `yaml:"renderer"`
	Extract       ExtractConfig       `yaml:"extract"`
	Schedule      ScheduleConfig      `yaml:"schedule"`
	Notify        NotifyConfig        `yaml:"notify"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Tracing       TracingConfig       `yaml:"tracing"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig defines the Echo HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns the listen address.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig defines the subscription store. Driver "memory" keeps
// everything in process and needs no other field.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // postgres, memory
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	PoolSize int    `yaml:"pool_size"`
}

// DSN returns a PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode,
	)
}

// RedisConfig defines where failure streaks are kept. An empty URL keeps
// them in memory, which resets them on restart.
type RedisConfig struct {
	URL       string        `yaml:"url"`
	KeyPrefix string        `yaml:"key_prefix"`
	StreakTTL time.Duration `yaml:"streak_ttl"`
}

// RendererConfig selects how product pages are loaded.
type RendererConfig struct {
	Backend        string        `yaml:"backend"` // chrome, static
	ExecPath       string        `yaml:"exec_path"`
	Headless       *bool         `yaml:"headless"`
	UserAgent      string        `yaml:"user_agent"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// ExtractConfig defines per-site request pacing.
type ExtractConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// ScheduleConfig defines the poll cadence and cycle bounds.
type ScheduleConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	Workers      int           `yaml:"workers"`
	ItemTimeout  time.Duration `yaml:"item_timeout"`
	CycleTimeout time.Duration `yaml:"cycle_timeout"`
}

// NotifyConfig defines which change events reach subscribers and when the
// operator hears about failing subscriptions.
type NotifyConfig struct {
	Increase               *bool `yaml:"increase"` // default: true
	Decrease               *bool `yaml:"decrease"` // default: true
	FailureStreakThreshold int   `yaml:"failure_streak_threshold"`
	MaxMessageLength       int   `yaml:"max_message_length"`
}

// NotificationsConfig defines notification targets.
type NotificationsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Discord  DiscordConfig  `yaml:"discord"`
}

// TelegramConfig defines subscriber delivery through the Bot API.
type TelegramConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BotToken   string `yaml:"bot_token"`
	APIBaseURL string `yaml:"api_base_url"`
	ParseMode  string `yaml:"parse_mode"` // HTML, none
}

// DiscordConfig defines the operator webhook.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
	Username   string `yaml:"username"`
	// Mention is prepended to every alert, e.g. "<@&role_id>".
	Mention string `yaml:"mention"`
}

// TracingConfig defines OpenTelemetry export. An empty endpoint disables
// export.
type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Load reads and parses a YAML config file, performing environment variable
// substitution and validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // config path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse expands environment variables in data, decodes it, applies defaults
// and validates the result.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyDatabaseDefaults(&cfg.Database)
	applyRedisDefaults(&cfg.Redis)
	applyRendererDefaults(&cfg.Renderer)
	applyExtractDefaults(&cfg.Extract)
	applyScheduleDefaults(&cfg.Schedule)
	applyNotifyDefaults(&cfg.Notify)
	applyNotificationsDefaults(&cfg.Notifications)
	applyTracingDefaults(&cfg.Tracing)
	applyLoggingDefaults(&cfg.Logging)
}

func applyServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		// A manual check holds the request open for a whole cycle.
		s.WriteTimeout = 5 * time.Minute
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = 30 * time.Second
	}
}

func applyDatabaseDefaults(d *DatabaseConfig) {
	if d.Driver == "" {
		d.Driver = DriverPostgres
	}
	if d.Port == 0 {
		d.Port = 5432
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
	if d.PoolSize == 0 {
		d.PoolSize = 10
	}
}

func applyRedisDefaults(r *RedisConfig) {
	if r.KeyPrefix == "" {
		r.KeyPrefix = "pm:streak:"
	}
	if r.StreakTTL == 0 {
		r.StreakTTL = 7 * 24 * time.Hour
	}
}

func applyRendererDefaults(r *RendererConfig) {
	if r.Backend == "" {
		r.Backend = RendererChrome
	}
	if r.Headless == nil {
		headless := true
		r.Headless = &headless
	}
	if r.RequestTimeout == 0 {
		r.RequestTimeout = 30 * time.Second
	}
}

func applyExtractDefaults(e *ExtractConfig) {
	if e.RequestsPerSecond == 0 {
		e.RequestsPerSecond = 1.0
	}
	if e.Burst == 0 {
		e.Burst = 2
	}
}

func applyScheduleDefaults(s *ScheduleConfig) {
	if s.PollInterval == 0 {
		s.PollInterval = 15 * time.Minute
	}
	if s.Workers == 0 {
		s.Workers = 4
	}
	if s.ItemTimeout == 0 {
		s.ItemTimeout = 45 * time.Second
	}
	if s.CycleTimeout == 0 {
		s.CycleTimeout = 4 * time.Minute
	}
}

func applyNotifyDefaults(n *NotifyConfig) {
	if n.Increase == nil {
		v := true
		n.Increase = &v
	}
	if n.Decrease == nil {
		v := true
		n.Decrease = &v
	}
	if n.FailureStreakThreshold == 0 {
		n.FailureStreakThreshold = 3
	}
	if n.MaxMessageLength == 0 {
		n.MaxMessageLength = 4096
	}
}

func applyNotificationsDefaults(n *NotificationsConfig) {
	if n.Telegram.APIBaseURL == "" {
		n.Telegram.APIBaseURL = "https://api.telegram.org"
	}
	if n.Telegram.ParseMode == "" {
		n.Telegram.ParseMode = "HTML"
	}
}

func applyTracingDefaults(t *TracingConfig) {
	if t.ServiceName == "" {
		t.ServiceName = "price-monitor"
	}
	if t.SampleRatio == 0 {
		t.SampleRatio = 1.0
	}
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}

func validate(cfg *Config) error {
	var errs []error

	switch cfg.Database.Driver {
	case DriverMemory:
	case DriverPostgres:
		if cfg.Database.Host == "" {
			errs = append(errs, fmt.Errorf("database.host is required"))
		}
		if cfg.Database.Name == "" {
			errs = append(errs, fmt.Errorf("database.name is required"))
		}
		if cfg.Database.User == "" {
			errs = append(errs, fmt.Errorf("database.user is required"))
		}
	default:
		errs = append(errs, fmt.Errorf(
			"database.driver must be one of: postgres, memory (got %q)", cfg.Database.Driver,
		))
	}

	if cfg.Redis.URL != "" {
		if u, err := url.Parse(cfg.Redis.URL); err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			errs = append(errs, fmt.Errorf("redis.url must be a redis:// or rediss:// url"))
		}
	}

	switch cfg.Renderer.Backend {
	case RendererChrome, RendererStatic:
	default:
		errs = append(errs, fmt.Errorf(
			"renderer.backend must be one of: chrome, static (got %q)", cfg.Renderer.Backend,
		))
	}

	if cfg.Extract.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("extract.requests_per_second must not be negative"))
	}
	if cfg.Schedule.PollInterval < time.Minute {
		errs = append(errs, fmt.Errorf("schedule.poll_interval must be at least 1m"))
	}
	if cfg.Schedule.Workers < 1 {
		errs = append(errs, fmt.Errorf("schedule.workers must be positive"))
	}
	if cfg.Schedule.ItemTimeout > cfg.Schedule.CycleTimeout {
		errs = append(errs, fmt.Errorf("schedule.item_timeout must not exceed schedule.cycle_timeout"))
	}
	if cfg.Schedule.CycleTimeout >= cfg.Schedule.PollInterval {
		errs = append(errs, fmt.Errorf("schedule.cycle_timeout must be shorter than schedule.poll_interval"))
	}
	if cfg.Notify.FailureStreakThreshold < 0 {
		errs = append(errs, fmt.Errorf("notify.failure_streak_threshold must not be negative"))
	}

	if cfg.Notifications.Telegram.Enabled && cfg.Notifications.Telegram.BotToken == "" {
		errs = append(errs, fmt.Errorf(
			"notifications.telegram.bot_token is required when telegram is enabled",
		))
	}
	switch cfg.Notifications.Telegram.ParseMode {
	case "HTML", "none":
	default:
		errs = append(errs, fmt.Errorf(
			"notifications.telegram.parse_mode must be one of: HTML, none (got %q)",
			cfg.Notifications.Telegram.ParseMode,
		))
	}
	if cfg.Notifications.Discord.Enabled && cfg.Notifications.Discord.WebhookURL == "" {
		errs = append(errs, fmt.Errorf(
			"notifications.discord.webhook_url is required when discord is enabled",
		))
	}

	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_ratio must be between 0 and 1"))
	}

	return errors.Join(errs...)
}
