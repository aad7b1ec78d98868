package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalDB = `
database:
  host: localhost
  name: testdb
  user: testuser
`

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		yaml      string
		envVars   map[string]string
		wantErr   string
		checkFunc func(t *testing.T, cfg *Config)
	}{
		{
			name: "valid minimal config",
			yaml: minimalDB,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, DriverPostgres, cfg.Database.Driver)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, "testdb", cfg.Database.Name)
				assert.Equal(t, "testuser", cfg.Database.User)
			},
		},
		{
			name: "defaults applied for optional fields",
			yaml: minimalDB,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
				assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 5*time.Minute, cfg.Server.WriteTimeout)
				assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "disable", cfg.Database.SSLMode)
				assert.Equal(t, 10, cfg.Database.PoolSize)
				assert.Empty(t, cfg.Redis.URL)
				assert.Equal(t, "pm:streak:", cfg.Redis.KeyPrefix)
				assert.Equal(t, 7*24*time.Hour, cfg.Redis.StreakTTL)
				assert.Equal(t, RendererChrome, cfg.Renderer.Backend)
				require.NotNil(t, cfg.Renderer.Headless)
				assert.True(t, *cfg.Renderer.Headless)
				assert.Equal(t, 30*time.Second, cfg.Renderer.RequestTimeout)
				assert.InDelta(t, 1.0, cfg.Extract.RequestsPerSecond, 0.001)
				assert.Equal(t, 2, cfg.Extract.Burst)
				assert.Equal(t, 15*time.Minute, cfg.Schedule.PollInterval)
				assert.Equal(t, 4, cfg.Schedule.Workers)
				assert.Equal(t, 45*time.Second, cfg.Schedule.ItemTimeout)
				assert.Equal(t, 4*time.Minute, cfg.Schedule.CycleTimeout)
				require.NotNil(t, cfg.Notify.Increase)
				assert.True(t, *cfg.Notify.Increase)
				require.NotNil(t, cfg.Notify.Decrease)
				assert.True(t, *cfg.Notify.Decrease)
				assert.Equal(t, 3, cfg.Notify.FailureStreakThreshold)
				assert.Equal(t, 4096, cfg.Notify.MaxMessageLength)
				assert.Equal(t, "https://api.telegram.org", cfg.Notifications.Telegram.APIBaseURL)
				assert.Equal(t, "HTML", cfg.Notifications.Telegram.ParseMode)
				assert.Equal(t, "price-monitor", cfg.Tracing.ServiceName)
				assert.InDelta(t, 1.0, cfg.Tracing.SampleRatio, 0.001)
				assert.Equal(t, "info", cfg.Logging.Level)
				assert.Equal(t, "text", cfg.Logging.Format)
			},
		},
		{
			name: "memory driver needs no connection settings",
			yaml: `
database:
  driver: memory
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, DriverMemory, cfg.Database.Driver)
			},
		},
		{
			name: "env var substitution",
			yaml: minimalDB + `  password: "${TEST_DB_PASSWORD}"
notifications:
  telegram:
    enabled: true
    bot_token: "${TEST_BOT_TOKEN}"
`,
			envVars: map[string]string{
				"TEST_DB_PASSWORD": "secret123",
				"TEST_BOT_TOKEN":   "123:abc",
			},
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "secret123", cfg.Database.Password)
				assert.Equal(t, "123:abc", cfg.Notifications.Telegram.BotToken)
			},
		},
		{
			name: "explicit false notify flags survive defaults",
			yaml: minimalDB + `
notify:
  increase: false
  failure_streak_threshold: 5
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.False(t, *cfg.Notify.Increase)
				assert.True(t, *cfg.Notify.Decrease)
				assert.Equal(t, 5, cfg.Notify.FailureStreakThreshold)
			},
		},
		{
			name: "missing required database.host",
			yaml: `
database:
  name: testdb
  user: testuser
`,
			wantErr: "database.host is required",
		},
		{
			name: "missing required database.name",
			yaml: `
database:
  host: localhost
  user: testuser
`,
			wantErr: "database.name is required",
		},
		{
			name: "unknown database driver",
			yaml: `
database:
  driver: sqlite
`,
			wantErr: "database.driver must be one of",
		},
		{
			name: "unknown renderer",
			yaml: minimalDB + `
renderer:
  backend: firefox
`,
			wantErr: "renderer.backend must be one of",
		},
		{
			name: "bad redis url",
			yaml: minimalDB + `
redis:
  url: http://localhost:6379
`,
			wantErr: "redis.url must be",
		},
		{
			name: "poll interval too short",
			yaml: minimalDB + `
schedule:
  poll_interval: 30s
  cycle_timeout: 20s
  item_timeout: 10s
`,
			wantErr: "schedule.poll_interval must be at least 1m",
		},
		{
			name: "cycle timeout not shorter than interval",
			yaml: minimalDB + `
schedule:
  poll_interval: 2m
  cycle_timeout: 2m
`,
			wantErr: "schedule.cycle_timeout must be shorter",
		},
		{
			name: "item timeout exceeds cycle timeout",
			yaml: minimalDB + `
schedule:
  item_timeout: 5m
  cycle_timeout: 1m
`,
			wantErr: "schedule.item_timeout must not exceed",
		},
		{
			name: "telegram enabled without token",
			yaml: minimalDB + `
notifications:
  telegram:
    enabled: true
`,
			wantErr: "notifications.telegram.bot_token is required",
		},
		{
			name: "discord enabled without webhook",
			yaml: minimalDB + `
notifications:
  discord:
    enabled: true
`,
			wantErr: "notifications.discord.webhook_url is required",
		},
		{
			name: "bad parse mode",
			yaml: minimalDB + `
notifications:
  telegram:
    parse_mode: Markdown
`,
			wantErr: "parse_mode must be one of",
		},
		{
			name: "multiple errors are joined",
			yaml: `
database:
  host: localhost
renderer:
  backend: firefox
`,
			wantErr: "database.name is required\ndatabase.user is required\nrenderer.backend",
		},
		{
			name:    "invalid yaml",
			yaml:    "database: [",
			wantErr: "parsing config YAML",
		},
		{
			name: "full config",
			yaml: `
server:
  host: 127.0.0.1
  port: 9090
database:
  host: db
  port: 5433
  name: prices
  user: pm
  pool_size: 20
redis:
  url: redis://localhost:6379/2
renderer:
  backend: static
  user_agent: test-agent
extract:
  requests_per_second: 0.5
  burst: 1
schedule:
  poll_interval: 30m
  workers: 8
notifications:
  telegram:
    enabled: true
    bot_token: token
    parse_mode: none
  discord:
    enabled: true
    webhook_url: https://discord.com/api/webhooks/123
    username: price-monitor
    mention: "<@&42>"
tracing:
  endpoint: otel-collector:4317
  insecure: true
  sample_ratio: 0.25
logging:
  level: debug
  format: json
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr())
				assert.Equal(t, 5433, cfg.Database.Port)
				assert.Equal(t, 20, cfg.Database.PoolSize)
				assert.Equal(t, "redis://localhost:6379/2", cfg.Redis.URL)
				assert.Equal(t, RendererStatic, cfg.Renderer.Backend)
				assert.Equal(t, "test-agent", cfg.Renderer.UserAgent)
				assert.InDelta(t, 0.5, cfg.Extract.RequestsPerSecond, 0.001)
				assert.Equal(t, 30*time.Minute, cfg.Schedule.PollInterval)
				assert.Equal(t, 8, cfg.Schedule.Workers)
				assert.Equal(t, "none", cfg.Notifications.Telegram.ParseMode)
				assert.True(t, cfg.Notifications.Discord.Enabled)
				assert.Equal(t, "price-monitor", cfg.Notifications.Discord.Username)
				assert.Equal(t, "<@&42>", cfg.Notifications.Discord.Mention)
				assert.Equal(t, "otel-collector:4317", cfg.Tracing.Endpoint)
				assert.True(t, cfg.Tracing.Insecure)
				assert.InDelta(t, 0.25, cfg.Tracing.SampleRatio, 0.001)
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, "json", cfg.Logging.Format)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Only parallelize tests that don't modify env vars.
			if len(tt.envVars) == 0 {
				t.Parallel()
			}

			// Set env vars for this test.
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			// Write YAML to a temp file.
			dir := t.TempDir()
			path := filepath.Join(dir, "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))

			cfg, err := Load(path)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			if tt.checkFunc != nil {
				tt.checkFunc(t, cfg)
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	t.Parallel()

	_, err := Load("/nonexistent/path/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "basic DSN",
			cfg: DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				Name:     "testdb",
				User:     "testuser",
				Password: "testpass",
				SSLMode:  "disable",
			},
			want: "host=localhost port=5432 dbname=testdb user=testuser password=testpass sslmode=disable",
		},
		{
			name: "production DSN",
			cfg: DatabaseConfig{
				Host:     "db.example.com",
				Port:     5433,
				Name:     "tracker",
				User:     "admin",
				Password: "s3cret",
				SSLMode:  "require",
			},
			want: "host=db.example.com port=5433 dbname=tracker user=admin password=s3cret sslmode=require",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.cfg.DSN())
		})
	}
}
