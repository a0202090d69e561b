package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backbeat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// clearEnv изолирует тест от окружения процесса.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvConfigPath, EnvDatabaseURL, EnvRabbitMQURL, EnvAPIPort, EnvWorkerPort,
		EnvSchedPort, EnvClientTimeout, EnvRelayInterval, EnvLogLevel, EnvLogFormat, EnvTracing,
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 30*time.Second, cfg.Client.Timeout())
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
database:
  url: postgresql://db.internal/backbeat
ports:
  api: 9000
relay:
  interval: "@every 10s"
worker:
  poll_interval: 30s
log:
  level: debug
`)
	t.Setenv(EnvConfigPath, path)
	t.Setenv(EnvAPIPort, "9100")
	t.Setenv(EnvClientTimeout, "5")
	t.Setenv(EnvTracing, "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgresql://db.internal/backbeat", cfg.Database.URL)
	assert.Equal(t, int32(10), cfg.Database.MaxConns, "keys missing from the file keep defaults")
	assert.Equal(t, 9100, cfg.Ports.API, "env overrides the file")
	assert.Equal(t, 8081, cfg.Ports.Worker)
	assert.Equal(t, "@every 10s", cfg.Relay.Interval)
	assert.Equal(t, 30*time.Second, cfg.Worker.PollInterval)
	assert.Equal(t, "DEBUG", cfg.Log.Level)
	assert.Equal(t, 5*time.Second, cfg.Client.Timeout())
	assert.True(t, cfg.Tracing.Enabled)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		env     map[string]string
		wantErr error
	}{
		{
			name:    "bad port",
			env:     map[string]string{EnvWorkerPort: "eighty"},
			wantErr: ErrInvalidEnv,
		},
		{
			name:    "port out of range",
			env:     map[string]string{EnvAPIPort: "70000"},
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "unknown log level",
			env:     map[string]string{EnvLogLevel: "verbose"},
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "broken yaml",
			file:    "ports: [",
			wantErr: ErrInvalidConfig,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			if tt.file != "" {
				t.Setenv(EnvConfigPath, writeFile(t, tt.file))
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvConfigPath, filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	assert.ErrorIs(t, err, os.ErrNotExist)
}
