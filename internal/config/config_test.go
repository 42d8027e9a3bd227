package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// isolate runs the test from an empty directory so a developer's .env
// does not leak in, and clears the variables Load reads.
func isolate(t *testing.T) {
	t.Chdir(t.TempDir())
	for name := range legacyEnv {
		t.Setenv(name, "")
	}
	t.Setenv(EnvPrefix+"CONFIG", "")
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8000", cfg.HTTP.Addr)
	require.Equal(t, 60*time.Second, cfg.HTTP.RequestTimeout)
	require.Equal(t, "reminders.db", cfg.Database.URL)
	require.Equal(t, 90, cfg.Recurrence.HorizonDays)
	require.Equal(t, ProviderNone, cfg.Parser.Provider)
	require.Equal(t, 720*time.Hour, cfg.Auth.TokenTTL)
	require.True(t, cfg.Worker.Enabled)
	require.Equal(t, 800*time.Millisecond, cfg.PollInterval())

	require.ErrorIs(t, cfg.Validate(), ErrMissingSecret)
}

func TestLoad_FileThenEnvThenLegacy(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":9000"
  cors_origins: "http://a.test, http://b.test"
database:
  url: "from-file.db"
recurrence:
  horizon_days: 30
log:
  level: debug
`), 0o600))

	t.Setenv("REMINDERS_DATABASE__URL", "from-env.db")
	t.Setenv("REMINDERS_WORKER__ENABLED", "false")
	t.Setenv("API_TOKEN", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.HTTP.Addr)
	require.Equal(t, "from-env.db", cfg.Database.URL)
	require.Equal(t, 30, cfg.Recurrence.HorizonDays)
	require.False(t, cfg.Worker.Enabled)
	require.Equal(t, "s3cret", cfg.Auth.APIToken)
	require.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Origins())
	require.Equal(t, slog.LevelDebug, cfg.LogLevel())
	require.NoError(t, cfg.Validate())

	t.Setenv("DATABASE_URL", "legacy.db")
	cfg, err = Load(path)
	require.NoError(t, err)
	require.Equal(t, "legacy.db", cfg.Database.URL)
}

func TestLoad_MissingFile(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	isolate(t)
	t.Setenv("API_TOKEN", "x")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	cfg.Parser.Provider = ProviderDeepSeek
	require.ErrorIs(t, cfg.Validate(), ErrMissingSecret)
	cfg.DeepSeek.APIKey = "k"
	require.NoError(t, cfg.Validate())

	cfg.Parser.Provider = "gpt"
	require.Error(t, cfg.Validate())

	cfg.Parser.Provider = ProviderNone
	cfg.Recurrence.MaxHorizonDays = 10
	require.Error(t, cfg.Validate())
}
