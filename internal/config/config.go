package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	ProviderNone     = "none"
	ProviderOllama   = "ollama"
	ProviderDeepSeek = "deepseek"

	EnvPrefix = "REMINDERS_"
)

// ErrMissingSecret is returned by Validate when a required credential is
// absent. The server refuses to start on it.
var ErrMissingSecret = errors.New("missing required secret")

type Config struct {
	HTTP       HTTPConfig       `koanf:"http"`
	Database   DatabaseConfig   `koanf:"database"`
	Auth       AuthConfig       `koanf:"auth"`
	Recurrence RecurrenceConfig `koanf:"recurrence"`
	Parser     ParserConfig     `koanf:"parser"`
	Ollama     OllamaConfig     `koanf:"ollama"`
	DeepSeek   DeepSeekConfig   `koanf:"deepseek"`
	Whisper    WhisperConfig    `koanf:"whisper"`
	Worker     WorkerConfig     `koanf:"worker"`
	Log        LogConfig        `koanf:"log"`
}

type HTTPConfig struct {
	Addr                 string        `koanf:"addr"`
	CORSOrigins          string        `koanf:"cors_origins"` // comma separated
	CORSAllowCredentials bool          `koanf:"cors_allow_credentials"`
	RequestTimeout       time.Duration `koanf:"request_timeout"`
}

type DatabaseConfig struct {
	URL string `koanf:"url"`
}

type AuthConfig struct {
	APIToken  string        `koanf:"api_token"`
	JWTSecret string        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl"`
}

type RecurrenceConfig struct {
	HorizonDays    int `koanf:"horizon_days"`
	MaxHorizonDays int `koanf:"max_horizon_days"`
}

type ParserConfig struct {
	Provider   string        `koanf:"provider"`
	Model      string        `koanf:"model"`
	Timeout    time.Duration `koanf:"timeout"`
	MaxRetries int           `koanf:"max_retries"`
}

type OllamaConfig struct {
	BaseURL string `koanf:"base_url"`
}

type DeepSeekConfig struct {
	APIKey string `koanf:"api_key"`
}

type WhisperConfig struct {
	Bin     string        `koanf:"bin"`
	Model   string        `koanf:"model"`
	FFmpeg  string        `koanf:"ffmpeg"`
	Timeout time.Duration `koanf:"timeout"`
}

type WorkerConfig struct {
	Enabled        bool `koanf:"enabled"`
	PollIntervalMS int  `koanf:"poll_interval_ms"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

// legacyEnv maps the plain variable names used by older deployments to
// their config keys. They win over everything else.
var legacyEnv = map[string]string{
	"API_TOKEN":        "auth.api_token",
	"DATABASE_URL":     "database.url",
	"HTTP_ADDR":        "http.addr",
	"JWT_SECRET":       "auth.jwt_secret",
	"DEEPSEEK_API_KEY": "deepseek.api_key",
}

// Load layers defaults, an optional YAML file, REMINDERS_* variables and
// the legacy variables, in that order. A .env file in the working
// directory is read first.
func Load(configPath string) (Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(NewDefaultProvider(), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath == "" {
		configPath = os.Getenv(EnvPrefix + "CONFIG")
	}
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return Config{}, fmt.Errorf("config file: %w", err)
		}
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load env vars: %w", err)
	}

	for name, key := range legacyEnv {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			_ = k.Set(key, v)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// envKey turns REMINDERS_HTTP__CORS_ORIGINS into http.cors_origins.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.APIToken) == "" {
		return fmt.Errorf("%w: API_TOKEN (auth.api_token) must be set", ErrMissingSecret)
	}

	switch c.Parser.Provider {
	case ProviderNone, ProviderOllama:
	case ProviderDeepSeek:
		if c.DeepSeek.APIKey == "" {
			return fmt.Errorf("%w: DeepSeek API key is required (set DEEPSEEK_API_KEY or add to config file)", ErrMissingSecret)
		}
	default:
		return fmt.Errorf("unknown parser provider: %s (supported: %s, %s, %s)",
			c.Parser.Provider, ProviderNone, ProviderOllama, ProviderDeepSeek)
	}

	if c.Recurrence.HorizonDays <= 0 {
		return fmt.Errorf("recurrence.horizon_days must be positive")
	}
	if c.Recurrence.MaxHorizonDays < c.Recurrence.HorizonDays {
		return fmt.Errorf("recurrence.max_horizon_days must be at least horizon_days")
	}
	if c.Parser.MaxRetries < 0 {
		return fmt.Errorf("parser.max_retries must not be negative")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database.url must be set")
	}
	return nil
}

// Origins splits the comma separated CORS origin list.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.HTTP.CORSOrigins, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}

// LogLevel parses log.level, defaulting to INFO.
func (c *Config) LogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Worker.PollIntervalMS) * time.Millisecond
}
