package config

import (
	"github.com/knadh/koanf/providers/confmap"
)

func DefaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"http": map[string]interface{}{
			"addr":                   ":8000",
			"cors_origins":           "",
			"cors_allow_credentials": false,
			"request_timeout":        "60s",
		},
		"database": map[string]interface{}{
			"url": "reminders.db",
		},
		"auth": map[string]interface{}{
			"api_token":  "",
			"jwt_secret": "",
			"token_ttl":  "720h",
		},
		"recurrence": map[string]interface{}{
			"horizon_days":     90,
			"max_horizon_days": 3650,
		},
		"parser": map[string]interface{}{
			"provider":    ProviderNone,
			"model":       "llama3.2:3b",
			"timeout":     "30s",
			"max_retries": 2,
		},
		"ollama": map[string]interface{}{
			"base_url": "http://localhost:11434",
		},
		"deepseek": map[string]interface{}{
			"api_key": "",
		},
		"whisper": map[string]interface{}{
			"bin":     "whisper-cli",
			"model":   "models/ggml-base.en.bin",
			"ffmpeg":  "ffmpeg",
			"timeout": "120s",
		},
		"worker": map[string]interface{}{
			"enabled":          true,
			"poll_interval_ms": 800,
		},
		"log": map[string]interface{}{
			"level": "INFO",
		},
	}
}

func NewDefaultProvider() *confmap.Confmap {
	return confmap.Provider(DefaultConfig(), ".")
}
