package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"10m"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	AuthToken   string `env:"AUTH_TOKEN"`
	CORSOrigins string `env:"CORS_ORIGINS"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile     string `env:"LOG_FILE"`

	TempDir     string `env:"TEMP_DIR"`
	MaxUploadMB int64  `env:"MAX_UPLOAD_MB" envDefault:"64"`
	FFmpegBin   string `env:"FFMPEG_BIN" envDefault:"ffmpeg"`

	TranscribeProvider string        `env:"TRANSCRIBE_PROVIDER" envDefault:"whisper"`
	WhisperURL         string        `env:"WHISPER_URL" envDefault:"http://localhost:8000/v1/audio/transcriptions"`
	WhisperModel       string        `env:"WHISPER_MODEL" envDefault:"small"`
	WhisperTimeout     time.Duration `env:"WHISPER_TIMEOUT" envDefault:"10m"`
	DeepInfraAPIKey    string        `env:"DEEPINFRA_API_KEY"`
	DeepInfraModel     string        `env:"DEEPINFRA_MODEL" envDefault:"openai/whisper-large-v3-turbo"`

	// Extra hallucination phrases, one per line. Watched for changes.
	DenylistFile string `env:"HALLUCINATION_DENYLIST_FILE"`

	TranslateURL     string        `env:"TRANSLATE_URL" envDefault:"https://translate.googleapis.com/translate_a/single"`
	TranslateTarget  string        `env:"TRANSLATE_TARGET" envDefault:"ko"`
	TranslateTimeout time.Duration `env:"TRANSLATE_TIMEOUT" envDefault:"30s"`

	MQTTBrokerURL   string `env:"MQTT_BROKER_URL"`
	MQTTClientID    string `env:"MQTT_CLIENT_ID" envDefault:"lyrics-engine"`
	MQTTTopicPrefix string `env:"MQTT_TOPIC_PREFIX" envDefault:"lyrics-engine"`
	MQTTUsername    string `env:"MQTT_USERNAME"`
	MQTTPassword    string `env:"MQTT_PASSWORD"`
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile            string
	HTTPAddr           string
	LogLevel           string
	TranscribeProvider string
	WhisperURL         string
	TempDir            string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Apply CLI overrides (non-empty values win)
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.TranscribeProvider != "" {
		cfg.TranscribeProvider = overrides.TranscribeProvider
	}
	if overrides.WhisperURL != "" {
		cfg.WhisperURL = overrides.WhisperURL
	}
	if overrides.TempDir != "" {
		cfg.TempDir = overrides.TempDir
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that env tags can't express.
func (c *Config) Validate() error {
	switch strings.ToLower(c.TranscribeProvider) {
	case "whisper":
		if c.WhisperURL == "" {
			return fmt.Errorf("WHISPER_URL is required when TRANSCRIBE_PROVIDER=whisper")
		}
	case "deepinfra":
		if c.DeepInfraAPIKey == "" {
			return fmt.Errorf("DEEPINFRA_API_KEY is required when TRANSCRIBE_PROVIDER=deepinfra")
		}
	default:
		return fmt.Errorf("unknown TRANSCRIBE_PROVIDER %q (want whisper or deepinfra)", c.TranscribeProvider)
	}
	if c.MaxUploadMB < 1 {
		return fmt.Errorf("invalid MAX_UPLOAD_MB %d: must be >= 1", c.MaxUploadMB)
	}
	return nil
}

// CORSOriginList splits CORS_ORIGINS into a list. Empty means allow all.
func (c *Config) CORSOriginList() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// MaxUploadBytes is MAX_UPLOAD_MB in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// MQTTEnabled reports whether an MQTT broker is configured for event publishing.
func (c *Config) MQTTEnabled() bool {
	return c.MQTTBrokerURL != ""
}
