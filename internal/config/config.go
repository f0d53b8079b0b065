package config

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":5000"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"90s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	MaxBodyBytes int64         `env:"HTTP_MAX_BODY_BYTES" envDefault:"26214400"`

	AuthToken   string `env:"AUTH_TOKEN"`
	CORSOrigins string `env:"CORS_ORIGINS"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Document store
	StoreBackend    string `env:"STORE_BACKEND" envDefault:"postgres"`
	DatabaseURL     string `env:"DATABASE_URL"`
	SQLitePath      string `env:"SQLITE_PATH" envDefault:"./data/courses.db"`
	FirebaseProject string `env:"FIREBASE_PROJECT_ID"`
	FirebaseCreds   string `env:"FIREBASE_CREDENTIALS_FILE" envDefault:"serviceAccountKey.json"`

	// Catalog
	CatalogBaseURL  string        `env:"CATALOG_BASE_URL" envDefault:"https://www.coursera.org"`
	CatalogPageSize int           `env:"CATALOG_PAGE_SIZE" envDefault:"20"`
	CatalogTimeout  time.Duration `env:"CATALOG_TIMEOUT" envDefault:"30s"`
	CatalogRetries  int           `env:"CATALOG_MAX_ATTEMPTS" envDefault:"3"`

	// Speech recognition
	SpeechAPIKey     string        `env:"GOOGLE_SPEECH_API_KEY"`
	SpeechBackend    string        `env:"SPEECH_BACKEND" envDefault:"rest"`
	SpeechBaseURL    string        `env:"SPEECH_BASE_URL" envDefault:"https://speech.googleapis.com"`
	SpeechTimeout    time.Duration `env:"SPEECH_TIMEOUT" envDefault:"60s"`
	SpeechLanguage   string        `env:"SPEECH_DEFAULT_LANGUAGE" envDefault:"en-US"`
	FFmpegPath       string        `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	TranscodeTimeout time.Duration `env:"TRANSCODE_TIMEOUT" envDefault:"30s"`
	TranscodeWorkers int           `env:"TRANSCODE_CONCURRENCY" envDefault:"4"`
	SpeechRateLimit  float64       `env:"SPEECH_RATE_LIMIT" envDefault:"0"`
	SpeechRateBurst  int           `env:"SPEECH_RATE_BURST" envDefault:"5"`

	// Transcoded audio archive
	AudioArchive string `env:"AUDIO_ARCHIVE" envDefault:"none"`
	AudioDir     string `env:"AUDIO_DIR" envDefault:"./audio"`
	S3           S3Config

	// Optional event publishing
	MQTTBrokerURL   string `env:"MQTT_BROKER_URL"`
	MQTTClientID    string `env:"MQTT_CLIENT_ID" envDefault:"spacecareer-api"`
	MQTTUsername    string `env:"MQTT_USERNAME"`
	MQTTPassword    string `env:"MQTT_PASSWORD"`
	MQTTTopicPrefix string `env:"MQTT_TOPIC_PREFIX" envDefault:"spacecareer"`
}

// S3Config holds the object store settings used when AUDIO_ARCHIVE=s3.
type S3Config struct {
	Bucket    string `env:"S3_BUCKET"`
	Endpoint  string `env:"S3_ENDPOINT"`
	Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	AccessKey string `env:"S3_ACCESS_KEY"`
	SecretKey string `env:"S3_SECRET_KEY"`
	Prefix    string `env:"S3_PREFIX"`
}

// Enabled reports whether enough S3 settings are present to build a client.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile      string
	HTTPAddr     string
	LogLevel     string
	DatabaseURL  string
	StoreBackend string
	FFmpegPath   string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
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

	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.DatabaseURL != "" {
		cfg.DatabaseURL = overrides.DatabaseURL
	}
	if overrides.StoreBackend != "" {
		cfg.StoreBackend = overrides.StoreBackend
	}
	if overrides.FFmpegPath != "" {
		cfg.FFmpegPath = overrides.FFmpegPath
	}

	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	cfg.SpeechBackend = strings.ToLower(strings.TrimSpace(cfg.SpeechBackend))
	cfg.AudioArchive = strings.ToLower(strings.TrimSpace(cfg.AudioArchive))

	return cfg, nil
}

// Validate checks settings that can only be judged together. It does not
// touch the network; ffmpeg is resolved against PATH so a missing toolchain
// stops the process at startup instead of on the first request.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORE_BACKEND=sqlite")
		}
	case "firestore":
		if c.FirebaseProject == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID is required when STORE_BACKEND=firestore")
		}
		if _, err := os.Stat(c.FirebaseCreds); err != nil {
			return fmt.Errorf("firestore credentials file %q: %w", c.FirebaseCreds, err)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (want postgres, sqlite or firestore)", c.StoreBackend)
	}

	switch c.SpeechBackend {
	case "rest", "grpc":
	default:
		return fmt.Errorf("unknown SPEECH_BACKEND %q (want rest or grpc)", c.SpeechBackend)
	}

	switch c.AudioArchive {
	case "none", "local":
	case "s3":
		if !c.S3.Enabled() {
			return fmt.Errorf("S3_BUCKET is required when AUDIO_ARCHIVE=s3")
		}
	default:
		return fmt.Errorf("unknown AUDIO_ARCHIVE %q (want none, local or s3)", c.AudioArchive)
	}

	if c.CatalogPageSize < 1 {
		return fmt.Errorf("CATALOG_PAGE_SIZE must be >= 1, got %d", c.CatalogPageSize)
	}

	path, err := exec.LookPath(c.FFmpegPath)
	if err != nil {
		return fmt.Errorf("ffmpeg not found (FFMPEG_PATH=%q): %w", c.FFmpegPath, err)
	}
	c.FFmpegPath = path

	return nil
}

// CORSOriginList returns the configured CORS origins, or nil for "allow all".
func (c *Config) CORSOriginList() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}
