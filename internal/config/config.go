package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Classifier backends
const (
	ClassifierCommand = "command"
	ClassifierOllama  = "ollama"
)

// Config holds everything the service needs at startup. It is passed
// explicitly to the components that use it.
type Config struct {
	Addr            string        `env:"ADDR"             envDefault:":5000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS"  envDefault:"http://localhost:5173,https://emotion-diamond-fe.vercel.app,http://emotion-diamond-fe.vercel.app"`

	UploadDir      string `env:"UPLOAD_DIR"       envDefault:"uploads"`
	FramesDir      string `env:"FRAMES_DIR"       envDefault:"frames"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" envDefault:"52428800"`

	Workers        int           `env:"WORKERS"         envDefault:"4"`
	FrameWidth     int           `env:"FRAME_WIDTH"     envDefault:"240"`
	FrameStep      int           `env:"FRAME_STEP"      envDefault:"15"`
	FFmpegPath     string        `env:"FFMPEG_PATH"     envDefault:"ffmpeg"`
	ExtractTimeout time.Duration `env:"EXTRACT_TIMEOUT" envDefault:"0s"`

	Classifier        string        `env:"CLASSIFIER"         envDefault:"command"`
	ClassifierCommand string        `env:"CLASSIFIER_COMMAND" envDefault:"deepface-emotion"`
	ClassifierArgs    []string      `env:"CLASSIFIER_ARGS"    envSeparator:" "`
	ClassifyTimeout   time.Duration `env:"CLASSIFY_TIMEOUT"   envDefault:"0s"`
	OllamaURL         string        `env:"OLLAMA_URL"         envDefault:"http://localhost"`
	OllamaPort        int           `env:"OLLAMA_PORT"        envDefault:"11434"`
	OllamaModel       string        `env:"OLLAMA_MODEL"       envDefault:"llama3.2-vision:11b"`

	LogLevel     string `env:"LOG_LEVEL"     envDefault:"info"`
	LogNoColor   bool   `env:"LOG_NO_COLOR"  envDefault:"false"`
	MetricsAddr  string `env:"METRICS_ADDR"  envDefault:":9090"`
	OTLPEndpoint string `env:"OTLP_ENDPOINT"`
	DatabaseURL  string `env:"DATABASE_URL"`
}

// Load reads an optional .env file and then parses the environment.
func Load() (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch {
	case c.Workers <= 0:
		return errors.New("WORKERS must be positive")
	case c.FrameWidth <= 0:
		return errors.New("FRAME_WIDTH must be positive")
	case c.FrameStep <= 0:
		return errors.New("FRAME_STEP must be positive")
	case c.MaxUploadBytes <= 0:
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	case c.UploadDir == "" || c.FramesDir == "":
		return errors.New("UPLOAD_DIR and FRAMES_DIR must be set")
	}

	for _, origin := range c.AllowedOrigins {
		if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("ALLOWED_ORIGINS entry %q must start with http:// or https://", origin)
		}
	}

	switch c.Classifier {
	case ClassifierCommand:
		if c.ClassifierCommand == "" {
			return errors.New("CLASSIFIER_COMMAND must be set for the command classifier")
		}
	case ClassifierOllama:
		if c.OllamaModel == "" {
			return errors.New("OLLAMA_MODEL must be set for the ollama classifier")
		}
	default:
		return fmt.Errorf("unknown CLASSIFIER %q", c.Classifier)
	}
	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MaxUploadLabel renders the upload limit the way clients see it, e.g. "50MB".
func (c *Config) MaxUploadLabel() string {
	const mib = 1 << 20
	if c.MaxUploadBytes%mib == 0 {
		return fmt.Sprintf("%dMB", c.MaxUploadBytes/mib)
	}
	return fmt.Sprintf("%d bytes", c.MaxUploadBytes)
}
