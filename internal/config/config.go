package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// Config is read from YAML, then environment variables override it and
// env-default fills whatever is still zero. Secrets come from env only.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	Inference InferenceConfig `yaml:"inference"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port         int           `yaml:"port" env:"PORT" env-default:"8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" env-default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" env-default:"5m"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" env-default:"2m"`
	CORSOrigins  []string      `yaml:"cors_origins" env:"CORS_ORIGINS" env-default:"*"`
}

type DatabaseConfig struct {
	Driver         string `yaml:"driver" env:"DB_DRIVER" env-default:"sqlite"`
	Host           string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"DB_PORT"`
	User           string `yaml:"user" env:"DB_USER"`
	Password       string `yaml:"-" env:"DB_PASSWORD"`
	Name           string `yaml:"name" env:"DB_NAME" env-default:"leafcheck"`
	Path           string `yaml:"path" env:"DB_PATH" env-default:"data/leafcheck.db"`
	SSLMode        string `yaml:"ssl_mode" env:"DB_SSLMODE" env-default:"disable"`
	MaxOpenConns   int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"10"`
	MigrateOnStart bool   `yaml:"migrate_on_start" env:"DB_MIGRATE_ON_START"`
}

type StorageConfig struct {
	Backend        string      `yaml:"backend" env:"STORAGE_BACKEND" env-default:"local"`
	LocalDir       string      `yaml:"local_dir" env:"STORAGE_LOCAL_DIR" env-default:"data/uploads"`
	PublicPrefix   string      `yaml:"public_prefix" env:"STORAGE_PUBLIC_PREFIX" env-default:"/uploads"`
	MaxUploadBytes int64       `yaml:"max_upload_bytes" env:"STORAGE_MAX_UPLOAD_BYTES" env-default:"10485760"`
	Minio          MinioConfig `yaml:"minio"`
}

type MinioConfig struct {
	Endpoint   string        `yaml:"endpoint" env:"MINIO_ENDPOINT"`
	Region     string        `yaml:"region" env:"MINIO_REGION"`
	Bucket     string        `yaml:"bucket" env:"MINIO_BUCKET" env-default:"leafcheck"`
	AccessKey  string        `yaml:"access_key" env:"MINIO_ACCESS_KEY"`
	SecretKey  string        `yaml:"-" env:"MINIO_SECRET_KEY"`
	UseSSL     bool          `yaml:"use_ssl" env:"MINIO_USE_SSL"`
	PresignTTL time.Duration `yaml:"presign_ttl" env:"MINIO_PRESIGN_TTL" env-default:"15m"`
}

type InferenceConfig struct {
	Backend        string        `yaml:"backend" env:"INFERENCE_BACKEND" env-default:"process"`
	Command        string        `yaml:"command" env:"INFERENCE_COMMAND" env-default:"python3"`
	Args           []string      `yaml:"args" env:"INFERENCE_ARGS"`
	WorkDir        string        `yaml:"work_dir" env:"INFERENCE_WORK_DIR"`
	Timeout        time.Duration `yaml:"timeout" env:"INFERENCE_TIMEOUT" env-default:"4m"`
	MaxConcurrent  int           `yaml:"max_concurrent" env:"INFERENCE_MAX_CONCURRENT" env-default:"2"`
	MaxQueue       int           `yaml:"max_queue" env:"INFERENCE_MAX_QUEUE" env-default:"8"`
	QueueTimeout   time.Duration `yaml:"queue_timeout" env:"INFERENCE_QUEUE_TIMEOUT" env-default:"30s"`
	MaxOutputBytes int64         `yaml:"max_output_bytes" env:"INFERENCE_MAX_OUTPUT_BYTES" env-default:"1048576"`
	MinConfidence  float64       `yaml:"min_confidence" env:"INFERENCE_MIN_CONFIDENCE" env-default:"0.6"`
	OpenAI         OpenAIConfig  `yaml:"openai"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"-" env:"OPENAI_API_KEY"`
	Model   string `yaml:"model" env:"OPENAI_MODEL" env-default:"gpt-4o-mini"`
	BaseURL string `yaml:"base_url" env:"OPENAI_BASE_URL"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"-" env:"JWT_SECRET"`
	// APIKeys maps a static key to the owner id it authenticates.
	APIKeys map[string]int64 `yaml:"api_keys" env:"AUTH_API_KEYS"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" env:"RATE_LIMIT_RPS" env-default:"5"`
	Burst int     `yaml:"burst" env:"RATE_LIMIT_BURST" env-default:"10"`
}

type CatalogConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CATALOG_CACHE_TTL" env-default:"10m"`
}

type AnalysisConfig struct {
	// nil means the default (true)
	PersistNonConfident *bool `yaml:"persist_non_confident"`
}

type LoggingConfig struct {
	Level       string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Development bool   `yaml:"development" env:"LOG_DEVELOPMENT"`
}

// Load baca file config lalu apply env override. A missing file is fine,
// everything then comes from env and defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// decode rejects unknown keys so a typo does not silently fall back to a default.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Database.Port == 0 {
		switch c.Database.Driver {
		case "postgres":
			c.Database.Port = 5432
		case "mysql":
			c.Database.Port = 3306
		}
	}
	if c.Analysis.PersistNonConfident == nil {
		v := true
		c.Analysis.PersistNonConfident = &v
	}
}

// Validate checks the settings a server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q must be postgres, mysql or sqlite", c.Database.Driver))
	}
	switch c.Storage.Backend {
	case "local":
	case "minio":
		if c.Storage.Minio.Endpoint == "" {
			errs = append(errs, errors.New("storage.minio.endpoint is required for the minio backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q must be local or minio", c.Storage.Backend))
	}
	switch c.Inference.Backend {
	case "process":
		if c.Inference.Command == "" {
			errs = append(errs, errors.New("inference.command is required for the process backend"))
		}
	case "openai":
		if c.Inference.OpenAI.APIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("inference.backend %q must be process or openai", c.Inference.Backend))
	}
	if c.Inference.Timeout <= 0 {
		errs = append(errs, errors.New("inference.timeout must be positive"))
	}
	if c.Inference.MaxConcurrent <= 0 {
		errs = append(errs, errors.New("inference.max_concurrent must be positive"))
	}
	if c.Inference.MinConfidence < 0 || c.Inference.MinConfidence > 1 {
		errs = append(errs, errors.New("inference.min_confidence must be within [0,1]"))
	}
	if c.Storage.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("storage.max_upload_bytes must be positive"))
	}
	if need := c.Inference.Timeout + c.Inference.QueueTimeout; c.Server.WriteTimeout < need {
		errs = append(errs, fmt.Errorf("server.write_timeout %s is shorter than inference.timeout + inference.queue_timeout (%s)", c.Server.WriteTimeout, need))
	}
	return errors.Join(errs...)
}

// Persist reports whether Rejected and Unsure outcomes are stored.
func (a AnalysisConfig) Persist() bool {
	return a.PersistNonConfident == nil || *a.PersistNonConfident
}

// Redacted returns a YAML dump with secrets removed, for the startup log.
func (c *Config) Redacted() string {
	cp := *c
	cp.Auth.APIKeys = nil
	out, err := yaml.Marshal(cp)
	if err != nil {
		return ""
	}
	return string(out)
}
