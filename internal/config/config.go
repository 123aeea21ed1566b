package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"studynotes-client/internal/jobs"
)

// Polling configures one waiting call site. Empty fields keep the built-in policy value.
type Polling struct {
	Interval    string `yaml:"interval"`
	MaxAttempts *int   `yaml:"max_attempts" validate:"omitempty,gte=0"`
	OnExhausted string `yaml:"on_exhausted" validate:"omitempty,oneof=fail proceed"`
}

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Backend struct {
		URL     string `yaml:"url" validate:"required,url"`
		Token   string `yaml:"token"`
		Timeout string `yaml:"timeout"`
	} `yaml:"backend"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db" validate:"gte=0"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Cache struct {
		SummaryTTL string `yaml:"summary_ttl"`
	} `yaml:"cache"`
	Log struct {
		Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
		Format string `yaml:"format" validate:"omitempty,oneof=json text"`
	} `yaml:"log"`
	Polling struct {
		Summary           Polling `yaml:"summary"`
		DocumentReadiness Polling `yaml:"document_readiness"`
		QuizReadiness     Polling `yaml:"quiz_readiness"`
	} `yaml:"polling"`
}

// Load reads YAML config from path, then applies .env and environment overrides.
// A missing file is not an error; the environment alone may configure the client.
func Load(path string) (Config, error) {
	cfg := Config{}
	// .env is optional
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return cfg, err
	}

	applyEnv(&cfg)
	if cfg.Backend.URL == "" {
		cfg.Backend.URL = "http://localhost:8000"
	}
	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	for name, p := range map[string]Polling{
		"summary":            cfg.Polling.Summary,
		"document_readiness": cfg.Polling.DocumentReadiness,
		"quiz_readiness":     cfg.Polling.QuizReadiness,
	} {
		if err := p.checkInterval(); err != nil {
			return cfg, fmt.Errorf("invalid config: polling.%s: %w", name, err)
		}
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setFromEnv(&cfg.Backend.URL, "BACKEND_URL")
	setFromEnv(&cfg.Backend.Token, "BACKEND_TOKEN")
	setFromEnv(&cfg.Server.Port, "PORT")
	setFromEnv(&cfg.Redis.Addr, "REDIS_ADDR")
	setFromEnv(&cfg.Postgres.URL, "POSTGRES_URL")
	setFromEnv(&cfg.Log.Level, "LOG_LEVEL")
	if raw := os.Getenv("REDIS_DB"); raw != "" {
		if db, err := strconv.Atoi(raw); err == nil {
			cfg.Redis.DB = db
		}
	}
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

func (p Polling) checkInterval() error {
	if p.Interval == "" {
		return nil
	}
	d, err := time.ParseDuration(p.Interval)
	if err != nil {
		return fmt.Errorf("interval: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("interval must be positive, got %s", p.Interval)
	}
	return nil
}

// Apply overlays the configured values on a built-in policy. A non-positive
// interval keeps the built-in one.
func (p Polling) Apply(base jobs.Policy) jobs.Policy {
	if d := TTLDuration(p.Interval, base.Interval); d > 0 {
		base.Interval = d
	}
	if p.MaxAttempts != nil {
		base.MaxAttempts = *p.MaxAttempts
	}
	if p.OnExhausted != "" {
		base.OnExhausted = jobs.ParseExhaustAction(p.OnExhausted)
	}
	return base
}

func (c Config) SummaryPolicy() jobs.Policy {
	return c.Polling.Summary.Apply(jobs.SummaryPolicy())
}

func (c Config) DocumentReadinessPolicy() jobs.Policy {
	return c.Polling.DocumentReadiness.Apply(jobs.DocumentReadinessPolicy())
}

func (c Config) QuizReadinessPolicy() jobs.Policy {
	return c.Polling.QuizReadiness.Apply(jobs.QuizReadinessPolicy())
}
