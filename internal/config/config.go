package config

import (
	"errors"
	"flag"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"log/slog"
	"os"
	"sync"
	"time"
)

const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"
)

const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Policies for access tokens whose expiry cannot be decoded.
const (
	UndecodableRefresh = "refresh"
	UndecodableTrust   = "trust"
)

type Config struct {
	Env        string        `yaml:"env" env:"APP_ENV" env-default:"development" validate:"oneof=development test production"`
	API        APIConfig     `yaml:"api"`
	Store      StoreConfig   `yaml:"store"`
	Redis      StorageRedis  `yaml:"redis"`
	Refresh    RefreshConfig `yaml:"refresh"`
	Mock       MockConfig    `yaml:"mock"`
	SMTPConfig SMTPConfig    `yaml:"smtp"`
}

type APIConfig struct {
	DevelopmentURL string        `yaml:"development_url" env:"API_DEVELOPMENT_URL" env-default:"http://localhost:8080/api/v1" validate:"required,url"`
	TestURL        string        `yaml:"test_url" env:"API_TEST_URL" env-default:"http://localhost:8080/api/v1" validate:"required,url"`
	ProductionURL  string        `yaml:"production_url" env:"API_PRODUCTION_URL" env-default:"http://localhost:8080/api/v1" validate:"required,url"`
	Timeout        time.Duration `yaml:"timeout" env:"API_TIMEOUT" env-default:"15s"`
}

type StoreConfig struct {
	Type   string `yaml:"type" env:"STORE_TYPE" env-default:"file" validate:"oneof=memory file redis"`
	Path   string `yaml:"path" env:"STORE_PATH" env-default:"./.destored/session.json"`
	Prefix string `yaml:"prefix" env:"STORE_PREFIX" env-default:"destored"`
}

type StorageRedis struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	Attempts int    `yaml:"attempts" env:"REDIS_ATTEMPTS" env-default:"3"`
}

type RefreshConfig struct {
	Interval    time.Duration `yaml:"interval" env:"REFRESH_INTERVAL" env-default:"4m"`
	Threshold   time.Duration `yaml:"threshold" env:"REFRESH_THRESHOLD" env-default:"5m"`
	Undecodable string        `yaml:"undecodable" env:"REFRESH_UNDECODABLE" env-default:"refresh" validate:"oneof=refresh trust"`
}

type MockConfig struct {
	Port         int         `yaml:"port" env:"MOCK_PORT" env-default:"8080"`
	Token        TokenConfig `yaml:"token"`
	RateLimitRPM int         `yaml:"rate_limit_rpm" env:"MOCK_RATE_LIMIT_RPM" env-default:"30"`
	CORSOrigins  []string    `yaml:"cors_origins" env:"MOCK_CORS_ORIGINS" env-default:"*"`
}

type TokenConfig struct {
	AccessSecret  string        `yaml:"access_secret" env:"TOKEN_ACCESS_SECRET" env-default:"dev-access-secret"`
	RefreshSecret string        `yaml:"refresh_secret" env:"TOKEN_REFRESH_SECRET" env-default:"dev-refresh-secret"`
	AccessTTL     time.Duration `yaml:"access_ttl" env:"TOKEN_ACCESS_TTL" env-default:"15m"`
	RefreshTTL    time.Duration `yaml:"refresh_ttl" env:"TOKEN_REFRESH_TTL" env-default:"168h"`
}

type SMTPConfig struct {
	Host      string `yaml:"host" env:"SMTP_HOST"`
	Port      string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	Username  string `yaml:"username" env:"SMTP_USERNAME"`
	Password  string `yaml:"password" env:"SMTP_PASSWORD"`
	FromEmail string `yaml:"from_email" env:"SMTP_FROM_EMAIL" env-default:"no-reply@destored.local"`
	FromName  string `yaml:"from_name" env-default:"Destored"`
	AppURL    string `yaml:"app_url" env:"APP_URL" env-default:"http://localhost:3000"`
}

// BaseURL returns the API base URL bound to the deployment mode.
func (c *Config) BaseURL() string {
	switch c.Env {
	case EnvProduction:
		return c.API.ProductionURL
	case EnvTest:
		return c.API.TestURL
	default:
		return c.API.DevelopmentURL
	}
}

const (
	flagConfigPath = "config"
	envConfigPath  = "CONFIG_PATH"
)

var instance *Config
var once sync.Once

func GetConfig() *Config {
	once.Do(func() {
		var configPath string
		flag.StringVar(&configPath, flagConfigPath, "", "config file path")
		flag.Parse()

		if path, ok := os.LookupEnv(envConfigPath); ok {
			configPath = path
		}

		cfg, err := Load(configPath)
		if err != nil {
			desc, errDesc := cleanenv.GetDescription(&Config{}, nil)
			if errDesc == nil {
				slog.Info(desc)
			}
			slog.Error("failed to load config",
				slog.String("err", err.Error()),
				slog.String("path", configPath))
			os.Exit(1)
		}
		instance = cfg
	})
	return instance
}

// Load reads the yaml file at path (if any), applies env overrides and validates the result.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	cfg := &Config{}

	// 1. yaml first, when given
	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("%s: read %s: %w", op, path, err)
		}
	}

	// 2. env variables win
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("%s: read env: %w", op, err)
	}

	// 3. validation
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return err
	}
	if cfg.Refresh.Interval <= 0 {
		return errors.New("refresh interval must be positive")
	}
	if cfg.Refresh.Threshold <= 0 {
		return errors.New("refresh threshold must be positive")
	}
	if cfg.API.Timeout <= 0 {
		return errors.New("api timeout must be positive")
	}
	if cfg.Store.Type == StoreFile && cfg.Store.Path == "" {
		return errors.New("store path is required for the file store")
	}
	if cfg.Mock.Token.AccessSecret == "" || cfg.Mock.Token.RefreshSecret == "" {
		return errors.New("token secrets are required")
	}
	return nil
}
