package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	// Empty DatabaseURL runs the relay in memory-only mode: the message
	// store becomes a no-op and history is always empty.
	DatabaseURL string `env:"DATABASE_URL" envDefault:""`

	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"5000" validate:"min=1,max=65535"`

	SecretKey string `env:"SECRET_KEY" envDefault:"dev-secret-key"`

	HistoryLimit  int           `env:"HISTORY_LIMIT"  envDefault:"50" validate:"min=1,max=500"`
	StoreTimeout  time.Duration `env:"STORE_TIMEOUT"  envDefault:"10s"`
	RetentionDays int           `env:"RETENTION_DAYS" envDefault:"7"  validate:"min=1"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	// Parse config from environment variables
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	// Validate the config
	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
