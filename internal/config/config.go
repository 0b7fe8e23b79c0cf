package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port             int           `envconfig:"PORT" default:"8080"`
	DatabaseURL      string        `envconfig:"DATABASE_URL" default:""`
	JWTSecret        string        `envconfig:"JWT_SECRET" default:"dev-secret-change-in-production"`
	SceneDir         string        `envconfig:"SCENE_DIR" default:"./data/scenes"`
	AssetDir         string        `envconfig:"ASSET_DIR" default:"./data/assets"`
	AllowedOrigins   string        `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
	AutosaveInterval time.Duration `envconfig:"AUTOSAVE_INTERVAL" default:"30s"`
	ExportMaxWidth   int           `envconfig:"EXPORT_MAX_WIDTH" default:"4096"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
