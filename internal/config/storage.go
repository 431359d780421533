package config

import "github.com/caarlos0/env/v11"

type StorageConfig struct {
	Durable     string `env:"DURABLE_STORE" envDefault:"memory"`
	PostgresDSN string `env:"POSTGRES_DSN"`
	RedisURL    string `env:"REDIS_URL"`
	Namespace   string `env:"DURABLE_NAMESPACE" envDefault:"lobby"`
}

func LoadStorage() (StorageConfig, error) {
	var cfg StorageConfig
	err := env.Parse(&cfg)
	return cfg, err
}
