package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type HostConfig struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:"127.0.0.1:8090"`
	// APIKey guards the debug routes when set.
	APIKey string `env:"HOST_API_KEY"`
}

func LoadHost() (HostConfig, error) {
	var cfg HostConfig
	err := env.Parse(&cfg)
	return cfg, err
}

type ProbeConfig struct {
	Username string `env:"PROBE_USERNAME,required,notEmpty"`
	Password string `env:"PROBE_PASSWORD,required,notEmpty"`
	Filter   string `env:"PROBE_FILTER" envDefault:"all"`
	// Watch is how long balance updates are followed after login.
	Watch time.Duration `env:"PROBE_WATCH" envDefault:"30s"`
}

func LoadProbe() (ProbeConfig, error) {
	var cfg ProbeConfig
	err := env.Parse(&cfg)
	return cfg, err
}
