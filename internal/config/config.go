package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	DBPath           string        `env:"DB_PATH"            envDefault:"patina.sqlite"`
	RefreshSpec      string        `env:"REFRESH_SPEC"       envDefault:"0 * * * *"`
	RefreshTimeout   time.Duration `env:"REFRESH_TIMEOUT"    envDefault:"15m"`
	FetchTimeout     time.Duration `env:"FETCH_TIMEOUT"      envDefault:"30s"`
	UserAgent        string        `env:"USER_AGENT"         envDefault:"Patina RSS Reader/1.0"`
	HostRateInterval time.Duration `env:"HOST_RATE_INTERVAL" envDefault:"1s"`
}

func Parse() (Config, error) {
	var cfg Config
	err := env.Parse(&cfg)
	return cfg, err
}

func LoadConfig() Config {
	var cfg Config
	env.Must(cfg, env.Parse(&cfg))
	return cfg
}
