package config

import (
	"github.com/kelseyhightower/envconfig"
)

type (
	// Env holds the values of environment variable based configuration
	Env struct {
		Host           string `envconfig:"HOST" default:"127.0.0.1"`
		Port           int    `envconfig:"PORT" default:"8080"`
		FixtureRoot    string `envconfig:"GNOCK_FIXTURES" default:"."`
		ConfigBasePath string `envconfig:"GNOCK_BASE_PATH" default:"/gnockconfig"`
		Watch          bool   `envconfig:"GNOCK_WATCH" default:"true"`
		LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	}
)

// New returns a new Env config, panicking if the environment can't be processed
func New() *Env {
	cfg := &Env{}

	envconfig.MustProcess("", cfg)

	return cfg
}

// Load is New without the panic
func Load() (*Env, error) {
	cfg := &Env{}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
