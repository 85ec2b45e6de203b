// Package config builds the single explicit configuration struct the
// service is wired from. Nothing reads configuration ambiently: main
// constructs a Config once and passes it down.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roundpilot/roundpilot-go/internal/platform/env"
)

const (
	LedgerPostgres = "postgres"
	LedgerMemory   = "memory"
)

type Config struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	SharedSecret string `yaml:"shared_secret"`

	// LedgerBackend selects where outcomes persist: postgres (durable,
	// default) or memory (tests and throwaway runs; the scratch store and
	// audit sink are disabled too).
	LedgerBackend string `yaml:"ledger_backend"`

	RepoOwner   string        `yaml:"repo_owner"`
	RepoToken   string        `yaml:"repo_token"`
	RepoAPIBase string        `yaml:"repo_api_base"`
	RepoTimeout time.Duration `yaml:"repo_timeout"`

	GeneratorEndpoint string        `yaml:"generator_endpoint"`
	GeneratorAPIKey   string        `yaml:"generator_api_key"`
	GeneratorModel    string        `yaml:"generator_model"`
	GeneratorTimeout  time.Duration `yaml:"generator_timeout"`

	NotifyTimeout time.Duration `yaml:"notify_timeout"`
	StageTimeout  time.Duration `yaml:"stage_timeout"`
}

func defaults() Config {
	return Config{
		Addr:              ":8080",
		ShutdownTimeout:   10 * time.Second,
		LedgerBackend:     LedgerPostgres,
		GeneratorEndpoint: "https://aipipe.org/openai/v1/responses",
		GeneratorModel:    "gpt-5",
		GeneratorTimeout:  60 * time.Second,
		RepoTimeout:       30 * time.Second,
		NotifyTimeout:     15 * time.Second,
		StageTimeout:      60 * time.Second,
	}
}

// Load assembles the config: built-in defaults, overlaid by the optional
// YAML file named by ROUNDPILOT_CONFIG_FILE, overlaid by environment
// variables. The result is validated before use.
func Load() (Config, error) {
	cfg := defaults()

	if path := strings.TrimSpace(env.String("ROUNDPILOT_CONFIG_FILE", "")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Addr = env.String("ROUNDPILOT_HTTP_ADDR", c.Addr)
	c.SharedSecret = env.String("ROUNDPILOT_SHARED_SECRET", c.SharedSecret)
	c.LedgerBackend = env.String("ROUNDPILOT_LEDGER_BACKEND", c.LedgerBackend)
	c.RepoOwner = env.String("ROUNDPILOT_REPO_OWNER", c.RepoOwner)
	c.RepoToken = env.String("ROUNDPILOT_REPO_TOKEN", c.RepoToken)
	c.RepoAPIBase = env.String("ROUNDPILOT_REPO_API_BASE", c.RepoAPIBase)
	c.GeneratorEndpoint = env.String("ROUNDPILOT_GENERATOR_ENDPOINT", c.GeneratorEndpoint)
	c.GeneratorAPIKey = env.String("ROUNDPILOT_GENERATOR_API_KEY", c.GeneratorAPIKey)
	c.GeneratorModel = env.String("ROUNDPILOT_GENERATOR_MODEL", c.GeneratorModel)

	var err error
	if c.ShutdownTimeout, err = env.Duration("ROUNDPILOT_SHUTDOWN_TIMEOUT", c.ShutdownTimeout); err != nil {
		return err
	}
	if c.RepoTimeout, err = env.Duration("ROUNDPILOT_REPO_TIMEOUT", c.RepoTimeout); err != nil {
		return err
	}
	if c.GeneratorTimeout, err = env.Duration("ROUNDPILOT_GENERATOR_TIMEOUT", c.GeneratorTimeout); err != nil {
		return err
	}
	if c.NotifyTimeout, err = env.Duration("ROUNDPILOT_NOTIFY_TIMEOUT", c.NotifyTimeout); err != nil {
		return err
	}
	if c.StageTimeout, err = env.Duration("ROUNDPILOT_STAGE_TIMEOUT", c.StageTimeout); err != nil {
		return err
	}
	return nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return errors.New("addr is required")
	}
	if strings.TrimSpace(c.SharedSecret) == "" {
		return errors.New("shared secret is required")
	}
	if c.LedgerBackend != LedgerPostgres && c.LedgerBackend != LedgerMemory {
		return fmt.Errorf("unsupported ledger backend %q", c.LedgerBackend)
	}
	if strings.TrimSpace(c.RepoOwner) == "" {
		return errors.New("repo owner is required")
	}
	if strings.TrimSpace(c.RepoToken) == "" {
		return errors.New("repo token is required")
	}
	if strings.TrimSpace(c.GeneratorEndpoint) == "" {
		return errors.New("generator endpoint is required")
	}
	if strings.TrimSpace(c.GeneratorModel) == "" {
		return errors.New("generator model is required")
	}
	for _, d := range []time.Duration{c.ShutdownTimeout, c.RepoTimeout, c.GeneratorTimeout, c.NotifyTimeout, c.StageTimeout} {
		if d <= 0 {
			return errors.New("timeouts must be positive")
		}
	}
	return nil
}
