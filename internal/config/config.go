// Package config loads the chartpress configuration: an optional HCL file
// plus the DATAWRAPPER_TOKEN environment variable, which always wins for the
// API credential so the secret never has to live in a file.
package config

import (
	"fmt"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/hcl/v2/hclsimple"
)

// TokenEnvVar is the environment variable carrying the Datawrapper API token.
const TokenEnvVar = "DATAWRAPPER_TOKEN"

// Config is the chartpress configuration.
//
// Example configuration (HCL):
//
//	listen_addr = ":8000"
//
//	datawrapper {
//	  base_url        = "https://api.datawrapper.de"
//	  attempt_timeout = "30s"
//	  max_retries     = 3
//	}
type Config struct {
	// ListenAddr is the address the HTTP server binds to.
	ListenAddr string `hcl:"listen_addr,optional"`

	// Datawrapper configures the upstream chart API.
	Datawrapper *Datawrapper `hcl:"datawrapper,block"`
}

// Datawrapper holds upstream chart API settings.
type Datawrapper struct {
	// BaseURL of the Datawrapper API.
	BaseURL string `hcl:"base_url,optional"`

	// Token is the API token. Populated from DATAWRAPPER_TOKEN; a file
	// value is only a development convenience.
	Token string `hcl:"token,optional"`

	// AttemptTimeout bounds each transport strategy attempt.
	AttemptTimeout string `hcl:"attempt_timeout,optional"`

	// MaxRetries is the per-session-strategy retry budget.
	MaxRetries int `hcl:"max_retries,optional"`
}

// Default returns a Config with defaults applied.
func Default() *Config {
	return &Config{
		ListenAddr: ":8000",
		Datawrapper: &Datawrapper{
			BaseURL:        "https://api.datawrapper.de",
			AttemptTimeout: "30s",
			MaxRetries:     3,
		},
	}
}

// Load reads the config file at path (when non-empty), applies defaults and
// the environment token override, and validates the result. A missing token
// is not a load error: handlers report it per-request as a configuration
// error so the service can still start and serve the root endpoint.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := hclsimple.DecodeFile(path, nil, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	if cfg.Datawrapper == nil {
		cfg.Datawrapper = Default().Datawrapper
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8000"
	}
	if cfg.Datawrapper.BaseURL == "" {
		cfg.Datawrapper.BaseURL = "https://api.datawrapper.de"
	}
	if cfg.Datawrapper.AttemptTimeout == "" {
		cfg.Datawrapper.AttemptTimeout = "30s"
	}
	if cfg.Datawrapper.MaxRetries == 0 {
		cfg.Datawrapper.MaxRetries = 3
	}

	if token := os.Getenv(TokenEnvVar); token != "" {
		cfg.Datawrapper.Token = token
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration is structurally sound.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.ListenAddr, validation.Required),
		validation.Field(&c.Datawrapper, validation.Required),
	); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := validation.ValidateStruct(c.Datawrapper,
		validation.Field(&c.Datawrapper.BaseURL, validation.Required),
		validation.Field(&c.Datawrapper.AttemptTimeout, validation.Required),
		validation.Field(&c.Datawrapper.MaxRetries, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("invalid datawrapper config: %w", err)
	}

	if _, err := time.ParseDuration(c.Datawrapper.AttemptTimeout); err != nil {
		return fmt.Errorf("invalid attempt_timeout: %w", err)
	}

	return nil
}

// ParsedAttemptTimeout returns the per-attempt timeout as a duration.
func (d *Datawrapper) ParsedAttemptTimeout() time.Duration {
	t, err := time.ParseDuration(d.AttemptTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return t
}
