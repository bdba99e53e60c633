package app

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/vk/flowwatch/internal/config"
)

// Output formats.
const (
	OutputText = "text"
	OutputJSON = "json"
)

// Config holds the process-level settings for an App instance. Non-empty
// override fields take precedence over the configuration file.
type Config struct {
	ConfigPath string // hcl file, optional
	RootID     string // empty follows the most recent root

	LiveURL   string
	APIURL    string
	Transport string

	Output string
	// Plain disables colors and in-place redraws of the text output.
	Plain bool

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.Output == "" {
		cfg.Output = OutputText
	}
	if cfg.Output != OutputText && cfg.Output != OutputJSON {
		return nil, goerr.New("output must be 'text' or 'json'", goerr.V("output", cfg.Output))
	}
	switch cfg.Transport {
	case "", config.TransportWebSocket, config.TransportSocketIO:
	default:
		return nil, goerr.New("transport must be 'websocket' or 'socketio'", goerr.V("transport", cfg.Transport))
	}
	if cfg.HealthcheckPort < 0 {
		return nil, goerr.New("healthcheck port must not be negative", goerr.V("port", cfg.HealthcheckPort))
	}
	return &cfg, nil
}

// Settings loads the configuration file and applies the overrides.
func (c *Config) Settings(ctx context.Context) (*config.Config, error) {
	settings, err := config.Load(ctx, c.ConfigPath)
	if err != nil {
		return nil, err
	}
	if c.LiveURL != "" {
		settings.Live.URL = c.LiveURL
	}
	if c.APIURL != "" {
		settings.API.BaseURL = c.APIURL
	}
	if c.Transport != "" {
		settings.Live.Transport = c.Transport
	}
	if err := settings.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid configuration")
	}
	return settings, nil
}
