package config

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/m-mizutani/goerr/v2"
	"github.com/vk/flowwatch/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// fileRoot is the top level of a configuration file.
type fileRoot struct {
	Live   *liveBlock   `hcl:"live,block"`
	API    *apiBlock    `hcl:"api,block"`
	Layout *layoutBlock `hcl:"layout,block"`
}

type liveBlock struct {
	URL                *string `hcl:"url,optional"`
	Transport          *string `hcl:"transport,optional"`
	Namespace          *string `hcl:"namespace,optional"`
	Event              *string `hcl:"event,optional"`
	ReconnectDelay     *string `hcl:"reconnect_delay,optional"`
	ConnectTimeout     *string `hcl:"connect_timeout,optional"`
	BufferSize         *int    `hcl:"buffer_size,optional"`
	InsecureSkipVerify *bool   `hcl:"insecure_skip_verify,optional"`
}

type apiBlock struct {
	BaseURL *string `hcl:"base_url,optional"`
	Timeout *string `hcl:"timeout,optional"`
}

type layoutBlock struct {
	ColumnWidth *float64 `hcl:"column_width,optional"`
	RowHeight   *float64 `hcl:"row_height,optional"`
}

// Load reads the configuration file at path. A path that does not exist
// yields the defaults; an empty path does too.
func Load(ctx context.Context, path string) (*Config, error) {
	logger := ctxlog.FromContext(ctx)
	if path == "" {
		logger.Debug("No configuration file given, using defaults.")
		return Default(), nil
	}

	src, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("Configuration file not found, using defaults.", "path", path)
			return Default(), nil
		}
		return nil, goerr.Wrap(err, "failed to read configuration file", goerr.V("path", path))
	}
	return Parse(ctx, src, path, os.Environ())
}

// Parse decodes HCL source. environ uses the os.Environ format.
func Parse(ctx context.Context, src []byte, filename string, environ []string) (*Config, error) {
	logger := ctxlog.FromContext(ctx)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, goerr.Wrap(diags, "failed to parse configuration", goerr.V("file", filename))
	}

	var root fileRoot
	diags = gohcl.DecodeBody(file.Body, evalContext(environ), &root)
	if diags.HasErrors() {
		return nil, goerr.Wrap(diags, "failed to decode configuration", goerr.V("file", filename))
	}

	cfg := Default()
	if err := root.apply(cfg); err != nil {
		return nil, goerr.Wrap(err, "invalid configuration", goerr.V("file", filename))
	}
	if err := cfg.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid configuration", goerr.V("file", filename))
	}

	logger.Debug("Configuration loaded.", "file", filename, "transport", cfg.Live.Transport, "url", cfg.Live.URL)
	return cfg, nil
}

// evalContext exposes the environment as env.NAME plus string helpers.
func evalContext(environ []string) *hcl.EvalContext {
	vars := make(map[string]cty.Value, len(environ))
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" || !validIdentifier(name) {
			continue
		}
		vars[name] = cty.StringVal(value)
	}

	env := cty.EmptyObjectVal
	if len(vars) > 0 {
		env = cty.ObjectVal(vars)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": env},
		Functions: map[string]function.Function{
			"lower":     stdlib.LowerFunc,
			"upper":     stdlib.UpperFunc,
			"format":    stdlib.FormatFunc,
			"coalesce":  stdlib.CoalesceFunc,
			"trimspace": stdlib.TrimSpaceFunc,
		},
	}
}

// validIdentifier reports whether name can be used as env.NAME.
func validIdentifier(name string) bool {
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '-'):
		default:
			return false
		}
	}
	return true
}

func (r *fileRoot) apply(cfg *Config) error {
	if b := r.Live; b != nil {
		setString(&cfg.Live.URL, b.URL)
		setString(&cfg.Live.Transport, b.Transport)
		setString(&cfg.Live.Namespace, b.Namespace)
		setString(&cfg.Live.Event, b.Event)
		if b.BufferSize != nil {
			cfg.Live.BufferSize = *b.BufferSize
		}
		if b.InsecureSkipVerify != nil {
			cfg.Live.InsecureSkipVerify = *b.InsecureSkipVerify
		}
		if err := setDuration(&cfg.Live.ReconnectDelay, b.ReconnectDelay, "live.reconnect_delay"); err != nil {
			return err
		}
		if err := setDuration(&cfg.Live.ConnectTimeout, b.ConnectTimeout, "live.connect_timeout"); err != nil {
			return err
		}
	}
	if b := r.API; b != nil {
		setString(&cfg.API.BaseURL, b.BaseURL)
		if err := setDuration(&cfg.API.Timeout, b.Timeout, "api.timeout"); err != nil {
			return err
		}
	}
	if b := r.Layout; b != nil {
		if b.ColumnWidth != nil {
			cfg.Layout.ColumnWidth = *b.ColumnWidth
		}
		if b.RowHeight != nil {
			cfg.Layout.RowHeight = *b.RowHeight
		}
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func setDuration(dst *time.Duration, v *string, field string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(*v))
	if err != nil {
		return goerr.Wrap(err, "invalid duration", goerr.V("field", field), goerr.V("value", *v))
	}
	*dst = d
	return nil
}
