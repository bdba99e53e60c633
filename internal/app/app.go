package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gookit/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/vk/flowwatch/internal/cache"
	"github.com/vk/flowwatch/internal/config"
	"github.com/vk/flowwatch/internal/ctxlog"
	"github.com/vk/flowwatch/internal/layout"
	"github.com/vk/flowwatch/internal/live"
	"github.com/vk/flowwatch/internal/render"
	"github.com/vk/flowwatch/internal/source"
	"github.com/vk/flowwatch/internal/transport/sioconn"
	"github.com/vk/flowwatch/internal/transport/wsconn"
	"github.com/vk/flowwatch/internal/watch"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	ctx        context.Context
	logger     *slog.Logger
	config     *Config
	settings   *config.Config
	store      *cache.Store
	source     *source.Client
	live       *live.Client
	watcher    *watch.Watcher
	httpServer *http.Server

	backend      backendHealth
	pollInterval time.Duration
}

// Option customises NewApp, mainly for tests.
type Option func(*options)

type options struct {
	dialer       live.Dialer
	renderer     watch.Renderer
	pollInterval time.Duration
}

// WithDialer replaces the transport chosen by the configuration.
func WithDialer(d live.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithRenderer replaces the renderer chosen by the output format.
func WithRenderer(r watch.Renderer) Option {
	return func(o *options) { o.renderer = r }
}

// WithBackendPollInterval sets how often backend health is polled.
func WithBackendPollInterval(d time.Duration) Option {
	return func(o *options) { o.pollInterval = d }
}

// NewApp is the constructor for the main application. Frames are written
// to outW and logs to logW; each App owns an isolated logger.
func NewApp(outW, logW io.Writer, appConfig *Config, opts ...Option) (*App, error) {
	o := options{pollInterval: DefaultBackendPollInterval}
	for _, opt := range opts {
		opt(&o)
	}
	if o.pollInterval <= 0 {
		o.pollInterval = DefaultBackendPollInterval
	}

	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	settings, err := appConfig.Settings(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load configuration", goerr.V("path", appConfig.ConfigPath))
	}
	logger.Debug("Configuration resolved.",
		"live_url", settings.Live.URL,
		"transport", settings.Live.Transport,
		"api_url", settings.API.BaseURL,
	)

	src, err := source.New(source.Config{
		BaseURL: settings.API.BaseURL,
		Timeout: settings.API.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	dialer := o.dialer
	if dialer == nil {
		if dialer, err = newDialer(settings.Live, logger); err != nil {
			return nil, err
		}
	}

	renderer := o.renderer
	if renderer == nil {
		renderer = newRenderer(outW, appConfig)
	}

	store := cache.New()
	var watcher *watch.Watcher
	client := live.New(dialer, store,
		live.WithReconnectDelay(settings.Live.ReconnectDelay),
		live.WithConnectTimeout(settings.Live.ConnectTimeout),
		live.WithBufferSize(settings.Live.BufferSize),
		live.WithLogger(logger),
		live.WithStatusHook(func(live.Status) { watcher.Notify() }),
	)
	watcher = watch.New(watch.Config{
		Store:    store,
		Source:   src,
		Feed:     client,
		Engine:   layout.New(settings.LayoutOptions()),
		Renderer: renderer,
		RootID:   appConfig.RootID,
		Logger:   logger,
	})

	return &App{
		ctx:      ctx,
		logger:   logger,
		config:   appConfig,
		settings: settings,
		store:    store,
		source:   src,
		live:     client,
		watcher:  watcher,

		pollInterval: o.pollInterval,
	}, nil
}

// Settings returns the resolved configuration.
func (a *App) Settings() *config.Config {
	return a.settings
}

func newDialer(cfg config.LiveConfig, logger *slog.Logger) (live.Dialer, error) {
	switch cfg.Transport {
	case config.TransportSocketIO:
		d, err := sioconn.New(sioconn.Config{
			URL:                cfg.URL,
			Namespace:          cfg.Namespace,
			Event:              cfg.Event,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			Logger:             logger,
		})
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		d, err := wsconn.New(wsconn.Config{
			URL:                cfg.URL,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			HandshakeTimeout:   cfg.ConnectTimeout,
			Logger:             logger,
		})
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

func newRenderer(outW io.Writer, cfg *Config) watch.Renderer {
	if cfg.Output == OutputJSON {
		return render.NewJSON(outW)
	}
	return render.NewText(outW, render.TextOptions{
		Color: !cfg.Plain && color.SupportColor(),
		Clear: !cfg.Plain,
	})
}
