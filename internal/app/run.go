package app

import (
	"context"

	"github.com/vk/flowwatch/internal/ctxlog"
	"golang.org/x/sync/errgroup"
)

// Run connects the live client and renders the graph until ctx is done.
// It returns nil on a clean shutdown.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")
	defer func() {
		if err := a.source.Close(); err != nil {
			a.logger.Warn("Failed to close API client.", "error", err)
		}
	}()

	g, ctx := errgroup.WithContext(ctx)

	if a.config.HealthcheckPort > 0 {
		a.newHealthCheckServer()
		g.Go(a.healthCheckServer)
		g.Go(func() error {
			<-ctx.Done()
			return a.closeHealthCheckServer()
		})
	} else {
		a.logger.Debug("Health check server disabled.")
	}

	a.logger.Info("🚀 Watching task graphs.",
		"live_url", a.settings.Live.URL,
		"transport", a.settings.Live.Transport,
		"root_id", a.config.RootID,
	)
	a.live.Start(ctx)
	g.Go(func() error {
		return a.watcher.Run(ctx)
	})
	g.Go(func() error {
		return a.pollBackend(ctx)
	})

	err := g.Wait()
	if cerr := a.live.Close(); cerr != nil {
		a.logger.Warn("Failed to close live client.", "error", cerr)
	}
	a.logger.Info("🏁 Stopped watching.")
	return err
}
