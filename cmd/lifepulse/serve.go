package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/lifepulse/internal/handler"
	"github.com/jwalitptl/lifepulse/internal/handler/emergency"
	"github.com/jwalitptl/lifepulse/internal/handler/offline"
	"github.com/jwalitptl/lifepulse/internal/router"
	"github.com/jwalitptl/lifepulse/internal/worker"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, connectivity monitor and sync engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	gin.SetMode(gin.ReleaseMode)

	health := handler.NewHandler(a.registry, map[string]handler.Pinger{"storage": a.store})
	r := router.NewRouter(health, router.RouterConfig{
		RateLimit:     rate.Limit(a.config.Server.RateLimit),
		RateBurst:     a.config.Server.RateBurst,
		MaxBodySize:   a.config.Server.MaxBodyBytes,
		MetricsPrefix: a.config.Metrics.Namespace,
		Registerer:    a.registry,
		Logger:        a.logger,
	},
		emergency.NewHandler(a.service),
		offline.NewHandler(a.service, a.monitor),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.config.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
	}

	// Background workers use the store; they must be gone before a.Close.
	workerCtx, stopWorkers := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		stopWorkers()
		wg.Wait()
		a.logger.Info("Background workers stopped")
	}()

	reporter := worker.NewStatusReporter(a.service, time.Minute, a.logger, a.metrics)
	for _, run := range []func(context.Context){a.monitor.Run, a.engine.Start, reporter.Start} {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(workerCtx)
		}(run)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Starting server", "addr", srv.Addr, "storage", a.config.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	a.logger.Info("Server exited properly")
	return nil
}
