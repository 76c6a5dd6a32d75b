package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jwalitptl/lifepulse/internal/config"
	"github.com/jwalitptl/lifepulse/internal/connectivity"
	"github.com/jwalitptl/lifepulse/internal/repository"
	emergencyService "github.com/jwalitptl/lifepulse/internal/service/emergency"
	"github.com/jwalitptl/lifepulse/internal/storage"
	"github.com/jwalitptl/lifepulse/pkg/logger"
	"github.com/jwalitptl/lifepulse/pkg/messaging/redis"
	"github.com/jwalitptl/lifepulse/pkg/metrics"
	"github.com/jwalitptl/lifepulse/pkg/remote"
	"github.com/jwalitptl/lifepulse/pkg/worker"
)

// app holds every wired component. Commands use as much of it as they need.
type app struct {
	config   *config.Config
	logger   *logger.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	store    *storage.Store
	requests repository.EmergencyRequestRepository
	data     repository.OfflineDataRepository
	monitor  *connectivity.Monitor
	engine   *worker.SyncEngine
	service  *emergencyService.Service

	closers []func() error
}

func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}

	log := logger.NewLogger(cfg.ToLoggerConfig())

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(cfg.Metrics.Namespace, registry)

	a := &app{
		config:   cfg,
		logger:   log,
		registry: registry,
		metrics:  m,
	}

	medium, err := storage.OpenMedium(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Driver, err)
	}
	a.store = storage.NewStore(medium, cfg.ToStoreConfig(), log, m)
	a.closers = append(a.closers, a.store.Close)

	a.requests = repository.NewEmergencyRequestRepository(a.store, log)
	a.data = repository.NewOfflineDataRepository(a.store)

	var prober connectivity.Prober
	if cfg.Connectivity.ProbeURL != "" {
		prober = connectivity.NewHTTPProber(cfg.Connectivity.ProbeURL, cfg.Connectivity.ProbeTimeout)
	}
	a.monitor = connectivity.NewMonitor(cfg.Connectivity.InitialOnline, prober, cfg.ToConnectivityConfig(), log, m)

	submitter, err := a.newSubmitter()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.engine = worker.NewSyncEngine(a.requests, a.data, submitter, a.monitor, cfg.ToSyncConfig(), log, m)
	a.service = emergencyService.NewService(a.requests, a.data, a.engine, a.monitor, a.store, log)

	return a, nil
}

func (a *app) newSubmitter() (worker.Submitter, error) {
	switch a.config.Remote.Submitter {
	case config.SubmitterRedis:
		broker, err := redis.NewRedisBroker(a.config.ToBrokerConfig(), a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis broker: %w", err)
		}
		a.closers = append(a.closers, broker.Close)
		return remote.NewBrokerSubmitter(broker, a.config.Remote.Redis.Channel, a.config.Remote.Timeout), nil
	default:
		return remote.NewHTTPSubmitter(a.config.ToHTTPConfig(), nil, a.logger), nil
	}
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error(err, "Failed to close component")
		}
	}
}
