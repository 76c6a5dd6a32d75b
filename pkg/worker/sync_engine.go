package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/lifepulse/internal/connectivity"
	"github.com/jwalitptl/lifepulse/internal/model"
	"github.com/jwalitptl/lifepulse/internal/repository"
	"github.com/jwalitptl/lifepulse/pkg/logger"
	"github.com/jwalitptl/lifepulse/pkg/metrics"
)

var ErrSyncInProgress = errors.New("sync already in progress")

type SyncEngineConfig struct {
	Interval time.Duration
	// MaxRetries is how many failed submissions a request may accumulate
	// before the next failure marks it failed.
	MaxRetries int
	Retention  time.Duration
}

func DefaultSyncEngineConfig() SyncEngineConfig {
	return SyncEngineConfig{
		Interval:   30 * time.Second,
		MaxRetries: 5,
		Retention:  7 * 24 * time.Hour,
	}
}

type ConnectivityMonitor interface {
	IsOnline() bool
	OnChange(fn func(connectivity.State)) func()
}

// SyncEngine reconciles pending emergency requests with the remote service.
// At most one pass runs at a time; triggers that arrive meanwhile are dropped.
type SyncEngine struct {
	repo      repository.EmergencyRequestRepository
	state     repository.OfflineDataRepository
	submitter Submitter
	monitor   ConnectivityMonitor
	config    SyncEngineConfig
	logger    *logger.Logger
	metrics   *metrics.Metrics

	busy    atomic.Bool
	trigger chan struct{}
	now     func() time.Time
}

func NewSyncEngine(
	repo repository.EmergencyRequestRepository,
	state repository.OfflineDataRepository,
	submitter Submitter,
	monitor ConnectivityMonitor,
	config SyncEngineConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *SyncEngine {
	// Config validation instead of defaults
	if config.Interval <= 0 {
		panic("Interval must be greater than 0")
	}
	if config.MaxRetries < 0 {
		panic("MaxRetries must not be negative")
	}
	if config.Retention <= 0 {
		panic("Retention must be greater than 0")
	}

	return &SyncEngine{
		repo:      repo,
		state:     state,
		submitter: submitter,
		monitor:   monitor,
		config:    config,
		logger:    logger,
		metrics:   metrics,
		trigger:   make(chan struct{}, 1),
		now:       time.Now,
	}
}

// InFlight reports whether a pass is running.
func (e *SyncEngine) InFlight() bool {
	return e.busy.Load()
}

// Trigger asks the Start loop for a pass. It never blocks and is dropped when
// a pass is already running or already requested.
func (e *SyncEngine) Trigger() {
	if e.busy.Load() {
		return
	}
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// Start runs passes on the periodic timer, on nudges and when connectivity
// comes back, until ctx is done.
func (e *SyncEngine) Start(ctx context.Context) {
	unsubscribe := e.monitor.OnChange(func(state connectivity.State) {
		if state == connectivity.Online {
			e.Trigger()
		}
	})
	defer unsubscribe()

	ticker := time.NewTicker(e.config.Interval)
	defer ticker.Stop()

	e.logger.Info("Starting sync engine", "interval", e.config.Interval.String(), "max_retries", e.config.MaxRetries)

	// Catch up on anything queued before a restart.
	e.Trigger()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Shutting down sync engine")
			return
		case <-ticker.C:
			e.runIfOnline(ctx, "periodic")
		case <-e.trigger:
			e.runIfOnline(ctx, "trigger")
		}
	}
}

func (e *SyncEngine) runIfOnline(ctx context.Context, reason string) {
	if !e.monitor.IsOnline() {
		e.logger.Debug("Offline, skipping sync", "reason", reason)
		return
	}

	summary, err := e.SyncOnce(ctx)
	if errors.Is(err, ErrSyncInProgress) {
		e.logger.Debug("Sync already in progress, skipping", "reason", reason)
		return
	}
	if summary.Attempted > 0 || summary.Pruned > 0 {
		e.logger.Info("Sync pass finished",
			"reason", reason,
			"attempted", summary.Attempted,
			"succeeded", summary.Succeeded,
			"failed", summary.Failed,
			"exhausted", summary.Exhausted,
			"pruned", summary.Pruned)
	}
}

// SyncOnce submits every pending request, oldest first, one at a time. It
// returns ErrSyncInProgress without touching the store when another pass is
// running. A pass is not cancelled by ctx; it always finishes the snapshot it
// started with.
func (e *SyncEngine) SyncOnce(ctx context.Context) (model.SyncSummary, error) {
	if !e.busy.CompareAndSwap(false, true) {
		e.metrics.SyncPasses.WithLabelValues("skipped").Inc()
		return model.SyncSummary{}, ErrSyncInProgress
	}
	defer e.busy.Store(false)

	ctx = context.WithoutCancel(ctx)
	timer := prometheus.NewTimer(e.metrics.SyncPassLatency)
	defer timer.ObserveDuration()

	summary := model.SyncSummary{StartedAt: e.now()}
	summary.Pruned = e.repo.Prune(ctx, e.config.Retention)

	for _, req := range e.repo.List(ctx, model.RequestStatusPending) {
		summary.Attempted++

		if err := e.submitter.Submit(ctx, req); err != nil {
			summary.Failed++
			if e.recordFailure(ctx, req, err) {
				summary.Exhausted++
			}
			continue
		}

		if err := e.repo.UpdateStatus(ctx, req.ID, model.RequestStatusSynced); err != nil {
			e.logger.Error(err, "Failed to mark request synced", "request_id", req.ID)
			continue
		}
		summary.Succeeded++
		e.metrics.RequestsSynced.Inc()
	}

	finished := e.now()
	summary.Duration = finished.Sub(summary.StartedAt)
	if err := e.state.SetLastSync(ctx, finished); err != nil {
		e.logger.Debug("Last sync time kept in memory only")
	}

	e.metrics.PendingRequests.Set(float64(e.repo.Count(ctx, model.RequestStatusPending)))
	result := "clean"
	if summary.Failed > 0 {
		result = "partial"
	}
	e.metrics.SyncPasses.WithLabelValues(result).Inc()

	return summary, nil
}

// recordFailure bumps the attempt counter and reports whether the request
// ran out of retries.
func (e *SyncEngine) recordFailure(ctx context.Context, req *model.EmergencyRequest, submitErr error) bool {
	e.metrics.RequestsFailed.Inc()

	attempts, found := e.repo.RecordFailure(ctx, req.ID, submitErr.Error())
	if !found {
		return false
	}

	e.logger.Warn("Failed to sync request",
		"request_id", req.ID,
		"attempt", attempts,
		"max_retries", e.config.MaxRetries,
		"error", submitErr.Error())

	if attempts <= e.config.MaxRetries {
		return false
	}

	if err := e.repo.UpdateStatus(ctx, req.ID, model.RequestStatusFailed); err != nil {
		e.logger.Error(err, "Failed to mark request failed", "request_id", req.ID)
		return false
	}
	e.metrics.RequestsExhausted.Inc()
	e.logger.Warn("Request ran out of retries", "request_id", req.ID, "attempts", attempts)
	return true
}
