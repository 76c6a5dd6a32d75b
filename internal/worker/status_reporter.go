package worker

import (
	"context"
	"time"

	"github.com/jwalitptl/lifepulse/internal/model"
	"github.com/jwalitptl/lifepulse/pkg/logger"
	"github.com/jwalitptl/lifepulse/pkg/metrics"
)

type StatusSource interface {
	Status(ctx context.Context) model.QueueStatus
}

// StatusReporter keeps the queue gauges fresh between sync passes, which
// matters while offline when no pass runs at all.
type StatusReporter struct {
	source   StatusSource
	interval time.Duration
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewStatusReporter(source StatusSource, interval time.Duration, log *logger.Logger, m *metrics.Metrics) *StatusReporter {
	if interval <= 0 {
		interval = time.Minute
	}
	return &StatusReporter{
		source:   source,
		interval: interval,
		logger:   log,
		metrics:  m,
	}
}

func (w *StatusReporter) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Report(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Report(ctx)
		}
	}
}

func (w *StatusReporter) Report(ctx context.Context) model.QueueStatus {
	status := w.source.Status(ctx)

	w.metrics.PendingRequests.Set(float64(status.Pending))
	w.metrics.FailedRequests.Set(float64(status.Failed))
	w.metrics.StorageUsedBytes.Set(float64(status.Storage.Used))

	if status.Storage.Capacity > 0 && status.Storage.Available < status.Storage.Capacity/10 {
		w.logger.Warn("Offline storage almost full",
			"used", status.Storage.Used,
			"available", status.Storage.Available)
	}
	return status
}
