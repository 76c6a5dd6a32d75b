package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/lifepulse/internal/model"
	apperrors "github.com/jwalitptl/lifepulse/pkg/errors"
	"github.com/jwalitptl/lifepulse/pkg/logger"
)

// emergencyRequestRepository keeps the whole collection under a single key
// and rewrites it on every mutation. mu serialises those read-modify-write
// cycles between Enqueue and the sync engine.
type emergencyRequestRepository struct {
	store  KVStore
	logger *logger.Logger
	mu     sync.Mutex
	now    func() time.Time
}

func NewEmergencyRequestRepository(store KVStore, log *logger.Logger) EmergencyRequestRepository {
	return newEmergencyRequestRepository(store, log, time.Now)
}

func newEmergencyRequestRepository(store KVStore, log *logger.Logger, now func() time.Time) *emergencyRequestRepository {
	return &emergencyRequestRepository{
		store:  store,
		logger: log,
		now:    now,
	}
}

func (r *emergencyRequestRepository) load(ctx context.Context) []*model.EmergencyRequest {
	var requests []*model.EmergencyRequest
	if !r.store.Load(ctx, KeyEmergencyRequests, &requests) {
		return nil
	}
	return requests
}

func (r *emergencyRequestRepository) save(ctx context.Context, requests []*model.EmergencyRequest) {
	if requests == nil {
		requests = []*model.EmergencyRequest{}
	}
	// The store logs and shadows failed writes.
	_ = r.store.Save(ctx, KeyEmergencyRequests, requests)
}

func (r *emergencyRequestRepository) Enqueue(ctx context.Context, draft model.EmergencyRequestDraft) *model.EmergencyRequest {
	r.mu.Lock()
	defer r.mu.Unlock()

	requests := r.load(ctx)
	now := r.now()

	request := &model.EmergencyRequest{
		ID:                    r.newID(now, requests),
		CreatedAt:             now,
		Status:                model.RequestStatusPending,
		EmergencyRequestDraft: draft,
	}

	r.save(ctx, append(requests, request))
	r.logger.Info("Emergency request queued",
		"request_id", request.ID,
		"blood_type", request.BloodType,
		"urgency", request.Urgency)

	copied := *request
	return &copied
}

// newID returns emergency_<unix ms>_<random>, unique within requests.
func (r *emergencyRequestRepository) newID(now time.Time, requests []*model.EmergencyRequest) string {
	for {
		suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
		id := fmt.Sprintf("emergency_%d_%s", now.UnixMilli(), suffix)
		if indexOf(requests, id) < 0 {
			return id
		}
	}
}

func (r *emergencyRequestRepository) List(ctx context.Context, status model.RequestStatus) []*model.EmergencyRequest {
	r.mu.Lock()
	defer r.mu.Unlock()

	requests := r.load(ctx)
	if status == "" {
		if requests == nil {
			return []*model.EmergencyRequest{}
		}
		return requests
	}

	filtered := make([]*model.EmergencyRequest, 0, len(requests))
	for _, req := range requests {
		if req.Status == status {
			filtered = append(filtered, req)
		}
	}
	return filtered
}

func (r *emergencyRequestRepository) Get(ctx context.Context, id string) (*model.EmergencyRequest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	requests := r.load(ctx)
	if i := indexOf(requests, id); i >= 0 {
		return requests[i], true
	}
	return nil, false
}

func (r *emergencyRequestRepository) Count(ctx context.Context, status model.RequestStatus) int {
	return len(r.List(ctx, status))
}

// UpdateStatus is a no-op when id is gone; a concurrent prune may have
// removed it.
func (r *emergencyRequestRepository) UpdateStatus(ctx context.Context, id string, status model.RequestStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	requests := r.load(ctx)
	i := indexOf(requests, id)
	if i < 0 {
		r.logger.Debug("Status update for missing request ignored", "request_id", id, "status", string(status))
		return nil
	}

	req := requests[i]
	if req.Status == status {
		return nil
	}
	if !req.Status.CanTransition(status) {
		return apperrors.Conflict(
			fmt.Sprintf("cannot move request from %s to %s", req.Status, status), nil)
	}

	req.Status = status
	if status == model.RequestStatusSynced {
		syncedAt := r.now()
		req.SyncedAt = &syncedAt
		req.LastError = ""
	}

	r.save(ctx, requests)
	return nil
}

func (r *emergencyRequestRepository) RecordFailure(ctx context.Context, id string, reason string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	requests := r.load(ctx)
	i := indexOf(requests, id)
	if i < 0 || requests[i].Status != model.RequestStatusPending {
		return 0, false
	}

	requests[i].Attempts++
	requests[i].LastError = reason
	r.save(ctx, requests)
	return requests[i].Attempts, true
}

// Retry puts a failed request back in the queue with a fresh retry budget.
func (r *emergencyRequestRepository) Retry(ctx context.Context, id string) (*model.EmergencyRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	requests := r.load(ctx)
	i := indexOf(requests, id)
	if i < 0 {
		return nil, apperrors.NotFound("emergency request", nil)
	}

	req := requests[i]
	if !req.Status.CanTransition(model.RequestStatusPending) {
		return nil, apperrors.Conflict(fmt.Sprintf("request is %s, only failed requests can be retried", req.Status), nil)
	}

	req.Status = model.RequestStatusPending
	req.Attempts = 0
	req.LastError = ""
	r.save(ctx, requests)

	copied := *req
	return &copied, nil
}

// Prune drops records created before now-horizon whatever their status and
// returns how many were removed.
func (r *emergencyRequestRepository) Prune(ctx context.Context, horizon time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	requests := r.load(ctx)
	cutoff := r.now().Add(-horizon)

	kept := make([]*model.EmergencyRequest, 0, len(requests))
	for _, req := range requests {
		if req.CreatedAt.After(cutoff) {
			kept = append(kept, req)
		}
	}

	removed := len(requests) - len(kept)
	if removed > 0 {
		r.save(ctx, kept)
		r.logger.Info("Pruned old emergency requests", "removed", removed, "cutoff", cutoff)
	}
	return removed
}

func indexOf(requests []*model.EmergencyRequest, id string) int {
	for i, req := range requests {
		if req.ID == id {
			return i
		}
	}
	return -1
}
