package emergency

import (
	"context"
	"errors"
	"time"

	"github.com/jwalitptl/lifepulse/internal/model"
	"github.com/jwalitptl/lifepulse/internal/repository"
	apperrors "github.com/jwalitptl/lifepulse/pkg/errors"
	"github.com/jwalitptl/lifepulse/pkg/logger"
	"github.com/jwalitptl/lifepulse/pkg/worker"
)

var ErrOffline = errors.New("remote service unreachable")

const (
	MessageQueuedOffline = "Request saved, will sync when online"
	MessageSyncing       = "Request saved, sync in progress"
)

type (
	Engine interface {
		Trigger()
		SyncOnce(ctx context.Context) (model.SyncSummary, error)
	}

	Monitor interface {
		IsOnline() bool
	}

	UsageReporter interface {
		Usage(ctx context.Context) model.StorageUsage
	}
)

// Ack is returned to the UI right after a submission.
type Ack struct {
	Request *model.EmergencyRequest `json:"request"`
	Queued  bool                    `json:"queued"`
	Message string                  `json:"message"`
}

type EmergencyServicer interface {
	Submit(ctx context.Context, draft model.EmergencyRequestDraft) *Ack
	List(ctx context.Context, status model.RequestStatus) []*model.EmergencyRequest
	Get(ctx context.Context, id string) (*model.EmergencyRequest, error)
	PendingCount(ctx context.Context) int
	Retry(ctx context.Context, id string) (*model.EmergencyRequest, error)
	SyncNow(ctx context.Context) (model.SyncSummary, error)
	Status(ctx context.Context) model.QueueStatus

	EmergencyContacts(ctx context.Context) []model.EmergencyContact
	SaveEmergencyContacts(ctx context.Context, contacts []model.EmergencyContact) error
	Donors(ctx context.Context) []model.Donor
	SaveDonors(ctx context.Context, donors []model.Donor) error
	LastLocation(ctx context.Context) (*model.Location, error)
	SaveLastLocation(ctx context.Context, loc model.Location) (*model.Location, error)
}

type Service struct {
	repo    repository.EmergencyRequestRepository
	data    repository.OfflineDataRepository
	engine  Engine
	monitor Monitor
	usage   UsageReporter
	logger  *logger.Logger
}

func NewService(
	repo repository.EmergencyRequestRepository,
	data repository.OfflineDataRepository,
	engine Engine,
	monitor Monitor,
	usage UsageReporter,
	logger *logger.Logger,
) *Service {
	return &Service{
		repo:    repo,
		data:    data,
		engine:  engine,
		monitor: monitor,
		usage:   usage,
		logger:  logger,
	}
}

// Submit always queues the request locally first and never waits on the
// network. When online the sync engine is nudged to deliver it right away.
func (s *Service) Submit(ctx context.Context, draft model.EmergencyRequestDraft) *Ack {
	req := s.repo.Enqueue(ctx, draft)

	if s.monitor.IsOnline() {
		s.engine.Trigger()
		return &Ack{Request: req, Queued: false, Message: MessageSyncing}
	}
	return &Ack{Request: req, Queued: true, Message: MessageQueuedOffline}
}

func (s *Service) List(ctx context.Context, status model.RequestStatus) []*model.EmergencyRequest {
	return s.repo.List(ctx, status)
}

func (s *Service) Get(ctx context.Context, id string) (*model.EmergencyRequest, error) {
	req, ok := s.repo.Get(ctx, id)
	if !ok {
		return nil, apperrors.NotFound("emergency request", nil)
	}
	return req, nil
}

func (s *Service) PendingCount(ctx context.Context) int {
	return s.repo.Count(ctx, model.RequestStatusPending)
}

func (s *Service) Retry(ctx context.Context, id string) (*model.EmergencyRequest, error) {
	req, err := s.repo.Retry(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Failed request re-queued", "request_id", id)
	if s.monitor.IsOnline() {
		s.engine.Trigger()
	}
	return req, nil
}

// SyncNow runs a pass on the caller's goroutine.
func (s *Service) SyncNow(ctx context.Context) (model.SyncSummary, error) {
	if !s.monitor.IsOnline() {
		return model.SyncSummary{}, apperrors.Unavailable("offline, requests will sync when connection returns", ErrOffline)
	}

	summary, err := s.engine.SyncOnce(ctx)
	if errors.Is(err, worker.ErrSyncInProgress) {
		return summary, apperrors.Conflict("sync already in progress", err)
	}
	return summary, err
}

func (s *Service) Status(ctx context.Context) model.QueueStatus {
	status := model.QueueStatus{
		Online:  s.monitor.IsOnline(),
		Pending: s.repo.Count(ctx, model.RequestStatusPending),
		Failed:  s.repo.Count(ctx, model.RequestStatusFailed),
		Storage: s.usage.Usage(ctx),
	}
	if at, ok := s.data.LastSync(ctx); ok {
		status.LastSync = &at
	}
	return status
}

func (s *Service) EmergencyContacts(ctx context.Context) []model.EmergencyContact {
	return s.data.EmergencyContacts(ctx)
}

func (s *Service) SaveEmergencyContacts(ctx context.Context, contacts []model.EmergencyContact) error {
	return s.data.SaveEmergencyContacts(ctx, contacts)
}

func (s *Service) Donors(ctx context.Context) []model.Donor {
	return s.data.Donors(ctx)
}

func (s *Service) SaveDonors(ctx context.Context, donors []model.Donor) error {
	return s.data.SaveDonors(ctx, donors)
}

func (s *Service) LastLocation(ctx context.Context) (*model.Location, error) {
	loc, ok := s.data.LastLocation(ctx)
	if !ok {
		return nil, apperrors.NotFound("last known location", nil)
	}
	return loc, nil
}

// SaveLastLocation stamps loc with the current time when the caller sent none.
func (s *Service) SaveLastLocation(ctx context.Context, loc model.Location) (*model.Location, error) {
	if loc.Timestamp.IsZero() {
		loc.Timestamp = time.Now().UTC()
	}
	if err := s.data.SaveLastLocation(ctx, loc); err != nil {
		return nil, err
	}
	return &loc, nil
}
