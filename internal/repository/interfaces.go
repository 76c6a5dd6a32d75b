package repository

import (
	"context"
	"time"

	"github.com/jwalitptl/lifepulse/internal/model"
)

// Well known storage keys.
const (
	KeyEmergencyRequests = "emergency_requests"
	KeyEmergencyContacts = "emergency_contacts"
	KeyDonors            = "donors"
	KeyLastSync          = "last_sync"
	KeyLastLocation      = "last_known_location"
)

type (
	// KVStore is the durable queue store as seen by repositories.
	KVStore interface {
		Save(ctx context.Context, key string, payload interface{}) error
		Load(ctx context.Context, key string, dst interface{}) bool
	}

	// EmergencyRequestRepository owns the queued emergency requests.
	EmergencyRequestRepository interface {
		Enqueue(ctx context.Context, draft model.EmergencyRequestDraft) *model.EmergencyRequest
		// List returns records oldest first; an empty status returns all.
		List(ctx context.Context, status model.RequestStatus) []*model.EmergencyRequest
		Get(ctx context.Context, id string) (*model.EmergencyRequest, bool)
		Count(ctx context.Context, status model.RequestStatus) int
		UpdateStatus(ctx context.Context, id string, status model.RequestStatus) error
		RecordFailure(ctx context.Context, id string, reason string) (attempts int, found bool)
		Retry(ctx context.Context, id string) (*model.EmergencyRequest, error)
		Prune(ctx context.Context, horizon time.Duration) int
	}

	// OfflineDataRepository caches reference data needed while disconnected.
	OfflineDataRepository interface {
		EmergencyContacts(ctx context.Context) []model.EmergencyContact
		SaveEmergencyContacts(ctx context.Context, contacts []model.EmergencyContact) error
		Donors(ctx context.Context) []model.Donor
		SaveDonors(ctx context.Context, donors []model.Donor) error
		LastSync(ctx context.Context) (time.Time, bool)
		SetLastSync(ctx context.Context, at time.Time) error
		LastLocation(ctx context.Context) (*model.Location, bool)
		SaveLastLocation(ctx context.Context, loc model.Location) error
	}
)
