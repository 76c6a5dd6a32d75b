package repository

import (
	"context"
	"time"

	"github.com/jwalitptl/lifepulse/internal/model"
)

type offlineDataRepository struct {
	store KVStore
}

func NewOfflineDataRepository(store KVStore) OfflineDataRepository {
	return &offlineDataRepository{store: store}
}

func (r *offlineDataRepository) EmergencyContacts(ctx context.Context) []model.EmergencyContact {
	var contacts []model.EmergencyContact
	if !r.store.Load(ctx, KeyEmergencyContacts, &contacts) || len(contacts) == 0 {
		return model.DefaultEmergencyContacts()
	}
	return contacts
}

func (r *offlineDataRepository) SaveEmergencyContacts(ctx context.Context, contacts []model.EmergencyContact) error {
	return r.store.Save(ctx, KeyEmergencyContacts, contacts)
}

func (r *offlineDataRepository) Donors(ctx context.Context) []model.Donor {
	var donors []model.Donor
	if !r.store.Load(ctx, KeyDonors, &donors) {
		return []model.Donor{}
	}
	return donors
}

func (r *offlineDataRepository) SaveDonors(ctx context.Context, donors []model.Donor) error {
	return r.store.Save(ctx, KeyDonors, donors)
}

func (r *offlineDataRepository) LastSync(ctx context.Context) (time.Time, bool) {
	var at time.Time
	if !r.store.Load(ctx, KeyLastSync, &at) {
		return time.Time{}, false
	}
	return at, true
}

func (r *offlineDataRepository) SetLastSync(ctx context.Context, at time.Time) error {
	return r.store.Save(ctx, KeyLastSync, at)
}

func (r *offlineDataRepository) LastLocation(ctx context.Context) (*model.Location, bool) {
	var loc model.Location
	if !r.store.Load(ctx, KeyLastLocation, &loc) {
		return nil, false
	}
	return &loc, true
}

func (r *offlineDataRepository) SaveLastLocation(ctx context.Context, loc model.Location) error {
	return r.store.Save(ctx, KeyLastLocation, loc)
}
