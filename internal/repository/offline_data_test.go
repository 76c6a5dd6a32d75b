package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/lifepulse/internal/model"
	"github.com/jwalitptl/lifepulse/internal/storage"
)

func TestOfflineDataDefaults(t *testing.T) {
	ctx := context.Background()
	repo := NewOfflineDataRepository(newTestStore(storage.NewMemoryMedium()))

	assert.Equal(t, model.DefaultEmergencyContacts(), repo.EmergencyContacts(ctx))
	assert.Empty(t, repo.Donors(ctx))
	assert.NotNil(t, repo.Donors(ctx))

	_, ok := repo.LastSync(ctx)
	assert.False(t, ok)
}

func TestOfflineDataRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewOfflineDataRepository(newTestStore(storage.NewMemoryMedium()))

	contacts := []model.EmergencyContact{{Name: "District blood bank", Number: "+91 20 2612 0000", Type: model.ContactTypeBloodBank}}
	require.NoError(t, repo.SaveEmergencyContacts(ctx, contacts))
	assert.Equal(t, contacts, repo.EmergencyContacts(ctx))

	donors := []model.Donor{{ID: 7, Name: "Asha", BloodType: "O-", District: "Pune"}}
	require.NoError(t, repo.SaveDonors(ctx, donors))
	assert.Equal(t, donors, repo.Donors(ctx))

	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, repo.SetLastSync(ctx, at))
	got, ok := repo.LastSync(ctx)
	require.True(t, ok)
	assert.True(t, at.Equal(got))
}

func TestLastKnownLocation(t *testing.T) {
	ctx := context.Background()
	medium := storage.NewMemoryMedium()
	repo := NewOfflineDataRepository(newTestStore(medium))

	_, ok := repo.LastLocation(ctx)
	assert.False(t, ok)

	loc := model.Location{
		Latitude:  18.5204,
		Longitude: 73.8567,
		Accuracy:  12.5,
		Address:   "Shivajinagar, Pune",
		Timestamp: time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, repo.SaveLastLocation(ctx, loc))

	// A fresh repository over the same medium sees the cached fix.
	got, ok := NewOfflineDataRepository(newTestStore(medium)).LastLocation(ctx)
	require.True(t, ok)
	assert.Equal(t, loc.Latitude, got.Latitude)
	assert.Equal(t, loc.Longitude, got.Longitude)
	assert.Equal(t, loc.Accuracy, got.Accuracy)
	assert.Equal(t, loc.Address, got.Address)
	assert.True(t, loc.Timestamp.Equal(got.Timestamp))
}
