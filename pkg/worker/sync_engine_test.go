package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/lifepulse/internal/connectivity"
	"github.com/jwalitptl/lifepulse/internal/model"
	"github.com/jwalitptl/lifepulse/internal/repository"
	"github.com/jwalitptl/lifepulse/internal/storage"
	"github.com/jwalitptl/lifepulse/pkg/logger"
	"github.com/jwalitptl/lifepulse/pkg/metrics"
)

type fixture struct {
	store    *storage.Store
	repo     repository.EmergencyRequestRepository
	state    repository.OfflineDataRepository
	monitor  *connectivity.Monitor
	metrics  *metrics.Metrics
	recorder *recordingSubmitter
	engine   *SyncEngine
}

// recordingSubmitter remembers delivered ids in order and fails while err is
// set.
type recordingSubmitter struct {
	mu        sync.Mutex
	delivered []string
	calls     int
	err       error
}

func (s *recordingSubmitter) Submit(_ context.Context, req *model.EmergencyRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.delivered = append(s.delivered, req.ID)
	return nil
}

func (s *recordingSubmitter) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *recordingSubmitter) snapshot() ([]string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.delivered...), s.calls
}

func newFixture(t *testing.T, online bool, submitter Submitter) *fixture {
	t.Helper()

	m := metrics.NewNop()
	store := storage.NewStore(storage.NewMemoryMedium(), storage.Config{}, logger.Nop(), m)
	f := &fixture{
		store:   store,
		repo:    repository.NewEmergencyRequestRepository(store, logger.Nop()),
		state:   repository.NewOfflineDataRepository(store),
		monitor: connectivity.NewMonitor(online, nil, connectivity.Config{}, logger.Nop(), m),
		metrics: m,
	}
	if submitter == nil {
		f.recorder = &recordingSubmitter{}
		submitter = f.recorder
	}

	cfg := DefaultSyncEngineConfig()
	cfg.Interval = time.Hour
	f.engine = NewSyncEngine(f.repo, f.state, submitter, f.monitor, cfg, logger.Nop(), m)
	return f
}

func draft(bloodType string) model.EmergencyRequestDraft {
	return model.EmergencyRequestDraft{
		BloodType:    bloodType,
		Location:     "Emergency ward",
		Urgency:      "Critical",
		PatientName:  "S. Khan",
		Hospital:     "Sassoon General",
		ContactPhone: "+91 90000 00000",
		UnitsNeeded:  1,
	}
}

func TestSyncOnceDeliversPendingOldestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true, nil)

	var ids []string
	for _, bt := range []string{"A+", "B+", "O-"} {
		ids = append(ids, f.repo.Enqueue(ctx, draft(bt)).ID)
	}

	summary, err := f.engine.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Attempted)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)

	delivered, _ := f.recorder.snapshot()
	assert.Equal(t, ids, delivered)
	assert.Equal(t, 0, f.repo.Count(ctx, model.RequestStatusPending))
	assert.Equal(t, 3, f.repo.Count(ctx, model.RequestStatusSynced))
	assert.Equal(t, float64(3), testutil.ToFloat64(f.metrics.RequestsSynced))

	_, ok := f.state.LastSync(ctx)
	assert.True(t, ok)

	// Synced records are never submitted again.
	summary, err = f.engine.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Attempted)
	_, calls := f.recorder.snapshot()
	assert.Equal(t, 3, calls)
}

func TestSyncOnceMarksFailedAfterMaxRetries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true, nil)
	f.recorder.setErr(errors.New("503 from server"))

	req := f.repo.Enqueue(ctx, draft("AB+"))
	maxRetries := f.engine.config.MaxRetries

	for pass := 1; pass <= maxRetries; pass++ {
		summary, err := f.engine.SyncOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Failed)
		assert.Equal(t, 0, summary.Exhausted)

		got, _ := f.repo.Get(ctx, req.ID)
		assert.Equal(t, model.RequestStatusPending, got.Status, "pass %d", pass)
		assert.Equal(t, pass, got.Attempts)
	}

	summary, err := f.engine.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Exhausted)

	got, _ := f.repo.Get(ctx, req.ID)
	assert.Equal(t, model.RequestStatusFailed, got.Status)
	assert.Equal(t, maxRetries+1, got.Attempts)
	assert.Equal(t, "503 from server", got.LastError)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.RequestsExhausted))

	// Failed requests are left alone until an operator retries them.
	summary, _ = f.engine.SyncOnce(ctx)
	assert.Equal(t, 0, summary.Attempted)

	f.recorder.setErr(nil)
	_, err = f.repo.Retry(ctx, req.ID)
	require.NoError(t, err)

	summary, _ = f.engine.SyncOnce(ctx)
	assert.Equal(t, 1, summary.Succeeded)
	got, _ = f.repo.Get(ctx, req.ID)
	assert.Equal(t, model.RequestStatusSynced, got.Status)
}

func TestSyncOnceContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	var failID string
	var delivered []string
	submitter := SubmitterFunc(func(_ context.Context, req *model.EmergencyRequest) error {
		if req.ID == failID {
			return errors.New("rejected")
		}
		delivered = append(delivered, req.ID)
		return nil
	})
	f := newFixture(t, true, submitter)

	first := f.repo.Enqueue(ctx, draft("A-"))
	second := f.repo.Enqueue(ctx, draft("B-"))
	third := f.repo.Enqueue(ctx, draft("O+"))
	failID = second.ID

	summary, err := f.engine.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, []string{first.ID, third.ID}, delivered)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.SyncPasses.WithLabelValues("partial")))
}

func TestSyncOnceAllowsOnePassAtATime(t *testing.T) {
	ctx := context.Background()
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	submitter := SubmitterFunc(func(context.Context, *model.EmergencyRequest) error {
		once.Do(func() { close(entered) })
		<-release
		return nil
	})
	f := newFixture(t, true, submitter)
	f.repo.Enqueue(ctx, draft("A+"))

	done := make(chan model.SyncSummary)
	go func() {
		summary, _ := f.engine.SyncOnce(ctx)
		done <- summary
	}()

	<-entered
	assert.True(t, f.engine.InFlight())

	_, err := f.engine.SyncOnce(ctx)
	assert.ErrorIs(t, err, ErrSyncInProgress)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.SyncPasses.WithLabelValues("skipped")))

	// Triggers while busy are dropped, not queued.
	f.engine.Trigger()
	assert.Len(t, f.engine.trigger, 0)

	close(release)
	summary := <-done
	assert.Equal(t, 1, summary.Succeeded)
	assert.False(t, f.engine.InFlight())
}

func TestSyncOncePrunesExpiredRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true, nil)

	now := time.Now()
	old := &model.EmergencyRequest{
		ID:                    "emergency_1_000000000001",
		CreatedAt:             now.Add(-8 * 24 * time.Hour),
		Status:                model.RequestStatusPending,
		EmergencyRequestDraft: draft("B+"),
	}
	recent := &model.EmergencyRequest{
		ID:                    "emergency_2_000000000002",
		CreatedAt:             now.Add(-time.Hour),
		Status:                model.RequestStatusSynced,
		EmergencyRequestDraft: draft("B+"),
	}
	require.NoError(t, f.store.Save(ctx, repository.KeyEmergencyRequests, []*model.EmergencyRequest{old, recent}))

	summary, err := f.engine.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Pruned)
	assert.Equal(t, 0, summary.Attempted, "expired pending records are dropped, not submitted")

	remaining := f.repo.List(ctx, "")
	require.Len(t, remaining, 1)
	assert.Equal(t, recent.ID, remaining[0].ID)
}

func TestStartSyncsOnReconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t, false, nil)

	var ids []string
	for _, bt := range []string{"O-", "O+", "A-"} {
		ids = append(ids, f.repo.Enqueue(ctx, draft(bt)).ID)
	}

	go f.engine.Start(ctx)

	// Offline: the startup trigger must not submit anything.
	time.Sleep(50 * time.Millisecond)
	_, calls := f.recorder.snapshot()
	assert.Equal(t, 0, calls)

	f.monitor.Set(true)

	assert.Eventually(t, func() bool {
		return f.repo.Count(context.Background(), model.RequestStatusSynced) == 3
	}, 2*time.Second, 10*time.Millisecond)

	delivered, _ := f.recorder.snapshot()
	assert.Equal(t, ids, delivered)
}

func TestStartCatchesUpWhenAlreadyOnline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t, true, nil)
	f.repo.Enqueue(ctx, draft("AB-"))

	go f.engine.Start(ctx)

	assert.Eventually(t, func() bool {
		return f.repo.Count(context.Background(), model.RequestStatusPending) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSyncOnceIgnoresRequestsEnqueuedMidPass(t *testing.T) {
	ctx := context.Background()
	var f *fixture
	var late *model.EmergencyRequest
	submitter := SubmitterFunc(func(ctx context.Context, req *model.EmergencyRequest) error {
		if late == nil {
			late = f.repo.Enqueue(ctx, draft("O-"))
		}
		return nil
	})
	f = newFixture(t, true, submitter)
	first := f.repo.Enqueue(ctx, draft("A+"))

	summary, err := f.engine.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Attempted)
	assert.Equal(t, 1, summary.Succeeded)

	got, _ := f.repo.Get(ctx, first.ID)
	assert.Equal(t, model.RequestStatusSynced, got.Status)

	require.NotNil(t, late)
	got, _ = f.repo.Get(ctx, late.ID)
	assert.Equal(t, model.RequestStatusPending, got.Status)
	assert.Equal(t, 0, got.Attempts)

	// The next pass picks it up.
	summary, err = f.engine.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Attempted)
}

func TestStartFinishesPassBeforeReturning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")
	m := metrics.NewNop()

	openStore := func() *storage.Store {
		medium, err := storage.OpenSQLMedium(context.Background(), storage.DriverSQLite, path)
		require.NoError(t, err)
		return storage.NewStore(medium, storage.Config{}, logger.Nop(), m)
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	submitter := SubmitterFunc(func(context.Context, *model.EmergencyRequest) error {
		once.Do(func() { close(entered) })
		<-release
		return nil
	})

	store := openStore()
	repo := repository.NewEmergencyRequestRepository(store, logger.Nop())
	mon := connectivity.NewMonitor(true, nil, connectivity.Config{}, logger.Nop(), m)
	cfg := DefaultSyncEngineConfig()
	cfg.Interval = time.Hour
	engine := NewSyncEngine(repo, repository.NewOfflineDataRepository(store), submitter, mon, cfg, logger.Nop(), m)

	req := repo.Enqueue(context.Background(), draft("B-"))

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		engine.Start(ctx)
		close(stopped)
	}()

	<-entered
	cancel()

	select {
	case <-stopped:
		t.Fatal("Start returned while a pass was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after the pass finished")
	}
	require.NoError(t, store.Close())

	reopened := openStore()
	defer reopened.Close()
	got, ok := repository.NewEmergencyRequestRepository(reopened, logger.Nop()).Get(context.Background(), req.ID)
	require.True(t, ok)
	assert.Equal(t, model.RequestStatusSynced, got.Status)
}

func TestNewSyncEngineRejectsInvalidConfig(t *testing.T) {
	m := metrics.NewNop()
	store := storage.NewStore(storage.NewMemoryMedium(), storage.Config{}, logger.Nop(), m)
	repo := repository.NewEmergencyRequestRepository(store, logger.Nop())
	state := repository.NewOfflineDataRepository(store)
	mon := connectivity.NewMonitor(true, nil, connectivity.Config{}, logger.Nop(), m)

	assert.Panics(t, func() {
		NewSyncEngine(repo, state, &recordingSubmitter{}, mon, SyncEngineConfig{MaxRetries: 5, Retention: time.Hour}, logger.Nop(), m)
	})
	assert.Panics(t, func() {
		NewSyncEngine(repo, state, &recordingSubmitter{}, mon, SyncEngineConfig{Interval: time.Second, MaxRetries: -1, Retention: time.Hour}, logger.Nop(), m)
	})
}
