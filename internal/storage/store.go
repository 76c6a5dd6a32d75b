package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/lifepulse/internal/model"
	apperrors "github.com/jwalitptl/lifepulse/pkg/errors"
	"github.com/jwalitptl/lifepulse/pkg/logger"
	"github.com/jwalitptl/lifepulse/pkg/metrics"
)

const (
	DefaultNamespace = "lifepulse_"
	DefaultCapacity  = 5 * 1024 * 1024

	// EnvelopeVersion is bumped when the envelope layout changes; older
	// envelopes then read as absent.
	EnvelopeVersion = 1
)

// Envelope wraps every stored payload.
type Envelope struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	Version   int             `json:"version"`
}

type Config struct {
	Namespace string
	Capacity  int64
}

// Store is the durable queue store. Save never fails loudly: a write that the
// medium rejects is kept in an in-process shadow so later loads in the same
// process still see it.
type Store struct {
	medium  Medium
	config  Config
	shadow  *cache.Cache
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewStore(medium Medium, config Config, log *logger.Logger, m *metrics.Metrics) *Store {
	if config.Namespace == "" {
		config.Namespace = DefaultNamespace
	}
	if config.Capacity <= 0 {
		config.Capacity = DefaultCapacity
	}

	return &Store{
		medium:  medium,
		config:  config,
		shadow:  cache.New(cache.NoExpiration, 0),
		logger:  log,
		metrics: m,
		now:     time.Now,
	}
}

func (s *Store) key(key string) string {
	return s.config.Namespace + key
}

// Save writes payload under key. The returned error is informational; it has
// already been logged and the payload remains readable from this process.
func (s *Store) Save(ctx context.Context, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		s.observe("save", err)
		return apperrors.NewStorage("encode", key, err)
	}

	encoded, err := json.Marshal(Envelope{
		Data:      data,
		Timestamp: s.now().UnixMilli(),
		Version:   EnvelopeVersion,
	})
	if err != nil {
		s.observe("save", err)
		return apperrors.NewStorage("encode", key, err)
	}

	nsKey := s.key(key)
	if err := s.write(ctx, nsKey, string(encoded)); err != nil {
		s.shadow.Set(nsKey, string(encoded), cache.NoExpiration)
		s.logger.Error(err, "Failed to save offline data, keeping it in memory", "key", key)
		s.observe("save", err)
		return apperrors.NewStorage("save", key, err)
	}

	s.shadow.Delete(nsKey)
	s.observe("save", nil)
	return nil
}

func (s *Store) write(ctx context.Context, nsKey, value string) error {
	used, err := s.medium.Usage(ctx, s.config.Namespace)
	if err != nil {
		return err
	}

	var previous int64
	if old, err := s.medium.Get(ctx, nsKey); err == nil {
		previous = int64(len(old))
	} else if !errors.Is(err, ErrKeyNotFound) {
		return err
	}

	projected := used - previous + int64(len(value))
	if projected > s.config.Capacity {
		return fmt.Errorf("%w: %d of %d bytes", ErrQuotaExceeded, projected, s.config.Capacity)
	}

	if err := s.medium.Set(ctx, nsKey, value); err != nil {
		return err
	}
	s.metrics.StorageUsedBytes.Set(float64(projected))
	return nil
}

// Load decodes the payload stored under key into dst. It reports false when
// the key was never written or its envelope is unreadable.
func (s *Store) Load(ctx context.Context, key string, dst interface{}) bool {
	env, ok := s.envelope(ctx, key)
	if !ok {
		return false
	}

	if err := json.Unmarshal(env.Data, dst); err != nil {
		s.logger.Warn("Discarding unreadable offline data", "key", key, "error", err.Error())
		s.observe("load", err)
		return false
	}
	s.observe("load", nil)
	return true
}

// LastWrite returns the timestamp of the latest write of key.
func (s *Store) LastWrite(ctx context.Context, key string) (time.Time, bool) {
	env, ok := s.envelope(ctx, key)
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(env.Timestamp), true
}

func (s *Store) envelope(ctx context.Context, key string) (*Envelope, bool) {
	nsKey := s.key(key)

	raw, ok := s.shadowed(nsKey)
	if !ok {
		var err error
		raw, err = s.medium.Get(ctx, nsKey)
		if errors.Is(err, ErrKeyNotFound) {
			return nil, false
		}
		if err != nil {
			s.logger.Error(err, "Failed to get offline data", "key", key)
			s.observe("load", err)
			return nil, false
		}
	}

	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		s.logger.Warn("Discarding corrupt offline envelope", "key", key, "error", err.Error())
		s.observe("load", err)
		return nil, false
	}
	if env.Version != EnvelopeVersion {
		s.logger.Warn("Discarding offline envelope with unknown version", "key", key, "version", env.Version)
		return nil, false
	}
	return &env, true
}

func (s *Store) shadowed(nsKey string) (string, bool) {
	v, ok := s.shadow.Get(nsKey)
	if !ok {
		return "", false
	}
	raw, ok := v.(string)
	return raw, ok
}

// Usage reports bytes held by namespaced keys against the configured capacity.
func (s *Store) Usage(ctx context.Context) model.StorageUsage {
	usage := model.StorageUsage{Capacity: s.config.Capacity, Available: s.config.Capacity}

	used, err := s.medium.Usage(ctx, s.config.Namespace)
	if err != nil {
		s.logger.Error(err, "Failed to compute storage usage")
		return usage
	}

	usage.Used = used
	usage.Available = s.config.Capacity - used
	if usage.Available < 0 {
		usage.Available = 0
	}
	s.metrics.StorageUsedBytes.Set(float64(used))
	return usage
}

// Ping checks the medium when it is backed by a server or database.
func (s *Store) Ping(ctx context.Context) error {
	if p, ok := s.medium.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (s *Store) Close() error {
	return s.medium.Close()
}

func (s *Store) observe(op string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.StorageOperations.WithLabelValues(op, status).Inc()
}
