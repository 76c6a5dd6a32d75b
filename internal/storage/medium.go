// Package storage is the durable key/value layer under the offline queue.
// It is the only package that talks to the persistence medium.
package storage

import (
	"context"
	"errors"
)

var (
	ErrKeyNotFound   = errors.New("key not found")
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// Medium is a string keyed durable store: a SQLite file on the device, a
// shared Postgres table or Redis.
type Medium interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Usage returns the bytes held by values whose key starts with prefix.
	Usage(ctx context.Context, prefix string) (int64, error)
	Close() error
}
