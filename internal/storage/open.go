package storage

import (
	"context"
	"fmt"
)

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// OpenMedium returns the medium for driver. dsn is a file path or DSN for
// the SQL drivers and a redis:// URL for redis.
func OpenMedium(ctx context.Context, driver, dsn string) (Medium, error) {
	switch driver {
	case DriverMemory:
		return NewMemoryMedium(), nil
	case DriverSQLite, DriverPostgres:
		return OpenSQLMedium(ctx, driver, dsn)
	case DriverRedis:
		return OpenRedisMedium(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
