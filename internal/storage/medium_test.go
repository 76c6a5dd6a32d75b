package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/lifepulse/pkg/logger"
	"github.com/jwalitptl/lifepulse/pkg/metrics"
)

func openSQLite(t *testing.T, path string) *SQLMedium {
	t.Helper()
	m, err := OpenSQLMedium(context.Background(), DriverSQLite, path)
	require.NoError(t, err)
	return m
}

func TestMediums(t *testing.T) {
	mediums := map[string]func(t *testing.T) Medium{
		"memory": func(t *testing.T) Medium { return NewMemoryMedium() },
		"sqlite": func(t *testing.T) Medium {
			return openSQLite(t, filepath.Join(t.TempDir(), "kv.db"))
		},
	}

	for name, open := range mediums {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			m := open(t)
			defer m.Close()

			_, err := m.Get(ctx, "lifepulse_missing")
			assert.ErrorIs(t, err, ErrKeyNotFound)

			require.NoError(t, m.Set(ctx, "lifepulse_a", "1234"))
			require.NoError(t, m.Set(ctx, "lifepulse_b", "56"))
			require.NoError(t, m.Set(ctx, "otherapp_c", "789"))

			v, err := m.Get(ctx, "lifepulse_a")
			require.NoError(t, err)
			assert.Equal(t, "1234", v)

			require.NoError(t, m.Set(ctx, "lifepulse_a", "12"))
			v, err = m.Get(ctx, "lifepulse_a")
			require.NoError(t, err)
			assert.Equal(t, "12", v)

			used, err := m.Usage(ctx, "lifepulse_")
			require.NoError(t, err)
			assert.Equal(t, int64(4), used)
		})
	}
}

func TestSQLiteMediumSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "queue.db")

	first := NewStore(openSQLite(t, path), Config{}, logger.Nop(), metrics.NewNop())
	require.NoError(t, first.Save(ctx, "emergency_requests", []record{{ID: "a", Units: 2}}))
	require.NoError(t, first.Close())

	second := NewStore(openSQLite(t, path), Config{}, logger.Nop(), metrics.NewNop())
	defer second.Close()

	var out []record
	require.True(t, second.Load(ctx, "emergency_requests", &out))
	assert.Equal(t, []record{{ID: "a", Units: 2}}, out)
	assert.NoError(t, second.Ping(ctx))
}

func TestOpenMedium(t *testing.T) {
	ctx := context.Background()

	m, err := OpenMedium(ctx, DriverMemory, "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryMedium{}, m)

	m, err = OpenMedium(ctx, DriverSQLite, filepath.Join(t.TempDir(), "open.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLMedium{}, m)
	assert.NoError(t, m.Close())

	_, err = OpenMedium(ctx, "floppy", "")
	assert.Error(t, err)

	_, err = OpenMedium(ctx, DriverRedis, "not a url")
	assert.Error(t, err)
}
