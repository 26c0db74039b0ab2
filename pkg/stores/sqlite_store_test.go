package stores

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a migrated store in a temporary directory
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: filepath.Join(t.TempDir(), "journal.db"),
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Init(ctx))
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestNewSQLiteStoreRequiresPath(t *testing.T) {
	_, err := NewSQLiteStore(Config{})
	assert.Error(t, err)
}

func TestStoreLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.HealthCheck(ctx))
	// Migrating twice is a no-op.
	require.NoError(t, store.Migrate(ctx))

	uninitialized, err := NewSQLiteStore(Config{Path: "unused.db"})
	require.NoError(t, err)
	assert.Error(t, uninitialized.HealthCheck(ctx))
	assert.Error(t, uninitialized.Migrate(ctx))
	assert.NoError(t, uninitialized.Close())
}

func TestRunCRUD(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run := &Run{
		ID:             "run-1",
		Path:           "/etc/nginx/nginx.conf",
		Recipe:         "nginx-sites-enabled",
		Block:          "http",
		Status:         RunStatusChanged,
		Neutralized:    2,
		Inserted:       true,
		ChecksumBefore: "aaa",
		ChecksumAfter:  "bbb",
		BackupPath:     "/etc/nginx/nginx.conf.bak",
		StartedAt:      started,
		Duration:       1234567 * time.Nanosecond,
	}
	require.NoError(t, store.CreateRun(ctx, run))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run, got)
	// Runs finish in well under a millisecond; the journal keeps full precision.
	assert.Equal(t, 1234567*time.Nanosecond, got.Duration)

	_, err = store.GetRun(ctx, "missing")
	assert.True(t, errors.Is(err, ErrRunNotFound))

	// Duplicate IDs are rejected.
	assert.Error(t, store.CreateRun(ctx, run))
}

func TestListRuns(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := "[structural] block \"http\" not found"
	runs := []*Run{
		{ID: "a", Path: "/etc/nginx/nginx.conf", Block: "http", Status: RunStatusChanged, Inserted: true, StartedAt: base},
		{ID: "b", Path: "/etc/nginx/nginx.conf", Block: "http", Status: RunStatusUnchanged, StartedAt: base.Add(time.Minute)},
		{ID: "c", Path: "/etc/nginx/other.conf", Block: "http", Status: RunStatusFailed, Error: &msg, StartedAt: base.Add(2 * time.Minute)},
	}
	for _, r := range runs {
		require.NoError(t, store.CreateRun(ctx, r))
	}

	tests := []struct {
		name    string
		filter  RunFilter
		wantIDs []string
	}{
		{name: "all newest first", filter: RunFilter{}, wantIDs: []string{"c", "b", "a"}},
		{name: "by path", filter: RunFilter{Path: "/etc/nginx/nginx.conf"}, wantIDs: []string{"b", "a"}},
		{name: "by status", filter: RunFilter{Status: RunStatusFailed}, wantIDs: []string{"c"}},
		{name: "limit", filter: RunFilter{Limit: 1}, wantIDs: []string{"c"}},
		{name: "no match", filter: RunFilter{Path: "/nope"}, wantIDs: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListRuns(ctx, tt.filter)
			require.NoError(t, err)

			var ids []string
			for _, r := range got {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}

	failed, err := store.GetRun(ctx, "c")
	require.NoError(t, err)
	require.NotNil(t, failed.Error)
	assert.Equal(t, msg, *failed.Error)
}
