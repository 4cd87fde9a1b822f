package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/folio-gateway/internal/progress"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

// createTestPrincipal inserts an approved principal and returns its id.
func createTestPrincipal(t *testing.T, s *SQLiteStore, id string) string {
	t.Helper()
	require.NoError(t, s.CreatePrincipal(context.Background(), &Principal{
		ID:          id,
		DisplayName: "Reader " + id,
		Status:      PrincipalStatusApproved,
		CreatedAt:   t0,
	}))
	return id
}

func testRecord(id progress.EntityID, overall float64, updated time.Time) *progress.Record {
	rec := progress.NewRecord(id, 2, updated)
	rec.Pages[1] = 100
	rec.Pages[2] = 2*overall - 100
	rec.LastPage = 2
	rec.Overall = overall
	return rec
}

// exerciseProgressStore runs the shared ProgressStore contract against s.
func exerciseProgressStore(t *testing.T, s ProgressStore) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	rec := testRecord(42, 70, t0)
	stored, err := s.Set(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, progress.EntityID(42), stored.PostID)

	got, err := s.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, rec.Pages, got.Pages)
	assert.Equal(t, 2, got.LastPage)
	assert.Equal(t, 70.0, got.Overall)
	assert.Equal(t, progress.StatusReading, got.Status)
	assert.True(t, got.UpdatedAt.Equal(t0))

	// Overwrite by key.
	_, err = s.Set(ctx, testRecord(42, 80, t0.Add(time.Minute)))
	require.NoError(t, err)
	_, err = s.Set(ctx, testRecord(7, 60, t0))
	require.NoError(t, err)

	all, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 80.0, all[42].Overall)

	require.NoError(t, s.Delete(ctx, 42))
	require.NoError(t, s.Delete(ctx, 42))
	_, err = s.Get(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_Contract(t *testing.T) {
	exerciseProgressStore(t, NewLocalStore(NewMemoryKV()))
}

func TestSQLiteStore_ScopedContract(t *testing.T) {
	s := setupTestStore(t)
	exerciseProgressStore(t, s.ScopedTo(createTestPrincipal(t, s, "reader-1")))
}

func TestMockStore_Contract(t *testing.T) {
	exerciseProgressStore(t, NewMockStore())
}
