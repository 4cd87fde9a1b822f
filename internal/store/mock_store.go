// ABOUTME: Mock ProgressStore implementation for testing
// ABOUTME: In-memory map with per-operation failure injection and call counters

package store

import (
	"context"
	"sync"
	"time"

	"github.com/2389/folio-gateway/internal/progress"
)

// MockStore is an in-memory ProgressStore for testing. Setting one of the
// *Err fields makes the matching operation fail.
type MockStore struct {
	mu      sync.RWMutex
	records Records

	GetErr    error
	SetErr    error
	ListErr   error
	DeleteErr error

	sets  int
	marks int
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{records: make(Records)}
}

// Get implements ProgressStore.
func (m *MockStore) Get(ctx context.Context, id progress.EntityID) (*progress.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.GetErr != nil {
		return nil, m.GetErr
	}
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// Set implements ProgressStore.
func (m *MockStore) Set(ctx context.Context, rec *progress.Record) (*progress.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sets++
	if m.SetErr != nil {
		return nil, m.SetErr
	}
	// Make a copy to avoid external modification
	m.records[rec.PostID] = rec.Clone()
	return rec.Clone(), nil
}

// List implements ProgressStore.
func (m *MockStore) List(ctx context.Context) (Records, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make(Records, len(m.records))
	for id, rec := range m.records {
		out[id] = rec.Clone()
	}
	return out, nil
}

// Delete implements ProgressStore.
func (m *MockStore) Delete(ctx context.Context, id progress.EntityID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.records, id)
	return nil
}

// Mark implements Marker with the server's mark policy.
func (m *MockStore) Mark(ctx context.Context, id progress.EntityID, locked bool) (*progress.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.marks++
	if m.SetErr != nil {
		return nil, m.SetErr
	}
	now := time.Now()
	rec, ok := m.records[id]
	if !ok {
		rec = progress.NewRecord(id, 1, now)
	}
	rec = progress.ApplyMark(rec, locked, now)
	m.records[id] = rec
	return rec.Clone(), nil
}

// Put seeds a record without counting it as a Set call.
func (m *MockStore) Put(rec *progress.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.PostID] = rec.Clone()
}

// SetCalls returns how many times Set was called, including failed calls.
func (m *MockStore) SetCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sets
}

// MarkCalls returns how many times Mark was called.
func (m *MockStore) MarkCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.marks
}

var (
	_ ProgressStore = (*MockStore)(nil)
	_ Marker        = (*MockStore)(nil)
)
