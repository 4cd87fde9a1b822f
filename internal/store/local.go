// ABOUTME: Anonymous progress store holding every record in one JSON entry of a KV
// ABOUTME: Read-modify-write of the whole map; malformed contents read as empty

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2389/folio-gateway/internal/progress"
)

// LocalKey is the KV entry holding the anonymous progress map.
const LocalKey = "folio_progress_v1"

// LocalStore implements ProgressStore over a single KV entry mapping the
// decimal entity id to its record. Concurrent writers sharing the same KV
// race at whole-map granularity; the last write wins.
type LocalStore struct {
	kv     KV
	key    string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewLocalStore creates a LocalStore over kv.
func NewLocalStore(kv KV) *LocalStore {
	return &LocalStore{
		kv:     kv,
		key:    LocalKey,
		logger: slog.Default().With("component", "local_store"),
	}
}

// Get implements ProgressStore.
func (l *LocalStore) Get(ctx context.Context, id progress.EntityID) (*progress.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	all, err := l.read()
	if err != nil {
		return nil, err
	}
	rec, ok := all[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Set implements ProgressStore.
func (l *LocalStore) Set(ctx context.Context, rec *progress.Record) (*progress.Record, error) {
	if !rec.PostID.Valid() {
		return nil, fmt.Errorf("%w: %d", progress.ErrInvalidEntity, rec.PostID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	all, err := l.read()
	if err != nil {
		return nil, err
	}
	all[rec.PostID] = rec.Clone()
	if err := l.write(all); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// List implements ProgressStore.
func (l *LocalStore) List(ctx context.Context) (Records, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

// Delete implements ProgressStore.
func (l *LocalStore) Delete(ctx context.Context, id progress.EntityID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	all, err := l.read()
	if err != nil {
		return err
	}
	if _, ok := all[id]; !ok {
		return nil
	}
	delete(all, id)
	return l.write(all)
}

// Clear removes the whole anonymous map.
func (l *LocalStore) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.kv.RemoveItem(l.key); err != nil {
		return fmt.Errorf("clearing local progress: %w", err)
	}
	return nil
}

func (l *LocalStore) read() (Records, error) {
	raw, ok, err := l.kv.GetItem(l.key)
	if err != nil {
		return nil, fmt.Errorf("reading local progress: %w", err)
	}
	out := make(Records)
	if !ok || raw == "" {
		return out, nil
	}

	var entries map[string]*progress.Record
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		l.logger.Warn("discarding malformed local progress", "error", err)
		return out, nil
	}
	for key, rec := range entries {
		id, err := progress.ParseEntityID(key)
		if err != nil || rec == nil {
			continue
		}
		rec.PostID = id
		out[id] = rec
	}
	return out, nil
}

func (l *LocalStore) write(all Records) error {
	entries := make(map[string]*progress.Record, len(all))
	for id, rec := range all {
		entries[id.String()] = rec
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encoding local progress: %w", err)
	}
	if err := l.kv.SetItem(l.key, string(data)); err != nil {
		return fmt.Errorf("writing local progress: %w", err)
	}
	return nil
}

var _ ProgressStore = (*LocalStore)(nil)
