// ABOUTME: Routes progress commits to the local or remote store by identity
// ABOUTME: Remote commits go through one latest-wins worker; every failure is swallowed

package persist

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/folio-gateway/internal/progress"
	"github.com/2389/folio-gateway/internal/store"
)

// DefaultRemoteTimeout bounds one fire-and-forget remote commit.
const DefaultRemoteTimeout = 10 * time.Second

// Owner identifies whose progress map a commit belongs to. The zero value
// is the anonymous reader.
type Owner struct {
	PrincipalID string
}

// Anonymous returns the anonymous owner.
func Anonymous() Owner {
	return Owner{}
}

// Authenticated reports whether the owner has an identity.
func (o Owner) Authenticated() bool {
	return o.PrincipalID != ""
}

// Adapter routes progress to the identity-scoped remote store or the
// anonymous local store.
type Adapter struct {
	local   store.ProgressStore
	remote  store.ProgressStore
	timeout time.Duration
	logger  *slog.Logger

	// Remote commits waiting for the sender, at most one per article.
	mu      sync.Mutex
	pending map[pendingKey]*progress.Record
	queue   []pendingKey
	sending bool
	wg      sync.WaitGroup
}

type pendingKey struct {
	principalID string
	postID      progress.EntityID
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithRemote sets the store used for authenticated owners.
func WithRemote(remote store.ProgressStore) Option {
	return func(a *Adapter) {
		a.remote = remote
	}
}

// WithTimeout bounds each remote commit.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		a.timeout = d
	}
}

// WithLogger sets the logger for swallowed failures.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = l
	}
}

// New creates an Adapter over the anonymous local store.
func New(local store.ProgressStore, opts ...Option) *Adapter {
	a := &Adapter{
		local:   local,
		timeout: DefaultRemoteTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "persist")
	return a
}

// StoreFor returns the store holding owner's records. Authenticated owners
// fall back to the local store when no remote is configured.
func (a *Adapter) StoreFor(owner Owner) store.ProgressStore {
	if a.isRemote(owner) {
		return a.remote
	}
	return a.local
}

func (a *Adapter) isRemote(owner Owner) bool {
	return owner.Authenticated() && a.remote != nil
}

// Load returns owner's record for id.
func (a *Adapter) Load(ctx context.Context, owner Owner, id progress.EntityID) (*progress.Record, error) {
	return a.StoreFor(owner).Get(ctx, id)
}

// Commit persists rec for owner. Local commits are synchronous. Remote
// commits are queued for a single background sender, so they reach the
// server in commit order; a record still waiting when a newer one for the
// same article arrives is replaced. Each send has a bounded timeout and is
// never retried. Failures are logged at debug level and otherwise ignored.
func (a *Adapter) Commit(ctx context.Context, owner Owner, rec *progress.Record) {
	rec = rec.Clone()

	if a.isRemote(owner) {
		a.enqueue(context.WithoutCancel(ctx), pendingKey{principalID: owner.PrincipalID, postID: rec.PostID}, rec)
		return
	}

	if _, err := a.local.Set(ctx, rec); err != nil {
		a.logger.Debug("local commit failed", "post_id", rec.PostID, "error", err)
	}
}

func (a *Adapter) enqueue(ctx context.Context, key pendingKey, rec *progress.Record) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pending == nil {
		a.pending = make(map[pendingKey]*progress.Record)
	}
	if _, queued := a.pending[key]; queued {
		a.logger.Debug("superseding queued commit", "post_id", key.postID)
	} else {
		a.queue = append(a.queue, key)
	}
	a.pending[key] = rec

	if !a.sending {
		a.sending = true
		a.wg.Add(1)
		go a.send(ctx)
	}
}

func (a *Adapter) discard(key pendingKey) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, queued := a.pending[key]; !queued {
		return
	}
	delete(a.pending, key)
	for i, k := range a.queue {
		if k == key {
			a.queue = append(a.queue[:i], a.queue[i+1:]...)
			break
		}
	}
}

// send drains the queue in order and exits when it is empty.
func (a *Adapter) send(ctx context.Context) {
	defer a.wg.Done()

	for {
		a.mu.Lock()
		if len(a.queue) == 0 {
			a.sending = false
			a.mu.Unlock()
			return
		}
		key := a.queue[0]
		a.queue = a.queue[1:]
		rec := a.pending[key]
		delete(a.pending, key)
		a.mu.Unlock()

		cctx, cancel := context.WithTimeout(ctx, a.timeout)
		if _, err := a.remote.Set(cctx, rec); err != nil {
			a.logger.Debug("remote commit failed", "post_id", rec.PostID, "error", err)
		}
		cancel()
	}
}

// Mark applies an explicit mark or unmark to rec for owner and returns the
// stored record. Remote stores that implement store.Marker apply the policy
// server-side; queued remote commits for the article are dropped and
// in-flight ones finish first. Unlike Commit, failures are returned.
func (a *Adapter) Mark(ctx context.Context, owner Owner, rec *progress.Record, locked bool, now time.Time) (*progress.Record, error) {
	if a.isRemote(owner) {
		// A queued commit must not land after the mark and undo it.
		a.discard(pendingKey{principalID: owner.PrincipalID, postID: rec.PostID})
		a.Wait()
		if m, ok := a.remote.(store.Marker); ok {
			return m.Mark(ctx, rec.PostID, locked)
		}
	}
	return a.StoreFor(owner).Set(ctx, progress.ApplyMark(rec, locked, now))
}

// LoadOrNew returns owner's record for id, or a fresh record when it is
// missing or the store cannot be read.
func (a *Adapter) LoadOrNew(ctx context.Context, owner Owner, id progress.EntityID, totalPages int, now time.Time) *progress.Record {
	rec, err := a.Load(ctx, owner, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			a.logger.Debug("load failed, starting fresh", "post_id", id, "error", err)
		}
		return progress.NewRecord(id, totalPages, now)
	}
	return progress.WithTotalPages(rec, totalPages, now)
}

// Wait blocks until every queued remote commit has been sent.
func (a *Adapter) Wait() {
	a.wg.Wait()
}
