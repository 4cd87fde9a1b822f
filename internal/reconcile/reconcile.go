// ABOUTME: One-shot merge of the anonymous local progress map into an identity's remote map
// ABOUTME: Newer local records are pushed, then the local map is cleared regardless of outcome

package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/2389/folio-gateway/internal/persist"
	"github.com/2389/folio-gateway/internal/progress"
	"github.com/2389/folio-gateway/internal/store"
)

// DefaultConcurrency is the number of pushes allowed in flight at once.
const DefaultConcurrency = 4

// LocalStore is the anonymous map being drained.
type LocalStore interface {
	store.ProgressStore
	Clear(ctx context.Context) error
}

// Result summarizes one reconciliation run.
type Result struct {
	Ran     bool `json:"ran"`
	Scanned int  `json:"scanned"`
	Pushed  int  `json:"pushed"`
	Skipped int  `json:"skipped"`
	Failed  int  `json:"failed"`
	Cleared bool `json:"cleared"`
}

// Reconciler pushes local records to the remote store for an identity.
type Reconciler struct {
	local       LocalStore
	remote      store.ProgressStore
	owner       persist.Owner
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithConcurrency sets the push concurrency limit.
func WithConcurrency(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = l
	}
}

// WithClock overrides the clock used for normalization.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
	}
}

// New creates a Reconciler draining local into remote for owner.
func New(local LocalStore, remote store.ProgressStore, owner persist.Owner, opts ...Option) *Reconciler {
	r := &Reconciler{
		local:       local,
		remote:      remote,
		owner:       owner,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "reconcile")
	return r
}

// Run performs the merge. It does nothing for an anonymous owner or an
// empty local map. Remote read failures are treated as an empty remote map
// and push failures are counted, never retried.
func (r *Reconciler) Run(ctx context.Context) Result {
	var res Result
	if !r.owner.Authenticated() || r.remote == nil {
		return res
	}

	local, err := r.local.List(ctx)
	if err != nil {
		r.logger.Debug("local read failed", "error", err)
		return res
	}
	if len(local) == 0 {
		return res
	}
	res.Ran = true

	remote, err := r.remote.List(ctx)
	if err != nil {
		r.logger.Debug("remote read failed, treating as empty", "error", err)
		remote = store.Records{}
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(r.concurrency)

	for id, rec := range local {
		if rec == nil {
			continue
		}
		res.Scanned++
		if !push(rec, remote[id]) {
			res.Skipped++
			continue
		}

		out := progress.Normalize(rec, r.now())
		g.Go(func() error {
			_, err := r.remote.Set(ctx, out)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.logger.Debug("push failed", "post_id", out.PostID, "error", err)
				res.Failed++
			} else {
				res.Pushed++
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := r.local.Clear(ctx); err != nil {
		r.logger.Debug("local clear failed", "error", err)
	} else {
		res.Cleared = true
	}

	r.logger.Info("reconciled local progress",
		"principal_id", r.owner.PrincipalID,
		"scanned", res.Scanned,
		"pushed", res.Pushed,
		"skipped", res.Skipped,
		"failed", res.Failed,
	)
	return res
}

// push reports whether a local record should overwrite the remote one.
// Unlocked records claiming 100% are treated as corrupt and dropped.
func push(local, remote *progress.Record) bool {
	if !local.Locked() && local.Overall >= 100 {
		return false
	}
	if remote == nil {
		return true
	}
	return local.UpdatedAt.After(remote.UpdatedAt)
}
