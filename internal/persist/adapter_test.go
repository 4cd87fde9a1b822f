package persist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/folio-gateway/internal/progress"
	"github.com/2389/folio-gateway/internal/store"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var reader = Owner{PrincipalID: "reader-1"}

// slowRemote delays writes of records that are not yet complete.
type slowRemote struct {
	*store.MockStore
	delay time.Duration
}

func (s *slowRemote) Set(ctx context.Context, rec *progress.Record) (*progress.Record, error) {
	if rec.Overall < 100 {
		time.Sleep(s.delay)
	}
	return s.MockStore.Set(ctx, rec)
}

// gatedRemote holds its first write until release is closed.
type gatedRemote struct {
	*store.MockStore
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedRemote() *gatedRemote {
	return &gatedRemote{
		MockStore: store.NewMockStore(),
		started:   make(chan struct{}),
		release:   make(chan struct{}),
	}
}

func (g *gatedRemote) Set(ctx context.Context, rec *progress.Record) (*progress.Record, error) {
	g.once.Do(func() {
		close(g.started)
		<-g.release
	})
	return g.MockStore.Set(ctx, rec)
}

func withOverall(id progress.EntityID, overall float64) *progress.Record {
	rec := progress.NewRecord(id, 1, t0)
	rec.Pages[1] = overall
	return progress.Normalize(rec, t0)
}

func TestCommit_AnonymousGoesLocal(t *testing.T) {
	local, remote := store.NewMockStore(), store.NewMockStore()
	a := New(local, WithRemote(remote))

	a.Commit(context.Background(), Anonymous(), progress.NewRecord(1, 1, t0))
	a.Wait()

	assert.Equal(t, 1, local.SetCalls())
	assert.Equal(t, 0, remote.SetCalls())
}

func TestCommit_AuthenticatedGoesRemote(t *testing.T) {
	local, remote := store.NewMockStore(), store.NewMockStore()
	a := New(local, WithRemote(remote))

	a.Commit(context.Background(), reader, progress.NewRecord(1, 1, t0))
	a.Wait()

	assert.Equal(t, 0, local.SetCalls())
	assert.Equal(t, 1, remote.SetCalls())
	_, err := remote.Get(context.Background(), 1)
	assert.NoError(t, err)
}

func TestCommit_AuthenticatedWithoutRemoteFallsBack(t *testing.T) {
	local := store.NewMockStore()
	a := New(local)
	a.Commit(context.Background(), reader, progress.NewRecord(1, 1, t0))
	assert.Equal(t, 1, local.SetCalls())
}

func TestCommit_FailuresSwallowed(t *testing.T) {
	local, remote := store.NewMockStore(), store.NewMockStore()
	local.SetErr = store.ErrUnavailable
	remote.SetErr = errors.New("network down")
	a := New(local, WithRemote(remote))

	assert.NotPanics(t, func() {
		a.Commit(context.Background(), Anonymous(), progress.NewRecord(1, 1, t0))
		a.Commit(context.Background(), reader, progress.NewRecord(1, 1, t0))
		a.Wait()
	})
	assert.Equal(t, 1, remote.SetCalls())
}

func TestCommit_SurvivesCallerCancellation(t *testing.T) {
	local, remote := store.NewMockStore(), store.NewMockStore()
	a := New(local, WithRemote(remote))

	ctx, cancel := context.WithCancel(context.Background())
	a.Commit(ctx, reader, progress.NewRecord(3, 1, t0))
	cancel()
	a.Wait()

	_, err := remote.Get(context.Background(), 3)
	assert.NoError(t, err)
}

func TestCommit_RemoteKeepsCommitOrder(t *testing.T) {
	remote := &slowRemote{MockStore: store.NewMockStore(), delay: 50 * time.Millisecond}
	a := New(store.NewMockStore(), WithRemote(remote))
	ctx := context.Background()

	a.Commit(ctx, reader, withOverall(1, 80))
	a.Commit(ctx, reader, withOverall(1, 100))
	a.Wait()

	rec, err := remote.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 100.0, rec.Overall)
}

func TestCommit_QueuedCommitIsSuperseded(t *testing.T) {
	remote := newGatedRemote()
	a := New(store.NewMockStore(), WithRemote(remote))
	ctx := context.Background()

	a.Commit(ctx, reader, withOverall(1, 10))
	<-remote.started
	a.Commit(ctx, reader, withOverall(1, 20))
	a.Commit(ctx, reader, withOverall(2, 5))
	a.Commit(ctx, reader, withOverall(1, 30))
	close(remote.release)
	a.Wait()

	// 10 was already in flight; 20 was replaced by 30 before it was sent.
	assert.Equal(t, 3, remote.SetCalls())
	rec, err := remote.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 30.0, rec.Overall)
	rec, err = remote.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 5.0, rec.Overall)
}

func TestCommit_SenderRestartsAfterDrain(t *testing.T) {
	remote := store.NewMockStore()
	a := New(store.NewMockStore(), WithRemote(remote))
	ctx := context.Background()

	a.Commit(ctx, reader, withOverall(1, 10))
	a.Wait()
	a.Commit(ctx, reader, withOverall(1, 20))
	a.Wait()

	assert.Equal(t, 2, remote.SetCalls())
	rec, err := remote.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 20.0, rec.Overall)
}

func TestMark_RemoteLandsAfterPendingCommits(t *testing.T) {
	remote := &slowRemote{MockStore: store.NewMockStore(), delay: 50 * time.Millisecond}
	a := New(store.NewMockStore(), WithRemote(remote))
	ctx := context.Background()

	a.Commit(ctx, reader, withOverall(4, 30))
	rec, err := a.Mark(ctx, reader, withOverall(4, 30), true, t0)
	require.NoError(t, err)
	assert.Equal(t, progress.StatusLocked, rec.Status)
	a.Wait()

	stored, err := remote.Get(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, progress.StatusLocked, stored.Status)
	assert.Equal(t, 100.0, stored.Overall)
}

func TestCommit_CopiesRecord(t *testing.T) {
	local := store.NewMockStore()
	a := New(local)
	rec := progress.NewRecord(1, 1, t0)
	a.Commit(context.Background(), Anonymous(), rec)
	rec.Pages[1] = 90

	got, err := local.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Pages[1])
}

func TestMark_RemoteUsesMarker(t *testing.T) {
	local, remote := store.NewMockStore(), store.NewMockStore()
	a := New(local, WithRemote(remote))

	rec, err := a.Mark(context.Background(), reader, progress.NewRecord(4, 2, t0), true, t0)
	require.NoError(t, err)
	assert.Equal(t, progress.StatusLocked, rec.Status)
	assert.Equal(t, 1, remote.MarkCalls())
	assert.Equal(t, 0, remote.SetCalls())
}

func TestMark_LocalAppliesPolicy(t *testing.T) {
	local := store.NewMockStore()
	a := New(local)

	base := progress.NewRecord(4, 2, t0)
	base.Overall = 30
	rec, err := a.Mark(context.Background(), Anonymous(), base, true, t0)
	require.NoError(t, err)
	assert.Equal(t, 100.0, rec.Overall)

	rec, err = a.Mark(context.Background(), Anonymous(), rec, false, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, progress.StatusReading, rec.Status)
	assert.Equal(t, 100.0, rec.Overall)
}

func TestMark_ReturnsErrors(t *testing.T) {
	local := store.NewMockStore()
	local.SetErr = store.ErrUnavailable
	a := New(local)

	_, err := a.Mark(context.Background(), Anonymous(), progress.NewRecord(4, 1, t0), true, t0)
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func TestLoadOrNew(t *testing.T) {
	local := store.NewMockStore()
	a := New(local)
	ctx := context.Background()

	fresh := a.LoadOrNew(ctx, Anonymous(), 5, 3, t0)
	assert.Equal(t, 3, fresh.TotalPages)
	assert.Equal(t, 0.0, fresh.Overall)

	stored := progress.NewRecord(5, 2, t0)
	stored.Pages[1] = 40
	stored.LastPage = 2
	local.Put(stored)

	loaded := a.LoadOrNew(ctx, Anonymous(), 5, 3, t0)
	assert.Equal(t, 3, loaded.TotalPages)
	assert.Equal(t, 100.0, loaded.Pages[1])

	local.GetErr = store.ErrUnavailable
	degraded := a.LoadOrNew(ctx, Anonymous(), 5, 3, t0)
	assert.Equal(t, 0.0, degraded.Pages[1])
}
