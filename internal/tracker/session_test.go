package tracker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/folio-gateway/internal/persist"
	"github.com/2389/folio-gateway/internal/progress"
	"github.com/2389/folio-gateway/internal/sampler"
	"github.com/2389/folio-gateway/internal/store"
)

func newAnonymousSession(t *testing.T, local store.ProgressStore, p sampler.PageContext) *Session {
	t.Helper()
	s := NewSession(DefaultConfig(), 7, p, persist.Anonymous(), persist.New(local), nil)
	s.Open(context.Background(), t0)
	return s
}

func scroll(n int, percent float64) Event {
	return Event{Kind: EventScroll, At: ms(n), Geometry: at(percent)}
}

func TestSession_ThrottleAndTrailingTick(t *testing.T) {
	ctx := context.Background()
	local := store.NewLocalStore(store.NewMemoryKV())
	s := newAnonymousSession(t, local, page(1, 1))

	require.NotNil(t, s.HandleEvent(ctx, Event{Kind: EventLoad, At: ms(0), Geometry: at(10)}))
	require.NotNil(t, s.HandleEvent(ctx, scroll(100, 50)))

	// Dropped by the limiter, released by a later tick.
	assert.Nil(t, s.HandleEvent(ctx, scroll(200, 60)))
	assert.Nil(t, s.Tick(ctx, ms(300)))
	intent := s.Tick(ctx, ms(410))
	require.NotNil(t, intent)
	assert.InDelta(t, 60.0, intent.Record.Overall, 1e-9)

	rec, err := local.Get(ctx, 7)
	require.NoError(t, err)
	assert.InDelta(t, 60.0, rec.Overall, 1e-9)
}

func TestSession_LatchBypassesLimiter(t *testing.T) {
	ctx := context.Background()
	local := store.NewLocalStore(store.NewMemoryKV())
	s := newAnonymousSession(t, local, page(2, 2))

	require.NotNil(t, s.HandleEvent(ctx, scroll(0, 50)))
	// Inside the throttle window, but the viewport reaches the bottom.
	bottom := Event{Kind: EventScroll, At: ms(40), Geometry: sampler.Geometry{
		ScrollY: docHeight - viewport, ViewportHeight: viewport, DocumentHeight: docHeight,
	}}
	intent := s.HandleEvent(ctx, bottom)
	require.NotNil(t, intent)
	assert.Equal(t, 100.0, intent.Record.Pages[2])
	assert.Equal(t, 100.0, intent.Record.Overall)
}

func TestSession_LoadDoesNotCountAsInteraction(t *testing.T) {
	ctx := context.Background()
	s := newAnonymousSession(t, store.NewLocalStore(store.NewMemoryKV()), page(1, 1))

	short := sampler.Geometry{ScrollY: 0, ViewportHeight: viewport, DocumentHeight: 600}
	intent := s.HandleEvent(ctx, Event{Kind: EventLoad, At: ms(0), Geometry: short})
	require.NotNil(t, intent)
	assert.Less(t, intent.Record.Overall, 100.0)
}

func TestSession_ResumesStoredRecord(t *testing.T) {
	ctx := context.Background()
	local := store.NewMockStore()
	stored := progress.NewRecord(7, 2, t0)
	stored.Pages[1] = 100
	stored.Pages[2] = 40
	stored.LastPage = 2
	local.Put(progress.Normalize(stored, t0))

	s := NewSession(DefaultConfig(), 7, page(2, 3), persist.Anonymous(), persist.New(local), nil)
	rec := s.Open(ctx, t0)
	assert.Equal(t, 3, rec.TotalPages)
	assert.InDelta(t, 46.666, rec.Overall, 0.01)
	assert.InDelta(t, 46.666, s.Engine().Peak(), 0.01)
}

func TestSession_StorageUnavailableKeepsTracking(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	kv.Err = store.ErrUnavailable
	s := newAnonymousSession(t, store.NewLocalStore(kv), page(1, 1))

	assert.NotNil(t, s.HandleEvent(ctx, Event{Kind: EventLoad, At: ms(0), Geometry: at(20)}))
	assert.NotNil(t, s.HandleEvent(ctx, scroll(500, 40)))
}

func TestSession_MarkSuppressesTracking(t *testing.T) {
	ctx := context.Background()
	local := store.NewLocalStore(store.NewMemoryKV())
	s := newAnonymousSession(t, local, page(1, 1))

	require.NotNil(t, s.HandleEvent(ctx, scroll(0, 30)))

	rec, err := s.Mark(ctx, true, ms(100))
	require.NoError(t, err)
	assert.Equal(t, progress.StatusLocked, rec.Status)
	assert.Equal(t, 100.0, rec.Overall)

	assert.Nil(t, s.HandleEvent(ctx, scroll(500, 50)))
	assert.Nil(t, s.Close(ctx, ms(600)))

	stored, err := local.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, progress.StatusLocked, stored.Status)
}

func TestSession_UnmarkKeepsPercentage(t *testing.T) {
	ctx := context.Background()
	local := store.NewLocalStore(store.NewMemoryKV())
	s := newAnonymousSession(t, local, page(1, 1))

	_, err := s.Mark(ctx, true, ms(0))
	require.NoError(t, err)
	rec, err := s.Mark(ctx, false, ms(100))
	require.NoError(t, err)
	assert.Equal(t, progress.StatusReading, rec.Status)
	assert.Equal(t, 100.0, rec.Overall)
	assert.False(t, s.Engine().Locked())
}

func TestSession_AuthenticatedCommitsRemote(t *testing.T) {
	ctx := context.Background()
	local, remote := store.NewMockStore(), store.NewMockStore()
	adapter := persist.New(local, persist.WithRemote(remote))
	s := NewSession(DefaultConfig(), 7, page(1, 1), persist.Owner{PrincipalID: "reader"}, adapter, nil)
	s.Open(ctx, t0)

	s.HandleEvent(ctx, Event{Kind: EventLoad, At: ms(0), Geometry: at(20)})
	s.HandleEvent(ctx, scroll(50, 30))
	adapter.Wait()
	// Dropped by the limiter, then picked up by the final evaluation.
	s.HandleEvent(ctx, scroll(100, 45))
	intent := s.Close(ctx, ms(150))
	require.NotNil(t, intent)

	rec, err := remote.Get(ctx, 7)
	require.NoError(t, err)
	assert.InDelta(t, 45.0, rec.Overall, 1e-9)
	assert.Equal(t, 0, local.SetCalls())
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newAnonymousSession(t, store.NewMockStore(), page(1, 1))
	s.HandleEvent(ctx, Event{Kind: EventLoad, At: ms(0), Geometry: at(20)})

	s.Close(ctx, ms(10))
	assert.Nil(t, s.Close(ctx, ms(20)))
	assert.Nil(t, s.HandleEvent(ctx, scroll(30, 60)))
}

func TestEventKind_Interaction(t *testing.T) {
	assert.True(t, EventScroll.Interaction())
	assert.True(t, EventKey.Interaction())
	assert.False(t, EventLoad.Interaction())
	assert.False(t, EventResize.Interaction())
}
