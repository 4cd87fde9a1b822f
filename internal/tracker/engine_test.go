package tracker

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/folio-gateway/internal/progress"
	"github.com/2389/folio-gateway/internal/sampler"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const (
	docHeight = 4000.0
	viewport  = 800.0
)

// at returns a geometry whose viewport center sits at percent of the document.
func at(percent float64) sampler.Geometry {
	return sampler.Geometry{
		ScrollY:        percent*docHeight/100 - viewport/2,
		ViewportHeight: viewport,
		DocumentHeight: docHeight,
	}
}

func ms(n int) time.Time {
	return t0.Add(time.Duration(n) * time.Millisecond)
}

func page(current, total int) sampler.PageContext {
	return sampler.PageContext{CurrentPage: current, TotalPages: total}
}

// secondPageAt60 is a two-page record read to the middle of page 2.
func secondPageAt60() *progress.Record {
	rec := progress.NewRecord(1, 2, t0)
	rec.Pages[1] = 100
	rec.Pages[2] = 20
	rec.LastPage = 2
	return progress.Normalize(rec, t0)
}

func TestOnSample_FirstSampleCommits(t *testing.T) {
	e := NewEngine(DefaultConfig(), progress.NewRecord(1, 1, t0))

	intent := e.OnSample(at(20), page(1, 1), ms(0))
	require.NotNil(t, intent)
	assert.InDelta(t, 20.0, intent.Record.Overall, 1e-9)
	assert.InDelta(t, 20.0, intent.Record.Pages[1], 1e-9)
	assert.Equal(t, ms(0), intent.Record.UpdatedAt)
	assert.False(t, intent.Regression)
}

func TestOnSample_NoSaveZoneDwell(t *testing.T) {
	rec := secondPageAt60()
	require.InDelta(t, 60.0, rec.Overall, 1e-9)
	e := NewEngine(DefaultConfig(), rec)
	require.InDelta(t, 60.0, e.Peak(), 1e-9)

	// Center at 10% of page 2: provisional overall 55, inside the zone.
	assert.Nil(t, e.OnSample(at(10), page(2, 2), ms(0)))
	assert.Nil(t, e.OnSample(at(10), page(2, 2), ms(1199)))

	intent := e.OnSample(at(10), page(2, 2), ms(1200))
	require.NotNil(t, intent)
	assert.True(t, intent.Regression)
	assert.InDelta(t, 55.0, intent.Record.Overall, 1e-9)
	assert.InDelta(t, 10.0, intent.Record.Pages[2], 1e-9)
	assert.InDelta(t, 60.0, e.Peak(), 1e-9)
}

func TestOnSample_RegressionAfterCommitInSameSession(t *testing.T) {
	e := NewEngine(DefaultConfig(), progress.NewRecord(1, 2, t0))

	// Center at 20% of page 2 with page 1 filled forward: 60 overall.
	intent := e.OnSample(at(20), page(2, 2), ms(0))
	require.NotNil(t, intent)
	require.InDelta(t, 60.0, intent.Record.Overall, 1e-9)

	assert.Nil(t, e.OnSample(at(10), page(2, 2), ms(100)))
	assert.Nil(t, e.OnSample(at(10), page(2, 2), ms(1299)))

	intent = e.OnSample(at(10), page(2, 2), ms(1300))
	require.NotNil(t, intent)
	assert.True(t, intent.Regression)
	assert.InDelta(t, 55.0, intent.Record.Overall, 1e-9)
	assert.InDelta(t, 60.0, e.Peak(), 1e-9)

	// The regressed level is now the baseline for the step check.
	assert.Nil(t, e.OnSample(at(10.5), page(2, 2), ms(1400)))
	assert.NotNil(t, e.OnSample(at(12), page(2, 2), ms(1500)))
}

func TestOnSample_NoSaveZoneUpwardMoveRestartsDwell(t *testing.T) {
	e := NewEngine(DefaultConfig(), secondPageAt60())

	assert.Nil(t, e.OnSample(at(10), page(2, 2), ms(0)))
	// Back up to 12%: still a regression, but above the pending level.
	assert.Nil(t, e.OnSample(at(12), page(2, 2), ms(800)))
	assert.Nil(t, e.OnSample(at(12), page(2, 2), ms(1300)))
	assert.Nil(t, e.OnSample(at(12), page(2, 2), ms(1999)))

	intent := e.OnSample(at(12), page(2, 2), ms(2000))
	require.NotNil(t, intent)
	assert.InDelta(t, 56.0, intent.Record.Overall, 1e-9)
}

func TestOnSample_NoSaveZoneDeeperRegressionKeepsTimer(t *testing.T) {
	e := NewEngine(DefaultConfig(), secondPageAt60())

	assert.Nil(t, e.OnSample(at(12), page(2, 2), ms(0)))
	assert.Nil(t, e.OnSample(at(10), page(2, 2), ms(600)))
	// Up again but not above the first regressed level.
	assert.Nil(t, e.OnSample(at(11), page(2, 2), ms(900)))

	intent := e.OnSample(at(11), page(2, 2), ms(1200))
	require.NotNil(t, intent)
	assert.InDelta(t, 55.5, intent.Record.Overall, 1e-9)
}

func TestOnSample_OutsideZoneDwell(t *testing.T) {
	rec := progress.NewRecord(1, 1, t0)
	rec.Pages[1] = 40
	e := NewEngine(DefaultConfig(), progress.Normalize(rec, t0))

	assert.Nil(t, e.OnSample(at(30), page(1, 1), ms(0)))
	// Further decrease continues the same dwell.
	assert.Nil(t, e.OnSample(at(25), page(1, 1), ms(600)))
	// Any uptick restarts it.
	assert.Nil(t, e.OnSample(at(28), page(1, 1), ms(900)))
	assert.Nil(t, e.OnSample(at(28), page(1, 1), ms(2000)))

	intent := e.OnSample(at(28), page(1, 1), ms(2100))
	require.NotNil(t, intent)
	assert.InDelta(t, 28.0, intent.Record.Overall, 1e-9)
	assert.True(t, intent.Regression)
}

func TestOnSample_NonDecreaseResetsDwell(t *testing.T) {
	rec := progress.NewRecord(1, 1, t0)
	rec.Pages[1] = 40
	e := NewEngine(DefaultConfig(), progress.Normalize(rec, t0))

	assert.Nil(t, e.OnSample(at(30), page(1, 1), ms(0)))
	require.NotNil(t, e.OnSample(at(40), page(1, 1), ms(600)))

	assert.Nil(t, e.OnSample(at(30), page(1, 1), ms(700)))
	assert.Nil(t, e.OnSample(at(30), page(1, 1), ms(1800)))
	assert.NotNil(t, e.OnSample(at(30), page(1, 1), ms(1900)))
}

func TestOnSample_FillForward(t *testing.T) {
	rec := progress.NewRecord(1, 3, t0)
	rec.Pages[1] = 40
	e := NewEngine(DefaultConfig(), rec)

	intent := e.OnSample(at(100), page(2, 3), ms(0))
	require.NotNil(t, intent)
	assert.Equal(t, 100.0, intent.Record.Pages[1])
	assert.Equal(t, 100.0, intent.Record.Pages[2])
	assert.Equal(t, 0.0, intent.Record.Pages[3])
	assert.Equal(t, 2, intent.Record.LastPage)
	assert.InDelta(t, 66.666, intent.Record.Overall, 0.01)
}

func TestOnSample_EndOfContentLatch(t *testing.T) {
	e := NewEngine(DefaultConfig(), progress.NewRecord(1, 2, t0))
	bottom := sampler.Geometry{ScrollY: docHeight - viewport, ViewportHeight: viewport, DocumentHeight: docHeight}

	// Without interaction the latch stays disarmed.
	intent := e.OnSample(bottom, page(2, 2), ms(0))
	require.NotNil(t, intent)
	assert.InDelta(t, 90.0, intent.Record.Pages[2], 1e-9)

	e.NoteInteraction()
	intent = e.OnSample(bottom, page(2, 2), ms(100))
	require.NotNil(t, intent)
	assert.Equal(t, 100.0, intent.Record.Pages[2])
	assert.Equal(t, 100.0, intent.Record.Overall)
}

func TestOnSample_SubStepNoiseSuppressed(t *testing.T) {
	e := NewEngine(DefaultConfig(), progress.NewRecord(1, 1, t0))

	require.NotNil(t, e.OnSample(at(20), page(1, 1), ms(0)))
	assert.Nil(t, e.OnSample(at(20.5), page(1, 1), ms(100)))
	assert.NotNil(t, e.OnSample(at(21), page(1, 1), ms(200)))
}

func TestOnSample_PageCompletionNeverSuppressed(t *testing.T) {
	e := NewEngine(DefaultConfig(), progress.NewRecord(1, 2, t0))

	require.NotNil(t, e.OnSample(at(100), page(1, 2), ms(0)))
	assert.NotNil(t, e.OnSample(at(100), page(1, 2), ms(100)))
}

func TestOnSample_LockedSkipsEverything(t *testing.T) {
	rec := progress.ApplyMark(progress.NewRecord(1, 1, t0), true, t0)
	e := NewEngine(DefaultConfig(), rec)
	require.True(t, e.Locked())

	assert.Nil(t, e.OnSample(at(30), page(1, 1), ms(0)))
	assert.Nil(t, e.OnSample(at(30), page(1, 1), ms(5000)))

	// Unmarked: the stored 100 stays, so a lower reading must dwell.
	e.SetRecord(progress.ApplyMark(rec, false, ms(6000)))
	assert.False(t, e.Locked())
	assert.Nil(t, e.OnSample(at(30), page(1, 1), ms(7000)))
	assert.NotNil(t, e.OnSample(at(30), page(1, 1), ms(8200)))
}

func TestOnSample_AdoptsPagination(t *testing.T) {
	e := NewEngine(DefaultConfig(), progress.NewRecord(1, 1, t0))

	intent := e.OnSample(at(50), page(3, 3), ms(0))
	require.NotNil(t, intent)
	assert.Equal(t, 3, intent.Record.TotalPages)
	assert.Equal(t, progress.Pages{1: 100, 2: 100, 3: 50}, intent.Record.Pages)
}

func TestOnSample_ClampsCurrentPage(t *testing.T) {
	e := NewEngine(DefaultConfig(), progress.NewRecord(1, 2, t0))

	intent := e.OnSample(at(50), page(0, 2), ms(0))
	require.NotNil(t, intent)
	assert.Equal(t, 1, intent.Record.LastPage)
}

func TestOnSample_ObserverSeesTransitions(t *testing.T) {
	var kinds []TransitionKind
	e := NewEngine(DefaultConfig(), secondPageAt60(), WithObserver(func(tr Transition) {
		kinds = append(kinds, tr.Kind)
	}))

	e.OnSample(at(10), page(2, 2), ms(0))
	e.OnSample(at(10), page(2, 2), ms(500))
	e.OnSample(at(10), page(2, 2), ms(1200))
	e.OnSample(at(10), page(2, 2), ms(1300))

	assert.Equal(t, []TransitionKind{
		TransitionDwellStart,
		TransitionDwellWait,
		TransitionCommit,
		TransitionBelowStep,
	}, kinds)
}

func TestPeak_Monotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	e := NewEngine(DefaultConfig(), progress.NewRecord(1, 3, t0))
	e.NoteInteraction()

	now := t0
	prev := e.Peak()
	for i := 0; i < 2000; i++ {
		now = now.Add(time.Duration(rng.Intn(2000)) * time.Millisecond)
		p := page(1+rng.Intn(3), 3)
		e.OnSample(at(rng.Float64()*110-5), p, now)
		require.GreaterOrEqual(t, e.Peak(), prev)
		prev = e.Peak()
	}
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.TopNoSaveRatio = 2
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.Sampler.ColdLoadCap = 0
	assert.Error(t, bad.Validate())
}
