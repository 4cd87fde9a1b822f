// Package tracker decides when reading progress is committed.
//
// # Engine
//
// Engine is a per-article state machine. OnSample takes the current
// geometry, page and timestamp and returns a CommitIntent or nil:
//
//  1. Locked records (explicitly marked as read) are never touched.
//  2. The page sample is substituted into the page map, earlier pages are
//     filled forward, and the provisional overall is computed.
//  3. A single-page article reported complete while still at the top is
//     skipped.
//  4. A provisional overall meaningfully below the stored one is a
//     regression. It is committed only after it persists for
//     Config.DecreaseDwell. Near the top of a document that the reader has
//     already read past Config.PeakGuardPercent (the no-save zone) the
//     pending level is fixed at the first regressed value; elsewhere it
//     follows the latest sample. Moving above the pending level restarts
//     the dwell.
//  5. Other samples are committed when their overall, rounded down to
//     Config.SaveStep, exceeds the last committed value, or when the page
//     itself is complete.
//
// Dwell is measured by comparing event timestamps; there are no timers.
//
// # Session
//
// Session connects an Engine to page events and a persist.Adapter. Scroll
// and resize events pass through a Limiter (one evaluation per
// Config.Throttle, with a trailing evaluation released by Tick), except
// that reaching the end-of-content latch evaluates immediately. Close runs
// one last evaluation and drains background commits.
package tracker
