// Package progress defines the reading-progress record and the pure
// percentage model shared by the tracker, the stores and the gateway.
//
// # Records
//
// A Record tracks one article for one owner (an anonymous device or an
// authenticated principal). Pages maps page index (1..TotalPages) to a
// completion percentage in [0,100]; Overall is the cached mean of those
// values and is always recomputable from Pages.
//
// # Invariants
//
// After Normalize:
//
//   - Pages has exactly the keys 1..TotalPages (missing entries are 0)
//   - every page before LastPage is 100 (fill-forward)
//   - Overall equals ComputeOverall(Pages, TotalPages), or 100 when locked
//
// Normalize is the single repair path for legacy or partial data; malformed
// records are repaired rather than rejected.
//
// # Wire Format
//
// The JSON shape of Record is shared by the gateway API and the anonymous
// local store:
//
//	{"post_id":42,"pages":{"1":100,"2":37.5},"last_page":2,"total_pages":3,
//	 "percent_overall":45.83,"status":"reading","updated_at":"2026-01-02T15:04:05Z"}
package progress
