// ABOUTME: Pure percentage model: overall completion and fill-forward of page maps
// ABOUTME: Total functions with no state, shared by the engine and server normalization

package progress

import "math"

// Clamp bounds v to [lo, hi]. NaN collapses to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ComputeOverall returns the overall completion for a page map.
// Single-page articles report page 1 directly; otherwise the result is the
// mean of every page in 1..totalPages, each clamped to [0,100].
func ComputeOverall(pages Pages, totalPages int) float64 {
	if totalPages <= 1 {
		return Clamp(pages[1], 0, 100)
	}

	var acc float64
	for i := 1; i <= totalPages; i++ {
		acc += Clamp(pages[i], 0, 100) / 100
	}
	return Clamp(100*acc/float64(totalPages), 0, 100)
}

// FillForward returns a copy of pages where every index below uptoExclusive
// is raised to 100. Values are never lowered.
func FillForward(pages Pages, uptoExclusive int) Pages {
	out := pages.Clone()
	for i := 1; i < uptoExclusive; i++ {
		if v, ok := out[i]; !ok || v < 100 {
			out[i] = 100
		}
	}
	return out
}

// RoundDown rounds v down to the nearest multiple of step.
// A non-positive step disables rounding.
func RoundDown(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	return math.Floor(v/step) * step
}
