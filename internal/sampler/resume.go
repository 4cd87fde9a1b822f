// ABOUTME: Deep-link resume helpers: parse the position parameter, compute scroll target
// ABOUTME: Advisory UI only, independent from the tracking engine's correctness

package sampler

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/2389/folio-gateway/internal/progress"
)

// ParseResumeParam extracts the target completion percentage from a query
// string. The value is clamped to [0,100].
func ParseResumeParam(q url.Values) (float64, bool) {
	raw := strings.TrimSpace(q.Get(progress.ResumeParam))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return progress.Clamp(v, 0, 100), true
}

// ScrollTarget returns the scroll offset that centers the viewport at
// percent of the document height, never scrolling past either edge.
func ScrollTarget(percent float64, g Geometry) float64 {
	d := math.Max(0, g.DocumentHeight)
	center := progress.Clamp(progress.Clamp(percent, 0, 100)/100*d, 0, d)
	maxY := math.Max(0, d-g.ViewportHeight)
	return progress.Clamp(center-g.ViewportHeight/2, 0, maxY)
}
