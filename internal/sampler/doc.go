// Package sampler converts viewport geometry into a single "current page
// completion" reading.
//
// Percentages are measured at the viewport center, so an article counts as
// finished when the middle of the screen passes its end rather than the top
// edge. Near the true end of content a bistable latch forces the reading to
// exactly 100; separate enter and exit thresholds keep it from flickering.
//
// The latch only arms on the last page of an article and only after the
// reader has interacted with the page (scroll, wheel, touch or key). A cold
// render is never recorded as finished.
package sampler
