// ABOUTME: Output helpers for text and JSON rendering of command results
// ABOUTME: Percentages are colorized in text mode

package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
)

// printer renders results in the selected format.
type printer struct {
	format string
	w      io.Writer
}

func newPrinter(opts *RootOptions, w io.Writer) *printer {
	return &printer{format: opts.Format, w: w}
}

// JSON reports whether results should be emitted as JSON.
func (p *printer) JSON() bool {
	return p.format == "json"
}

// Emit writes v as indented JSON.
func (p *printer) Emit(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *printer) Printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

// percent formats an overall percentage, green when complete.
func percent(v float64) string {
	s := fmt.Sprintf("%5.1f%%", v)
	if v >= 100 {
		return color.GreenString(s)
	}
	return color.CyanString(s)
}
