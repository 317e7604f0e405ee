// Package render turns a debugcontext.DebugContext's accumulated entries
// into the coloured, multi-line diagnostics spec.md §7 requires at the
// CLI boundary. It never runs inside the encoder core itself.
package render

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/keurnel/x64enc/internal/debugcontext"
)

// Diagnostics prints every entry in ctx to w, naming the file, line,
// severity and message. Colours follow severity — error red, warning
// yellow, everything else dim — and are suppressed when plain is true
// (the CLI's `-n` flag).
func Diagnostics(w io.Writer, ctx *debugcontext.DebugContext, plain bool) {
	if plain {
		color.NoColor = true
	}

	errorColor := color.New(color.FgRed, color.Bold)
	warnColor := color.New(color.FgYellow)
	dimColor := color.New(color.Faint)

	for _, e := range ctx.Entries() {
		var c *color.Color
		switch e.Severity() {
		case debugcontext.SeverityError:
			c = errorColor
		case debugcontext.SeverityWarning:
			c = warnColor
		default:
			c = dimColor
		}

		c.Fprintf(w, "%s: %s: %s\n", e.Location().String(), e.Severity(), e.Message())
		if hint := e.Hint(); hint != "" {
			dimColor.Fprintf(w, "  tip: %s\n", hint)
		}
		if snippet := e.Snippet(); snippet != "" {
			fmt.Fprintf(w, "  %s\n", snippet)
		}
	}
}
