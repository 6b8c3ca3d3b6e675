package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"ferro/internal/diag"
	"ferro/internal/source"
)

var (
	errorColor = color.New(color.FgRed, color.Bold)
	warnColor  = color.New(color.FgYellow, color.Bold)
	infoColor  = color.New(color.FgCyan, color.Bold)
	boldColor  = color.New(color.Bold)
	noteColor  = color.New(color.FgBlue)
)

// Pretty renders the bag for a terminal. The bag is expected to be sorted.
// Each diagnostic prints as
//
//	path:line:col: ERROR OWN4001: use of moved value 's'
//	    let t = s;
//	            ^
//	  note: value moved here
//
// with a caret underline sized by display width, so wide runes in the source
// line do not skew the alignment.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	errs, warns := 0, 0
	for _, d := range bag.Items() {
		switch d.Severity {
		case diag.SevError:
			errs++
		case diag.SevWarning:
			warns++
		}
		writePretty(w, d, fs, opts)
	}
	if errs+warns > 0 {
		fmt.Fprintf(w, "%s\n", summaryLine(errs, warns, opts.Color))
	}
}

func writePretty(w io.Writer, d diag.Diagnostic, fs *source.FileSet, opts PrettyOpts) {
	head := fmt.Sprintf("%s: %s %s: %s",
		paint(boldColor, locString(d.Primary, fs, opts.PathMode), opts.Color),
		paint(severityColor(d.Severity), d.Severity.String(), opts.Color),
		paint(boldColor, d.Code.ID(), opts.Color),
		d.Message,
	)
	fmt.Fprintln(w, head)
	writeContext(w, d.Primary, fs, d.Severity, opts)

	if !opts.ShowNotes {
		return
	}
	for _, n := range d.Notes {
		fmt.Fprintf(w, "  %s: %s\n", paint(noteColor, "note", opts.Color), n.Msg)
		if n.Span != (source.Span{}) {
			fmt.Fprintf(w, "    %s\n", locString(n.Span, fs, opts.PathMode))
		}
	}
}

// writeContext prints the offending source line with a caret underline.
func writeContext(w io.Writer, span source.Span, fs *source.FileSet, sev diag.Severity, opts PrettyOpts) {
	if fs == nil || int(span.File) >= fs.Len() {
		return
	}
	start, end := fs.Resolve(span)
	file := fs.Get(span.File)
	line := file.GetLine(start.Line)
	if line == "" {
		return
	}
	fmt.Fprintf(w, "    %s\n", line)

	// Column positions are byte-based; pad by the display width of the text
	// before the span so the caret lands under the right rune.
	col := int(start.Col) - 1
	if col > len(line) {
		col = len(line)
	}
	pad := runewidth.StringWidth(line[:col])

	width := 1
	if end.Line == start.Line && int(end.Col) > int(start.Col) {
		to := int(end.Col) - 1
		if to > len(line) {
			to = len(line)
		}
		if to > col {
			width = runewidth.StringWidth(line[col:to])
		}
	}
	underline := "^" + strings.Repeat("~", max(width-1, 0))
	fmt.Fprintf(w, "    %s%s\n", strings.Repeat(" ", pad), paint(severityColor(sev), underline, opts.Color))
}

func locString(span source.Span, fs *source.FileSet, mode PathMode) string {
	if fs == nil || int(span.File) >= fs.Len() {
		return "<unknown>"
	}
	start, _ := fs.Resolve(span)
	file := fs.Get(span.File)
	return fmt.Sprintf("%s:%d:%d", file.DisplayPath(mode.displayMode(), fs.BaseDir()), start.Line, start.Col)
}

func severityColor(sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevError:
		return errorColor
	case diag.SevWarning:
		return warnColor
	default:
		return infoColor
	}
}

func paint(c *color.Color, s string, enabled bool) string {
	if !enabled {
		return s
	}
	return c.Sprint(s)
}

func summaryLine(errs, warns int, colored bool) string {
	parts := make([]string, 0, 2)
	if errs > 0 {
		parts = append(parts, paint(errorColor, fmt.Sprintf("%d error(s)", errs), colored))
	}
	if warns > 0 {
		parts = append(parts, paint(warnColor, fmt.Sprintf("%d warning(s)", warns), colored))
	}
	return strings.Join(parts, ", ")
}
