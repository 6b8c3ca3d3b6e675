// Package diagfmt renders diagnostic bags for terminals and tools. It is the
// only package that knows about colors and layout; the analysis stays
// data-only.
package diagfmt

import (
	"fmt"

	"golang.org/x/term"
)

// ColorMode is the --color flag.
type ColorMode uint8

const (
	ColorAuto ColorMode = iota
	ColorOn
	ColorOff
)

// ParseColorMode converts a flag value.
func ParseColorMode(s string) (ColorMode, error) {
	switch s {
	case "auto", "":
		return ColorAuto, nil
	case "on", "always":
		return ColorOn, nil
	case "off", "never":
		return ColorOff, nil
	default:
		return ColorAuto, fmt.Errorf("invalid color mode: %q (expected: auto|on|off)", s)
	}
}

// Enabled decides whether to colorize output going to fd.
func (m ColorMode) Enabled(fd uintptr) bool {
	switch m {
	case ColorOn:
		return true
	case ColorOff:
		return false
	default:
		return term.IsTerminal(int(fd))
	}
}

// PathMode specifies how file paths are displayed.
type PathMode uint8

const (
	// PathModeAuto shortens long absolute paths to basenames.
	PathModeAuto PathMode = iota
	PathModeAbsolute
	PathModeRelative
	PathModeBasename
)

func (m PathMode) displayMode() string {
	switch m {
	case PathModeAbsolute:
		return "absolute"
	case PathModeRelative:
		return "relative"
	case PathModeBasename:
		return "basename"
	default:
		return "auto"
	}
}

// PrettyOpts configures the terminal renderer.
type PrettyOpts struct {
	Color     bool
	PathMode  PathMode
	ShowNotes bool
}

// JSONOpts configures the machine-readable renderer.
type JSONOpts struct {
	// IncludePositions adds line/col alongside byte offsets.
	IncludePositions bool
	PathMode         PathMode
	// Max truncates the output, not the bag. 0 means everything.
	Max          int
	IncludeNotes bool
}
