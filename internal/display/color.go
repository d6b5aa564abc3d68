// Package display renders terminal output: ANSI styles and aligned tables.
//
// Styling respects NO_COLOR (https://no-color.org/) and is off when stdout
// is not a terminal. FORCE_COLOR turns it on regardless.
package display

import (
	"os"

	"github.com/mattn/go-isatty"
)

// Style is an ANSI SGR sequence.
type Style string

const (
	reset Style = "\033[0m"

	StyleBold   Style = "\033[1m"
	StyleDim    Style = "\033[2m"
	StyleRed    Style = "\033[31m"
	StyleGreen  Style = "\033[32m"
	StyleYellow Style = "\033[33m"
	StyleCyan   Style = "\033[36m"
	StyleGray   Style = "\033[90m"
)

var enabled = shouldEnable()

func shouldEnable() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if _, ok := os.LookupEnv("FORCE_COLOR"); ok {
		return true
	}
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// SetEnabled overrides the detected state; --json forces it off.
func SetEnabled(b bool) {
	enabled = b
}

// Enabled reports whether styling is active.
func Enabled() bool {
	return enabled
}

// Paint wraps text in the given styles when styling is enabled.
func Paint(text string, styles ...Style) string {
	if !enabled || len(styles) == 0 {
		return text
	}
	var prefix string
	for _, s := range styles {
		prefix += string(s)
	}
	return prefix + text + string(reset)
}

// Bold returns text rendered in bold.
func Bold(text string) string { return Paint(text, StyleBold) }

// Dim returns text rendered dim.
func Dim(text string) string { return Paint(text, StyleDim) }

// Red returns text rendered in red.
func Red(text string) string { return Paint(text, StyleRed) }

// Green returns text rendered in green.
func Green(text string) string { return Paint(text, StyleGreen) }

// Yellow returns text rendered in yellow.
func Yellow(text string) string { return Paint(text, StyleYellow) }

// Gray returns text rendered in gray (bright black).
func Gray(text string) string { return Paint(text, StyleGray) }

// Accent highlights the next prayer.
func Accent(text string) string { return Paint(text, StyleBold, StyleCyan) }
