// Package ui provides terminal output helpers for the tablefold CLI.
package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

var verboseFlag bool

// Init applies the color and verbosity flags.
func Init(noColor, verbose bool) {
	verboseFlag = verbose
	if noColor {
		color.NoColor = true
	}
}

// Success prints a green check-marked message.
func Success(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, "%s %s\n", color.GreenString("✓"), fmt.Sprintf(format, args...))
}

// Error prints a red cross-marked message to stderr.
func Error(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("✗"), fmt.Sprintf(format, args...))
}

// Warning prints a yellow warning message.
func Warning(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, "%s %s\n", color.YellowString("⚠"), fmt.Sprintf(format, args...))
}

// Info prints an informational message.
func Info(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, "%s %s\n", color.CyanString("ℹ"), fmt.Sprintf(format, args...))
}

// Verbose prints only when verbose output is enabled.
func Verbose(format string, args ...interface{}) {
	if verboseFlag {
		fmt.Fprintf(os.Stdout, "  %s\n", fmt.Sprintf(format, args...))
	}
}

// Section prints an underlined section header.
func Section(title string) {
	fmt.Fprintf(os.Stdout, "\n%s\n%s\n\n", color.New(color.Bold).Sprint(title), strings.Repeat("=", len(title)))
}

// Table prints a padded two-dimensional table with a header row. Cells may
// already be colored; widths are measured on the visible text.
func Table(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = displayWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := displayWidth(cell); i < len(widths) && w > widths[i] {
				widths[i] = w
			}
		}
	}

	printRow := func(cells []string, bold bool) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			padded := cell + strings.Repeat(" ", widths[i]-displayWidth(cell))
			if bold {
				padded = color.New(color.Bold).Sprint(padded)
			}
			parts[i] = padded
		}
		fmt.Fprintln(os.Stdout, "  "+strings.Join(parts, "  "))
	}

	printRow(headers, true)
	for _, row := range rows {
		printRow(row, false)
	}
}

// displayWidth counts a cell's printed runes, skipping ANSI color sequences.
func displayWidth(s string) int {
	width := 0
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		case r == '\x1b':
			inEscape = true
		default:
			width++
		}
	}
	return width
}

// StatusString colors a job status for terminal display.
func StatusString(status string) string {
	switch status {
	case "success":
		return color.GreenString(status)
	case "error":
		return color.RedString(status)
	case "processing":
		return color.CyanString(status)
	default:
		return status
	}
}
