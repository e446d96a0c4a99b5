// Package detector selects the log format from the environment.
package detector

import (
	"os"

	"golang.org/x/term"
)

// LogFormat is the rendering of log records.
type LogFormat int

const (
	// FormatAuto defers to environment detection.
	FormatAuto LogFormat = iota
	// FormatPretty renders colored, human-readable lines.
	FormatPretty
	// FormatJSON renders one JSON object per record.
	FormatJSON
)

// DetectEnvironment returns the recommended format. Processes without a
// terminal on stderr, and CI runs, get JSON.
func DetectEnvironment() LogFormat {
	isTTY := term.IsTerminal(int(os.Stderr.Fd()))

	ci := os.Getenv("CI")
	isCI := ci == "true" || ci == "1"

	if !isTTY || isCI {
		return FormatJSON
	}
	return FormatPretty
}

// ResolveFormat applies a user override to the detected format.
// userFlag should be one of: "auto", "pretty", "json", or empty.
func ResolveFormat(detected LogFormat, userFlag string) LogFormat {
	switch userFlag {
	case "pretty", "text":
		return FormatPretty
	case "json":
		return FormatJSON
	default:
		return detected
	}
}
