package logger

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// metadataCarrier is implemented by zerr.Error.
type metadataCarrier interface {
	Metadata() map[string]any
}

// ErrorEntry is one level of an error chain.
type ErrorEntry struct {
	Message string
	// Metadata is nil for errors that cannot carry metadata.
	Metadata map[string]any
}

// collectErrorEntries walks err from the outermost wrapper inwards. zerr
// levels become one entry each; the first standard error ends the walk with
// its full message. Levels with an empty message pass their metadata on.
func collectErrorEntries(err error) []ErrorEntry {
	var (
		entries []ErrorEntry
		carry   map[string]any
	)
	for current := err; current != nil; {
		m, ok := current.(messager)
		if !ok {
			entries = append(entries, ErrorEntry{Message: current.Error(), Metadata: carry})
			break
		}

		meta := map[string]any{}
		if mc, ok := current.(metadataCarrier); ok {
			meta = mc.Metadata()
		}
		for k, v := range carry {
			if _, exists := meta[k]; !exists {
				meta[k] = v
			}
		}
		carry = nil

		if m.Message() == "" {
			carry = meta
		} else {
			entries = append(entries, ErrorEntry{Message: m.Message(), Metadata: meta})
		}
		current = errors.Unwrap(current)
	}
	return entries
}

// formatErrorEntries renders entries as a main error followed by its causes.
func formatErrorEntries(entries []ErrorEntry) string {
	lines := make([]string, 0, len(entries)*2)
	for i, entry := range entries {
		msgLines := strings.Split(entry.Message, "\n")

		head, indent := "Error: ", "       "
		if i > 0 {
			if i == 1 {
				lines = append(lines, "", "  Caused by:")
			}
			head, indent = "    → ", "      "
		}

		lines = append(lines, head+msgLines[0])
		for _, l := range msgLines[1:] {
			lines = append(lines, indent+l)
		}

		keys := make([]string, 0, len(entry.Metadata))
		for k := range entry.Metadata {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("%s%s: %v", indent, k, entry.Metadata[k]))
		}
	}
	return strings.Join(lines, "\n")
}
