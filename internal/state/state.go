// Package state implements the small, shared ### STATE block extraction
// used both by each Strategy's response parsing and by the Orchestrator's
// context rebuild.
package state

import "strings"

const marker = "### STATE"

// Extract finds the first "### STATE" block in text and returns it
// (header included, trimmed), terminated by the next line starting with
// "#" or "---", or end of text. Returns "" if no marker is present.
func Extract(text string) string {
	start := strings.Index(text, marker)
	if start < 0 {
		return ""
	}

	rest := text[start+len(marker):]
	end := -1
	if i := strings.Index(rest, "\n#"); i >= 0 {
		end = i
	}
	if i := strings.Index(rest, "\n---"); i >= 0 && (end < 0 || i < end) {
		end = i
	}

	var block string
	if end >= 0 {
		block = text[start : start+len(marker)+end]
	} else {
		block = text[start:]
	}
	return strings.TrimSpace(block)
}
