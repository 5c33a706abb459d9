// Package diff turns raw unified-diff text into bounded, filtered line
// lists suitable for embedding in an analysis prompt.
package diff

import "strings"

// MaxLines caps each side of a Change. Truncation is a cost-control
// policy, not an error.
const MaxLines = 50

// Change holds the filtered added and removed lines of a diff.
type Change struct {
	Added   []string
	Removed []string
}

// Empty reports whether the extraction yielded nothing reviewable.
func (c Change) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0
}

// noisePrefixes filters lines that carry no review signal: imports and
// includes, comment markers, docstring delimiters.
var noisePrefixes = []string{
	"import ",
	"import(",
	"from ",
	"#include",
	"require ",
	"use ",
	"using ",
	"//",
	"#",
	"/*",
	"*",
	"\"\"\"",
	"'''",
	"--",
}

func noisy(line string) bool {
	for _, p := range noisePrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// Extract scans raw unified-diff text and classifies content lines.
// File headers (+++/---), hunk headers, git metadata lines, blank lines
// and noise-prefixed lines are dropped; each side is truncated to
// MaxLines. Empty input yields an empty Change.
func Extract(raw string) Change {
	var ch Change
	for _, line := range strings.Split(raw, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			continue
		case strings.HasPrefix(line, "@@"), strings.HasPrefix(line, "diff --git"), strings.HasPrefix(line, "index "):
			continue
		case strings.HasPrefix(line, "+"):
			if s := strings.TrimSpace(line[1:]); s != "" && !noisy(s) && len(ch.Added) < MaxLines {
				ch.Added = append(ch.Added, s)
			}
		case strings.HasPrefix(line, "-"):
			if s := strings.TrimSpace(line[1:]); s != "" && !noisy(s) && len(ch.Removed) < MaxLines {
				ch.Removed = append(ch.Removed, s)
			}
		}
	}
	return ch
}
