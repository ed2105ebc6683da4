// Package fold normalizes free text for case-insensitive comparison.
// Polish letters fold correctly, unlike SQLite's ASCII-only LOWER().
package fold

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Key returns the NFC-normalized, trimmed, case-folded form of s.
func Key(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

// Equal reports whether a and b are equal after folding.
func Equal(a, b string) bool {
	return Key(a) == Key(b)
}

// Contains reports whether sub occurs in s after folding both.
// An empty sub matches everything.
func Contains(s, sub string) bool {
	k := Key(sub)
	if k == "" {
		return true
	}
	return strings.Contains(Key(s), k)
}
