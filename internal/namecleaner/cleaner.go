// Package namecleaner normalizes raw organization-name strings.
//
// Cleaning is deterministic and total: the same input always yields the same
// output and no input ever fails. The resolver depends on that determinism.
package namecleaner

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// CleanedName holds the two forms of a cleaned organization name.
// Display preserves the original casing for human-facing output;
// Compare is the case-folded, punctuation-normalized form used by
// the similarity resolver.
type CleanedName struct {
	Display string
	Compare string
}

var quoteTrimSet = "\"'“”‘’«»"

// Clean normalizes a raw organization-name string.
func Clean(raw string) CleanedName {
	display := strings.TrimSpace(raw)
	display = strings.Trim(display, quoteTrimSet)
	display = strings.TrimSpace(display)
	display = collapseWhitespace(display)
	display = strings.TrimRight(display, ".,;:")
	display = strings.TrimSpace(display)

	return CleanedName{
		Display: display,
		Compare: Fold(display),
	}
}

// Fold produces the comparison form of an already-trimmed name: NFKC
// normalized, case-folded, ampersands spelled out, separator punctuation
// dropped, whitespace collapsed.
func Fold(name string) string {
	s := norm.NFKC.String(name)
	s = cases.Fold().String(s)
	s = strings.ReplaceAll(s, "&", " and ")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case ',', '.', ';', ':', '(', ')', '[', ']', '/', '\\':
			b.WriteRune(' ')
		case '-', '–', '—':
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return collapseWhitespace(strings.TrimSpace(b.String()))
}

// Tokens splits a comparison-form name into its tokens.
func Tokens(compare string) []string {
	if compare == "" {
		return nil
	}
	return strings.Fields(compare)
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
