package recon

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// compareFunc reports whether needle occurs in haystack under one
// normalization policy
type compareFunc func(needle, haystack string) bool

// rawContains is the base comparison, always applied first
func rawContains(needle, haystack string) bool {
	return needle != "" && strings.Contains(haystack, needle)
}

// numericContains compares after stripping all non-digits from both sides
func numericContains(needle, haystack string) bool {
	n := numericOnly(needle)
	return n != "" && strings.Contains(numericOnly(haystack), n)
}

// foldedContains compares after removing diacritics and special characters
func foldedContains(needle, haystack string) bool {
	n := foldSpecial(needle)
	return n != "" && strings.Contains(foldSpecial(haystack), n)
}

// comparers builds the ordered comparison chain. The optional policies are
// appended only when configured, in their priority order.
func (e *Engine) comparers(withPolicies bool) []compareFunc {
	cmp := []compareFunc{rawContains}
	if withPolicies && e.cfg.NumericOnly {
		cmp = append(cmp, numericContains)
	}
	if withPolicies && e.cfg.IgnoreDiacritics {
		cmp = append(cmp, foldedContains)
	}
	return cmp
}

func numericOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldSpecial lowercases and keeps only letters and digits, with diacritics
// removed: "Müller & Söhne AG" becomes "mullersohneag"
func foldSpecial(s string) string {
	stripped, _, err := transform.String(diacriticStripper, s)
	if err != nil {
		stripped = s
	}
	var b strings.Builder
	for _, r := range strings.ToLower(stripped) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
