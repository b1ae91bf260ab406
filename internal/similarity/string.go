// Package similarity provides the pure scoring primitives shared by the header
// mapper and the record matcher. Every function is total, deterministic and
// symmetric in its two operands.
package similarity

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/antzucaro/matchr"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize case-folds s, strips diacritics and collapses runs of whitespace
// into a single space. Punctuation is kept. A Caser is built per call since
// Casers must not be shared between goroutines.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(cases.Fold().String(stripped)), " ")
}

// EditSimilarity is the Levenshtein distance divided by the longer rune length, inverted.
func EditSimilarity(a, b string) float64 {
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1.0
	}
	distance := levenshtein.ComputeDistance(a, b)
	return Clamp01(1.0 - float64(distance)/float64(maxLen))
}

// StringSimilarity blends normalized edit-distance similarity with Jaro-Winkler.
// Two empty strings are identical; one empty string is never similar to anything.
func StringSimilarity(a, b string) float64 {
	a, b = Normalize(a), Normalize(b)
	switch {
	case a == "" && b == "":
		return 1.0
	case a == "" || b == "":
		return 0.0
	case a == b:
		return 1.0
	}

	// Fixed operand order keeps Jaro's greedy matching symmetric.
	if b < a {
		a, b = b, a
	}
	edit := EditSimilarity(a, b)
	jw := matchr.JaroWinkler(a, b, false)
	return Clamp01((edit + jw) / 2)
}

// Clamp01 bounds v to [0,1] and maps NaN to 0.
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
