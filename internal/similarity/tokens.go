package similarity

import (
	"sort"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// Tokens splits the normalized form of s into alphanumeric words.
func Tokens(s string) []string {
	return strings.FieldsFunc(Normalize(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// TokenOverlap is the ratio of shared tokens to all distinct tokens (Jaccard index).
func TokenOverlap(a, b string) float64 {
	return jaccard(toSet(Tokens(a)), toSet(Tokens(b)))
}

// PhoneticSimilarity compares the Double Metaphone codes of the words in a and b.
// Words without consonants produce no code and are ignored.
func PhoneticSimilarity(a, b string) float64 {
	return jaccard(phoneticCodes(Tokens(a)), phoneticCodes(Tokens(b)))
}

// InitialismSimilarity scores how well one side reads as an abbreviation of the
// other, e.g. "PO" for "purchase order". An exact initialism scores 1.0; a
// prefix of the initials scores the covered fraction.
func InitialismSimilarity(a, b string) float64 {
	s1 := initialismScore(compact(a), initials(b))
	s2 := initialismScore(compact(b), initials(a))
	if s2 > s1 {
		return s2
	}
	return s1
}

func initialismScore(abbrev, inits string) float64 {
	if len(abbrev) < 2 || len(inits) < 2 {
		return 0
	}
	if abbrev == inits {
		return 1.0
	}
	if strings.HasPrefix(inits, abbrev) {
		return float64(len(abbrev)) / float64(len(inits))
	}
	return 0
}

func compact(s string) string {
	var b strings.Builder
	for _, r := range Normalize(s) {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func initials(s string) string {
	var b strings.Builder
	for _, t := range Tokens(s) {
		r := []rune(t)[0]
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func phoneticCodes(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if p, _ := matchr.DoubleMetaphone(t); p != "" {
			codes[p] = struct{}{}
		}
	}
	return codes
}

func toSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for k := range a {
		if _, ok := b[k]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	return float64(shared) / float64(union)
}

// SharedTokens returns the tokens present in both a and b, sorted.
func SharedTokens(a, b string) []string {
	other := toSet(Tokens(b))
	seen := make(map[string]struct{})
	var out []string
	for _, t := range Tokens(a) {
		if _, ok := other[t]; !ok {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
