package tags

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeTag canonicalizes a tag so "Städtereise", "städtereise" and
// " Stadtereise " all reconcile to the same fact (lowercase, no diacritics,
// single spaces, dashes folded to spaces).
func NormalizeTag(tag string) string {
	tag = RemoveDiacritics(tag)
	tag = strings.ToLower(tag)
	tag = strings.ReplaceAll(tag, "-", " ")
	return strings.Join(strings.Fields(tag), " ")
}
