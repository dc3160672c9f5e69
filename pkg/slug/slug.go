package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var slugRegexp = regexp.MustCompile(`[^a-z0-9]+`)

// Letters that do not decompose into a base letter plus combining marks.
var replacer = strings.NewReplacer(
	"đ", "d", "Đ", "d",
	"ı", "i", "ł", "l", "ø", "o", "ß", "ss",
)

// Fold strips diacritics and lower-cases s, so "Điện Thoại" becomes "dien thoai".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, replacer.Replace(s))
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// Generate creates a URL-friendly slug from a product or category name.
//
//   - "Điện thoại Apple" → "dien-thoai-apple"
//   - "Hello   World!" → "hello-world"
func Generate(name string) string {
	s := Fold(strings.TrimSpace(name))
	s = slugRegexp.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
