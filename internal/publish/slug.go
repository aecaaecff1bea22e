package publish

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SlugPlaceholder is returned when a value slugifies to nothing.
const SlugPlaceholder = "update"

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s, folds accented letters to their base form, collapses
// every run of non-alphanumerics into a single dash and trims dashes from both
// ends. An empty result maps to SlugPlaceholder.
func Slugify(s string) string {
	fold := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, s)
	if err != nil {
		folded = s
	}
	slug := nonAlnum.ReplaceAllString(strings.ToLower(strings.TrimSpace(folded)), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return SlugPlaceholder
	}
	return slug
}
