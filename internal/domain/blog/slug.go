package blog

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slugify lowercases s, folds accents and joins alphanumeric runs with
// hyphens. "Fête des Mères!" becomes "fete-des-meres".
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}

// PostSlug appends the last four digits of the unix millisecond time to the
// slugified title.
func PostSlug(title string, now time.Time) string {
	ms := strconv.FormatInt(now.UnixMilli(), 10)
	if len(ms) > 4 {
		ms = ms[len(ms)-4:]
	}
	base := Slugify(title)
	if base == "" {
		return "post-" + ms
	}
	return base + "-" + ms
}

// Excerpt returns the first 150 runes of content followed by "...".
func Excerpt(content string) string {
	const n = 150
	r := []rune(content)
	if len(r) > n {
		r = r[:n]
	}
	return string(r) + "..."
}
