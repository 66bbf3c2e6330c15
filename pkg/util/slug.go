package util

import "strings"

// Slugify lowercases the input and collapses every run of non-alphanumeric
// characters into a single hyphen.
func Slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// TagIDFromSlug derives the stable tag id for a slug. The mapping is
// deterministic so the same slug always resolves to the same id.
func TagIDFromSlug(slug string) string {
	return "tag_" + slug
}
