// Package slug builds filesystem-safe export file names.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Make lower-cases s, strips diacritics and keeps only [a-z0-9-]. Underscores
// become hyphens, whitespace and every other character are dropped, runs of
// hyphens collapse to one and leading/trailing hyphens are trimmed.
// Make(Make(s)) == Make(s).
func Make(s string) string {
	folded := fold(s)

	var b strings.Builder
	b.Grow(len(folded))
	prev := '-' // suppresses a leading hyphen
	for _, r := range strings.ToLower(folded) {
		var out rune
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = r
		case r == '-' || r == '_':
			out = '-'
		default:
			continue
		}
		if out == '-' && prev == '-' {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Join slugs the hyphen-joined parts; empty parts vanish.
func Join(parts ...string) string {
	return Make(strings.Join(parts, "-"))
}

// FileName is the export name for one dataset slice of a boundary feature.
// suffix is the period for rasters and "area" for the area table.
func FileName(region, collection, dataType, feature, suffix string) string {
	return Join(region, collection, dataType, feature, suffix)
}

// NFKD also folds compatibility forms such as "ª" into plain letters.
func fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
