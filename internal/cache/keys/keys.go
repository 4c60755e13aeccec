// Package keys builds the Redis keys of cached zonal reductions.
package keys

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const (
	prefix  = "zonal:v1"
	maxPart = 96
)

// Zonal identifies one reduction: the image, the territory geometry
// fingerprint, the region and the reduction parameters. The readable parts
// are truncated; the trailing hash covers the full untruncated input.
type Zonal struct {
	Asset       string
	Band        string
	Territory   string
	Fingerprint string
	Region      string
	Scale       int
	MaxPixels   float64
	Factor      float64
}

func (z Zonal) canonical() string {
	return strings.Join([]string{
		strings.TrimSpace(z.Asset),
		strings.TrimSpace(z.Band),
		z.Territory,
		z.Fingerprint,
		z.Region,
		strconv.Itoa(z.Scale),
		strconv.FormatFloat(z.MaxPixels, 'g', -1, 64),
		strconv.FormatFloat(z.Factor, 'g', -1, 64),
	}, "|")
}

func (z Zonal) Key() string {
	band := sanitizeForKey(strings.TrimSpace(z.Band))
	if len(band) > maxPart {
		band = band[:maxPart]
	}
	fp := sanitizeForKey(z.Fingerprint)
	if len(fp) > maxPart {
		fp = fp[:maxPart]
	}
	sum := xxhash.Sum64String(z.canonical())
	return fmt.Sprintf("%s:%s:s=%d:%s:f=%016x", prefix, band, z.Scale, fp, sum)
}

func sanitizeForKey(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == ':' || r == '_' || r == '-' || r == '=':
			out = r
		default:
			// any other rune (including non-ASCII) becomes '-'
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r < unicode.MaxASCII && unicode.IsDigit(r))
}
