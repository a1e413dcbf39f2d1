package recognizer

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CleanOptions controls optional cleanup of decoded line text. Word glyphs
// are left as decoded so they stay aligned with their columns.
type CleanOptions struct {
	NormalizeForm      string // "NFC", "NFKC", "NFD", "NFKD"; empty disables
	RemoveZeroWidth    bool
	RemoveControlChars bool
	CollapseWhitespace bool
	Trim               bool
}

// DefaultCleanOptions returns NFC normalization with every filter enabled.
func DefaultCleanOptions() CleanOptions {
	return CleanOptions{
		NormalizeForm:      "NFC",
		RemoveZeroWidth:    true,
		RemoveControlChars: true,
		CollapseWhitespace: true,
		Trim:               true,
	}
}

// CleanText applies opts to s.
func CleanText(s string, opts CleanOptions) string {
	if s == "" {
		return s
	}
	switch strings.ToUpper(opts.NormalizeForm) {
	case "NFC":
		s = norm.NFC.String(s)
	case "NFKC":
		s = norm.NFKC.String(s)
	case "NFD":
		s = norm.NFD.String(s)
	case "NFKD":
		s = norm.NFKD.String(s)
	}
	if opts.RemoveZeroWidth || opts.RemoveControlChars {
		s = strings.Map(func(r rune) rune {
			if opts.RemoveZeroWidth && isZeroWidth(r) {
				return -1
			}
			if opts.RemoveControlChars && unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r' {
				return -1
			}
			return r
		}, s)
	}
	if opts.CollapseWhitespace {
		s = wsRe.ReplaceAllString(s, " ")
	}
	if opts.Trim {
		s = strings.TrimSpace(s)
	}
	return s
}

var wsRe = regexp.MustCompile(`\s+`)

func isZeroWidth(r rune) bool {
	switch r {
	case '\u200B', '\u200C', '\u200D', '\uFEFF':
		return true
	}
	return false
}
