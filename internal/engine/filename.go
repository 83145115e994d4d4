package engine

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SaveExtension is appended to every explicit-save filename.
const SaveExtension = ".slayer"

var nameFolder = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SaveFileName derives a portable on-disk name from a project name: accented
// letters fold to their ASCII base, every other non-alphanumeric rune becomes
// an underscore, and the save extension is appended. An empty or fully
// non-representable name falls back to "project".
func SaveFileName(name string) string {
	folded, _, err := transform.String(nameFolder, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if r < 128 && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	base := b.String()
	if strings.Trim(base, "_") == "" {
		base = "project"
	}
	return base + SaveExtension
}
