package shared

import (
	"strings"
	"unicode"

	"github.com/desertthunder/collectarr/internal/models"
)

// leading articles dropped during normalization
var articles = map[string]bool{"the": true, "a": true, "an": true}

// NormalizeTitle canonicalizes a movie title for comparison: case-folded,
// punctuation stripped, leading article dropped, whitespace collapsed, and a
// trailing parenthesized year removed. The function is total; input that
// survives none of the transforms comes back lower-cased and trimmed.
func NormalizeTitle(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = stripTrailingYear(s)

	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '/' || r == ':':
			b.WriteRune(' ')
		}
		// remaining punctuation is dropped entirely
	}

	words := strings.Fields(b.String())
	if len(words) > 1 && articles[words[0]] {
		words = words[1:]
	}

	if len(words) == 0 {
		return strings.ToLower(strings.TrimSpace(title))
	}
	return strings.Join(words, " ")
}

// BuildLibraryIndex populates the matcher's lookup maps from library items.
// Title keys are normalized; duplicate titles accumulate so the matcher can
// refuse ambiguous matches.
func BuildLibraryIndex(items []models.LibraryItem) *models.LibraryIndex {
	index := models.NewLibraryIndex()
	for _, item := range items {
		if item.IMDbID != "" {
			index.ByIMDb[item.IMDbID] = item
		}
		if item.TMDbID != "" {
			index.ByTMDb[item.TMDbID] = item
		}
		key := NormalizeTitle(item.Name)
		index.ByTitle[key] = append(index.ByTitle[key], item)
	}
	return index
}

// stripTrailingYear removes one trailing "(1999)"-style suffix.
func stripTrailingYear(s string) string {
	if !strings.HasSuffix(s, ")") {
		return s
	}
	open := strings.LastIndex(s, "(")
	if open < 0 {
		return s
	}
	inner := s[open+1 : len(s)-1]
	if len(inner) != 4 {
		return s
	}
	for _, r := range inner {
		if r < '0' || r > '9' {
			return s
		}
	}
	return strings.TrimSpace(s[:open])
}
