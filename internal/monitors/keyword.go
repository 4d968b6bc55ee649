package monitors

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ExcerptContext is the number of characters kept on each side of a match
const ExcerptContext = 100

type Match struct {
	Found    bool
	Position int // rune offset of the first occurrence
	Excerpt  string
}

// MatchKeyword finds the first case-insensitive occurrence of keyword in text.
// An empty keyword never matches.
func MatchKeyword(text, keyword string) Match {
	if keyword == "" {
		return Match{}
	}

	lowerText := lowerRunes(text)
	idx := strings.Index(lowerText, lowerRunes(keyword))

	if idx < 0 {
		return Match{}
	}

	runes := []rune(text)
	pos := utf8.RuneCountInString(lowerText[:idx])
	keywordLen := utf8.RuneCountInString(keyword)

	start := max(0, pos-ExcerptContext)
	end := min(len(runes), pos+keywordLen+ExcerptContext)

	return Match{
		Found:    true,
		Position: pos,
		Excerpt:  string(runes[start:end]),
	}
}

// TruncateRunes caps s at limit characters
func TruncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}

	if utf8.RuneCountInString(s) <= limit {
		return s
	}

	return string([]rune(s)[:limit])
}

// lowerRunes lowercases rune by rune so offsets stay aligned with the source text
func lowerRunes(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for _, r := range s {
		b.WriteRune(unicode.ToLower(r))
	}

	return b.String()
}
