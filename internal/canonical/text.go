package canonical

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const ellipsis = "…"

var spaceRun = regexp.MustCompile(`\s+`)

// CollapseSpace trims s and folds every whitespace run into a single space.
func CollapseSpace(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

// DeriveTitle builds a title for records without one: the first sentence if
// it fits in max runes, otherwise the first max runes with an ellipsis.
func DeriveTitle(text string, max int) string {
	text = CollapseSpace(text)
	if text == "" {
		return ""
	}
	if end := sentenceEnd(text); end > 0 {
		sentence := strings.TrimSpace(text[:end])
		if utf8.RuneCountInString(sentence) <= max {
			return sentence
		}
	}
	return Truncate(text, max)
}

// Summarize collapses whitespace and truncates to max runes.
func Summarize(text string, max int) string {
	return Truncate(CollapseSpace(text), max)
}

// Truncate cuts s to at most max runes, preferring a word boundary, and
// appends an ellipsis when anything was removed.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 0 {
		return ""
	}

	cut := runes[:max]
	if i := lastSpace(cut); i > max/2 {
		cut = cut[:i]
	}
	trimmed := strings.TrimRightFunc(string(cut), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	return trimmed + ellipsis
}

func sentenceEnd(text string) int {
	for i, r := range text {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		next := i + 1
		if next == len(text) {
			return next
		}
		if text[next] == ' ' {
			return next
		}
	}
	return -1
}

func lastSpace(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return -1
}

// WordCount counts whitespace separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
