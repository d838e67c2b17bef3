package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
		want string
	}{
		{"empty", "   ", 80, ""},
		{"first sentence", "Shipped the new parser. It is faster now.", 80, "Shipped the new parser."},
		{"question", "Anyone tried Go 1.25?  Thoughts welcome", 80, "Anyone tried Go 1.25?"},
		{"no punctuation", "just a short note", 80, "just a short note"},
		{"long sentence truncated", "one two three four five six seven eight nine ten", 20, "one two three four…"},
		{"whitespace collapsed", "line one\n\nline two", 80, "line one line two"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveTitle(tt.text, tt.max))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "héllo…", Truncate("héllo wörld again", 8))
	assert.Equal(t, "", Truncate("anything", 0))
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "a b c", Summarize(" a\n b\t c ", 100))
}

func TestWordCount(t *testing.T) {
	assert.Equal(t, 4, WordCount("one two\nthree  four"))
	assert.Equal(t, 0, WordCount(""))
}
