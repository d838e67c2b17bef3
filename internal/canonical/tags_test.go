package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractHashtags(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"none", "plain text", []string{}},
		{"lower-cased in order", "Loving #GoLang and #rust today #golang", []string{"golang", "rust"}},
		{"start of text", "#TIL closures capture by reference", []string{"til"}},
		{"digits only ignored", "we're #1 and #2024plans", []string{"2024plans"}},
		{"not inside urls or entities", "see https://x.io/#anchor and &#39; but #real", []string{"real"}},
		{"unicode", "Café #Übung", []string{"übung"}},
		{"trailing dash trimmed", "#go- is fine", []string{"go"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractHashtags(tt.text))
		})
	}
}

func TestMergeTags(t *testing.T) {
	got := MergeTags([]string{"bluesky"}, []string{"#Go", "go", " "}, []string{"Rust"})
	assert.Equal(t, []string{"bluesky", "go", "rust"}, got)
}

func TestCuration(t *testing.T) {
	c := NewCuration([]string{"Timeline", "primer"}, []string{"timeline"})

	assert.True(t, c.Admit([]string{"go", "timeline"}))
	assert.True(t, c.Admit([]string{"PRIMER"}))
	assert.False(t, c.Admit([]string{"go"}))
	assert.False(t, c.Admit(nil))

	assert.Equal(t, []string{"go", "primer"}, c.Visible([]string{"go", "timeline", "primer"}))
}

func TestCuration_EmptyAllowListAdmitsAll(t *testing.T) {
	c := NewCuration(nil, nil)
	assert.True(t, c.Admit(nil))
	assert.True(t, c.Admit([]string{"anything"}))
}
