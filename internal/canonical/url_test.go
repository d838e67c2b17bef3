package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"HTTPS://Example.COM/Path", "https://example.com/Path"},
		{"https://example.com/a?utm_source=x&id=3#frag", "https://example.com/a?id=3"},
		{"https://example.com/a?b=2&a=1", "https://example.com/a?a=1&b=2"},
		{" not a url ", "not a url"},
		{"saved:123", "saved:123"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURL(tt.in))
		})
	}
}

func TestNormalizeURL_Stable(t *testing.T) {
	once := NormalizeURL("https://Example.com/a?utm_medium=m&q=go")
	assert.Equal(t, once, NormalizeURL(once))
}

func TestHost(t *testing.T) {
	assert.Equal(t, "news.ycombinator.com", Host("https://news.ycombinator.com/item?id=1"))
	assert.Equal(t, "github.com", Host("https://www.GitHub.com/x"))
	assert.Equal(t, "", Host("::bad"))
}
