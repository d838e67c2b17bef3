package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "Hello world & friends", StripHTML("<p>Hello <b>world</b></p><p>&amp; friends</p>"))
	assert.Equal(t, "a b", StripHTML("a<br>b"))
}

func TestParagraphs(t *testing.T) {
	got := Paragraphs("first line\nsecond <line>\n\nnext para")
	assert.Equal(t, "<p>first line<br>second &lt;line&gt;</p><p>next para</p>", got)
	assert.Equal(t, "", Paragraphs("  "))
	assert.Equal(t, got, Paragraphs("first line\nsecond <line>\n\nnext para"))
}

func TestLinkCard(t *testing.T) {
	got := LinkCard("https://a.io/?x=1&y=2", "Title", "Desc", "")
	assert.Equal(t, `<a class="link-card" href="https://a.io/?x=1&amp;y=2"><strong>Title</strong><span>Desc</span></a>`, got)
}

func TestBlockquote(t *testing.T) {
	assert.Equal(t, `<blockquote><p>quoted</p></blockquote><p class="note">mine</p>`, Blockquote("quoted", "mine"))
	assert.Equal(t, `<blockquote><p>quoted</p></blockquote>`, Blockquote("quoted", ""))
}

func TestRenderMarkdown(t *testing.T) {
	got, err := RenderMarkdown("## Changes\n\n- fixed *bug*")
	require.NoError(t, err)
	assert.Equal(t, "<h2>Changes</h2>\n<ul>\n<li>fixed <em>bug</em></li>\n</ul>", got)
}
