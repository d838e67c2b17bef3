package canonical

import (
	"regexp"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	hashtagPattern = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_&#/])#([\p{L}\p{N}_][\p{L}\p{N}_-]*)`)
	allDigits      = regexp.MustCompile(`^[0-9]+$`)
	lower          = cases.Lower(language.Und)
)

// NormalizeTag lower-cases and NFC-normalizes a tag, dropping a leading '#'.
func NormalizeTag(tag string) string {
	tag = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
	return lower.String(norm.NFC.String(tag))
}

// ExtractHashtags returns the inline #hashtags of text in order of first
// appearance. Purely numeric tokens such as "#1" are ignored.
func ExtractHashtags(text string) []string {
	matches := hashtagPattern.FindAllStringSubmatch(text, -1)
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tag := strings.TrimRight(m[1], "-_")
		if tag == "" || allDigits.MatchString(tag) {
			continue
		}
		tags = append(tags, NormalizeTag(tag))
	}
	return lo.Uniq(tags)
}

// MergeTags concatenates tag groups, normalizing and de-duplicating while
// keeping first-seen order.
func MergeTags(groups ...[]string) []string {
	merged := make([]string, 0)
	for _, group := range groups {
		for _, tag := range group {
			if t := NormalizeTag(tag); t != "" {
				merged = append(merged, t)
			}
		}
	}
	return lo.Uniq(merged)
}

// Curation gates records on marker tags. Allow is the allow-list a record
// must match at least once; Hidden tags drive inclusion but are not shown.
type Curation struct {
	Allow  []string
	Hidden []string
}

func NewCuration(allow, hidden []string) Curation {
	return Curation{
		Allow:  MergeTags(allow),
		Hidden: MergeTags(hidden),
	}
}

// Admit reports whether a record carrying tags may become an entry. An empty
// allow-list admits everything.
func (c Curation) Admit(tags []string) bool {
	if len(c.Allow) == 0 {
		return true
	}
	return lo.Some(MergeTags(tags), c.Allow)
}

// Visible removes hidden marker tags.
func (c Curation) Visible(tags []string) []string {
	return lo.Without(MergeTags(tags), c.Hidden...)
}
