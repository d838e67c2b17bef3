// Package classify assigns the display type of an entry at publish time.
//
// Rules are evaluated in order and the first match wins, so precedence is
// the position in the table. None of the rules look at Entry.Type, which
// keeps classification idempotent.
package classify

import (
	"strings"

	"github.com/samber/lo"

	"timeline_sync/internal/canonical"
	"timeline_sync/internal/domain"
)

type Rule struct {
	Name  string
	Match func(e domain.Entry) bool
	Type  string
}

// Classifier evaluates an ordered rule table, falling back to the entry's
// own type or source.
type Classifier struct {
	rules []Rule
}

func New(rules ...Rule) *Classifier {
	return &Classifier{rules: rules}
}

// Default is the rule set used by the publish pass.
func Default() *Classifier {
	return New(DefaultRules()...)
}

func DefaultRules() []Rule {
	return []Rule{
		{Name: "primer-tag", Match: hasTag(domain.TypePrimer), Type: domain.TypePrimer},
		{Name: "hackernews", Match: anyOf(fromSource(domain.TypeHackerNews), onHost("news.ycombinator.com")), Type: domain.TypeHackerNews},
		{Name: "github-release", Match: anyOf(fromSource(domain.TypeRelease), githubRelease), Type: domain.TypeRelease},
		{Name: "wikipedia", Match: anyOf(fromSource(domain.TypeWikipedia), onHostSuffix("wikipedia.org")), Type: domain.TypeWikipedia},
		{Name: "bluesky", Match: anyOf(fromSource(domain.TypeBluesky), onHost("bsky.app")), Type: domain.TypeBluesky},
		{Name: "blog", Match: fromSource(domain.TypeBlog), Type: domain.TypeBlog},
	}
}

// Classify returns the display type for e. It always returns a non-empty type.
func (c *Classifier) Classify(e domain.Entry) string {
	for _, rule := range c.rules {
		if rule.Match(e) {
			return rule.Type
		}
	}
	switch {
	case e.Type != "":
		return e.Type
	case e.Source != "":
		return e.Source
	default:
		return domain.TypeSaved
	}
}

// Apply reclassifies entries in place.
func (c *Classifier) Apply(entries []domain.Entry) {
	for i := range entries {
		entries[i].Type = c.Classify(entries[i])
	}
}

var displayNames = map[string]string{
	domain.TypeSaved:      "Article Shared",
	domain.TypePrimer:     "AI Topic Primer",
	domain.TypeBlog:       "Blog Post",
	domain.TypeBluesky:    "Bluesky",
	domain.TypeRelease:    "GitHub Release",
	domain.TypeWikipedia:  "Wikipedia Edit",
	domain.TypeHackerNews: "Hacker News",
}

// DisplayName maps a type to its human label, defaulting to the type itself.
func DisplayName(entryType string) string {
	if name, ok := displayNames[entryType]; ok {
		return name
	}
	return entryType
}

func hasTag(tag string) func(domain.Entry) bool {
	return func(e domain.Entry) bool {
		return lo.Contains(canonical.MergeTags(e.Tags), tag)
	}
}

func fromSource(source string) func(domain.Entry) bool {
	return func(e domain.Entry) bool {
		return e.Source == source
	}
}

// entryHosts yields the hosts an entry points at, including a site name
// recorded by the source.
func entryHosts(e domain.Entry) []string {
	hosts := []string{canonical.Host(e.URL), canonical.Host(e.CanonicalURL)}
	if site, ok := e.Metadata["site_name"].(string); ok {
		hosts = append(hosts, strings.TrimPrefix(strings.ToLower(site), "www."))
	}
	return lo.Filter(hosts, func(h string, _ int) bool { return h != "" })
}

func onHost(host string) func(domain.Entry) bool {
	return func(e domain.Entry) bool {
		return lo.Contains(entryHosts(e), host)
	}
}

func onHostSuffix(suffix string) func(domain.Entry) bool {
	return func(e domain.Entry) bool {
		return lo.SomeBy(entryHosts(e), func(h string) bool {
			return h == suffix || strings.HasSuffix(h, "."+suffix)
		})
	}
}

func githubRelease(e domain.Entry) bool {
	return canonical.Host(e.URL) == "github.com" && strings.Contains(e.URL, "/releases/")
}

func anyOf(preds ...func(domain.Entry) bool) func(domain.Entry) bool {
	return func(e domain.Entry) bool {
		return lo.SomeBy(preds, func(p func(domain.Entry) bool) bool { return p(e) })
	}
}
