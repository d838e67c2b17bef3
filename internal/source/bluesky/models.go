package bluesky

// FeedResponse is the app.bsky.feed.getAuthorFeed response.
type FeedResponse struct {
	Cursor string     `json:"cursor"`
	Feed   []FeedItem `json:"feed"`
}

type FeedItem struct {
	Post   Post    `json:"post"`
	Reason *Reason `json:"reason"`
}

type Reason struct {
	Type string `json:"$type"`
}

type Post struct {
	URI         string `json:"uri"`
	CID         string `json:"cid"`
	Author      Author `json:"author"`
	Record      Record `json:"record"`
	Embed       *Embed `json:"embed"`
	ReplyCount  int    `json:"replyCount"`
	RepostCount int    `json:"repostCount"`
	LikeCount   int    `json:"likeCount"`
	QuoteCount  int    `json:"quoteCount"`
	IndexedAt   string `json:"indexedAt"`
}

type Author struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
}

type Record struct {
	Type      string   `json:"$type"`
	Text      string   `json:"text"`
	CreatedAt string   `json:"createdAt"`
	Facets    []Facet  `json:"facets"`
	Langs     []string `json:"langs"`
}

type Facet struct {
	Features []Feature `json:"features"`
}

// Feature is one facet feature: a #tag, a link or a mention.
type Feature struct {
	Type string `json:"$type"`
	Tag  string `json:"tag"`
	URI  string `json:"uri"`
	DID  string `json:"did"`
}

// Embed covers the view shapes the timeline renders. Media is set for
// recordWithMedia embeds.
type Embed struct {
	Type      string    `json:"$type"`
	Images    []Image   `json:"images"`
	External  *External `json:"external"`
	Playlist  string    `json:"playlist"`
	Thumbnail string    `json:"thumbnail"`
	Alt       string    `json:"alt"`
	Media     *Embed    `json:"media"`
}

type Image struct {
	Thumb    string `json:"thumb"`
	Fullsize string `json:"fullsize"`
	Alt      string `json:"alt"`
}

type External struct {
	URI         string `json:"uri"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Thumb       string `json:"thumb"`
}
