package github

// Release is one element of GET /repos/{owner}/{repo}/releases.
type Release struct {
	ID          int64   `json:"id"`
	TagName     string  `json:"tag_name"`
	Name        string  `json:"name"`
	Body        string  `json:"body"`
	HTMLURL     string  `json:"html_url"`
	Draft       bool    `json:"draft"`
	Prerelease  bool    `json:"prerelease"`
	CreatedAt   string  `json:"created_at"`
	PublishedAt string  `json:"published_at"`
	Author      User    `json:"author"`
	Assets      []Asset `json:"assets"`
}

type User struct {
	Login string `json:"login"`
}

type Asset struct {
	Name          string `json:"name"`
	DownloadCount int    `json:"download_count"`
}
