package raindrop

// ListResponse is GET /rest/v1/raindrops/{collection}.
type ListResponse struct {
	Result       bool   `json:"result"`
	Items        []Item `json:"items"`
	Count        int    `json:"count"`
	ErrorMessage string `json:"errorMessage"`
}

// ItemResponse is GET /rest/v1/raindrop/{id}.
type ItemResponse struct {
	Result bool `json:"result"`
	Item   Item `json:"item"`
}

type Item struct {
	ID         int64       `json:"_id"`
	Title      string      `json:"title"`
	Excerpt    string      `json:"excerpt"`
	Note       string      `json:"note"`
	Link       string      `json:"link"`
	Domain     string      `json:"domain"`
	Cover      string      `json:"cover"`
	Type       string      `json:"type"`
	Tags       []string    `json:"tags"`
	Created    string      `json:"created"`
	LastUpdate string      `json:"lastUpdate"`
	Highlights []Highlight `json:"highlights"`
}

type Highlight struct {
	ID      string `json:"_id"`
	Text    string `json:"text"`
	Note    string `json:"note"`
	Color   string `json:"color"`
	Created string `json:"created"`
}
