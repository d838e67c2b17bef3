package wikipedia

// ContribsResponse is the list=usercontribs reply with formatversion=2.
type ContribsResponse struct {
	Continue *Continue `json:"continue"`
	Query    struct {
		UserContribs []Contribution `json:"usercontribs"`
	} `json:"query"`
	Error *APIError `json:"error"`
}

type Continue struct {
	UCContinue string `json:"uccontinue"`
}

type APIError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

type Contribution struct {
	User      string `json:"user"`
	PageID    int64  `json:"pageid"`
	RevID     int64  `json:"revid"`
	ParentID  int64  `json:"parentid"`
	NS        int    `json:"ns"`
	Title     string `json:"title"`
	Timestamp string `json:"timestamp"`
	Comment   string `json:"comment"`
	Size      int    `json:"size"`
	SizeDiff  int    `json:"sizediff"`
	Minor     bool   `json:"minor"`
	New       bool   `json:"new"`
}
