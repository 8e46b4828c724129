package search

// Result is a single page search hit returned to the caller.
type Result struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	WorkspaceID  string `json:"workspaceId"`
	Visibility   string `json:"visibility,omitempty"`
	LastEditedBy string `json:"lastEditedBy,omitempty"`
}

// Query describes a page search request.
type Query struct {
	Text              string
	FilterWorkspaceID string
	Limit             int
	Offset            int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a page title search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push pages into a search index.
type Indexer interface {
	IndexPage(page PageRecord) error
	DeletePage(id string) error
}

// PageRecord is the data we index for a page.
type PageRecord struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	WorkspaceID  string `json:"workspaceId"`
	Visibility   string `json:"visibility"`
	LastEditedBy string `json:"lastEditedBy"`
}
