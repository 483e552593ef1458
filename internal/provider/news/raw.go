package news

// RawSource is the publisher reference embedded in an article.
type RawSource struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RawArticle is an article as the provider encodes it. Nullable fields decode to "".
type RawArticle struct {
	Source      RawSource `json:"source"`
	Author      string    `json:"author"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	URLToImage  string    `json:"urlToImage"`
	PublishedAt string    `json:"publishedAt"`
	Content     string    `json:"content"`
}

// RawArticlesResponse is the body of the headlines and everything endpoints.
type RawArticlesResponse struct {
	Status       string       `json:"status"`
	TotalResults int          `json:"totalResults"`
	Articles     []RawArticle `json:"articles"`
}

// RawSourceInfo is one entry of the sources endpoint.
type RawSourceInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Category    string `json:"category"`
	Language    string `json:"language"`
	Country     string `json:"country"`
}

// RawSourcesResponse is the body of the sources endpoint.
type RawSourcesResponse struct {
	Status  string          `json:"status"`
	Sources []RawSourceInfo `json:"sources"`
}
