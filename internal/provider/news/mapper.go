package news

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"briefboard/internal/provider"
)

// Defaults substituted for missing article fields.
const (
	UnknownAuthor = "Unknown"

	statusOK      = "ok"
	statusSuccess = "success"
	statusError   = "error"
)

// looksLikeMarkup matches a complete start, end or self-closing tag.
var looksLikeMarkup = regexp.MustCompile(`</?[a-zA-Z][a-zA-Z0-9]*(\s[^<>]*)?/?>`)

// MapArticles normalizes raw articles, labelling each with category or
// provider.DefaultCategory when category is empty.
func MapArticles(raw RawArticlesResponse, category string) ([]provider.Article, error) {
	if category == "" {
		category = provider.DefaultCategory
	}
	out := make([]provider.Article, 0, len(raw.Articles))
	for i, a := range raw.Articles {
		published, err := parsePublishedAt(a.PublishedAt)
		if err != nil {
			return nil, fmt.Errorf("article %d: %w", i, err)
		}
		author := a.Author
		if author == "" {
			author = UnknownAuthor
		}
		out = append(out, provider.Article{
			SourceID:    a.Source.ID,
			SourceName:  a.Source.Name,
			Author:      author,
			Title:       a.Title,
			Description: plainText(a.Description),
			URL:         a.URL,
			ImageURL:    a.URLToImage,
			PublishedAt: published,
			Content:     plainText(a.Content),
			Category:    category,
		})
	}
	return out, nil
}

// MapArticlePage normalizes a whole headlines or search response.
func MapArticlePage(raw RawArticlesResponse, category string) (provider.ArticlePage, error) {
	articles, err := MapArticles(raw, category)
	if err != nil {
		return provider.ArticlePage{}, err
	}
	return provider.ArticlePage{
		Status:       mapStatus(raw.Status),
		TotalResults: raw.TotalResults,
		Articles:     articles,
	}, nil
}

// MapSources normalizes a sources response.
func MapSources(raw RawSourcesResponse) []provider.Source {
	out := make([]provider.Source, 0, len(raw.Sources))
	for _, s := range raw.Sources {
		out = append(out, provider.Source{
			ID:          s.ID,
			Name:        s.Name,
			Description: s.Description,
			URL:         s.URL,
			Category:    s.Category,
			Language:    s.Language,
			Country:     s.Country,
		})
	}
	return out
}

func mapStatus(s string) string {
	if s == statusOK {
		return statusSuccess
	}
	return statusError
}

func parsePublishedAt(s string) (time.Time, error) {
	// RFC 3339 parsing also accepts a fractional seconds field.
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing publishedAt %q: %w", s, err)
	}
	return t.UTC(), nil
}

// plainText drops markup some publishers leave in descriptions and content.
// Text without a complete tag, or that parses to no element, is returned
// unchanged.
func plainText(s string) string {
	if !looksLikeMarkup.MatchString(s) {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil || doc.Find("body *").Length() == 0 {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
