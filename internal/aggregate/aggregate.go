package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"briefboard/internal/provider"
)

// GroupBy names the source field used for grouping.
type GroupBy string

const (
	ByCategory GroupBy = "category"
	ByCountry  GroupBy = "country"
	ByLanguage GroupBy = "language"
)

// Uncategorized labels articles without a category.
const Uncategorized = "Uncategorized"

// ParseGroupBy validates a groupBy filter value. Empty means ByCategory.
func ParseGroupBy(s string) (GroupBy, error) {
	switch g := GroupBy(strings.ToLower(strings.TrimSpace(s))); g {
	case "":
		return ByCategory, nil
	case ByCategory, ByCountry, ByLanguage:
		return g, nil
	default:
		return "", fmt.Errorf("unknown groupBy %q: want category, country or language", s)
	}
}

// SourceGroup is the set of sources sharing one value of the grouping field.
type SourceGroup struct {
	Key     string            `json:"key"`
	Sources []provider.Source `json:"sources"`
}

// GroupSources buckets sources by the given field. Keys are normalized
// (trimmed, lower-cased); groups are sorted by key and sources by name.
func GroupSources(sources []provider.Source, by GroupBy) ([]SourceGroup, error) {
	field, err := sourceField(by)
	if err != nil {
		return nil, err
	}
	buckets := make(map[string][]provider.Source)
	for _, s := range sources {
		key := normalizeKey(field(s))
		buckets[key] = append(buckets[key], s)
	}

	out := make([]SourceGroup, 0, len(buckets))
	for k, v := range buckets {
		sort.SliceStable(v, func(i, j int) bool { return v[i].Name < v[j].Name })
		out = append(out, SourceGroup{Key: k, Sources: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func sourceField(by GroupBy) (func(provider.Source) string, error) {
	switch by {
	case ByCategory:
		return func(s provider.Source) string { return s.Category }, nil
	case ByCountry:
		return func(s provider.Source) string { return s.Country }, nil
	case ByLanguage:
		return func(s provider.Source) string { return s.Language }, nil
	default:
		return nil, fmt.Errorf("unknown groupBy %q", string(by))
	}
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CategoryCount is the number of articles carrying one category.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// CountByCategory counts articles per category, sorted by category.
// Articles without a category count as Uncategorized.
func CountByCategory(articles []provider.Article) []CategoryCount {
	counts := make(map[string]int)
	for _, a := range articles {
		c := a.Category
		if c == "" {
			c = Uncategorized
		}
		counts[c]++
	}
	out := make([]CategoryCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, CategoryCount{Category: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// LatestByURL collapses articles sharing a URL keeping the newest by
// PublishedAt. For equal timestamps, later input wins. The result is sorted
// newest first; articles with an empty URL are kept as they are.
func LatestByURL(articles []provider.Article) []provider.Article {
	latest := make(map[string]int, len(articles))
	out := make([]provider.Article, 0, len(articles))

	for _, a := range articles {
		key := strings.TrimSpace(a.URL)
		if key == "" {
			out = append(out, a)
			continue
		}
		if idx, ok := latest[key]; ok {
			if !a.PublishedAt.Before(out[idx].PublishedAt) {
				out[idx] = a
			}
			continue
		}
		latest[key] = len(out)
		out = append(out, a)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	return out
}
