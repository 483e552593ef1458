package aggregate

import (
	"testing"
	"time"

	"briefboard/internal/provider"
)

func TestGroupSources_ByCategory(t *testing.T) {
	in := []provider.Source{
		{ID: "espn", Name: "ESPN", Category: "sports", Country: "us", Language: "en"},
		{ID: "bbc-news", Name: "BBC News", Category: "general", Country: "gb", Language: "en"},
		{ID: "abc-news", Name: "ABC News", Category: "General", Country: "us", Language: "en"},
	}

	out, err := GroupSources(in, ByCategory)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("want 2 groups, got %d: %+v", len(out), out)
	}
	if out[0].Key != "general" || len(out[0].Sources) != 2 || out[0].Sources[0].Name != "ABC News" {
		t.Fatalf("unexpected general group: %+v", out[0])
	}
	if out[1].Key != "sports" {
		t.Fatalf("unexpected second group: %+v", out[1])
	}
}

func TestGroupSources_ByCountryAndLanguage(t *testing.T) {
	in := []provider.Source{
		{Name: "Le Monde", Country: "fr", Language: "fr"},
		{Name: "CNN", Country: "us", Language: "en"},
		{Name: "BBC", Country: "gb", Language: "en"},
	}

	byCountry, err := GroupSources(in, ByCountry)
	if err != nil || len(byCountry) != 3 || byCountry[0].Key != "fr" {
		t.Fatalf("country grouping: %+v %v", byCountry, err)
	}
	byLang, err := GroupSources(in, ByLanguage)
	if err != nil || len(byLang) != 2 || byLang[0].Key != "en" || byLang[0].Sources[0].Name != "BBC" {
		t.Fatalf("language grouping: %+v %v", byLang, err)
	}
}

func TestGroupSources_UnknownField(t *testing.T) {
	if _, err := GroupSources(nil, GroupBy("publisher")); err == nil {
		t.Fatal("expected error for unknown groupBy")
	}
}

func TestParseGroupBy(t *testing.T) {
	if g, err := ParseGroupBy(""); err != nil || g != ByCategory {
		t.Fatalf("empty: %q %v", g, err)
	}
	if g, err := ParseGroupBy(" Country "); err != nil || g != ByCountry {
		t.Fatalf("country: %q %v", g, err)
	}
	if _, err := ParseGroupBy("author"); err == nil {
		t.Fatal("expected error")
	}
}

func TestCountByCategory_Uncategorized(t *testing.T) {
	in := []provider.Article{
		{URL: "a", Category: "business"},
		{URL: "b"},
		{URL: "c", Category: "business"},
	}
	out := CountByCategory(in)
	if len(out) != 2 {
		t.Fatalf("want 2 rows, got %+v", out)
	}
	if out[0].Category != Uncategorized || out[0].Count != 1 {
		t.Fatalf("unexpected first row: %+v", out[0])
	}
	if out[1].Category != "business" || out[1].Count != 2 {
		t.Fatalf("unexpected second row: %+v", out[1])
	}
}

func TestLatestByURL_NewestWinsAndSortsNewestFirst(t *testing.T) {
	t1 := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	in := []provider.Article{
		{URL: "https://x.example/a", Title: "old", PublishedAt: t1, Category: "general"},
		{URL: "https://x.example/b", Title: "b", PublishedAt: t1.Add(-time.Hour)},
		{URL: "https://x.example/a", Title: "new", PublishedAt: t2, Category: "business"},
	}

	out := LatestByURL(in)
	if len(out) != 2 {
		t.Fatalf("want 2, got %d: %+v", len(out), out)
	}
	if out[0].Title != "new" || out[0].Category != "business" {
		t.Fatalf("unexpected newest: %+v", out[0])
	}
	if out[1].Title != "b" {
		t.Fatalf("unexpected second: %+v", out[1])
	}
}

func TestLatestByURL_EqualTimestampsLaterInputWins(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	in := []provider.Article{
		{URL: "u", Title: "first", PublishedAt: ts},
		{URL: "u", Title: "second", PublishedAt: ts},
		{Title: "no url", PublishedAt: ts},
	}
	out := LatestByURL(in)
	if len(out) != 2 || out[0].Title != "second" {
		t.Fatalf("unexpected: %+v", out)
	}
}
