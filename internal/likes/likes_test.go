package likes_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"briefboard/internal/aggregate"
	"briefboard/internal/likes"
	"briefboard/internal/provider"
)

func openStore(t *testing.T) (*likes.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "likes.db")
	s, err := likes.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func article(url, category string) provider.Article {
	return provider.Article{
		URL:         url,
		Title:       "title " + url,
		Category:    category,
		Author:      "Unknown",
		PublishedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestToggle_TwiceIsNotLiked(t *testing.T) {
	t.Parallel()

	// Arrange
	s, _ := openStore(t)
	a := article("https://x.example/a", "business")

	// Act + Assert: like, then unlike
	liked, err := s.Toggle(t.Context(), a)
	require.NoError(t, err)
	require.True(t, liked)
	ok, err := s.IsLiked(t.Context(), a.URL)
	require.NoError(t, err)
	require.True(t, ok)

	liked, err = s.Toggle(t.Context(), a)
	require.NoError(t, err)
	require.False(t, liked)
	ok, err = s.IsLiked(t.Context(), a.URL)
	require.NoError(t, err)
	require.False(t, ok)

	n, err := s.Count(t.Context())
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestToggle_RequiresURL(t *testing.T) {
	t.Parallel()

	s, _ := openStore(t)
	_, err := s.Toggle(t.Context(), provider.Article{Title: "x"})
	require.ErrorIs(t, err, likes.ErrNoURL)
}

func TestList_InLikeOrderAndSurvivesReopen(t *testing.T) {
	t.Parallel()

	s, path := openStore(t)
	for _, a := range []provider.Article{
		article("https://x.example/b", "health"),
		article("https://x.example/a", ""),
		article("https://x.example/c", "health"),
	} {
		_, err := s.Toggle(t.Context(), a)
		require.NoError(t, err)
	}
	require.NoError(t, s.Close())

	reopened, err := likes.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	list, err := reopened.List(t.Context())
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, "https://x.example/b", list[0].URL)
	require.Equal(t, "https://x.example/a", list[1].URL)
	require.Equal(t, article("https://x.example/c", "health"), list[2])
}

func TestCountByCategory(t *testing.T) {
	t.Parallel()

	s, _ := openStore(t)
	for _, a := range []provider.Article{
		article("1", "health"),
		article("2", ""),
		article("3", "health"),
		article("4", "business"),
	} {
		_, err := s.Toggle(t.Context(), a)
		require.NoError(t, err)
	}

	got, err := s.CountByCategory(t.Context())
	require.NoError(t, err)
	require.Equal(t, []aggregate.CategoryCount{
		{Category: aggregate.Uncategorized, Count: 1},
		{Category: "business", Count: 1},
		{Category: "health", Count: 2},
	}, got)
}
