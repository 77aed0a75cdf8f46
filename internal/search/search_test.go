package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/openshelf-server/internal/domain"
)

// setupTestIndex creates a temporary catalog index for testing.
func setupTestIndex(t *testing.T) *CatalogIndex {
	t.Helper()

	index, err := NewCatalogIndex(Options{
		DataPath: t.TempDir(),
		Logger:   nil,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	return index
}

func indexFixtures(t *testing.T, index *CatalogIndex) {
	t.Helper()

	now := time.Now()
	books := []*domain.Book{
		{
			Record:          domain.Record{ID: "book_hobbit", CreatedAt: now, UpdatedAt: now},
			Title:           "The Hobbit",
			Author:          "J.R.R. Tolkien",
			Category:        "Fantasy",
			ISBN:            "9780261103344",
			TotalCopies:     3,
			AvailableCopies: 2,
		},
		{
			Record:          domain.Record{ID: "book_lotr", CreatedAt: now.Add(time.Minute), UpdatedAt: now.Add(time.Minute)},
			Title:           "The Fellowship of the Ring",
			Author:          "J.R.R. Tolkien",
			Category:        "Fantasy",
			TotalCopies:     2,
			AvailableCopies: 0,
		},
		{
			Record:          domain.Record{ID: "book_sicp", CreatedAt: now.Add(2 * time.Minute), UpdatedAt: now.Add(2 * time.Minute)},
			Title:           "Structure and Interpretation of Computer Programs",
			Author:          "Abelson and Sussman",
			Category:        "Computer Science",
			TotalCopies:     1,
			AvailableCopies: 1,
		},
	}

	docs := make([]*BookDocument, len(books))
	for i, b := range books {
		docs[i] = DocumentFromBook(b)
	}
	require.NoError(t, index.IndexBooks(docs))
}

func TestNewCatalogIndex(t *testing.T) {
	index := setupTestIndex(t)

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestCatalogIndex_IndexBook(t *testing.T) {
	index := setupTestIndex(t)

	doc := &BookDocument{
		ID:     "book_123",
		Title:  "The Hobbit",
		Author: "J.R.R. Tolkien",
	}
	require.NoError(t, index.IndexBook(doc))

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestCatalogIndex_DeleteBook(t *testing.T) {
	index := setupTestIndex(t)

	require.NoError(t, index.IndexBook(&BookDocument{ID: "book_123", Title: "Test Book"}))
	require.NoError(t, index.DeleteBook("book_123"))

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestSearch_TitleMatch(t *testing.T) {
	index := setupTestIndex(t)
	indexFixtures(t, index)

	params := DefaultParams()
	params.Query = "hobbit"

	result, err := index.Search(context.Background(), params)
	require.NoError(t, err)
	require.NotEmpty(t, result.Hits)
	assert.Equal(t, "book_hobbit", result.Hits[0].ID)
	assert.Equal(t, "The Hobbit", result.Hits[0].Title)
	assert.Equal(t, 2, result.Hits[0].AvailableCopies)
}

func TestSearch_AuthorMatch(t *testing.T) {
	index := setupTestIndex(t)
	indexFixtures(t, index)

	params := DefaultParams()
	params.Query = "Tolkien"

	result, err := index.Search(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), result.Total)
}

func TestSearch_FuzzyMatch(t *testing.T) {
	index := setupTestIndex(t)
	indexFixtures(t, index)

	params := DefaultParams()
	params.Query = "hobit" // typo

	result, err := index.Search(context.Background(), params)
	require.NoError(t, err)
	require.NotEmpty(t, result.Hits)
	assert.Equal(t, "book_hobbit", result.Hits[0].ID)
}

func TestSearch_CategoryFilter(t *testing.T) {
	index := setupTestIndex(t)
	indexFixtures(t, index)

	params := DefaultParams()
	params.Category = "Fantasy"

	result, err := index.Search(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), result.Total)
}

func TestSearch_AvailableOnly(t *testing.T) {
	index := setupTestIndex(t)
	indexFixtures(t, index)

	params := DefaultParams()
	params.Category = "Fantasy"
	params.AvailableOnly = true

	result, err := index.Search(context.Background(), params)
	require.NoError(t, err)
	require.Equal(t, uint64(1), result.Total)
	assert.Equal(t, "book_hobbit", result.Hits[0].ID)
}

func TestSearch_ISBNLookup(t *testing.T) {
	index := setupTestIndex(t)
	indexFixtures(t, index)

	params := DefaultParams()
	params.ISBN = "9780261103344"

	result, err := index.Search(context.Background(), params)
	require.NoError(t, err)
	require.Equal(t, uint64(1), result.Total)
	assert.Equal(t, "book_hobbit", result.Hits[0].ID)
}

func TestSearch_CategoryFacets(t *testing.T) {
	index := setupTestIndex(t)
	indexFixtures(t, index)

	params := DefaultParams()

	result, err := index.Search(context.Background(), params)
	require.NoError(t, err)
	require.NotEmpty(t, result.Facets)

	counts := map[string]int{}
	for _, f := range result.Facets {
		counts[f.Value] = f.Count
	}
	assert.Equal(t, 2, counts["Fantasy"])
	assert.Equal(t, 1, counts["Computer Science"])
}

func TestSearch_EmptyQueryMatchesAll(t *testing.T) {
	index := setupTestIndex(t)
	indexFixtures(t, index)

	result, err := index.Search(context.Background(), DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), result.Total)
}

func TestCatalogIndex_Rebuild(t *testing.T) {
	index := setupTestIndex(t)
	indexFixtures(t, index)

	require.NoError(t, index.Rebuild())

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}
