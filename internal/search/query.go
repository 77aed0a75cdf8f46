package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Params configures a catalog search.
type Params struct {
	Query string // User's search query

	// Filters
	Category      string // Filter by exact category
	ISBN          string // Exact ISBN lookup
	AvailableOnly bool   // Only books with at least one copy on the shelf

	// Pagination
	Limit  int
	Offset int

	// Sorting
	SortBy    string // "relevance", "title", "author", "recent"
	SortOrder string // "asc", "desc"

	// Options
	IncludeFacets bool // Include category facet counts
	Highlight     bool // Include match highlighting
}

// DefaultParams returns sensible defaults.
func DefaultParams() Params {
	return Params{
		Limit:         20,
		Offset:        0,
		SortBy:        "relevance",
		SortOrder:     "desc",
		IncludeFacets: true,
		Highlight:     true,
	}
}

// Result represents the search results.
type Result struct {
	Query  string       `json:"query"`
	Total  uint64       `json:"total"`
	TookMs int64        `json:"took_ms"`
	Hits   []Hit        `json:"hits"`
	Facets []FacetCount `json:"facets,omitempty"`
}

// Hit represents a single search result.
type Hit struct {
	ID              string            `json:"id"`
	Score           float64           `json:"score"`
	Title           string            `json:"title"`
	Author          string            `json:"author,omitempty"`
	Category        string            `json:"category,omitempty"`
	ISBN            string            `json:"isbn,omitempty"`
	TotalCopies     int               `json:"total_copies"`
	AvailableCopies int               `json:"available_copies"`
	Highlights      map[string]string `json:"highlights,omitempty"`
}

// FacetCount represents a category value and its count.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Search executes a catalog search.
func (s *CatalogIndex) Search(ctx context.Context, params Params) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	searchQuery := buildSearchQuery(params)

	searchRequest := bleve.NewSearchRequestOptions(searchQuery, params.Limit, params.Offset, false)

	addSorting(searchRequest, params)

	if params.IncludeFacets {
		searchRequest.AddFacet("category", bleve.NewFacetRequest("category", 20))
	}

	if params.Highlight {
		searchRequest.Highlight = bleve.NewHighlight()
		searchRequest.Highlight.AddField("title")
		searchRequest.Highlight.AddField("author")
	}

	// Request stored fields
	searchRequest.Fields = []string{
		"id", "title", "author", "category", "isbn",
		"total_copies", "available_copies",
	}

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &Result{
		Query:  params.Query,
		Total:  searchResult.Total,
		TookMs: searchResult.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(searchResult.Hits)),
	}

	for _, hit := range searchResult.Hits {
		h := Hit{
			ID:    hit.ID,
			Score: hit.Score,
		}

		// Extract stored fields
		if t, ok := hit.Fields["title"].(string); ok {
			h.Title = t
		}
		if a, ok := hit.Fields["author"].(string); ok {
			h.Author = a
		}
		if c, ok := hit.Fields["category"].(string); ok {
			h.Category = c
		}
		if i, ok := hit.Fields["isbn"].(string); ok {
			h.ISBN = i
		}
		if tc, ok := hit.Fields["total_copies"].(float64); ok {
			h.TotalCopies = int(tc)
		}
		if ac, ok := hit.Fields["available_copies"].(float64); ok {
			h.AvailableCopies = int(ac)
		}

		// Extract highlights
		if len(hit.Fragments) > 0 {
			h.Highlights = make(map[string]string)
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					h.Highlights[field] = fragments[0]
				}
			}
		}

		result.Hits = append(result.Hits, h)
	}

	if params.IncludeFacets {
		if categoryFacet, ok := searchResult.Facets["category"]; ok {
			for _, term := range categoryFacet.Terms.Terms() {
				result.Facets = append(result.Facets, FacetCount{
					Value: term.Term,
					Count: term.Count,
				})
			}
		}
	}

	return result, nil
}

// buildSearchQuery constructs the Bleve query from params.
func buildSearchQuery(params Params) query.Query {
	var queries []query.Query

	// Main text query matches on title (boosted) and author, with fuzzy and
	// prefix fallbacks so typos and partial titles still find the book.
	if params.Query != "" {
		textQueries := []query.Query{}

		titleMatch := bleve.NewMatchQuery(params.Query)
		titleMatch.SetField("title")
		titleMatch.SetBoost(3.0)
		textQueries = append(textQueries, titleMatch)

		authorMatch := bleve.NewMatchQuery(params.Query)
		authorMatch.SetField("author")
		authorMatch.SetBoost(1.5)
		textQueries = append(textQueries, authorMatch)

		fuzzyQuery := bleve.NewFuzzyQuery(params.Query)
		fuzzyQuery.SetFuzziness(1)
		fuzzyQuery.SetField("title")
		fuzzyQuery.SetBoost(0.8)
		textQueries = append(textQueries, fuzzyQuery)

		// Prefix query for autocomplete (minimum 2 chars)
		if len(params.Query) >= 2 {
			prefixQuery := bleve.NewPrefixQuery(strings.ToLower(params.Query))
			prefixQuery.SetField("title")
			prefixQuery.SetBoost(0.5)
			textQueries = append(textQueries, prefixQuery)
		}

		// Combine with OR (match any field)
		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	// Category filter (exact match)
	if params.Category != "" {
		cq := bleve.NewTermQuery(params.Category)
		cq.SetField("category")
		queries = append(queries, cq)
	}

	// ISBN lookup (exact match)
	if params.ISBN != "" {
		iq := bleve.NewTermQuery(params.ISBN)
		iq.SetField("isbn")
		queries = append(queries, iq)
	}

	// Availability filter: available_copies >= 1
	if params.AvailableOnly {
		minAvailable := 1.0
		rangeQuery := bleve.NewNumericRangeQuery(&minAvailable, nil)
		rangeQuery.SetField("available_copies")
		queries = append(queries, rangeQuery)
	}

	// Combine all queries with AND
	if len(queries) == 0 {
		return bleve.NewMatchAllQuery()
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewConjunctionQuery(queries...)
}

// addSorting configures sort order.
func addSorting(req *bleve.SearchRequest, params Params) {
	switch params.SortBy {
	case "title":
		if params.SortOrder == "desc" {
			req.SortBy([]string{"-title"})
		} else {
			req.SortBy([]string{"title"})
		}
	case "author":
		if params.SortOrder == "desc" {
			req.SortBy([]string{"-author", "-title"})
		} else {
			req.SortBy([]string{"author", "title"})
		}
	case "recent":
		if params.SortOrder == "asc" {
			req.SortBy([]string{"created_at"})
		} else {
			req.SortBy([]string{"-created_at"})
		}
	default:
		// Relevance (score) is default - Bleve handles this
		req.SortBy([]string{"-_score"})
	}
}
