package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for book documents.
//
// The mapping is designed with these priorities:
//  1. Fast full-text search on titles with English stemming
//  2. Boosted relevance for author matches
//  3. Exact keyword matching for category filters and ISBN lookup
//  4. Term vectors enabled on key fields for highlighting
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()

	// Use English analyzer as default for text fields
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	// --- Text fields (full-text searchable) ---

	// Title - primary search target, boosted
	titleFieldMapping := bleve.NewTextFieldMapping()
	titleFieldMapping.Analyzer = en.AnalyzerName
	titleFieldMapping.Store = true
	titleFieldMapping.IncludeTermVectors = true // For highlighting
	docMapping.AddFieldMappingsAt("title", titleFieldMapping)

	// Author - searchable
	authorFieldMapping := bleve.NewTextFieldMapping()
	authorFieldMapping.Analyzer = en.AnalyzerName
	authorFieldMapping.Store = true
	authorFieldMapping.IncludeTermVectors = true // For highlighting
	docMapping.AddFieldMappingsAt("author", authorFieldMapping)

	// --- Keyword fields (exact match, facetable) ---

	// ID - stored but not analyzed
	idFieldMapping := bleve.NewTextFieldMapping()
	idFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("id", idFieldMapping)

	// Category - for faceting and exact filtering
	categoryFieldMapping := bleve.NewTextFieldMapping()
	categoryFieldMapping.Analyzer = keyword.Name
	categoryFieldMapping.Store = true
	categoryFieldMapping.IncludeTermVectors = true // For faceting
	docMapping.AddFieldMappingsAt("category", categoryFieldMapping)

	// ISBN - exact lookup only
	isbnFieldMapping := bleve.NewTextFieldMapping()
	isbnFieldMapping.Analyzer = keyword.Name
	isbnFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("isbn", isbnFieldMapping)

	// --- Numeric fields (range queries, sorting) ---

	totalCopiesFieldMapping := bleve.NewNumericFieldMapping()
	totalCopiesFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("total_copies", totalCopiesFieldMapping)

	availableCopiesFieldMapping := bleve.NewNumericFieldMapping()
	availableCopiesFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("available_copies", availableCopiesFieldMapping)

	// Timestamps - for sorting by recency
	createdAtFieldMapping := bleve.NewNumericFieldMapping()
	createdAtFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("created_at", createdAtFieldMapping)

	updatedAtFieldMapping := bleve.NewNumericFieldMapping()
	updatedAtFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("updated_at", updatedAtFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
