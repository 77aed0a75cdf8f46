// Package search provides full-text catalog search using Bleve. Books are
// indexed by title, author, and category with fuzzy matching and category
// faceting; inventory counters are stored for display without a database
// round trip.
package search

import (
	"github.com/openshelf/openshelf-server/internal/domain"
)

// BookDocument is the indexed representation of a catalog entry.
type BookDocument struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Author   string `json:"author,omitempty"`
	Category string `json:"category,omitempty"`
	ISBN     string `json:"isbn,omitempty"`

	TotalCopies     int `json:"total_copies"`
	AvailableCopies int `json:"available_copies"`

	// Unix millis, for sorting by recency.
	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// DocumentFromBook converts a catalog record into its indexed form.
func DocumentFromBook(b *domain.Book) *BookDocument {
	return &BookDocument{
		ID:              b.ID,
		Title:           b.Title,
		Author:          b.Author,
		Category:        b.Category,
		ISBN:            b.ISBN,
		TotalCopies:     b.TotalCopies,
		AvailableCopies: b.AvailableCopies,
		CreatedAt:       b.CreatedAt.UnixMilli(),
		UpdatedAt:       b.UpdatedAt.UnixMilli(),
	}
}

// ToMap converts the document to a map with lowercase field names.
// Bleve by default uses Go struct field names (capitalized), but our
// mapping uses lowercase names, so we convert explicitly.
func (d *BookDocument) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"id":               d.ID,
		"title":            d.Title,
		"total_copies":     d.TotalCopies,
		"available_copies": d.AvailableCopies,
		"created_at":       d.CreatedAt,
		"updated_at":       d.UpdatedAt,
	}

	if d.Author != "" {
		m["author"] = d.Author
	}
	if d.Category != "" {
		m["category"] = d.Category
	}
	if d.ISBN != "" {
		m["isbn"] = d.ISBN
	}

	return m
}
