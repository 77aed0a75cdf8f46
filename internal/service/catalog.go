package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/errors"
	"github.com/openshelf/openshelf-server/internal/id"
	"github.com/openshelf/openshelf-server/internal/search"
	"github.com/openshelf/openshelf-server/internal/store/sqlite"
)

// CatalogService manages the book catalog and keeps the search index in sync
// with it. Index updates are best-effort: the database row is authoritative
// and a failed index write is logged, not returned.
type CatalogService struct {
	store  *sqlite.Store
	index  *search.CatalogIndex
	logger *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(store *sqlite.Store, index *search.CatalogIndex, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		store:  store,
		index:  index,
		logger: logger,
	}
}

// CreateBookRequest contains new catalog entry data.
type CreateBookRequest struct {
	Title       string `json:"title" validate:"required,max=500"`
	Author      string `json:"author" validate:"max=500"`
	Category    string `json:"category" validate:"max=200"`
	ISBN        string `json:"isbn" validate:"max=20"`
	TotalCopies int    `json:"total_copies" validate:"required,gte=1"`
}

// UpdateBookRequest contains editable catalog fields.
type UpdateBookRequest struct {
	Title    string `json:"title" validate:"required,max=500"`
	Author   string `json:"author" validate:"max=500"`
	Category string `json:"category" validate:"max=200"`
	ISBN     string `json:"isbn" validate:"max=20"`
}

// RestockRequest adds copies to an existing entry.
type RestockRequest struct {
	Count int `json:"count" validate:"required,gte=1"`
}

// CreateBook adds a new title to the catalog. All copies start available.
func (s *CatalogService) CreateBook(ctx context.Context, req CreateBookRequest) (*domain.Book, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	bookID, err := id.Generate("book")
	if err != nil {
		return nil, fmt.Errorf("generate book ID: %w", err)
	}

	book := &domain.Book{
		Record:          domain.Record{ID: bookID},
		Title:           req.Title,
		Author:          req.Author,
		Category:        req.Category,
		ISBN:            req.ISBN,
		TotalCopies:     req.TotalCopies,
		AvailableCopies: req.TotalCopies,
	}
	book.InitTimestamps()

	if err := s.store.CreateBook(ctx, book); err != nil {
		return nil, err
	}

	s.indexBook(book)

	s.logger.Info("Book created", "book_id", bookID, "title", book.Title)
	return book, nil
}

// GetBook retrieves one catalog entry.
func (s *CatalogService) GetBook(ctx context.Context, bookID string) (*domain.Book, error) {
	return s.store.GetBook(ctx, bookID)
}

// ListBooks returns the whole catalog ordered by title.
func (s *CatalogService) ListBooks(ctx context.Context) ([]*domain.Book, error) {
	return s.store.ListBooks(ctx)
}

// ListLowStock returns entries at or below the given availability threshold.
func (s *CatalogService) ListLowStock(ctx context.Context, threshold int) ([]*domain.Book, error) {
	return s.store.ListLowStockBooks(ctx, threshold)
}

// UpdateBook edits a catalog entry's descriptive fields.
func (s *CatalogService) UpdateBook(ctx context.Context, bookID string, req UpdateBookRequest) (*domain.Book, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	book.Title = req.Title
	book.Author = req.Author
	book.Category = req.Category
	book.ISBN = req.ISBN
	book.Touch()

	if err := s.store.UpdateBook(ctx, book); err != nil {
		return nil, err
	}

	s.indexBook(book)
	return book, nil
}

// DeleteBook removes a catalog entry. Blocked while any copy is on loan.
func (s *CatalogService) DeleteBook(ctx context.Context, bookID string) error {
	if err := s.store.DeleteBook(ctx, bookID); err != nil {
		return err
	}

	if err := s.index.DeleteBook(bookID); err != nil {
		s.logger.Warn("Search index delete failed", "book_id", bookID, "error", err)
	}

	s.logger.Info("Book deleted", "book_id", bookID)
	return nil
}

// RestockBook adds copies to both inventory counters.
func (s *CatalogService) RestockBook(ctx context.Context, bookID string, req RestockRequest) (*domain.Book, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	if err := s.store.RestockBook(ctx, bookID, req.Count); err != nil {
		return nil, err
	}

	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	s.indexBook(book)

	s.logger.Info("Book restocked", "book_id", bookID, "count", req.Count)
	return book, nil
}

// Search runs a full-text catalog search.
func (s *CatalogService) Search(ctx context.Context, params search.Params) (*search.Result, error) {
	if params.Limit <= 0 {
		params.Limit = search.DefaultParams().Limit
	}
	return s.index.Search(ctx, params)
}

// ReindexAll rebuilds the search index from the database. Used at startup
// and after index corruption.
func (s *CatalogService) ReindexAll(ctx context.Context) error {
	books, err := s.store.ListBooks(ctx)
	if err != nil {
		return fmt.Errorf("list books for reindex: %w", err)
	}

	if err := s.index.Rebuild(); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}

	docs := make([]*search.BookDocument, len(books))
	for i, b := range books {
		docs[i] = search.DocumentFromBook(b)
	}
	if err := s.index.IndexBooks(docs); err != nil {
		return fmt.Errorf("reindex books: %w", err)
	}

	s.logger.Info("Search index rebuilt", "books", len(books))
	return nil
}

// RefreshIndexEntry re-reads a book and updates its index document. Called
// by circulation after counter changes so availability filters stay fresh.
func (s *CatalogService) RefreshIndexEntry(ctx context.Context, bookID string) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			s.logger.Warn("Index refresh lookup failed", "book_id", bookID, "error", err)
		}
		return
	}
	s.indexBook(book)
}

func (s *CatalogService) indexBook(book *domain.Book) {
	if err := s.index.IndexBook(search.DocumentFromBook(book)); err != nil {
		s.logger.Warn("Search index update failed", "book_id", book.ID, "error", err)
	}
}
