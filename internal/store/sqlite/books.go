package sqlite

import (
	"context"
	"database/sql"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/errors"
)

const bookColumns = `id, created_at, updated_at, title, author, category, isbn,
	total_copies, available_copies`

func scanBook(scanner interface{ Scan(dest ...any) error }) (*domain.Book, error) {
	var b domain.Book

	var (
		createdAt string
		updatedAt string
		author    sql.NullString
		category  sql.NullString
		isbn      sql.NullString
	)

	err := scanner.Scan(
		&b.ID,
		&createdAt,
		&updatedAt,
		&b.Title,
		&author,
		&category,
		&isbn,
		&b.TotalCopies,
		&b.AvailableCopies,
	)
	if err != nil {
		return nil, err
	}

	b.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	b.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	b.Author = author.String
	b.Category = category.String
	b.ISBN = isbn.String

	return &b, nil
}

// CreateBook inserts a new book.
func (s *Store) CreateBook(ctx context.Context, b *domain.Book) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (
			id, created_at, updated_at, title, author, category, isbn,
			total_copies, available_copies
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, formatTime(b.CreatedAt), formatTime(b.UpdatedAt), b.Title,
		nullString(b.Author), nullString(b.Category), nullString(b.ISBN),
		b.TotalCopies, b.AvailableCopies,
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "create book")
	}
	return nil
}

// GetBook retrieves a book by ID.
func (s *Store) GetBook(ctx context.Context, bookID string) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ?`, bookID)
	b, err := scanBook(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("Book not found.")
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "get book")
	}
	return b, nil
}

// ListBooks returns all books ordered by title.
func (s *Store) ListBooks(ctx context.Context) ([]*domain.Book, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books ORDER BY title, id`)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "list books")
	}
	defer rows.Close()

	var books []*domain.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "scan book")
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// ListLowStockBooks returns books with available copies at or below threshold.
func (s *Store) ListLowStockBooks(ctx context.Context, threshold int) ([]*domain.Book, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE available_copies <= ? ORDER BY available_copies, title`,
		threshold)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "list low stock books")
	}
	defer rows.Close()

	var books []*domain.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "scan book")
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// UpdateBook persists the book's descriptive fields. Copy counters are
// managed through the dedicated counter methods, never here.
func (s *Store) UpdateBook(ctx context.Context, b *domain.Book) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE books SET
			updated_at = ?, title = ?, author = ?, category = ?, isbn = ?
		WHERE id = ?`,
		formatTime(b.UpdatedAt), b.Title, nullString(b.Author),
		nullString(b.Category), nullString(b.ISBN), b.ID,
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "update book")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("Book not found.")
	}
	return nil
}

// DeleteBook removes a book. Fails with a conflict if any copy is still out.
func (s *Store) DeleteBook(ctx context.Context, bookID string) error {
	var active int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM borrow_records WHERE book_id = ? AND is_returned = 0`,
		bookID).Scan(&active)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "count active loans")
	}
	if active > 0 {
		return errors.Conflict("Cannot delete a book with copies on loan.")
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, bookID)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "delete book")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("Book not found.")
	}
	return nil
}

// RestockBook adds copies to both counters.
func (s *Store) RestockBook(ctx context.Context, bookID string, count int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE books SET
			total_copies = total_copies + ?,
			available_copies = available_copies + ?,
			updated_at = ?
		WHERE id = ?`,
		count, count, formatTime(timeNow()), bookID,
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "restock book")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("Book not found.")
	}
	return nil
}

// DecrementAvailableCopies takes one copy off the shelf. The condition makes
// the last copy a race only one caller can win; losers get ErrBookUnavailable.
func (s *Store) DecrementAvailableCopies(ctx context.Context, bookID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE books SET available_copies = available_copies - 1, updated_at = ?
		WHERE id = ? AND available_copies > 0`,
		formatTime(timeNow()), bookID,
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "decrement copies")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "decrement copies")
	}
	if n == 0 {
		// Missing row and zero copies both land here; distinguish for callers.
		var exists int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM books WHERE id = ?`, bookID).Scan(&exists); err != nil {
			return errors.Wrap(err, errors.CodeInternal, "decrement copies")
		}
		if exists == 0 {
			return errors.NotFound("Book not found.")
		}
		return errors.ErrBookUnavailable
	}
	return nil
}

// IncrementAvailableCopies puts one copy back on the shelf, never exceeding
// the total. Used on return and to roll back a failed issue.
func (s *Store) IncrementAvailableCopies(ctx context.Context, bookID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE books SET available_copies = available_copies + 1, updated_at = ?
		WHERE id = ? AND available_copies < total_copies`,
		formatTime(timeNow()), bookID,
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "increment copies")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Conflict("All copies are already on the shelf.")
	}
	return nil
}
