package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/errors"
)

const borrowColumns = `id, created_at, updated_at, book_id, student_id,
	issued_by, due_date, return_date, is_returned, request_id`

func scanBorrowRecord(scanner interface{ Scan(dest ...any) error }) (*domain.BorrowRecord, error) {
	var r domain.BorrowRecord

	var (
		createdAt  string
		updatedAt  string
		dueDate    string
		returnDate sql.NullString
		isReturned int
		requestID  sql.NullString
	)

	err := scanner.Scan(
		&r.ID,
		&createdAt,
		&updatedAt,
		&r.BookID,
		&r.StudentID,
		&r.IssuedBy,
		&dueDate,
		&returnDate,
		&isReturned,
		&requestID,
	)
	if err != nil {
		return nil, err
	}

	r.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	r.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	r.DueDate, err = parseTime(dueDate)
	if err != nil {
		return nil, err
	}
	r.ReturnDate, err = parseNullableTime(returnDate)
	if err != nil {
		return nil, err
	}

	r.IsReturned = isReturned != 0
	r.RequestID = requestID.String

	return &r, nil
}

// CreateBorrowRecord inserts a new loan.
func (s *Store) CreateBorrowRecord(ctx context.Context, r *domain.BorrowRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO borrow_records (
			id, created_at, updated_at, book_id, student_id, issued_by,
			due_date, return_date, is_returned, request_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, formatTime(r.CreatedAt), formatTime(r.UpdatedAt), r.BookID,
		r.StudentID, r.IssuedBy, formatTime(r.DueDate),
		nullTimeString(r.ReturnDate), boolToInt(r.IsReturned),
		nullString(r.RequestID),
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "create borrow record")
	}
	return nil
}

// GetBorrowRecord retrieves a loan by ID.
func (s *Store) GetBorrowRecord(ctx context.Context, recordID string) (*domain.BorrowRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+borrowColumns+` FROM borrow_records WHERE id = ?`, recordID)
	r, err := scanBorrowRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("Borrow record not found.")
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "get borrow record")
	}
	return r, nil
}

// MarkReturned flips a loan to returned exactly once. A second attempt
// affects zero rows and reports ErrAlreadyReturned.
func (s *Store) MarkReturned(ctx context.Context, recordID string, returnedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE borrow_records SET
			is_returned = 1, return_date = ?, updated_at = ?
		WHERE id = ? AND is_returned = 0`,
		formatTime(returnedAt), formatTime(returnedAt), recordID,
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "mark returned")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "mark returned")
	}
	if n == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM borrow_records WHERE id = ?`, recordID).Scan(&exists); err != nil {
			return errors.Wrap(err, errors.CodeInternal, "mark returned")
		}
		if exists == 0 {
			return errors.NotFound("Borrow record not found.")
		}
		return errors.ErrAlreadyReturned
	}
	return nil
}

// CountActiveBorrows returns the number of unreturned loans for a student.
func (s *Store) CountActiveBorrows(ctx context.Context, studentID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM borrow_records WHERE student_id = ? AND is_returned = 0`,
		studentID).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeInternal, "count active borrows")
	}
	return n, nil
}

// ListBorrowsByStudent returns a student's loans, newest first. When
// activeOnly is set, returned loans are excluded.
func (s *Store) ListBorrowsByStudent(ctx context.Context, studentID string, activeOnly bool) ([]*domain.BorrowRecord, error) {
	query := `SELECT ` + borrowColumns + ` FROM borrow_records WHERE student_id = ?`
	if activeOnly {
		query += ` AND is_returned = 0`
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, studentID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "list borrows by student")
	}
	defer rows.Close()
	return collectBorrowRecords(rows)
}

// ListBorrowsByBook returns a book's loan history, newest first.
func (s *Store) ListBorrowsByBook(ctx context.Context, bookID string) ([]*domain.BorrowRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+borrowColumns+` FROM borrow_records WHERE book_id = ? ORDER BY created_at DESC, id`,
		bookID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "list borrows by book")
	}
	defer rows.Close()
	return collectBorrowRecords(rows)
}

// ListOverdueBorrows returns unreturned loans past their due date as of now.
func (s *Store) ListOverdueBorrows(ctx context.Context, now time.Time) ([]*domain.BorrowRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+borrowColumns+` FROM borrow_records WHERE is_returned = 0`)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "list overdue borrows")
	}
	defer rows.Close()

	all, err := collectBorrowRecords(rows)
	if err != nil {
		return nil, err
	}

	// Timestamps are stored as trimmed-nanosecond text, so the due-date
	// comparison happens here rather than in SQL.
	var overdue []*domain.BorrowRecord
	for _, r := range all {
		if r.IsOverdue(now) {
			overdue = append(overdue, r)
		}
	}
	return overdue, nil
}

func collectBorrowRecords(rows *sql.Rows) ([]*domain.BorrowRecord, error) {
	var records []*domain.BorrowRecord
	for rows.Next() {
		r, err := scanBorrowRecord(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "scan borrow record")
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
