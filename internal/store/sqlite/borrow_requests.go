package sqlite

import (
	"context"
	"database/sql"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/errors"
)

const borrowRequestColumns = `id, created_at, updated_at, book_id, student_id, status`

func scanBorrowRequest(scanner interface{ Scan(dest ...any) error }) (*domain.BorrowRequest, error) {
	var r domain.BorrowRequest

	var (
		createdAt string
		updatedAt string
		status    string
	)

	err := scanner.Scan(
		&r.ID,
		&createdAt,
		&updatedAt,
		&r.BookID,
		&r.StudentID,
		&status,
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
	r.Status = domain.BorrowRequestStatus(status)

	return &r, nil
}

// CreateBorrowRequest inserts a new request. The partial unique index rejects
// a second PENDING request for the same (book, student) pair.
func (s *Store) CreateBorrowRequest(ctx context.Context, r *domain.BorrowRequest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO borrow_requests (
			id, created_at, updated_at, book_id, student_id, status
		) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, formatTime(r.CreatedAt), formatTime(r.UpdatedAt), r.BookID,
		r.StudentID, string(r.Status),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.DuplicatePending("You already have a pending request for this book.")
		}
		return errors.Wrap(err, errors.CodeInternal, "create borrow request")
	}
	return nil
}

// GetBorrowRequest retrieves a request by ID.
func (s *Store) GetBorrowRequest(ctx context.Context, requestID string) (*domain.BorrowRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+borrowRequestColumns+` FROM borrow_requests WHERE id = ?`, requestID)
	r, err := scanBorrowRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("Borrow request not found.")
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "get borrow request")
	}
	return r, nil
}

// ListBorrowRequests returns every request, newest first.
func (s *Store) ListBorrowRequests(ctx context.Context) ([]*domain.BorrowRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+borrowRequestColumns+` FROM borrow_requests ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "list borrow requests")
	}
	defer rows.Close()

	var requests []*domain.BorrowRequest
	for rows.Next() {
		r, err := scanBorrowRequest(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "scan borrow request")
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

// ListBorrowRequestsByStudent returns a student's requests, newest first.
func (s *Store) ListBorrowRequestsByStudent(ctx context.Context, studentID string) ([]*domain.BorrowRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+borrowRequestColumns+` FROM borrow_requests WHERE student_id = ? ORDER BY created_at DESC, id`,
		studentID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "list borrow requests by student")
	}
	defer rows.Close()

	var requests []*domain.BorrowRequest
	for rows.Next() {
		r, err := scanBorrowRequest(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "scan borrow request")
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

// CountOpenBorrowRequests counts a student's undecided requests. The request
// flow charges these against the borrow limit alongside active loans.
func (s *Store) CountOpenBorrowRequests(ctx context.Context, studentID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM borrow_requests WHERE student_id = ? AND status = ?`,
		studentID, string(domain.BorrowRequestPending)).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeInternal, "count open borrow requests")
	}
	return n, nil
}

// DecideBorrowRequest flips a request PENDING to the given decision exactly
// once. A second decision affects zero rows and reports a conflict, so two
// staff members cannot both approve (and double-issue) the same request.
func (s *Store) DecideBorrowRequest(ctx context.Context, requestID string, decision domain.BorrowRequestStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE borrow_requests SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(decision), formatTime(timeNow()), requestID,
		string(domain.BorrowRequestPending),
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "decide borrow request")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "decide borrow request")
	}
	if n == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM borrow_requests WHERE id = ?`, requestID).Scan(&exists); err != nil {
			return errors.Wrap(err, errors.CodeInternal, "decide borrow request")
		}
		if exists == 0 {
			return errors.NotFound("Borrow request not found.")
		}
		return errors.Conflict("This request has already been decided.")
	}
	return nil
}

// ReopenBorrowRequest rolls an approved request back to PENDING after a
// failed issue, so the approval is not lost.
func (s *Store) ReopenBorrowRequest(ctx context.Context, requestID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE borrow_requests SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(domain.BorrowRequestPending), formatTime(timeNow()), requestID,
		string(domain.BorrowRequestApproved),
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "reopen borrow request")
	}
	return nil
}
