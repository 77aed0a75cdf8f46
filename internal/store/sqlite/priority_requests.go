package sqlite

import (
	"context"
	"database/sql"
	"slices"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/errors"
)

const priorityColumns = `id, created_at, updated_at, book_id, student_id,
	priority_score, status`

func scanPriorityRequest(scanner interface{ Scan(dest ...any) error }) (*domain.PriorityRequest, error) {
	var p domain.PriorityRequest

	var (
		createdAt string
		updatedAt string
		status    string
	)

	err := scanner.Scan(
		&p.ID,
		&createdAt,
		&updatedAt,
		&p.BookID,
		&p.StudentID,
		&p.PriorityScore,
		&status,
	)
	if err != nil {
		return nil, err
	}

	p.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	p.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = domain.RequestStatus(status)

	return &p, nil
}

// CreatePriorityRequest inserts a new queue entry. The partial unique index
// rejects a second PENDING request for the same (book, student) pair.
func (s *Store) CreatePriorityRequest(ctx context.Context, p *domain.PriorityRequest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO priority_requests (
			id, created_at, updated_at, book_id, student_id, priority_score, status
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, formatTime(p.CreatedAt), formatTime(p.UpdatedAt), p.BookID,
		p.StudentID, p.PriorityScore, string(p.Status),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.ErrDuplicatePending
		}
		return errors.Wrap(err, errors.CodeInternal, "create priority request")
	}
	return nil
}

// GetPriorityRequest retrieves a queue entry by ID.
func (s *Store) GetPriorityRequest(ctx context.Context, requestID string) (*domain.PriorityRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+priorityColumns+` FROM priority_requests WHERE id = ?`, requestID)
	p, err := scanPriorityRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("Priority request not found.")
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "get priority request")
	}
	return p, nil
}

// HasPendingRequests reports whether a book has any waiting queue entries.
func (s *Store) HasPendingRequests(ctx context.Context, bookID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM priority_requests WHERE book_id = ? AND status = ?`,
		bookID, string(domain.RequestPending)).Scan(&n)
	if err != nil {
		return false, errors.Wrap(err, errors.CodeInternal, "count pending requests")
	}
	return n > 0, nil
}

// ListPendingOrdered returns a book's waiting queue entries in fulfillment
// order. Score and creation-time ordering happens in Go because stored
// timestamps trim trailing zeros and do not sort lexicographically by time.
func (s *Store) ListPendingOrdered(ctx context.Context, bookID string) ([]*domain.PriorityRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+priorityColumns+` FROM priority_requests WHERE book_id = ? AND status = ?`,
		bookID, string(domain.RequestPending))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "list pending requests")
	}
	defer rows.Close()

	var pending []*domain.PriorityRequest
	for rows.Next() {
		p, err := scanPriorityRequest(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "scan priority request")
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "list pending requests")
	}

	slices.SortFunc(pending, domain.ComparePriority)
	return pending, nil
}

// ListAllPendingOrdered returns every waiting queue entry across all books
// in fulfillment order. Rank queries use this as the global set.
func (s *Store) ListAllPendingOrdered(ctx context.Context) ([]*domain.PriorityRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+priorityColumns+` FROM priority_requests WHERE status = ?`,
		string(domain.RequestPending))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "list pending requests")
	}
	defer rows.Close()

	var pending []*domain.PriorityRequest
	for rows.Next() {
		p, err := scanPriorityRequest(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "scan priority request")
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "list pending requests")
	}

	slices.SortFunc(pending, domain.ComparePriority)
	return pending, nil
}

// SelectNextPending returns the head of a book's queue, or nil when empty.
func (s *Store) SelectNextPending(ctx context.Context, bookID string) (*domain.PriorityRequest, error) {
	pending, err := s.ListPendingOrdered(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}
	return pending[0], nil
}

// ClaimRequest flips a request PENDING to FULFILLED exactly once. A request
// another worker already claimed or cancelled affects zero rows.
func (s *Store) ClaimRequest(ctx context.Context, requestID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE priority_requests SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(domain.RequestFulfilled), formatTime(timeNow()), requestID,
		string(domain.RequestPending),
	)
	if err != nil {
		return false, errors.Wrap(err, errors.CodeInternal, "claim request")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, errors.CodeInternal, "claim request")
	}
	return n > 0, nil
}

// ReopenRequest rolls a claimed request back to PENDING after a downstream
// failure, so the claim is not lost.
func (s *Store) ReopenRequest(ctx context.Context, requestID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE priority_requests SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(domain.RequestPending), formatTime(timeNow()), requestID,
		string(domain.RequestFulfilled),
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "reopen request")
	}
	return nil
}

// CancelRequest flips a request PENDING to CANCELLED.
func (s *Store) CancelRequest(ctx context.Context, requestID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE priority_requests SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(domain.RequestCancelled), formatTime(timeNow()), requestID,
		string(domain.RequestPending),
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "cancel request")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "cancel request")
	}
	if n == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM priority_requests WHERE id = ?`, requestID).Scan(&exists); err != nil {
			return errors.Wrap(err, errors.CodeInternal, "cancel request")
		}
		if exists == 0 {
			return errors.NotFound("Priority request not found.")
		}
		return errors.Conflict("Only pending requests can be cancelled.")
	}
	return nil
}

// ListRequestsByStudent returns a student's queue entries, newest first.
func (s *Store) ListRequestsByStudent(ctx context.Context, studentID string) ([]*domain.PriorityRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+priorityColumns+` FROM priority_requests WHERE student_id = ? ORDER BY created_at DESC, id`,
		studentID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "list requests by student")
	}
	defer rows.Close()

	var requests []*domain.PriorityRequest
	for rows.Next() {
		p, err := scanPriorityRequest(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "scan priority request")
		}
		requests = append(requests, p)
	}
	return requests, rows.Err()
}
