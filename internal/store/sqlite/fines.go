package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/errors"
)

const fineColumns = `id, created_at, updated_at, member_id, borrow_record_id,
	days_overdue, fine_per_day, amount, paid_amount, status, config_name`

func scanFine(scanner interface{ Scan(dest ...any) error }) (*domain.Fine, error) {
	var f domain.Fine

	var (
		createdAt  string
		updatedAt  string
		status     string
		configName sql.NullString
	)

	err := scanner.Scan(
		&f.ID,
		&createdAt,
		&updatedAt,
		&f.MemberID,
		&f.BorrowRecordID,
		&f.DaysOverdue,
		&f.FinePerDay,
		&f.Amount,
		&f.PaidAmount,
		&status,
		&configName,
	)
	if err != nil {
		return nil, err
	}

	f.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	f.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	f.Status = domain.FineStatus(status)
	f.ConfigName = configName.String

	return &f, nil
}

// CreateFine inserts a new fine. The unique index on borrow_record_id keeps
// a loan from being fined twice.
func (s *Store) CreateFine(ctx context.Context, f *domain.Fine) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fines (
			id, created_at, updated_at, member_id, borrow_record_id,
			days_overdue, fine_per_day, amount, paid_amount, status, config_name
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, formatTime(f.CreatedAt), formatTime(f.UpdatedAt), f.MemberID,
		f.BorrowRecordID, f.DaysOverdue, f.FinePerDay, f.Amount, f.PaidAmount,
		string(f.Status), nullString(f.ConfigName),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.AlreadyExists("A fine already exists for this loan.")
		}
		return errors.Wrap(err, errors.CodeInternal, "create fine")
	}
	return nil
}

// GetFine retrieves a fine by ID.
func (s *Store) GetFine(ctx context.Context, fineID string) (*domain.Fine, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+fineColumns+` FROM fines WHERE id = ?`, fineID)
	f, err := scanFine(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("Fine not found.")
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "get fine")
	}
	return f, nil
}

// UpdateFinePayment persists the payment state of a fine.
func (s *Store) UpdateFinePayment(ctx context.Context, f *domain.Fine, paidAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE fines SET paid_amount = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		f.PaidAmount, string(f.Status), formatTime(paidAt), f.ID,
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "update fine payment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("Fine not found.")
	}
	return nil
}

// ListFinesByMember returns a member's fines, newest first. When unpaidOnly
// is set, settled fines are excluded.
func (s *Store) ListFinesByMember(ctx context.Context, memberID string, unpaidOnly bool) ([]*domain.Fine, error) {
	query := `SELECT ` + fineColumns + ` FROM fines WHERE member_id = ?`
	if unpaidOnly {
		query += ` AND status != '` + string(domain.FinePaid) + `'`
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, memberID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "list fines by member")
	}
	defer rows.Close()
	return collectFines(rows)
}

// ListFines returns all fines, newest first.
func (s *Store) ListFines(ctx context.Context) ([]*domain.Fine, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fineColumns+` FROM fines ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "list fines")
	}
	defer rows.Close()
	return collectFines(rows)
}

func collectFines(rows *sql.Rows) ([]*domain.Fine, error) {
	var fines []*domain.Fine
	for rows.Next() {
		f, err := scanFine(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "scan fine")
		}
		fines = append(fines, f)
	}
	return fines, rows.Err()
}
