package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/errors"
)

// userColumns is the ordered list of columns selected in user queries.
// Must match the scan order in scanUser.
const userColumns = `id, created_at, updated_at, name, email, password_hash,
	role, is_approved, approved_by, approved_at, membership_tier,
	max_borrow_limit, total_outstanding_fine, total_paid_fine, last_login_at`

// scanUser scans a sql.Row (or sql.Rows via its Scan method) into a domain.User.
func scanUser(scanner interface{ Scan(dest ...any) error }) (*domain.User, error) {
	var u domain.User

	var (
		createdAt   string
		updatedAt   string
		passwordH   sql.NullString
		role        string
		isApproved  int
		approvedBy  sql.NullString
		approvedAt  sql.NullString
		tier        string
		lastLoginAt sql.NullString
	)

	err := scanner.Scan(
		&u.ID,
		&createdAt,
		&updatedAt,
		&u.Name,
		&u.Email,
		&passwordH,
		&role,
		&isApproved,
		&approvedBy,
		&approvedAt,
		&tier,
		&u.MaxBorrowLimit,
		&u.TotalOutstandingFine,
		&u.TotalPaidFine,
		&lastLoginAt,
	)
	if err != nil {
		return nil, err
	}

	u.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	u.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	if passwordH.Valid {
		u.PasswordHash = passwordH.String
	}
	u.Role = domain.Role(role)
	u.IsApproved = isApproved != 0
	if approvedBy.Valid {
		u.ApprovedBy = approvedBy.String
	}
	u.ApprovedAt, err = parseNullableTime(approvedAt)
	if err != nil {
		return nil, err
	}
	u.Tier = domain.MembershipTier(tier)
	u.LastLoginAt, err = parseNullableTime(lastLoginAt)
	if err != nil {
		return nil, err
	}

	return &u, nil
}

// CreateUser inserts a new user. Emails are unique case-insensitively.
func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (
			id, created_at, updated_at, name, email, email_lower, password_hash,
			role, is_approved, approved_by, approved_at, membership_tier,
			max_borrow_limit, total_outstanding_fine, total_paid_fine, last_login_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, formatTime(u.CreatedAt), formatTime(u.UpdatedAt), u.Name, u.Email,
		strings.ToLower(u.Email), nullString(u.PasswordHash),
		string(u.Role), boolToInt(u.IsApproved), nullString(u.ApprovedBy),
		nullTimeString(u.ApprovedAt), string(u.Tier),
		u.MaxBorrowLimit, u.TotalOutstandingFine, u.TotalPaidFine,
		nullTimeString(u.LastLoginAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.AlreadyExists("A user with this email already exists.")
		}
		return errors.Wrap(err, errors.CodeInternal, "create user")
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, userID)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("User not found.")
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "get user")
	}
	return u, nil
}

// GetUserByEmail retrieves a user by email, case-insensitively.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email_lower = ?`, strings.ToLower(email))
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("User not found.")
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "get user by email")
	}
	return u, nil
}

// ListUsers returns all users, optionally filtered by role.
func (s *Store) ListUsers(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	args := []any{}
	if role != "" {
		query += ` WHERE role = ?`
		args = append(args, string(role))
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "list users")
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "scan user")
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ListApprovedAdmins returns all approved admin accounts, for alerting.
func (s *Store) ListApprovedAdmins(ctx context.Context) ([]*domain.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE role = ? AND is_approved = 1`,
		string(domain.RoleAdmin))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "list admins")
	}
	defer rows.Close()

	var admins []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "scan admin")
		}
		admins = append(admins, u)
	}
	return admins, rows.Err()
}

// UpdateUser persists mutable user fields (approval, tier, limits, login).
func (s *Store) UpdateUser(ctx context.Context, u *domain.User) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET
			updated_at = ?, name = ?, role = ?, is_approved = ?, approved_by = ?,
			approved_at = ?, membership_tier = ?, max_borrow_limit = ?,
			last_login_at = ?
		WHERE id = ?`,
		formatTime(u.UpdatedAt), u.Name, string(u.Role), boolToInt(u.IsApproved),
		nullString(u.ApprovedBy), nullTimeString(u.ApprovedAt), string(u.Tier),
		u.MaxBorrowLimit, nullTimeString(u.LastLoginAt), u.ID,
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "update user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("User not found.")
	}
	return nil
}

// DeleteUser removes an account. Used by the rejection flow; approved
// accounts are never deleted through the API.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "delete user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("User not found.")
	}
	return nil
}

// AddFineTotals adjusts a member's denormalized fine aggregates.
// Deltas may be negative (payment reduces outstanding).
func (s *Store) AddFineTotals(ctx context.Context, memberID string, outstandingDelta, paidDelta int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET
			total_outstanding_fine = total_outstanding_fine + ?,
			total_paid_fine = total_paid_fine + ?,
			updated_at = ?
		WHERE id = ?`,
		outstandingDelta, paidDelta, formatTime(timeNow()), memberID,
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "update fine totals")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("User not found.")
	}
	return nil
}

// RecalculateFineTotals recomputes a member's aggregates from the fines
// table, correcting any drift from failed best-effort updates.
func (s *Store) RecalculateFineTotals(ctx context.Context, memberID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET
			total_outstanding_fine = COALESCE((
				SELECT SUM(amount - paid_amount) FROM fines WHERE member_id = users.id
			), 0),
			total_paid_fine = COALESCE((
				SELECT SUM(paid_amount) FROM fines WHERE member_id = users.id
			), 0),
			updated_at = ?
		WHERE id = ?`,
		formatTime(timeNow()), memberID,
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "recalculate fine totals")
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite unique constraint error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
