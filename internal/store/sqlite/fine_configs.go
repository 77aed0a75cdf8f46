package sqlite

import (
	"context"
	"database/sql"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/errors"
)

const fineConfigColumns = `id, created_at, updated_at, name, fine_per_day,
	grace_minutes, max_fine_per_item, is_active`

func scanFineConfig(scanner interface{ Scan(dest ...any) error }) (*domain.FineConfig, error) {
	var c domain.FineConfig

	var (
		createdAt string
		updatedAt string
		maxFine   sql.NullInt64
		isActive  int
	)

	err := scanner.Scan(
		&c.ID,
		&createdAt,
		&updatedAt,
		&c.Name,
		&c.FinePerDay,
		&c.GraceMinutes,
		&maxFine,
		&isActive,
	)
	if err != nil {
		return nil, err
	}

	c.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	c.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	if maxFine.Valid {
		v := maxFine.Int64
		c.MaxFinePerItem = &v
	}
	c.IsActive = isActive != 0

	return &c, nil
}

// CreateFineConfig inserts a new fine policy. Names are unique.
func (s *Store) CreateFineConfig(ctx context.Context, c *domain.FineConfig) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fine_configs (
			id, created_at, updated_at, name, fine_per_day, grace_minutes,
			max_fine_per_item, is_active
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, formatTime(c.CreatedAt), formatTime(c.UpdatedAt), c.Name,
		c.FinePerDay, c.GraceMinutes, nullInt64(c.MaxFinePerItem),
		boolToInt(c.IsActive),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.AlreadyExists("A fine policy with this name already exists.")
		}
		return errors.Wrap(err, errors.CodeInternal, "create fine config")
	}
	return nil
}

// GetActiveFineConfig returns the policy in effect: the most recently created
// active config. Returns (nil, nil) when no policy is configured, which
// callers treat as "no fines assessed".
func (s *Store) GetActiveFineConfig(ctx context.Context) (*domain.FineConfig, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fineConfigColumns+` FROM fine_configs WHERE is_active = 1`)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "get active fine config")
	}
	defer rows.Close()

	var newest *domain.FineConfig
	for rows.Next() {
		c, err := scanFineConfig(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "scan fine config")
		}
		if newest == nil || c.CreatedAt.After(newest.CreatedAt) {
			newest = c
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "get active fine config")
	}
	return newest, nil
}

// ListFineConfigs returns every policy, newest first.
func (s *Store) ListFineConfigs(ctx context.Context) ([]*domain.FineConfig, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fineConfigColumns+` FROM fine_configs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "list fine configs")
	}
	defer rows.Close()

	var configs []*domain.FineConfig
	for rows.Next() {
		c, err := scanFineConfig(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "scan fine config")
		}
		configs = append(configs, c)
	}
	return configs, rows.Err()
}

// DeactivateFineConfig flips a policy inactive. Historical fines keep their
// snapshotted values.
func (s *Store) DeactivateFineConfig(ctx context.Context, configID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE fine_configs SET is_active = 0, updated_at = ? WHERE id = ?`,
		formatTime(timeNow()), configID,
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "deactivate fine config")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("Fine policy not found.")
	}
	return nil
}
