package sqlite

import (
	"context"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/errors"
)

const notificationColumns = `id, created_at, updated_at, user_id, subject, body, is_read`

func scanNotification(scanner interface{ Scan(dest ...any) error }) (*domain.Notification, error) {
	var n domain.Notification

	var (
		createdAt string
		updatedAt string
		isRead    int
	)

	err := scanner.Scan(
		&n.ID,
		&createdAt,
		&updatedAt,
		&n.UserID,
		&n.Subject,
		&n.Body,
		&isRead,
	)
	if err != nil {
		return nil, err
	}

	n.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	n.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	n.IsRead = isRead != 0

	return &n, nil
}

// CreateNotification inserts an in-app message.
func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (
			id, created_at, updated_at, user_id, subject, body, is_read
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, formatTime(n.CreatedAt), formatTime(n.UpdatedAt), n.UserID,
		n.Subject, n.Body, boolToInt(n.IsRead),
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "create notification")
	}
	return nil
}

// ListNotifications returns a user's messages, newest first.
func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "list notifications")
	}
	defer rows.Close()

	var notifications []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "scan notification")
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead flips a message read for its owner.
func (s *Store) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = 1, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		formatTime(timeNow()), notificationID, userID,
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "mark notification read")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("Notification not found.")
	}
	return nil
}
