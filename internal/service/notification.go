package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/id"
	"github.com/openshelf/openshelf-server/internal/notify"
	"github.com/openshelf/openshelf-server/internal/store/sqlite"
)

// NotificationService records in-app notifications and mirrors them to email.
// The database row is the source of truth; a failed email send is logged and
// never fails the calling operation.
type NotificationService struct {
	store  *sqlite.Store
	mailer notify.Mailer
	logger *slog.Logger
}

// NewNotificationService creates a new notification service.
func NewNotificationService(store *sqlite.Store, mailer notify.Mailer, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		store:  store,
		mailer: mailer,
		logger: logger,
	}
}

// Notify records a notification for the user and sends the same content by
// email. Returns an error only when the database write fails.
func (s *NotificationService) Notify(ctx context.Context, user *domain.User, subject, body string) error {
	notificationID, err := id.Generate("notif")
	if err != nil {
		return fmt.Errorf("generate notification ID: %w", err)
	}

	n := &domain.Notification{
		Record:  domain.Record{ID: notificationID},
		UserID:  user.ID,
		Subject: subject,
		Body:    body,
	}
	n.InitTimestamps()

	if err := s.store.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	if err := s.mailer.Send(ctx, notify.Message{
		To:      user.Email,
		Subject: subject,
		Body:    body,
	}); err != nil {
		s.logger.Warn("Email delivery failed",
			"user_id", user.ID,
			"subject", subject,
			"error", err,
		)
	}

	return nil
}

// NotifyAdmins fans a notification out to every approved admin. Best-effort:
// a failure for one admin is logged and the rest are still notified.
func (s *NotificationService) NotifyAdmins(ctx context.Context, subject, body string) {
	admins, err := s.store.ListApprovedAdmins(ctx)
	if err != nil {
		s.logger.Warn("Admin lookup for notification failed", "error", err)
		return
	}

	for _, admin := range admins {
		if err := s.Notify(ctx, admin, subject, body); err != nil {
			s.logger.Warn("Admin notification failed",
				"admin_id", admin.ID,
				"error", err,
			)
		}
	}
}

// List returns the user's notification feed.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool) ([]*domain.Notification, error) {
	return s.store.ListNotifications(ctx, userID, unreadOnly)
}

// MarkRead marks one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	return s.store.MarkNotificationRead(ctx, userID, notificationID)
}
