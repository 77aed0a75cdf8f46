package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/errors"
	"github.com/openshelf/openshelf-server/internal/store/sqlite"
)

// MembershipService handles account administration: the approval queue,
// membership tiers, and per-user borrow limit overrides.
type MembershipService struct {
	store         *sqlite.Store
	notifications *NotificationService
	logger        *slog.Logger
}

// NewMembershipService creates a new membership service.
func NewMembershipService(store *sqlite.Store, notifications *NotificationService, logger *slog.Logger) *MembershipService {
	return &MembershipService{
		store:         store,
		notifications: notifications,
		logger:        logger,
	}
}

// SetTierRequest changes a member's tier.
type SetTierRequest struct {
	Tier domain.MembershipTier `json:"membership_tier" validate:"required,oneof=BASIC PREMIUM"`
}

// SetBorrowLimitRequest sets a per-user loan cap. Zero restores the tier
// default.
type SetBorrowLimitRequest struct {
	MaxBorrowLimit int `json:"max_borrow_limit" validate:"gte=0,lte=100"`
}

// GetUser retrieves one account.
func (s *MembershipService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.store.GetUser(ctx, userID)
}

// ListUsers returns accounts, optionally filtered by role.
func (s *MembershipService) ListUsers(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	return s.store.ListUsers(ctx, role)
}

// ListPendingUsers returns accounts waiting for approval.
func (s *MembershipService) ListPendingUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := s.store.ListUsers(ctx, "")
	if err != nil {
		return nil, err
	}
	pending := make([]*domain.User, 0)
	for _, u := range users {
		if !u.IsApproved {
			pending = append(pending, u)
		}
	}
	return pending, nil
}

// ApproveUser marks an account approved, unlocking borrowing and priority
// requests for students.
func (s *MembershipService) ApproveUser(ctx context.Context, userID string, approver *domain.User) (*domain.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsApproved {
		return nil, errors.Conflict("This account is already approved.")
	}

	now := time.Now()
	user.IsApproved = true
	user.ApprovedBy = approver.ID
	user.ApprovedAt = &now
	user.Touch()

	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, err
	}

	if err := s.notifications.Notify(ctx, user, "Account Approved",
		"Your account has been approved. You can now borrow books.",
	); err != nil {
		s.logger.Warn("Approval notification failed", "user_id", userID, "error", err)
	}

	s.logger.Info("User approved", "user_id", userID, "by", approver.ID)
	return user, nil
}

// RejectUser removes an unapproved account and its sessions. Approved
// accounts cannot be rejected.
func (s *MembershipService) RejectUser(ctx context.Context, userID string, actor *domain.User) error {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsApproved {
		return errors.Conflict("Approved accounts cannot be rejected.")
	}

	if err := s.store.DeleteUserSessions(ctx, userID); err != nil {
		return err
	}
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		return err
	}

	s.logger.Info("User rejected", "user_id", userID, "by", actor.ID)
	return nil
}

// SetTier changes a member's membership tier. The effective borrow limit
// follows the tier unless a per-user override is set.
func (s *MembershipService) SetTier(ctx context.Context, userID string, req SetTierRequest) (*domain.User, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.Tier = req.Tier
	user.Touch()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("Membership tier changed", "user_id", userID, "tier", req.Tier)
	return user, nil
}

// SetBorrowLimit sets or clears a member's per-user loan cap.
func (s *MembershipService) SetBorrowLimit(ctx context.Context, userID string, req SetBorrowLimitRequest) (*domain.User, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.MaxBorrowLimit = req.MaxBorrowLimit
	user.Touch()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("Borrow limit changed",
		"user_id", userID,
		"max_borrow_limit", req.MaxBorrowLimit,
		"effective_limit", user.BorrowLimit(),
	)
	return user, nil
}
