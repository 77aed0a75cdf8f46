package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/id"
	"github.com/openshelf/openshelf-server/internal/store/sqlite"
)

// FineService owns the overdue-fine ledger: assessment at return time,
// payments, and policy configuration. Denormalized member totals are updated
// best-effort alongside each mutation; RecalculateMemberTotals corrects any
// drift.
type FineService struct {
	store  *sqlite.Store
	logger *slog.Logger
}

// NewFineService creates a new fine service.
func NewFineService(store *sqlite.Store, logger *slog.Logger) *FineService {
	return &FineService{store: store, logger: logger}
}

// PayFineRequest contains a payment against a fine.
type PayFineRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

// CreateFineConfigRequest contains a new fine policy.
type CreateFineConfigRequest struct {
	Name           string `json:"name" validate:"required,max=200"`
	FinePerDay     int64  `json:"fine_per_day" validate:"required,gt=0"`
	GraceMinutes   int    `json:"grace_minutes" validate:"gte=0"`
	MaxFinePerItem *int64 `json:"max_fine_per_item" validate:"omitempty,gt=0"`
}

// CreateFineForReturn evaluates the active policy against a completed return
// and creates a fine when one is owed. Returns (nil, nil) when no policy is
// configured or nothing is owed.
func (s *FineService) CreateFineForReturn(ctx context.Context, record *domain.BorrowRecord, returnedAt time.Time) (*domain.Fine, error) {
	cfg, err := s.store.GetActiveFineConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("get active fine config: %w", err)
	}
	if cfg == nil {
		return nil, nil
	}

	assessment := domain.ComputeFine(record.DueDate, &returnedAt, cfg)
	if assessment.Amount <= 0 {
		return nil, nil
	}

	fineID, err := id.Generate("fine")
	if err != nil {
		return nil, fmt.Errorf("generate fine ID: %w", err)
	}

	fine := &domain.Fine{
		Record:         domain.Record{ID: fineID},
		MemberID:       record.StudentID,
		BorrowRecordID: record.ID,
		DaysOverdue:    assessment.DaysOverdue,
		FinePerDay:     cfg.FinePerDay,
		Amount:         assessment.Amount,
		Status:         domain.FinePending,
		ConfigName:     cfg.Name,
	}
	fine.InitTimestamps()

	if err := s.store.CreateFine(ctx, fine); err != nil {
		return nil, err
	}

	// Best-effort aggregate bump; the fines table stays authoritative.
	if err := s.store.AddFineTotals(ctx, fine.MemberID, fine.Amount, 0); err != nil {
		s.logger.Warn("Fine total update failed",
			"member_id", fine.MemberID,
			"fine_id", fine.ID,
			"error", err,
		)
	}

	s.logger.Info("Fine assessed",
		"fine_id", fine.ID,
		"member_id", fine.MemberID,
		"days_overdue", fine.DaysOverdue,
		"amount", fine.Amount,
	)
	return fine, nil
}

// PayFine applies a payment to a fine. Overpayment is capped at the
// remaining balance, never rejected. Returns the updated fine.
func (s *FineService) PayFine(ctx context.Context, fineID string, req PayFineRequest) (*domain.Fine, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	fine, err := s.store.GetFine(ctx, fineID)
	if err != nil {
		return nil, err
	}

	paid := fine.ApplyPayment(req.Amount)
	now := time.Now()
	fine.UpdatedAt = now

	if err := s.store.UpdateFinePayment(ctx, fine, now); err != nil {
		return nil, err
	}

	if paid > 0 {
		if err := s.store.AddFineTotals(ctx, fine.MemberID, -paid, paid); err != nil {
			s.logger.Warn("Fine total update failed",
				"member_id", fine.MemberID,
				"fine_id", fine.ID,
				"error", err,
			)
		}
	}

	s.logger.Info("Fine payment applied",
		"fine_id", fine.ID,
		"member_id", fine.MemberID,
		"paid", paid,
		"status", fine.Status,
	)
	return fine, nil
}

// GetFine retrieves one fine.
func (s *FineService) GetFine(ctx context.Context, fineID string) (*domain.Fine, error) {
	return s.store.GetFine(ctx, fineID)
}

// ListFines returns every fine, newest first.
func (s *FineService) ListFines(ctx context.Context) ([]*domain.Fine, error) {
	return s.store.ListFines(ctx)
}

// ListMemberFines returns a member's fines, optionally only unpaid ones.
func (s *FineService) ListMemberFines(ctx context.Context, memberID string, unpaidOnly bool) ([]*domain.Fine, error) {
	return s.store.ListFinesByMember(ctx, memberID, unpaidOnly)
}

// RecalculateMemberTotals rebuilds a member's denormalized fine aggregates
// from the ledger.
func (s *FineService) RecalculateMemberTotals(ctx context.Context, memberID string) error {
	return s.store.RecalculateFineTotals(ctx, memberID)
}

// CreateFineConfig registers a new policy. The newest active policy wins.
func (s *FineService) CreateFineConfig(ctx context.Context, req CreateFineConfigRequest) (*domain.FineConfig, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	configID, err := id.Generate("cfg")
	if err != nil {
		return nil, fmt.Errorf("generate config ID: %w", err)
	}

	cfg := &domain.FineConfig{
		Record:         domain.Record{ID: configID},
		Name:           req.Name,
		FinePerDay:     req.FinePerDay,
		GraceMinutes:   req.GraceMinutes,
		MaxFinePerItem: req.MaxFinePerItem,
		IsActive:       true,
	}
	cfg.InitTimestamps()

	if err := s.store.CreateFineConfig(ctx, cfg); err != nil {
		return nil, err
	}

	s.logger.Info("Fine policy created", "config_id", cfg.ID, "name", cfg.Name)
	return cfg, nil
}

// ListFineConfigs returns every policy, newest first.
func (s *FineService) ListFineConfigs(ctx context.Context) ([]*domain.FineConfig, error) {
	return s.store.ListFineConfigs(ctx)
}

// DeactivateFineConfig retires a policy. Existing fines keep their
// snapshotted values.
func (s *FineService) DeactivateFineConfig(ctx context.Context, configID string) error {
	return s.store.DeactivateFineConfig(ctx, configID)
}
