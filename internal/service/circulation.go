package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openshelf/openshelf-server/internal/config"
	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/errors"
	"github.com/openshelf/openshelf-server/internal/id"
	"github.com/openshelf/openshelf-server/internal/store/sqlite"
)

// CirculationService runs the issue/return workflow. It is the only writer
// of inventory counters and loan state, so the circulation invariants
// (copies conserved, one fulfillment per freed copy, per-member limits) all
// live here.
type CirculationService struct {
	store         *sqlite.Store
	fines         *FineService
	notifications *NotificationService
	catalog       *CatalogService
	cfg           config.CirculationConfig
	logger        *slog.Logger
}

// NewCirculationService creates a new circulation service.
func NewCirculationService(
	store *sqlite.Store,
	fines *FineService,
	notifications *NotificationService,
	catalog *CatalogService,
	cfg config.CirculationConfig,
	logger *slog.Logger,
) *CirculationService {
	return &CirculationService{
		store:         store,
		fines:         fines,
		notifications: notifications,
		catalog:       catalog,
		cfg:           cfg,
		logger:        logger,
	}
}

// IssueBookRequest contains a direct issue from the circulation desk.
type IssueBookRequest struct {
	BookID    string `json:"book_id" validate:"required"`
	StudentID string `json:"student_id" validate:"required"`

	// DurationMinutes sets the loan length. Zero means the configured
	// default. Ignored when DueDate is set.
	DurationMinutes int `json:"duration_minutes" validate:"gte=0,lte=527040"`

	// DueDate overrides both DurationMinutes and the configured default.
	DueDate *time.Time `json:"due_date"`
}

// ReturnResult reports everything a completed return triggered.
type ReturnResult struct {
	Record *domain.BorrowRecord `json:"record"`

	// Fine is set when the return was overdue and a policy was active.
	Fine *domain.Fine `json:"fine,omitempty"`

	// FulfilledRequest and FulfillmentRecord are set when the freed copy
	// went to the priority queue instead of back on the shelf.
	FulfilledRequest  *domain.PriorityRequest `json:"fulfilled_request,omitempty"`
	FulfillmentRecord *domain.BorrowRecord    `json:"fulfillment_record,omitempty"`
}

// IssueBook issues a copy directly to a student. Fails with PriorityBlocked
// while the book has a waiting queue; those copies go through the queue.
func (s *CirculationService) IssueBook(ctx context.Context, req IssueBookRequest, issuedBy string) (*domain.BorrowRecord, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	book, err := s.store.GetBook(ctx, req.BookID)
	if err != nil {
		return nil, err
	}
	if !book.IsAvailable() {
		return nil, errors.ErrBookUnavailable
	}

	hasPending, err := s.store.HasPendingRequests(ctx, req.BookID)
	if err != nil {
		return nil, err
	}
	if hasPending {
		return nil, errors.ErrPriorityBlocked
	}

	student, err := s.store.GetUser(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}

	dueDate := time.Now().Add(s.cfg.DefaultLoanDuration)
	if req.DurationMinutes > 0 {
		dueDate = time.Now().Add(time.Duration(req.DurationMinutes) * time.Minute)
	}
	if req.DueDate != nil {
		dueDate = *req.DueDate
	}

	record, err := s.issueTo(ctx, book, student, issuedBy, dueDate, "")
	if err != nil {
		return nil, err
	}

	s.afterIssue(ctx, book.ID, student, record)
	return record, nil
}

// issueTo performs the guarded issue shared by the direct path and the
// fulfillment cascade: eligibility, limit check, atomic decrement, record
// creation with compensation.
func (s *CirculationService) issueTo(
	ctx context.Context,
	book *domain.Book,
	student *domain.User,
	issuedBy string,
	dueDate time.Time,
	requestID string,
) (*domain.BorrowRecord, error) {
	if !student.IsEligibleBorrower() {
		return nil, errors.ErrNotEligible
	}

	active, err := s.store.CountActiveBorrows(ctx, student.ID)
	if err != nil {
		return nil, err
	}
	limit := student.BorrowLimit()
	if active >= limit {
		return nil, errors.LimitReached(limit)
	}

	// The conditional decrement is the commit point: only one caller can
	// take the last copy.
	if err := s.store.DecrementAvailableCopies(ctx, book.ID); err != nil {
		return nil, err
	}

	recordID, err := id.Generate("loan")
	if err != nil {
		s.compensateDecrement(ctx, book.ID)
		return nil, fmt.Errorf("generate record ID: %w", err)
	}

	record := &domain.BorrowRecord{
		Record:    domain.Record{ID: recordID},
		BookID:    book.ID,
		StudentID: student.ID,
		IssuedBy:  issuedBy,
		DueDate:   dueDate,
		RequestID: requestID,
	}
	record.InitTimestamps()

	if err := s.store.CreateBorrowRecord(ctx, record); err != nil {
		s.compensateDecrement(ctx, book.ID)
		return nil, err
	}

	s.logger.Info("Book issued",
		"record_id", record.ID,
		"book_id", book.ID,
		"student_id", student.ID,
		"due_date", dueDate,
	)
	return record, nil
}

// compensateDecrement puts a copy back after a failed issue so the counter
// is not leaked.
func (s *CirculationService) compensateDecrement(ctx context.Context, bookID string) {
	if err := s.store.IncrementAvailableCopies(ctx, bookID); err != nil {
		s.logger.Error("Issue rollback failed, inventory counter off by one",
			"book_id", bookID,
			"error", err,
		)
	}
}

// afterIssue handles the best-effort side effects of a successful issue:
// loan receipt, low-stock alert, search index refresh.
func (s *CirculationService) afterIssue(ctx context.Context, bookID string, student *domain.User, record *domain.BorrowRecord) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		s.logger.Warn("Post-issue book lookup failed", "book_id", bookID, "error", err)
		return
	}

	if err := s.notifications.Notify(ctx, student, "Book Issued",
		fmt.Sprintf("%q has been issued to you. It is due back by %s.",
			book.Title, record.DueDate.Format(time.RFC1123)),
	); err != nil {
		s.logger.Warn("Loan receipt failed", "record_id", record.ID, "error", err)
	}

	if book.AvailableCopies <= s.cfg.LowStockThreshold {
		s.notifications.NotifyAdmins(ctx, "Low Stock Alert",
			fmt.Sprintf("%q is down to %d available copies (%d total).",
				book.Title, book.AvailableCopies, book.TotalCopies))
	}

	s.catalog.RefreshIndexEntry(ctx, bookID)
}

// ReturnBook completes a loan: marks it returned exactly once, puts the copy
// back, assesses any overdue fine, and runs the priority fulfillment
// cascade for the freed copy.
func (s *CirculationService) ReturnBook(ctx context.Context, recordID string) (*ReturnResult, error) {
	record, err := s.store.GetBorrowRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	returnedAt := time.Now()
	if err := s.store.MarkReturned(ctx, recordID, returnedAt); err != nil {
		return nil, err
	}
	record.IsReturned = true
	record.ReturnDate = &returnedAt
	record.UpdatedAt = returnedAt

	if err := s.store.IncrementAvailableCopies(ctx, record.BookID); err != nil {
		// A full shelf here means the counters drifted; the return itself
		// still stands.
		s.logger.Error("Return increment failed",
			"record_id", recordID,
			"book_id", record.BookID,
			"error", err,
		)
	}

	result := &ReturnResult{Record: record}

	// Fine assessment is isolated: a ledger failure never rolls back the
	// completed return.
	fine, err := s.fines.CreateFineForReturn(ctx, record, returnedAt)
	if err != nil {
		s.logger.Error("Fine assessment failed", "record_id", recordID, "error", err)
	} else if fine != nil {
		result.Fine = fine
		s.notifyFine(ctx, record.StudentID, fine)
	}

	s.runFulfillmentCascade(ctx, record.BookID, result)

	s.catalog.RefreshIndexEntry(ctx, record.BookID)

	s.logger.Info("Book returned",
		"record_id", recordID,
		"book_id", record.BookID,
		"fined", result.Fine != nil,
		"fulfilled", result.FulfilledRequest != nil,
	)
	return result, nil
}

func (s *CirculationService) notifyFine(ctx context.Context, studentID string, fine *domain.Fine) {
	student, err := s.store.GetUser(ctx, studentID)
	if err != nil {
		s.logger.Warn("Fine notification lookup failed", "student_id", studentID, "error", err)
		return
	}
	if err := s.notifications.Notify(ctx, student, "Overdue Fine",
		fmt.Sprintf("Your return was %d day(s) overdue. A fine of %d has been added to your account.",
			fine.DaysOverdue, fine.Amount),
	); err != nil {
		s.logger.Warn("Fine notification failed", "fine_id", fine.ID, "error", err)
	}
}

// runFulfillmentCascade hands the freed copy to the head of the priority
// queue. The claim is a conditional PENDING to FULFILLED flip, so two
// concurrent returns cannot fulfill the same request.
func (s *CirculationService) runFulfillmentCascade(ctx context.Context, bookID string, result *ReturnResult) {
	next, err := s.store.SelectNextPending(ctx, bookID)
	if err != nil {
		s.logger.Error("Queue selection failed", "book_id", bookID, "error", err)
		return
	}
	if next == nil {
		return
	}

	claimed, err := s.store.ClaimRequest(ctx, next.ID)
	if err != nil {
		s.logger.Error("Queue claim failed", "request_id", next.ID, "error", err)
		return
	}
	if !claimed {
		// Another return got there first; its cascade serves the queue.
		return
	}

	student, err := s.store.GetUser(ctx, next.StudentID)
	if err != nil {
		s.logger.Error("Fulfillment target lookup failed",
			"request_id", next.ID,
			"student_id", next.StudentID,
			"error", err,
		)
		if reopenErr := s.store.ReopenRequest(ctx, next.ID); reopenErr != nil {
			s.logger.Error("Queue reopen failed", "request_id", next.ID, "error", reopenErr)
		}
		return
	}

	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		s.logger.Error("Fulfillment book lookup failed", "book_id", bookID, "error", err)
		if reopenErr := s.store.ReopenRequest(ctx, next.ID); reopenErr != nil {
			s.logger.Error("Queue reopen failed", "request_id", next.ID, "error", reopenErr)
		}
		return
	}

	dueDate := time.Now().Add(s.cfg.DefaultLoanDuration)
	record, err := s.issueTo(ctx, book, student, "system", dueDate, next.ID)
	if err != nil {
		if errors.Is(err, errors.ErrLimitReached) || errors.Is(err, errors.ErrNotEligible) {
			// The slot is consumed: a member at their limit forfeits the
			// fulfillment rather than blocking the queue behind them.
			s.logger.Warn("Fulfillment target cannot borrow, queue slot consumed",
				"request_id", next.ID,
				"student_id", next.StudentID,
				"reason", err,
			)
			result.FulfilledRequest = next
			next.Status = domain.RequestFulfilled
			return
		}
		s.logger.Error("Fulfillment issue failed", "request_id", next.ID, "error", err)
		if reopenErr := s.store.ReopenRequest(ctx, next.ID); reopenErr != nil {
			s.logger.Error("Queue reopen failed", "request_id", next.ID, "error", reopenErr)
		}
		return
	}

	next.Status = domain.RequestFulfilled
	result.FulfilledRequest = next
	result.FulfillmentRecord = record

	if err := s.notifications.Notify(ctx, student, "Priority Request Fulfilled",
		fmt.Sprintf("%q is now available and has been issued to you. It is due back by %s.",
			book.Title, record.DueDate.Format(time.RFC1123)),
	); err != nil {
		s.logger.Warn("Fulfillment notification failed", "request_id", next.ID, "error", err)
	}

	s.logger.Info("Priority request fulfilled",
		"request_id", next.ID,
		"record_id", record.ID,
		"book_id", bookID,
		"student_id", student.ID,
	)
}

// ListStudentBorrows returns a student's loans.
func (s *CirculationService) ListStudentBorrows(ctx context.Context, studentID string, activeOnly bool) ([]*domain.BorrowRecord, error) {
	return s.store.ListBorrowsByStudent(ctx, studentID, activeOnly)
}

// ListBookBorrows returns a book's loan history.
func (s *CirculationService) ListBookBorrows(ctx context.Context, bookID string) ([]*domain.BorrowRecord, error) {
	return s.store.ListBorrowsByBook(ctx, bookID)
}

// ListOverdue returns all loans currently out past their due date.
func (s *CirculationService) ListOverdue(ctx context.Context) ([]*domain.BorrowRecord, error) {
	return s.store.ListOverdueBorrows(ctx, time.Now())
}

// GetBorrowRecord retrieves one loan.
func (s *CirculationService) GetBorrowRecord(ctx context.Context, recordID string) (*domain.BorrowRecord, error) {
	return s.store.GetBorrowRecord(ctx, recordID)
}
