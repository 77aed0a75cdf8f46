package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/errors"
	"github.com/openshelf/openshelf-server/internal/id"
	"github.com/openshelf/openshelf-server/internal/store/sqlite"
)

// RequestService runs the request-then-approve borrowing flow: a student asks
// for a book, staff approve or reject, and approval issues the copy through
// the circulation service with the loan linked back to the request.
type RequestService struct {
	store         *sqlite.Store
	circulation   *CirculationService
	notifications *NotificationService
	logger        *slog.Logger
}

// NewRequestService creates a new borrow request service.
func NewRequestService(
	store *sqlite.Store,
	circulation *CirculationService,
	notifications *NotificationService,
	logger *slog.Logger,
) *RequestService {
	return &RequestService{
		store:         store,
		circulation:   circulation,
		notifications: notifications,
		logger:        logger,
	}
}

// CreateBorrowRequestInput contains a new borrow request.
type CreateBorrowRequestInput struct {
	BookID    string `json:"book_id" validate:"required"`
	StudentID string `json:"student_id" validate:"required"`
}

// BorrowRequestView pairs a request with whether a loan was issued from it.
type BorrowRequestView struct {
	Request   *domain.BorrowRequest `json:"request"`
	WasIssued bool                  `json:"was_issued"`
}

// ApprovalResult reports an approved request and the loan it produced.
type ApprovalResult struct {
	Request *domain.BorrowRequest `json:"request"`
	Record  *domain.BorrowRecord  `json:"record"`
}

// CreateRequest files a student's ask for a book. Open requests count
// against the borrow limit together with active loans, so a student cannot
// queue up more books than they could ever hold.
func (s *RequestService) CreateRequest(ctx context.Context, input CreateBorrowRequestInput) (*domain.BorrowRequest, error) {
	if err := validate.Validate(input); err != nil {
		return nil, err
	}

	if _, err := s.store.GetBook(ctx, input.BookID); err != nil {
		return nil, err
	}

	student, err := s.store.GetUser(ctx, input.StudentID)
	if err != nil {
		return nil, err
	}
	if !student.IsEligibleBorrower() {
		return nil, errors.ErrNotEligible
	}

	active, err := s.store.CountActiveBorrows(ctx, student.ID)
	if err != nil {
		return nil, err
	}
	open, err := s.store.CountOpenBorrowRequests(ctx, student.ID)
	if err != nil {
		return nil, err
	}
	limit := student.BorrowLimit()
	if active+open >= limit {
		return nil, errors.QueueLimitReached(limit)
	}

	requestID, err := id.Generate("breq")
	if err != nil {
		return nil, fmt.Errorf("generate request ID: %w", err)
	}

	request := &domain.BorrowRequest{
		Record:    domain.Record{ID: requestID},
		BookID:    input.BookID,
		StudentID: input.StudentID,
		Status:    domain.BorrowRequestPending,
	}
	request.InitTimestamps()

	if err := s.store.CreateBorrowRequest(ctx, request); err != nil {
		return nil, err
	}

	s.logger.Info("Borrow request created",
		"request_id", request.ID,
		"book_id", input.BookID,
		"student_id", input.StudentID,
	)
	return request, nil
}

// Approve issues the requested book to the student. The decision is an
// atomic PENDING to APPROVED flip, so two staff members cannot both approve
// the same request; a failed issue rolls the request back to PENDING.
func (s *RequestService) Approve(ctx context.Context, requestID, approvedBy string) (*ApprovalResult, error) {
	request, err := s.store.GetBorrowRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if err := s.store.DecideBorrowRequest(ctx, requestID, domain.BorrowRequestApproved); err != nil {
		return nil, err
	}
	request.Status = domain.BorrowRequestApproved
	request.Touch()

	record, err := s.issueApproved(ctx, request, approvedBy)
	if err != nil {
		request.Status = domain.BorrowRequestPending
		if reopenErr := s.store.ReopenBorrowRequest(ctx, requestID); reopenErr != nil {
			s.logger.Error("Request reopen failed", "request_id", requestID, "error", reopenErr)
		}
		return nil, err
	}

	s.logger.Info("Borrow request approved",
		"request_id", requestID,
		"record_id", record.ID,
		"by", approvedBy,
	)
	return &ApprovalResult{Request: request, Record: record}, nil
}

// issueApproved runs the guarded issue for an approved request. The priority
// queue keeps its claim on scarce copies: a book with waiting priority
// requests cannot be issued through this path either.
func (s *RequestService) issueApproved(ctx context.Context, request *domain.BorrowRequest, approvedBy string) (*domain.BorrowRecord, error) {
	book, err := s.store.GetBook(ctx, request.BookID)
	if err != nil {
		return nil, err
	}

	hasPending, err := s.store.HasPendingRequests(ctx, request.BookID)
	if err != nil {
		return nil, err
	}
	if hasPending {
		return nil, errors.ErrPriorityBlocked
	}

	student, err := s.store.GetUser(ctx, request.StudentID)
	if err != nil {
		return nil, err
	}

	dueDate := time.Now().Add(s.circulation.cfg.DefaultLoanDuration)
	record, err := s.circulation.issueTo(ctx, book, student, approvedBy, dueDate, request.ID)
	if err != nil {
		return nil, err
	}

	s.circulation.afterIssue(ctx, book.ID, student, record)
	return record, nil
}

// Reject declines a pending request and tells the student.
func (s *RequestService) Reject(ctx context.Context, requestID, rejectedBy string) (*domain.BorrowRequest, error) {
	request, err := s.store.GetBorrowRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if err := s.store.DecideBorrowRequest(ctx, requestID, domain.BorrowRequestRejected); err != nil {
		return nil, err
	}
	request.Status = domain.BorrowRequestRejected
	request.Touch()

	if student, err := s.store.GetUser(ctx, request.StudentID); err == nil {
		if err := s.notifications.Notify(ctx, student, "Request Rejected",
			"Your borrow request was declined. Contact the library desk for details.",
		); err != nil {
			s.logger.Warn("Rejection notification failed", "request_id", requestID, "error", err)
		}
	}

	s.logger.Info("Borrow request rejected", "request_id", requestID, "by", rejectedBy)
	return request, nil
}

// ListRequests returns every request, newest first.
func (s *RequestService) ListRequests(ctx context.Context) ([]*domain.BorrowRequest, error) {
	return s.store.ListBorrowRequests(ctx)
}

// MyRequests returns a student's requests with a flag for those that turned
// into loans.
func (s *RequestService) MyRequests(ctx context.Context, studentID string) ([]*BorrowRequestView, error) {
	requests, err := s.store.ListBorrowRequestsByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	records, err := s.store.ListBorrowsByStudent(ctx, studentID, false)
	if err != nil {
		return nil, err
	}
	issued := make(map[string]bool, len(records))
	for _, r := range records {
		if r.RequestID != "" {
			issued[r.RequestID] = true
		}
	}

	result := make([]*BorrowRequestView, 0, len(requests))
	for _, r := range requests {
		result = append(result, &BorrowRequestView{
			Request:   r,
			WasIssued: issued[r.ID],
		})
	}
	return result, nil
}
