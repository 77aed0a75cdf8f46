package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/errors"
	"github.com/openshelf/openshelf-server/internal/id"
	"github.com/openshelf/openshelf-server/internal/store/sqlite"
)

// PriorityService manages the waitlist for scarce books. It only creates and
// cancels requests; fulfillment belongs to the circulation return cascade.
type PriorityService struct {
	store  *sqlite.Store
	logger *slog.Logger
}

// NewPriorityService creates a new priority service.
func NewPriorityService(store *sqlite.Store, logger *slog.Logger) *PriorityService {
	return &PriorityService{store: store, logger: logger}
}

// CreateRequestInput contains a new queue entry.
type CreateRequestInput struct {
	BookID    string `json:"book_id" validate:"required"`
	StudentID string `json:"student_id" validate:"required"`
}

// RankedRequest pairs a queue entry with its 1-based positions in the global
// queue and in its book's queue.
type RankedRequest struct {
	Request    *domain.PriorityRequest `json:"request"`
	GlobalRank int                     `json:"global_rank"`
	BookRank   int                     `json:"book_rank"`
}

// CreateRequest puts a student in line for a book. A student holds at most
// one pending request per book.
func (s *PriorityService) CreateRequest(ctx context.Context, input CreateRequestInput) (*domain.PriorityRequest, error) {
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

	requestID, err := id.Generate("preq")
	if err != nil {
		return nil, fmt.Errorf("generate request ID: %w", err)
	}

	request := &domain.PriorityRequest{
		Record:        domain.Record{ID: requestID},
		BookID:        input.BookID,
		StudentID:     input.StudentID,
		PriorityScore: student.PriorityScore(),
		Status:        domain.RequestPending,
	}
	request.InitTimestamps()

	if err := s.store.CreatePriorityRequest(ctx, request); err != nil {
		return nil, err
	}

	s.logger.Info("Priority request created",
		"request_id", request.ID,
		"book_id", input.BookID,
		"student_id", input.StudentID,
		"score", request.PriorityScore,
	)
	return request, nil
}

// CancelRequest withdraws a pending request. Students can cancel their own
// requests; staff can cancel any.
func (s *PriorityService) CancelRequest(ctx context.Context, requestID string, actor *domain.User) error {
	request, err := s.store.GetPriorityRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if request.StudentID != actor.ID && !actor.IsStaff() {
		return errors.Forbidden("You can only cancel your own requests.")
	}

	if err := s.store.CancelRequest(ctx, requestID); err != nil {
		return err
	}

	s.logger.Info("Priority request cancelled", "request_id", requestID, "by", actor.ID)
	return nil
}

// BookQueue returns a book's pending requests in fulfillment order with
// 1-based ranks within that book.
func (s *PriorityService) BookQueue(ctx context.Context, bookID string) ([]*RankedRequest, error) {
	if _, err := s.store.GetBook(ctx, bookID); err != nil {
		return nil, err
	}

	global, err := s.store.ListAllPendingOrdered(ctx)
	if err != nil {
		return nil, err
	}

	var queue []*RankedRequest
	bookRank := 0
	for globalRank, r := range global {
		if r.BookID != bookID {
			continue
		}
		bookRank++
		queue = append(queue, &RankedRequest{
			Request:    r,
			GlobalRank: globalRank + 1,
			BookRank:   bookRank,
		})
	}
	return queue, nil
}

// GlobalQueue returns every pending request in fulfillment order with global
// and per-book ranks.
func (s *PriorityService) GlobalQueue(ctx context.Context) ([]*RankedRequest, error) {
	global, err := s.store.ListAllPendingOrdered(ctx)
	if err != nil {
		return nil, err
	}
	return rankAll(global), nil
}

// MyRequests returns a student's requests. Pending ones carry their current
// queue positions; fulfilled and cancelled ones have zero ranks.
func (s *PriorityService) MyRequests(ctx context.Context, studentID string) ([]*RankedRequest, error) {
	requests, err := s.store.ListRequestsByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	global, err := s.store.ListAllPendingOrdered(ctx)
	if err != nil {
		return nil, err
	}
	ranked := rankAll(global)
	byID := make(map[string]*RankedRequest, len(ranked))
	for _, r := range ranked {
		byID[r.Request.ID] = r
	}

	result := make([]*RankedRequest, 0, len(requests))
	for _, r := range requests {
		if pos, ok := byID[r.ID]; ok {
			result = append(result, pos)
			continue
		}
		result = append(result, &RankedRequest{Request: r})
	}
	return result, nil
}

// rankAll assigns global and per-book ranks to an already ordered pending
// set. Both rankings walk the same order, so a book's #1 is always the entry
// the next return will fulfill.
func rankAll(global []*domain.PriorityRequest) []*RankedRequest {
	perBook := make(map[string]int)
	ranked := make([]*RankedRequest, len(global))
	for i, r := range global {
		perBook[r.BookID]++
		ranked[i] = &RankedRequest{
			Request:    r,
			GlobalRank: i + 1,
			BookRank:   perBook[r.BookID],
		}
	}
	return ranked
}
