package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/errors"
)

func TestCreateBorrowRequest_Pending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	student := env.createUser(t, "user_student", domain.RoleStudent, true)
	book := env.createBook(t, "Dune", 2)

	request, err := env.requests.CreateRequest(ctx, CreateBorrowRequestInput{
		BookID:    book.ID,
		StudentID: student.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.BorrowRequestPending, request.Status)
	assert.True(t, request.IsOpen())

	// Filing a request does not touch the shelf.
	got, err := env.catalog.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AvailableCopies)
}

func TestCreateBorrowRequest_DuplicatePending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	student := env.createUser(t, "user_student", domain.RoleStudent, true)
	book := env.createBook(t, "Dune", 2)

	input := CreateBorrowRequestInput{BookID: book.ID, StudentID: student.ID}
	_, err := env.requests.CreateRequest(ctx, input)
	require.NoError(t, err)

	_, err = env.requests.CreateRequest(ctx, input)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDuplicatePending)
}

func TestCreateBorrowRequest_RequiresApprovedStudent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pending := env.createUser(t, "user_pending", domain.RoleStudent, false)
	staff := env.createUser(t, "user_staff", domain.RoleLibrarian, true)
	book := env.createBook(t, "Dune", 2)

	_, err := env.requests.CreateRequest(ctx, CreateBorrowRequestInput{
		BookID: book.ID, StudentID: pending.ID,
	})
	assert.ErrorIs(t, err, errors.ErrNotEligible)

	_, err = env.requests.CreateRequest(ctx, CreateBorrowRequestInput{
		BookID: book.ID, StudentID: staff.ID,
	})
	assert.ErrorIs(t, err, errors.ErrNotEligible)
}

func TestCreateBorrowRequest_OpenRequestsCountAgainstLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	staff := env.createUser(t, "user_staff", domain.RoleLibrarian, true)
	student := env.createUser(t, "user_student", domain.RoleStudent, true)
	borrowed := env.createBook(t, "Borrowed", 1)
	requested := env.createBook(t, "Requested", 1)
	blocked := env.createBook(t, "Blocked", 1)

	// BASIC limit is 2: one active loan plus one open request fills it.
	_, err := env.circulation.IssueBook(ctx, IssueBookRequest{
		BookID: borrowed.ID, StudentID: student.ID,
	}, staff.ID)
	require.NoError(t, err)
	_, err = env.requests.CreateRequest(ctx, CreateBorrowRequestInput{
		BookID: requested.ID, StudentID: student.ID,
	})
	require.NoError(t, err)

	_, err = env.requests.CreateRequest(ctx, CreateBorrowRequestInput{
		BookID: blocked.ID, StudentID: student.ID,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrLimitReached)
}

func TestApproveBorrowRequest_IssuesLinkedLoan(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	staff := env.createUser(t, "user_staff", domain.RoleLibrarian, true)
	student := env.createUser(t, "user_student", domain.RoleStudent, true)
	book := env.createBook(t, "Dune", 2)

	request, err := env.requests.CreateRequest(ctx, CreateBorrowRequestInput{
		BookID: book.ID, StudentID: student.ID,
	})
	require.NoError(t, err)

	result, err := env.requests.Approve(ctx, request.ID, staff.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.BorrowRequestApproved, result.Request.Status)
	require.NotNil(t, result.Record)
	assert.Equal(t, request.ID, result.Record.RequestID)
	assert.Equal(t, student.ID, result.Record.StudentID)
	assert.Equal(t, staff.ID, result.Record.IssuedBy)

	got, err := env.catalog.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableCopies)
}

func TestApproveBorrowRequest_OnlyOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	staff := env.createUser(t, "user_staff", domain.RoleLibrarian, true)
	student := env.createUser(t, "user_student", domain.RoleStudent, true)
	book := env.createBook(t, "Dune", 2)

	request, err := env.requests.CreateRequest(ctx, CreateBorrowRequestInput{
		BookID: book.ID, StudentID: student.ID,
	})
	require.NoError(t, err)

	_, err = env.requests.Approve(ctx, request.ID, staff.ID)
	require.NoError(t, err)

	// A second decision loses the conditional update and issues nothing.
	_, err = env.requests.Approve(ctx, request.ID, staff.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConflict)

	got, err := env.catalog.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableCopies)
}

func TestApproveBorrowRequest_UnavailableReopens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	staff := env.createUser(t, "user_staff", domain.RoleLibrarian, true)
	student := env.createUser(t, "user_student", domain.RoleStudent, true)
	other := env.createUser(t, "user_other", domain.RoleStudent, true)
	book := env.createBook(t, "Scarce", 1)

	request, err := env.requests.CreateRequest(ctx, CreateBorrowRequestInput{
		BookID: book.ID, StudentID: student.ID,
	})
	require.NoError(t, err)

	// The last copy walks out the door before the decision.
	_, err = env.circulation.IssueBook(ctx, IssueBookRequest{
		BookID: book.ID, StudentID: other.ID,
	}, staff.ID)
	require.NoError(t, err)

	_, err = env.requests.Approve(ctx, request.ID, staff.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrBookUnavailable)

	// The failed approval rolls back, so the request can be decided again.
	got, err := env.store.GetBorrowRequest(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BorrowRequestPending, got.Status)
}

func TestApproveBorrowRequest_PriorityQueueKeepsClaim(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	staff := env.createUser(t, "user_staff", domain.RoleLibrarian, true)
	student := env.createUser(t, "user_student", domain.RoleStudent, true)
	waiter := env.createUser(t, "user_waiter", domain.RoleStudent, true)
	book := env.createBook(t, "Contested", 1)

	request, err := env.requests.CreateRequest(ctx, CreateBorrowRequestInput{
		BookID: book.ID, StudentID: student.ID,
	})
	require.NoError(t, err)

	_, err = env.priority.CreateRequest(ctx, CreateRequestInput{
		BookID: book.ID, StudentID: waiter.ID,
	})
	require.NoError(t, err)

	_, err = env.requests.Approve(ctx, request.ID, staff.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrPriorityBlocked)

	got, err := env.store.GetBorrowRequest(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BorrowRequestPending, got.Status)
}

func TestRejectBorrowRequest_NotifiesStudent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	staff := env.createUser(t, "user_staff", domain.RoleLibrarian, true)
	student := env.createUser(t, "user_student", domain.RoleStudent, true)
	book := env.createBook(t, "Dune", 2)

	request, err := env.requests.CreateRequest(ctx, CreateBorrowRequestInput{
		BookID: book.ID, StudentID: student.ID,
	})
	require.NoError(t, err)

	rejected, err := env.requests.Reject(ctx, request.ID, staff.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BorrowRequestRejected, rejected.Status)

	feed, err := env.notifications.List(ctx, student.ID, false)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "Request Rejected", feed[0].Subject)

	// A rejected request frees the limit slot again.
	n, err := env.store.CountOpenBorrowRequests(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMyBorrowRequests_WasIssuedFlag(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	staff := env.createUser(t, "user_staff", domain.RoleLibrarian, true)
	student := env.createUser(t, "user_student", domain.RoleStudent, true)
	issuedBook := env.createBook(t, "Issued", 2)
	rejectedBook := env.createBook(t, "Declined", 2)

	issued, err := env.requests.CreateRequest(ctx, CreateBorrowRequestInput{
		BookID: issuedBook.ID, StudentID: student.ID,
	})
	require.NoError(t, err)
	declined, err := env.requests.CreateRequest(ctx, CreateBorrowRequestInput{
		BookID: rejectedBook.ID, StudentID: student.ID,
	})
	require.NoError(t, err)

	_, err = env.requests.Approve(ctx, issued.ID, staff.ID)
	require.NoError(t, err)
	_, err = env.requests.Reject(ctx, declined.ID, staff.ID)
	require.NoError(t, err)

	views, err := env.requests.MyRequests(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)

	byID := make(map[string]*BorrowRequestView, len(views))
	for _, v := range views {
		byID[v.Request.ID] = v
	}
	assert.True(t, byID[issued.ID].WasIssued)
	assert.False(t, byID[declined.ID].WasIssued)
}
