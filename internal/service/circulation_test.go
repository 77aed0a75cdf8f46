package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/errors"
)

func TestIssueBook_CreatesRecordAndDecrements(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	staff := env.createUser(t, "user_staff", domain.RoleLibrarian, true)
	student := env.createUser(t, "user_student", domain.RoleStudent, true)
	book := env.createBook(t, "The Hobbit", 3)

	record, err := env.circulation.IssueBook(ctx, IssueBookRequest{
		BookID:    book.ID,
		StudentID: student.ID,
	}, staff.ID)
	require.NoError(t, err)

	assert.Equal(t, book.ID, record.BookID)
	assert.Equal(t, student.ID, record.StudentID)
	assert.Equal(t, staff.ID, record.IssuedBy)
	assert.False(t, record.IsReturned)
	assert.True(t, record.DueDate.After(time.Now()))

	got, err := env.catalog.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AvailableCopies)

	// Loan receipt lands in the student's feed and outbox.
	feed, err := env.notifications.List(ctx, student.ID, false)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "Book Issued", feed[0].Subject)
	require.Len(t, env.mailer.Sent(), 1)
	assert.Equal(t, student.Email, env.mailer.Sent()[0].To)
}

func TestIssueBook_ConcurrentLastCopySingleWinner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	staff := env.createUser(t, "user_staff", domain.RoleLibrarian, true)
	book := env.createBook(t, "Contested", 1)

	const attempts = 4
	students := make([]*domain.User, attempts)
	for i := range students {
		students[i] = env.createUser(t, fmt.Sprintf("user_s%d", i), domain.RoleStudent, true)
	}

	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.circulation.IssueBook(ctx, IssueBookRequest{
				BookID:    book.ID,
				StudentID: students[i].ID,
			}, staff.ID)
		}()
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		}
	}
	assert.Equal(t, 1, winners)

	got, err := env.catalog.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableCopies)
}

func TestIssueBook_DurationMinutesSetsDueDate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	staff := env.createUser(t, "user_staff", domain.RoleLibrarian, true)
	student := env.createUser(t, "user_student", domain.RoleStudent, true)
	book := env.createBook(t, "Long Loan", 1)

	record, err := env.circulation.IssueBook(ctx, IssueBookRequest{
		BookID:          book.ID,
		StudentID:       student.ID,
		DurationMinutes: 60 * 24 * 14,
	}, staff.ID)
	require.NoError(t, err)

	expected := time.Now().Add(14 * 24 * time.Hour)
	assert.WithinDuration(t, expected, record.DueDate, time.Minute)
}

func TestIssueBook_NoCopiesAvailable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	staff := env.createUser(t, "user_staff", domain.RoleLibrarian, true)
	s1 := env.createUser(t, "user_s1", domain.RoleStudent, true)
	s2 := env.createUser(t, "user_s2", domain.RoleStudent, true)
	book := env.createBook(t, "Scarce", 1)

	_, err := env.circulation.IssueBook(ctx, IssueBookRequest{BookID: book.ID, StudentID: s1.ID}, staff.ID)
	require.NoError(t, err)

	_, err = env.circulation.IssueBook(ctx, IssueBookRequest{BookID: book.ID, StudentID: s2.ID}, staff.ID)
	assert.ErrorIs(t, err, errors.ErrBookUnavailable)
}

func TestIssueBook_LimitReached(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	staff := env.createUser(t, "user_staff", domain.RoleLibrarian, true)
	student := env.createUser(t, "user_student", domain.RoleStudent, true) // BASIC, limit 2

	for i, title := range []string{"One", "Two"} {
		book := env.createBook(t, title, 2)
		_, err := env.circulation.IssueBook(ctx, IssueBookRequest{BookID: book.ID, StudentID: student.ID}, staff.ID)
		require.NoError(t, err, "issue %d", i+1)
	}

	third := env.createBook(t, "Three", 2)
	_, err := env.circulation.IssueBook(ctx, IssueBookRequest{BookID: third.ID, StudentID: student.ID}, staff.ID)
	assert.ErrorIs(t, err, errors.ErrLimitReached)

	// The rejected issue must not leak a copy.
	got, err := env.catalog.GetBook(ctx, third.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AvailableCopies)
}

func TestIssueBook_PriorityBlocked(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	staff := env.createUser(t, "user_staff", domain.RoleLibrarian, true)
	s1 := env.createUser(t, "user_s1", domain.RoleStudent, true)
	s2 := env.createUser(t, "user_s2", domain.RoleStudent, true)
	book := env.createBook(t, "Contested", 1)

	_, err := env.priority.CreateRequest(ctx, CreateRequestInput{BookID: book.ID, StudentID: s1.ID})
	require.NoError(t, err)

	// A waiting queue blocks the direct path even while copies exist.
	_, err = env.circulation.IssueBook(ctx, IssueBookRequest{BookID: book.ID, StudentID: s2.ID}, staff.ID)
	assert.ErrorIs(t, err, errors.ErrPriorityBlocked)
}

func TestIssueBook_NotEligible(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	staff := env.createUser(t, "user_staff", domain.RoleLibrarian, true)
	pending := env.createUser(t, "user_pending", domain.RoleStudent, false)
	book := env.createBook(t, "Gated", 2)

	_, err := env.circulation.IssueBook(ctx, IssueBookRequest{BookID: book.ID, StudentID: pending.ID}, staff.ID)
	assert.ErrorIs(t, err, errors.ErrNotEligible)

	// Staff accounts cannot borrow either.
	_, err = env.circulation.IssueBook(ctx, IssueBookRequest{BookID: book.ID, StudentID: staff.ID}, staff.ID)
	assert.ErrorIs(t, err, errors.ErrNotEligible)
}

func TestReturnBook_SecondReturnRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	staff := env.createUser(t, "user_staff", domain.RoleLibrarian, true)
	student := env.createUser(t, "user_student", domain.RoleStudent, true)
	book := env.createBook(t, "Once", 1)

	record, err := env.circulation.IssueBook(ctx, IssueBookRequest{BookID: book.ID, StudentID: student.ID}, staff.ID)
	require.NoError(t, err)

	result, err := env.circulation.ReturnBook(ctx, record.ID)
	require.NoError(t, err)
	assert.True(t, result.Record.IsReturned)
	require.NotNil(t, result.Record.ReturnDate)

	_, err = env.circulation.ReturnBook(ctx, record.ID)
	assert.ErrorIs(t, err, errors.ErrAlreadyReturned)

	// The copy came back exactly once.
	got, err := env.catalog.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableCopies)
}

func TestReturnBook_CascadeFulfillsNextRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	staff := env.createUser(t, "user_staff", domain.RoleLibrarian, true)
	holder := env.createUser(t, "user_holder", domain.RoleStudent, true)
	waiter := env.createUser(t, "user_waiter", domain.RoleStudent, true)
	book := env.createBook(t, "Scarce", 1)

	record, err := env.circulation.IssueBook(ctx, IssueBookRequest{BookID: book.ID, StudentID: holder.ID}, staff.ID)
	require.NoError(t, err)

	request, err := env.priority.CreateRequest(ctx, CreateRequestInput{BookID: book.ID, StudentID: waiter.ID})
	require.NoError(t, err)

	result, err := env.circulation.ReturnBook(ctx, record.ID)
	require.NoError(t, err)

	require.NotNil(t, result.FulfilledRequest)
	assert.Equal(t, request.ID, result.FulfilledRequest.ID)
	assert.Equal(t, domain.RequestFulfilled, result.FulfilledRequest.Status)

	require.NotNil(t, result.FulfillmentRecord)
	assert.Equal(t, waiter.ID, result.FulfillmentRecord.StudentID)
	assert.Equal(t, request.ID, result.FulfillmentRecord.RequestID)

	// The freed copy went straight to the queue, not back on the shelf.
	got, err := env.catalog.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableCopies)

	stored, err := env.store.GetPriorityRequest(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestFulfilled, stored.Status)
}

func TestReturnBook_CascadeAtLimitConsumesSlot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	staff := env.createUser(t, "user_staff", domain.RoleLibrarian, true)
	holder := env.createUser(t, "user_holder", domain.RoleStudent, true)
	waiter := env.createUser(t, "user_waiter", domain.RoleStudent, true) // BASIC, limit 2
	book := env.createBook(t, "Scarce", 1)

	record, err := env.circulation.IssueBook(ctx, IssueBookRequest{BookID: book.ID, StudentID: holder.ID}, staff.ID)
	require.NoError(t, err)

	_, err = env.priority.CreateRequest(ctx, CreateRequestInput{BookID: book.ID, StudentID: waiter.ID})
	require.NoError(t, err)

	// Fill the waiter's limit before the copy frees up.
	for _, title := range []string{"Filler One", "Filler Two"} {
		filler := env.createBook(t, title, 1)
		_, err := env.circulation.IssueBook(ctx, IssueBookRequest{BookID: filler.ID, StudentID: waiter.ID}, staff.ID)
		require.NoError(t, err)
	}

	result, err := env.circulation.ReturnBook(ctx, record.ID)
	require.NoError(t, err)

	// The slot is consumed but no copy moves.
	require.NotNil(t, result.FulfilledRequest)
	assert.Equal(t, domain.RequestFulfilled, result.FulfilledRequest.Status)
	assert.Nil(t, result.FulfillmentRecord)

	got, err := env.catalog.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableCopies)

	// The queue is empty; the next return fulfills nobody.
	queue, err := env.priority.BookQueue(ctx, book.ID)
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestReturnBook_OverdueCreatesFine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	staff := env.createUser(t, "user_staff", domain.RoleLibrarian, true)
	student := env.createUser(t, "user_student", domain.RoleStudent, true)
	book := env.createBook(t, "Late", 1)
	env.activeFinePolicy(t, 50, 5, nil)

	pastDue := time.Now().Add(-36 * time.Hour)
	record, err := env.circulation.IssueBook(ctx, IssueBookRequest{
		BookID:    book.ID,
		StudentID: student.ID,
		DueDate:   &pastDue,
	}, staff.ID)
	require.NoError(t, err)

	result, err := env.circulation.ReturnBook(ctx, record.ID)
	require.NoError(t, err)

	require.NotNil(t, result.Fine)
	assert.Equal(t, 2, result.Fine.DaysOverdue) // 36h rounds up to 2 days
	assert.Equal(t, int64(100), result.Fine.Amount)
	assert.Equal(t, domain.FinePending, result.Fine.Status)
	assert.Equal(t, student.ID, result.Fine.MemberID)

	// Overdue notice follows the loan receipt.
	feed, err := env.notifications.List(ctx, student.ID, false)
	require.NoError(t, err)
	subjects := make([]string, len(feed))
	for i, n := range feed {
		subjects[i] = n.Subject
	}
	assert.Contains(t, subjects, "Overdue Fine")
}

func TestReturnBook_OnTimeNoFine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	staff := env.createUser(t, "user_staff", domain.RoleLibrarian, true)
	student := env.createUser(t, "user_student", domain.RoleStudent, true)
	book := env.createBook(t, "Punctual", 1)
	env.activeFinePolicy(t, 50, 5, nil)

	record, err := env.circulation.IssueBook(ctx, IssueBookRequest{BookID: book.ID, StudentID: student.ID}, staff.ID)
	require.NoError(t, err)

	result, err := env.circulation.ReturnBook(ctx, record.ID)
	require.NoError(t, err)
	assert.Nil(t, result.Fine)
}

func TestIssueBook_LowStockAlertsAdmins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.createUser(t, "user_admin", domain.RoleAdmin, true)
	staff := env.createUser(t, "user_staff", domain.RoleLibrarian, true)
	student := env.createUser(t, "user_student", domain.RoleStudent, true)
	book := env.createBook(t, "Popular", 3)

	_, err := env.circulation.IssueBook(ctx, IssueBookRequest{BookID: book.ID, StudentID: student.ID}, staff.ID)
	require.NoError(t, err)

	// 3 -> 2 hits the threshold.
	feed, err := env.notifications.List(ctx, admin.ID, false)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "Low Stock Alert", feed[0].Subject)
}
