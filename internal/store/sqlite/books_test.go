package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/errors"
)

func mustCreateBook(t *testing.T, s *Store, id string, total, available int) *domain.Book {
	t.Helper()
	b := &domain.Book{
		Record:          newRecord(id, time.Now()),
		Title:           "Title " + id,
		Author:          "Author",
		Category:        "Fiction",
		TotalCopies:     total,
		AvailableCopies: available,
	}
	require.NoError(t, s.CreateBook(context.Background(), b))
	return b
}

func mustCreateUser(t *testing.T, s *Store, id string, role domain.Role) *domain.User {
	t.Helper()
	u := &domain.User{
		Record:     newRecord(id, time.Now()),
		Name:       "User " + id,
		Email:      id + "@example.com",
		Role:       role,
		IsApproved: true,
		Tier:       domain.TierBasic,
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func TestCreateBook_AndGet(t *testing.T) {
	s := newTestStore(t)
	mustCreateBook(t, s, "book_1", 3, 3)

	got, err := s.GetBook(context.Background(), "book_1")
	require.NoError(t, err)
	assert.Equal(t, "Title book_1", got.Title)
	assert.Equal(t, 3, got.TotalCopies)
	assert.Equal(t, 3, got.AvailableCopies)
}

func TestDecrementAvailableCopies_LastCopy(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateBook(t, s, "book_1", 1, 1)

	require.NoError(t, s.DecrementAvailableCopies(ctx, "book_1"))

	// The shelf is empty now; a second taker loses.
	err := s.DecrementAvailableCopies(ctx, "book_1")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrBookUnavailable)

	got, err := s.GetBook(ctx, "book_1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableCopies)
}

func TestDecrementAvailableCopies_MissingBook(t *testing.T) {
	s := newTestStore(t)

	err := s.DecrementAvailableCopies(context.Background(), "book_missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestIncrementAvailableCopies_NeverExceedsTotal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateBook(t, s, "book_1", 2, 1)

	require.NoError(t, s.IncrementAvailableCopies(ctx, "book_1"))

	err := s.IncrementAvailableCopies(ctx, "book_1")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConflict)

	got, err := s.GetBook(ctx, "book_1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.AvailableCopies)
}

func TestRestockBook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateBook(t, s, "book_1", 2, 0)

	require.NoError(t, s.RestockBook(ctx, "book_1", 3))

	got, err := s.GetBook(ctx, "book_1")
	require.NoError(t, err)
	assert.Equal(t, 5, got.TotalCopies)
	assert.Equal(t, 3, got.AvailableCopies)
}

func TestDeleteBook_BlockedByActiveLoan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateBook(t, s, "book_1", 1, 0)
	mustCreateUser(t, s, "user_student", domain.RoleStudent)
	mustCreateUser(t, s, "user_staff", domain.RoleLibrarian)

	rec := &domain.BorrowRecord{
		Record:    newRecord("loan_1", time.Now()),
		BookID:    "book_1",
		StudentID: "user_student",
		IssuedBy:  "user_staff",
		DueDate:   time.Now().Add(time.Hour),
	}
	require.NoError(t, s.CreateBorrowRecord(ctx, rec))

	err := s.DeleteBook(ctx, "book_1")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConflict)

	// Once the copy is back, deletion goes through.
	require.NoError(t, s.MarkReturned(ctx, "loan_1", time.Now()))
	require.NoError(t, s.DeleteBook(ctx, "book_1"))

	_, err = s.GetBook(ctx, "book_1")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestListLowStockBooks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateBook(t, s, "book_low", 5, 1)
	mustCreateBook(t, s, "book_edge", 5, 2)
	mustCreateBook(t, s, "book_ok", 5, 4)

	low, err := s.ListLowStockBooks(ctx, 2)
	require.NoError(t, err)
	require.Len(t, low, 2)
	assert.Equal(t, "book_low", low[0].ID)
	assert.Equal(t, "book_edge", low[1].ID)
}

func TestUpdateBook_DoesNotTouchCounters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	b := mustCreateBook(t, s, "book_1", 3, 1)

	b.Title = "Renamed"
	b.TotalCopies = 99 // Ignored; counters change only through counter methods.
	b.Touch()
	require.NoError(t, s.UpdateBook(ctx, b))

	got, err := s.GetBook(ctx, "book_1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, 3, got.TotalCopies)
	assert.Equal(t, 1, got.AvailableCopies)
}
