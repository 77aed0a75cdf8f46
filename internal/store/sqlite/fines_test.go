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

func fineFixtures(t *testing.T, s *Store) {
	t.Helper()
	borrowFixtures(t, s)
	mustCreateBorrow(t, s, "loan_1", "book_1", "user_student", time.Now().Add(-time.Hour))
}

func TestCreateFine_OnePerLoan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fineFixtures(t, s)

	f := &domain.Fine{
		Record:         newRecord("fine_1", time.Now()),
		MemberID:       "user_student",
		BorrowRecordID: "loan_1",
		DaysOverdue:    1,
		FinePerDay:     50,
		Amount:         50,
		Status:         domain.FinePending,
		ConfigName:     "default",
	}
	require.NoError(t, s.CreateFine(ctx, f))

	second := &domain.Fine{
		Record:         newRecord("fine_2", time.Now()),
		MemberID:       "user_student",
		BorrowRecordID: "loan_1",
		DaysOverdue:    1,
		FinePerDay:     50,
		Amount:         50,
		Status:         domain.FinePending,
	}
	err := s.CreateFine(ctx, second)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAlreadyExists)
}

func TestUpdateFinePayment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fineFixtures(t, s)

	f := &domain.Fine{
		Record:         newRecord("fine_1", time.Now()),
		MemberID:       "user_student",
		BorrowRecordID: "loan_1",
		DaysOverdue:    2,
		FinePerDay:     50,
		Amount:         100,
		Status:         domain.FinePending,
	}
	require.NoError(t, s.CreateFine(ctx, f))

	f.ApplyPayment(40)
	require.NoError(t, s.UpdateFinePayment(ctx, f, time.Now()))

	got, err := s.GetFine(ctx, "fine_1")
	require.NoError(t, err)
	assert.Equal(t, int64(40), got.PaidAmount)
	assert.Equal(t, domain.FinePartial, got.Status)

	got.ApplyPayment(1000)
	require.NoError(t, s.UpdateFinePayment(ctx, got, time.Now()))

	got, err = s.GetFine(ctx, "fine_1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.PaidAmount)
	assert.Equal(t, domain.FinePaid, got.Status)
}

func TestListFinesByMember_UnpaidOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fineFixtures(t, s)
	mustCreateBorrow(t, s, "loan_2", "book_1", "user_student", time.Now().Add(-time.Hour))

	unpaid := &domain.Fine{
		Record:         newRecord("fine_1", time.Now()),
		MemberID:       "user_student",
		BorrowRecordID: "loan_1",
		DaysOverdue:    1,
		FinePerDay:     50,
		Amount:         50,
		Status:         domain.FinePending,
	}
	require.NoError(t, s.CreateFine(ctx, unpaid))

	settled := &domain.Fine{
		Record:         newRecord("fine_2", time.Now()),
		MemberID:       "user_student",
		BorrowRecordID: "loan_2",
		DaysOverdue:    1,
		FinePerDay:     50,
		Amount:         50,
		PaidAmount:     50,
		Status:         domain.FinePaid,
	}
	require.NoError(t, s.CreateFine(ctx, settled))

	got, err := s.ListFinesByMember(ctx, "user_student", true)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "fine_1", got[0].ID)

	all, err := s.ListFinesByMember(ctx, "user_student", false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRecalculateFineTotals_FromFineRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fineFixtures(t, s)

	f := &domain.Fine{
		Record:         newRecord("fine_1", time.Now()),
		MemberID:       "user_student",
		BorrowRecordID: "loan_1",
		DaysOverdue:    3,
		FinePerDay:     50,
		Amount:         150,
		PaidAmount:     60,
		Status:         domain.FinePartial,
	}
	require.NoError(t, s.CreateFine(ctx, f))

	require.NoError(t, s.RecalculateFineTotals(ctx, "user_student"))

	got, err := s.GetUser(ctx, "user_student")
	require.NoError(t, err)
	assert.Equal(t, int64(90), got.TotalOutstandingFine)
	assert.Equal(t, int64(60), got.TotalPaidFine)
}
