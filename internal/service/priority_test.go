package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/errors"
)

func TestCreateRequest_SetsRoleScore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	student := env.createUser(t, "user_student", domain.RoleStudent, true)
	book := env.createBook(t, "Wanted", 1)

	request, err := env.priority.CreateRequest(ctx, CreateRequestInput{
		BookID:    book.ID,
		StudentID: student.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, 50, request.PriorityScore)
	assert.Equal(t, domain.RequestPending, request.Status)
}

func TestCreateRequest_DuplicatePending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	student := env.createUser(t, "user_student", domain.RoleStudent, true)
	book := env.createBook(t, "Wanted", 1)
	input := CreateRequestInput{BookID: book.ID, StudentID: student.ID}

	_, err := env.priority.CreateRequest(ctx, input)
	require.NoError(t, err)

	_, err = env.priority.CreateRequest(ctx, input)
	assert.ErrorIs(t, err, errors.ErrDuplicatePending)
}

func TestCreateRequest_RequiresApprovedStudent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pending := env.createUser(t, "user_pending", domain.RoleStudent, false)
	staff := env.createUser(t, "user_staff", domain.RoleLibrarian, true)
	book := env.createBook(t, "Wanted", 1)

	_, err := env.priority.CreateRequest(ctx, CreateRequestInput{BookID: book.ID, StudentID: pending.ID})
	assert.ErrorIs(t, err, errors.ErrNotEligible)

	_, err = env.priority.CreateRequest(ctx, CreateRequestInput{BookID: book.ID, StudentID: staff.ID})
	assert.ErrorIs(t, err, errors.ErrNotEligible)
}

func TestCreateRequest_UnknownBook(t *testing.T) {
	env := newTestEnv(t)

	student := env.createUser(t, "user_student", domain.RoleStudent, true)
	_, err := env.priority.CreateRequest(context.Background(), CreateRequestInput{
		BookID:    "book_missing",
		StudentID: student.ID,
	})
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestCancelRequest_OwnerAndStaffOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "user_owner", domain.RoleStudent, true)
	other := env.createUser(t, "user_other", domain.RoleStudent, true)
	staff := env.createUser(t, "user_staff", domain.RoleLibrarian, true)
	book := env.createBook(t, "Wanted", 1)

	first, err := env.priority.CreateRequest(ctx, CreateRequestInput{BookID: book.ID, StudentID: owner.ID})
	require.NoError(t, err)

	err = env.priority.CancelRequest(ctx, first.ID, other)
	assert.ErrorIs(t, err, errors.ErrForbidden)

	require.NoError(t, env.priority.CancelRequest(ctx, first.ID, owner))

	// Staff can cancel anyone's request.
	second, err := env.priority.CreateRequest(ctx, CreateRequestInput{BookID: book.ID, StudentID: owner.ID})
	require.NoError(t, err)
	require.NoError(t, env.priority.CancelRequest(ctx, second.ID, staff))
}

func TestBookQueue_Ranks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	s1 := env.createUser(t, "user_s1", domain.RoleStudent, true)
	s2 := env.createUser(t, "user_s2", domain.RoleStudent, true)
	s3 := env.createUser(t, "user_s3", domain.RoleStudent, true)
	wanted := env.createBook(t, "Wanted", 1)
	other := env.createBook(t, "Other", 1)

	// Equal scores, so creation order decides the queue.
	for _, s := range []*domain.User{s1, s2, s3} {
		_, err := env.priority.CreateRequest(ctx, CreateRequestInput{BookID: wanted.ID, StudentID: s.ID})
		require.NoError(t, err)
	}
	_, err := env.priority.CreateRequest(ctx, CreateRequestInput{BookID: other.ID, StudentID: s1.ID})
	require.NoError(t, err)

	queue, err := env.priority.BookQueue(ctx, wanted.ID)
	require.NoError(t, err)
	require.Len(t, queue, 3)

	assert.Equal(t, s1.ID, queue[0].Request.StudentID)
	assert.Equal(t, 1, queue[0].BookRank)
	assert.Equal(t, s2.ID, queue[1].Request.StudentID)
	assert.Equal(t, 2, queue[1].BookRank)
	assert.Equal(t, s3.ID, queue[2].Request.StudentID)
	assert.Equal(t, 3, queue[2].BookRank)
}

func TestMyRequests_GlobalAndBookRanks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	s1 := env.createUser(t, "user_s1", domain.RoleStudent, true)
	s2 := env.createUser(t, "user_s2", domain.RoleStudent, true)
	wanted := env.createBook(t, "Wanted", 1)
	other := env.createBook(t, "Other", 1)

	_, err := env.priority.CreateRequest(ctx, CreateRequestInput{BookID: wanted.ID, StudentID: s1.ID})
	require.NoError(t, err)
	_, err = env.priority.CreateRequest(ctx, CreateRequestInput{BookID: wanted.ID, StudentID: s2.ID})
	require.NoError(t, err)
	_, err = env.priority.CreateRequest(ctx, CreateRequestInput{BookID: other.ID, StudentID: s2.ID})
	require.NoError(t, err)

	mine, err := env.priority.MyRequests(ctx, s2.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)

	byBook := make(map[string]*RankedRequest, len(mine))
	for _, r := range mine {
		byBook[r.Request.BookID] = r
	}

	// Second in line for the contested book, second globally.
	assert.Equal(t, 2, byBook[wanted.ID].BookRank)
	assert.Equal(t, 2, byBook[wanted.ID].GlobalRank)
	// First in line for the uncontested one, third globally.
	assert.Equal(t, 1, byBook[other.ID].BookRank)
	assert.Equal(t, 3, byBook[other.ID].GlobalRank)
}

func TestMyRequests_NonPendingHaveNoRank(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	student := env.createUser(t, "user_student", domain.RoleStudent, true)
	book := env.createBook(t, "Wanted", 1)

	request, err := env.priority.CreateRequest(ctx, CreateRequestInput{BookID: book.ID, StudentID: student.ID})
	require.NoError(t, err)
	require.NoError(t, env.priority.CancelRequest(ctx, request.ID, student))

	mine, err := env.priority.MyRequests(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, domain.RequestCancelled, mine[0].Request.Status)
	assert.Zero(t, mine[0].GlobalRank)
	assert.Zero(t, mine[0].BookRank)
}

func TestGlobalQueue_HigherScoreFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	s1 := env.createUser(t, "user_s1", domain.RoleStudent, true)
	s2 := env.createUser(t, "user_s2", domain.RoleStudent, true)
	book := env.createBook(t, "Wanted", 1)

	first, err := env.priority.CreateRequest(ctx, CreateRequestInput{BookID: book.ID, StudentID: s1.ID})
	require.NoError(t, err)

	// A later but higher-scored request jumps the queue.
	now := time.Now()
	boosted := &domain.PriorityRequest{
		Record:        domain.Record{ID: "preq_boosted", CreatedAt: now, UpdatedAt: now},
		BookID:        book.ID,
		StudentID:     s2.ID,
		PriorityScore: 90,
		Status:        domain.RequestPending,
	}
	require.NoError(t, env.store.CreatePriorityRequest(ctx, boosted))

	queue, err := env.priority.GlobalQueue(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, boosted.ID, queue[0].Request.ID)
	assert.Equal(t, first.ID, queue[1].Request.ID)
}
