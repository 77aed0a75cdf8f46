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

func TestCreateUser_AndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &domain.User{
		Record:       newRecord("user_1", time.Now()),
		Name:         "Ada Lovelace",
		Email:        "Ada@Example.com",
		PasswordHash: "hash",
		Role:         domain.RoleStudent,
		IsApproved:   true,
		Tier:         domain.TierPremium,
	}
	require.NoError(t, s.CreateUser(ctx, u))

	got, err := s.GetUser(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, u.Name, got.Name)
	assert.Equal(t, u.Email, got.Email)
	assert.Equal(t, domain.RoleStudent, got.Role)
	assert.Equal(t, domain.TierPremium, got.Tier)
	assert.True(t, got.IsApproved)

	// Email lookup is case-insensitive.
	byEmail, err := s.GetUserByEmail(ctx, "ada@example.COM")
	require.NoError(t, err)
	assert.Equal(t, "user_1", byEmail.ID)
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &domain.User{
		Record: newRecord("user_1", time.Now()),
		Name:   "First",
		Email:  "same@example.com",
		Role:   domain.RoleStudent,
		Tier:   domain.TierBasic,
	}
	require.NoError(t, s.CreateUser(ctx, first))

	dup := &domain.User{
		Record: newRecord("user_2", time.Now()),
		Name:   "Second",
		Email:  "SAME@example.com",
		Role:   domain.RoleStudent,
		Tier:   domain.TierBasic,
	}
	err := s.CreateUser(ctx, dup)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAlreadyExists)
}

func TestGetUser_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetUser(context.Background(), "user_missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestUpdateUser_Approval(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &domain.User{
		Record: newRecord("user_1", time.Now()),
		Name:   "Student",
		Email:  "student@example.com",
		Role:   domain.RoleStudent,
		Tier:   domain.TierBasic,
	}
	require.NoError(t, s.CreateUser(ctx, u))

	now := time.Now()
	u.IsApproved = true
	u.ApprovedBy = "user_admin"
	u.ApprovedAt = &now
	u.Touch()
	require.NoError(t, s.UpdateUser(ctx, u))

	got, err := s.GetUser(ctx, "user_1")
	require.NoError(t, err)
	assert.True(t, got.IsApproved)
	assert.Equal(t, "user_admin", got.ApprovedBy)
	require.NotNil(t, got.ApprovedAt)
	assert.True(t, now.Equal(*got.ApprovedAt))
}

func TestAddFineTotals_AndRecalculate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &domain.User{
		Record: newRecord("user_1", time.Now()),
		Name:   "Member",
		Email:  "member@example.com",
		Role:   domain.RoleStudent,
		Tier:   domain.TierBasic,
	}
	require.NoError(t, s.CreateUser(ctx, u))

	require.NoError(t, s.AddFineTotals(ctx, "user_1", 150, 0))
	require.NoError(t, s.AddFineTotals(ctx, "user_1", -50, 50))

	got, err := s.GetUser(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.TotalOutstandingFine)
	assert.Equal(t, int64(50), got.TotalPaidFine)

	// Recalculation derives totals from the fines table; with no fine rows
	// the drifted aggregates reset to zero.
	require.NoError(t, s.RecalculateFineTotals(ctx, "user_1"))
	got, err = s.GetUser(ctx, "user_1")
	require.NoError(t, err)
	assert.Zero(t, got.TotalOutstandingFine)
	assert.Zero(t, got.TotalPaidFine)
}

func TestListUsers_RoleFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, spec := range []struct {
		id   string
		role domain.Role
	}{
		{"user_a", domain.RoleAdmin},
		{"user_b", domain.RoleStudent},
		{"user_c", domain.RoleStudent},
	} {
		u := &domain.User{
			Record: newRecord(spec.id, time.Now().Add(time.Duration(i)*time.Millisecond)),
			Name:   spec.id,
			Email:  spec.id + "@example.com",
			Role:   spec.role,
			Tier:   domain.TierBasic,
		}
		require.NoError(t, s.CreateUser(ctx, u))
	}

	students, err := s.ListUsers(ctx, domain.RoleStudent)
	require.NoError(t, err)
	assert.Len(t, students, 2)

	all, err := s.ListUsers(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestListApprovedAdmins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	admin := &domain.User{
		Record:     newRecord("user_admin", time.Now()),
		Name:       "Admin",
		Email:      "admin@example.com",
		Role:       domain.RoleAdmin,
		IsApproved: true,
		Tier:       domain.TierBasic,
	}
	require.NoError(t, s.CreateUser(ctx, admin))

	pending := &domain.User{
		Record: newRecord("user_pending", time.Now()),
		Name:   "Pending Admin",
		Email:  "pending@example.com",
		Role:   domain.RoleAdmin,
		Tier:   domain.TierBasic,
	}
	require.NoError(t, s.CreateUser(ctx, pending))

	admins, err := s.ListApprovedAdmins(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "user_admin", admins[0].ID)
}
