package domain

import "time"

// Role represents the user's permission level in the system.
type Role string

const (
	// RoleAdmin grants full administrative access.
	RoleAdmin Role = "ADMIN"
	// RoleLibrarian grants circulation-desk access: issuing, returns, queues.
	RoleLibrarian Role = "LIBRARIAN"
	// RoleStudent grants borrowing access once the account is approved.
	RoleStudent Role = "STUDENT"
)

// MembershipTier determines a member's default borrowing limit.
type MembershipTier string

const (
	// TierBasic is the default tier for new registrations.
	TierBasic MembershipTier = "BASIC"
	// TierPremium raises the simultaneous borrowing limit.
	TierPremium MembershipTier = "PREMIUM"
)

// Default simultaneous-loan limits per tier.
const (
	BasicBorrowLimit   = 2
	PremiumBorrowLimit = 5
)

// User represents an account in the system. Students borrow; librarians and
// admins issue and manage.
type User struct {
	Record
	Name         string         `json:"name"`
	Email        string         `json:"email"`
	PasswordHash string         `json:"password_hash,omitempty"` // Stored hashed, filter from API responses
	Role         Role           `json:"role"`
	IsApproved   bool           `json:"is_approved"`
	ApprovedBy   string         `json:"approved_by,omitempty"`
	ApprovedAt   *time.Time     `json:"approved_at,omitempty"`
	Tier         MembershipTier `json:"membership_tier"`

	// MaxBorrowLimit caps simultaneous active loans. Zero means "use the
	// tier default"; admins may set a per-user override.
	MaxBorrowLimit int `json:"max_borrow_limit,omitempty"`

	// Denormalized fine totals, maintained best-effort alongside Fine
	// mutations. RecalculateMemberTotals corrects any drift.
	TotalOutstandingFine int64 `json:"total_outstanding_fine"`
	TotalPaidFine        int64 `json:"total_paid_fine"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// IsAdmin returns true if the user has administrative privileges.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsStaff returns true if the user may operate the circulation desk.
func (u *User) IsStaff() bool {
	return u.Role == RoleAdmin || u.Role == RoleLibrarian
}

// IsEligibleBorrower returns true if the user is an approved student.
// Only approved students may borrow books or join priority queues.
func (u *User) IsEligibleBorrower() bool {
	return u.Role == RoleStudent && u.IsApproved
}

// BorrowLimit returns the member's effective simultaneous-loan cap:
// the per-user override when set, otherwise the tier default.
func (u *User) BorrowLimit() int {
	if u.MaxBorrowLimit > 0 {
		return u.MaxBorrowLimit
	}
	if u.Tier == TierPremium {
		return PremiumBorrowLimit
	}
	return BasicBorrowLimit
}

// PriorityScore ranks the user in priority queues. Higher is served first.
// Role-based for now; seniority or tier factors can be added here.
func (u *User) PriorityScore() int {
	switch u.Role {
	case RoleLibrarian:
		return 100
	case RoleStudent:
		return 50
	default:
		return 0
	}
}
