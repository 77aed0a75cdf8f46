package domain

import (
	"math"
	"time"
)

// FineStatus is the payment state of a fine.
type FineStatus string

const (
	// FinePending means nothing has been paid yet.
	FinePending FineStatus = "PENDING"
	// FinePartial means some but not all of the amount has been paid.
	FinePartial FineStatus = "PARTIAL"
	// FinePaid means the fine is settled in full.
	FinePaid FineStatus = "PAID"
)

// Fine is an overdue penalty attached to a returned borrow record. At most
// one fine is created per record. FinePerDay and ConfigName snapshot the
// policy at creation time so later policy edits never alter historical fines.
type Fine struct {
	Record
	MemberID       string     `json:"member_id"`
	BorrowRecordID string     `json:"borrow_record_id"`
	DaysOverdue    int        `json:"days_overdue"`
	FinePerDay     int64      `json:"fine_per_day"`
	Amount         int64      `json:"amount"`
	PaidAmount     int64      `json:"paid_amount"`
	Status         FineStatus `json:"status"`
	ConfigName     string     `json:"config_name,omitempty"`
}

// Remaining returns the unpaid balance.
func (f *Fine) Remaining() int64 {
	return f.Amount - f.PaidAmount
}

// ApplyPayment applies up to amountToPay against the remaining balance and
// updates the status. Overpayment is capped, not rejected. Returns the
// amount actually applied.
func (f *Fine) ApplyPayment(amountToPay int64) int64 {
	pay := min(f.Remaining(), amountToPay)
	if pay < 0 {
		pay = 0
	}
	f.PaidAmount += pay
	if f.PaidAmount >= f.Amount {
		f.Status = FinePaid
	} else {
		f.Status = FinePartial
	}
	return pay
}

// FineConfig is an overdue-fine policy. The most recently created active
// config is the one in effect; older rows are kept for the audit trail.
type FineConfig struct {
	Record
	Name       string `json:"name"`
	FinePerDay int64  `json:"fine_per_day"`

	// GraceMinutes is the penalty-free window after the due date. The
	// reference deployment runs minute-granularity loans, so the default is
	// 5 minutes; day-granularity installs configure this accordingly.
	GraceMinutes int `json:"grace_minutes"`

	// MaxFinePerItem caps the fine for a single loan when set.
	MaxFinePerItem *int64 `json:"max_fine_per_item,omitempty"`

	IsActive bool `json:"is_active"`
}

// FineAssessment is the result of evaluating the fine policy for a return.
type FineAssessment struct {
	DaysOverdue int   `json:"days_overdue"`
	Amount      int64 `json:"amount"`
}

// ComputeFine evaluates the overdue penalty for a return. Pure and
// deterministic: no clock reads, no I/O, so fines can be recomputed for
// auditing.
//
// Returns on or before the due date owe nothing. Otherwise the overdue
// duration is rounded up to whole minutes, the grace window is subtracted,
// and any partial day counts as a full day.
func ComputeFine(dueDate time.Time, returnedAt *time.Time, cfg *FineConfig) FineAssessment {
	if returnedAt == nil || !returnedAt.After(dueDate) {
		return FineAssessment{}
	}

	rawMinutes := int(math.Ceil(returnedAt.Sub(dueDate).Minutes()))
	minutesOverdue := rawMinutes - cfg.GraceMinutes
	if minutesOverdue < 0 {
		minutesOverdue = 0
	}

	daysOverdue := int(math.Ceil(float64(minutesOverdue) / (24 * 60)))
	amount := int64(daysOverdue) * cfg.FinePerDay

	if cfg.MaxFinePerItem != nil && amount > *cfg.MaxFinePerItem {
		amount = *cfg.MaxFinePerItem
	}

	return FineAssessment{DaysOverdue: daysOverdue, Amount: amount}
}
