package domain

import (
	"testing"
	"time"
)

func cfgWith(perDay int64, graceMinutes int, maxPerItem *int64) *FineConfig {
	return &FineConfig{
		Name:           "Default",
		FinePerDay:     perDay,
		GraceMinutes:   graceMinutes,
		MaxFinePerItem: maxPerItem,
		IsActive:       true,
	}
}

func TestComputeFine(t *testing.T) {
	due := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cap200 := int64(200)

	tests := []struct {
		name       string
		returnedAt *time.Time
		cfg        *FineConfig
		wantDays   int
		wantAmount int64
	}{
		{
			name:       "not yet returned",
			returnedAt: nil,
			cfg:        cfgWith(50, 5, nil),
		},
		{
			name:       "returned exactly on due date",
			returnedAt: timePtr(due),
			cfg:        cfgWith(50, 5, nil),
		},
		{
			name:       "returned early",
			returnedAt: timePtr(due.Add(-time.Hour)),
			cfg:        cfgWith(50, 5, nil),
		},
		{
			name:       "within grace window",
			returnedAt: timePtr(due.Add(4 * time.Minute)),
			cfg:        cfgWith(50, 5, nil),
		},
		{
			name:       "one minute past grace counts as one day",
			returnedAt: timePtr(due.Add(6 * time.Minute)),
			cfg:        cfgWith(50, 5, nil),
			wantDays:   1,
			wantAmount: 50,
		},
		{
			name:       "partial second rounds up to a minute",
			returnedAt: timePtr(due.Add(5*time.Minute + time.Second)),
			cfg:        cfgWith(50, 5, nil),
			wantDays:   1,
			wantAmount: 50,
		},
		{
			name:       "partial day rounds up",
			returnedAt: timePtr(due.Add(25 * time.Hour)),
			cfg:        cfgWith(50, 5, nil),
			wantDays:   2,
			wantAmount: 100,
		},
		{
			name:       "max per item caps the amount",
			returnedAt: timePtr(due.Add(10 * 24 * time.Hour)),
			cfg:        cfgWith(50, 5, &cap200),
			wantDays:   10,
			wantAmount: 200,
		},
		{
			name:       "zero grace fines immediately",
			returnedAt: timePtr(due.Add(time.Minute)),
			cfg:        cfgWith(50, 0, nil),
			wantDays:   1,
			wantAmount: 50,
		},
		{
			name:       "day-granularity grace",
			returnedAt: timePtr(due.Add(23 * time.Hour)),
			cfg:        cfgWith(50, 24*60, nil),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeFine(due, tt.returnedAt, tt.cfg)
			if got.DaysOverdue != tt.wantDays {
				t.Errorf("DaysOverdue: got %d, want %d", got.DaysOverdue, tt.wantDays)
			}
			if got.Amount != tt.wantAmount {
				t.Errorf("Amount: got %d, want %d", got.Amount, tt.wantAmount)
			}
		})
	}
}

func TestComputeFine_Deterministic(t *testing.T) {
	due := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ret := due.Add(3 * 24 * time.Hour)
	cfg := cfgWith(25, 5, nil)

	first := ComputeFine(due, &ret, cfg)
	for i := 0; i < 10; i++ {
		if got := ComputeFine(due, &ret, cfg); got != first {
			t.Fatalf("run %d: got %+v, want %+v", i, got, first)
		}
	}
}

func TestFine_ApplyPayment(t *testing.T) {
	tests := []struct {
		name        string
		fine        Fine
		pay         int64
		wantApplied int64
		wantPaid    int64
		wantStatus  FineStatus
	}{
		{
			name:        "partial payment",
			fine:        Fine{Amount: 100, Status: FinePending},
			pay:         40,
			wantApplied: 40,
			wantPaid:    40,
			wantStatus:  FinePartial,
		},
		{
			name:        "exact payment settles",
			fine:        Fine{Amount: 100, Status: FinePending},
			pay:         100,
			wantApplied: 100,
			wantPaid:    100,
			wantStatus:  FinePaid,
		},
		{
			name:        "overpayment is capped",
			fine:        Fine{Amount: 100, Status: FinePending},
			pay:         150,
			wantApplied: 100,
			wantPaid:    100,
			wantStatus:  FinePaid,
		},
		{
			name:        "payment on settled fine applies nothing",
			fine:        Fine{Amount: 100, PaidAmount: 100, Status: FinePaid},
			pay:         50,
			wantApplied: 0,
			wantPaid:    100,
			wantStatus:  FinePaid,
		},
		{
			name:        "second partial completes",
			fine:        Fine{Amount: 100, PaidAmount: 60, Status: FinePartial},
			pay:         40,
			wantApplied: 40,
			wantPaid:    100,
			wantStatus:  FinePaid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applied := tt.fine.ApplyPayment(tt.pay)
			if applied != tt.wantApplied {
				t.Errorf("applied: got %d, want %d", applied, tt.wantApplied)
			}
			if tt.fine.PaidAmount != tt.wantPaid {
				t.Errorf("PaidAmount: got %d, want %d", tt.fine.PaidAmount, tt.wantPaid)
			}
			if tt.fine.Status != tt.wantStatus {
				t.Errorf("Status: got %s, want %s", tt.fine.Status, tt.wantStatus)
			}
		})
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
