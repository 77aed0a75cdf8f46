package domain

import "time"

// BorrowRecord tracks one copy of a book issued to a student. It is created
// at issue time and mutated exactly once, at return time. Records are never
// deleted; they are the audit trail the invariant checks rely on.
type BorrowRecord struct {
	Record
	BookID     string     `json:"book_id"`
	StudentID  string     `json:"student_id"`
	IssuedBy   string     `json:"issued_by"`
	DueDate    time.Time  `json:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty"`
	IsReturned bool       `json:"is_returned"`

	// RequestID links back to the reservation that produced this loan, when
	// the copy was issued through the priority queue.
	RequestID string `json:"request_id,omitempty"`
}

// IsOverdue returns true if the loan is still out past its due date.
func (r *BorrowRecord) IsOverdue(now time.Time) bool {
	return !r.IsReturned && now.After(r.DueDate)
}
