package domain

// BorrowRequestStatus is the lifecycle state of a borrow request.
type BorrowRequestStatus string

const (
	// BorrowRequestPending means the request awaits a staff decision.
	BorrowRequestPending BorrowRequestStatus = "PENDING"
	// BorrowRequestApproved means staff approved and the book was issued.
	// Terminal.
	BorrowRequestApproved BorrowRequestStatus = "APPROVED"
	// BorrowRequestRejected means staff declined the request. Terminal.
	BorrowRequestRejected BorrowRequestStatus = "REJECTED"
)

// BorrowRequest is a student's ask to borrow an in-stock book, pending a
// staff decision. Approval issues the book and links the resulting loan back
// to the request. Out-of-stock books go through PriorityRequest instead.
type BorrowRequest struct {
	Record
	BookID    string              `json:"book_id"`
	StudentID string              `json:"student_id"`
	Status    BorrowRequestStatus `json:"status"`
}

// IsOpen returns true while the request still awaits a decision. Open
// requests count against the student's borrow limit alongside active loans.
func (r *BorrowRequest) IsOpen() bool {
	return r.Status == BorrowRequestPending
}
