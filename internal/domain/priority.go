package domain

// RequestStatus is the lifecycle state of a priority request.
type RequestStatus string

const (
	// RequestPending means the request is waiting in the queue.
	RequestPending RequestStatus = "PENDING"
	// RequestFulfilled means a freed copy was assigned to this request.
	// Terminal: a fulfilled request is never selected again.
	RequestFulfilled RequestStatus = "FULFILLED"
	// RequestCancelled means the requester withdrew. Terminal.
	RequestCancelled RequestStatus = "CANCELLED"
)

// PriorityRequest is a student's claim on the next freed copy of an
// out-of-stock book. A student holds at most one PENDING request per book.
type PriorityRequest struct {
	Record
	BookID        string        `json:"book_id"`
	StudentID     string        `json:"student_id"`
	PriorityScore int           `json:"priority_score"`
	Status        RequestStatus `json:"status"`
}

// ComparePriority orders queue entries: higher score first, then earlier
// creation time (FIFO among equals). Selection and rank queries must use the
// same order, so it lives here rather than in SQL alone.
func ComparePriority(a, b *PriorityRequest) int {
	if a.PriorityScore != b.PriorityScore {
		if a.PriorityScore > b.PriorityScore {
			return -1
		}
		return 1
	}
	if a.CreatedAt.Before(b.CreatedAt) {
		return -1
	}
	if a.CreatedAt.After(b.CreatedAt) {
		return 1
	}
	return 0
}
