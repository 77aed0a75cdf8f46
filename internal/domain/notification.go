package domain

// Notification is an in-app message for a user. Email delivery of the same
// content is fire-and-forget; the persisted record is the source of truth.
type Notification struct {
	Record
	UserID  string `json:"user_id"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	IsRead  bool   `json:"is_read"`
}
