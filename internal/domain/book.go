package domain

// Book is an inventory record for a title. TotalCopies only changes through
// an explicit restock; AvailableCopies is mutated only by issue (decrement)
// and return (increment), and the store keeps 0 <= available <= total.
type Book struct {
	Record
	Title           string `json:"title"`
	Author          string `json:"author,omitempty"`
	Category        string `json:"category,omitempty"`
	ISBN            string `json:"isbn,omitempty"`
	TotalCopies     int    `json:"total_copies"`
	AvailableCopies int    `json:"available_copies"`
}

// IsAvailable returns true if at least one copy is on the shelf.
func (b *Book) IsAvailable() bool {
	return b.AvailableCopies > 0
}

// CopiesOnLoan returns the number of copies currently issued.
func (b *Book) CopiesOnLoan() int {
	return b.TotalCopies - b.AvailableCopies
}
