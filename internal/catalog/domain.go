// internal/catalog/domain.go
package catalog

import (
	"time"

	"github.com/google/uuid"
)

// DefaultCategory is used when a book is created without one.
const DefaultCategory = "General"

// Status is derived from the copy counter and active reservations; it is
// never stored.
type Status string

const (
	StatusAvailable Status = "available"
	StatusReserved  Status = "reserved"
	StatusBorrowed  Status = "borrowed"
)

// DeriveStatus returns available when copies remain, reserved when the
// book has at least one active reservation, and borrowed otherwise.
func DeriveStatus(availableCopies int, hasActiveReservation bool) Status {
	switch {
	case availableCopies > 0:
		return StatusAvailable
	case hasActiveReservation:
		return StatusReserved
	default:
		return StatusBorrowed
	}
}

// Book is a catalog title with its copy counters.
type Book struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	Category        string    `json:"category"`
	ISBN            *string   `json:"isbn"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
	Status          Status    `json:"status"`
	Description     *string   `json:"description"`
	CreatedAt       time.Time `json:"created_at"`
}

// OutCopies is the number of copies held by active reservations or open
// borrowings.
func (b *Book) OutCopies() int {
	return b.TotalCopies - b.AvailableCopies
}

// NewBook carries the fields accepted when adding a book.
type NewBook struct {
	Title       string
	Author      string
	Category    string
	ISBN        *string
	TotalCopies int
	Description *string
}

// BookUpdate carries optional changes; nil fields are left untouched.
type BookUpdate struct {
	Title       *string
	Author      *string
	Category    *string
	ISBN        *string
	TotalCopies *int
	Description *string
}

// Filter narrows ListBooks. Search matches title or author, Author is a
// substring match, Category is exact.
type Filter struct {
	Search   string
	Category string
	Author   string
}
