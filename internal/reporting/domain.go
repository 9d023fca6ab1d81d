// internal/reporting/domain.go
package reporting

import (
	"time"

	"github.com/google/uuid"

	"shelfkeeper/internal/circulation"
	"shelfkeeper/internal/membership"
)

// PopularBooksLimit caps the popular books report.
const PopularBooksLimit = 10

// PopularBook is a book ranked by how often it has been borrowed.
type PopularBook struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Author      string    `json:"author" db:"author"`
	BorrowCount int       `json:"borrow_count" db:"borrow_count"`
}

// OverdueEntry is one open borrowing past its due date.
type OverdueEntry struct {
	Borrowing   *circulation.Borrowing `json:"borrowing"`
	User        *membership.User       `json:"user"`
	DaysOverdue int                    `json:"days_overdue"`
}

// UserHistory is every borrowing a user has made, newest first.
type UserHistory struct {
	User              *membership.User         `json:"user"`
	BorrowingHistory  []*circulation.Borrowing `json:"borrowing_history"`
	TotalBorrowed     int                      `json:"total_borrowed"`
	CurrentlyBorrowed int                      `json:"currently_borrowed"`
}

// ReservationView is a reservation joined with its user and book.
type ReservationView struct {
	ReservationID     uuid.UUID                     `json:"reservation_id" db:"reservation_id"`
	UserID            uuid.UUID                     `json:"user_id" db:"user_id"`
	UserName          string                        `json:"user_name" db:"user_name"`
	UserEmail         string                        `json:"user_email" db:"user_email"`
	ReservationStatus circulation.ReservationStatus `json:"reservation_status" db:"reservation_status"`
	ReservedAt        time.Time                     `json:"reserved_at" db:"reserved_at"`
	ExpiresAt         time.Time                     `json:"expires_at" db:"expires_at"`
	BookID            uuid.UUID                     `json:"book_id" db:"book_id"`
	BookTitle         string                        `json:"book_title" db:"book_title"`
}
