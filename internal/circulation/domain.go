// internal/circulation/domain.go
package circulation

import (
	"time"

	"github.com/google/uuid"
)

// ReservationStatus is the state of a reservation. Fulfilled and cancelled
// are terminal.
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationFulfilled ReservationStatus = "fulfilled"
	ReservationCancelled ReservationStatus = "cancelled"
)

var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationActive: {ReservationFulfilled, ReservationCancelled},
}

// CanTransition reports whether moving from s to next is legal.
func (s ReservationStatus) CanTransition(next ReservationStatus) bool {
	for _, allowed := range reservationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s ReservationStatus) Terminal() bool {
	return len(reservationTransitions[s]) == 0
}

// Reservation holds one copy of a book for a user until it is fulfilled by
// a borrowing, cancelled, or expires.
type Reservation struct {
	ID         uuid.UUID         `json:"id"`
	UserID     uuid.UUID         `json:"user_id"`
	BookID     uuid.UUID         `json:"book_id"`
	BookTitle  string            `json:"book_title"`
	Status     ReservationStatus `json:"status"`
	ReservedAt time.Time         `json:"reserved_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// BorrowingState is open until the book is returned.
type BorrowingState string

const (
	BorrowingOpen   BorrowingState = "open"
	BorrowingClosed BorrowingState = "closed"
)

// Borrowing is a copy checked out to a user.
type Borrowing struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	BookID     uuid.UUID  `json:"book_id"`
	BookTitle  string     `json:"book_title"`
	BorrowedAt time.Time  `json:"borrowed_at"`
	DueDate    time.Time  `json:"due_date"`
	ReturnedAt *time.Time `json:"returned_at"`
	IsOverdue  bool       `json:"is_overdue"`
}

// State derives the lifecycle state from ReturnedAt.
func (b *Borrowing) State() BorrowingState {
	if b.ReturnedAt != nil {
		return BorrowingClosed
	}
	return BorrowingOpen
}

// PastDue reports whether an open borrowing is past its due date at now.
func (b *Borrowing) PastDue(now time.Time) bool {
	return b.State() == BorrowingOpen && now.After(b.DueDate)
}

// DueSoonResult summarises a due-soon sweep.
type DueSoonResult struct {
	NotificationsCreated int `json:"notifications_created"`
	UpcomingDue          int `json:"upcoming_due_count"`
}

// Event types recorded in the circulation log. The aggregate is the book.
const (
	AggregateBook = "book"

	EventReservationCreated   = "ReservationCreated"
	EventReservationCancelled = "ReservationCancelled"
	EventReservationFulfilled = "ReservationFulfilled"
	EventReservationExpired   = "ReservationExpired"
	EventBookBorrowed         = "BookBorrowed"
	EventBookReturned         = "BookReturned"
	EventBorrowingOverdue     = "BorrowingOverdue"
	EventInventoryResized     = "InventoryResized"
)

// ReservationEvent is the payload of the reservation events.
type ReservationEvent struct {
	ReservationID   uuid.UUID `json:"reservation_id"`
	UserID          uuid.UUID `json:"user_id"`
	AvailableCopies int       `json:"available_copies"`
}

// BorrowingEvent is the payload of the borrowing events.
type BorrowingEvent struct {
	BorrowingID     uuid.UUID  `json:"borrowing_id"`
	UserID          uuid.UUID  `json:"user_id"`
	DueDate         time.Time  `json:"due_date"`
	ReservationID   *uuid.UUID `json:"reservation_id,omitempty"`
	AvailableCopies int        `json:"available_copies"`
}

// InventoryResizedEvent is recorded when total_copies changes.
type InventoryResizedEvent struct {
	OldTotal        int `json:"old_total"`
	NewTotal        int `json:"new_total"`
	AvailableCopies int `json:"available_copies"`
}
