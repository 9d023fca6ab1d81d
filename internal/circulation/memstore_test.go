package circulation

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"shelfkeeper/internal/catalog"
	"shelfkeeper/internal/dbx"
	"shelfkeeper/internal/notification"
)

// memStore is an in-memory Store. A transaction holds the store mutex for
// its whole duration and restores a snapshot when fn fails, which gives
// the serialisation and rollback the Postgres store provides.
type memStore struct {
	mu            sync.Mutex
	books         map[uuid.UUID]catalog.Book
	users         map[uuid.UUID]bool
	reservations  map[uuid.UUID]Reservation
	borrowings    map[uuid.UUID]Borrowing
	notifications []notification.Notification
	events        []memEvent

	failAppend bool
}

type memEvent struct {
	BookID  uuid.UUID
	Type    string
	Version int
}

var errCheckViolation = errors.New("violates check constraint books_available_copies_check")

func newMemStore() *memStore {
	return &memStore{
		books:        map[uuid.UUID]catalog.Book{},
		users:        map[uuid.UUID]bool{},
		reservations: map[uuid.UUID]Reservation{},
		borrowings:   map[uuid.UUID]Borrowing{},
	}
}

func (s *memStore) addBook(title string, total, available int) uuid.UUID {
	id := uuid.New()
	s.books[id] = catalog.Book{ID: id, Title: title, Author: "A", Category: catalog.DefaultCategory, TotalCopies: total, AvailableCopies: available}
	return id
}

func (s *memStore) addUser() uuid.UUID {
	id := uuid.New()
	s.users[id] = true
	return id
}

type memSnapshot struct {
	books         map[uuid.UUID]catalog.Book
	reservations  map[uuid.UUID]Reservation
	borrowings    map[uuid.UUID]Borrowing
	notifications []notification.Notification
	events        []memEvent
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		books:         make(map[uuid.UUID]catalog.Book, len(s.books)),
		reservations:  make(map[uuid.UUID]Reservation, len(s.reservations)),
		borrowings:    make(map[uuid.UUID]Borrowing, len(s.borrowings)),
		notifications: append([]notification.Notification(nil), s.notifications...),
		events:        append([]memEvent(nil), s.events...),
	}
	for k, v := range s.books {
		snap.books[k] = v
	}
	for k, v := range s.reservations {
		snap.reservations[k] = v
	}
	for k, v := range s.borrowings {
		snap.borrowings[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.books = snap.books
	s.reservations = snap.reservations
	s.borrowings = snap.borrowings
	s.notifications = snap.notifications
	s.events = snap.events
}

func (s *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(ctx, memTx{s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) Reservations() ReservationRepository { return memReservations{s: s, lock: true} }
func (s *memStore) Borrowings() BorrowingRepository     { return memBorrowings{s: s, lock: true} }

// Test helpers read state directly; call them only when no operation is
// running.

func (s *memStore) book(id uuid.UUID) catalog.Book { return s.books[id] }

func (s *memStore) activeReservations(bookID uuid.UUID) int {
	n := 0
	for _, r := range s.reservations {
		if r.BookID == bookID && r.Status == ReservationActive {
			n++
		}
	}
	return n
}

func (s *memStore) openBorrowings(bookID uuid.UUID) int {
	n := 0
	for _, b := range s.borrowings {
		if b.BookID == bookID && b.ReturnedAt == nil {
			n++
		}
	}
	return n
}

func (s *memStore) notificationsFor(userID uuid.UUID, typ notification.Type) []notification.Notification {
	var out []notification.Notification
	for _, n := range s.notifications {
		if n.UserID == userID && n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

func (s *memStore) eventTypes(bookID uuid.UUID) []string {
	var out []string
	for _, e := range s.events {
		if e.BookID == bookID {
			out = append(out, e.Type)
		}
	}
	return out
}

type memTx struct{ s *memStore }

func (t memTx) Books() BookRepository { return memBooks{t.s} }
func (t memTx) Users() UserRepository { return memUsers{t.s} }
func (t memTx) Reservations() ReservationRepository { return memReservations{s: t.s} }
func (t memTx) Borrowings() BorrowingRepository { return memBorrowings{s: t.s} }
func (t memTx) Notifications() NotificationRepository { return memNotifications{t.s} }
func (t memTx) Events() EventAppender { return memEvents{t.s} }

type memBooks struct{ s *memStore }

func (r memBooks) GetForUpdate(_ context.Context, id uuid.UUID) (*catalog.Book, error) {
	b, ok := r.s.books[id]
	if !ok {
		return nil, dbx.ErrNotFound
	}
	b.Status = catalog.DeriveStatus(b.AvailableCopies, r.s.activeReservations(id) > 0)
	return &b, nil
}

func (r memBooks) AdjustAvailable(_ context.Context, id uuid.UUID, delta int) (int, error) {
	b, ok := r.s.books[id]
	if !ok {
		return 0, dbx.ErrNotFound
	}
	next := b.AvailableCopies + delta
	if next < 0 || next > b.TotalCopies {
		return 0, errCheckViolation
	}
	b.AvailableCopies = next
	r.s.books[id] = b
	return next, nil
}

func (r memBooks) SetCopies(_ context.Context, id uuid.UUID, total, available int) error {
	b, ok := r.s.books[id]
	if !ok {
		return dbx.ErrNotFound
	}
	if available < 0 || available > total {
		return errCheckViolation
	}
	b.TotalCopies, b.AvailableCopies = total, available
	r.s.books[id] = b
	return nil
}

func (r memBooks) UpdateDetails(_ context.Context, b *catalog.Book) error {
	cur, ok := r.s.books[b.ID]
	if !ok {
		return dbx.ErrNotFound
	}
	for id, other := range r.s.books {
		if id != b.ID && b.ISBN != nil && other.ISBN != nil && *b.ISBN == *other.ISBN {
			return &pq.Error{Code: "23505"}
		}
	}
	cur.Title, cur.Author, cur.Category, cur.ISBN, cur.Description = b.Title, b.Author, b.Category, b.ISBN, b.Description
	r.s.books[b.ID] = cur
	return nil
}

type memUsers struct{ s *memStore }

func (r memUsers) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	return r.s.users[id], nil
}

type memReservations struct {
	s    *memStore
	lock bool
}

func (r memReservations) guard() func() {
	if !r.lock {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func (r memReservations) withTitle(res Reservation) *Reservation {
	res.BookTitle = r.s.books[res.BookID].Title
	return &res
}

func (r memReservations) Create(_ context.Context, res *Reservation) error {
	defer r.guard()()
	for _, other := range r.s.reservations {
		if other.UserID == res.UserID && other.BookID == res.BookID && other.Status == ReservationActive {
			return &pq.Error{Code: "23505"}
		}
	}
	r.s.reservations[res.ID] = *res
	return nil
}

func (r memReservations) Get(_ context.Context, id uuid.UUID) (*Reservation, error) {
	defer r.guard()()
	res, ok := r.s.reservations[id]
	if !ok {
		return nil, dbx.ErrNotFound
	}
	return r.withTitle(res), nil
}

func (r memReservations) GetForUpdate(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	return r.Get(ctx, id)
}

func (r memReservations) FindActiveForUpdate(_ context.Context, userID, bookID uuid.UUID) (*Reservation, error) {
	defer r.guard()()
	for _, res := range r.s.reservations {
		if res.UserID == userID && res.BookID == bookID && res.Status == ReservationActive {
			return r.withTitle(res), nil
		}
	}
	return nil, dbx.ErrNotFound
}

func (r memReservations) UpdateStatus(_ context.Context, id uuid.UUID, status ReservationStatus) error {
	defer r.guard()()
	res, ok := r.s.reservations[id]
	if !ok {
		return dbx.ErrNotFound
	}
	res.Status = status
	r.s.reservations[id] = res
	return nil
}

func (r memReservations) ListExpired(_ context.Context, now time.Time) ([]*Reservation, error) {
	defer r.guard()()
	out := []*Reservation{}
	for _, res := range r.s.reservations {
		if res.Status == ReservationActive && res.ExpiresAt.Before(now) {
			out = append(out, r.withTitle(res))
		}
	}
	return out, nil
}

func (r memReservations) ListByUser(_ context.Context, userID uuid.UUID) ([]*Reservation, error) {
	defer r.guard()()
	out := []*Reservation{}
	for _, res := range r.s.reservations {
		if res.UserID == userID {
			out = append(out, r.withTitle(res))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReservedAt.After(out[j].ReservedAt) })
	return out, nil
}

type memBorrowings struct {
	s    *memStore
	lock bool
}

func (r memBorrowings) guard() func() {
	if !r.lock {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func (r memBorrowings) withTitle(b Borrowing) *Borrowing {
	b.BookTitle = r.s.books[b.BookID].Title
	return &b
}

func (r memBorrowings) Create(_ context.Context, b *Borrowing) error {
	defer r.guard()()
	r.s.borrowings[b.ID] = *b
	return nil
}

func (r memBorrowings) Get(_ context.Context, id uuid.UUID) (*Borrowing, error) {
	defer r.guard()()
	b, ok := r.s.borrowings[id]
	if !ok {
		return nil, dbx.ErrNotFound
	}
	return r.withTitle(b), nil
}

func (r memBorrowings) GetForUpdate(ctx context.Context, id uuid.UUID) (*Borrowing, error) {
	return r.Get(ctx, id)
}

func (r memBorrowings) MarkReturned(_ context.Context, id uuid.UUID, at time.Time) error {
	defer r.guard()()
	b, ok := r.s.borrowings[id]
	if !ok || b.ReturnedAt != nil {
		return dbx.ErrNotFound
	}
	b.ReturnedAt = &at
	r.s.borrowings[id] = b
	return nil
}

func (r memBorrowings) filter(keep func(Borrowing) bool) []*Borrowing {
	out := []*Borrowing{}
	for _, b := range r.s.borrowings {
		if keep(b) {
			out = append(out, r.withTitle(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out
}

func (r memBorrowings) ListOverdueCandidates(_ context.Context, now time.Time) ([]*Borrowing, error) {
	defer r.guard()()
	return r.filter(func(b Borrowing) bool {
		return b.ReturnedAt == nil && !b.IsOverdue && b.DueDate.Before(now)
	}), nil
}

func (r memBorrowings) FlagOverdue(_ context.Context, id uuid.UUID) (bool, error) {
	defer r.guard()()
	b, ok := r.s.borrowings[id]
	if !ok || b.IsOverdue || b.ReturnedAt != nil {
		return false, nil
	}
	b.IsOverdue = true
	r.s.borrowings[id] = b
	return true, nil
}

func (r memBorrowings) ListDueBetween(_ context.Context, after, until time.Time) ([]*Borrowing, error) {
	defer r.guard()()
	return r.filter(func(b Borrowing) bool {
		return b.ReturnedAt == nil && b.DueDate.After(after) && !b.DueDate.After(until)
	}), nil
}

func (r memBorrowings) List(_ context.Context, userID *uuid.UUID) ([]*Borrowing, error) {
	defer r.guard()()
	out := r.filter(func(b Borrowing) bool { return userID == nil || b.UserID == *userID })
	sort.Slice(out, func(i, j int) bool { return out[i].BorrowedAt.After(out[j].BorrowedAt) })
	return out, nil
}

type memNotifications struct{ s *memStore }

func (r memNotifications) Create(_ context.Context, n *notification.Notification) error {
	r.s.notifications = append(r.s.notifications, *n)
	return nil
}

func (r memNotifications) CreateOnce(_ context.Context, n *notification.Notification) (bool, error) {
	if n.DedupeKey != nil {
		for _, other := range r.s.notifications {
			if !other.IsRead && other.DedupeKey != nil && *other.DedupeKey == *n.DedupeKey {
				return false, nil
			}
		}
	}
	r.s.notifications = append(r.s.notifications, *n)
	return true, nil
}

type memEvents struct{ s *memStore }

var errAppendFailed = errors.New("event log unavailable")

func (r memEvents) Append(_ context.Context, bookID uuid.UUID, _, eventType string, _ any) error {
	if r.s.failAppend {
		return errAppendFailed
	}
	version := 1
	for _, e := range r.s.events {
		if e.BookID == bookID {
			version = e.Version + 1
		}
	}
	r.s.events = append(r.s.events, memEvent{BookID: bookID, Type: eventType, Version: version})
	return nil
}
