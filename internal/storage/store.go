package storage

import (
	"context"
	"database/sql"

	"shelfkeeper/internal/catalog"
	"shelfkeeper/internal/circulation"
	"shelfkeeper/internal/dbx"
	"shelfkeeper/internal/eventlog"
	"shelfkeeper/internal/membership"
	"shelfkeeper/internal/notification"
)

// Store implements circulation.Store on Postgres. Every InTx call runs in
// one database transaction; the repositories it hands out are bound to
// that transaction.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx circulation.Tx) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, txRepos{tx: tx})
	})
}

func (s *Store) Reservations() circulation.ReservationRepository {
	return circulation.NewPostgresReservations(s.db)
}

func (s *Store) Borrowings() circulation.BorrowingRepository {
	return circulation.NewPostgresBorrowings(s.db)
}

type txRepos struct {
	tx dbx.DBTX
}

func (t txRepos) Books() circulation.BookRepository {
	return catalog.NewPostgresRepository(t.tx)
}

func (t txRepos) Users() circulation.UserRepository {
	return membership.NewDirectory(t.tx)
}

func (t txRepos) Reservations() circulation.ReservationRepository {
	return circulation.NewPostgresReservations(t.tx)
}

func (t txRepos) Borrowings() circulation.BorrowingRepository {
	return circulation.NewPostgresBorrowings(t.tx)
}

func (t txRepos) Notifications() circulation.NotificationRepository {
	return notification.NewPostgresRepository(t.tx)
}

func (t txRepos) Events() circulation.EventAppender {
	return eventlog.New(t.tx)
}
