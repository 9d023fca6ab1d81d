// internal/membership/repository.go
package membership

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"shelfkeeper/internal/dbx"
)

// PostgresRepository stores users and their credentials in the users table.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, u *User, cred *Credential) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, role, password_hash, password_salt, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Name, u.Email, u.Role, cred.PasswordHash, cred.Salt, u.CreatedAt)
	return err
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	u := &User{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, role, created_at
		FROM users
		WHERE id = $1`, id).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, dbx.NotFoundIfNoRows(err)
	}
	return u, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*User, *Credential, error) {
	u := &User{}
	cred := &Credential{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, role, created_at, password_hash, password_salt
		FROM users
		WHERE email = $1`, email).
		Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt, &cred.PasswordHash, &cred.Salt)
	if err != nil {
		return nil, nil, dbx.NotFoundIfNoRows(err)
	}
	cred.UserID = u.ID
	return u, cred, nil
}

// Update writes name and email, and the credential when cred is non-nil.
func (r *PostgresRepository) Update(ctx context.Context, u *User, cred *Credential) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx, `UPDATE users SET name = $2, email = $3 WHERE id = $1`, u.ID, u.Name, u.Email)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return dbx.ErrNotFound
		}

		if cred == nil {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET password_hash = $2, password_salt = $3 WHERE id = $1`,
			u.ID, cred.PasswordHash, cred.Salt); err != nil {
			return fmt.Errorf("update credential: %w", err)
		}
		return nil
	})
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return dbx.ErrNotFound
	}
	return nil
}

// Directory answers user existence checks. It takes a DBTX so the check
// can run inside a circulation transaction.
type Directory struct {
	db dbx.DBTX
}

func NewDirectory(db dbx.DBTX) *Directory {
	return &Directory{db: db}
}

// Exists reports whether a user with id exists.
func (d *Directory) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	err := d.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}
