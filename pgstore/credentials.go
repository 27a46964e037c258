package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/homefund/authkit"
)

const uniqueViolation = "23505"

// CredentialStore is the PostgreSQL implementation of
// [authkit.CredentialStore], backed by a pgx connection pool.
type CredentialStore struct {
	db    *pgxpool.Pool
	table string
}

// Option configures a CredentialStore.
type Option func(*CredentialStore)

// WithTable overrides the default "users" table name.
func WithTable(name string) Option {
	return func(s *CredentialStore) { s.table = name }
}

// New creates a CredentialStore on top of an existing pool. The pool's
// lifecycle stays with the caller.
func New(db *pgxpool.Pool, opts ...Option) *CredentialStore {
	s := &CredentialStore{db: db, table: "users"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const userColumns = "id, email, password_hash, first_name, last_name, email_verified, created_at, updated_at, deleted_at"

// Lookups exclude soft-deleted rows, so a deleted account reads as absent
// everywhere in the engine.

func (s *CredentialStore) FindByEmail(ctx context.Context, email string) (*authkit.User, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE email = $1 AND deleted_at IS NULL", userColumns, s.table)
	return s.scanUser(s.db.QueryRow(ctx, query, email))
}

func (s *CredentialStore) FindByID(ctx context.Context, id string) (*authkit.User, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1 AND deleted_at IS NULL", userColumns, s.table)
	return s.scanUser(s.db.QueryRow(ctx, query, id))
}

func (s *CredentialStore) Insert(ctx context.Context, user *authkit.User) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, email, password_hash, first_name, last_name, email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, s.table)

	_, err := s.db.Exec(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.EmailVerified,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return authkit.ErrDuplicateEmail
		}
		return fmt.Errorf("pgstore: insert user: %w", err)
	}

	return nil
}

func (s *CredentialStore) MarkEmailVerified(ctx context.Context, id string) error {
	query := fmt.Sprintf("UPDATE %s SET email_verified = TRUE, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL", s.table)

	tag, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("pgstore: mark email verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authkit.ErrNoUser
	}

	return nil
}

func (s *CredentialStore) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	query := fmt.Sprintf("UPDATE %s SET password_hash = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL", s.table)

	tag, err := s.db.Exec(ctx, query, id, passwordHash)
	if err != nil {
		return fmt.Errorf("pgstore: update password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authkit.ErrNoUser
	}

	return nil
}

func (s *CredentialStore) scanUser(row pgx.Row) (*authkit.User, error) {
	user := &authkit.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.EmailVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authkit.ErrNoUser
		}
		return nil, fmt.Errorf("pgstore: scan user: %w", err)
	}

	return user, nil
}
