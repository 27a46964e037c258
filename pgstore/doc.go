// Package pgstore provides a PostgreSQL-backed authkit.CredentialStore
// built on pgx v5 connection pools.
//
// The expected schema:
//
//	CREATE TABLE users (
//	    id             UUID PRIMARY KEY,
//	    email          TEXT NOT NULL UNIQUE,
//	    password_hash  TEXT NOT NULL,
//	    first_name     TEXT NOT NULL DEFAULT '',
//	    last_name      TEXT NOT NULL DEFAULT '',
//	    email_verified BOOLEAN NOT NULL DEFAULT FALSE,
//	    created_at     TIMESTAMPTZ NOT NULL,
//	    updated_at     TIMESTAMPTZ NOT NULL,
//	    deleted_at     TIMESTAMPTZ
//	);
//
// The unique constraint on email is load-bearing: concurrent registrations
// for the same address are resolved here, and the loser surfaces as
// authkit.ErrDuplicateEmail.
//
// Rows with a non-null deleted_at are soft-deleted and excluded from every
// lookup and update, so a deleted account behaves exactly like a missing
// one. Setting deleted_at belongs to the surrounding user-management layer.
//
// # What this package must NOT do
//
//   - Hash or compare passwords (Engine owns credential logic).
//   - Touch Redis (sessions and codes live elsewhere).
package pgstore
