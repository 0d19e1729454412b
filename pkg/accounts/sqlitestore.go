package accounts

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/hublinkchat/hublink/pkg/model"
)

// SQLiteStore is the SQLite-backed Account Store, grounded on gospeak's
// pkg/datastore/sql.go connection setup and prepared-statement idiom. It
// is an alternative to FileStore chosen by Config.StoreDriver == "sqlite";
// spec.md §4.1 accepts either encoding as long as it round-trips
// {username, password, role}.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database and ensures the
// accounts table exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("accounts: open db: %w", err)
	}

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("accounts: set WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("accounts: set busy_timeout: %w", err)
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS accounts (
		username TEXT PRIMARY KEY,
		password TEXT NOT NULL,
		role     TEXT NOT NULL DEFAULT 'USER'
	);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("accounts: migrate: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Lookup implements Store.
func (s *SQLiteStore) Lookup(username string) (*model.Account, error) {
	row := s.db.QueryRow(`SELECT username, password, role FROM accounts WHERE username = ?`, username)
	var acct model.Account
	var roleTag string
	switch err := row.Scan(&acct.Username, &acct.Password, &roleTag); err {
	case nil:
		acct.Role = model.ParseRole(roleTag)
		return &acct, nil
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, fmt.Errorf("accounts: lookup %s: %w", username, err)
	}
}

// Create implements Store. Uniqueness is enforced by the PRIMARY KEY
// constraint, making insertion atomic with respect to concurrent Create
// calls for the same username (spec.md §4.1).
func (s *SQLiteStore) Create(username, password string, role model.Role) (*model.Account, error) {
	_, err := s.db.Exec(`INSERT INTO accounts (username, password, role) VALUES (?, ?, ?)`,
		username, password, role.String())
	if err != nil {
		// modernc.org/sqlite reports constraint violations without a typed
		// sentinel; fall back to a Lookup to disambiguate "already exists"
		// from a genuine write failure.
		if existing, lookupErr := s.Lookup(username); lookupErr == nil && existing != nil {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("accounts: create %s: %w", username, err)
	}
	return &model.Account{Username: username, Password: password, Role: role}, nil
}

// Authenticate implements Store.
func (s *SQLiteStore) Authenticate(username, password string) (*model.Account, error) {
	acct, err := s.Lookup(username)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrNotFound
	}
	if acct.Password != password {
		return nil, ErrBadCredentials
	}
	return acct, nil
}

// List implements Store.
func (s *SQLiteStore) List() ([]model.Account, error) {
	rows, err := s.db.Query(`SELECT username, password, role FROM accounts`)
	if err != nil {
		return nil, fmt.Errorf("accounts: list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Account
	for rows.Next() {
		var acct model.Account
		var roleTag string
		if err := rows.Scan(&acct.Username, &acct.Password, &roleTag); err != nil {
			return nil, fmt.Errorf("accounts: scan: %w", err)
		}
		acct.Role = model.ParseRole(roleTag)
		out = append(out, acct)
	}
	return out, rows.Err()
}

// Flush is a no-op for SQLite: every write already went through the WAL.
func (s *SQLiteStore) Flush() error {
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
