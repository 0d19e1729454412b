// Package accounts implements the Account Store of spec.md §4.1: the
// persistent set of user records keyed by username.
package accounts

import (
	"errors"

	"github.com/hublinkchat/hublink/pkg/model"
)

var (
	// ErrAlreadyExists is returned by Create when the username is taken.
	ErrAlreadyExists = errors.New("accounts: username already exists")
	// ErrBadCredentials is returned by Authenticate on a password mismatch.
	ErrBadCredentials = errors.New("accounts: incorrect password")
	// ErrNotFound is returned by Authenticate when the username is unknown.
	ErrNotFound = errors.New("accounts: username not found")
)

// Store is the Account Store interface of spec.md §4.1. Two backends
// satisfy it: a flat-file store (filestore.go) and a SQLite-backed store
// (sqlitestore.go), chosen by Config.StoreDriver.
type Store interface {
	// Lookup returns the account for username, or (nil, nil) if absent.
	Lookup(username string) (*model.Account, error)

	// Create atomically inserts a new account, or returns ErrAlreadyExists
	// if the username is taken by a concurrent or prior Create.
	Create(username, password string, role model.Role) (*model.Account, error)

	// Authenticate looks up username and compares password by literal
	// equality (spec.md §1 Non-goals: no hashing). Returns ErrNotFound or
	// ErrBadCredentials on failure.
	Authenticate(username, password string) (*model.Account, error)

	// List returns a snapshot of every account.
	List() ([]model.Account, error)

	// Flush writes the current contents to the persistence medium.
	Flush() error

	// Close releases any resources held by the store.
	Close() error
}
