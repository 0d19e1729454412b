package accounts

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/hublinkchat/hublink/pkg/model"
)

// FileStore is the line-oriented Account Store of spec.md §4.1:
// "<username> <password> <ROLE>" one record per line, grounded on the
// original C save_user/user_exists format in file.c. Load is best-effort
// (a missing file yields an empty set; malformed lines are skipped with a
// log entry); only Create and Flush touch disk.
type FileStore struct {
	path string

	mu       sync.Mutex
	accounts map[string]model.Account // username -> account
}

// NewFileStore loads accounts from path (best-effort) and returns a
// ready-to-use store.
func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{
		path:     path,
		accounts: make(map[string]model.Account),
	}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FileStore) load() error {
	f, err := os.Open(fs.path) //nolint:gosec // path comes from server config
	if err != nil {
		if os.IsNotExist(err) {
			return nil // missing file is not an error
		}
		return fmt.Errorf("accounts: open %s: %w", fs.path, err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			slog.Warn("accounts: skipping malformed line", "file", fs.path, "line", lineNo)
			continue
		}
		username, password, roleTag := fields[0], fields[1], fields[2]
		if err := model.ValidateUsername(username); err != nil {
			slog.Warn("accounts: skipping invalid username", "file", fs.path, "line", lineNo, "err", err)
			continue
		}
		fs.accounts[username] = model.Account{
			Username: username,
			Password: password,
			Role:     model.ParseRole(roleTag),
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("accounts: scan %s: %w", fs.path, err)
	}
	return nil
}

// Lookup implements Store.
func (fs *FileStore) Lookup(username string) (*model.Account, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	acct, ok := fs.accounts[username]
	if !ok {
		return nil, nil
	}
	return &acct, nil
}

// Create implements Store.
func (fs *FileStore) Create(username, password string, role model.Role) (*model.Account, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, exists := fs.accounts[username]; exists {
		return nil, ErrAlreadyExists
	}

	acct := model.Account{Username: username, Password: password, Role: role}
	fs.accounts[username] = acct
	if err := fs.flushLocked(); err != nil {
		delete(fs.accounts, username)
		return nil, err
	}
	return &acct, nil
}

// Authenticate implements Store.
func (fs *FileStore) Authenticate(username, password string) (*model.Account, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	acct, ok := fs.accounts[username]
	if !ok {
		return nil, ErrNotFound
	}
	if acct.Password != password {
		return nil, ErrBadCredentials
	}
	return &acct, nil
}

// List implements Store.
func (fs *FileStore) List() ([]model.Account, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	out := make([]model.Account, 0, len(fs.accounts))
	for _, acct := range fs.accounts {
		out = append(out, acct)
	}
	return out, nil
}

// Flush implements Store.
func (fs *FileStore) Flush() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.flushLocked()
}

func (fs *FileStore) flushLocked() error {
	tmp := fs.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("accounts: write %s: %w", tmp, err)
	}

	w := bufio.NewWriter(f)
	for _, acct := range fs.accounts {
		if _, err := fmt.Fprintf(w, "%s %s %s\n", acct.Username, acct.Password, acct.Role.String()); err != nil {
			_ = f.Close()
			return fmt.Errorf("accounts: write record: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("accounts: flush: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("accounts: close: %w", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return fmt.Errorf("accounts: rename %s: %w", tmp, err)
	}
	return nil
}

// Close implements Store.
func (fs *FileStore) Close() error {
	return nil
}
