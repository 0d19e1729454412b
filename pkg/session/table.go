// Package session implements the Session Table of spec.md §4.3: the set of
// connected, authenticated sessions, keyed by connection and by id, with
// server-wide broadcast support.
package session

import (
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/hublinkchat/hublink/pkg/model"
	"github.com/hublinkchat/hublink/pkg/registry"
)

// Table owns every live Session. Operations are serialised by a single
// mutex; broadcast iterates over a snapshot so that a slow or dead peer's
// write cannot stall the table (spec.md §5).
type Table struct {
	nextID atomic.Uint64

	mu           sync.Mutex
	byConnection map[net.Conn]*model.Session
	byID         map[uint64]*model.Session
	byUsername   map[string]*model.Session
}

// NewTable returns an empty Session Table.
func NewTable() *Table {
	return &Table{
		byConnection: make(map[net.Conn]*model.Session),
		byID:         make(map[uint64]*model.Session),
		byUsername:   make(map[string]*model.Session),
	}
}

// Admit allocates a session id, registers the session, and places it in
// Hub via reg. The caller must already have authenticated the account
// (spec.md §4.6: a connection prior to login is not a session).
func (t *Table) Admit(conn net.Conn, remote net.Addr, account *model.Account, reg *registry.Registry) *model.Session {
	id := t.nextID.Add(1)

	sess := &model.Session{
		ID:         id,
		Username:   account.Username,
		Role:       account.Role,
		RemoteAddr: remote,
		Conn:       conn,
		Channel:    model.HubName,
	}

	t.mu.Lock()
	t.byConnection[conn] = sess
	t.byID[id] = sess
	t.byUsername[account.Username] = sess
	t.mu.Unlock()

	if err := reg.Join(model.HubName, id); err != nil {
		slog.Error("session: failed to join Hub on admit", "session_id", id, "err", err)
	}
	return sess
}

// FindByConnection returns the session bound to conn, or nil.
func (t *Table) FindByConnection(conn net.Conn) *model.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byConnection[conn]
}

// FindBySessionID returns the session with the given id, or nil.
func (t *Table) FindBySessionID(id uint64) *model.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byID[id]
}

// FindByUsername returns the session bound to username, or nil. Used by
// `@msg` to locate the recipient (spec.md §4.4).
func (t *Table) FindByUsername(username string) *model.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byUsername[username]
}

// Evict removes a session from the table. The caller must already have
// removed it from the Channel Registry (spec.md §3 invariant 6).
func (t *Table) Evict(sess *model.Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byConnection, sess.Conn)
	delete(t.byID, sess.ID)
	if t.byUsername[sess.Username] == sess {
		delete(t.byUsername, sess.Username)
	}
}

// Rebind re-authenticates an already-admitted session as a different
// account without allocating a new Session or touching Channel Registry
// membership (`@connect`, spec.md §4.4's legacy re-authentication command).
// The byUsername index is updated atomically with the Session's own
// fields so a concurrent FindByUsername never observes a stale name.
func (t *Table) Rebind(sess *model.Session, username string, role model.Role) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.byUsername[sess.Username] == sess {
		delete(t.byUsername, sess.Username)
	}
	sess.Username = username
	sess.Role = role
	t.byUsername[username] = sess
}

// Count returns the number of currently admitted sessions.
func (t *Table) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byID)
}

// All returns a snapshot of every currently admitted session.
func (t *Table) All() []*model.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*model.Session, 0, len(t.byID))
	for _, sess := range t.byID {
		out = append(out, sess)
	}
	return out
}

// Broadcast writes message to every admitted session's connection. Write
// errors are logged and otherwise ignored: a failing peer's write never
// changes the broadcaster's own session state (spec.md §7).
func (t *Table) Broadcast(message []byte) {
	t.BroadcastExcept(nil, message)
}

// BroadcastExcept writes message to every admitted session except sender
// (sender may be nil to address everyone).
func (t *Table) BroadcastExcept(sender *model.Session, message []byte) {
	targets := t.All()
	for _, sess := range targets {
		if sender != nil && sess.ID == sender.ID {
			continue
		}
		if _, err := sess.Conn.Write(message); err != nil {
			slog.Warn("session: broadcast write failed", "session_id", sess.ID, "err", err)
		}
	}
}
