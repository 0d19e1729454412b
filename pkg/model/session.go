package model

import "net"

// Session represents an authenticated client connection. A Session exists
// only between a completed login handshake and connection teardown; it is
// never constructed before authentication succeeds (spec.md §3).
type Session struct {
	ID         uint64 // monotonically-unique, used for display when the account name is unavailable
	Username   string
	Role       Role
	RemoteAddr net.Addr
	Conn       net.Conn

	// Channel is the name of the session's current channel, not a direct
	// reference, so that a stale pointer can never outlive a channel
	// (spec.md §3 "Relationships and ownership").
	Channel string
}
