// Package server implements the Connection Runtime of spec.md §4.6: the
// TCP listener, per-connection login handshake and read loop, and the
// shutdown-flag poll that coordinates an orderly exit.
package server

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/hublinkchat/hublink/pkg/accounts"
	"github.com/hublinkchat/hublink/pkg/registry"
	"github.com/hublinkchat/hublink/pkg/session"
)

// Dependencies holds the externally-constructed components a Server needs.
// The Server assumes ownership of none of them beyond flushing the Account
// Store and saving the Registry at shutdown; it never closes them. All are
// handed in already wired, the way gospeak's
// Dependencies hands in its store.
type Dependencies struct {
	Accounts accounts.Store
	Registry *registry.Registry
	Table    *session.Table

	HelpText    string
	CreditsText string
}

// Server is the HubLink connection runtime.
type Server struct {
	cfg  Config
	deps Dependencies

	metrics *Metrics

	listener net.Listener
	shutdown atomic.Bool

	ready chan struct{} // closed once listener is bound, for Addr()

	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs a Server. It does not bind a listener; call Run for that.
func New(cfg Config, deps Dependencies) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:     cfg,
		deps:    deps,
		metrics: NewMetrics(),
		ready:   make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Addr blocks until Run has bound its listener, then returns its address.
// Intended for tests that bind to an ephemeral port (":0").
func (s *Server) Addr() net.Addr {
	<-s.ready
	return s.listener.Addr()
}

// Metrics returns the server's metrics registry.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Registry returns the Channel Registry this server was constructed with.
func (s *Server) Registry() *registry.Registry {
	return s.deps.Registry
}

// Table returns the Session Table this server was constructed with.
func (s *Server) Table() *session.Table {
	return s.deps.Table
}
