package server

import (
	"fmt"
	"log/slog"
	"net"
	"time"
)

// acceptPollInterval bounds how long Accept blocks before the shutdown
// flag is re-checked, matching spec.md §4.6's "one-second ceiling".
const acceptPollInterval = time.Second

// Run binds the listener and serves connections until Shutdown is called
// or the process receives no further work. It blocks for the server's
// lifetime; callers typically run it on the main goroutine and call
// Shutdown from a signal handler.
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.cfg.ListenAddr, err)
	}
	s.listener = ln
	close(s.ready)
	slog.Info("server: listening", "addr", ln.Addr())

	s.StartMetricsHTTP()

	tcpLn, isTCP := ln.(*net.TCPListener)

	for {
		if s.shutdown.Load() {
			s.drain()
			return nil
		}

		if isTCP {
			_ = tcpLn.SetDeadline(time.Now().Add(acceptPollInterval))
		}

		conn, err := ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue // poll ceiling elapsed, re-check shutdown flag
			}
			if s.shutdown.Load() {
				s.drain()
				return nil
			}
			slog.Error("server: accept error", "err", err)
			continue
		}

		go s.handleConn(conn)
	}
}

// Shutdown sets the shutdown flag observed by Run's accept loop. It does
// not itself close the listener or connections; Run's loop performs that
// as soon as it next wakes (within acceptPollInterval).
func (s *Server) Shutdown() {
	s.shutdown.Store(true)
}

// drain implements spec.md §4.6's shutdown sequence once the flag is
// observed: broadcast, brief pause for delivery, close the listener and
// every session connection, persist stores, exit.
func (s *Server) drain() {
	slog.Info("server: shutting down")
	s.announce("Server is shutting down. Goodbye!")
	time.Sleep(200 * time.Millisecond)

	if s.listener != nil {
		_ = s.listener.Close()
	}
	for _, sess := range s.deps.Table.All() {
		_ = sess.Conn.Close()
	}

	if err := s.deps.Accounts.Flush(); err != nil {
		slog.Error("server: flush account store", "err", err)
	}
	if err := s.deps.Registry.Save(s.cfg.ChannelStorePath); err != nil {
		slog.Error("server: save channel registry", "err", err)
	}

	s.cancel()
}

