package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/hublinkchat/hublink/pkg/accounts"
	"github.com/hublinkchat/hublink/pkg/command"
	"github.com/hublinkchat/hublink/pkg/model"
	"github.com/hublinkchat/hublink/pkg/protocol"
	"github.com/hublinkchat/hublink/pkg/transfer"
)

// readBufferSize is the per-recv ceiling of spec.md §4.6/§4.7: each read is
// treated as exactly one inbound command, never reassembled across reads.
const readBufferSize = protocol.MaxMessageSize

// handleConn runs the full lifecycle of one accepted connection: login
// handshake, message loop, teardown. Grounded on gospeak's
// handleControlConn (accept → auth → register → loop → deferred teardown)
// and original C server.c's handleClient (single-recv-is-one-command).
func (s *Server) handleConn(conn net.Conn) {
	s.metrics.ConnectionsTotal.Inc()
	s.metrics.ConnectionsActive.Inc()
	defer s.metrics.ConnectionsActive.Dec()
	defer func() { _ = conn.Close() }()

	sess, err := s.login(conn)
	if err != nil {
		if !errors.Is(err, errBadCredentials) {
			slog.Warn("server: login failed", "remote", conn.RemoteAddr(), "err", err)
		}
		return
	}

	s.announce(fmt.Sprintf("%s has joined the channel Hub", sess.Username))
	slog.Info("server: session admitted", "session_id", sess.ID, "user", sess.Username, "remote", sess.RemoteAddr)

	s.messageLoop(sess)

	previous := s.deps.Registry.Disconnect(sess.ID)
	s.deps.Table.Evict(sess)
	if previous != "" {
		s.announce(fmt.Sprintf("%s has left the channel %s", sess.Username, previous))
	}
	slog.Info("server: session torn down", "session_id", sess.ID, "user", sess.Username)
}

var errBadCredentials = errors.New("server: bad credentials")

// login performs the two-line handshake of spec.md §4.6: username,
// password, then either auto-registration (unknown username), admission
// (matching password), or rejection (wrong password).
func (s *Server) login(conn net.Conn) (*model.Session, error) {
	username, err := readLine(conn)
	if err != nil {
		return nil, fmt.Errorf("server: read username: %w", err)
	}
	password, err := readLine(conn)
	if err != nil {
		return nil, fmt.Errorf("server: read password: %w", err)
	}

	account, err := s.deps.Accounts.Authenticate(username, password)
	switch {
	case errors.Is(err, accounts.ErrNotFound):
		account, err = s.deps.Accounts.Create(username, password, model.RoleUser)
		if err != nil {
			return nil, fmt.Errorf("server: auto-register %s: %w", username, err)
		}
	case errors.Is(err, accounts.ErrBadCredentials):
		s.metrics.AuthFailedTotal.Inc()
		_ = protocol.WriteServerLine(conn, "Mot de passe incorrect")
		return nil, errBadCredentials
	case err != nil:
		return nil, fmt.Errorf("server: authenticate %s: %w", username, err)
	}

	s.metrics.AuthSuccessTotal.Inc()
	return s.deps.Table.Admit(conn, conn.RemoteAddr(), account, s.deps.Registry), nil
}

// messageLoop reads up to readBufferSize bytes per recv, dispatching each
// as one command, until EOF, a read error, or a protocol-violating file
// transfer (spec.md §7 IOError: close the connection).
func (s *Server) messageLoop(sess *model.Session) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := sess.Conn.Read(buf)
		if err != nil {
			return
		}
		line := protocol.TrimClientLine(buf[:n])
		cmd := command.Parse(line)

		ctx := &command.CommandContext{
			Session:      sess,
			Registry:     s.deps.Registry,
			Table:        s.deps.Table,
			Accounts:     s.deps.Accounts,
			Conn:         sess.Conn,
			UploadsDir:   s.cfg.UploadsDir,
			HelpText:     s.deps.HelpText,
			CreditsText:  s.deps.CreditsText,
			ShutdownFlag: &s.shutdown,
		}

		reply, err := command.Dispatch(ctx, cmd)
		if err != nil {
			if errors.Is(err, transfer.ErrProtocolViolation) {
				slog.Warn("server: protocol violation, closing connection", "session_id", sess.ID, "err", err)
			} else {
				slog.Error("server: dispatch error, closing connection", "session_id", sess.ID, "err", err)
			}
			return
		}
		if reply != "" {
			if writeErr := protocol.WriteServerLine(sess.Conn, reply); writeErr != nil {
				return
			}
		}
		if cmd.Kind == command.KindChat {
			s.metrics.ChatMessagesTotal.Inc()
		}
		if cmd.Kind == command.KindCreate && reply == "" {
			s.metrics.ChannelsCreated.Inc()
		}
	}
}

// announce writes message to every currently admitted session.
func (s *Server) announce(message string) {
	data, err := protocol.EncodeServerLine(message)
	if err != nil {
		return
	}
	s.deps.Table.Broadcast(data)
}

// readLine reads one line during the login handshake, before a Session
// exists. It uses the same ceiling as the post-login read loop.
func readLine(conn net.Conn) (string, error) {
	buf := make([]byte, readBufferSize)
	n, err := conn.Read(buf)
	if err != nil {
		return "", err
	}
	return protocol.TrimClientLine(buf[:n]), nil
}
