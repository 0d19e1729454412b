package server_test

import (
	"bufio"
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/hublinkchat/hublink/pkg/accounts"
	"github.com/hublinkchat/hublink/pkg/registry"
	"github.com/hublinkchat/hublink/pkg/server"
	"github.com/hublinkchat/hublink/pkg/session"
)

func newTestServer(t *testing.T) *server.Server {
	t.Helper()
	store, err := accounts.NewFileStore(filepath.Join(t.TempDir(), "accounts.db"))
	if err != nil {
		t.Fatalf("NewFileStore: unexpected error: %v", err)
	}

	cfg := server.DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.MetricsAddr = ""
	cfg.UploadsDir = t.TempDir()
	cfg.ChannelStorePath = filepath.Join(t.TempDir(), "save_channels.txt")

	return server.New(cfg, server.Dependencies{
		Accounts: store,
		Registry: registry.New(),
		Table:    session.NewTable(),
	})
}

// runServer starts srv.Run in the background and returns its bound
// address, read via Server.Addr() which blocks until the listener exists.
func runServer(t *testing.T, srv *server.Server) string {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()
	t.Cleanup(func() {
		srv.Shutdown()
		select {
		case <-errCh:
		case <-time.After(2 * time.Second):
		}
	})
	return srv.Addr().String()
}

func dial(t *testing.T, addr string) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial %s: unexpected error: %v", addr, err)
	}
	return conn
}

func TestLoginAutoRegistersNewAccount(t *testing.T) {
	srv := newTestServer(t)
	addr := runServer(t, srv)

	conn := dial(t, addr)
	defer func() { _ = conn.Close() }()

	writeLine(t, conn, "alice")
	writeLine(t, conn, "pw")

	r := bufio.NewReader(conn)
	got := readServerLine(t, r)
	want := "alice has joined the channel Hub"
	if got != want {
		t.Fatalf("login announcement: want %q, got %q", want, got)
	}
}

func TestLoginBadPasswordCloses(t *testing.T) {
	srv := newTestServer(t)
	addr := runServer(t, srv)

	first := dial(t, addr)
	writeLine(t, first, "bob")
	writeLine(t, first, "correct")
	r1 := bufio.NewReader(first)
	_ = readServerLine(t, r1) // join announcement
	_ = first.Close()

	second := dial(t, addr)
	defer func() { _ = second.Close() }()
	writeLine(t, second, "bob")
	writeLine(t, second, "wrong")
	r2 := bufio.NewReader(second)
	got := readServerLine(t, r2)
	if got != "Mot de passe incorrect" {
		t.Fatalf("bad password reply: got %q", got)
	}
	if _, err := r2.ReadByte(); err == nil {
		t.Fatalf("bad password: expected the server to close the connection")
	}
}

func TestChatBroadcastToHub(t *testing.T) {
	srv := newTestServer(t)
	addr := runServer(t, srv)

	a := dial(t, addr)
	defer func() { _ = a.Close() }()
	writeLine(t, a, "alice")
	writeLine(t, a, "pw")
	ra := bufio.NewReader(a)
	_ = readServerLine(t, ra) // alice's own join announcement

	b := dial(t, addr)
	defer func() { _ = b.Close() }()
	writeLine(t, b, "bob")
	writeLine(t, b, "pw")
	rb := bufio.NewReader(b)
	_ = readServerLine(t, rb) // bob's own join announcement
	_ = readServerLine(t, ra) // alice sees bob's join announcement

	writeLine(t, a, "hello")
	want := "Hub-alice: hello"
	if got := readServerLine(t, ra); got != want {
		t.Fatalf("chat self-delivery: want %q, got %q", want, got)
	}
	if got := readServerLine(t, rb); got != want {
		t.Fatalf("chat broadcast to bob: want %q, got %q", want, got)
	}
}

func TestPingReply(t *testing.T) {
	srv := newTestServer(t)
	addr := runServer(t, srv)

	conn := dial(t, addr)
	defer func() { _ = conn.Close() }()
	writeLine(t, conn, "carol")
	writeLine(t, conn, "pw")
	r := bufio.NewReader(conn)
	_ = readServerLine(t, r) // join announcement

	writeLine(t, conn, "@ping")
	if got := readServerLine(t, r); got != "pong" {
		t.Fatalf("@ping: want pong, got %q", got)
	}
}

func TestShutdownBroadcastsGoodbye(t *testing.T) {
	srv := newTestServer(t)
	addr := runServer(t, srv)

	conn := dial(t, addr)
	defer func() { _ = conn.Close() }()
	writeLine(t, conn, "root")
	writeLine(t, conn, "adminpw")
	r := bufio.NewReader(conn)
	_ = readServerLine(t, r) // join announcement

	srv.Shutdown()
	got := readServerLine(t, r)
	want := "Server is shutting down. Goodbye!"
	if got != want {
		t.Fatalf("shutdown broadcast: want %q, got %q", want, got)
	}
}

// --- test helpers -----------------------------------------------------

func writeLine(t *testing.T, conn net.Conn, line string) {
	t.Helper()
	if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
		t.Fatalf("write line %q: unexpected error: %v", line, err)
	}
}

func readServerLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString(0)
	if err != nil {
		t.Fatalf("read server line: unexpected error: %v", err)
	}
	return line[:len(line)-1]
}
