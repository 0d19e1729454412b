package session_test

import (
	"bytes"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/hublinkchat/hublink/pkg/model"
	"github.com/hublinkchat/hublink/pkg/registry"
	"github.com/hublinkchat/hublink/pkg/session"
)

// recordingConn is a fake net.Conn that records every Write, grounded on
// gospeak's nopConn (pkg/server/server_test.go) with a buffer added so
// broadcast tests can assert on what was sent.
type recordingConn struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (c *recordingConn) Read(_ []byte) (int, error) { return 0, io.EOF }
func (c *recordingConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}
func (c *recordingConn) Close() error                       { return nil }
func (c *recordingConn) LocalAddr() net.Addr                { return &net.IPAddr{} }
func (c *recordingConn) RemoteAddr() net.Addr               { return &net.IPAddr{} }
func (c *recordingConn) SetDeadline(_ time.Time) error      { return nil }
func (c *recordingConn) SetReadDeadline(_ time.Time) error  { return nil }
func (c *recordingConn) SetWriteDeadline(_ time.Time) error { return nil }

func (c *recordingConn) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

func TestAdmitPlacesSessionInHub(t *testing.T) {
	reg := registry.New()
	table := session.NewTable()
	conn := &recordingConn{}

	sess := table.Admit(conn, conn.RemoteAddr(), &model.Account{Username: "johndoe", Role: model.RoleUser}, reg)

	if sess.Channel != model.HubName {
		t.Fatalf("Admit: want session.Channel=Hub, got %s", sess.Channel)
	}
	if reg.ChannelOf(sess.ID) != model.HubName {
		t.Fatalf("Admit: expected registry to place session in Hub")
	}
	if table.FindByConnection(conn) != sess {
		t.Fatalf("FindByConnection: expected to find the admitted session")
	}
	if table.FindBySessionID(sess.ID) != sess {
		t.Fatalf("FindBySessionID: expected to find the admitted session")
	}
	if table.FindByUsername("johndoe") != sess {
		t.Fatalf("FindByUsername: expected to find the admitted session")
	}
}

func TestAdmitAssignsUniqueIDs(t *testing.T) {
	reg := registry.New()
	table := session.NewTable()

	first := table.Admit(&recordingConn{}, nil, &model.Account{Username: "alice", Role: model.RoleUser}, reg)
	second := table.Admit(&recordingConn{}, nil, &model.Account{Username: "bob", Role: model.RoleUser}, reg)

	if first.ID == second.ID {
		t.Fatalf("Admit: expected distinct session ids, got %d twice", first.ID)
	}
}

func TestEvictRemovesFromAllIndices(t *testing.T) {
	reg := registry.New()
	table := session.NewTable()
	conn := &recordingConn{}
	sess := table.Admit(conn, nil, &model.Account{Username: "johndoe", Role: model.RoleUser}, reg)

	table.Evict(sess)

	if table.FindByConnection(conn) != nil {
		t.Fatalf("Evict: expected connection index cleared")
	}
	if table.FindBySessionID(sess.ID) != nil {
		t.Fatalf("Evict: expected id index cleared")
	}
	if table.FindByUsername("johndoe") != nil {
		t.Fatalf("Evict: expected username index cleared")
	}
	if table.Count() != 0 {
		t.Fatalf("Evict: expected Count()=0, got %d", table.Count())
	}
}

func TestBroadcastExceptSkipsSender(t *testing.T) {
	reg := registry.New()
	table := session.NewTable()

	aliceConn := &recordingConn{}
	bobConn := &recordingConn{}
	alice := table.Admit(aliceConn, nil, &model.Account{Username: "alice", Role: model.RoleUser}, reg)
	table.Admit(bobConn, nil, &model.Account{Username: "bob", Role: model.RoleUser}, reg)

	table.BroadcastExcept(alice, []byte("hello\x00"))

	if aliceConn.String() != "" {
		t.Fatalf("BroadcastExcept: sender should not receive its own broadcast, got %q", aliceConn.String())
	}
	if bobConn.String() != "hello\x00" {
		t.Fatalf("BroadcastExcept: want %q, got %q", "hello\x00", bobConn.String())
	}
}

func TestBroadcastReachesEveryone(t *testing.T) {
	reg := registry.New()
	table := session.NewTable()

	conns := []*recordingConn{{}, {}, {}}
	for i, c := range conns {
		table.Admit(c, nil, &model.Account{Username: string(rune('a' + i)), Role: model.RoleUser}, reg)
	}

	table.Broadcast([]byte("server is shutting down\x00"))

	for i, c := range conns {
		if c.String() != "server is shutting down\x00" {
			t.Fatalf("Broadcast: conn %d did not receive the message, got %q", i, c.String())
		}
	}
}
