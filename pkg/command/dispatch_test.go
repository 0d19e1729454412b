package command_test

import (
	"bufio"
	"net"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/hublinkchat/hublink/pkg/accounts"
	"github.com/hublinkchat/hublink/pkg/command"
	"github.com/hublinkchat/hublink/pkg/model"
	"github.com/hublinkchat/hublink/pkg/registry"
	"github.com/hublinkchat/hublink/pkg/session"
)

// fixture wires a Registry, a Session Table, an Account Store, and one
// admitted Session behind a net.Pipe connection, mirroring the runtime
// wiring a real connection handler performs before reaching Dispatch.
type fixture struct {
	ctx        *command.CommandContext
	clientConn net.Conn
	reg        *registry.Registry
	table      *session.Table
	store      accounts.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := accounts.NewFileStore(filepath.Join(t.TempDir(), "accounts.db"))
	if err != nil {
		t.Fatalf("NewFileStore: unexpected error: %v", err)
	}
	if _, err := store.Create("alice", "secret", model.RoleUser); err != nil {
		t.Fatalf("Create alice: unexpected error: %v", err)
	}
	if _, err := store.Create("root", "toor", model.RoleAdmin); err != nil {
		t.Fatalf("Create root: unexpected error: %v", err)
	}

	reg := registry.New()
	table := session.NewTable()

	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() { _ = clientConn.Close() })
	t.Cleanup(func() { _ = serverConn.Close() })

	account, err := store.Authenticate("alice", "secret")
	if err != nil {
		t.Fatalf("Authenticate: unexpected error: %v", err)
	}
	sess := table.Admit(serverConn, serverConn.RemoteAddr(), account, reg)

	var shutdown atomic.Bool
	return &fixture{
		ctx: &command.CommandContext{
			Session:      sess,
			Registry:     reg,
			Table:        table,
			Accounts:     store,
			Conn:         serverConn,
			UploadsDir:   t.TempDir(),
			HelpText:     "help text",
			CreditsText:  "credits text",
			ShutdownFlag: &shutdown,
		},
		clientConn: clientConn,
		reg:        reg,
		table:      table,
		store:      store,
	}
}

func TestDispatchPing(t *testing.T) {
	f := newFixture(t)
	reply, err := command.Dispatch(f.ctx, command.Command{Kind: command.KindPing})
	if err != nil {
		t.Fatalf("Dispatch: unexpected error: %v", err)
	}
	if reply != "pong" {
		t.Fatalf("Dispatch(@ping): want %q, got %q", "pong", reply)
	}
}

func TestDispatchHelpAndCredits(t *testing.T) {
	f := newFixture(t)
	if reply, _ := command.Dispatch(f.ctx, command.Command{Kind: command.KindHelp}); reply != "help text" {
		t.Fatalf("Dispatch(@help): got %q", reply)
	}
	if reply, _ := command.Dispatch(f.ctx, command.Command{Kind: command.KindCredits}); reply != "credits text" {
		t.Fatalf("Dispatch(@credits): got %q", reply)
	}
}

func TestDispatchChatBroadcastsToChannel(t *testing.T) {
	f := newFixture(t)
	done := make(chan string, 1)
	go func() {
		r := bufio.NewReader(f.clientConn)
		line, _ := r.ReadString(0)
		done <- strings.TrimSuffix(line, "\x00")
	}()

	reply, err := command.Dispatch(f.ctx, command.Command{Kind: command.KindChat, Args: "hello"})
	if err != nil {
		t.Fatalf("Dispatch: unexpected error: %v", err)
	}
	if reply != "" {
		t.Fatalf("Dispatch(chat): want empty direct reply, got %q", reply)
	}

	got := <-done
	want := "Hub-alice: hello"
	if got != want {
		t.Fatalf("broadcast: want %q, got %q", want, got)
	}
}

func TestDispatchMsgUnknownRecipient(t *testing.T) {
	f := newFixture(t)
	reply, err := command.Dispatch(f.ctx, command.Command{Kind: command.KindMsg, Args: "bob hi there"})
	if err != nil {
		t.Fatalf("Dispatch: unexpected error: %v", err)
	}
	want := "Utilisateur 'bob' introuvable ou non connecte."
	if reply != want {
		t.Fatalf("Dispatch(@msg): want %q, got %q", want, reply)
	}
}

func TestDispatchConnectBadPassword(t *testing.T) {
	f := newFixture(t)
	reply, err := command.Dispatch(f.ctx, command.Command{Kind: command.KindConnect, Args: "alice wrongpass"})
	if err != nil {
		t.Fatalf("Dispatch: unexpected error: %v", err)
	}
	if reply != "Mot de passe incorrect." {
		t.Fatalf("Dispatch(@connect): got %q", reply)
	}
}

func TestDispatchConnectSuccessRebindsSession(t *testing.T) {
	f := newFixture(t)
	reply, err := command.Dispatch(f.ctx, command.Command{Kind: command.KindConnect, Args: "root toor"})
	if err != nil {
		t.Fatalf("Dispatch: unexpected error: %v", err)
	}
	if reply != "Connexion reussie." {
		t.Fatalf("Dispatch(@connect): got %q", reply)
	}
	if f.ctx.Session.Username != "root" || f.ctx.Session.Role != model.RoleAdmin {
		t.Fatalf("Rebind: session not updated, got username=%s role=%v", f.ctx.Session.Username, f.ctx.Session.Role)
	}
	if f.table.FindByUsername("root") != f.ctx.Session {
		t.Fatalf("Rebind: byUsername index not updated")
	}
}

func TestDispatchCreateAndLeave(t *testing.T) {
	f := newFixture(t)
	drainChannelAnnouncements(t, f.clientConn, 1)

	if reply, err := command.Dispatch(f.ctx, command.Command{Kind: command.KindCreate, Args: "lounge 2"}); err != nil || reply != "" {
		t.Fatalf("Dispatch(@create): reply=%q err=%v", reply, err)
	}
	if f.ctx.Session.Channel != "lounge" {
		t.Fatalf("@create: want session in lounge, got %s", f.ctx.Session.Channel)
	}

	if reply, err := command.Dispatch(f.ctx, command.Command{Kind: command.KindLeave}); err != nil || reply != "" {
		t.Fatalf("Dispatch(@leave): reply=%q err=%v", reply, err)
	}
	if f.ctx.Session.Channel != model.HubName {
		t.Fatalf("@leave: want session back in Hub, got %s", f.ctx.Session.Channel)
	}
}

func TestDispatchJoinChannelFull(t *testing.T) {
	f := newFixture(t)
	drainChannelAnnouncements(t, f.clientConn, 1)

	ch, err := f.reg.Create("tiny", 1, 0, false)
	if err != nil {
		t.Fatalf("Create: unexpected error: %v", err)
	}
	if err := f.reg.Join(ch.Name(), 999); err != nil {
		t.Fatalf("Join (filler session): unexpected error: %v", err)
	}

	reply, err := command.Dispatch(f.ctx, command.Command{Kind: command.KindJoin, Args: "tiny"})
	if err != nil {
		t.Fatalf("Dispatch: unexpected error: %v", err)
	}
	if reply != "This channel is full, you cannot join it" {
		t.Fatalf("Dispatch(@join): got %q", reply)
	}
}

func TestDispatchJoinUnknownChannel(t *testing.T) {
	f := newFixture(t)
	reply, err := command.Dispatch(f.ctx, command.Command{Kind: command.KindJoin, Args: "nope"})
	if err != nil {
		t.Fatalf("Dispatch: unexpected error: %v", err)
	}
	if reply != "Le salon 'nope' n'existe pas." {
		t.Fatalf("Dispatch(@join): got %q", reply)
	}
}

func TestDispatchShutdownDeniedForUser(t *testing.T) {
	f := newFixture(t)
	reply, err := command.Dispatch(f.ctx, command.Command{Kind: command.KindShutdown})
	if err != nil {
		t.Fatalf("Dispatch: unexpected error: %v", err)
	}
	if reply != "Commande reservee a l'admin." {
		t.Fatalf("Dispatch(@shutdown): got %q", reply)
	}
	if f.ctx.ShutdownFlag.Load() {
		t.Fatalf("@shutdown: flag must not be set for a non-admin")
	}
}

func TestDispatchShutdownGrantedForAdmin(t *testing.T) {
	f := newFixture(t)
	f.ctx.Session.Role = model.RoleAdmin

	reply, err := command.Dispatch(f.ctx, command.Command{Kind: command.KindShutdown})
	if err != nil {
		t.Fatalf("Dispatch: unexpected error: %v", err)
	}
	if reply != "Arret du serveur..." {
		t.Fatalf("Dispatch(@shutdown): got %q", reply)
	}
	if !f.ctx.ShutdownFlag.Load() {
		t.Fatalf("@shutdown: flag must be set for an admin")
	}
}

func TestDispatchUploadRejectsInvalidFilename(t *testing.T) {
	f := newFixture(t)
	reply, err := command.Dispatch(f.ctx, command.Command{Kind: command.KindUpload, Args: "../../etc/passwd"})
	if err != nil {
		t.Fatalf("Dispatch: unexpected error: %v", err)
	}
	if reply != "Nom de fichier invalide." {
		t.Fatalf("Dispatch(@upload): got %q", reply)
	}
}

func TestDispatchDownloadMissingFile(t *testing.T) {
	f := newFixture(t)
	done := make(chan error, 1)
	go func() {
		_, err := command.Dispatch(f.ctx, command.Command{Kind: command.KindDownload, Args: "ghost.bin"})
		done <- err
	}()
	if err := <-done; err != nil {
		t.Fatalf("Dispatch(@download): unexpected error: %v", err)
	}
}

// drainChannelAnnouncements reads and discards up to 4*n NUL-terminated
// lines from conn in the background so that join/create/leave broadcasts targeting
// the fixture's own session never block the command under test.
func drainChannelAnnouncements(t *testing.T, conn net.Conn, n int) {
	t.Helper()
	r := bufio.NewReader(conn)
	go func() {
		for i := 0; i < n*4; i++ {
			if _, err := r.ReadString(0); err != nil {
				return
			}
		}
	}()
}
