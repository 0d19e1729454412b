// Package transfer implements the File Transfer Subprotocol of spec.md
// §4.5: upload and download take over the already-established connection
// for the duration of one transfer, then hand it back to line-oriented
// chat.
package transfer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/hublinkchat/hublink/pkg/protocol"
)

// ErrProtocolViolation covers any unexpected byte on the wire during a
// transfer: a malformed size announcement, a trailer that doesn't match
// EndToken, or a zero-byte read mid-payload (spec.md §4.5 edge cases).
// Callers treat it as an IOError: close the connection (spec.md §7).
var ErrProtocolViolation = errors.New("transfer: protocol violation")

// Upload receives a file over conn and writes it to <dir>/<filename>.
//
// The wire sequence: the client first sends one line giving the exact
// byte count, then exactly that many raw bytes, then the literal 7-byte
// trailer EndToken. The receiver reads exactly the declared count before
// checking the trailer — it never scans the payload for EndToken, which
// is what corrupted binary files containing that byte sequence in the
// original implementation (spec.md §9 REDESIGN FLAG). The client program
// that produces this framing is an external collaborator out of scope
// here (spec.md §1); this function only defines the server's half.
//
// The file is written to a UUID-named temporary file in dir and renamed
// into place only after a clean trailer, so a disconnect mid-upload never
// leaves a partial file under its real name.
func Upload(conn net.Conn, dir string, filename string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("transfer: create upload dir %s: %w", dir, err)
	}

	r := bufio.NewReader(conn)
	size, err := readSizeLine(r)
	if err != nil {
		return err
	}

	tmpName := filepath.Join(dir, "."+uuid.NewString()+".part")
	f, err := os.OpenFile(tmpName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("transfer: open temp file: %w", err)
	}
	defer func() {
		_ = f.Close()
		_ = os.Remove(tmpName) // no-op once renamed away
	}()

	// Read through r, not conn: bufio may already have buffered bytes of
	// the file body past the size-announcement line's newline.
	if _, err := io.CopyN(f, r, size); err != nil {
		return fmt.Errorf("%w: short read of file body: %v", ErrProtocolViolation, err)
	}

	trailer := make([]byte, len(protocol.EndToken))
	if _, err := io.ReadFull(r, trailer); err != nil {
		return fmt.Errorf("%w: missing trailer: %v", ErrProtocolViolation, err)
	}
	if string(trailer) != protocol.EndToken {
		return fmt.Errorf("%w: expected trailer %q, got %q", ErrProtocolViolation, protocol.EndToken, trailer)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("transfer: close temp file: %w", err)
	}

	finalName := filepath.Join(dir, filename)
	if err := os.Rename(tmpName, finalName); err != nil {
		return fmt.Errorf("transfer: rename into place: %w", err)
	}

	slog.Info("transfer: upload complete", "filename", filename, "size", size)
	return nil
}

// readSizeLine reads one newline-terminated decimal byte count. The
// transfer subprotocol reinterprets the stream as binary once this line
// is consumed, independent of the chat codec's single-recv-per-command
// assumption used outside a transfer.
func readSizeLine(r *bufio.Reader) (int64, error) {
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return 0, fmt.Errorf("%w: missing size announcement: %v", ErrProtocolViolation, err)
	}
	size, err := strconv.ParseInt(strings.TrimSpace(line), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid size announcement %q: %v", ErrProtocolViolation, line, err)
	}
	if size < 0 {
		return 0, fmt.Errorf("%w: negative size announcement %q", ErrProtocolViolation, line)
	}
	return size, nil
}
