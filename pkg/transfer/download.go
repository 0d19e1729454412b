package transfer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/hublinkchat/hublink/pkg/protocol"
)

// ErrFileNotFound is returned by Download when the requested file does
// not exist under dir; the caller replies with an error line and returns
// to chat mode (spec.md §4.5 step 2).
var ErrFileNotFound = errors.New("transfer: file not found")

// Download sends <dir>/<filename> to conn following spec.md §4.5: header,
// wait for the client's READY token, exactly <size> bytes, the EndToken
// trailer, then a confirmation line.
func Download(conn net.Conn, dir string, filename string) error {
	path := filepath.Join(dir, filename)
	f, err := os.Open(path) //nolint:gosec // filename already validated by the command dispatcher
	if err != nil {
		if os.IsNotExist(err) {
			return ErrFileNotFound
		}
		return fmt.Errorf("transfer: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("transfer: stat %s: %w", path, err)
	}

	header := protocol.EncodeReadyToSend(filename, info.Size())
	if err := protocol.WriteServerLine(conn, header); err != nil {
		return fmt.Errorf("transfer: write header: %w", err)
	}

	ready := make([]byte, protocol.MaxMessageSize)
	n, err := conn.Read(ready)
	if err != nil {
		return fmt.Errorf("%w: waiting for READY: %v", ErrProtocolViolation, err)
	}
	if strings.TrimSpace(protocol.TrimClientLine(ready[:n])) != protocol.ReadyToken {
		return fmt.Errorf("%w: expected %q, got %q", ErrProtocolViolation, protocol.ReadyToken, ready[:n])
	}

	if _, err := io.CopyN(conn, f, info.Size()); err != nil {
		return fmt.Errorf("%w: short write of file body: %v", ErrProtocolViolation, err)
	}
	if _, err := conn.Write([]byte(protocol.EndToken)); err != nil {
		return fmt.Errorf("%w: writing trailer: %v", ErrProtocolViolation, err)
	}
	if err := protocol.WriteServerLine(conn, "Fichier envoye avec succes."); err != nil {
		return fmt.Errorf("transfer: write confirmation: %w", err)
	}

	slog.Info("transfer: download complete", "filename", filename, "size", info.Size())
	return nil
}
