// Package protocol implements the Text Protocol Codec of spec.md §4.7:
// NUL-terminated server-to-client framing, newline-trimmed client-to-server
// lines, and the 2,000-byte message ceiling, plus the file-transfer header
// framing of §4.5.
package protocol

import (
	"errors"
	"fmt"
	"io"
)

// MaxMessageSize is the maximum inbound message size in bytes (spec.md
// §4.6). Oversized reads are truncated by the caller and logged.
const MaxMessageSize = 2000

// ErrMessageTooLarge is returned by EncodeServerLine when a reply itself
// would exceed MaxMessageSize once NUL-terminated. The 2,000-byte ceiling
// is specified for inbound traffic; this guards outbound replies built
// from unbounded input (e.g. echoing a long chat line back) against the
// same runaway growth.
var ErrMessageTooLarge = errors.New("protocol: message exceeds the maximum size")

// EncodeServerLine NUL-terminates a server-to-client message. The trailing
// NUL is part of the transmitted byte count (spec.md §4.7).
func EncodeServerLine(msg string) ([]byte, error) {
	if len(msg)+1 > MaxMessageSize {
		return nil, ErrMessageTooLarge
	}
	out := make([]byte, len(msg)+1)
	copy(out, msg)
	return out, nil
}

// WriteServerLine encodes and writes msg to w.
func WriteServerLine(w io.Writer, msg string) error {
	data, err := EncodeServerLine(msg)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("protocol: write: %w", err)
	}
	return nil
}

// TrimClientLine strips a trailing "\r\n" or "\n" (and any trailing NUL a
// client might send) from one raw read, per spec.md §4.7: "Lines from the
// client are taken verbatim up to (but not including) any trailing
// newline". It does not reassemble partial reads — the connection runtime
// treats each recv result as exactly one command (spec.md §4.6).
func TrimClientLine(raw []byte) string {
	n := len(raw)
	for n > 0 && (raw[n-1] == '\n' || raw[n-1] == '\r' || raw[n-1] == 0) {
		n--
	}
	return string(raw[:n])
}
