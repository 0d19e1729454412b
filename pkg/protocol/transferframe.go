package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// ReadyToken is the ASCII token the client sends to tell the server it is
// ready to receive the file body (spec.md §4.5 step 4).
const ReadyToken = "READY"

// EndToken is the 7-byte trailer that follows a file body. Size-prefixed
// framing means the receiver never scans for it inside the payload — it
// only confirms the trailer once it has already read exactly the declared
// number of bytes (spec.md §9 REDESIGN FLAG).
const EndToken = "__END__"

// EncodeReadyToSend renders the download header of spec.md §4.5 step 3:
// `READY_TO_SEND:<filename>:<size>`.
func EncodeReadyToSend(filename string, size int64) string {
	return fmt.Sprintf("READY_TO_SEND:%s:%d", filename, size)
}

// DecodeReadyToSend parses a `READY_TO_SEND:<filename>:<size>` header. The
// size is taken from after the last ':', so a filename that itself
// contains ':' still decodes intact.
func DecodeReadyToSend(header string) (filename string, size int64, err error) {
	const prefix = "READY_TO_SEND:"
	if !strings.HasPrefix(header, prefix) {
		return "", 0, fmt.Errorf("protocol: malformed transfer header %q", header)
	}
	rest := header[len(prefix):]
	idx := strings.LastIndex(rest, ":")
	if idx < 0 {
		return "", 0, fmt.Errorf("protocol: malformed transfer header %q", header)
	}
	filename = rest[:idx]
	size, err = strconv.ParseInt(rest[idx+1:], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("protocol: malformed transfer size in %q: %w", header, err)
	}
	return filename, size, nil
}
