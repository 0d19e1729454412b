// Package command implements the Command Dispatcher of spec.md §4.4: it
// parses one inbound text line into a command variant and executes it
// against a Session, the Channel Registry, the Session Table, and the
// Account Store.
package command

import "strings"

// Kind identifies which command (or plain chat) a line names.
type Kind int

const (
	KindChat Kind = iota
	KindCommand
	KindHelp
	KindCredits
	KindPing
	KindMsg
	KindConnect
	KindCreate
	KindJoin
	KindLeave
	KindUpload
	KindDownload
	KindShutdown
	KindUnknown
)

// Command is one parsed inbound line. Args holds whatever followed the
// keyword, trimmed, unsplit — callers that need positional arguments
// split Args themselves (spec.md §4.4's commands take differently-shaped
// argument lists, e.g. @msg's trailing text may itself contain spaces).
type Command struct {
	Kind Kind
	Args string
}

// keywords is checked in this order; a line is recognised as the first
// keyword it case-insensitively starts with, matching the original C
// `parseCommand`'s `strncasecmp` chain (command.c).
var keywords = []struct {
	prefix string
	kind   Kind
}{
	{"@command", KindCommand},
	{"@help", KindHelp},
	{"@credits", KindCredits},
	{"@ping", KindPing},
	{"@msg", KindMsg},
	{"@connect", KindConnect},
	{"@create", KindCreate},
	{"@join", KindJoin},
	{"@leave", KindLeave},
	{"@upload", KindUpload},
	{"@download", KindDownload},
	{"@shutdown", KindShutdown},
}

// Parse classifies one inbound line. A line without a leading "@" is a
// chat message (spec.md §4.4).
func Parse(line string) Command {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "@") {
		return Command{Kind: KindChat, Args: trimmed}
	}

	lower := strings.ToLower(trimmed)
	for _, kw := range keywords {
		if strings.HasPrefix(lower, kw.prefix) {
			return Command{Kind: kw.kind, Args: strings.TrimSpace(trimmed[len(kw.prefix):])}
		}
	}
	return Command{Kind: KindUnknown, Args: trimmed}
}
