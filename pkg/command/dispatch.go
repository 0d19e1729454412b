package command

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/hublinkchat/hublink/pkg/accounts"
	"github.com/hublinkchat/hublink/pkg/model"
	"github.com/hublinkchat/hublink/pkg/protocol"
	"github.com/hublinkchat/hublink/pkg/rbac"
	"github.com/hublinkchat/hublink/pkg/registry"
	"github.com/hublinkchat/hublink/pkg/session"
	"github.com/hublinkchat/hublink/pkg/transfer"
)

// ErrInvalidFilename is returned by filename-bearing commands when the
// name contains ".." or a path separator (spec.md §4.4).
var ErrInvalidFilename = errors.New("command: invalid filename")

const commandCatalog = `Commandes disponibles:
@command - Affiche cette liste
@help - Affiche l'aide
@credits - Affiche les credits
@ping - Repond 'pong'
@msg <user> <text> - Message prive
@connect <user> <pwd> - Connexion
@create <name> [capacity] - Cree un salon et y entre
@join <name> - Rejoint un salon
@leave - Retourne au Hub
@upload <filename> - Envoie un fichier
@download <filename> - Recupere un fichier
@shutdown - Eteint le serveur (ADMIN)`

// CommandContext bundles everything a handler needs: the issuing session,
// the shared Channel Registry, Session Table, and Account Store, the raw
// connection (for the file-transfer subprotocol, which must take over the
// byte stream directly), and server-wide text/config (spec.md §4.4).
type CommandContext struct {
	Session    *model.Session
	Registry   *registry.Registry
	Table      *session.Table
	Accounts   accounts.Store
	Conn       net.Conn
	UploadsDir string

	HelpText    string
	CreditsText string

	// ShutdownFlag is set by a successful @shutdown; the connection
	// runtime's accept loop polls it (spec.md §4.6).
	ShutdownFlag *atomic.Bool
}

// Dispatch executes cmd against ctx and returns the line to send back to
// the issuing session, if any. A non-nil error means the connection must
// be torn down (an IOError per spec.md §7); all other failures are
// reported as a reply line and the session continues.
func Dispatch(ctx *CommandContext, cmd Command) (reply string, err error) {
	switch cmd.Kind {
	case KindChat:
		return dispatchChat(ctx, cmd)
	case KindCommand:
		return commandCatalog, nil
	case KindHelp:
		return ctx.HelpText, nil
	case KindCredits:
		return ctx.CreditsText, nil
	case KindPing:
		return "pong", nil
	case KindMsg:
		return dispatchMsg(ctx, cmd)
	case KindConnect:
		return dispatchConnect(ctx, cmd)
	case KindCreate:
		return dispatchCreate(ctx, cmd)
	case KindJoin:
		return dispatchJoin(ctx, cmd)
	case KindLeave:
		return dispatchLeave(ctx)
	case KindUpload:
		return dispatchUpload(ctx, cmd)
	case KindDownload:
		return dispatchDownload(ctx, cmd)
	case KindShutdown:
		return dispatchShutdown(ctx)
	default:
		return fmt.Sprintf("Commande inconnue: %s", cmd.Args), nil
	}
}

func dispatchChat(ctx *CommandContext, cmd Command) (string, error) {
	line := fmt.Sprintf("%s-%s: %s", ctx.Session.Channel, ctx.Session.Username, cmd.Args)
	broadcastToChannel(ctx, ctx.Session.Channel, line)
	return "", nil
}

func dispatchMsg(ctx *CommandContext, cmd Command) (string, error) {
	parts := strings.SplitN(cmd.Args, " ", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "Usage : @msg <user> <message>", nil
	}
	recipientName, text := parts[0], parts[1]

	recipient := ctx.Table.FindByUsername(recipientName)
	if recipient == nil {
		return fmt.Sprintf("Utilisateur '%s' introuvable ou non connecte.", recipientName), nil
	}
	if err := protocol.WriteServerLine(recipient.Conn, fmt.Sprintf("[prive] %s: %s", ctx.Session.Username, text)); err != nil {
		return "", fmt.Errorf("command: deliver private message: %w", err)
	}
	return "", nil
}

func dispatchConnect(ctx *CommandContext, cmd Command) (string, error) {
	parts := strings.SplitN(cmd.Args, " ", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "Usage : @connect <username> <password>", nil
	}
	username, password := parts[0], parts[1]

	account, err := ctx.Accounts.Authenticate(username, password)
	switch {
	case errors.Is(err, accounts.ErrNotFound):
		return "Nom d'utilisateur non trouve.", nil
	case errors.Is(err, accounts.ErrBadCredentials):
		return "Mot de passe incorrect.", nil
	case err != nil:
		return "", fmt.Errorf("command: authenticate: %w", err)
	}

	ctx.Table.Rebind(ctx.Session, account.Username, account.Role)
	return "Connexion reussie.", nil
}

func dispatchCreate(ctx *CommandContext, cmd Command) (string, error) {
	fields := strings.Fields(cmd.Args)
	if len(fields) == 0 {
		return "Usage : @create <name> [capacity]", nil
	}

	name := fields[0]
	capacity := model.CapacityUnlimited
	if len(fields) > 1 {
		parsed, err := strconv.Atoi(fields[1])
		if err != nil {
			return "Capacite invalide.", nil
		}
		capacity = parsed
	}

	previous := ctx.Session.Channel
	ch, err := ctx.Registry.Create(name, capacity, ctx.Session.ID, true)
	switch {
	case errors.Is(err, registry.ErrNameTaken):
		return fmt.Sprintf("Le salon '%s' existe deja.", name), nil
	case errors.Is(err, model.ErrChannelNameEmpty), errors.Is(err, model.ErrChannelNameTooLong), errors.Is(err, model.ErrChannelNameDelimiter):
		return "Nom de salon invalide.", nil
	case errors.Is(err, model.ErrChannelCapacityBadLen):
		return "Capacite invalide.", nil
	case err != nil:
		return "", fmt.Errorf("command: create channel: %w", err)
	}

	ctx.Session.Channel = name
	announceDeparture(ctx, previous)
	announceArrival(ctx, ch)
	return "", nil
}

func dispatchJoin(ctx *CommandContext, cmd Command) (string, error) {
	name := strings.TrimSpace(cmd.Args)
	if name == "" {
		return "Usage : @join <name>", nil
	}

	previous := ctx.Session.Channel
	if err := ctx.Registry.Join(name, ctx.Session.ID); err != nil {
		switch {
		case errors.Is(err, registry.ErrNotFound):
			return fmt.Sprintf("Le salon '%s' n'existe pas.", name), nil
		case errors.Is(err, registry.ErrFull):
			return "This channel is full, you cannot join it", nil
		case errors.Is(err, registry.ErrAlreadyMember):
			return fmt.Sprintf("Vous etes deja dans le salon '%s'.", name), nil
		default:
			return "", fmt.Errorf("command: join channel: %w", err)
		}
	}

	ctx.Session.Channel = name
	announceDeparture(ctx, previous)
	announceArrival(ctx, ctx.Registry.Get(name))
	return "", nil
}

func dispatchLeave(ctx *CommandContext) (string, error) {
	previous, err := ctx.Registry.Leave(ctx.Session.ID)
	switch {
	case errors.Is(err, registry.ErrCannotLeaveHub):
		return "Vous ne pouvez pas quitter Hub.", nil
	case errors.Is(err, registry.ErrNotInAnyChannel):
		return "", fmt.Errorf("command: leave: %w", err)
	case err != nil:
		return "", fmt.Errorf("command: leave channel: %w", err)
	}

	ctx.Session.Channel = model.HubName
	announceDeparture(ctx, previous)
	announceArrival(ctx, ctx.Registry.Get(model.HubName))
	return "", nil
}

func dispatchUpload(ctx *CommandContext, cmd Command) (string, error) {
	filename := strings.TrimSpace(cmd.Args)
	if err := validateFilename(filename); err != nil {
		return "Nom de fichier invalide.", nil
	}
	if err := transfer.Upload(ctx.Conn, ctx.UploadsDir, filename); err != nil {
		if errors.Is(err, transfer.ErrProtocolViolation) {
			return "", err
		}
		return "", fmt.Errorf("command: upload %s: %w", filename, err)
	}
	return "Fichier recu avec succes", nil
}

func dispatchDownload(ctx *CommandContext, cmd Command) (string, error) {
	filename := strings.TrimSpace(cmd.Args)
	if err := validateFilename(filename); err != nil {
		return "Nom de fichier invalide.", nil
	}
	if err := transfer.Download(ctx.Conn, ctx.UploadsDir, filename); err != nil {
		if errors.Is(err, transfer.ErrFileNotFound) {
			return fmt.Sprintf("Fichier '%s' introuvable.", filename), nil
		}
		if errors.Is(err, transfer.ErrProtocolViolation) {
			return "", err
		}
		return "", fmt.Errorf("command: download %s: %w", filename, err)
	}
	return "", nil
}

func dispatchShutdown(ctx *CommandContext) (string, error) {
	if !rbac.HasPermission(ctx.Session.Role, rbac.PermShutdown) {
		return "Commande reservee a l'admin.", nil
	}
	ctx.ShutdownFlag.Store(true)
	return "Arret du serveur...", nil
}

// validateFilename rejects the two-byte sequence ".." or any path
// separator (spec.md §4.4), matching and extending the original C
// upload/download's own `strstr(filename, "..")` guard.
func validateFilename(filename string) error {
	if filename == "" || strings.Contains(filename, "..") || strings.ContainsAny(filename, "/\\") {
		return ErrInvalidFilename
	}
	return nil
}

func announceArrival(ctx *CommandContext, ch *registry.Channel) {
	msg := fmt.Sprintf("%s has joined the channel %s (%d/%s)",
		ctx.Session.Username, ch.Name(), ch.Size(), model.CapacityDisplay(ch.Capacity()))
	broadcastToChannel(ctx, ch.Name(), msg)
}

func announceDeparture(ctx *CommandContext, channelName string) {
	ch := ctx.Registry.Get(channelName)
	if ch == nil {
		return
	}
	msg := fmt.Sprintf("%s has left the channel %s (%d/%s)",
		ctx.Session.Username, ch.Name(), ch.Size(), model.CapacityDisplay(ch.Capacity()))
	broadcastToChannel(ctx, ch.Name(), msg)
}

func broadcastToChannel(ctx *CommandContext, channelName string, message string) {
	members, err := ctx.Registry.MembersOf(channelName)
	if err != nil {
		return
	}
	data, err := protocol.EncodeServerLine(message)
	if err != nil {
		data, _ = protocol.EncodeServerLine(message[:protocol.MaxMessageSize-1])
	}
	for _, id := range members {
		target := ctx.Table.FindBySessionID(id)
		if target == nil {
			continue
		}
		if _, err := target.Conn.Write(data); err != nil {
			continue
		}
	}
}
