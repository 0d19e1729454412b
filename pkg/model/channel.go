package model

import (
	"errors"
	"strconv"
	"strings"
)

// CapacityUnlimited is the sentinel capacity value for channels with no
// member limit (always true of Hub; optionally true of created channels).
const CapacityUnlimited = -1

// HubName is the mandatory lobby channel every authenticated session
// belongs to unless it has joined somewhere else.
const HubName = "Hub"

// MaxChannelNameLength bounds persisted channel names.
const MaxChannelNameLength = 64

var (
	ErrChannelNameEmpty      = errors.New("channel name must not be empty")
	ErrChannelNameTooLong    = errors.New("channel name too long")
	ErrChannelNameDelimiter  = errors.New("channel name must not contain spaces or newlines")
	ErrChannelCapacityBadLen = errors.New("channel capacity must be >= 1 or unlimited")
)

// ValidateChannelName enforces spec.md §4.2: non-empty, free of the
// delimiter byte used by the persistence format (space or newline).
func ValidateChannelName(name string) error {
	if name == "" {
		return ErrChannelNameEmpty
	}
	if len(name) > MaxChannelNameLength {
		return ErrChannelNameTooLong
	}
	if strings.ContainsAny(name, " \t\r\n") {
		return ErrChannelNameDelimiter
	}
	return nil
}

// ValidateCapacity enforces spec.md §4.2: >= 1, or CapacityUnlimited.
func ValidateCapacity(capacity int) error {
	if capacity == CapacityUnlimited {
		return nil
	}
	if capacity < 1 {
		return ErrChannelCapacityBadLen
	}
	return nil
}

// ChannelDefinition is the persisted shape of a channel: {name, capacity}.
// Membership is never persisted (spec.md §3).
type ChannelDefinition struct {
	Name     string
	Capacity int
}

// CapacityDisplay renders a capacity the way spec.md §4.4 announcements do:
// the literal sentinel for unlimited, the number otherwise.
func CapacityDisplay(capacity int) string {
	if capacity == CapacityUnlimited {
		return "-1"
	}
	return strconv.Itoa(capacity)
}
