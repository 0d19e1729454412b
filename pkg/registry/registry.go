// Package registry implements the Channel Registry of spec.md §4.2: the set
// of channels, their ordered member lists, and the join/leave/disconnect
// operations that keep a session in exactly one channel at a time.
package registry

import (
	"errors"
	"sync"

	"github.com/hublinkchat/hublink/pkg/model"
)

var (
	ErrNameTaken       = errors.New("registry: channel name already taken")
	ErrNotFound        = errors.New("registry: channel not found")
	ErrHubProtected    = errors.New("registry: Hub cannot be removed")
	ErrFull            = errors.New("registry: channel is full")
	ErrAlreadyMember   = errors.New("registry: session is already a member of this channel")
	ErrNotInAnyChannel = errors.New("registry: session is not a member of any channel")
	ErrCannotLeaveHub  = errors.New("registry: cannot leave Hub")
)

// ChannelInfo is a snapshot row returned by ListChannels.
type ChannelInfo struct {
	Name     string
	Size     int
	Capacity int
}

// Registry owns every Channel and the current channel-name assignment for
// every session id. Lock order is always Registry → Channel (spec.md §5),
// never the reverse.
type Registry struct {
	mu              sync.Mutex
	channels        map[string]*Channel
	sessionChannel  map[uint64]string // session id -> channel name
	autoDeleteEmpty bool
}

// New creates a Registry pre-populated with the mandatory, permanent,
// unlimited-capacity "Hub" channel (spec.md §3).
func New() *Registry {
	r := &Registry{
		channels:       make(map[string]*Channel),
		sessionChannel: make(map[uint64]string),
	}
	r.channels[model.HubName] = newChannel(model.HubName, model.CapacityUnlimited)
	return r
}

// Get returns the named channel, or nil if it does not exist.
func (r *Registry) Get(name string) *Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channels[name]
}

// Create validates and inserts a new channel, atomically placing founder
// as its first member when hasFounder is true. Creating a channel named "Hub"
// always fails with ErrNameTaken since Hub already exists at startup.
func (r *Registry) Create(name string, capacity int, founder uint64, hasFounder bool) (*Channel, error) {
	if err := model.ValidateChannelName(name); err != nil {
		return nil, err
	}
	if err := model.ValidateCapacity(capacity); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.channels[name]; exists {
		return nil, ErrNameTaken
	}

	ch := newChannel(name, capacity)
	if hasFounder {
		ch.appendLocked(founder)
		if prevName, ok := r.sessionChannel[founder]; ok {
			if prev, ok := r.channels[prevName]; ok {
				prev.mu.Lock()
				prev.removeLocked(founder)
				prev.mu.Unlock()
			}
		}
		r.sessionChannel[founder] = name
	}
	r.channels[name] = ch
	return ch, nil
}

// Remove deletes a channel. Hub can never be removed; any session still
// assigned to the removed channel is left without a channel assignment
// (the caller, normally the command dispatcher, is expected not to allow
// removal of an occupied channel in ordinary operation, but the registry
// itself does not refuse it beyond protecting Hub).
func (r *Registry) Remove(name string) error {
	if name == model.HubName {
		return ErrHubProtected
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.channels[name]; !exists {
		return ErrNotFound
	}
	delete(r.channels, name)
	for sid, ch := range r.sessionChannel {
		if ch == name {
			delete(r.sessionChannel, sid)
		}
	}
	return nil
}

// Join moves a session into the named channel, removing it from its
// previous channel (if any) within the same critical section so that an
// observer never sees the session absent from every channel or present in
// two (spec.md §4.2, §5).
func (r *Registry) Join(name string, sessionID uint64) error {
	r.mu.Lock()

	target, ok := r.channels[name]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}

	prevName, hadPrev := r.sessionChannel[sessionID]
	if hadPrev && prevName == name {
		r.mu.Unlock()
		return ErrAlreadyMember
	}

	target.mu.Lock()
	if target.fullLocked() {
		target.mu.Unlock()
		r.mu.Unlock()
		return ErrFull
	}
	target.appendLocked(sessionID)
	target.mu.Unlock()

	if hadPrev {
		if prev, ok := r.channels[prevName]; ok {
			prev.mu.Lock()
			prev.removeLocked(sessionID)
			prev.mu.Unlock()
		}
	}
	r.sessionChannel[sessionID] = name
	r.mu.Unlock()

	if hadPrev {
		r.maybeScheduleAutoDelete(prevName)
	}
	return nil
}

// Leave returns a session to Hub. Leaving Hub itself is forbidden — "leave"
// means "return to the lobby", not "go nowhere" (spec.md §4.2).
func (r *Registry) Leave(sessionID uint64) (previous string, err error) {
	r.mu.Lock()

	prevName, hadPrev := r.sessionChannel[sessionID]
	if !hadPrev {
		r.mu.Unlock()
		return "", ErrNotInAnyChannel
	}
	if prevName == model.HubName {
		r.mu.Unlock()
		return "", ErrCannotLeaveHub
	}

	hub := r.channels[model.HubName]
	hub.mu.Lock()
	hub.appendLocked(sessionID)
	hub.mu.Unlock()

	if prev, ok := r.channels[prevName]; ok {
		prev.mu.Lock()
		prev.removeLocked(sessionID)
		prev.mu.Unlock()
	}
	r.sessionChannel[sessionID] = model.HubName
	r.mu.Unlock()

	r.maybeScheduleAutoDelete(prevName)
	return prevName, nil
}

// Disconnect removes a session from whichever channel it occupies,
// without placing it anywhere else. Called from the connection teardown
// path (spec.md §4.2, invariant 6).
func (r *Registry) Disconnect(sessionID uint64) (previous string) {
	r.mu.Lock()

	prevName, hadPrev := r.sessionChannel[sessionID]
	if !hadPrev {
		r.mu.Unlock()
		return ""
	}
	delete(r.sessionChannel, sessionID)
	if prev, ok := r.channels[prevName]; ok {
		prev.mu.Lock()
		prev.removeLocked(sessionID)
		prev.mu.Unlock()
	}
	r.mu.Unlock()

	r.maybeScheduleAutoDelete(prevName)
	return prevName
}

// ChannelOf returns the name of the channel a session currently occupies,
// or "" if it is not tracked (not yet joined, or already disconnected).
func (r *Registry) ChannelOf(sessionID uint64) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionChannel[sessionID]
}

// MembersOf returns a snapshot of session ids in the named channel.
func (r *Registry) MembersOf(name string) ([]uint64, error) {
	ch := r.Get(name)
	if ch == nil {
		return nil, ErrNotFound
	}
	return ch.Members(), nil
}

// ListChannels returns a snapshot of every channel's name, size, and
// capacity, in no particular order.
func (r *Registry) ListChannels() []ChannelInfo {
	r.mu.Lock()
	snapshot := make([]*Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		snapshot = append(snapshot, ch)
	}
	r.mu.Unlock()

	out := make([]ChannelInfo, 0, len(snapshot))
	for _, ch := range snapshot {
		out = append(out, ChannelInfo{Name: ch.Name(), Size: ch.Size(), Capacity: ch.Capacity()})
	}
	return out
}
