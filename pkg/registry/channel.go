package registry

import (
	"sync"

	"github.com/hublinkchat/hublink/pkg/model"
)

// Channel is a named, capacity-bounded group of session ids. Membership is
// an ordered slice rather than a map so that `listChannels`/`membersOf`
// observe a stable join order (spec.md §3: "ordered member list").
//
// Channel carries its own mutex so that broadcasts into distinct channels
// never contend with each other; the Registry mutex guards only the
// top-level name→Channel map (spec.md §5 "Shared-resource policy").
type Channel struct {
	name     string
	capacity int // model.CapacityUnlimited for unlimited

	mu      sync.Mutex
	members []uint64
}

func newChannel(name string, capacity int) *Channel {
	return &Channel{name: name, capacity: capacity}
}

// Name returns the channel's name. Immutable after creation.
func (c *Channel) Name() string {
	return c.name
}

// Capacity returns the channel's configured capacity.
func (c *Channel) Capacity() int {
	return c.capacity
}

// Size returns the current member count.
func (c *Channel) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.members)
}

// Members returns a snapshot of the current member session ids.
func (c *Channel) Members() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]uint64, len(c.members))
	copy(out, c.members)
	return out
}

// fullLocked reports whether the channel cannot accept another member. Hub
// (model.CapacityUnlimited) is never full.
func (c *Channel) fullLocked() bool {
	if c.capacity == model.CapacityUnlimited {
		return false
	}
	return len(c.members) >= c.capacity
}

func (c *Channel) containsLocked(sessionID uint64) bool {
	for _, id := range c.members {
		if id == sessionID {
			return true
		}
	}
	return false
}

func (c *Channel) appendLocked(sessionID uint64) {
	c.members = append(c.members, sessionID)
}

func (c *Channel) removeLocked(sessionID uint64) {
	for i, id := range c.members {
		if id == sessionID {
			c.members = append(c.members[:i], c.members[i+1:]...)
			return
		}
	}
}
