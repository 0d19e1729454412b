package registry

import (
	"log/slog"
	"time"

	"github.com/hublinkchat/hublink/pkg/model"
)

// autoDeleteGrace is the window an emptied channel is given before it's
// actually removed, so a member who drops and immediately rejoins doesn't
// lose the channel out from under them. Grounded on gospeak's
// cleanupTempChannel (pkg/server/control.go), which uses the same 5-minute
// window for its temp-channel auto-deletion.
var autoDeleteGrace = 5 * time.Minute

// SetAutoDeleteEmpty enables or disables best-effort deletion of non-Hub
// channels that become empty, per SPEC_FULL.md's §9 resolution (off by
// default — channels are permanent unless an operator opts in).
func (r *Registry) SetAutoDeleteEmpty(enabled bool) {
	r.mu.Lock()
	r.autoDeleteEmpty = enabled
	r.mu.Unlock()
}

// maybeScheduleAutoDelete starts the grace-period countdown for name if
// auto-delete is enabled, name isn't Hub, and the channel is currently
// empty. Safe to call unconditionally from Leave/Disconnect/Join.
func (r *Registry) maybeScheduleAutoDelete(name string) {
	if name == "" || name == model.HubName {
		return
	}
	r.mu.Lock()
	enabled := r.autoDeleteEmpty
	r.mu.Unlock()
	if !enabled {
		return
	}

	ch := r.Get(name)
	if ch == nil || ch.Size() > 0 {
		return
	}

	go func() {
		time.Sleep(autoDeleteGrace)

		ch := r.Get(name)
		if ch == nil || ch.Size() > 0 {
			return
		}
		if err := r.Remove(name); err != nil {
			if err != ErrNotFound {
				slog.Error("registry: auto-delete empty channel", "name", name, "err", err)
			}
			return
		}
		slog.Info("registry: auto-deleted empty channel", "name", name, "grace", autoDeleteGrace)
	}()
}
