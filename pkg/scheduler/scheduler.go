// Package scheduler runs HubLink's periodic maintenance jobs on top of
// robfig/cron/v3: a timed flush of the Account Store and Channel Registry,
// and cleanup of upload temp files (pkg/transfer's ".<uuid>.part" staging
// files) left behind when the process stopped in the middle of an upload.
package scheduler

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hublinkchat/hublink/pkg/accounts"
	"github.com/hublinkchat/hublink/pkg/registry"
)

// staleTempAge is how long a ".<uuid>.part" file may sit in the uploads
// directory before it's considered orphaned.
const staleTempAge = time.Hour

// Scheduler owns a cron instance running HubLink's periodic jobs.
type Scheduler struct {
	cron *cron.Cron

	accounts   accounts.Store
	registry   *registry.Registry
	uploadsDir string
	storePath  string
}

// New constructs a Scheduler. Call Start to begin running jobs.
func New(store accounts.Store, reg *registry.Registry, uploadsDir, storePath string) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		accounts:   store,
		registry:   reg,
		uploadsDir: uploadsDir,
		storePath:  storePath,
	}
}

// Start registers the persist and cleanup jobs and starts the cron
// scheduler in its own goroutine. interval controls the persist job's
// cadence (spec.md's PersistInterval); the temp-file sweep always runs
// hourly regardless of interval.
func (s *Scheduler) Start(interval time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if _, err := s.cron.AddFunc("@every "+interval.String(), s.persist); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@hourly", s.sweepOrphanedUploads); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop waits for any in-flight job to finish, then stops the scheduler.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunSweepNow runs the orphaned-upload sweep synchronously, outside its
// normal hourly schedule. Exposed for tests and for an admin-triggered
// cleanup without waiting on the cron cadence.
func (s *Scheduler) RunSweepNow() {
	s.sweepOrphanedUploads()
}

// persist flushes the Account Store and saves the Channel Registry, the
// same two calls Run's shutdown path makes, run here on a timer so an
// unclean exit loses at most one interval's worth of state.
func (s *Scheduler) persist() {
	if err := s.accounts.Flush(); err != nil {
		slog.Error("scheduler: flush account store", "err", err)
	}
	if err := s.registry.Save(s.storePath); err != nil {
		slog.Error("scheduler: save channel registry", "err", err)
	}
	slog.Debug("scheduler: persisted account store and channel registry")
}

// sweepOrphanedUploads removes "." + uuid + ".part" staging files older
// than staleTempAge. pkg/transfer.Upload deletes its own staging file
// whenever it returns, including after a client disconnect, so such files
// remain only when the process itself stopped mid-upload.
func (s *Scheduler) sweepOrphanedUploads() {
	entries, err := os.ReadDir(s.uploadsDir)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("scheduler: read uploads dir", "dir", s.uploadsDir, "err", err)
		}
		return
	}

	now := time.Now()
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".part") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < staleTempAge {
			continue
		}
		path := filepath.Join(s.uploadsDir, name)
		if err := os.Remove(path); err != nil {
			slog.Warn("scheduler: remove orphaned upload temp file", "path", path, "err", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		slog.Info("scheduler: swept orphaned upload temp files", "count", removed)
	}
}
