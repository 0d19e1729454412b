package server

import "time"

// Config holds every tunable the Connection Runtime needs. Field names and
// shape follow gospeak's server.Config, trimmed of the TLS/UDP voice plane
// spec.md §1's non-goals exclude, and extended with the persistence and
// file-transfer paths spec.md §6's on-disk layout names.
type Config struct {
	ListenAddr  string // TCP bind address, spec.md §4.6 default ":31473"
	MetricsAddr string // HTTP bind address for /metrics and /healthz; empty disables it

	StoreDriver      string // "file" | "sqlite"
	AccountStorePath string // save_users.txt-style path (line-oriented records), or a sqlite file
	ChannelStorePath string // save_channels.txt-style path (spec.md §6)

	UploadsDir   string // directory for received files, mode 0700 (spec.md §6)
	DownloadsDir string // client-side convention, documented only (spec.md §6)

	HelpFile    string // README.txt, streamed verbatim on @help (spec.md §6)
	CreditsFile string // Credits.txt, streamed verbatim on @credits (spec.md §6)

	AutoDeleteEmpty bool          // opt-in channel auto-deletion; default false per spec.md §9
	PersistInterval time.Duration // pkg/scheduler flush cadence

	AllowedOrigin string // unused network hardening placeholder: read from config, never consulted by the server
}

// DefaultConfig returns the configuration spec.md §4.6/§6 describes as
// fixed constants in the core design.
func DefaultConfig() Config {
	return Config{
		ListenAddr:  ":31473",
		MetricsAddr: ":9602",

		StoreDriver:      "file",
		AccountStorePath: "save_users.txt",
		ChannelStorePath: "save_channels.txt",

		UploadsDir:   "uploads",
		DownloadsDir: "downloads",

		HelpFile:    "README.txt",
		CreditsFile: "Credits.txt",

		PersistInterval: 5 * time.Minute,
	}
}
