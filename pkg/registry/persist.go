package registry

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hublinkchat/hublink/pkg/model"
)

// Save writes `<name> <capacity>` for every channel except Hub to path,
// the save_channels.txt layout of spec.md §6. Channels are recreated empty
// on Load; membership is never persisted.
func (r *Registry) Save(path string) error {
	r.mu.Lock()
	snapshot := make([]*Channel, 0, len(r.channels))
	for name, ch := range r.channels {
		if name == model.HubName {
			continue
		}
		snapshot = append(snapshot, ch)
	}
	r.mu.Unlock()

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("registry: write %s: %w", tmp, err)
	}

	w := bufio.NewWriter(f)
	for _, ch := range snapshot {
		if _, err := fmt.Fprintf(w, "%s %s\n", ch.Name(), model.CapacityDisplay(ch.Capacity())); err != nil {
			_ = f.Close()
			return fmt.Errorf("registry: write record: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("registry: flush: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("registry: close: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load recreates channels (empty) from path. Missing file is not an error;
// malformed lines are skipped with a log entry (spec.md §4.1's best-effort
// load policy applies equally here).
func (r *Registry) Load(path string) error {
	f, err := os.Open(path) //nolint:gosec // path comes from server config
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("registry: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			slog.Warn("registry: skipping malformed line", "file", path, "line", lineNo)
			continue
		}
		name := fields[0]
		capacity, err := strconv.Atoi(fields[1])
		if err != nil {
			slog.Warn("registry: skipping invalid capacity", "file", path, "line", lineNo, "err", err)
			continue
		}
		if _, err := r.Create(name, capacity, 0, false); err != nil {
			slog.Warn("registry: skipping channel", "file", path, "line", lineNo, "name", name, "err", err)
		}
	}
	return scanner.Err()
}

// channelYAML mirrors one entry of an exported/importable channel set.
// Grounded on gospeak's ChannelYAML (pkg/server/config.go), trimmed to the
// fields this registry actually models: no nesting, no descriptions.
type channelYAML struct {
	Name     string `yaml:"name"`
	Capacity int    `yaml:"capacity"`
}

type channelsYAML struct {
	Channels []channelYAML `yaml:"channels"`
}

// ExportYAML renders every non-Hub channel as a YAML document, an
// operator-friendly alternative to the flat save_channels.txt format.
func (r *Registry) ExportYAML() ([]byte, error) {
	infos := r.ListChannels()
	cfg := channelsYAML{Channels: make([]channelYAML, 0, len(infos))}
	for _, info := range infos {
		if info.Name == model.HubName {
			continue
		}
		cfg.Channels = append(cfg.Channels, channelYAML{Name: info.Name, Capacity: info.Capacity})
	}
	return yaml.Marshal(&cfg)
}

// ImportYAML creates (or skips, if already present) every channel named in
// a YAML document produced by ExportYAML or hand-authored by an operator.
func (r *Registry) ImportYAML(data []byte) error {
	var cfg channelsYAML
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("registry: parse channels yaml: %w", err)
	}
	for _, ch := range cfg.Channels {
		if _, err := r.Create(ch.Name, ch.Capacity, 0, false); err != nil {
			slog.Warn("registry: skipping channel from yaml import", "name", ch.Name, "err", err)
		}
	}
	return nil
}
