package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/rs/xid"
)

// AudioStore persists synthesized audio under the system temp directory and
// reaps old files. Audio is handed to the UI as a reference instead of raw
// bytes so large payloads cross the boundary once, on the download.
type AudioStore struct {
	dir    string
	maxAge time.Duration
}

// NewAudioStore creates the store directory if needed.
func NewAudioStore(maxAge time.Duration) (*AudioStore, error) {
	dir := filepath.Join(os.TempDir(), "voxhost-audio")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("unable to create audio directory: %w", err)
	}
	return &AudioStore{dir: dir, maxAge: maxAge}, nil
}

// Put writes audio to a uniquely named file and returns its reference name.
func (s *AudioStore) Put(audio []byte) (string, error) {
	name := xid.New().String() + ".wav"
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, audio, 0o600); err != nil {
		return "", fmt.Errorf("unable to write audio file: %w", err)
	}
	log.Debug("Stored audio", "ref", name, "size", humanize.Bytes(uint64(len(audio))))
	return name, nil
}

// Path resolves a reference back to a file path. References containing path
// separators are rejected; the store serves only its own flat directory.
func (s *AudioStore) Path(name string) (string, bool) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", false
	}
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// ReapOnce deletes files older than the store's max age and reports how
// many were removed.
func (s *AudioStore) ReapOnce() int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		log.Warn("Audio reap failed", "error", err)
		return 0
	}

	cutoff := time.Now().Add(-s.maxAge)
	removed := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || info.IsDir() {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			log.Debug("Could not remove audio file", "name", entry.Name(), "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Debug("Reaped audio files", "count", removed)
	}
	return removed
}

// Reap runs ReapOnce on the given interval until the context ends.
func (s *AudioStore) Reap(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ReapOnce()
		}
	}
}

// Close wipes the store directory. Generated audio is ephemeral; nothing
// should outlive the daemon.
func (s *AudioStore) Close() error {
	return os.RemoveAll(s.dir)
}
