package server

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T, maxAge time.Duration) *AudioStore {
	t.Helper()
	store, err := NewAudioStore(maxAge)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAudioStorePutAndPath(t *testing.T) {
	store := newTestStore(t, time.Hour)

	ref, err := store.Put([]byte("RIFFaudio"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(ref, ".wav") {
		t.Errorf("ref = %q, want .wav suffix", ref)
	}

	path, ok := store.Path(ref)
	if !ok {
		t.Fatalf("Path(%q) not found", ref)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "RIFFaudio" {
		t.Errorf("stored audio = %q", data)
	}
}

func TestAudioStoreRefsAreUnique(t *testing.T) {
	store := newTestStore(t, time.Hour)

	a, err := store.Put([]byte("a"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := store.Put([]byte("b"))
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Errorf("refs collide: %q", a)
	}
}

func TestAudioStorePathRejectsTraversal(t *testing.T) {
	store := newTestStore(t, time.Hour)

	for _, name := range []string{
		"",
		"../etc/passwd",
		"..",
		"sub/dir.wav",
		`sub\dir.wav`,
	} {
		if _, ok := store.Path(name); ok {
			t.Errorf("Path(%q) resolved, want rejection", name)
		}
	}
}

func TestAudioStoreReapOnce(t *testing.T) {
	store := newTestStore(t, time.Hour)

	old, err := store.Put([]byte("old"))
	if err != nil {
		t.Fatal(err)
	}
	fresh, err := store.Put([]byte("fresh"))
	if err != nil {
		t.Fatal(err)
	}

	// Age the first file past the cutoff.
	oldPath := filepath.Join(store.dir, old)
	stale := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(oldPath, stale, stale); err != nil {
		t.Fatal(err)
	}

	if removed := store.ReapOnce(); removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, ok := store.Path(old); ok {
		t.Error("stale file survived the reap")
	}
	if _, ok := store.Path(fresh); !ok {
		t.Error("fresh file was reaped")
	}
}

func TestAudioStoreCloseWipesDirectory(t *testing.T) {
	store, err := NewAudioStore(time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Put([]byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(store.dir); !os.IsNotExist(err) {
		t.Errorf("store dir still present after Close: %v", err)
	}
}
