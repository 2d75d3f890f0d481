package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestFileWriterRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")

	w, err := Open(path, 64)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer w.Close()

	line := bytes.Repeat([]byte("a"), 48)
	if _, err := w.Write(line); err != nil {
		t.Fatalf("first write failed: %v", err)
	}

	// The second write would exceed the cap, so the first generation must
	// move to the backup before it lands.
	second := bytes.Repeat([]byte("b"), 48)
	if _, err := w.Write(second); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	backup, err := os.ReadFile(path + ".1")
	if err != nil {
		t.Fatalf("backup not created: %v", err)
	}
	if !bytes.Equal(backup, line) {
		t.Fatalf("backup should hold the first generation, got %d bytes", len(backup))
	}

	current, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read current log: %v", err)
	}
	if !bytes.Equal(current, second) {
		t.Fatalf("current log should hold only the new write, got %d bytes", len(current))
	}
}

func TestOpenRotatesOversizedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")

	stale := bytes.Repeat([]byte("x"), 100)
	if err := os.WriteFile(path, stale, 0644); err != nil {
		t.Fatalf("seed log file: %v", err)
	}

	w, err := Open(path, 64)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer w.Close()

	backup, err := os.ReadFile(path + ".1")
	if err != nil {
		t.Fatalf("oversized file should rotate at open: %v", err)
	}
	if !bytes.Equal(backup, stale) {
		t.Fatalf("backup should hold the stale contents, got %d bytes", len(backup))
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat current log: %v", err)
	}
	if info.Size() != 0 {
		t.Fatalf("current log should start empty after rotation, got %d bytes", info.Size())
	}
}
