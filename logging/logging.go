package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// DefaultMaxSize caps the log file at 2MB before rotation.
const DefaultMaxSize = 2 * 1024 * 1024

// FileWriter appends to a size-capped log file. When a write would push the
// file past the cap, the current file is rotated to a single ".1" backup
// first, so one full previous generation is always kept.
type FileWriter struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	size    int64
	maxSize int64
}

// Open creates a FileWriter without touching the global logger. A file left
// oversized by a previous run is rotated immediately. maxSize <= 0 selects
// DefaultMaxSize.
func Open(path string, maxSize int64) (*FileWriter, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	w := &FileWriter{file: f, path: path, maxSize: maxSize}
	if info, err := f.Stat(); err == nil {
		w.size = info.Size()
	}
	if w.size > w.maxSize {
		if err := w.rotate(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return w, nil
}

// Setup opens the log file and routes the standard logger to stdout plus
// the rotating file.
func Setup(path string, maxSize int64) (*FileWriter, error) {
	w, err := Open(path, maxSize)
	if err != nil {
		return nil, err
	}
	log.SetOutput(io.MultiWriter(os.Stdout, w))
	return w, nil
}

func (w *FileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			// Keep logging to the old handle rather than dropping output.
			fmt.Fprintf(os.Stderr, "log rotate: %v\n", err)
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *FileWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return err
	}
	if err := os.Rename(w.path, w.path+".1"); err != nil {
		return err
	}

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	w.file = f
	w.size = 0
	return nil
}

func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
