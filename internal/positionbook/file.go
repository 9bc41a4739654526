package positionbook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ducminhle1904/crypto-confluence-bot/internal/lifecycle"
)

const fileVersion = "1"

// document is the on-disk layout of a File book.
type document struct {
	Version     string                        `json:"version"`
	LastUpdated time.Time                     `json:"last_updated"`
	Positions   map[string]lifecycle.Position `json:"positions"`
}

// File persists positions as one JSON document. Every write keeps a backup
// of the previous document and replaces the file atomically.
type File struct {
	path string

	mu        sync.Mutex
	positions map[string]lifecycle.Position
}

// NewFile loads path if it exists. A missing file is an empty book.
func NewFile(path string) (*File, error) {
	f := &File{path: path, positions: make(map[string]lifecycle.Position)}
	if err := f.load(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) Path() string { return f.path }

func (f *File) load() error {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read position book: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse position book %s: %w", f.path, err)
	}
	if doc.Version != fileVersion {
		return fmt.Errorf("position book %s has unsupported version %q", f.path, doc.Version)
	}
	for pair, p := range doc.Positions {
		if p.Pair != pair {
			return fmt.Errorf("position book %s: entry %q holds pair %q", f.path, pair, p.Pair)
		}
		f.positions[pair] = p
	}
	return nil
}

func (f *File) Get(_ context.Context, pair string) (lifecycle.Position, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.positions[pair]
	return p, ok, nil
}

func (f *File) Put(_ context.Context, p lifecycle.Position) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.positions[p.Pair]
	f.positions[p.Pair] = p
	if err := f.save(); err != nil {
		if had {
			f.positions[p.Pair] = prev
		} else {
			delete(f.positions, p.Pair)
		}
		return err
	}
	return nil
}

func (f *File) Delete(_ context.Context, pair string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.positions[pair]
	if !had {
		return nil
	}
	delete(f.positions, pair)
	if err := f.save(); err != nil {
		f.positions[pair] = prev
		return err
	}
	return nil
}

func (f *File) List(_ context.Context) ([]lifecycle.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return sorted(f.positions), nil
}

// save must be called with mu held.
func (f *File) save() error {
	if dir := filepath.Dir(f.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create position book directory: %w", err)
		}
	}

	if _, err := os.Stat(f.path); err == nil {
		// best effort; the atomic rename below is what matters
		_ = copyFile(f.path, f.path+".bak")
	}

	data, err := json.MarshalIndent(document{
		Version:     fileVersion,
		LastUpdated: time.Now().UTC(),
		Positions:   f.positions,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal position book: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp position book: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to move position book: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
