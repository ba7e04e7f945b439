package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/starford/mdmemo/internal/models"
)

const (
	cardsFile    = "cards.json"
	activityFile = "activity.json"
)

// FS implements Backend with two JSON documents in a directory.
type FS struct {
	root string // absolute path to the data directory
	mu   sync.Mutex
}

// NewFS creates a new FS backend rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Load reads cards.json. A missing file is an empty collection.
func (f *FS) Load(_ context.Context) ([]models.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var cards []models.Card
	ok, err := f.readJSON(cardsFile, &cards)
	if err != nil {
		return nil, err
	}
	if !ok || cards == nil {
		return []models.Card{}, nil
	}
	return cards, nil
}

// Save rewrites cards.json atomically.
func (f *FS) Save(_ context.Context, cards []models.Card) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cards == nil {
		cards = []models.Card{}
	}
	data, err := json.MarshalIndent(cards, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode cards: %w", err)
	}
	return f.write(cardsFile, data)
}

// Record adds count to day in activity.json.
func (f *FS) Record(_ context.Context, day string, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	log := map[string]int{}
	if _, err := f.readJSON(activityFile, &log); err != nil {
		return err
	}
	log[day] += count
	data, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("storage: encode activity: %w", err)
	}
	return f.write(activityFile, data)
}

// Activity returns the contents of activity.json.
func (f *FS) Activity(_ context.Context) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	log := map[string]int{}
	if _, err := f.readJSON(activityFile, &log); err != nil {
		return nil, err
	}
	return log, nil
}

// Close is a no-op; every write is already durable.
func (f *FS) Close() error { return nil }

// readJSON decodes name into v. It reports false when the file does not exist.
func (f *FS) readJSON(name string, v any) (bool, error) {
	data, err := os.ReadFile(filepath.Join(f.root, name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage: read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("storage: decode %s: %w", name, err)
	}
	return true, nil
}

// write atomically writes content: tmp file → fsync → rename.
func (f *FS) write(name string, content []byte) error {
	abs := filepath.Join(f.root, name)

	tmp, err := os.CreateTemp(f.root, ".mdmemo-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}
