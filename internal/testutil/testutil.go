// Package testutil provides shared test helpers for building stores and temp databases.
package testutil

import (
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/starford/mdmemo/internal/cardstore"
	"github.com/starford/mdmemo/internal/storage"
)

// Clock is a manually advanced clock for deterministic tests.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock set to start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// SequentialIDs returns an id generator yielding card-1, card-2, ...
func SequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("card-%d", n)
	}
}

// TestStore returns a loaded, unseeded store over an in-memory backend.
// Extra options are applied after the defaults.
func TestStore(t *testing.T, clock *Clock, opts ...cardstore.Option) (*cardstore.Store, *storage.Memory) {
	t.Helper()
	mem := storage.NewMemory()
	base := []cardstore.Option{
		cardstore.WithSeed(false),
		cardstore.WithIDGenerator(SequentialIDs()),
		cardstore.WithActivityLog(mem),
	}
	if clock != nil {
		base = append(base, cardstore.WithClock(clock.Now))
	}
	s := cardstore.New(mem, append(base, opts...)...)
	if err := s.Load(t.Context()); err != nil {
		t.Fatal(err)
	}
	return s, mem
}

// TestDBPath creates a temporary SQLite file path that is automatically cleaned up.
func TestDBPath(t *testing.T) string {
	t.Helper()
	dbFile, err := os.CreateTemp("", "mdmemo-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() {
		os.Remove(dbFile.Name())
		os.Remove(dbFile.Name() + "-wal")
		os.Remove(dbFile.Name() + "-shm")
	})
	return dbFile.Name()
}
