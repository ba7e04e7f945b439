// Package storage persists the card collection and the activity log.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/starford/mdmemo/internal/models"
)

// Provider loads and saves the whole card collection.
type Provider interface {
	// Load returns the persisted collection in its stored order.
	// An empty store yields an empty slice and no error.
	Load(ctx context.Context) ([]models.Card, error)
	// Save replaces the persisted collection with cards.
	Save(ctx context.Context, cards []models.Card) error
}

// ActivityLog counts user actions per day for the activity heat-map.
type ActivityLog interface {
	// Record adds count to the total for day ("2006-01-02").
	Record(ctx context.Context, day string, count int) error
	// Activity returns every recorded day with its total.
	Activity(ctx context.Context) (map[string]int, error)
}

// Backend is a Provider and ActivityLog sharing one underlying store.
type Backend interface {
	Provider
	ActivityLog
	io.Closer
}

// Storage drivers.
const (
	DriverSQLite     = "sqlite"
	DriverSQLitePure = "sqlite-pure"
	DriverFile       = "file"
	DriverBadger     = "badger"
	DriverMemory     = "memory"
)

// Drivers lists every supported driver name.
var Drivers = []string{DriverSQLite, DriverSQLitePure, DriverFile, DriverBadger, DriverMemory}

// Open returns the backend for driver rooted at path.
func Open(driver, path string) (Backend, error) {
	switch driver {
	case DriverSQLite:
		return OpenSQLite(path)
	case DriverSQLitePure:
		return OpenSQLitePure(path)
	case DriverFile:
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("storage: mkdir: %w", err)
		}
		return NewFS(path)
	case DriverBadger:
		return OpenBadger(path)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", driver)
	}
}
