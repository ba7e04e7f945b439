package cardstore

import (
	"log/slog"
	"time"

	"github.com/starford/mdmemo/internal/storage"
)

// Option is a functional option for configuring a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides the card id source.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithActivityLog enables per-day activity counting.
func WithActivityLog(a storage.ActivityLog) Option {
	return func(s *Store) {
		s.activity = a
	}
}

// WithSeed toggles sample seeding of an empty store.
func WithSeed(enabled bool) Option {
	return func(s *Store) {
		s.seed = enabled
	}
}

// WithListener registers a callback for mutation events.
func WithListener(l Listener) Option {
	return func(s *Store) {
		s.listener = l
	}
}
