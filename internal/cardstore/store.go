// Package cardstore owns the canonical card collection. Every mutation goes
// through a Store method, which persists the full collection before returning.
package cardstore

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/mdmemo/internal/apperr"
	"github.com/starford/mdmemo/internal/models"
	"github.com/starford/mdmemo/internal/query"
	"github.com/starford/mdmemo/internal/relation"
	"github.com/starford/mdmemo/internal/scheduler"
	"github.com/starford/mdmemo/internal/storage"
)

// Event kinds passed to a Listener.
const (
	EventCreated       = "created"
	EventUpdated       = "updated"
	EventDeleted       = "deleted"
	EventReviewed      = "reviewed"
	EventPersistFailed = "persist.failed"
)

// ActivityDayLayout formats activity log keys. Days are UTC calendar dates.
const ActivityDayLayout = "2006-01-02"

// Listener is called after a mutation has been applied and persisted.
// For EventPersistFailed, id is empty.
type Listener func(kind, id string)

// Store is the single source of truth for cards.
//
// Concurrency model: one RWMutex guards the collection. Writers hold it
// across the Save call so persisted snapshots land in mutation order.
// Listeners and activity recording run after the lock is released.
type Store struct {
	mu         sync.RWMutex
	cards      []models.Card
	persistErr error

	provider storage.Provider
	activity storage.ActivityLog
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
	seed     bool
	listener Listener
}

// New creates a Store backed by provider. Call Load before use.
func New(provider storage.Provider, opts ...Option) *Store {
	s := &Store{
		provider: provider,
		logger:   slog.Default(),
		now:      time.Now,
		newID:    uuid.NewString,
		seed:     true,
		cards:    []models.Card{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory collection with the persisted one. Records
// missing newer fields are defaulted. An empty store is seeded with the
// sample cards once, when seeding is enabled.
func (s *Store) Load(ctx context.Context) error {
	cards, err := s.provider.Load(ctx)
	if err != nil {
		s.mu.Lock()
		s.persistErr = err
		s.mu.Unlock()
		return fmt.Errorf("cardstore: load: %w: %w", apperr.ErrPersistence, err)
	}
	for i := range cards {
		cards[i].Normalize()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards = cards
	s.persistErr = nil
	if len(s.cards) == 0 && s.seed {
		s.cards = SampleCards(s.now())
		s.logger.Info("cardstore: seeding sample cards", slog.Int("count", len(s.cards)))
		_ = s.persistLocked(ctx)
	}
	return nil
}

// Create validates in, assigns an id and timestamps, and appends the card.
func (s *Store) Create(ctx context.Context, in models.CardInput) (models.Card, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return models.Card{}, apperr.Validation("title", "must not be blank")
	}
	status := in.Status
	if status == "" {
		status = models.StatusMemo
	}
	if !status.IsValid() {
		return models.Card{}, apperr.Validation("status", fmt.Sprintf("unknown status %q", status))
	}

	now := s.now()
	c := models.Card{
		ID:         s.newID(),
		Title:      title,
		Content:    in.Content,
		Tags:       models.NormalizeTags(in.Tags),
		CreatedAt:  now,
		UpdatedAt:  now,
		Status:     status,
		EaseFactor: scheduler.DefaultEaseFactor,
	}
	c.RelatedCardIDs = relation.CleanIDs(c.ID, in.RelatedCardIDs)

	s.mu.Lock()
	if s.indexOf(c.ID) >= 0 {
		s.mu.Unlock()
		return models.Card{}, fmt.Errorf("cardstore: id %q already in use", c.ID)
	}
	s.cards = append(s.cards, c)
	perr := s.persistLocked(ctx)
	out := c.Clone()
	s.mu.Unlock()

	s.afterMutation(ctx, EventCreated, c.ID, true, perr)
	return out, nil
}

// Update merges the non-nil fields of p into the card and bumps UpdatedAt.
// A missing id returns apperr.ErrNotFound and changes nothing.
func (s *Store) Update(ctx context.Context, id string, p models.CardPatch) (models.Card, error) {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return models.Card{}, apperr.Validation("title", "must not be blank")
	}
	if p.Status != nil && !p.Status.IsValid() {
		return models.Card{}, apperr.Validation("status", fmt.Sprintf("unknown status %q", *p.Status))
	}

	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return models.Card{}, fmt.Errorf("cardstore: update %s: %w", id, apperr.ErrNotFound)
	}
	c := &s.cards[i]
	c.Merge(p)
	if p.RelatedCardIDs != nil {
		c.RelatedCardIDs = relation.CleanIDs(c.ID, c.RelatedCardIDs)
	}
	clampSchedule(c)
	c.UpdatedAt = s.stamp(c.CreatedAt)
	perr := s.persistLocked(ctx)
	out := c.Clone()
	s.mu.Unlock()

	s.afterMutation(ctx, EventUpdated, id, true, perr)
	return out, nil
}

// Delete removes the card. Deleting an unknown id is a no-op and reports
// false. Other cards keep their references to the deleted id.
func (s *Store) Delete(ctx context.Context, id string) bool {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.cards = append(s.cards[:i:i], s.cards[i+1:]...)
	perr := s.persistLocked(ctx)
	s.mu.Unlock()

	s.afterMutation(ctx, EventDeleted, id, false, perr)
	return true
}

// Get returns a copy of the card with id.
func (s *Store) Get(id string) (models.Card, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return models.Card{}, false
	}
	return s.cards[i].Clone(), true
}

// Review applies an SM-2 review with grade g. This is the only path that
// advances the ease factor, interval and next review date.
func (s *Store) Review(ctx context.Context, id string, g scheduler.Grade) (models.Card, error) {
	if !g.IsValid() {
		return models.Card{}, apperr.Validation("grade", fmt.Sprintf("must be one of 0, 3, 4, 5, got %d", int(g)))
	}

	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return models.Card{}, fmt.Errorf("cardstore: review %s: %w", id, apperr.ErrNotFound)
	}
	c := &s.cards[i]
	now := s.now()
	c.ApplyReview(scheduler.Next(c.Schedule(), g, now))
	c.UpdatedAt = s.stamp(c.CreatedAt)
	perr := s.persistLocked(ctx)
	out := c.Clone()
	s.mu.Unlock()

	s.logger.Debug("cardstore: reviewed",
		slog.String("id", id),
		slog.String("grade", g.String()),
		slog.Int("interval", out.Interval))
	s.afterMutation(ctx, EventReviewed, id, true, perr)
	return out, nil
}

// MarkReviewed records an ungraded review: it stamps LastReviewedAt and
// increments ReviewCount, leaving the schedule untouched.
func (s *Store) MarkReviewed(ctx context.Context, id string) (models.Card, error) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return models.Card{}, fmt.Errorf("cardstore: mark reviewed %s: %w", id, apperr.ErrNotFound)
	}
	c := &s.cards[i]
	now := s.now()
	c.LastReviewedAt = &now
	c.ReviewCount++
	perr := s.persistLocked(ctx)
	out := c.Clone()
	s.mu.Unlock()

	s.afterMutation(ctx, EventReviewed, id, true, perr)
	return out, nil
}

// All returns a copy of the collection in stored order.
func (s *Store) All() []models.Card {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// List returns the filtered, sorted view described by opts.
func (s *Store) List(opts query.Options) []models.Card {
	return query.Apply(s.All(), opts)
}

// AllTags returns every tag in use, sorted.
func (s *Store) AllTags() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return query.AllTags(s.cards)
}

// Related resolves the card's outgoing links. ok is false for an unknown id.
func (s *Store) Related(id string) ([]models.Card, bool) {
	all := s.All()
	for _, c := range all {
		if c.ID == id {
			return relation.RelatedOf(c, all), true
		}
	}
	return nil, false
}

// Backlinks lists cards that link to id. ok is false for an unknown id.
func (s *Store) Backlinks(id string) ([]models.Card, bool) {
	if _, ok := s.Get(id); !ok {
		return nil, false
	}
	return relation.BacklinksOf(id, s.All()), true
}

// Graph returns the relation graph of the whole collection.
func (s *Store) Graph() relation.Graph {
	return relation.BuildGraph(s.All())
}

// Due returns the cards that need review by the end of today.
func (s *Store) Due() []models.Card {
	now := s.now()
	out := []models.Card{}
	for _, c := range s.All() {
		if scheduler.IsDue(c.NextReviewDate, now) {
			out = append(out, c)
		}
	}
	return out
}

// Random picks a card uniformly for the quiz.
func (s *Store) Random() (models.Card, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.cards) == 0 {
		return models.Card{}, false
	}
	return s.cards[rand.IntN(len(s.cards))].Clone(), true
}

// MemoCount returns how many cards are still in memo status.
func (s *Store) MemoCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.cards {
		if c.Status == models.StatusMemo {
			n++
		}
	}
	return n
}

// FindByTitle returns the first card whose title matches, ignoring case.
func (s *Store) FindByTitle(title string) (models.Card, bool) {
	title = strings.TrimSpace(title)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.cards {
		if strings.EqualFold(c.Title, title) {
			return c.Clone(), true
		}
	}
	return models.Card{}, false
}

// PersistErr returns the error of the most recent failed load or save,
// or nil once a later one succeeds.
func (s *Store) PersistErr() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persistErr
}

// persistLocked saves the collection. Failures are recorded and logged but
// never undo the in-memory change. Callers hold s.mu.
func (s *Store) persistLocked(ctx context.Context) error {
	err := s.provider.Save(ctx, s.snapshotLocked())
	s.persistErr = err
	if err != nil {
		s.logger.Warn("cardstore: persist failed", slog.String("error", err.Error()))
	}
	return err
}

// afterMutation runs the unlocked tail of a write.
func (s *Store) afterMutation(ctx context.Context, kind, id string, countActivity bool, persistErr error) {
	if countActivity {
		s.recordActivity(ctx)
	}
	if s.listener == nil {
		return
	}
	s.listener(kind, id)
	if persistErr != nil {
		s.listener(EventPersistFailed, "")
	}
}

func (s *Store) snapshotLocked() []models.Card {
	out := make([]models.Card, len(s.cards))
	for i, c := range s.cards {
		out[i] = c.Clone()
	}
	return out
}

func (s *Store) indexOf(id string) int {
	for i := range s.cards {
		if s.cards[i].ID == id {
			return i
		}
	}
	return -1
}

// stamp returns now, never earlier than created.
func (s *Store) stamp(created time.Time) time.Time {
	now := s.now()
	if now.Before(created) {
		return created
	}
	return now
}

func clampSchedule(c *models.Card) {
	if c.EaseFactor < scheduler.MinEaseFactor {
		c.EaseFactor = scheduler.MinEaseFactor
	}
	if c.Interval < 0 {
		c.Interval = 0
	}
}
