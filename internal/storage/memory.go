package storage

import (
	"context"
	"sync"

	"github.com/starford/mdmemo/internal/models"
)

// Memory is an in-process Backend. Nothing survives a restart.
type Memory struct {
	mu       sync.Mutex
	cards    []models.Card
	activity map[string]int
	saves    int
}

// NewMemory returns a Memory backend preloaded with cards.
func NewMemory(cards ...models.Card) *Memory {
	m := &Memory{activity: make(map[string]int)}
	m.cards = cloneAll(cards)
	return m
}

func (m *Memory) Load(_ context.Context) ([]models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAll(m.cards), nil
}

func (m *Memory) Save(_ context.Context, cards []models.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cards = cloneAll(cards)
	m.saves++
	return nil
}

// SaveCount reports how many times Save has been called.
func (m *Memory) SaveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *Memory) Record(_ context.Context, day string, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activity[day] += count
	return nil
}

func (m *Memory) Activity(_ context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.activity))
	for k, v := range m.activity {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }

func cloneAll(cards []models.Card) []models.Card {
	out := make([]models.Card, len(cards))
	for i, c := range cards {
		out[i] = c.Clone()
	}
	return out
}
