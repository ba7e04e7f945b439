package storage

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/mdmemo/internal/models"
)

func sampleCards() []models.Card {
	created := time.Date(2025, 3, 1, 9, 15, 30, 123456789, time.UTC)
	reviewed := created.Add(26 * time.Hour)
	next := time.Date(2025, 3, 8, 0, 0, 0, 0, time.FixedZone("JST", 9*3600))
	return []models.Card{
		{
			ID:             "b-second-by-id-first-by-order",
			Title:          "Goroutines",
			Content:        "# Goroutines\n\nLightweight threads.\n",
			Tags:           []string{"go", "concurrency"},
			CreatedAt:      created,
			UpdatedAt:      reviewed,
			LastReviewedAt: &reviewed,
			ReviewCount:    2,
			Status:         models.StatusOutput,
			EaseFactor:     2.36,
			Interval:       6,
			NextReviewDate: &next,
			RelatedCardIDs: []string{"a-first"},
		},
		{
			ID:             "a-first",
			Title:          "Channels",
			Content:        "",
			Tags:           []string{},
			CreatedAt:      created,
			UpdatedAt:      created,
			Status:         models.StatusMemo,
			EaseFactor:     2.5,
			RelatedCardIDs: []string{},
		},
	}
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// checkRoundTrip saves sampleCards and verifies every field survives a load.
func checkRoundTrip(t *testing.T, p Provider) {
	t.Helper()
	ctx := context.Background()
	want := sampleCards()
	if err := p.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := p.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("loaded %d cards, want %d", len(got), len(want))
	}
	for i := range want {
		w, g := want[i], got[i]
		if g.ID != w.ID || g.Title != w.Title || g.Content != w.Content || g.Status != w.Status {
			t.Errorf("card %d: got %+v, want %+v", i, g, w)
		}
		if g.ReviewCount != w.ReviewCount || g.Interval != w.Interval {
			t.Errorf("card %d: schedule counters differ: got %d/%d", i, g.ReviewCount, g.Interval)
		}
		if math.Abs(g.EaseFactor-w.EaseFactor) > 1e-9 {
			t.Errorf("card %d: easeFactor = %v, want %v", i, g.EaseFactor, w.EaseFactor)
		}
		if !g.CreatedAt.Equal(w.CreatedAt) || !g.UpdatedAt.Equal(w.UpdatedAt) {
			t.Errorf("card %d: timestamps differ", i)
		}
		if !sameTime(g.LastReviewedAt, w.LastReviewedAt) || !sameTime(g.NextReviewDate, w.NextReviewDate) {
			t.Errorf("card %d: optional timestamps differ: %v/%v", i, g.LastReviewedAt, g.NextReviewDate)
		}
		if len(g.Tags) != len(w.Tags) || len(g.RelatedCardIDs) != len(w.RelatedCardIDs) {
			t.Errorf("card %d: tags/relations differ: %v %v", i, g.Tags, g.RelatedCardIDs)
		}
	}

	// A second save with fewer cards must not leave stale rows behind.
	if err := p.Save(ctx, want[1:]); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err = p.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a-first" {
		t.Errorf("after shrink got %v", got)
	}
}

func checkActivity(t *testing.T, a ActivityLog) {
	t.Helper()
	ctx := context.Background()
	_ = a.Record(ctx, "2025-03-01", 1)
	_ = a.Record(ctx, "2025-03-01", 2)
	_ = a.Record(ctx, "2025-03-02", 1)
	log, err := a.Activity(ctx)
	if err != nil {
		t.Fatalf("Activity: %v", err)
	}
	if log["2025-03-01"] != 3 || log["2025-03-02"] != 1 || len(log) != 2 {
		t.Errorf("activity = %v", log)
	}
}

func tempDBPath(t *testing.T) string {
	t.Helper()
	f, err := os.CreateTemp("", "mdmemo-storage-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() {
		os.Remove(f.Name())
		os.Remove(f.Name() + "-wal")
		os.Remove(f.Name() + "-shm")
	})
	return f.Name()
}

func TestBackends(t *testing.T) {
	tests := []struct {
		name string
		open func(t *testing.T) Backend
	}{
		{"file", func(t *testing.T) Backend {
			b, err := Open(DriverFile, filepath.Join(t.TempDir(), "data"))
			if err != nil {
				t.Fatal(err)
			}
			return b
		}},
		{"sqlite", func(t *testing.T) Backend {
			b, err := Open(DriverSQLite, tempDBPath(t))
			if err != nil {
				t.Fatal(err)
			}
			return b
		}},
		{"sqlite-pure", func(t *testing.T) Backend {
			b, err := Open(DriverSQLitePure, tempDBPath(t))
			if err != nil {
				t.Fatal(err)
			}
			return b
		}},
		{"badger", func(t *testing.T) Backend {
			b, err := Open(DriverBadger, t.TempDir())
			if err != nil {
				t.Fatal(err)
			}
			return b
		}},
		{"memory", func(t *testing.T) Backend {
			b, err := Open(DriverMemory, "")
			if err != nil {
				t.Fatal(err)
			}
			return b
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.open(t)
			t.Cleanup(func() { b.Close() })

			empty, err := b.Load(context.Background())
			if err != nil {
				t.Fatalf("Load on empty store: %v", err)
			}
			if empty == nil || len(empty) != 0 {
				t.Errorf("empty store = %v, want empty slice", empty)
			}

			checkRoundTrip(t, b)
			checkActivity(t, b)
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open("postgres", ""); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestBadgerInMemory(t *testing.T) {
	b, err := OpenBadger("")
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	defer b.Close()
	checkRoundTrip(t, b)
}

func TestMemorySaveCount(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_ = m.Save(ctx, sampleCards())
	_ = m.Save(ctx, nil)
	if m.SaveCount() != 2 {
		t.Errorf("SaveCount = %d, want 2", m.SaveCount())
	}
}

func TestMemoryIsolatesCallers(t *testing.T) {
	m := NewMemory(sampleCards()...)
	ctx := context.Background()
	got, _ := m.Load(ctx)
	got[0].Tags[0] = "mutated"
	again, _ := m.Load(ctx)
	if again[0].Tags[0] != "go" {
		t.Error("Load result aliases stored state")
	}
}
