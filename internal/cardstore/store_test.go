package cardstore_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/starford/mdmemo/internal/apperr"
	"github.com/starford/mdmemo/internal/cardstore"
	"github.com/starford/mdmemo/internal/models"
	"github.com/starford/mdmemo/internal/query"
	"github.com/starford/mdmemo/internal/scheduler"
	"github.com/starford/mdmemo/internal/storage"
	"github.com/starford/mdmemo/internal/testutil"
)

var start = time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)

// failingProvider fails Load and/or Save on demand.
type failingProvider struct {
	mu      sync.Mutex
	loadErr error
	saveErr error
	cards   []models.Card
}

func (f *failingProvider) Load(context.Context) ([]models.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.cards, nil
}

func (f *failingProvider) Save(_ context.Context, cards []models.Card) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.cards = cards
	return nil
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) listen(kind, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, kind+":"+id)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func TestCreate(t *testing.T) {
	clock := testutil.NewClock(start)
	s, mem := testutil.TestStore(t, clock)
	ctx := context.Background()

	c, err := s.Create(ctx, models.CardInput{
		Title:   "  Goroutines ",
		Content: "# Goroutines",
		Tags:    []string{"go", " go", ""},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.ID != "card-1" || c.Title != "Goroutines" {
		t.Errorf("card = %+v", c)
	}
	if c.Status != models.StatusMemo || c.EaseFactor != scheduler.DefaultEaseFactor || c.Interval != 0 {
		t.Errorf("defaults not applied: %+v", c)
	}
	if len(c.Tags) != 1 || c.Tags[0] != "go" {
		t.Errorf("tags = %v, want [go]", c.Tags)
	}
	if !c.CreatedAt.Equal(start) || !c.UpdatedAt.Equal(start) {
		t.Errorf("timestamps = %v/%v", c.CreatedAt, c.UpdatedAt)
	}
	if c.LastReviewedAt != nil || c.NextReviewDate != nil {
		t.Error("new card should have no review dates")
	}
	if mem.SaveCount() != 1 {
		t.Errorf("SaveCount = %d, want 1", mem.SaveCount())
	}
	if got := s.TodayActivity(ctx); got != 1 {
		t.Errorf("TodayActivity = %d, want 1", got)
	}
}

func TestCreate_Validation(t *testing.T) {
	s, mem := testutil.TestStore(t, testutil.NewClock(start))
	ctx := context.Background()

	tests := []struct {
		name  string
		in    models.CardInput
		field string
	}{
		{"blank title", models.CardInput{Title: "   "}, "title"},
		{"bad status", models.CardInput{Title: "x", Status: "archived"}, "status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(ctx, tt.in)
			var ve *apperr.ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Fatalf("err = %v, want validation error on %s", err, tt.field)
			}
			if !errors.Is(err, apperr.ErrValidation) {
				t.Error("errors.Is(err, ErrValidation) = false")
			}
		})
	}
	if mem.SaveCount() != 0 || len(s.All()) != 0 {
		t.Error("rejected creates must not change or persist anything")
	}
}

func TestCreate_CleansRelations(t *testing.T) {
	s, _ := testutil.TestStore(t, nil, cardstore.WithIDGenerator(func() string { return "self" }))
	c, err := s.Create(context.Background(), models.CardInput{
		Title:          "a",
		RelatedCardIDs: []string{"x", "self", "x", "", "y"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(c.RelatedCardIDs) != 2 || c.RelatedCardIDs[0] != "x" || c.RelatedCardIDs[1] != "y" {
		t.Errorf("related = %v, want [x y]", c.RelatedCardIDs)
	}
}

func TestUpdate(t *testing.T) {
	clock := testutil.NewClock(start)
	s, mem := testutil.TestStore(t, clock)
	ctx := context.Background()
	c, _ := s.Create(ctx, models.CardInput{Title: "old"})

	clock.Advance(time.Hour)
	title := "new"
	ease := 0.5
	interval := -3
	status := models.StatusOutput
	got, err := s.Update(ctx, c.ID, models.CardPatch{
		Title:      &title,
		Status:     &status,
		EaseFactor: &ease,
		Interval:   &interval,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Title != "new" || got.Status != models.StatusOutput {
		t.Errorf("card = %+v", got)
	}
	if got.EaseFactor != scheduler.MinEaseFactor || got.Interval != 0 {
		t.Errorf("schedule not clamped: ease=%v interval=%d", got.EaseFactor, got.Interval)
	}
	if !got.UpdatedAt.Equal(start.Add(time.Hour)) || !got.CreatedAt.Equal(start) {
		t.Errorf("timestamps = %v/%v", got.CreatedAt, got.UpdatedAt)
	}
	if mem.SaveCount() != 2 {
		t.Errorf("SaveCount = %d, want 2", mem.SaveCount())
	}
}

func TestUpdate_NotFoundIsNoOp(t *testing.T) {
	s, mem := testutil.TestStore(t, nil)
	title := "x"
	_, err := s.Update(context.Background(), "missing", models.CardPatch{Title: &title})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if mem.SaveCount() != 0 {
		t.Errorf("SaveCount = %d, want 0", mem.SaveCount())
	}
}

func TestUpdate_ClockBeforeCreation(t *testing.T) {
	clock := testutil.NewClock(start)
	s, _ := testutil.TestStore(t, clock)
	ctx := context.Background()
	c, _ := s.Create(ctx, models.CardInput{Title: "x"})

	clock.Advance(-time.Hour)
	content := "body"
	got, _ := s.Update(ctx, c.ID, models.CardPatch{Content: &content})
	if got.UpdatedAt.Before(got.CreatedAt) {
		t.Errorf("UpdatedAt %v before CreatedAt %v", got.UpdatedAt, got.CreatedAt)
	}
}

func TestDelete(t *testing.T) {
	s, mem := testutil.TestStore(t, nil)
	ctx := context.Background()
	a, _ := s.Create(ctx, models.CardInput{Title: "a"})
	b, _ := s.Create(ctx, models.CardInput{Title: "b", RelatedCardIDs: []string{a.ID}})

	if !s.Delete(ctx, a.ID) {
		t.Fatal("Delete returned false")
	}
	if _, ok := s.Get(a.ID); ok {
		t.Error("deleted card still present")
	}
	saves := mem.SaveCount()
	if s.Delete(ctx, a.ID) {
		t.Error("second Delete returned true")
	}
	if mem.SaveCount() != saves {
		t.Error("deleting a missing id must not persist")
	}

	// The dangling reference stays stored but is not resolved.
	stored, _ := s.Get(b.ID)
	if len(stored.RelatedCardIDs) != 1 {
		t.Errorf("related ids = %v, want dangling id kept", stored.RelatedCardIDs)
	}
	related, ok := s.Related(b.ID)
	if !ok || len(related) != 0 {
		t.Errorf("Related = %v, %v; want empty", related, ok)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s, _ := testutil.TestStore(t, nil)
	c, _ := s.Create(context.Background(), models.CardInput{Title: "a", Tags: []string{"t"}})
	got, _ := s.Get(c.ID)
	got.Tags[0] = "mutated"
	again, _ := s.Get(c.ID)
	if again.Tags[0] != "t" {
		t.Error("Get result aliases store state")
	}
}

func TestReview_Sequence(t *testing.T) {
	clock := testutil.NewClock(start)
	s, _ := testutil.TestStore(t, clock)
	ctx := context.Background()
	c, _ := s.Create(ctx, models.CardInput{Title: "SM-2"})

	wantIntervals := []int{1, 6, 15}
	for i, want := range wantIntervals {
		got, err := s.Review(ctx, c.ID, scheduler.Good)
		if err != nil {
			t.Fatalf("Review %d: %v", i, err)
		}
		if got.Interval != want || got.ReviewCount != i+1 {
			t.Errorf("review %d: interval=%d count=%d, want %d/%d", i, got.Interval, got.ReviewCount, want, i+1)
		}
		if got.EaseFactor != scheduler.DefaultEaseFactor {
			t.Errorf("review %d: ease = %v, want unchanged", i, got.EaseFactor)
		}
		wantNext := scheduler.AddDays(scheduler.StartOfDay(clock.Now()), want)
		if got.NextReviewDate == nil || !got.NextReviewDate.Equal(wantNext) {
			t.Errorf("review %d: next = %v, want %v", i, got.NextReviewDate, wantNext)
		}
		if got.LastReviewedAt == nil || !got.LastReviewedAt.Equal(clock.Now()) {
			t.Errorf("review %d: lastReviewedAt = %v", i, got.LastReviewedAt)
		}
	}

	got, _ := s.Review(ctx, c.ID, scheduler.Forgot)
	if got.Interval != 1 || got.ReviewCount != 0 {
		t.Errorf("after forgot: interval=%d count=%d, want 1/0", got.Interval, got.ReviewCount)
	}
	if got.EaseFactor < 1.69 || got.EaseFactor > 1.71 {
		t.Errorf("after forgot: ease = %v, want 1.7", got.EaseFactor)
	}
}

func TestReview_Errors(t *testing.T) {
	s, mem := testutil.TestStore(t, nil)
	ctx := context.Background()
	c, _ := s.Create(ctx, models.CardInput{Title: "a"})
	saves := mem.SaveCount()

	if _, err := s.Review(ctx, c.ID, scheduler.Grade(2)); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("grade 2: err = %v, want validation error", err)
	}
	if _, err := s.Review(ctx, "missing", scheduler.Good); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing id: err = %v, want ErrNotFound", err)
	}
	if mem.SaveCount() != saves {
		t.Error("failed reviews must not persist")
	}
	got, _ := s.Get(c.ID)
	if got.ReviewCount != 0 || got.NextReviewDate != nil {
		t.Errorf("card changed: %+v", got)
	}
}

func TestMarkReviewed(t *testing.T) {
	clock := testutil.NewClock(start)
	s, _ := testutil.TestStore(t, clock)
	ctx := context.Background()
	c, _ := s.Create(ctx, models.CardInput{Title: "a"})

	clock.Advance(2 * time.Hour)
	got, err := s.MarkReviewed(ctx, c.ID)
	if err != nil {
		t.Fatalf("MarkReviewed: %v", err)
	}
	if got.ReviewCount != 1 || got.LastReviewedAt == nil || !got.LastReviewedAt.Equal(clock.Now()) {
		t.Errorf("card = %+v", got)
	}
	if !got.UpdatedAt.Equal(start) {
		t.Errorf("UpdatedAt = %v, want unchanged", got.UpdatedAt)
	}
	if got.NextReviewDate != nil || got.Interval != 0 || got.EaseFactor != scheduler.DefaultEaseFactor {
		t.Errorf("schedule changed: %+v", got)
	}
	if _, err := s.MarkReviewed(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListAndTags(t *testing.T) {
	clock := testutil.NewClock(start)
	s, _ := testutil.TestStore(t, clock)
	ctx := context.Background()
	_, _ = s.Create(ctx, models.CardInput{Title: "Banana", Tags: []string{"fruit"}})
	clock.Advance(time.Minute)
	_, _ = s.Create(ctx, models.CardInput{Title: "apple", Tags: []string{"fruit", "red"}})
	clock.Advance(time.Minute)
	_, _ = s.Create(ctx, models.CardInput{Title: "Carrot", Content: "orange root", Tags: []string{"veg"}})

	got := s.List(query.DefaultOptions())
	if len(got) != 3 || got[0].Title != "Carrot" {
		t.Errorf("default view = %v", titles(got))
	}

	got = s.List(query.Options{Tags: []string{"red", "veg"}, SortBy: query.SortTitle, Order: query.Asc})
	if len(got) != 2 || got[0].Title != "apple" || got[1].Title != "Carrot" {
		t.Errorf("tag view = %v", titles(got))
	}

	got = s.List(query.Options{Search: "ORANGE"})
	if len(got) != 1 || got[0].Title != "Carrot" {
		t.Errorf("search view = %v", titles(got))
	}

	tags := s.AllTags()
	if len(tags) != 3 || tags[0] != "fruit" || tags[1] != "red" || tags[2] != "veg" {
		t.Errorf("AllTags = %v", tags)
	}
}

func TestRelatedAndBacklinks(t *testing.T) {
	s, _ := testutil.TestStore(t, nil)
	ctx := context.Background()
	a, _ := s.Create(ctx, models.CardInput{Title: "a"})
	b, _ := s.Create(ctx, models.CardInput{Title: "b", RelatedCardIDs: []string{a.ID}})
	c, _ := s.Create(ctx, models.CardInput{Title: "c", RelatedCardIDs: []string{a.ID, b.ID}})

	back, ok := s.Backlinks(a.ID)
	if !ok || len(back) != 2 || back[0].ID != b.ID || back[1].ID != c.ID {
		t.Errorf("Backlinks(a) = %v", titles(back))
	}
	rel, ok := s.Related(c.ID)
	if !ok || len(rel) != 2 {
		t.Errorf("Related(c) = %v", titles(rel))
	}
	if _, ok := s.Related("missing"); ok {
		t.Error("Related(missing) ok = true")
	}
	if _, ok := s.Backlinks("missing"); ok {
		t.Error("Backlinks(missing) ok = true")
	}

	g := s.Graph()
	if len(g.Nodes) != 3 || len(g.Links) != 3 {
		t.Errorf("graph = %d nodes, %d links", len(g.Nodes), len(g.Links))
	}
}

func TestDueAndStats(t *testing.T) {
	clock := testutil.NewClock(start)
	s, _ := testutil.TestStore(t, clock)
	ctx := context.Background()
	a, _ := s.Create(ctx, models.CardInput{Title: "a"})
	_, _ = s.Create(ctx, models.CardInput{Title: "b", Status: models.StatusOutput})

	if due := s.Due(); len(due) != 2 {
		t.Errorf("Due = %v, want both unscheduled cards", titles(due))
	}
	_, _ = s.Review(ctx, a.ID, scheduler.Good)
	if due := s.Due(); len(due) != 1 || due[0].Title != "b" {
		t.Errorf("Due after review = %v", titles(due))
	}

	st := s.Stats(ctx)
	want := cardstore.Stats{Total: 2, Memo: 1, Output: 1, Due: 1, Today: 3}
	if st != want {
		t.Errorf("Stats = %+v, want %+v", st, want)
	}
	if s.MemoCount() != 1 {
		t.Errorf("MemoCount = %d, want 1", s.MemoCount())
	}

	clock.Advance(24 * time.Hour)
	if due := s.Due(); len(due) != 2 {
		t.Errorf("Due next day = %v", titles(due))
	}
}

func TestRandomAndFindByTitle(t *testing.T) {
	s, _ := testutil.TestStore(t, nil)
	if _, ok := s.Random(); ok {
		t.Error("Random on empty store ok = true")
	}
	_, _ = s.Create(context.Background(), models.CardInput{Title: "Closures"})
	c, ok := s.Random()
	if !ok || c.Title != "Closures" {
		t.Errorf("Random = %+v, %v", c, ok)
	}
	if _, ok := s.FindByTitle(" closures "); !ok {
		t.Error("FindByTitle should ignore case and spaces")
	}
}

func TestLoad_SeedsEmptyStore(t *testing.T) {
	mem := storage.NewMemory()
	s := cardstore.New(mem, cardstore.WithClock(func() time.Time { return start }))
	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	all := s.All()
	if len(all) != 2 || all[0].ID != "sample-1" || all[1].ID != "sample-2" {
		t.Fatalf("seeded = %v", titles(all))
	}
	if all[1].Status != models.StatusOutput {
		t.Errorf("sample-2 status = %q", all[1].Status)
	}
	if mem.SaveCount() != 1 {
		t.Errorf("SaveCount = %d, want 1", mem.SaveCount())
	}

	// A reload of the now non-empty backend must not seed again.
	again := cardstore.New(mem)
	if err := again.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(again.All()) != 2 || mem.SaveCount() != 1 {
		t.Error("non-empty store was reseeded")
	}
}

func TestLoad_NormalizesLegacyRecords(t *testing.T) {
	mem := storage.NewMemory(models.Card{ID: "old", Title: "Legacy", CreatedAt: start, UpdatedAt: start})
	s := cardstore.New(mem)
	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	c, ok := s.Get("old")
	if !ok {
		t.Fatal("legacy card missing")
	}
	if c.Status != models.StatusMemo || c.EaseFactor != scheduler.DefaultEaseFactor || c.RelatedCardIDs == nil {
		t.Errorf("legacy defaults not applied: %+v", c)
	}
}

func TestLoad_FailureDoesNotSeed(t *testing.T) {
	p := &failingProvider{loadErr: errors.New("disk gone")}
	s := cardstore.New(p)
	err := s.Load(context.Background())
	if !errors.Is(err, apperr.ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
	if len(s.All()) != 0 {
		t.Error("store seeded after failed load")
	}
	if s.PersistErr() == nil {
		t.Error("PersistErr = nil after failed load")
	}
}

func TestPersistFailureKeepsState(t *testing.T) {
	p := &failingProvider{}
	rec := &recorder{}
	s := cardstore.New(p, cardstore.WithSeed(false), cardstore.WithListener(rec.listen),
		cardstore.WithIDGenerator(testutil.SequentialIDs()))
	ctx := context.Background()
	if err := s.Load(ctx); err != nil {
		t.Fatal(err)
	}

	p.saveErr = errors.New("read-only")
	c, err := s.Create(ctx, models.CardInput{Title: "kept"})
	if err != nil {
		t.Fatalf("Create returned %v; persistence errors are not returned", err)
	}
	if _, ok := s.Get(c.ID); !ok {
		t.Error("in-memory state rolled back")
	}
	if s.PersistErr() == nil {
		t.Error("PersistErr = nil after failed save")
	}

	p.saveErr = nil
	_, _ = s.MarkReviewed(ctx, c.ID)
	if s.PersistErr() != nil {
		t.Errorf("PersistErr = %v after successful save", s.PersistErr())
	}

	want := []string{"created:card-1", "persist.failed:", "reviewed:card-1"}
	got := rec.all()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestListenerEvents(t *testing.T) {
	rec := &recorder{}
	s, _ := testutil.TestStore(t, nil, cardstore.WithListener(rec.listen))
	ctx := context.Background()
	c, _ := s.Create(ctx, models.CardInput{Title: "a"})
	content := "x"
	_, _ = s.Update(ctx, c.ID, models.CardPatch{Content: &content})
	_, _ = s.Review(ctx, c.ID, scheduler.Easy)
	s.Delete(ctx, c.ID)
	s.Delete(ctx, c.ID)

	want := []string{"created:card-1", "updated:card-1", "reviewed:card-1", "deleted:card-1"}
	got := rec.all()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestConcurrentWrites(t *testing.T) {
	s, mem := testutil.TestStore(t, nil)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Create(ctx, models.CardInput{Title: "c"})
		}()
	}
	wg.Wait()
	if len(s.All()) != 20 {
		t.Errorf("cards = %d, want 20", len(s.All()))
	}
	persisted, _ := mem.Load(ctx)
	if len(persisted) != 20 {
		t.Errorf("persisted = %d, want 20", len(persisted))
	}
}

func titles(cards []models.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.Title
	}
	return out
}
