package internal

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/mdmemo/internal/cardstore"
	"github.com/starford/mdmemo/internal/models"
	"github.com/starford/mdmemo/internal/storage"
	"github.com/starford/mdmemo/internal/testutil"
)

type brokenSave struct{}

func (brokenSave) Load(context.Context) ([]models.Card, error) { return nil, nil }

func (brokenSave) Save(context.Context, []models.Card) error { return errors.New("disk full") }

func memoryConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Storage = StorageConfig{Driver: storage.DriverMemory}
	return cfg
}

func TestBootstrap_SeedsEmptyStore(t *testing.T) {
	app, err := newApplication([]Option{WithConfig(memoryConfig()), WithLogOutput(io.Discard)}, os.Stdout)
	if err != nil {
		t.Fatal(err)
	}
	rt, err := bootstrap(t.Context(), app)
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close()

	if n := len(rt.store.All()); n != 2 {
		t.Errorf("seeded cards = %d, want 2", n)
	}
}

func TestBootstrap_UnknownDriver(t *testing.T) {
	cfg := memoryConfig()
	cfg.Storage.Driver = "postgres"
	app, _ := newApplication([]Option{WithConfig(cfg), WithLogOutput(io.Discard)}, os.Stdout)
	if _, err := bootstrap(t.Context(), app); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestRun_RequiresConfig(t *testing.T) {
	if err := Run(t.Context()); err == nil {
		t.Fatal("Run without config should fail")
	}
}

func TestHealth(t *testing.T) {
	cfg := memoryConfig()
	store := cardstore.New(storage.NewMemory(), cardstore.WithSeed(false))
	if err := store.Load(t.Context()); err != nil {
		t.Fatal(err)
	}
	h := newHTTPHandler(cfg, store, nil)

	for _, path := range []string{"/health/live", "/health/ready"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s = %d, want 200", path, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cards", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/api/cards = %d, want 200", rec.Code)
	}
}

func TestHealth_ReadyFailsWhilePersistFails(t *testing.T) {
	store := cardstore.New(brokenSave{}, cardstore.WithSeed(false))
	if err := store.Load(t.Context()); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Create(t.Context(), models.CardInput{Title: "Kept in memory"}); err != nil {
		t.Fatal(err)
	}
	h := newHTTPHandler(memoryConfig(), store, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ready = %d, want 503", rec.Code)
	}
}

func TestRunImport(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "chan.md"), []byte("# Channels\nTyped pipes."), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := NewDefaultConfig()
	cfg.Storage = StorageConfig{Driver: storage.DriverFile, Path: filepath.Join(t.TempDir(), "cards")}
	cfg.Seed.Enabled = false
	cfg.Import.Dir = dir

	if err := RunImport(t.Context(), WithConfig(cfg), WithLogOutput(io.Discard)); err != nil {
		t.Fatalf("RunImport: %v", err)
	}

	backend, err := storage.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer backend.Close()
	cards, err := backend.Load(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if len(cards) != 1 || cards[0].Title != "Channels" {
		t.Errorf("imported = %+v", cards)
	}
}

func TestRunImport_NoDir(t *testing.T) {
	if err := RunImport(t.Context(), WithConfig(memoryConfig()), WithLogOutput(io.Discard)); err == nil {
		t.Fatal("expected error without import.dir")
	}
}

func TestBootstrap_SQLiteRoundTrip(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Storage = StorageConfig{Driver: storage.DriverSQLite, Path: testutil.TestDBPath(t)}
	cfg.Seed.Enabled = false
	app, _ := newApplication([]Option{WithConfig(cfg), WithLogOutput(io.Discard)}, os.Stdout)

	rt, err := bootstrap(t.Context(), app)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rt.store.Create(t.Context(), models.CardInput{Title: "Mutex"}); err != nil {
		t.Fatal(err)
	}
	rt.Close()

	rt, err = bootstrap(t.Context(), app)
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close()
	if _, ok := rt.store.FindByTitle("mutex"); !ok {
		t.Error("card not persisted across restarts")
	}
	if got := rt.store.TodayActivity(t.Context()); got != 1 {
		t.Errorf("today activity = %d, want 1", got)
	}
}
