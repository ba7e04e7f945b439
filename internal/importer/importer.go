// Package importer brings Markdown files from a directory or git repository
// into the card store.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/starford/mdmemo/internal/apperr"
	"github.com/starford/mdmemo/internal/cardstore"
	"github.com/starford/mdmemo/internal/checksum"
	"github.com/starford/mdmemo/internal/markdown"
	"github.com/starford/mdmemo/internal/models"
)

// Outcome describes what an import did with one file.
type Outcome string

const (
	Created   Outcome = "created"
	Updated   Outcome = "updated"
	Unchanged Outcome = "unchanged"
	Skipped   Outcome = "skipped"
)

// Report summarizes an ImportDir run.
type Report struct {
	Created   int      `json:"created"`
	Updated   int      `json:"updated"`
	Unchanged int      `json:"unchanged"`
	Skipped   int      `json:"skipped"`
	Linked    int      `json:"linked"`
	Errors    []string `json:"errors,omitempty"`
}

func (r *Report) add(o Outcome) {
	switch o {
	case Created:
		r.Created++
	case Updated:
		r.Updated++
	case Unchanged:
		r.Unchanged++
	case Skipped:
		r.Skipped++
	}
}

// Importer tracks file checksums so unchanged files are not re-applied.
type Importer struct {
	store  *cardstore.Store
	logger *slog.Logger

	mu   sync.Mutex
	sums map[string]string
}

// New returns an Importer writing into store.
func New(store *cardstore.Store, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{store: store, logger: logger, sums: make(map[string]string)}
}

// ImportDir imports every .md file under dir. Hidden directories such as
// .git are skipped. Wikilinks are resolved by title once all files are in.
func (im *Importer) ImportDir(ctx context.Context, dir string) (Report, error) {
	var rep Report
	info, err := os.Stat(dir)
	if err != nil {
		return rep, fmt.Errorf("importer: stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return rep, fmt.Errorf("importer: %s is not a directory", dir)
	}

	pending := make(map[string][]string)
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !isMarkdown(path) {
			return nil
		}
		id, links, outcome, ierr := im.importFile(ctx, path)
		if ierr != nil {
			rep.Errors = append(rep.Errors, ierr.Error())
			im.logger.Warn("importer: file failed", slog.String("path", path), slog.String("error", ierr.Error()))
			return nil
		}
		rep.add(outcome)
		if id != "" && len(links) > 0 {
			pending[id] = links
		}
		return nil
	})
	if err != nil {
		return rep, fmt.Errorf("importer: walk %s: %w", dir, err)
	}

	for id, links := range pending {
		if im.link(ctx, id, links) {
			rep.Linked++
		}
	}

	im.logger.Info("importer: directory imported",
		slog.String("dir", dir),
		slog.Int("created", rep.Created),
		slog.Int("updated", rep.Updated),
		slog.Int("unchanged", rep.Unchanged),
		slog.Int("linked", rep.Linked))
	return rep, nil
}

// ImportFile imports a single file and resolves its wikilinks immediately.
func (im *Importer) ImportFile(ctx context.Context, path string) (Outcome, error) {
	id, links, outcome, err := im.importFile(ctx, path)
	if err != nil {
		return outcome, err
	}
	if id != "" && len(links) > 0 {
		im.link(ctx, id, links)
	}
	return outcome, nil
}

// importFile returns the affected card id and its unresolved wikilinks.
func (im *Importer) importFile(ctx context.Context, path string) (string, []string, Outcome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, Skipped, fmt.Errorf("read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		// Editors and os.WriteFile create the file before writing it.
		return "", nil, Skipped, nil
	}
	sum := checksum.Sum(data)
	im.mu.Lock()
	seen := im.sums[path] == sum
	im.mu.Unlock()
	if seen {
		return "", nil, Unchanged, nil
	}

	doc, err := markdown.Parse(data)
	if err != nil {
		return "", nil, Skipped, fmt.Errorf("parse %s: %w", path, err)
	}
	title := doc.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	existing, found := im.match(doc.ID, title)
	var (
		id      string
		outcome Outcome
	)
	if found {
		id = existing.ID
		patch, changed := diff(existing, title, doc)
		outcome = Unchanged
		if changed {
			if _, err := im.store.Update(ctx, id, patch); err != nil {
				return "", nil, Skipped, fmt.Errorf("update %s: %w", path, err)
			}
			outcome = Updated
		}
	} else {
		c, err := im.store.Create(ctx, models.CardInput{
			Title:          title,
			Content:        doc.Body,
			Tags:           doc.Tags,
			Status:         doc.Status,
			RelatedCardIDs: doc.Related,
		})
		if err != nil {
			return "", nil, Skipped, fmt.Errorf("create %s: %w", path, err)
		}
		id, outcome = c.ID, Created
	}

	im.mu.Lock()
	im.sums[path] = sum
	im.mu.Unlock()
	return id, doc.Links, outcome, nil
}

// match prefers the frontmatter id and falls back to the title.
func (im *Importer) match(id, title string) (models.Card, bool) {
	if id != "" {
		if c, ok := im.store.Get(id); ok {
			return c, true
		}
	}
	return im.store.FindByTitle(title)
}

func diff(c models.Card, title string, doc *markdown.Document) (models.CardPatch, bool) {
	var p models.CardPatch
	changed := false
	if c.Title != title {
		p.Title = &title
		changed = true
	}
	if c.Content != doc.Body {
		body := doc.Body
		p.Content = &body
		changed = true
	}
	if !slices.Equal(c.Tags, doc.Tags) {
		tags := doc.Tags
		p.Tags = &tags
		changed = true
	}
	if doc.Status != "" && doc.Status != c.Status {
		status := doc.Status
		p.Status = &status
		changed = true
	}
	return p, changed
}

// link adds cards whose titles match links to the card's related ids.
// Unknown titles are ignored. It reports whether anything was added.
func (im *Importer) link(ctx context.Context, id string, links []string) bool {
	c, ok := im.store.Get(id)
	if !ok {
		return false
	}
	related := slices.Clone(c.RelatedCardIDs)
	for _, title := range links {
		target, ok := im.store.FindByTitle(title)
		if !ok || target.ID == id || slices.Contains(related, target.ID) {
			continue
		}
		related = append(related, target.ID)
	}
	if len(related) == len(c.RelatedCardIDs) {
		return false
	}
	if _, err := im.store.Update(ctx, id, models.CardPatch{RelatedCardIDs: &related}); err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			im.logger.Warn("importer: link failed", slog.String("id", id), slog.String("error", err.Error()))
		}
		return false
	}
	return true
}

func isMarkdown(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".md")
}
