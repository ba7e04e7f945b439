// Package query filters and sorts card collections without mutating them.
package query

import (
	"cmp"
	"slices"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/starford/mdmemo/internal/models"
)

// SortField names the card attribute a view is ordered by.
type SortField string

const (
	SortTitle       SortField = "title"
	SortCreatedAt   SortField = "createdAt"
	SortUpdatedAt   SortField = "updatedAt"
	SortReviewCount SortField = "reviewCount"
)

// Order is the sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// Options configures a view over the collection.
type Options struct {
	Search string
	Tags   []string
	SortBy SortField
	Order  Order
}

// DefaultOptions returns the view shown when nothing is selected:
// no search, no tags, newest update first.
func DefaultOptions() Options {
	return Options{SortBy: SortUpdatedAt, Order: Desc}
}

// Validate validates the sort settings. Empty values are allowed and fall
// back to the defaults in Apply.
func (o Options) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.SortBy, validation.In(SortTitle, SortCreatedAt, SortUpdatedAt, SortReviewCount)),
		validation.Field(&o.Order, validation.In(Asc, Desc)),
	)
}

// Apply runs search, then tag filter, then sort, and returns a new slice.
// The sort is stable: cards that compare equal keep their collection order.
func Apply(cards []models.Card, opts Options) []models.Card {
	def := DefaultOptions()
	if opts.SortBy == "" {
		opts.SortBy = def.SortBy
	}
	if opts.Order == "" {
		opts.Order = def.Order
	}

	out := make([]models.Card, 0, len(cards))
	needle := strings.ToLower(opts.Search)
	for _, c := range cards {
		if needle != "" && !matchesSearch(c, needle) {
			continue
		}
		if len(opts.Tags) > 0 && !matchesAnyTag(c, opts.Tags) {
			continue
		}
		out = append(out, c)
	}

	compare := comparator(opts.SortBy)
	if opts.Order == Desc {
		asc := compare
		compare = func(a, b models.Card) int { return -asc(a, b) }
	}
	slices.SortStableFunc(out, compare)
	return out
}

func matchesSearch(c models.Card, needle string) bool {
	return strings.Contains(strings.ToLower(c.Title), needle) ||
		strings.Contains(strings.ToLower(c.Content), needle)
}

func matchesAnyTag(c models.Card, tags []string) bool {
	for _, t := range tags {
		if c.HasTag(t) {
			return true
		}
	}
	return false
}

func comparator(field SortField) func(a, b models.Card) int {
	switch field {
	case SortTitle:
		// Collators carry internal buffers, so each sort gets its own.
		col := collate.New(language.Und)
		return func(a, b models.Card) int { return col.CompareString(a.Title, b.Title) }
	case SortCreatedAt:
		return func(a, b models.Card) int { return a.CreatedAt.Compare(b.CreatedAt) }
	case SortReviewCount:
		return func(a, b models.Card) int { return cmp.Compare(a.ReviewCount, b.ReviewCount) }
	default:
		return func(a, b models.Card) int { return a.UpdatedAt.Compare(b.UpdatedAt) }
	}
}

// AllTags returns every tag in the collection, deduplicated and sorted.
func AllTags(cards []models.Card) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, c := range cards {
		for _, t := range c.Tags {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return out
}
