// Package models defines the domain types for mdmemo.
package models

import (
	"math"
	"strings"
	"time"

	"github.com/starford/mdmemo/internal/scheduler"
)

// Status marks whether a card is still being learned or already mastered.
type Status string

const (
	StatusMemo   Status = "memo"
	StatusOutput Status = "output"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	return s == StatusMemo || s == StatusOutput
}

// Card is a Markdown-bodied learning item with its review schedule.
// JSON field names match the persisted collection format.
type Card struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Content        string     `json:"content"`
	Tags           []string   `json:"tags"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	LastReviewedAt *time.Time `json:"lastReviewedAt,omitempty"`
	ReviewCount    int        `json:"reviewCount"`
	Status         Status     `json:"status"`
	EaseFactor     float64    `json:"easeFactor"`
	Interval       int        `json:"interval"`
	NextReviewDate *time.Time `json:"nextReviewDate,omitempty"`
	RelatedCardIDs []string   `json:"relatedCardIds"`
}

// CardInput is the user-supplied record a card is created from.
type CardInput struct {
	Title          string
	Content        string
	Tags           []string
	Status         Status
	RelatedCardIDs []string
}

// CardPatch holds the fields of a partial update. Nil fields are left untouched.
type CardPatch struct {
	Title          *string
	Content        *string
	Tags           *[]string
	Status         *Status
	RelatedCardIDs *[]string
	EaseFactor     *float64
	Interval       *int
}

// Schedule returns the scheduler state carried by the card.
func (c *Card) Schedule() scheduler.State {
	return scheduler.State{
		EaseFactor:  c.EaseFactor,
		Interval:    c.Interval,
		ReviewCount: c.ReviewCount,
	}
}

// ApplyReview merges a scheduler result into the card.
func (c *Card) ApplyReview(r scheduler.Result) {
	next := r.NextReviewDate
	last := r.LastReviewedAt
	c.Interval = r.Interval
	c.EaseFactor = r.EaseFactor
	c.ReviewCount = r.ReviewCount
	c.NextReviewDate = &next
	c.LastReviewedAt = &last
}

// Merge shallow-merges the non-nil fields of p into c.
// It does not touch UpdatedAt; the caller owns the clock.
func (c *Card) Merge(p CardPatch) {
	if p.Title != nil {
		c.Title = strings.TrimSpace(*p.Title)
	}
	if p.Content != nil {
		c.Content = *p.Content
	}
	if p.Tags != nil {
		c.Tags = NormalizeTags(*p.Tags)
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.RelatedCardIDs != nil {
		c.RelatedCardIDs = append([]string{}, (*p.RelatedCardIDs)...)
	}
	if p.EaseFactor != nil {
		c.EaseFactor = *p.EaseFactor
	}
	if p.Interval != nil {
		c.Interval = *p.Interval
	}
}

// Normalize fills fields missing from older persisted records and clamps
// the schedule into its valid range.
func (c *Card) Normalize() {
	if !c.Status.IsValid() {
		c.Status = StatusMemo
	}
	if c.EaseFactor == 0 || math.IsNaN(c.EaseFactor) {
		c.EaseFactor = scheduler.DefaultEaseFactor
	}
	if c.EaseFactor < scheduler.MinEaseFactor {
		c.EaseFactor = scheduler.MinEaseFactor
	}
	if c.Interval < 0 {
		c.Interval = 0
	}
	if c.ReviewCount < 0 {
		c.ReviewCount = 0
	}
	c.Tags = NormalizeTags(c.Tags)
	if c.RelatedCardIDs == nil {
		c.RelatedCardIDs = []string{}
	}
	if c.UpdatedAt.Before(c.CreatedAt) {
		c.UpdatedAt = c.CreatedAt
	}
}

// Clone returns a deep copy of c.
func (c Card) Clone() Card {
	out := c
	out.Tags = append([]string{}, c.Tags...)
	out.RelatedCardIDs = append([]string{}, c.RelatedCardIDs...)
	if c.LastReviewedAt != nil {
		t := *c.LastReviewedAt
		out.LastReviewedAt = &t
	}
	if c.NextReviewDate != nil {
		t := *c.NextReviewDate
		out.NextReviewDate = &t
	}
	return out
}

// HasTag reports whether the card carries tag.
func (c *Card) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// NormalizeTags trims tags, drops empty ones and collapses duplicates,
// keeping first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
