// Package quiz implements the self-test flow: show half of a card, hide the
// other half, and check a typed answer against the title.
package quiz

import (
	"fmt"
	"strings"

	"github.com/starford/mdmemo/internal/models"
)

// Mode selects which half of the card is hidden.
type Mode string

const (
	// HideTitle shows the body and asks for the title.
	HideTitle Mode = "title"
	// HideContent shows the title and tags; the body is revealed on demand.
	HideContent Mode = "content"
)

// ParseMode accepts "title", "content" or "" (which means HideTitle).
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", HideTitle:
		return HideTitle, nil
	case HideContent:
		return HideContent, nil
	}
	return "", fmt.Errorf("quiz: unknown mode %q", s)
}

// Question is the visible half of a card.
type Question struct {
	ID      string   `json:"id"`
	Mode    Mode     `json:"mode"`
	Title   string   `json:"title,omitempty"`
	Content string   `json:"content,omitempty"`
	Tags    []string `json:"tags"`
}

// Ask builds the question for c in mode m.
func Ask(c models.Card, m Mode) Question {
	q := Question{ID: c.ID, Mode: m, Tags: append([]string{}, c.Tags...)}
	if m == HideContent {
		q.Title = c.Title
	} else {
		q.Content = c.Content
	}
	return q
}

// Check compares answer with the expected title, ignoring case and
// surrounding space. Either string containing the other counts as correct.
// An empty answer is never correct.
func Check(answer, correct string) bool {
	a := strings.ToLower(strings.TrimSpace(answer))
	c := strings.ToLower(strings.TrimSpace(correct))
	if a == "" || c == "" {
		return false
	}
	return a == c || strings.Contains(c, a) || strings.Contains(a, c)
}
