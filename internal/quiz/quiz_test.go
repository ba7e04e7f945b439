package quiz

import (
	"testing"

	"github.com/starford/mdmemo/internal/models"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		answer, correct string
		want            bool
	}{
		{"React", "React", true},
		{"  react ", "React", true},
		{"rea", "React", true},
		{"react hooks", "React", true},
		{"vue", "React", false},
		{"", "React", false},
		{"   ", "React", false},
		{"x", "", false},
	}
	for _, tt := range tests {
		if got := Check(tt.answer, tt.correct); got != tt.want {
			t.Errorf("Check(%q, %q) = %v, want %v", tt.answer, tt.correct, got, tt.want)
		}
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": HideTitle, "title": HideTitle, " Content ": HideContent} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseMode("tags"); err == nil {
		t.Error("ParseMode(tags) should fail")
	}
}

func TestAsk(t *testing.T) {
	c := models.Card{ID: "1", Title: "React", Content: "UI library", Tags: []string{"js"}}

	q := Ask(c, HideTitle)
	if q.Title != "" || q.Content != "UI library" {
		t.Errorf("HideTitle question = %+v", q)
	}
	q = Ask(c, HideContent)
	if q.Title != "React" || q.Content != "" || len(q.Tags) != 1 {
		t.Errorf("HideContent question = %+v", q)
	}
}
