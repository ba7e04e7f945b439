package scheduler

import (
	"encoding"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidGrade is returned for grades outside {0, 3, 4, 5}.
var ErrInvalidGrade = errors.New("scheduler: invalid grade")

// Grade is the self-reported recall quality of a review.
// Grades 1 and 2 are intentionally not part of the scale.
type Grade int

const (
	Forgot Grade = 0 // Total blackout.
	Hard   Grade = 3 // Recalled with serious difficulty.
	Good   Grade = 4 // Recalled after some hesitation.
	Easy   Grade = 5 // Perfect recall.
)

var gradeByName = map[string]Grade{
	"forgot": Forgot,
	"hard":   Hard,
	"good":   Good,
	"easy":   Easy,
}

var (
	_ fmt.Stringer             = Grade(0)
	_ encoding.TextUnmarshaler = (*Grade)(nil)
)

// IsValid reports whether g is one of the accepted grades.
func (g Grade) IsValid() bool {
	switch g {
	case Forgot, Hard, Good, Easy:
		return true
	}
	return false
}

// String returns the lowercase grade name, or "Grade(n)" for invalid values.
func (g Grade) String() string {
	switch g {
	case Forgot:
		return "forgot"
	case Hard:
		return "hard"
	case Good:
		return "good"
	case Easy:
		return "easy"
	}
	return fmt.Sprintf("Grade(%d)", int(g))
}

// ParseGrade accepts either the numeric form ("4") or the name ("good").
func ParseGrade(s string) (Grade, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if g, ok := gradeByName[s]; ok {
		return g, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidGrade, s)
	}
	g := Grade(n)
	if !g.IsValid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidGrade, n)
	}
	return g, nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *Grade) UnmarshalText(text []byte) error {
	v, err := ParseGrade(string(text))
	if err != nil {
		return err
	}
	*g = v
	return nil
}
