// Package scheduler implements the SM-2 spaced-repetition variant used to
// plan card reviews. Everything here is pure: callers pass the clock in.
package scheduler

import (
	"math"
	"time"
)

const (
	DefaultEaseFactor = 2.5
	MinEaseFactor     = 1.3
)

// State is the part of a card the scheduler reads.
type State struct {
	EaseFactor  float64
	Interval    int
	ReviewCount int
}

// Result is the schedule to merge back into the card.
type Result struct {
	Interval       int
	EaseFactor     float64
	ReviewCount    int
	NextReviewDate time.Time
	LastReviewedAt time.Time
}

// normalize defaults fields that legacy or partial records leave unset.
func (s State) normalize() State {
	if s.EaseFactor == 0 || math.IsNaN(s.EaseFactor) {
		s.EaseFactor = DefaultEaseFactor
	}
	if s.Interval < 0 {
		s.Interval = 0
	}
	if s.ReviewCount < 0 {
		s.ReviewCount = 0
	}
	return s
}

// Next computes the schedule after a review graded g at time now.
// g must satisfy g.IsValid(); callers validate at the boundary.
func Next(s State, g Grade, now time.Time) Result {
	s = s.normalize()

	interval := 1
	reviewCount := 0
	if g >= Hard {
		switch s.ReviewCount {
		case 0:
			interval = 1
		case 1:
			interval = 6
		default:
			interval = int(math.Round(float64(s.Interval) * s.EaseFactor))
		}
		reviewCount = s.ReviewCount + 1
	}

	q := float64(Easy - g)
	ease := s.EaseFactor + (0.1 - q*(0.08+q*0.02))
	if ease < MinEaseFactor {
		ease = MinEaseFactor
	}

	return Result{
		Interval:       interval,
		EaseFactor:     ease,
		ReviewCount:    reviewCount,
		NextReviewDate: AddDays(StartOfDay(now), interval),
		LastReviewedAt: now,
	}
}

// IsDue reports whether a card scheduled for next needs review by the end of
// the day containing now. A nil date means never scheduled, which is due.
func IsDue(next *time.Time, now time.Time) bool {
	if next == nil {
		return true
	}
	return !next.After(EndOfDay(now))
}

// StartOfDay truncates t to local midnight in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last millisecond of the day containing t.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// AddDays moves a calendar date forward, staying at midnight across DST shifts.
func AddDays(day time.Time, n int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d+n, 0, 0, 0, 0, day.Location())
}
