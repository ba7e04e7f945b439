package cardstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/mdmemo/internal/models"
	"github.com/starford/mdmemo/internal/scheduler"
)

// Stats summarizes the collection for dashboards.
type Stats struct {
	Total  int `json:"total"`
	Memo   int `json:"memo"`
	Output int `json:"output"`
	Due    int `json:"due"`
	Today  int `json:"today"`
}

// Activity returns the per-day activity counts. Without an activity log
// it returns an empty map.
func (s *Store) Activity(ctx context.Context) (map[string]int, error) {
	if s.activity == nil {
		return map[string]int{}, nil
	}
	log, err := s.activity.Activity(ctx)
	if err != nil {
		return nil, fmt.Errorf("cardstore: activity: %w", err)
	}
	return log, nil
}

// TodayActivity returns today's count, or 0 when it cannot be read.
func (s *Store) TodayActivity(ctx context.Context) int {
	log, err := s.Activity(ctx)
	if err != nil {
		s.logger.Warn("cardstore: read activity", slog.String("error", err.Error()))
		return 0
	}
	return log[s.today()]
}

// Stats counts cards by status and due state.
func (s *Store) Stats(ctx context.Context) Stats {
	now := s.now()
	var st Stats
	for _, c := range s.All() {
		st.Total++
		switch c.Status {
		case models.StatusOutput:
			st.Output++
		default:
			st.Memo++
		}
		if scheduler.IsDue(c.NextReviewDate, now) {
			st.Due++
		}
	}
	st.Today = s.TodayActivity(ctx)
	return st
}

func (s *Store) recordActivity(ctx context.Context) {
	if s.activity == nil {
		return
	}
	if err := s.activity.Record(ctx, s.today(), 1); err != nil {
		s.logger.Warn("cardstore: record activity", slog.String("error", err.Error()))
	}
}

func (s *Store) today() string {
	return s.now().UTC().Format(ActivityDayLayout)
}
