// Package leaderboard exposes read-only ranking and session-analytics
// projections over learner accounts and progress records. Nothing in this
// package mutates state.
package leaderboard

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/playlms/backend/core"
	"github.com/playlms/backend/core/progress"
	"github.com/playlms/backend/core/user"
)

// Supported ranking metrics.
const (
	MetricExperience = "experience"
	MetricStreak     = "streak"
	MetricCourses    = "courses"
	MetricWatchTime  = "watchtime"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

type (
	// Entry is one leaderboard row.
	Entry struct {
		Rank     int    `json:"rank"`
		UserID   string `json:"user_id"`
		Username string `json:"username"`
		Name     string `json:"name"`
		Level    int    `json:"level"`
		Value    int    `json:"value"` // in the chosen metric's unit
	}

	// SessionStats summarizes a learner's study-session history for one
	// course.
	SessionStats struct {
		TotalSessions               int     `json:"total_sessions"`
		TotalSessionMinutes         int     `json:"total_session_minutes"`
		AverageSessionMinutes       float64 `json:"average_session_minutes"`
		TotalExperienceFromSessions int     `json:"total_experience_from_sessions"`
	}

	Service struct {
		users user.Repository
	}
)

func NewService(users user.Repository) *Service {
	return &Service{users: users}
}

// Rank returns the top accounts by the chosen metric, descending. Ties are
// broken by account creation time, oldest first, then by id so the order is
// stable across calls.
func (svc *Service) Rank(ctx context.Context, metric string, limit int) ([]Entry, error) {
	value, ok := metricValue(metric)
	if !ok {
		return nil, core.NewValidationError(
			errors.New("unknown leaderboard metric"),
			core.FieldError{Field: "metric", Error: "must be one of experience, streak, courses, watchtime"},
		)
	}
	if limit <= 0 {
		limit = DefaultLimit
	} else if limit > MaxLimit {
		limit = MaxLimit
	}

	users, err := svc.users.QueryAllUsers(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "loading accounts for ranking")
	}
	active := users[:0]
	for _, usr := range users {
		if usr.IsActive {
			active = append(active, usr)
		}
	}

	sort.Slice(active, func(i, j int) bool {
		vi, vj := value(active[i]), value(active[j])
		if vi != vj {
			return vi > vj
		}
		if !active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].CreatedAt.Before(active[j].CreatedAt)
		}
		return active[i].ID < active[j].ID
	})
	if len(active) > limit {
		active = active[:limit]
	}

	entries := make([]Entry, len(active))
	for i, usr := range active {
		entries[i] = Entry{
			Rank:     i + 1,
			UserID:   usr.ID,
			Username: usr.Username,
			Name:     usr.Name,
			Level:    usr.Level,
			Value:    value(usr),
		}
	}
	return entries, nil
}

func metricValue(metric string) (func(user.User) int, bool) {
	switch metric {
	case MetricExperience:
		return func(usr user.User) int { return usr.ExperiencePoints }, true
	case MetricStreak:
		return func(usr user.User) int { return usr.Streak.Current }, true
	case MetricCourses:
		return func(usr user.User) int { return usr.CompletedCourses }, true
	case MetricWatchTime:
		return func(usr user.User) int { return usr.WatchTimeSeconds }, true
	}
	return nil, false
}

// Stats aggregates a progress record's session list. The average is 0 when
// there are no sessions.
func Stats(prg progress.Progress) SessionStats {
	stats := SessionStats{TotalSessions: len(prg.Sessions)}
	for _, sess := range prg.Sessions {
		stats.TotalSessionMinutes += sess.DurationMinutes
		stats.TotalExperienceFromSessions += sess.ExperienceEarned
	}
	if stats.TotalSessions > 0 {
		stats.AverageSessionMinutes = float64(stats.TotalSessionMinutes) / float64(stats.TotalSessions)
	}
	return stats
}
