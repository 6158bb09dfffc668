// Package progress tracks a learner's journey through a course: per-module
// watch state, notes and bookmarks, study sessions and the per-course streak.
// The Progress record is the source of truth for completion; the enrollment
// entry on the course only caches the percent for listings.
package progress

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/playlms/backend/core/gamify"
)

type (
	// Note is a timestamped text annotation on a module's video.
	Note struct {
		ID        string    `json:"id"`
		Content   string    `json:"content"`
		Timestamp int       `json:"timestamp"` // seconds into the video
		CreatedAt time.Time `json:"created_at"`
	}

	// Bookmark marks a position in a module's video to jump back to.
	Bookmark struct {
		ID        string    `json:"id"`
		Title     string    `json:"title"`
		Timestamp int       `json:"timestamp"`
		CreatedAt time.Time `json:"created_at"`
	}

	// ModuleProgress is the watch state of one module, keyed by the module's
	// order within the course.
	ModuleProgress struct {
		Order            int        `json:"order"`
		IsCompleted      bool       `json:"is_completed"`
		WatchTimeSeconds int        `json:"watch_time_seconds"`
		LastWatchedAt    time.Time  `json:"last_watched_at"`
		CompletedAt      *time.Time `json:"completed_at,omitempty"`
		Notes            []Note     `json:"notes,omitempty"`
		Bookmarks        []Bookmark `json:"bookmarks,omitempty"`
	}

	// Session is one recorded study sitting.
	Session struct {
		ID               string    `json:"id"`
		StartTime        time.Time `json:"start_time"`
		EndTime          time.Time `json:"end_time"`
		DurationMinutes  int       `json:"duration_minutes"`
		ExperienceEarned int       `json:"experience_earned"`
	}

	// Progress is the per-learner-per-course aggregate.
	Progress struct {
		ID                     string           `json:"id"`
		UserID                 string           `json:"user_id"`
		CourseID               string           `json:"course_id"`
		Modules                []ModuleProgress `json:"modules"`
		CompletedModules       int              `json:"completed_modules"`
		OverallProgressPercent int              `json:"overall_progress_percent"`
		TotalWatchTimeSeconds  int              `json:"total_watch_time_seconds"`
		IsCourseCompleted      bool             `json:"is_course_completed"`
		CompletedAt            *time.Time       `json:"completed_at,omitempty"`
		Sessions               []Session        `json:"sessions,omitempty"`
		Streak                 gamify.Streak    `json:"streak"`
		StartedAt              time.Time        `json:"started_at"`
		UpdatedAt              time.Time        `json:"updated_at"`
	}
)

// Module returns the tracked state for the module at `order`.
func (p *Progress) Module(order int) (ModuleProgress, bool) {
	for _, mp := range p.Modules {
		if mp.Order == order {
			return mp, true
		}
	}
	return ModuleProgress{}, false
}

// setModule upserts a module's state keeping the slice ordered by module
// order.
func (p *Progress) setModule(mp ModuleProgress) {
	for i, existing := range p.Modules {
		if existing.Order == mp.Order {
			p.Modules[i] = mp
			return
		}
	}
	for i, existing := range p.Modules {
		if existing.Order > mp.Order {
			p.Modules = append(p.Modules[:i], append([]ModuleProgress{mp}, p.Modules[i:]...)...)
			return
		}
	}
	p.Modules = append(p.Modules, mp)
}

type (
	// WatchUpdate is what the player reports after a watch interval.
	WatchUpdate struct {
		ModuleOrder      int  `json:"module_order" validate:"required,min=1"`
		WatchTimeSeconds int  `json:"watch_time_seconds" validate:"min=0"`
		Completed        bool `json:"completed"`
	}

	// NewNote is the payload for adding a note to a module.
	NewNote struct {
		ModuleOrder int    `json:"module_order" validate:"required,min=1"`
		Content     string `json:"content" validate:"required,max=2000"`
		Timestamp   int    `json:"timestamp" validate:"min=0"`
	}

	// NewBookmark is the payload for bookmarking a position in a module.
	// An empty title defaults to the formatted timestamp.
	NewBookmark struct {
		ModuleOrder int    `json:"module_order" validate:"required,min=1"`
		Title       string `json:"title" validate:"omitempty,max=200"`
		Timestamp   int    `json:"timestamp" validate:"min=0"`
	}

	// NewSession is the payload for logging a study sitting.
	NewSession struct {
		StartTime        time.Time `json:"start_time" validate:"required"`
		EndTime          time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
		ExperienceEarned int       `json:"experience_earned" validate:"min=0"`
	}
)

func (wu *WatchUpdate) Validate(validate *validator.Validate) error {
	return validate.Struct(wu)
}

func (nn *NewNote) Validate(validate *validator.Validate) error {
	return validate.Struct(nn)
}

func (nb *NewBookmark) Validate(validate *validator.Validate) error {
	return validate.Struct(nb)
}

func (ns *NewSession) Validate(validate *validator.Validate) error {
	return validate.Struct(ns)
}
