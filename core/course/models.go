package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/playlms/backend/core"
)

// Difficulty levels a creator can tag a course with.
const (
	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)

const (
	// DefaultRewardPoints is the XP granted per completed module. It is a
	// flat rate, deliberately independent of module duration; tune here.
	DefaultRewardPoints = 10

	// DefaultCompletionBonusXP is granted once when a learner finishes the
	// whole course.
	DefaultCompletionBonusXP = 50
)

type (
	// Module is one video-derived unit of a Course. Modules are a snapshot
	// of the source playlist at conversion time: Order is contiguous 1..N
	// and never reshuffled afterwards.
	Module struct {
		Title           string `json:"title"`
		Description     string `json:"description"`
		VideoID         string `json:"video_id"`
		ThumbnailURL    string `json:"thumbnail_url"`
		DurationSeconds int    `json:"duration_seconds"`
		Order           int    `json:"order"` // unique within course, 1-based
		RewardPoints    int    `json:"reward_points"`
	}

	// Enrollment is one learner's entry on a course. The completed-module
	// set lives on the Progress aggregate; this only carries the
	// denormalized percent for listings.
	Enrollment struct {
		UserID          string    `json:"user_id"`
		EnrolledAt      time.Time `json:"enrolled_at"` // UTC
		ProgressPercent int       `json:"progress_percent"`
		LastAccessedAt  time.Time `json:"last_accessed_at"` // UTC
	}

	Rating struct {
		UserID  string    `json:"user_id"`
		Score   int       `json:"score"` // 1..5
		Comment string    `json:"comment"`
		RatedAt time.Time `json:"rated_at"` // UTC
	}

	Course struct {
		ID               string   `json:"id"`
		Slug             string   `json:"slug"`
		SourcePlaylistID string   `json:"source_playlist_id"`
		Title            string   `json:"title"`
		Description      string   `json:"description"`
		Category         string   `json:"category"`
		Difficulty       string   `json:"difficulty"`
		Tags             []string `json:"tags"`
		ThumbnailURL     string   `json:"thumbnail_url"`
		CreatedBy        string   `json:"created_by"`
		IsActive         bool     `json:"is_active"`
		IsPublic         bool     `json:"is_public"`

		Modules     []Module     `json:"modules"`
		Enrollments []Enrollment `json:"enrollments"`
		Ratings     []Rating     `json:"ratings"`

		// derived, recomputed on module-set change
		TotalModules         int `json:"total_modules"`
		TotalDurationMinutes int `json:"total_duration_minutes"`
		TotalRewardPoints    int `json:"total_reward_points"`
		CompletionBonusXP    int `json:"completion_bonus_xp"`

		TotalEnrollments int     `json:"total_enrollments"`
		TotalCompletions int     `json:"total_completions"`
		AverageRating    float64 `json:"average_rating"`

		CreatedAt time.Time `json:"created_at"` // UTC
		UpdatedAt time.Time `json:"updated_at"` // UTC
	}
)

// Module returns the module at the given 1-based order, if any.
func (c *Course) Module(order int) (Module, bool) {
	for _, m := range c.Modules {
		if m.Order == order {
			return m, true
		}
	}
	return Module{}, false
}

// EnrollmentFor returns the enrollment entry for a learner, if any.
func (c *Course) EnrollmentFor(userID string) (Enrollment, bool) {
	for _, e := range c.Enrollments {
		if e.UserID == userID {
			return e, true
		}
	}
	return Enrollment{}, false
}

// RatedBy reports whether the learner already rated this course.
func (c *Course) RatedBy(userID string) bool {
	for _, r := range c.Ratings {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// NewCourse contains the creator-supplied metadata for a conversion.
type NewCourse struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description"`
	PlaylistURL string   `json:"playlist_url" validate:"required,playlistref"`
	Category    string   `json:"category" validate:"required,category_"`
	Difficulty  string   `json:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced"`
	Tags        []string `json:"tags"`
	MaxVideos   int      `json:"max_videos" validate:"omitempty,min=1,max=500"`
	IsPublic    *bool    `json:"is_public"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.PlaylistURL = core.CleanString(nc.PlaylistURL)
	nc.Category = core.CleanString(nc.Category, true /* lower */)
	nc.Difficulty = core.CleanString(nc.Difficulty, true /* lower */)
	if nc.Difficulty == "" {
		nc.Difficulty = DifficultyBeginner
	}
	return validate.Struct(nc)
}

// NewRating is a learner's rating submission.
type NewRating struct {
	Score   int    `json:"score" validate:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

func (nr *NewRating) Validate(validate *validator.Validate) error {
	nr.Comment = core.CleanString(nr.Comment)
	return validate.Struct(nr)
}

// QueryFilter narrows course listings; fields combine with AND.
type QueryFilter struct {
	Search     string `query:"search"`
	Category   string `query:"category"`
	Difficulty string `query:"difficulty"`
	Tag        string `query:"tag"`
	IsActive   *bool  `query:"is_active"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Category == "" && qf.Difficulty == "" && qf.Tag == "" && qf.IsActive == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Category = core.CleanString(qf.Category, true /* lower */)
	qf.Difficulty = core.CleanString(qf.Difficulty, true /* lower */)
	qf.Tag = core.CleanString(qf.Tag, true /* lower */)
}

// orderableFields are the columns listings may sort on.
var orderableFields = map[string]bool{
	"created_at":        true,
	"title":             true,
	"average_rating":    true,
	"total_enrollments": true,
}

// SafeOrderings drops entries that do not name an orderable column; the
// repositories concatenate the rest into their sort clause as-is.
func SafeOrderings(ordering []core.DBOrdering) []core.DBOrdering {
	var safe []core.DBOrdering
	for _, ord := range ordering {
		if orderableFields[ord.Field] {
			safe = append(safe, ord)
		}
	}
	return safe
}
