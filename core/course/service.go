package course

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/playlms/backend/core"
	"github.com/playlms/backend/core/playlist"
)

var (
	// errors
	ErrNotFound        = errors.New("course not found")
	ErrSlugExists      = errors.New("a course with this slug already exists")
	ErrPlaylistExists  = errors.New("this playlist has already been converted to a course")
	ErrEmptyPlaylist   = errors.New("a course needs at least one video")
	ErrAlreadyEnrolled = errors.New("already enrolled in this course")
	ErrAlreadyRated    = errors.New("course already rated by this user")
	ErrNotEnrolled     = errors.New("enrollment required")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		GetCourseByID(ctx context.Context, id string) (Course, error)
		GetCourseBySlug(ctx context.Context, slug string) (Course, error)
		GetCourseByPlaylistID(ctx context.Context, playlistID string) (Course, error)
		// FilterCourses applies AND on available QueryFilter fields;
		// QueryFilter.Search does a case-insensitive match on the title.
		FilterCourses(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Course, error)
		UpdateCourse(ctx context.Context, crs Course) (Course, error)
		// AddEnrollment appends the entry and bumps the enrollment counter
		// in one write.
		AddEnrollment(ctx context.Context, courseID string, enr Enrollment) (Course, error)
		// UpdateEnrollmentProgress refreshes one entry's denormalized
		// percent cache.
		UpdateEnrollmentProgress(ctx context.Context, courseID, userID string, percent int, lastAccessed time.Time) error
		// IncrementCompletions bumps the completion counter; callers gate it
		// on the progress row's one-way completion flip so two concurrent
		// final-module watches cannot both land here.
		IncrementCompletions(ctx context.Context, courseID string) error
		AddRating(ctx context.Context, courseID string, rating Rating) (Course, error)
	}

	Service struct {
		repo    Repository
		fetcher *playlist.Fetcher
		logger  core.Logger
	}
)

// NowFunc returns the current time; swapped out in tests.
var NowFunc = time.Now

func NewService(repo Repository, fetcher *playlist.Fetcher, logger core.Logger) *Service {
	return &Service{repo: repo, fetcher: fetcher, logger: logger}
}

// Assemble maps an ordered video list plus creator metadata onto a Course
// aggregate, one Module per video. Pure; persistence and uniqueness checks
// belong to the caller.
func Assemble(videos []playlist.VideoDescriptor, nc NewCourse, playlistID, createdBy string, now time.Time) (Course, error) {
	if len(videos) == 0 {
		return Course{}, ErrEmptyPlaylist
	}

	crs := Course{
		Slug:              core.Slugify(nc.Title),
		SourcePlaylistID:  playlistID,
		Title:             nc.Title,
		Description:       nc.Description,
		Category:          nc.Category,
		Difficulty:        nc.Difficulty,
		Tags:              nc.Tags,
		ThumbnailURL:      videos[0].ThumbnailURL,
		CreatedBy:         createdBy,
		IsActive:          true,
		IsPublic:          true,
		CompletionBonusXP: DefaultCompletionBonusXP,
		CreatedAt:         now.UTC(),
		UpdatedAt:         now.UTC(),
	}
	if nc.IsPublic != nil {
		crs.IsPublic = *nc.IsPublic
	}

	var totalSecs int
	for _, vd := range videos {
		crs.Modules = append(crs.Modules, Module{
			Title:           vd.Title,
			Description:     vd.Description,
			VideoID:         vd.ID,
			ThumbnailURL:    vd.ThumbnailURL,
			DurationSeconds: vd.DurationSeconds,
			Order:           vd.Position,
			RewardPoints:    DefaultRewardPoints,
		})
		totalSecs += vd.DurationSeconds
	}
	crs.TotalModules = len(crs.Modules)
	crs.TotalDurationMinutes = int(math.Round(float64(totalSecs) / 60))
	crs.TotalRewardPoints = crs.TotalModules * DefaultRewardPoints
	return crs, nil
}

// Create converts a playlist into a course: ingest, assemble, persist.
func (svc *Service) Create(ctx context.Context, nc NewCourse, createdBy string) (Course, error) {
	playlistID, ok := playlist.ExtractPlaylistID(nc.PlaylistURL)
	if !ok {
		return Course{}, core.NewValidationError(
			errors.New("unrecognized playlist URL"),
			core.FieldError{Field: "playlist_url", Error: "must be a playlist URL or a playlist id"},
		)
	}

	// duplicate ingestion guard
	if _, err := svc.repo.GetCourseByPlaylistID(ctx, playlistID); err == nil {
		return Course{}, ErrPlaylistExists
	} else if errors.Cause(err) != ErrNotFound {
		return Course{}, errors.Wrap(err, "checking playlist uniqueness")
	}

	videos, err := svc.fetcher.Fetch(ctx, playlistID, nc.MaxVideos)
	if err != nil {
		return Course{}, err
	}

	crs, err := Assemble(videos, nc, playlistID, createdBy, NowFunc())
	if err != nil {
		return Course{}, err
	}

	// slug uniqueness; the repo's unique constraint backs this up
	if _, err = svc.repo.GetCourseBySlug(ctx, crs.Slug); err == nil {
		return Course{}, ErrSlugExists
	} else if errors.Cause(err) != ErrNotFound {
		return Course{}, errors.Wrap(err, "checking slug uniqueness")
	}

	crs, err = svc.repo.CreateCourse(ctx, crs)
	if err != nil {
		return Course{}, err
	}
	svc.logger.Info("course created", crs.Slug, crs.TotalModules)
	return crs, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourseByID(ctx, id)
}

func (svc *Service) GetBySlug(ctx context.Context, slug string) (Course, error) {
	return svc.repo.GetCourseBySlug(ctx, core.CleanString(slug, true /* lower */))
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Course, error) {
	return svc.repo.FilterCourses(ctx, filter, ordering)
}

// Deactivate soft-deletes: courses are never partially deleted.
func (svc *Service) Deactivate(ctx context.Context, slug string) (Course, error) {
	crs, err := svc.repo.GetCourseBySlug(ctx, slug)
	if err != nil {
		return Course{}, err
	}
	crs.IsActive = false
	crs.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateCourse(ctx, crs)
}

// Rate records a learner's one-time rating and refreshes the aggregate
// average. Enrollment must precede rating.
func (svc *Service) Rate(ctx context.Context, slug, userID string, nr NewRating) (Course, error) {
	crs, err := svc.repo.GetCourseBySlug(ctx, slug)
	if err != nil {
		return Course{}, err
	}
	if _, ok := crs.EnrollmentFor(userID); !ok {
		return Course{}, ErrNotEnrolled
	}
	if crs.RatedBy(userID) {
		return Course{}, ErrAlreadyRated
	}
	return svc.repo.AddRating(ctx, crs.ID, Rating{
		UserID:  userID,
		Score:   nr.Score,
		Comment: nr.Comment,
		RatedAt: NowFunc().UTC(),
	})
}
