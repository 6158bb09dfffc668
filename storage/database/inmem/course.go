package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/playlms/backend/core"
	"github.com/playlms/backend/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) query() []course.Course {
	courses := make([]course.Course, 0, len(repo.db.courses))
	for _, crs := range repo.db.courses {
		courses = append(courses, *crs)
	}
	sort.Slice(courses, func(i, j int) bool {
		return courses[i].CreatedAt.After(courses[j].CreatedAt)
	})
	return courses
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, existing := range repo.db.courses {
		if existing.Slug == crs.Slug {
			return course.Course{}, course.ErrSlugExists
		}
		if existing.SourcePlaylistID == crs.SourcePlaylistID {
			return course.Course{}, course.ErrPlaylistExists
		}
	}
	crs.ID = uuid.NewString()
	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return *crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) GetCourseBySlug(ctx context.Context, slug string) (course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, crs := range repo.db.courses {
		if crs.Slug == slug {
			return *crs, nil
		}
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) GetCourseByPlaylistID(ctx context.Context, playlistID string) (course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, crs := range repo.db.courses {
		if crs.SourcePlaylistID == playlistID {
			return *crs, nil
		}
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) FilterCourses(ctx context.Context, filter course.QueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var courses []course.Course
	for _, crs := range repo.query() {
		if filter.Search != "" && !strings.Contains(strings.ToLower(crs.Title), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.Category != "" && crs.Category != filter.Category {
			continue
		}
		if filter.Difficulty != "" && crs.Difficulty != filter.Difficulty {
			continue
		}
		if filter.Tag != "" && !hasTag(crs, filter.Tag) {
			continue
		}
		if filter.IsActive != nil && crs.IsActive != *filter.IsActive {
			continue
		}
		courses = append(courses, crs)
	}
	applyCourseOrdering(courses, ordering)
	return courses, nil
}

// applyCourseOrdering mirrors the SQL repository's ORDER BY support for the
// columns course.SafeOrderings allows; the default is newest first.
func applyCourseOrdering(courses []course.Course, ordering []core.DBOrdering) {
	ordering = course.SafeOrderings(ordering)
	if len(ordering) == 0 {
		return
	}
	ord := ordering[0]
	sort.SliceStable(courses, func(i, j int) bool {
		var less bool
		switch ord.Field {
		case "title":
			less = courses[i].Title < courses[j].Title
		case "average_rating":
			less = courses[i].AverageRating < courses[j].AverageRating
		case "total_enrollments":
			less = courses[i].TotalEnrollments < courses[j].TotalEnrollments
		default:
			less = courses[i].CreatedAt.Before(courses[j].CreatedAt)
		}
		if ord.Ascending {
			return less
		}
		return !less
	})
}

func hasTag(crs course.Course, tag string) bool {
	for _, t := range crs.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[crs.ID]; !ok {
		return course.Course{}, course.ErrNotFound
	}
	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) AddEnrollment(ctx context.Context, courseID string, enr course.Enrollment) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	crs, ok := repo.db.courses[courseID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	if _, enrolled := crs.EnrollmentFor(enr.UserID); enrolled {
		return course.Course{}, course.ErrAlreadyEnrolled
	}
	crs.Enrollments = append(crs.Enrollments, enr)
	crs.TotalEnrollments++
	crs.UpdatedAt = enr.EnrolledAt
	return *crs, nil
}

func (repo *courseRepository) UpdateEnrollmentProgress(ctx context.Context, courseID, userID string, percent int, lastAccessed time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	crs, ok := repo.db.courses[courseID]
	if !ok {
		return course.ErrNotFound
	}
	for i, enr := range crs.Enrollments {
		if enr.UserID == userID {
			crs.Enrollments[i].ProgressPercent = percent
			crs.Enrollments[i].LastAccessedAt = lastAccessed
		}
	}
	crs.UpdatedAt = lastAccessed
	return nil
}

func (repo *courseRepository) IncrementCompletions(ctx context.Context, courseID string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	crs, ok := repo.db.courses[courseID]
	if !ok {
		return course.ErrNotFound
	}
	crs.TotalCompletions++
	return nil
}

func (repo *courseRepository) AddRating(ctx context.Context, courseID string, rating course.Rating) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	crs, ok := repo.db.courses[courseID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	if crs.RatedBy(rating.UserID) {
		return course.Course{}, course.ErrAlreadyRated
	}
	crs.Ratings = append(crs.Ratings, rating)
	var sum int
	for _, rt := range crs.Ratings {
		sum += rt.Score
	}
	crs.AverageRating = float64(sum) / float64(len(crs.Ratings))
	crs.UpdatedAt = rating.RatedAt
	return *crs, nil
}
