package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/playlms/backend/core"
	"github.com/playlms/backend/core/course"
)

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

type courseRow struct {
	ID                   string      `db:"id"`
	Slug                 string      `db:"slug"`
	SourcePlaylistID     string      `db:"source_playlist_id"`
	Title                string      `db:"title"`
	Description          string      `db:"description"`
	Category             string      `db:"category"`
	Difficulty           string      `db:"difficulty"`
	Tags                 []byte      `db:"tags"`
	ThumbnailURL         string      `db:"thumbnail_url"`
	CreatedBy            null.String `db:"created_by"`
	IsActive             bool        `db:"is_active"`
	IsPublic             bool        `db:"is_public"`
	Modules              []byte      `db:"modules"`
	Enrollments          []byte      `db:"enrollments"`
	Ratings              []byte      `db:"ratings"`
	TotalModules         int         `db:"total_modules"`
	TotalDurationMinutes int         `db:"total_duration_minutes"`
	TotalRewardPoints    int         `db:"total_reward_points"`
	CompletionBonusXP    int         `db:"completion_bonus_xp"`
	TotalEnrollments     int         `db:"total_enrollments"`
	TotalCompletions     int         `db:"total_completions"`
	AverageRating        float64     `db:"average_rating"`
	CreatedAt            time.Time   `db:"created_at"`
	UpdatedAt            time.Time   `db:"updated_at"`
}

func newCourseRow(crs course.Course) (courseRow, error) {
	row := courseRow{
		ID:                   crs.ID,
		Slug:                 crs.Slug,
		SourcePlaylistID:     crs.SourcePlaylistID,
		Title:                crs.Title,
		Description:          crs.Description,
		Category:             crs.Category,
		Difficulty:           crs.Difficulty,
		ThumbnailURL:         crs.ThumbnailURL,
		CreatedBy:            null.NewString(crs.CreatedBy, crs.CreatedBy != ""),
		IsActive:             crs.IsActive,
		IsPublic:             crs.IsPublic,
		TotalModules:         crs.TotalModules,
		TotalDurationMinutes: crs.TotalDurationMinutes,
		TotalRewardPoints:    crs.TotalRewardPoints,
		CompletionBonusXP:    crs.CompletionBonusXP,
		TotalEnrollments:     crs.TotalEnrollments,
		TotalCompletions:     crs.TotalCompletions,
		AverageRating:        crs.AverageRating,
		CreatedAt:            crs.CreatedAt,
		UpdatedAt:            crs.UpdatedAt,
	}

	var err error
	if row.Tags, err = marshalList(crs.Tags); err != nil {
		return courseRow{}, err
	}
	if row.Modules, err = marshalList(crs.Modules); err != nil {
		return courseRow{}, err
	}
	if row.Enrollments, err = marshalList(crs.Enrollments); err != nil {
		return courseRow{}, err
	}
	if row.Ratings, err = marshalList(crs.Ratings); err != nil {
		return courseRow{}, err
	}
	return row, nil
}

// marshalList marshals a slice to JSONB, mapping nil to an empty array.
func marshalList(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling jsonb column")
	}
	if string(b) == "null" {
		b = []byte("[]")
	}
	return b, nil
}

func unmarshalList(src []byte, dst interface{}, col string) error {
	if len(src) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(src, dst), "unmarshaling "+col)
}

func (row courseRow) toCourse() (course.Course, error) {
	crs := course.Course{
		ID:                   row.ID,
		Slug:                 row.Slug,
		SourcePlaylistID:     row.SourcePlaylistID,
		Title:                row.Title,
		Description:          row.Description,
		Category:             row.Category,
		Difficulty:           row.Difficulty,
		ThumbnailURL:         row.ThumbnailURL,
		CreatedBy:            row.CreatedBy.String,
		IsActive:             row.IsActive,
		IsPublic:             row.IsPublic,
		TotalModules:         row.TotalModules,
		TotalDurationMinutes: row.TotalDurationMinutes,
		TotalRewardPoints:    row.TotalRewardPoints,
		CompletionBonusXP:    row.CompletionBonusXP,
		TotalEnrollments:     row.TotalEnrollments,
		TotalCompletions:     row.TotalCompletions,
		AverageRating:        row.AverageRating,
		CreatedAt:            row.CreatedAt,
		UpdatedAt:            row.UpdatedAt,
	}
	if err := unmarshalList(row.Tags, &crs.Tags, "tags"); err != nil {
		return course.Course{}, err
	}
	if err := unmarshalList(row.Modules, &crs.Modules, "modules"); err != nil {
		return course.Course{}, err
	}
	if err := unmarshalList(row.Enrollments, &crs.Enrollments, "enrollments"); err != nil {
		return course.Course{}, err
	}
	if err := unmarshalList(row.Ratings, &crs.Ratings, "ratings"); err != nil {
		return course.Course{}, err
	}
	return crs, nil
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	crs.ID = uuid.NewString()
	row, err := newCourseRow(crs)
	if err != nil {
		return course.Course{}, err
	}

	_, err = repo.db.NamedExecContext(ctx, `
		INSERT INTO course (id, slug, source_playlist_id, title, description, category, difficulty,
		                    tags, thumbnail_url, created_by, is_active, is_public, modules,
		                    enrollments, ratings, total_modules, total_duration_minutes,
		                    total_reward_points, completion_bonus_xp, total_enrollments,
		                    total_completions, average_rating, created_at, updated_at)
		VALUES (:id, :slug, :source_playlist_id, :title, :description, :category, :difficulty,
		        :tags, :thumbnail_url, :created_by, :is_active, :is_public, :modules,
		        :enrollments, :ratings, :total_modules, :total_duration_minutes,
		        :total_reward_points, :completion_bonus_xp, :total_enrollments,
		        :total_completions, :average_rating, :created_at, :updated_at)`, row)
	if err != nil {
		return course.Course{}, errors.Wrap(mapCourseConstraintErr(err), "creating course")
	}
	return crs, nil
}

func (repo *courseRepository) getCourse(ctx context.Context, query string, args ...interface{}) (course.Course, error) {
	var row courseRow
	if err := repo.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "getting course")
	}
	return row.toCourse()
}

func (repo *courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	return repo.getCourse(ctx, `SELECT * FROM course WHERE id = $1`, id)
}

func (repo *courseRepository) GetCourseBySlug(ctx context.Context, slug string) (course.Course, error) {
	return repo.getCourse(ctx, `SELECT * FROM course WHERE slug = $1`, slug)
}

func (repo *courseRepository) GetCourseByPlaylistID(ctx context.Context, playlistID string) (course.Course, error) {
	return repo.getCourse(ctx, `SELECT * FROM course WHERE source_playlist_id = $1`, playlistID)
}

func (repo *courseRepository) FilterCourses(ctx context.Context, filter course.QueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	query := `SELECT * FROM course WHERE 1=1`
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Search != "" {
		query += " AND title ILIKE " + arg("%"+filter.Search+"%")
	}
	if filter.Category != "" {
		query += " AND category = " + arg(filter.Category)
	}
	if filter.Difficulty != "" {
		query += " AND difficulty = " + arg(filter.Difficulty)
	}
	if filter.Tag != "" {
		query += " AND tags @> " + arg(`["`+filter.Tag+`"]`) + "::jsonb"
	}
	if filter.IsActive != nil {
		query += " AND is_active = " + arg(*filter.IsActive)
	}

	if ordering = course.SafeOrderings(ordering); len(ordering) > 0 {
		query += " ORDER BY"
		for i, ord := range ordering {
			if i > 0 {
				query += ","
			}
			query += " " + ord.String()
		}
	} else {
		query += " ORDER BY created_at DESC"
	}

	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		crs, err := row.toCourse()
		if err != nil {
			return nil, err
		}
		courses = append(courses, crs)
	}
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	row, err := newCourseRow(crs)
	if err != nil {
		return course.Course{}, err
	}

	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE course SET
			slug = :slug, title = :title, description = :description, category = :category,
			difficulty = :difficulty, tags = :tags, thumbnail_url = :thumbnail_url,
			is_active = :is_active, is_public = :is_public, modules = :modules,
			total_modules = :total_modules, total_duration_minutes = :total_duration_minutes,
			total_reward_points = :total_reward_points, completion_bonus_xp = :completion_bonus_xp,
			updated_at = :updated_at
		WHERE id = :id`, row)
	if err != nil {
		return course.Course{}, errors.Wrap(mapCourseConstraintErr(err), "updating course")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return crs, nil
}

func (repo *courseRepository) AddEnrollment(ctx context.Context, courseID string, enr course.Enrollment) (course.Course, error) {
	entry, err := json.Marshal(enr)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "marshaling enrollment")
	}

	// single statement so two tabs cannot enroll twice
	res, err := repo.db.ExecContext(ctx, `
		UPDATE course SET
			enrollments = enrollments || $2::jsonb,
			total_enrollments = total_enrollments + 1,
			updated_at = $3
		WHERE id = $1
		  AND NOT enrollments @> jsonb_build_array(jsonb_build_object('user_id', $4::text))`,
		courseID, entry, enr.EnrolledAt, enr.UserID)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "adding enrollment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err = repo.GetCourseByID(ctx, courseID); err != nil {
			return course.Course{}, err
		}
		return course.Course{}, course.ErrAlreadyEnrolled
	}
	return repo.GetCourseByID(ctx, courseID)
}

func (repo *courseRepository) UpdateEnrollmentProgress(ctx context.Context, courseID, userID string, percent int, lastAccessed time.Time) error {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE course SET
			enrollments = (
				SELECT COALESCE(jsonb_agg(
					CASE WHEN e->>'user_id' = $2
					THEN e || jsonb_build_object('progress_percent', $3::int, 'last_accessed_at', to_jsonb($4::timestamptz))
					ELSE e END
				), '[]'::jsonb)
				FROM jsonb_array_elements(enrollments) e
			),
			updated_at = $4
		WHERE id = $1`,
		courseID, userID, percent, lastAccessed)
	if err != nil {
		return errors.Wrap(err, "updating enrollment progress")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return course.ErrNotFound
	}
	return nil
}

func (repo *courseRepository) IncrementCompletions(ctx context.Context, courseID string) error {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE course SET total_completions = total_completions + 1 WHERE id = $1`, courseID)
	if err != nil {
		return errors.Wrap(err, "incrementing completions")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return course.ErrNotFound
	}
	return nil
}

func (repo *courseRepository) AddRating(ctx context.Context, courseID string, rating course.Rating) (course.Course, error) {
	entry, err := json.Marshal(rating)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "marshaling rating")
	}

	res, err := repo.db.ExecContext(ctx, `
		UPDATE course SET
			ratings = ratings || $2::jsonb,
			average_rating = (
				SELECT AVG((r->>'score')::int)
				FROM jsonb_array_elements(ratings || $2::jsonb) r
			),
			updated_at = $3
		WHERE id = $1
		  AND NOT ratings @> jsonb_build_array(jsonb_build_object('user_id', $4::text))`,
		courseID, entry, rating.RatedAt, rating.UserID)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "adding rating")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err = repo.GetCourseByID(ctx, courseID); err != nil {
			return course.Course{}, err
		}
		return course.Course{}, course.ErrAlreadyRated
	}
	return repo.GetCourseByID(ctx, courseID)
}

func mapCourseConstraintErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		switch {
		case pqErr.Constraint == "course_slug_key":
			return course.ErrSlugExists
		case pqErr.Constraint == "course_source_playlist_id_key":
			return course.ErrPlaylistExists
		}
	}
	return err
}
