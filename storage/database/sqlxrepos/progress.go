package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/playlms/backend/core/gamify"
	"github.com/playlms/backend/core/progress"
)

type progressRepository struct {
	db *sqlx.DB
}

var _ progress.Repository = (*progressRepository)(nil)

func NewProgressRepository(db *sqlx.DB) *progressRepository {
	return &progressRepository{db: db}
}

type progressRow struct {
	ID                     string    `db:"id"`
	UserID                 string    `db:"user_id"`
	CourseID               string    `db:"course_id"`
	Modules                []byte    `db:"modules"`
	CompletedModules       int       `db:"completed_modules"`
	OverallProgressPercent int       `db:"overall_progress_percent"`
	TotalWatchTimeSeconds  int       `db:"total_watch_time_seconds"`
	IsCourseCompleted      bool      `db:"is_course_completed"`
	CompletedAt            null.Time `db:"completed_at"`
	Sessions               []byte    `db:"sessions"`
	CurrentStreak          int       `db:"current_streak"`
	LongestStreak          int       `db:"longest_streak"`
	LastActivityDate       null.Time `db:"last_activity_date"`
	StartedAt              time.Time `db:"started_at"`
	UpdatedAt              time.Time `db:"updated_at"`
}

func newProgressRow(prg progress.Progress) (progressRow, error) {
	row := progressRow{
		ID:                     prg.ID,
		UserID:                 prg.UserID,
		CourseID:               prg.CourseID,
		CompletedModules:       prg.CompletedModules,
		OverallProgressPercent: prg.OverallProgressPercent,
		TotalWatchTimeSeconds:  prg.TotalWatchTimeSeconds,
		IsCourseCompleted:      prg.IsCourseCompleted,
		CurrentStreak:          prg.Streak.Current,
		LongestStreak:          prg.Streak.Longest,
		LastActivityDate:       nullTime(prg.Streak.LastActivity),
		StartedAt:              prg.StartedAt,
		UpdatedAt:              prg.UpdatedAt,
	}
	if prg.CompletedAt != nil {
		row.CompletedAt = null.TimeFrom(*prg.CompletedAt)
	}

	var err error
	if row.Modules, err = marshalList(prg.Modules); err != nil {
		return progressRow{}, err
	}
	if row.Sessions, err = marshalList(prg.Sessions); err != nil {
		return progressRow{}, err
	}
	return row, nil
}

func (row progressRow) toProgress() (progress.Progress, error) {
	prg := progress.Progress{
		ID:                     row.ID,
		UserID:                 row.UserID,
		CourseID:               row.CourseID,
		CompletedModules:       row.CompletedModules,
		OverallProgressPercent: row.OverallProgressPercent,
		TotalWatchTimeSeconds:  row.TotalWatchTimeSeconds,
		IsCourseCompleted:      row.IsCourseCompleted,
		Streak: gamify.Streak{
			Current:      row.CurrentStreak,
			Longest:      row.LongestStreak,
			LastActivity: row.LastActivityDate.Time,
		},
		StartedAt: row.StartedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if row.CompletedAt.Valid {
		t := row.CompletedAt.Time
		prg.CompletedAt = &t
	}
	if err := unmarshalList(row.Modules, &prg.Modules, "modules"); err != nil {
		return progress.Progress{}, err
	}
	if err := unmarshalList(row.Sessions, &prg.Sessions, "sessions"); err != nil {
		return progress.Progress{}, err
	}
	return prg, nil
}

func (repo *progressRepository) CreateProgress(ctx context.Context, prg progress.Progress) (progress.Progress, error) {
	prg.ID = uuid.NewString()
	row, err := newProgressRow(prg)
	if err != nil {
		return progress.Progress{}, err
	}

	_, err = repo.db.NamedExecContext(ctx, `
		INSERT INTO progress (id, user_id, course_id, modules, completed_modules,
		                      overall_progress_percent, total_watch_time_seconds,
		                      is_course_completed, completed_at, sessions,
		                      current_streak, longest_streak, last_activity_date,
		                      started_at, updated_at)
		VALUES (:id, :user_id, :course_id, :modules, :completed_modules,
		        :overall_progress_percent, :total_watch_time_seconds,
		        :is_course_completed, :completed_at, :sessions,
		        :current_streak, :longest_streak, :last_activity_date,
		        :started_at, :updated_at)`, row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return progress.Progress{}, progress.ErrAlreadyEnrolled
		}
		return progress.Progress{}, errors.Wrap(err, "creating progress")
	}
	return prg, nil
}

func (repo *progressRepository) GetProgress(ctx context.Context, userID, courseID string) (progress.Progress, error) {
	var row progressRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM progress WHERE user_id = $1 AND course_id = $2`, userID, courseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return progress.Progress{}, progress.ErrNotFound
		}
		return progress.Progress{}, errors.Wrap(err, "getting progress")
	}
	return row.toProgress()
}

func (repo *progressRepository) GetProgressByUser(ctx context.Context, userID string) ([]progress.Progress, error) {
	var rows []progressRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM progress WHERE user_id = $1 ORDER BY started_at`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying progress")
	}
	all := make([]progress.Progress, 0, len(rows))
	for _, row := range rows {
		prg, err := row.toProgress()
		if err != nil {
			return nil, err
		}
		all = append(all, prg)
	}
	return all, nil
}

func (repo *progressRepository) UpdateProgress(ctx context.Context, prg progress.Progress) (progress.Progress, error) {
	row, err := newProgressRow(prg)
	if err != nil {
		return progress.Progress{}, err
	}

	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE progress SET
			modules = :modules, completed_modules = :completed_modules,
			overall_progress_percent = :overall_progress_percent,
			total_watch_time_seconds = :total_watch_time_seconds,
			is_course_completed = :is_course_completed, completed_at = :completed_at,
			sessions = :sessions, current_streak = :current_streak,
			longest_streak = :longest_streak, last_activity_date = :last_activity_date,
			updated_at = :updated_at
		WHERE id = :id`, row)
	if err != nil {
		return progress.Progress{}, errors.Wrap(err, "updating progress")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return progress.Progress{}, progress.ErrNotFound
	}
	return prg, nil
}

func (repo *progressRepository) MarkCourseCompleted(ctx context.Context, progressID string, completedAt time.Time) (bool, error) {
	// single statement so concurrent final-module watches cannot both flip
	res, err := repo.db.ExecContext(ctx, `
		UPDATE progress SET
			is_course_completed = true, completed_at = $2, updated_at = $2
		WHERE id = $1 AND NOT is_course_completed`, progressID, completedAt)
	if err != nil {
		return false, errors.Wrap(err, "marking course completed")
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
