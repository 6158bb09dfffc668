package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/playlms/backend/core/progress"
)

type progressRepository struct {
	db *DB
}

var _ progress.Repository = (*progressRepository)(nil)

func NewProgressRepository(db *DB) *progressRepository {
	return &progressRepository{db: db}
}

func (repo *progressRepository) CreateProgress(ctx context.Context, prg progress.Progress) (progress.Progress, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, existing := range repo.db.progresses {
		if existing.UserID == prg.UserID && existing.CourseID == prg.CourseID {
			return progress.Progress{}, progress.ErrAlreadyEnrolled
		}
	}
	prg.ID = uuid.NewString()
	repo.db.progresses[prg.ID] = &prg
	return prg, nil
}

func (repo *progressRepository) GetProgress(ctx context.Context, userID, courseID string) (progress.Progress, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, prg := range repo.db.progresses {
		if prg.UserID == userID && prg.CourseID == courseID {
			return *prg, nil
		}
	}
	return progress.Progress{}, progress.ErrNotFound
}

func (repo *progressRepository) GetProgressByUser(ctx context.Context, userID string) ([]progress.Progress, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var all []progress.Progress
	for _, prg := range repo.db.progresses {
		if prg.UserID == userID {
			all = append(all, *prg)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartedAt.Before(all[j].StartedAt) })
	return all, nil
}

func (repo *progressRepository) UpdateProgress(ctx context.Context, prg progress.Progress) (progress.Progress, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.progresses[prg.ID]; !ok {
		return progress.Progress{}, progress.ErrNotFound
	}
	repo.db.progresses[prg.ID] = &prg
	return prg, nil
}

func (repo *progressRepository) MarkCourseCompleted(ctx context.Context, progressID string, completedAt time.Time) (bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	prg, ok := repo.db.progresses[progressID]
	if !ok {
		return false, progress.ErrNotFound
	}
	if prg.IsCourseCompleted {
		return false, nil
	}
	prg.IsCourseCompleted = true
	prg.CompletedAt = &completedAt
	prg.UpdatedAt = completedAt
	return true, nil
}
