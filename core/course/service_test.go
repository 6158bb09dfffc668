package course

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/playlms/backend/core"
	"github.com/playlms/backend/core/playlist"
)

type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Warn(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Fatal(msg string, args ...interface{}) {}

type fakeRepo struct {
	byID map[string]Course
	seq  int
}

func newFakeRepo() *fakeRepo { return &fakeRepo{byID: make(map[string]Course)} }

func (r *fakeRepo) CreateCourse(ctx context.Context, crs Course) (Course, error) {
	r.seq++
	crs.ID = fmt.Sprintf("crs-%d", r.seq)
	r.byID[crs.ID] = crs
	return crs, nil
}

func (r *fakeRepo) GetCourseByID(ctx context.Context, id string) (Course, error) {
	if crs, ok := r.byID[id]; ok {
		return crs, nil
	}
	return Course{}, ErrNotFound
}

func (r *fakeRepo) GetCourseBySlug(ctx context.Context, slug string) (Course, error) {
	for _, crs := range r.byID {
		if crs.Slug == slug {
			return crs, nil
		}
	}
	return Course{}, ErrNotFound
}

func (r *fakeRepo) GetCourseByPlaylistID(ctx context.Context, playlistID string) (Course, error) {
	for _, crs := range r.byID {
		if crs.SourcePlaylistID == playlistID {
			return crs, nil
		}
	}
	return Course{}, ErrNotFound
}

func (r *fakeRepo) FilterCourses(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Course, error) {
	var res []Course
	for _, crs := range r.byID {
		res = append(res, crs)
	}
	return res, nil
}

func (r *fakeRepo) UpdateCourse(ctx context.Context, crs Course) (Course, error) {
	if _, ok := r.byID[crs.ID]; !ok {
		return Course{}, ErrNotFound
	}
	r.byID[crs.ID] = crs
	return crs, nil
}

func (r *fakeRepo) AddEnrollment(ctx context.Context, courseID string, enr Enrollment) (Course, error) {
	crs, ok := r.byID[courseID]
	if !ok {
		return Course{}, ErrNotFound
	}
	crs.Enrollments = append(crs.Enrollments, enr)
	crs.TotalEnrollments++
	r.byID[courseID] = crs
	return crs, nil
}

func (r *fakeRepo) UpdateEnrollmentProgress(ctx context.Context, courseID, userID string, percent int, lastAccessed time.Time) error {
	crs, ok := r.byID[courseID]
	if !ok {
		return ErrNotFound
	}
	for i, enr := range crs.Enrollments {
		if enr.UserID == userID {
			crs.Enrollments[i].ProgressPercent = percent
			crs.Enrollments[i].LastAccessedAt = lastAccessed
		}
	}
	r.byID[courseID] = crs
	return nil
}

func (r *fakeRepo) IncrementCompletions(ctx context.Context, courseID string) error {
	crs, ok := r.byID[courseID]
	if !ok {
		return ErrNotFound
	}
	crs.TotalCompletions++
	r.byID[courseID] = crs
	return nil
}

func (r *fakeRepo) AddRating(ctx context.Context, courseID string, rating Rating) (Course, error) {
	crs, ok := r.byID[courseID]
	if !ok {
		return Course{}, ErrNotFound
	}
	crs.Ratings = append(crs.Ratings, rating)
	var sum int
	for _, rt := range crs.Ratings {
		sum += rt.Score
	}
	crs.AverageRating = float64(sum) / float64(len(crs.Ratings))
	r.byID[courseID] = crs
	return crs, nil
}

type fakeCatalog struct {
	items    []playlist.VideoDescriptor
	notFound bool
}

func (c *fakeCatalog) ListPlaylistItems(ctx context.Context, playlistID, pageToken string) (playlist.Page, error) {
	if c.notFound {
		return playlist.Page{}, playlist.ErrNotFound
	}
	page := playlist.Page{}
	for _, vd := range c.items {
		page.Items = append(page.Items, playlist.Item{
			VideoID:      vd.ID,
			Title:        vd.Title,
			Description:  vd.Description,
			ThumbnailURL: vd.ThumbnailURL,
		})
	}
	return page, nil
}

func (c *fakeCatalog) ListVideoStats(ctx context.Context, videoIDs []string) ([]playlist.VideoStats, error) {
	var stats []playlist.VideoStats
	for _, vd := range c.items {
		stats = append(stats, playlist.VideoStats{
			ID:            vd.ID,
			DurationToken: fmt.Sprintf("PT%dS", vd.DurationSeconds),
			ViewCount:     vd.ViewCount,
			LikeCount:     vd.LikeCount,
		})
	}
	return stats, nil
}

func videoFixtures(n int) []playlist.VideoDescriptor {
	var vids []playlist.VideoDescriptor
	for i := 0; i < n; i++ {
		vids = append(vids, playlist.VideoDescriptor{
			ID:              fmt.Sprintf("vid-%d", i+1),
			Title:           fmt.Sprintf("Lesson %d", i+1),
			ThumbnailURL:    "https://i.ytimg.com/vi/x/default.jpg",
			DurationSeconds: 300,
			Position:        i + 1,
		})
	}
	return vids
}

func newTestService(catalog playlist.Catalog) (*Service, *fakeRepo) {
	repo := newFakeRepo()
	fetcher := playlist.NewFetcher(catalog, nopLogger{})
	return NewService(repo, fetcher, nopLogger{}), repo
}

func TestAssemble(t *testing.T) {
	now := time.Date(2021, 5, 1, 10, 0, 0, 0, time.UTC)
	nc := NewCourse{Title: "Go From Scratch", Category: "programming", Difficulty: DifficultyBeginner}

	vids := videoFixtures(4)
	vids[2].DurationSeconds = 95 // totals: 3*300 + 95 = 995s -> 17min

	crs, err := Assemble(vids, nc, "PLabc", "usr-1", now)
	assert.NoError(t, err)
	assert.Equal(t, "go-from-scratch", crs.Slug)
	assert.Equal(t, "PLabc", crs.SourcePlaylistID)
	assert.True(t, crs.IsActive)
	assert.True(t, crs.IsPublic)
	assert.Equal(t, 4, crs.TotalModules)
	assert.Equal(t, 17, crs.TotalDurationMinutes)
	assert.Equal(t, 4*DefaultRewardPoints, crs.TotalRewardPoints)
	assert.Equal(t, DefaultCompletionBonusXP, crs.CompletionBonusXP)
	assert.Equal(t, vids[0].ThumbnailURL, crs.ThumbnailURL)
	for i, mod := range crs.Modules {
		assert.Equal(t, i+1, mod.Order)
		assert.Equal(t, DefaultRewardPoints, mod.RewardPoints)
	}

	_, err = Assemble(nil, nc, "PLabc", "usr-1", now)
	assert.Equal(t, ErrEmptyPlaylist, errors.Cause(err))

	private := false
	nc.IsPublic = &private
	crs, err = Assemble(vids, nc, "PLabc", "usr-1", now)
	assert.NoError(t, err)
	assert.False(t, crs.IsPublic)
}

func TestServiceCreate(t *testing.T) {
	svc, repo := newTestService(&fakeCatalog{items: videoFixtures(3)})
	ctx := context.Background()

	nc := NewCourse{Title: "Intro to SQL", PlaylistURL: "https://www.youtube.com/playlist?list=PLsql123sql123", Category: "databases"}
	crs, err := svc.Create(ctx, nc, "usr-1")
	assert.NoError(t, err)
	assert.NotEmpty(t, crs.ID)
	assert.Equal(t, "intro-to-sql", crs.Slug)
	assert.Equal(t, "PLsql123sql123", crs.SourcePlaylistID)
	assert.Equal(t, 3, crs.TotalModules)

	// same playlist again
	nc2 := nc
	nc2.Title = "SQL Again"
	_, err = svc.Create(ctx, nc2, "usr-2")
	assert.Equal(t, ErrPlaylistExists, errors.Cause(err))

	// same title, different playlist
	nc3 := nc
	nc3.PlaylistURL = "PLother456other456"
	_, err = svc.Create(ctx, nc3, "usr-2")
	assert.Equal(t, ErrSlugExists, errors.Cause(err))

	// garbage URL
	nc4 := nc
	nc4.PlaylistURL = "not a playlist"
	_, err = svc.Create(ctx, nc4, "usr-1")
	var vErr *core.ValidationError
	assert.True(t, errors.As(err, &vErr))

	assert.Len(t, repo.byID, 1)
}

func TestServiceCreate_emptyPlaylist(t *testing.T) {
	svc, _ := newTestService(&fakeCatalog{})
	_, err := svc.Create(context.Background(), NewCourse{
		Title: "Ghost Course", PlaylistURL: "PLempty789empty", Category: "misc",
	}, "usr-1")
	assert.Equal(t, playlist.ErrNotFound, errors.Cause(err))
}

func TestServiceDeactivate(t *testing.T) {
	svc, repo := newTestService(&fakeCatalog{items: videoFixtures(2)})
	ctx := context.Background()

	crs, err := svc.Create(ctx, NewCourse{Title: "Soft Delete Me", PlaylistURL: "PLdel123delete", Category: "misc"}, "usr-1")
	assert.NoError(t, err)

	crs, err = svc.Deactivate(ctx, crs.Slug)
	assert.NoError(t, err)
	assert.False(t, crs.IsActive)
	assert.False(t, repo.byID[crs.ID].IsActive)
}

func TestServiceRate(t *testing.T) {
	svc, repo := newTestService(&fakeCatalog{items: videoFixtures(2)})
	ctx := context.Background()

	crs, err := svc.Create(ctx, NewCourse{Title: "Rate Me", PlaylistURL: "PLrate123rated", Category: "misc"}, "usr-1")
	assert.NoError(t, err)

	// not enrolled yet
	_, err = svc.Rate(ctx, crs.Slug, "usr-2", NewRating{Score: 5})
	assert.Equal(t, ErrNotEnrolled, errors.Cause(err))

	_, err = repo.AddEnrollment(ctx, crs.ID, Enrollment{UserID: "usr-2", EnrolledAt: time.Now()})
	assert.NoError(t, err)
	_, err = repo.AddEnrollment(ctx, crs.ID, Enrollment{UserID: "usr-3", EnrolledAt: time.Now()})
	assert.NoError(t, err)

	crs, err = svc.Rate(ctx, crs.Slug, "usr-2", NewRating{Score: 5, Comment: "great"})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, crs.AverageRating)

	crs, err = svc.Rate(ctx, crs.Slug, "usr-3", NewRating{Score: 4})
	assert.NoError(t, err)
	assert.Equal(t, 4.5, crs.AverageRating)

	_, err = svc.Rate(ctx, crs.Slug, "usr-2", NewRating{Score: 1})
	assert.Equal(t, ErrAlreadyRated, errors.Cause(err))
}

func TestSafeOrderings(t *testing.T) {
	got := SafeOrderings([]core.DBOrdering{
		{Field: "title", Ascending: true},
		{Field: "id; DROP TABLE course"},
		{Field: "updated_at"},
		{Field: "total_enrollments"},
	})
	assert.Equal(t, []core.DBOrdering{
		{Field: "title", Ascending: true},
		{Field: "total_enrollments"},
	}, got)

	assert.Nil(t, SafeOrderings([]core.DBOrdering{{Field: "nope"}}))
	assert.Nil(t, SafeOrderings(nil))
}
