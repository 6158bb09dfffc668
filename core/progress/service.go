package progress

import (
	"context"
	"math"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/playlms/backend/core"
	"github.com/playlms/backend/core/course"
	"github.com/playlms/backend/core/gamify"
	"github.com/playlms/backend/core/playlist"
	"github.com/playlms/backend/core/user"
)

var (
	// errors
	ErrNotFound         = errors.New("progress record not found")
	ErrNotEnrolled      = errors.New("enrollment required")
	ErrAlreadyEnrolled  = errors.New("already enrolled in this course")
	ErrCourseInactive   = errors.New("course is no longer active")
	ErrModuleNotStarted = errors.New("module has not been watched yet")
)

type (
	Repository interface {
		CreateProgress(ctx context.Context, prg Progress) (Progress, error)
		// GetProgress looks up the single record for a (learner, course)
		// pair; ErrNotFound when the learner never enrolled.
		GetProgress(ctx context.Context, userID, courseID string) (Progress, error)
		GetProgressByUser(ctx context.Context, userID string) ([]Progress, error)
		UpdateProgress(ctx context.Context, prg Progress) (Progress, error)
		// MarkCourseCompleted flips is_course_completed in one conditional
		// write and reports whether this call did the flip; false means a
		// concurrent call won the race and already took the completion.
		MarkCourseCompleted(ctx context.Context, progressID string, completedAt time.Time) (bool, error)
	}

	// WatchResult is what a learner gets back after a watch update: the new
	// progress state plus whatever gamification it triggered.
	WatchResult struct {
		Progress        Progress            `json:"progress"`
		ModuleCompleted bool                `json:"module_completed"`
		CourseCompleted bool                `json:"course_completed"`
		Activity        user.ActivityResult `json:"activity"`
	}

	Service struct {
		repo    Repository
		courses course.Repository
		users   *user.Service
		mailSvc core.EmailService
		conf    *core.Config
		logger  core.Logger
	}
)

// NowFunc returns the current time; swapped out in tests.
var NowFunc = time.Now

func NewService(
	repo Repository,
	courses course.Repository,
	users *user.Service,
	mailSvc core.EmailService,
	conf *core.Config,
	logger core.Logger,
) *Service {
	return &Service{repo: repo, courses: courses, users: users, mailSvc: mailSvc, conf: conf, logger: logger}
}

// Enroll creates the learner's Progress record for a course and registers
// the enrollment entry on the course itself.
func (svc *Service) Enroll(ctx context.Context, userID, courseSlug string) (Progress, error) {
	crs, err := svc.courses.GetCourseBySlug(ctx, courseSlug)
	if err != nil {
		return Progress{}, err
	}
	if !crs.IsActive {
		return Progress{}, ErrCourseInactive
	}
	if _, err = svc.repo.GetProgress(ctx, userID, crs.ID); err == nil {
		return Progress{}, ErrAlreadyEnrolled
	} else if errors.Cause(err) != ErrNotFound {
		return Progress{}, errors.Wrap(err, "checking existing enrollment")
	}

	now := NowFunc().UTC()
	prg, err := svc.repo.CreateProgress(ctx, Progress{
		UserID:    userID,
		CourseID:  crs.ID,
		StartedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Progress{}, err
	}
	if _, err = svc.courses.AddEnrollment(ctx, crs.ID, course.Enrollment{
		UserID:         userID,
		EnrolledAt:     now,
		LastAccessedAt: now,
	}); err != nil {
		return Progress{}, errors.Wrap(err, "registering enrollment on course")
	}
	svc.logger.Info("learner enrolled", userID, crs.Slug)
	return prg, nil
}

// Get returns the learner's progress for a course.
func (svc *Service) Get(ctx context.Context, userID, courseSlug string) (Progress, error) {
	crs, err := svc.courses.GetCourseBySlug(ctx, courseSlug)
	if err != nil {
		return Progress{}, err
	}
	prg, err := svc.repo.GetProgress(ctx, userID, crs.ID)
	if errors.Cause(err) == ErrNotFound {
		return Progress{}, ErrNotEnrolled
	}
	return prg, err
}

// QueryByUser returns all of the learner's progress records.
func (svc *Service) QueryByUser(ctx context.Context, userID string) ([]Progress, error) {
	return svc.repo.GetProgressByUser(ctx, userID)
}

// RecordWatch lands one watch interval on the learner's progress: additive
// watch time, a one-way module completion transition, the percent rollup and
// the sticky course completion. Completion feeds the account's gamification
// and, on course completion, the congratulation email.
func (svc *Service) RecordWatch(ctx context.Context, userID, courseSlug string, wu WatchUpdate) (WatchResult, error) {
	crs, err := svc.courses.GetCourseBySlug(ctx, courseSlug)
	if err != nil {
		return WatchResult{}, err
	}
	prg, err := svc.repo.GetProgress(ctx, userID, crs.ID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return WatchResult{}, ErrNotEnrolled
		}
		return WatchResult{}, err
	}
	mod, ok := crs.Module(wu.ModuleOrder)
	if !ok {
		return WatchResult{}, core.NewValidationError(
			errors.New("unknown module"),
			core.FieldError{Field: "module_order", Error: "no such module in this course"},
		)
	}

	now := NowFunc().UTC()
	ev := user.ActivityEvent{WatchTimeSeconds: wu.WatchTimeSeconds, OccurredAt: now}
	res := WatchResult{}

	mp, _ := prg.Module(wu.ModuleOrder)
	mp.Order = wu.ModuleOrder
	mp.WatchTimeSeconds += wu.WatchTimeSeconds
	mp.LastWatchedAt = now
	if wu.Completed && !mp.IsCompleted {
		mp.IsCompleted = true
		mp.CompletedAt = &now
		prg.CompletedModules++
		ev.ModulesCompleted = 1
		ev.ExperienceEarned += mod.RewardPoints
		res.ModuleCompleted = true
	}
	prg.setModule(mp)

	prg.TotalWatchTimeSeconds += wu.WatchTimeSeconds
	if crs.TotalModules > 0 {
		prg.OverallProgressPercent = int(math.Round(100 * float64(prg.CompletedModules) / float64(crs.TotalModules)))
	}
	if !prg.IsCourseCompleted && crs.TotalModules > 0 && prg.CompletedModules >= crs.TotalModules {
		// the conditional flip decides which of two concurrent final-module
		// calls takes the completion; only the winner earns the bonus
		flipped, err := svc.repo.MarkCourseCompleted(ctx, prg.ID, now)
		if err != nil {
			return WatchResult{}, errors.Wrap(err, "marking course completed")
		}
		prg.IsCourseCompleted = true
		prg.CompletedAt = &now
		if flipped {
			ev.CoursesCompleted = 1
			ev.ExperienceEarned += crs.CompletionBonusXP
			res.CourseCompleted = true
			if err = svc.courses.IncrementCompletions(ctx, crs.ID); err != nil {
				return WatchResult{}, errors.Wrap(err, "bumping course completions")
			}
		}
	}
	prg.Streak = gamify.Advance(prg.Streak, now)
	prg.UpdatedAt = now

	if prg, err = svc.repo.UpdateProgress(ctx, prg); err != nil {
		return WatchResult{}, err
	}
	if err = svc.courses.UpdateEnrollmentProgress(ctx, crs.ID, userID, prg.OverallProgressPercent, now); err != nil {
		return WatchResult{}, errors.Wrap(err, "refreshing enrollment cache")
	}

	usr, actRes, err := svc.users.ApplyActivity(ctx, userID, ev)
	if err != nil {
		return WatchResult{}, err
	}
	res.Progress = prg
	res.Activity = actRes

	if res.CourseCompleted {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
			Subject:      "You finished " + crs.Title + "!",
			TemplateName: "course_completed",
			TemplateData: struct {
				Name             string
				CourseTitle      string
				ExperienceEarned int
			}{usr.Name, crs.Title, ev.ExperienceEarned},
		})
	}
	return res, nil
}

// AddNote appends a note to a module the learner has started watching.
func (svc *Service) AddNote(ctx context.Context, userID, courseSlug string, nn NewNote) (Note, error) {
	prg, mp, err := svc.startedModule(ctx, userID, courseSlug, nn.ModuleOrder)
	if err != nil {
		return Note{}, err
	}
	note := Note{
		ID:        uuid.NewString(),
		Content:   nn.Content,
		Timestamp: nn.Timestamp,
		CreatedAt: NowFunc().UTC(),
	}
	mp.Notes = append(mp.Notes, note)
	prg.setModule(mp)
	prg.UpdatedAt = note.CreatedAt
	_, err = svc.repo.UpdateProgress(ctx, prg)
	return note, err
}

// DeleteNote removes a note by id from a module's list.
func (svc *Service) DeleteNote(ctx context.Context, userID, courseSlug string, moduleOrder int, noteID string) error {
	prg, mp, err := svc.startedModule(ctx, userID, courseSlug, moduleOrder)
	if err != nil {
		return err
	}
	for i, note := range mp.Notes {
		if note.ID == noteID {
			mp.Notes = append(mp.Notes[:i], mp.Notes[i+1:]...)
			prg.setModule(mp)
			prg.UpdatedAt = NowFunc().UTC()
			_, err = svc.repo.UpdateProgress(ctx, prg)
			return err
		}
	}
	return errors.WithMessage(ErrNotFound, "note "+noteID)
}

// AddBookmark appends a bookmark; an omitted title falls back to the M:SS
// render of the timestamp.
func (svc *Service) AddBookmark(ctx context.Context, userID, courseSlug string, nb NewBookmark) (Bookmark, error) {
	prg, mp, err := svc.startedModule(ctx, userID, courseSlug, nb.ModuleOrder)
	if err != nil {
		return Bookmark{}, err
	}
	title := nb.Title
	if title == "" {
		if title, err = playlist.FormatSeconds(nb.Timestamp); err != nil {
			return Bookmark{}, err
		}
	}
	bm := Bookmark{
		ID:        uuid.NewString(),
		Title:     title,
		Timestamp: nb.Timestamp,
		CreatedAt: NowFunc().UTC(),
	}
	mp.Bookmarks = append(mp.Bookmarks, bm)
	prg.setModule(mp)
	prg.UpdatedAt = bm.CreatedAt
	_, err = svc.repo.UpdateProgress(ctx, prg)
	return bm, err
}

// DeleteBookmark removes a bookmark by id from a module's list.
func (svc *Service) DeleteBookmark(ctx context.Context, userID, courseSlug string, moduleOrder int, bookmarkID string) error {
	prg, mp, err := svc.startedModule(ctx, userID, courseSlug, moduleOrder)
	if err != nil {
		return err
	}
	for i, bm := range mp.Bookmarks {
		if bm.ID == bookmarkID {
			mp.Bookmarks = append(mp.Bookmarks[:i], mp.Bookmarks[i+1:]...)
			prg.setModule(mp)
			prg.UpdatedAt = NowFunc().UTC()
			_, err = svc.repo.UpdateProgress(ctx, prg)
			return err
		}
	}
	return errors.WithMessage(ErrNotFound, "bookmark "+bookmarkID)
}

// RecordSession appends a study sitting with its derived duration.
func (svc *Service) RecordSession(ctx context.Context, userID, courseSlug string, ns NewSession) (Session, error) {
	crs, err := svc.courses.GetCourseBySlug(ctx, courseSlug)
	if err != nil {
		return Session{}, err
	}
	prg, err := svc.repo.GetProgress(ctx, userID, crs.ID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Session{}, ErrNotEnrolled
		}
		return Session{}, err
	}

	sess := Session{
		ID:               uuid.NewString(),
		StartTime:        ns.StartTime.UTC(),
		EndTime:          ns.EndTime.UTC(),
		DurationMinutes:  int(math.Round(ns.EndTime.Sub(ns.StartTime).Minutes())),
		ExperienceEarned: ns.ExperienceEarned,
	}
	prg.Sessions = append(prg.Sessions, sess)
	prg.UpdatedAt = NowFunc().UTC()
	if _, err = svc.repo.UpdateProgress(ctx, prg); err != nil {
		return Session{}, err
	}
	if ns.ExperienceEarned > 0 {
		if _, _, err = svc.users.ApplyActivity(ctx, userID, user.ActivityEvent{
			ExperienceEarned: ns.ExperienceEarned,
			OccurredAt:       NowFunc(),
		}); err != nil {
			return Session{}, err
		}
	}
	return sess, nil
}

// startedModule loads the learner's progress and the module sub-record,
// requiring that the module has been watched at least once.
func (svc *Service) startedModule(ctx context.Context, userID, courseSlug string, moduleOrder int) (Progress, ModuleProgress, error) {
	crs, err := svc.courses.GetCourseBySlug(ctx, courseSlug)
	if err != nil {
		return Progress{}, ModuleProgress{}, err
	}
	prg, err := svc.repo.GetProgress(ctx, userID, crs.ID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Progress{}, ModuleProgress{}, ErrNotEnrolled
		}
		return Progress{}, ModuleProgress{}, err
	}
	mp, ok := prg.Module(moduleOrder)
	if !ok {
		return Progress{}, ModuleProgress{}, ErrModuleNotStarted
	}
	return prg, mp, nil
}
