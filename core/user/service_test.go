package user

import (
	"context"
	"testing"
	"time"

	"github.com/playlms/backend/core"
)

type fakeRepo struct {
	byID map[string]User
	pk   int
}

func newFakeRepo() *fakeRepo { return &fakeRepo{byID: make(map[string]User)} }

func (r *fakeRepo) CheckUsernameUniqueness(_ context.Context, username, email string, excl ...User) error {
	skip := func(u User) bool {
		for _, e := range excl {
			if e.ID == u.ID {
				return true
			}
		}
		return false
	}
	for _, u := range r.byID {
		if skip(u) {
			continue
		}
		if u.Username == username {
			return ErrUsernameExists
		}
		if u.Email == email {
			return ErrEmailExists
		}
	}
	return nil
}

func (r *fakeRepo) CreateUser(_ context.Context, usr User) (User, error) {
	r.pk++
	usr.ID = string(rune('a' + r.pk))
	r.byID[usr.ID] = usr
	return usr, nil
}

func (r *fakeRepo) QueryAllUsers(_ context.Context) ([]User, error) {
	var users []User
	for _, u := range r.byID {
		users = append(users, u)
	}
	return users, nil
}

func (r *fakeRepo) GetUserByID(_ context.Context, id string) (User, error) {
	if u, ok := r.byID[id]; ok {
		return u, nil
	}
	return User{}, ErrNotFound
}

func (r *fakeRepo) GetUserByUsername(_ context.Context, username string) (User, error) {
	for _, u := range r.byID {
		if u.Username == username {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *fakeRepo) GetUserByEmail(_ context.Context, email string) (User, error) {
	for _, u := range r.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *fakeRepo) GetUserByUsernameOrEmail(_ context.Context, uname string) (User, error) {
	for _, u := range r.byID {
		if u.Username == uname || u.Email == uname {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *fakeRepo) UpdateUser(_ context.Context, usr User) (User, error) {
	if _, ok := r.byID[usr.ID]; !ok {
		return User{}, ErrNotFound
	}
	r.byID[usr.ID] = usr
	return usr, nil
}

type dummyMail struct{ sent int }

func (m *dummyMail) SendMessages(msgs ...*core.EmailMessage) { m.sent += len(msgs) }

func newTestService() (*Service, *fakeRepo, *dummyMail) {
	repo := newFakeRepo()
	mailSvc := &dummyMail{}
	return NewService(repo, mailSvc, &core.Config{AppName: "PlayLMS"}), repo, mailSvc
}

func createUser(t *testing.T, svc *Service) User {
	t.Helper()
	usr, err := svc.Create(context.Background(), NewUser{
		Name:     "Jane Learner",
		Username: "jane",
		Email:    "jane@test.cd",
		Password: "s3cretPass",
	})
	if err != nil {
		t.Fatalf("Create(): %v", err)
	}
	return usr
}

func TestService_Create(t *testing.T) {
	svc, _, mailSvc := newTestService()
	usr := createUser(t, svc)

	if usr.Level != 1 || usr.ExperiencePoints != 0 {
		t.Errorf("new account not at level 1 / 0 XP: %+v", usr)
	}
	if !usr.IsActive || usr.IsStaff {
		t.Errorf("new account flags wrong: %+v", usr)
	}
	if err := usr.CheckPassword("s3cretPass"); err != nil {
		t.Errorf("CheckPassword(): %v", err)
	}
	if mailSvc.sent != 1 {
		t.Errorf("welcome emails sent = %d; want 1", mailSvc.sent)
	}
}

func TestService_AddExperience(t *testing.T) {
	svc, _, _ := newTestService()
	usr := createUser(t, svc)
	ctx := context.Background()

	// 0 -> 99 stays level 1
	usr, res, err := svc.AddExperience(ctx, usr, 99)
	if err != nil {
		t.Fatalf("AddExperience(): %v", err)
	}
	if res.NewTotal != 99 || res.LeveledUp || usr.Level != 1 {
		t.Errorf("99 XP: res=%+v level=%d", res, usr.Level)
	}

	// reaching 100 hits level 2 exactly
	usr, res, err = svc.AddExperience(ctx, usr, 1)
	if err != nil {
		t.Fatalf("AddExperience(): %v", err)
	}
	if res.NewTotal != 100 || !res.LeveledUp || res.NewLevel != 2 || usr.Level != 2 {
		t.Errorf("100 XP: res=%+v level=%d", res, usr.Level)
	}

	// zero grant is a no-op on the level
	_, res, err = svc.AddExperience(ctx, usr, 0)
	if err != nil {
		t.Fatalf("AddExperience(0): %v", err)
	}
	if res.LeveledUp {
		t.Errorf("zero grant leveled up: %+v", res)
	}

	// negative grant rejected
	if _, _, err = svc.AddExperience(ctx, usr, -10); err == nil {
		t.Error("negative grant did not fail")
	}
}

func TestService_AwardBadge(t *testing.T) {
	svc, _, _ := newTestService()
	usr := createUser(t, svc)
	ctx := context.Background()

	usr, added, err := svc.AwardBadge(ctx, usr, "First Steps", "Complete your first module", "🎬")
	if err != nil {
		t.Fatalf("AwardBadge(): %v", err)
	}
	if !added || len(usr.Badges) != 1 {
		t.Fatalf("first award: added=%v badges=%v", added, usr.Badges)
	}

	// idempotent by name
	usr, added, err = svc.AwardBadge(ctx, usr, "First Steps", "Complete your first module", "🎬")
	if err != nil {
		t.Fatalf("AwardBadge(): %v", err)
	}
	if added || len(usr.Badges) != 1 {
		t.Errorf("second award: added=%v badges=%v", added, usr.Badges)
	}
}

func TestService_ApplyActivity(t *testing.T) {
	svc, repo, _ := newTestService()
	usr := createUser(t, svc)
	ctx := context.Background()
	day1 := time.Date(2021, time.April, 5, 10, 0, 0, 0, time.UTC)

	_, res, err := svc.ApplyActivity(ctx, usr.ID, ActivityEvent{
		ExperienceEarned: 10,
		ModulesCompleted: 1,
		WatchTimeSeconds: 120,
		OccurredAt:       day1,
	})
	if err != nil {
		t.Fatalf("ApplyActivity(): %v", err)
	}
	if res.Experience.NewTotal != 10 {
		t.Errorf("NewTotal = %d; want 10", res.Experience.NewTotal)
	}
	if res.Streak.Current != 1 {
		t.Errorf("Streak.Current = %d; want 1", res.Streak.Current)
	}
	if len(res.NewBadges) != 1 || res.NewBadges[0].Key != "first_module" {
		t.Errorf("NewBadges = %+v; want [first_module]", res.NewBadges)
	}

	// next-day course completion: streak continues, badge sweep adds
	// first_course only once
	got, res, err := svc.ApplyActivity(ctx, usr.ID, ActivityEvent{
		ExperienceEarned: 60,
		ModulesCompleted: 1,
		CoursesCompleted: 1,
		WatchTimeSeconds: 300,
		OccurredAt:       day1.Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("ApplyActivity(): %v", err)
	}
	if res.Streak.Current != 2 {
		t.Errorf("Streak.Current = %d; want 2", res.Streak.Current)
	}
	if len(res.NewBadges) != 1 || res.NewBadges[0].Key != "first_course" {
		t.Errorf("NewBadges = %+v; want [first_course]", res.NewBadges)
	}
	if got.CompletedModules != 2 || got.CompletedCourses != 1 || got.WatchTimeSeconds != 420 {
		t.Errorf("counters wrong: %+v", got)
	}

	// persisted
	stored, _ := repo.GetUserByID(ctx, usr.ID)
	if stored.ExperiencePoints != 70 || len(stored.Badges) != 2 {
		t.Errorf("stored account wrong: %+v", stored)
	}
}
