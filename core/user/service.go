package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/playlms/backend/core"
	"github.com/playlms/backend/core/gamify"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		QueryAllUsers(ctx context.Context) ([]User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByUsername(ctx context.Context, username string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		GetUserByUsernameOrEmail(ctx context.Context, username string) (User, error)
		// UpdateUser writes the whole aggregate back.
		UpdateUser(ctx context.Context, usr User) (User, error)
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
	}

	// ExperienceResult reports the outcome of an XP grant.
	ExperienceResult struct {
		NewTotal  int  `json:"new_total"`
		LeveledUp bool `json:"leveled_up"`
		NewLevel  int  `json:"new_level"`
	}

	// ActivityEvent is one completed watch/completion event rolled up for
	// the account: XP earned plus counter deltas.
	ActivityEvent struct {
		ExperienceEarned int
		ModulesCompleted int
		CoursesCompleted int
		WatchTimeSeconds int
		OccurredAt       time.Time
	}

	// ActivityResult is what a learner gets back after an activity event
	// lands on their account.
	ActivityResult struct {
		Experience ExperienceResult `json:"experience"`
		Streak     gamify.Streak    `json:"streak"`
		NewBadges  []Badge          `json:"new_badges"`
	}
)

// NowFunc returns the current time; swapped out in tests.
var NowFunc = time.Now

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{repo: repo, mailSvc: mailSvc, conf: conf}
}

func (svc *Service) CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(ctx, uname, email, exclUsers...); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := NowFunc().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		IsActive:  true,
		Level:     1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}

	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Welcome to " + svc.conf.AppName,
		TemplateName: "welcome",
		TemplateData: struct{ Name string }{usr.Name},
	})
	return usr, nil
}

// CreateStaff creates an active staff account; used by the admin CLI.
func (svc *Service) CreateStaff(ctx context.Context, nu NewUser) (User, error) {
	usr, err := svc.Create(ctx, nu)
	if err != nil {
		return User{}, err
	}
	usr.IsStaff = true
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) QueryAll(ctx context.Context) ([]User, error) {
	return svc.repo.QueryAllUsers(ctx)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByUsername(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsername(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsernameOrEmail(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = NowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// AddExperience grants `amount` XP (≥ 0) and recomputes the level. The
// stored level only ever moves up: points are never deducted in this
// system, and a level once reached is kept.
func (svc *Service) AddExperience(ctx context.Context, usr User, amount int) (User, ExperienceResult, error) {
	usr, res, err := svc.addExperience(usr, amount)
	if err != nil {
		return User{}, ExperienceResult{}, err
	}
	usr.UpdatedAt = NowFunc().UTC()
	usr, err = svc.repo.UpdateUser(ctx, usr)
	return usr, res, err
}

func (svc *Service) addExperience(usr User, amount int) (User, ExperienceResult, error) {
	if amount < 0 {
		return User{}, ExperienceResult{}, core.NewValidationError(
			errors.New("experience amount cannot be negative"),
			core.FieldError{Field: "amount", Error: "must be zero or positive"},
		)
	}

	usr.ExperiencePoints += amount
	res := ExperienceResult{NewTotal: usr.ExperiencePoints, NewLevel: usr.Level}
	if lvl := gamify.LevelForXP(usr.ExperiencePoints); lvl > usr.Level {
		usr.Level = lvl
		res.LeveledUp = true
		res.NewLevel = lvl
	}
	return usr, res, nil
}

// UpdateStreak applies one activity timestamp to the account-level streak.
func (svc *Service) UpdateStreak(ctx context.Context, usr User, now time.Time) (User, error) {
	usr.Streak = gamify.Advance(usr.Streak, now)
	usr.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// AwardBadge inserts a badge unless one with that name exists; it reports
// whether a new badge was added.
func (svc *Service) AwardBadge(ctx context.Context, usr User, name, description, icon string) (User, bool, error) {
	added := usr.AwardBadge(Badge{
		Name:        name,
		Description: description,
		Icon:        icon,
		EarnedAt:    NowFunc().UTC(),
	})
	if !added {
		return usr, false, nil
	}
	usr.UpdatedAt = NowFunc().UTC()
	usr, err := svc.repo.UpdateUser(ctx, usr)
	return usr, true, err
}

// ApplyActivity lands one completion event on the account in a single
// write: XP, counters, account streak and the badge sweep.
func (svc *Service) ApplyActivity(ctx context.Context, userID string, ev ActivityEvent) (User, ActivityResult, error) {
	usr, err := svc.repo.GetUserByID(ctx, userID)
	if err != nil {
		return User{}, ActivityResult{}, err
	}

	usr.CompletedModules += ev.ModulesCompleted
	usr.CompletedCourses += ev.CoursesCompleted
	usr.WatchTimeSeconds += ev.WatchTimeSeconds

	usr, xpRes, err := svc.addExperience(usr, ev.ExperienceEarned)
	if err != nil {
		return User{}, ActivityResult{}, err
	}

	now := ev.OccurredAt
	if now.IsZero() {
		now = NowFunc()
	}
	usr.Streak = gamify.Advance(usr.Streak, now)

	var newBadges []Badge
	for _, key := range gamify.CheckBadges(usr.GamifyState()) {
		def := gamify.Badges[key]
		b := Badge{Key: key, Name: def.Name, Description: def.Description, Icon: def.Icon, EarnedAt: now.UTC()}
		if usr.AwardBadge(b) {
			newBadges = append(newBadges, b)
		}
	}

	usr.UpdatedAt = NowFunc().UTC()
	usr, err = svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		return User{}, ActivityResult{}, errors.Wrap(err, "saving account activity")
	}
	return usr, ActivityResult{Experience: xpRes, Streak: usr.Streak, NewBadges: newBadges}, nil
}
