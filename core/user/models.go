package user

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/go-playground/validator/v10"

	"github.com/playlms/backend/core"
	"github.com/playlms/backend/core/gamify"
)

// Badge is one earned achievement; Name is unique within an account.
type Badge struct {
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	EarnedAt    time.Time `json:"earned_at"` // UTC
}

type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	IsActive     bool   `json:"is_active"`
	IsStaff      bool   `json:"is_staff"`
	PasswordHash []byte `json:"-"`

	// gamification state; mutated by every completion event across courses
	ExperiencePoints int           `json:"experience_points"`
	Level            int           `json:"level"`
	Streak           gamify.Streak `json:"streak"`
	CompletedModules int           `json:"completed_modules"`
	CompletedCourses int           `json:"completed_courses"`
	WatchTimeSeconds int           `json:"watch_time_seconds"`
	Badges           []Badge       `json:"badges"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
	LastLogin time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// HasBadge reports whether a badge with this name was already earned.
func (u *User) HasBadge(name string) bool {
	for _, b := range u.Badges {
		if b.Name == name {
			return true
		}
	}
	return false
}

// AwardBadge appends the badge unless one with the same name already
// exists; it reports whether a new badge was added.
func (u *User) AwardBadge(b Badge) bool {
	if u.HasBadge(b.Name) {
		return false
	}
	u.Badges = append(u.Badges, b)
	return true
}

// GamifyState projects the account onto the badge rules' input.
func (u *User) GamifyState() gamify.AccountState {
	return gamify.AccountState{
		ExperiencePoints: u.ExperiencePoints,
		Level:            u.Level,
		CurrentStreak:    u.Streak.Current,
		CompletedModules: u.CompletedModules,
		CompletedCourses: u.CompletedCourses,
		WatchTimeSeconds: u.WatchTimeSeconds,
	}
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string `json:"name" validate:"required"`
	Username        string `json:"username" validate:"required,min=3,handle"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Username, nu.Email)
}
