package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/playlms/backend/core/gamify"
	"github.com/playlms/backend/core/user"
)

const uniqueViolation = "23505"

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

type userRow struct {
	ID               string      `db:"id"`
	Name             string      `db:"name"`
	Username         string      `db:"username"`
	Email            string      `db:"email"`
	IsActive         bool        `db:"is_active"`
	IsStaff          bool        `db:"is_staff"`
	PasswordHash     []byte      `db:"password_hash"`
	ExperiencePoints int         `db:"experience_points"`
	Level            int         `db:"level"`
	CurrentStreak    int         `db:"current_streak"`
	LongestStreak    int         `db:"longest_streak"`
	LastActivityDate null.Time   `db:"last_activity_date"`
	CompletedModules int         `db:"completed_modules"`
	CompletedCourses int         `db:"completed_courses"`
	WatchTimeSeconds int         `db:"watch_time_seconds"`
	Badges           []byte      `db:"badges"`
	CreatedAt        time.Time   `db:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at"`
	LastLogin        null.Time   `db:"last_login"`
}

func newUserRow(usr user.User) (userRow, error) {
	badges, err := json.Marshal(usr.Badges)
	if err != nil {
		return userRow{}, errors.Wrap(err, "marshaling badges")
	}
	if usr.Badges == nil {
		badges = []byte("[]")
	}
	return userRow{
		ID:               usr.ID,
		Name:             usr.Name,
		Username:         usr.Username,
		Email:            usr.Email,
		IsActive:         usr.IsActive,
		IsStaff:          usr.IsStaff,
		PasswordHash:     usr.PasswordHash,
		ExperiencePoints: usr.ExperiencePoints,
		Level:            usr.Level,
		CurrentStreak:    usr.Streak.Current,
		LongestStreak:    usr.Streak.Longest,
		LastActivityDate: nullTime(usr.Streak.LastActivity),
		CompletedModules: usr.CompletedModules,
		CompletedCourses: usr.CompletedCourses,
		WatchTimeSeconds: usr.WatchTimeSeconds,
		Badges:           badges,
		CreatedAt:        usr.CreatedAt,
		UpdatedAt:        usr.UpdatedAt,
		LastLogin:        nullTime(usr.LastLogin),
	}, nil
}

func (row userRow) toUser() (user.User, error) {
	var badges []user.Badge
	if len(row.Badges) > 0 {
		if err := json.Unmarshal(row.Badges, &badges); err != nil {
			return user.User{}, errors.Wrap(err, "unmarshaling badges")
		}
	}
	return user.User{
		ID:               row.ID,
		Name:             row.Name,
		Username:         row.Username,
		Email:            row.Email,
		IsActive:         row.IsActive,
		IsStaff:          row.IsStaff,
		PasswordHash:     row.PasswordHash,
		ExperiencePoints: row.ExperiencePoints,
		Level:            row.Level,
		Streak: gamify.Streak{
			Current:      row.CurrentStreak,
			Longest:      row.LongestStreak,
			LastActivity: row.LastActivityDate.Time,
		},
		CompletedModules: row.CompletedModules,
		CompletedCourses: row.CompletedCourses,
		WatchTimeSeconds: row.WatchTimeSeconds,
		Badges:           badges,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
		LastLogin:        row.LastLogin.Time,
	}, nil
}

func nullTime(t time.Time) null.Time {
	if t.IsZero() {
		return null.Time{}
	}
	return null.TimeFrom(t)
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	query := `SELECT username, email FROM "user" WHERE (username = $1 OR email = $2)`
	args := []interface{}{username, email}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, usr := range excludedUsers {
			ids = append(ids, usr.ID)
		}
		query += " AND NOT (id = ANY($3))"
		args = append(args, pq.Array(ids))
	}

	rows, err := repo.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "checking username uniqueness")
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var uname, mail string
		if err = rows.Scan(&uname, &mail); err != nil {
			return errors.Wrap(err, "checking username uniqueness")
		}
		if uname == username {
			return user.ErrUsernameExists
		}
		if mail == email {
			return user.ErrEmailExists
		}
	}
	return errors.Wrap(rows.Err(), "checking username uniqueness")
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.NewString()
	row, err := newUserRow(usr)
	if err != nil {
		return user.User{}, err
	}

	_, err = repo.db.NamedExecContext(ctx, `
		INSERT INTO "user" (id, name, username, email, is_active, is_staff, password_hash,
		                    experience_points, level, current_streak, longest_streak, last_activity_date,
		                    completed_modules, completed_courses, watch_time_seconds, badges,
		                    created_at, updated_at, last_login)
		VALUES (:id, :name, :username, :email, :is_active, :is_staff, :password_hash,
		        :experience_points, :level, :current_streak, :longest_streak, :last_activity_date,
		        :completed_modules, :completed_courses, :watch_time_seconds, :badges,
		        :created_at, :updated_at, :last_login)`, row)
	if err != nil {
		return user.User{}, errors.Wrap(mapUserConstraintErr(err), "creating user")
	}
	return usr, nil
}

func (repo *userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM "user" ORDER BY created_at, id`); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		usr, err := row.toUser()
		if err != nil {
			return nil, err
		}
		users = append(users, usr)
	}
	return users, nil
}

func (repo *userRepository) getUser(ctx context.Context, query string, args ...interface{}) (user.User, error) {
	var row userRow
	if err := repo.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return row.toUser()
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	return repo.getUser(ctx, `SELECT * FROM "user" WHERE id = $1`, id)
}

func (repo *userRepository) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	return repo.getUser(ctx, `SELECT * FROM "user" WHERE username = $1`, username)
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getUser(ctx, `SELECT * FROM "user" WHERE email = $1`, email)
}

func (repo *userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	return repo.getUser(ctx, `SELECT * FROM "user" WHERE username = $1 OR email = $1`, username)
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	row, err := newUserRow(usr)
	if err != nil {
		return user.User{}, err
	}

	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE "user" SET
			name = :name, username = :username, email = :email,
			is_active = :is_active, is_staff = :is_staff, password_hash = :password_hash,
			experience_points = :experience_points, level = :level,
			current_streak = :current_streak, longest_streak = :longest_streak,
			last_activity_date = :last_activity_date,
			completed_modules = :completed_modules, completed_courses = :completed_courses,
			watch_time_seconds = :watch_time_seconds, badges = :badges,
			updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`, row)
	if err != nil {
		return user.User{}, errors.Wrap(mapUserConstraintErr(err), "updating user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func mapUserConstraintErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		switch {
		case strings.Contains(pqErr.Constraint, "username"):
			return user.ErrUsernameExists
		case strings.Contains(pqErr.Constraint, "email"):
			return user.ErrEmailExists
		}
	}
	return err
}
