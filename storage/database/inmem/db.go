// Package inmemdb provides map-backed repository implementations mirroring
// the SQL ones; used by API tests and local experiments.
package inmemdb

import (
	"sync"

	"github.com/playlms/backend/core/course"
	"github.com/playlms/backend/core/progress"
	"github.com/playlms/backend/core/user"
)

type DB struct {
	mu         sync.RWMutex
	users      map[string]*user.User
	courses    map[string]*course.Course
	progresses map[string]*progress.Progress
}

func NewDB() *DB {
	return &DB{
		users:      make(map[string]*user.User),
		courses:    make(map[string]*course.Course),
		progresses: make(map[string]*progress.Progress),
	}
}

// Reset drops all stored records; used between test runs.
func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users = make(map[string]*user.User)
	db.courses = make(map[string]*course.Course)
	db.progresses = make(map[string]*progress.Progress)
}
