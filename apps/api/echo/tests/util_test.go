package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/assert"

	. "github.com/playlms/backend/apps/api/echo"
	"github.com/playlms/backend/core/course"
	"github.com/playlms/backend/core/playlist"
	"github.com/playlms/backend/core/progress"
	"github.com/playlms/backend/core/user"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

// stubCatalog is a canned video catalog; playlists are registered per test.
type stubCatalog struct {
	mu    sync.Mutex
	pages map[string][]playlist.Item
	stats map[string]playlist.VideoStats
}

func newStubCatalog() *stubCatalog {
	return &stubCatalog{
		pages: make(map[string][]playlist.Item),
		stats: make(map[string]playlist.VideoStats),
	}
}

func (c *stubCatalog) addPlaylist(id string, durationSecs ...int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := make([]playlist.Item, 0, len(durationSecs))
	for i, secs := range durationSecs {
		vid := fmt.Sprintf("%s-vid%02d", id, i+1)
		items = append(items, playlist.Item{
			VideoID:      vid,
			Title:        fmt.Sprintf("Lesson %d", i+1),
			ThumbnailURL: "https://i.ytimg.com/vi/" + vid + "/mqdefault.jpg",
		})
		c.stats[vid] = playlist.VideoStats{
			ID:            vid,
			DurationToken: fmt.Sprintf("PT%dS", secs),
			ViewCount:     1000,
			LikeCount:     100,
		}
	}
	c.pages[id] = items
}

func (c *stubCatalog) ListPlaylistItems(_ context.Context, playlistID, _ string) (playlist.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, ok := c.pages[playlistID]
	if !ok {
		return playlist.Page{}, playlist.ErrNotFound
	}
	return playlist.Page{Items: items}, nil
}

func (c *stubCatalog) ListVideoStats(_ context.Context, videoIDs []string) ([]playlist.VideoStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := make([]playlist.VideoStats, 0, len(videoIDs))
	for _, id := range videoIDs {
		if st, ok := c.stats[id]; ok {
			stats = append(stats, st)
		}
	}
	return stats, nil
}

// Fixtures

const testUserPwd = "V3ryS3cr3tPwd"

func testCtx() context.Context { return context.Background() }

func resetDB(t *testing.T) {
	t.Helper()
	db.Reset()
}

func createUser(t *testing.T, name, uname, email string, staff bool) user.User {
	t.Helper()
	usr, err := usrSvc.Create(context.Background(), user.NewUser{
		Name:            name,
		Username:        uname,
		Email:           email,
		Password:        testUserPwd,
		PasswordConfirm: testUserPwd,
	})
	if err != nil {
		t.Fatalf("createUser(): %v", err)
	}
	if staff {
		usr.IsStaff = true
		if usr, err = usrRepo.UpdateUser(context.Background(), usr); err != nil {
			t.Fatalf("createUser(): %v", err)
		}
	}
	return usr
}

func createCourse(t *testing.T, title, playlistID string, durationSecs ...int) course.Course {
	t.Helper()
	catalog.addPlaylist(playlistID, durationSecs...)
	staff := createUser(t, "Creator "+title, "creator-"+playlistID, playlistID+"@test.cd", true)
	crs, err := crsSvc.Create(context.Background(), course.NewCourse{
		Title:       title,
		PlaylistURL: "https://www.youtube.com/playlist?list=" + playlistID,
		Category:    "programming",
	}, staff.ID)
	if err != nil {
		t.Fatalf("createCourse(): %v", err)
	}
	return crs
}

func enroll(t *testing.T, usr user.User, courseSlug string) progress.Progress {
	t.Helper()
	prg, err := prgSvc.Enroll(context.Background(), usr.ID, courseSlug)
	if err != nil {
		t.Fatalf("enroll(): %v", err)
	}
	return prg
}

// HTTP plumbing

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	l1, ok1 := j1.([]interface{})
	l2, ok2 := j2.([]interface{})
	if ok1 && ok2 {
		return assert.ObjectsAreEqual(l1, l2), nil
	}
	return false, nil
}

func jsonDiff(t *testing.T, got, want []byte) string {
	t.Helper()
	pretty := func(b []byte) string {
		var buff bytes.Buffer
		if err := json.Indent(&buff, b, "", "  "); err != nil {
			return string(b)
		}
		return buff.String()
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(pretty(got)),
		B:        difflib.SplitLines(pretty(want)),
		FromFile: "got",
		ToFile:   "want",
		Context:  2,
	})
	if err != nil {
		return ""
	}
	return diff
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body = %v", rec.Code, tt.wantCode, rec.Body.String())
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data mismatch:\n%s", jsonDiff(t, rec.Body.Bytes(), tt.wantData))
	}
}
