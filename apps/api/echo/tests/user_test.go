package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/playlms/backend/apps/api/echo"
	"github.com/playlms/backend/core/user"
	emailsvc "github.com/playlms/backend/services/email"
)

func Test_userApi_register(t *testing.T) {
	resetDB(t)

	createUser(t, "Taken", "taken", "taken@test.cd", false)

	requiredText := "this field is required"
	newUser := func(name, uname, email, pwd, pwdConf string) []byte {
		return marchallObj(t, user.NewUser{
			Name: name, Username: uname, Email: email,
			Password: pwd, PasswordConfirm: pwdConf,
		})
	}

	tests := []httpTest{
		{
			name: "empty payload", body: newUser("", "", "", "", ""), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"name":             requiredText,
				"username":         requiredText,
				"email":            requiredText,
				"password":         requiredText,
				"password_confirm": requiredText,
			}),
		},
		{
			name: "invalid email", body: newUser("Jane", "jane", "not-an-email", testUserPwd, testUserPwd),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "email must be a valid email address"}),
		},
		{
			name: "password mismatch", body: newUser("Jane", "jane", "jane@test.cd", testUserPwd, "somethingElse"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"password_confirm": "password_confirm must be equal to Password"}),
		},
		{
			name: "invalid username", body: newUser("Jane", "jane poe!", "jane@test.cd", testUserPwd, testUserPwd),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": "only letters, digits, underscores and hyphens are allowed"}),
		},
		{
			name: "username taken", body: newUser("Jane", "Taken", "jane@test.cd", testUserPwd, testUserPwd),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": user.ErrUsernameExists.Error()}),
		},
		{
			name: "email taken", body: newUser("Jane", "jane", "TAKEN@test.cd", testUserPwd, testUserPwd),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": user.ErrEmailExists.Error()}),
		},
		{name: "ok", body: newUser("Jane Poe", "Jane", "JANE@test.cd", testUserPwd, testUserPwd), wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/register", tt.body)
			app.ServeHTTP(rec, req)

			if tt.name == "ok" {
				assert.Equal(t, tt.wantCode, rec.Code)

				var usr user.User
				assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &usr))
				assert.NotEmpty(t, usr.ID)
				assert.Equal(t, "jane", usr.Username)
				assert.Equal(t, "jane@test.cd", usr.Email)
				assert.True(t, usr.IsActive)
				assert.False(t, usr.IsStaff)
				assert.Equal(t, 1, usr.Level)
				assert.Zero(t, usr.ExperiencePoints)

				// welcome email went out
				sent := emailsvc.SentMessages[len(emailsvc.SentMessages)-1]
				assert.Equal(t, "Welcome to "+conf.AppName, sent.Subject)
				assert.Equal(t, "jane@test.cd", sent.To[0].Address)
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_login(t *testing.T) {
	resetDB(t)

	usr := createUser(t, "Jane Poe", "jane", "jane@test.cd", false)

	ghost := createUser(t, "Ghost", "ghost", "ghost@test.cd", false)
	ghost.IsActive = false
	if _, err := usrRepo.UpdateUser(context.Background(), ghost); err != nil {
		t.Fatalf("deactivating user: %v", err)
	}

	login := func(uname, pwd string) []byte {
		return marchallObj(t, LoginRequest{Username: uname, Password: pwd})
	}
	authFailed := marchallObj(t, httpErr{Error: "authentication failed"})

	tests := []httpTest{
		{
			name: "empty payload", body: login("", ""), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": "this field is required", "password": "this field is required"}),
		},
		{name: "unknown user", body: login("nobody", testUserPwd), wantCode: http.StatusBadRequest, wantData: authFailed},
		{name: "wrong password", body: login("jane", "letmein12345"), wantCode: http.StatusBadRequest, wantData: authFailed},
		{
			name: "deactivated account", body: login("ghost", testUserPwd), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "ok (username)", body: login("jane", testUserPwd), wantCode: http.StatusOK},
		{name: "ok (username, any case)", body: login("JANE", testUserPwd), wantCode: http.StatusOK},
		{name: "ok (email)", body: login("jane@test.cd", testUserPwd), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusOK {
				assert.Equal(t, tt.wantCode, rec.Code)

				var res LoginResponse
				assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
				assert.NotEmpty(t, res.Token)

				// lastLogin was set
				refreshed, err := usrRepo.GetUserByID(context.Background(), usr.ID)
				assert.NoError(t, err)
				assert.False(t, refreshed.LastLogin.IsZero())
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_me(t *testing.T) {
	resetDB(t)

	usr := createUser(t, "Jane Poe", "jane", "jane@test.cd", false)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "ok", token: getToken(t, usr), wantCode: http.StatusOK, wantData: marchallObj(t, usr)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/users/me", tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_tokenRefresh(t *testing.T) {
	resetDB(t)

	usr := createUser(t, "Jane Poe", "jane", "jane@test.cd", false)

	ghost := createUser(t, "Ghost", "ghost", "ghost@test.cd", false)
	ghostToken := getToken(t, ghost)
	ghost.IsActive = false
	if _, err := usrRepo.UpdateUser(context.Background(), ghost); err != nil {
		t.Fatalf("deactivating user: %v", err)
	}

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "deactivated account", token: ghostToken, wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "ok", token: getToken(t, usr), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", tt.token)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusOK {
				assert.Equal(t, tt.wantCode, rec.Code)

				var res LoginResponse
				assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
				assert.NotEmpty(t, res.Token)
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userQuery(t *testing.T) {
	resetDB(t)

	usr1 := createUser(t, "Jane Poe", "jane", "jane@test.cd", false)
	usr2 := createUser(t, "John Doe", "john", "john@test.cd", false)
	admin := createUser(t, "Admin", "admin", "admin@test.cd", true)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Staff required", token: getToken(t, usr1), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "Get all", token: getToken(t, admin), wantCode: http.StatusOK, wantData: marchallList(t, usr1, usr2, admin)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/users", tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
