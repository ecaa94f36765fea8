package endpoints

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mitarbeiterportal/portal/pkg/portal"
	"github.com/mitarbeiterportal/portal/pkg/vault"
)

func TestGetProfile(t *testing.T) {
	t.Run("requires a token", func(t *testing.T) {
		e := newTestEnv(t)
		w := e.do("GET", "/api/profile", "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("current", func(t *testing.T) {
		e := newTestEnv(t)
		e.accounts.On("Profile", mock.Anything, e.user, (*time.Time)(nil)).
			Return(&portal.User{Key: e.user, Email: testEmail}, nil)

		w := e.do("GET", "/api/profile", "", e.token(t, false))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"email":"alice@example.com"`)
	})

	t.Run("as of", func(t *testing.T) {
		e := newTestEnv(t)
		want := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
		e.accounts.On("Profile", mock.Anything, e.user, mock.MatchedBy(func(at *time.Time) bool {
			return at != nil && at.Equal(want)
		})).Return(&portal.User{Key: e.user, Email: testEmail}, nil)

		w := e.do("GET", "/api/profile?as_of=2024-03-01T10:00:00Z", "", e.token(t, false))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("bad as_of", func(t *testing.T) {
		e := newTestEnv(t)
		w := e.do("GET", "/api/profile?as_of=yesterday", "", e.token(t, false))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "as_of", decodeError(t, w).Error.Fields[0].Field)
	})
}

func TestUpdateProfile(t *testing.T) {
	e := newTestEnv(t)
	patch := vault.Payload{"position": "Lead", "current_project": nil}
	e.accounts.On("UpdateProfile", mock.Anything, e.user, patch).
		Return(&portal.User{Key: e.user, Email: testEmail, Position: "Lead"}, nil)

	w := e.do("PUT", "/api/profile", `{"position":"Lead","current_project":null}`, e.token(t, false))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"position":"Lead"`)
}

func TestChangePassword(t *testing.T) {
	t.Run("changed", func(t *testing.T) {
		e := newTestEnv(t)
		change := portal.PasswordChange{Current: "old-password", New: "new-password", Confirm: "new-password"}
		e.accounts.On("ChangePassword", mock.Anything, e.user, change).Return(nil)

		w := e.do("POST", "/api/change-password",
			`{"current_password":"old-password","new_password":"new-password","confirm_password":"new-password"}`, e.token(t, false))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("wrong current password", func(t *testing.T) {
		e := newTestEnv(t)
		e.accounts.On("ChangePassword", mock.Anything, e.user, mock.Anything).Return(portal.ErrInvalidCredentials)

		w := e.do("POST", "/api/change-password",
			`{"current_password":"nope","new_password":"new-password","confirm_password":"new-password"}`, e.token(t, false))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
