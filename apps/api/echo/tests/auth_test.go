package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/kagisom/imfundo/apps/api/echo"
	"github.com/kagisom/imfundo/core/enrollment"
	testutil "github.com/kagisom/imfundo/tests"
)

func Test_authApi_login(t *testing.T) {
	env := setup(t)

	acct := testutil.CreateAccount(t, env.usrRepo, env.enrRepo, "jane@gmail.com", "xK9#mPl2qR", enrollment.RoleLearner, enrollment.StatusAccepted)

	t.Run("success", func(t *testing.T) {
		body := marshallObj(t, echoapi.LoginRequest{Email: "jane@gmail.com", Password: "xK9#mPl2qR"})
		req, rec := newRequest(http.MethodPost, "/api/auth/login", body)
		env.server.ServeHTTP(rec, req)

		checkCode(t, http.StatusOK, rec)

		var resp echoapi.LoginResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, acct.Usr.ID, resp.Account.Usr.ID)
		assert.True(t, resp.Account.IsAccepted)
		assert.Equal(t, "learner", resp.Account.PrimaryRole)
		assert.Equal(t, "/student", resp.Account.DashboardPath)

		// a session cookie is set for dashboard navigation
		cookies := rec.Result().Cookies()
		require.NotEmpty(t, cookies)
		assert.Equal(t, "session", cookies[0].Name)
		assert.Equal(t, resp.Token, cookies[0].Value)
	})

	t.Run("case-insensitive email", func(t *testing.T) {
		body := marshallObj(t, echoapi.LoginRequest{Email: "JANE@GMAIL.COM", Password: "xK9#mPl2qR"})
		req, rec := newRequest(http.MethodPost, "/api/auth/login", body)
		env.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusOK, rec)
	})

	t.Run("wrong password", func(t *testing.T) {
		body := marshallObj(t, echoapi.LoginRequest{Email: "jane@gmail.com", Password: "wrong"})
		req, rec := newRequest(http.MethodPost, "/api/auth/login", body)
		env.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusBadRequest, rec)
	})

	t.Run("unknown account", func(t *testing.T) {
		body := marshallObj(t, echoapi.LoginRequest{Email: "nope@gmail.com", Password: "xK9#mPl2qR"})
		req, rec := newRequest(http.MethodPost, "/api/auth/login", body)
		env.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusBadRequest, rec)
	})

	t.Run("missing fields", func(t *testing.T) {
		body := marshallObj(t, echoapi.LoginRequest{})
		req, rec := newRequest(http.MethodPost, "/api/auth/login", body)
		env.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusBadRequest, rec)
	})
}

func Test_authApi_session(t *testing.T) {
	env := setup(t)

	acct := testutil.CreateAccount(t, env.usrRepo, env.enrRepo, "jane@gmail.com", "xK9#mPl2qR", enrollment.RoleLearner, enrollment.StatusPending)
	token := getToken(t, env.conf, acct)

	t.Run("no token", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/api/auth/session")
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, http.StatusUnauthorized, marshallObj(t, errMissingToken), rec)
	})

	t.Run("pending account", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/auth/session", token)
		env.server.ServeHTTP(rec, req)

		checkCode(t, http.StatusOK, rec)
		var resp echoapi.AccountResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.IsAccepted)
		assert.Equal(t, "learner", resp.PrimaryRole)
		assert.Empty(t, resp.DashboardPath)
	})

	t.Run("session reflects a fresh approval", func(t *testing.T) {
		admin := testutil.CreateAccount(t, env.usrRepo, env.enrRepo, "admin@gmail.com", "xK9#mPl2qR", enrollment.RoleAdmin, enrollment.StatusAccepted)
		_, err := env.enrSvc.SetApplicationStatus(context.Background(), admin, acct.Roles[0].ID, enrollment.StatusAccepted)
		require.NoError(t, err)

		// same token, new decision: the session endpoint rereads the DB
		httpReq, rec := newAuthRequest(http.MethodGet, "/api/auth/session", token)
		env.server.ServeHTTP(rec, httpReq)

		checkCode(t, http.StatusOK, rec)
		var resp echoapi.AccountResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.IsAccepted)
		assert.Equal(t, "/student", resp.DashboardPath)
	})
}

func Test_authApi_refreshToken(t *testing.T) {
	env := setup(t)

	acct := testutil.CreateAccount(t, env.usrRepo, env.enrRepo, "jane@gmail.com", "xK9#mPl2qR", enrollment.RoleLearner, enrollment.StatusAccepted)
	token := getToken(t, env.conf, acct)

	req, rec := newAuthRequest(http.MethodPost, "/api/auth/token-refresh", token)
	env.server.ServeHTTP(rec, req)

	checkCode(t, http.StatusOK, rec)
	var resp echoapi.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
}

func Test_authApi_logout(t *testing.T) {
	env := setup(t)

	acct := testutil.CreateAccount(t, env.usrRepo, env.enrRepo, "jane@gmail.com", "xK9#mPl2qR", enrollment.RoleLearner, enrollment.StatusAccepted)
	token := getToken(t, env.conf, acct)

	req, rec := newAuthRequest(http.MethodPost, "/api/auth/logout", token)
	env.server.ServeHTTP(rec, req)

	checkCode(t, http.StatusNoContent, rec)

	// the session cookie is cleared
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, "session", cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
}
