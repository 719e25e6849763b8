package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/sunsizer/sunsizer/pkg/storage"
	"github.com/sunsizer/sunsizer/pkg/storage/storagemock"
	"github.com/sunsizer/sunsizer/pkg/types"
)

func testAuthenticate(ctx context.Context, token, specificClient string) (string, string, time.Time, error) {
	if token == "valid-token" {
		return "user@example.com", "user-1", time.Now().Add(time.Hour), nil
	}
	if token == "no-email-token" {
		return "", "user-1", time.Now().Add(time.Hour), nil
	}
	return "", "", time.Time{}, assert.AnError
}

func TestAuthMiddleware(t *testing.T) {
	mockS := &storagemock.MockDatabase{}

	srv := newTestServer(mockS)
	srv.bypassAuth = false
	srv.oidcAudiences = map[string]string{"google": "test-audience"}
	srv.authenticate = testAuthenticate

	// Helper to create request
	createReq := func(method, url string, body interface{}, cookie *http.Cookie) *http.Request {
		var bodyReader *bytes.Buffer
		if body != nil {
			bodyBytes, _ := json.Marshal(body)
			bodyReader = bytes.NewBuffer(bodyBytes)
		} else {
			bodyReader = bytes.NewBuffer(nil)
		}
		req := httptest.NewRequest(method, url, bodyReader)
		if cookie != nil {
			req.AddCookie(cookie)
		}
		return req
	}

	// Helper handler to check context
	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := r.Context().Value(sessionIDContextKey).(string)
		if ok {
			w.Header().Set("X-Session-ID", sessionID)
		}
		user, ok := r.Context().Value(userContextKey).(types.User)
		if ok {
			w.Header().Set("X-Email", user.Email)
		}
		userReg, ok := r.Context().Value(userToRegisterContextKey).(types.User)
		if ok {
			w.Header().Set("X-Register-Email", userReg.Email)
		}
		w.WriteHeader(http.StatusOK)
	})

	t.Run("Login Bypass", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := createReq("POST", "/api/auth/login", nil, nil)

		srv.authMiddleware(testHandler).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-Email"))
	})

	t.Run("No Auth", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := createReq("GET", "/api/sizing?sessionID=sess-1", nil, nil)

		srv.authMiddleware(testHandler).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Auth but No SessionID", func(t *testing.T) {
		w := httptest.NewRecorder()
		cookie := &http.Cookie{Name: authTokenCookie, Value: "valid-token"}
		req := createReq("GET", "/api/sizing", nil, cookie)

		mockS.On("GetUser", mock.Anything, "user-1").Return(types.User{
			ID:    "user-1",
			Email: "user@example.com",
		}, nil).Once()

		srv.authMiddleware(testHandler).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Auth Owned Session (Query Param)", func(t *testing.T) {
		w := httptest.NewRecorder()
		cookie := &http.Cookie{Name: authTokenCookie, Value: "valid-token"}
		req := createReq("GET", "/api/sizing?sessionID=sess-1", nil, cookie)

		mockS.On("GetUser", mock.Anything, "user-1").Return(types.User{
			ID:    "user-1",
			Email: "user@example.com",
		}, nil).Once()
		mockS.On("GetSession", mock.Anything, "sess-1").Return(types.Session{
			ID:      "sess-1",
			OwnerID: "user-1",
		}, nil).Once()

		srv.authMiddleware(testHandler).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "sess-1", w.Header().Get("X-Session-ID"))
		assert.Equal(t, "user@example.com", w.Header().Get("X-Email"))
	})

	t.Run("Auth Someone Else's Session", func(t *testing.T) {
		w := httptest.NewRecorder()
		cookie := &http.Cookie{Name: authTokenCookie, Value: "valid-token"}
		req := createReq("GET", "/api/sizing?sessionID=sess-2", nil, cookie)

		mockS.On("GetUser", mock.Anything, "user-1").Return(types.User{
			ID:    "user-1",
			Email: "user@example.com",
		}, nil).Once()
		mockS.On("GetSession", mock.Anything, "sess-2").Return(types.Session{
			ID:      "sess-2",
			OwnerID: "user-2",
		}, nil).Once()

		srv.authMiddleware(testHandler).ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Admin Bypasses Ownership", func(t *testing.T) {
		srv.adminEmails = []string{"user@example.com"}
		defer func() { srv.adminEmails = nil }()

		w := httptest.NewRecorder()
		cookie := &http.Cookie{Name: authTokenCookie, Value: "valid-token"}
		req := createReq("GET", "/api/sizing?sessionID=sess-2", nil, cookie)

		mockS.On("GetUser", mock.Anything, "user-1").Return(types.User{
			ID:    "user-1",
			Email: "user@example.com",
		}, nil).Once()

		srv.authMiddleware(testHandler).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "sess-2", w.Header().Get("X-Session-ID"))
	})

	t.Run("POST Body SessionID", func(t *testing.T) {
		w := httptest.NewRecorder()
		cookie := &http.Cookie{Name: authTokenCookie, Value: "valid-token"}
		req := createReq("POST", "/api/quote", map[string]string{"sessionID": "sess-1"}, cookie)

		mockS.On("GetUser", mock.Anything, "user-1").Return(types.User{
			ID:    "user-1",
			Email: "user@example.com",
		}, nil).Once()
		mockS.On("GetSession", mock.Anything, "sess-1").Return(types.Session{
			ID:      "sess-1",
			OwnerID: "user-1",
		}, nil).Once()

		srv.authMiddleware(testHandler).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "sess-1", w.Header().Get("X-Session-ID"))
	})

	t.Run("Create Session with New User", func(t *testing.T) {
		w := httptest.NewRecorder()
		cookie := &http.Cookie{Name: authTokenCookie, Value: "valid-token"}
		req := createReq("POST", "/api/sessions", map[string]string{"name": "First Home"}, cookie)

		mockS.On("GetUser", mock.Anything, "user-1").Return(types.User{}, storage.ErrUserNotFound).Once()

		srv.authMiddleware(testHandler).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-Email"))
		assert.Equal(t, "user@example.com", w.Header().Get("X-Register-Email"))
	})

	t.Run("Invalid Token", func(t *testing.T) {
		w := httptest.NewRecorder()
		cookie := &http.Cookie{Name: authTokenCookie, Value: "garbage"}
		req := createReq("GET", "/api/sizing?sessionID=sess-1", nil, cookie)

		srv.authMiddleware(testHandler).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Bypass Auth", func(t *testing.T) {
		bypass := newTestServer(mockS)
		w := httptest.NewRecorder()
		req := createReq("GET", "/api/sizing?sessionID=sess-1", nil, nil)

		bypass.authMiddleware(testHandler).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "sess-1", w.Header().Get("X-Session-ID"))
	})
}

func TestHandleLogin(t *testing.T) {
	srv := newTestServer(&storagemock.MockDatabase{})
	srv.bypassAuth = false
	srv.oidcAudiences = map[string]string{"google": "test-audience"}
	srv.authenticate = testAuthenticate

	createReq := func(token string) *http.Request {
		body := map[string]string{"token": token}
		bodyBytes, _ := json.Marshal(body)
		return httptest.NewRequest("POST", "/api/auth/login", bytes.NewBuffer(bodyBytes))
	}

	t.Run("Valid Login", func(t *testing.T) {
		w := httptest.NewRecorder()
		srv.handleLogin(w, createReq("valid-token"))

		result := w.Result()
		assert.Equal(t, http.StatusOK, result.StatusCode)

		found := false
		for _, c := range result.Cookies() {
			if c.Name == authTokenCookie {
				found = true
				assert.Equal(t, "valid-token", c.Value)
				assert.True(t, c.HttpOnly)
				assert.True(t, c.Secure)
				assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
			}
		}
		assert.True(t, found, "auth cookie should be set")
	})

	t.Run("Invalid Token", func(t *testing.T) {
		w := httptest.NewRecorder()
		srv.handleLogin(w, createReq("invalid-token"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Token Missing Email", func(t *testing.T) {
		w := httptest.NewRecorder()
		srv.handleLogin(w, createReq("no-email-token"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Invalid Request Body", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/auth/login", bytes.NewBufferString("invalid-json"))
		srv.handleLogin(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleLogout(t *testing.T) {
	srv := newTestServer(&storagemock.MockDatabase{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: authTokenCookie, Value: "some-token"})

	srv.handleLogout(w, req)

	result := w.Result()
	assert.Equal(t, http.StatusOK, result.StatusCode)

	found := false
	for _, c := range result.Cookies() {
		if c.Name == authTokenCookie {
			found = true
			assert.Equal(t, "", c.Value)
			assert.True(t, c.MaxAge < 0)
			assert.True(t, c.Expires.Before(time.Now()))
		}
	}
	assert.True(t, found, "auth cookie should be cleared")
}

func TestHandleAuthStatus(t *testing.T) {
	srv := newTestServer(&storagemock.MockDatabase{})
	srv.oidcAudiences = map[string]string{"google": "test-audience"}

	t.Run("Unregistered User", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/auth/status", nil)
		userToRegister := types.User{Email: "new@example.com", ID: "123"}
		ctx := context.WithValue(req.Context(), userToRegisterContextKey, userToRegister)
		req = req.WithContext(ctx)

		w := httptest.NewRecorder()
		srv.handleAuthStatus(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp authStatusResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.LoggedIn)
		assert.Equal(t, "new@example.com", resp.Email)
		assert.True(t, resp.AuthRequired)
	})

	t.Run("Registered User", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/auth/status", nil)
		req = withUser(req, types.User{Email: "existing@example.com", ID: "456"})

		w := httptest.NewRecorder()
		srv.handleAuthStatus(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp authStatusResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.LoggedIn)
		assert.Equal(t, "existing@example.com", resp.Email)
	})

	t.Run("Not Logged In", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/auth/status", nil)
		w := httptest.NewRecorder()
		srv.handleAuthStatus(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp authStatusResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.LoggedIn)
	})
}
