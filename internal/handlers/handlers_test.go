package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/shrimpsizemoose/studentbulle/internal/app"
	"github.com/shrimpsizemoose/studentbulle/internal/models"
	"github.com/shrimpsizemoose/studentbulle/internal/store/sqlite"
)

func newTestRouter(t *testing.T) (http.Handler, *app.Service) {
	t.Helper()

	config := app.DefaultConfig()
	config.Database.DSN = ":memory:"
	config.Auth.BcryptCost = bcrypt.MinCost

	st, err := sqlite.NewSQLiteStore(config.Database.DSN)
	require.NoError(t, err)

	service, err := app.NewServiceWith(context.Background(), config, st, app.NewMemorySessions())
	require.NoError(t, err)
	t.Cleanup(func() { service.Close() })

	return NewRouter(service), service
}

type requestOption func(*http.Request)

func withBearer(token string) requestOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withCookie(c *http.Cookie) requestOption {
	return func(r *http.Request) { r.AddCookie(c) }
}

func withHeader(name, value string) requestOption {
	return func(r *http.Request) { r.Header.Set(name, value) }
}

func do(t *testing.T, h http.Handler, method, path string, body any, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(req)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func login(t *testing.T, h http.Handler, username, password string) (loginResponse, *http.Cookie) {
	t.Helper()

	rec := do(t, h, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "sis_session" {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "login must set the session cookie")

	return decode[loginResponse](t, rec), cookie
}

func TestHealthz(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = do(t, h, http.MethodGet, "/healthz", nil, withHeader("X-Request-ID", "req-42"))
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

func TestStudentScenario(t *testing.T) {
	h, _ := newTestRouter(t)

	bootstrap, _ := login(t, h, "admin", "admin123")
	rec := do(t, h, http.MethodPost, "/api/v1/admin/reinitialize", map[string]bool{"confirm": true}, withBearer(bootstrap.Token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	admin, _ := login(t, h, "admin", "admin123")
	auth := withBearer(admin.Token)

	rec = do(t, h, http.MethodPost, "/api/v1/students", map[string]string{
		"student_id": "S1",
		"name":       "Ann",
		"department": "CS",
		"email":      "a@x.io",
	}, auth)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "/api/v1/students/S1", rec.Header().Get("Location"))

	rec = do(t, h, http.MethodGet, "/api/v1/students?q=CS&field=department", nil, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[studentListResponse](t, rec)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "S1", list.Students[0].StudentID)

	rec = do(t, h, http.MethodDelete, "/api/v1/students/S1", nil, auth)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/students/S1", nil, auth)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnonymousRequestsAreRejected(t *testing.T) {
	h, _ := newTestRouter(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/students"},
		{http.MethodPost, "/api/v1/students"},
		{http.MethodGet, "/api/v1/students/S1"},
		{http.MethodPatch, "/api/v1/students/S1"},
		{http.MethodDelete, "/api/v1/students/S1"},
		{http.MethodGet, "/api/v1/auth/me"},
		{http.MethodPost, "/api/v1/auth/register"},
		{http.MethodPost, "/api/v1/admin/reinitialize"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}

	rec := do(t, h, http.MethodGet, "/api/v1/students", nil, withBearer("sis-bogus"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginFailures(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/v1/auth/login", map[string]string{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())

	rec = do(t, h, http.MethodPost, "/api/v1/auth/login", map[string]string{"username": "admin"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorResponse](t, rec)
	assert.Contains(t, body.Fields, "password")

	rec = do(t, h, http.MethodPost, "/api/v1/auth/login", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCookieSessionNeedsCSRFToken(t *testing.T) {
	h, _ := newTestRouter(t)
	session, cookie := login(t, h, "admin", "admin123")
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	student := map[string]string{"student_id": "S1", "name": "Ann", "department": "CS", "email": "a@x.io"}

	rec := do(t, h, http.MethodGet, "/api/v1/students", nil, withCookie(cookie))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/students", student, withCookie(cookie))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/students", student, withCookie(cookie), withHeader("X-CSRF-Token", "wrong"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/students", student, withCookie(cookie), withHeader("X-CSRF-Token", session.CSRFToken))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestBearerAndCookieTogether(t *testing.T) {
	h, _ := newTestRouter(t)
	admin, cookie := login(t, h, "admin", "admin123")
	stale := &http.Cookie{Name: "sis_session", Value: "sis-stale"}
	student := map[string]string{"student_id": "S1", "name": "Ann", "department": "CS", "email": "a@x.io"}

	rec := do(t, h, http.MethodGet, "/api/v1/students", nil, withBearer(admin.Token), withCookie(stale))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/v1/students", student, withBearer(admin.Token), withCookie(stale))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// a dead bearer token falls back to the cookie, which still needs CSRF
	rec = do(t, h, http.MethodGet, "/api/v1/students", nil, withBearer("sis-bogus"), withCookie(cookie))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodDelete, "/api/v1/students/S1", nil, withBearer("sis-bogus"), withCookie(cookie))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/students", nil, withBearer("sis-bogus"), withCookie(stale))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateStudentValidation(t *testing.T) {
	h, _ := newTestRouter(t)
	admin, _ := login(t, h, "admin", "admin123")
	auth := withBearer(admin.Token)

	rec := do(t, h, http.MethodPost, "/api/v1/students",
		map[string]string{"student_id": "S1", "name": "Ann", "department": "CS", "email": "a@x.io"}, auth)
	require.Equal(t, http.StatusCreated, rec.Code)

	tests := []struct {
		name  string
		body  any
		field string
	}{
		{"bad email", map[string]string{"student_id": "S2", "name": "B", "department": "CS", "email": "nope"}, "email"},
		{"missing department", map[string]string{"student_id": "S2", "name": "B", "email": "b@x.io"}, "department"},
		{"duplicate id", map[string]string{"student_id": "S1", "name": "B", "department": "CS", "email": "b@x.io"}, "student_id"},
		{"duplicate email", map[string]string{"student_id": "S2", "name": "B", "department": "CS", "email": "a@x.io"}, "email"},
		{"unknown field", map[string]string{"student_id": "S2", "nickname": "B"}, "body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/v1/students", tt.body, auth)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Contains(t, decode[errorResponse](t, rec).Fields, tt.field)
		})
	}

	rec = do(t, h, http.MethodGet, "/api/v1/students?field=phone", nil, auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateStudent(t *testing.T) {
	h, _ := newTestRouter(t)
	admin, _ := login(t, h, "admin", "admin123")
	auth := withBearer(admin.Token)

	rec := do(t, h, http.MethodPost, "/api/v1/students",
		map[string]string{"student_id": "S1", "name": "Ann", "department": "CS", "email": "a@x.io"}, auth)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodPatch, "/api/v1/students/S1", map[string]string{"department": "Math"}, auth)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[models.Student](t, rec)
	assert.Equal(t, "Math", updated.Department)
	assert.Equal(t, "Ann", updated.Name)

	rec = do(t, h, http.MethodPost, "/api/v1/students",
		map[string]string{"student_id": "S3", "name": "Bob", "department": "CS", "email": "b@x.io"}, auth)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodPatch, "/api/v1/students/S1", map[string]string{"student_id": "S3"}, auth)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, decode[errorResponse](t, rec).Fields, "student_id")

	rec = do(t, h, http.MethodPatch, "/api/v1/students/S1", map[string]string{"student_id": "S2"}, auth)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "/api/v1/students/S2", rec.Header().Get("Location"))
	renamed := decode[models.Student](t, rec)
	assert.Equal(t, "S2", renamed.StudentID)
	assert.Equal(t, "Math", renamed.Department)

	rec = do(t, h, http.MethodGet, "/api/v1/students/S2", nil, auth)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/v1/students/S1", nil, auth)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPatch, "/api/v1/students/S2", map[string]string{}, auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPatch, "/api/v1/students/S404", map[string]string{"name": "X"}, auth)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegister(t *testing.T) {
	h, _ := newTestRouter(t)
	admin, _ := login(t, h, "admin", "admin123")

	rec := do(t, h, http.MethodPost, "/api/v1/auth/register",
		map[string]string{"username": "clerk", "password": "secret1", "confirm": "secret2"}, withBearer(admin.Token))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Fields, "confirm")

	rec = do(t, h, http.MethodPost, "/api/v1/auth/register",
		map[string]string{"username": "clerk", "password": "secret1", "confirm": "secret1"}, withBearer(admin.Token))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "password")
	created := decode[models.User](t, rec)
	assert.Equal(t, models.RoleUser, created.Role)

	clerk, _ := login(t, h, "clerk", "secret1")

	rec = do(t, h, http.MethodGet, "/api/v1/auth/me", nil, withBearer(clerk.Token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "clerk", decode[models.Session](t, rec).Username)

	rec = do(t, h, http.MethodPost, "/api/v1/auth/register",
		map[string]string{"username": "other", "password": "secret1", "confirm": "secret1"}, withBearer(clerk.Token))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestReinitialize(t *testing.T) {
	h, service := newTestRouter(t)
	admin, _ := login(t, h, "admin", "admin123")

	_, err := service.Accounts.Create(context.Background(), "clerk", "secret1", models.RoleUser)
	require.NoError(t, err)
	clerk, _ := login(t, h, "clerk", "secret1")

	rec := do(t, h, http.MethodPost, "/api/v1/admin/reinitialize", map[string]bool{"confirm": true}, withBearer(clerk.Token))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/admin/reinitialize", map[string]bool{"confirm": false}, withBearer(admin.Token))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/admin/reinitialize", map[string]bool{"confirm": true}, withBearer(admin.Token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/v1/students", nil, withBearer(admin.Token))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/auth/login", map[string]string{"username": "clerk", "password": "secret1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout(t *testing.T) {
	h, _ := newTestRouter(t)
	session, _ := login(t, h, "admin", "admin123")

	rec := do(t, h, http.MethodPost, "/api/v1/auth/logout", nil, withBearer(session.Token))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/auth/me", nil, withBearer(session.Token))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/auth/logout", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
