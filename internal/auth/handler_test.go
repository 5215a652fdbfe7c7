package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pharmapos/pharmapos/internal/auth"
	"github.com/pharmapos/pharmapos/internal/shared"
	"github.com/pharmapos/pharmapos/internal/users"
)

type stubRepo struct {
	creds *users.Credentials
}

func (s *stubRepo) FindByUsername(ctx context.Context, username string) (users.Credentials, error) {
	if s.creds == nil || s.creds.Username != username {
		return users.Credentials{}, users.ErrNotFound
	}
	return *s.creds, nil
}

func activeUser(t *testing.T, username, password, role string) *users.Credentials {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &users.Credentials{
		User:         users.User{ID: 42, Username: username, Name: "Test User", Role: role, IsActive: true},
		PasswordHash: string(hash),
	}
}

func newAuthRouter(t *testing.T, repo auth.CredentialsPort) (chi.Router, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := auth.NewHandler(logger, auth.NewService(repo), sessionManager, csrfManager)

	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r, sessionManager
}

func doJSON(t *testing.T, router chi.Router, sm *shared.SessionManager, method, path, body string, sess *shared.Session) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sess == nil {
		loaded, err := sm.Load(context.Background(), req)
		require.NoError(t, err)
		sess = loaded
	}
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res, sess
}

func TestLoginSuccessSetsSessionUser(t *testing.T) {
	repo := &stubRepo{creds: activeUser(t, "admin", "supersecret", "ADMIN")}
	router, sm := newAuthRouter(t, repo)

	res, sess := doJSON(t, router, sm, http.MethodPost, "/auth/login", `{"username":"admin","password":"supersecret"}`, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, int64(42), sess.UserID())
	require.Equal(t, "ADMIN", sess.Role())

	var payload struct {
		CSRFToken string `json:"csrf_token"`
		User      struct {
			Username string `json:"username"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	require.NotEmpty(t, payload.CSRFToken)
	require.Equal(t, "admin", payload.User.Username)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	repo := &stubRepo{creds: activeUser(t, "admin", "supersecret", "ADMIN")}
	router, sm := newAuthRouter(t, repo)

	res, sess := doJSON(t, router, sm, http.MethodPost, "/auth/login", `{"username":"admin","password":"wrongwrong"}`, nil)
	require.Equal(t, http.StatusUnauthorized, res.Code)
	require.Zero(t, sess.UserID())
}

func TestLoginRejectsUnknownUser(t *testing.T) {
	router, sm := newAuthRouter(t, &stubRepo{})

	res, sess := doJSON(t, router, sm, http.MethodPost, "/auth/login", `{"username":"ghost","password":"supersecret"}`, nil)
	require.Equal(t, http.StatusUnauthorized, res.Code)
	require.Zero(t, sess.UserID())
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	creds := activeUser(t, "admin", "supersecret", "ADMIN")
	creds.IsActive = false
	router, sm := newAuthRouter(t, &stubRepo{creds: creds})

	res, _ := doJSON(t, router, sm, http.MethodPost, "/auth/login", `{"username":"admin","password":"supersecret"}`, nil)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestMeReturnsSessionIdentity(t *testing.T) {
	repo := &stubRepo{creds: activeUser(t, "cashier", "supersecret", "CASHIER")}
	router, sm := newAuthRouter(t, repo)

	_, sess := doJSON(t, router, sm, http.MethodPost, "/auth/login", `{"username":"cashier","password":"supersecret"}`, nil)
	require.Equal(t, int64(42), sess.UserID())

	res, _ := doJSON(t, router, sm, http.MethodGet, "/auth/me", "", sess)
	require.Equal(t, http.StatusOK, res.Code)

	var payload struct {
		UserID    int64  `json:"user_id"`
		Role      string `json:"role"`
		CSRFToken string `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	require.Equal(t, int64(42), payload.UserID)
	require.Equal(t, "CASHIER", payload.Role)
	require.NotEmpty(t, payload.CSRFToken)
}

func TestMeWithoutSessionIsUnauthorized(t *testing.T) {
	router, sm := newAuthRouter(t, &stubRepo{})

	res, _ := doJSON(t, router, sm, http.MethodGet, "/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLogoutClearsSession(t *testing.T) {
	repo := &stubRepo{creds: activeUser(t, "admin", "supersecret", "ADMIN")}
	router, sm := newAuthRouter(t, repo)

	_, sess := doJSON(t, router, sm, http.MethodPost, "/auth/login", `{"username":"admin","password":"supersecret"}`, nil)
	require.Equal(t, int64(42), sess.UserID())

	res, _ := doJSON(t, router, sm, http.MethodPost, "/auth/logout", "", sess)
	require.Equal(t, http.StatusNoContent, res.Code)
}
