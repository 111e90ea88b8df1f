package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/doha-roastery/roastery/internal/shared"
)

type stubRepo struct {
	user *User
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id, userID string, expiresAt time.Time, ip, ua string) error {
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	return nil
}

func newTestHandler(t *testing.T, repo Repository) (*Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	handler := NewHandler(nil, NewService(repo), sessionManager, csrfManager)
	return handler, sessionManager
}

func withSession(t *testing.T, sm *shared.SessionManager, req *http.Request) (*http.Request, *shared.Session) {
	t.Helper()
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	ctx := shared.ContextWithSession(req.Context(), sess)
	return req.WithContext(ctx), sess
}

func TestLoginSuccess(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correcthorse"), bcrypt.DefaultCost)
	require.NoError(t, err)
	handler, sm := newTestHandler(t, &stubRepo{user: &User{
		ID:           "u-1",
		Email:        "roaster@doha.local",
		Name:         "Aisha",
		Role:         RoleRoaster,
		PasswordHash: string(hashed),
		IsActive:     true,
	}})

	body := `{"email":"roaster@doha.local","password":"correcthorse"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req, sess := withSession(t, sm, req)

	res := httptest.NewRecorder()
	handler.handleLogin(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), `"role":"ROASTER"`)
	require.Equal(t, "u-1", sess.User())
	require.Equal(t, "Aisha", sess.UserName())
}

func TestLoginInvalidCredentials(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correcthorse"), bcrypt.DefaultCost)
	require.NoError(t, err)
	handler, sm := newTestHandler(t, &stubRepo{user: &User{
		ID:           "u-1",
		Email:        "roaster@doha.local",
		PasswordHash: string(hashed),
		IsActive:     true,
	}})

	body := `{"email":"roaster@doha.local","password":"wrongpass1"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req, _ = withSession(t, sm, req)

	res := httptest.NewRecorder()
	handler.handleLogin(res, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginInactiveAccount(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correcthorse"), bcrypt.DefaultCost)
	require.NoError(t, err)
	handler, sm := newTestHandler(t, &stubRepo{user: &User{
		ID:           "u-2",
		Email:        "ex@doha.local",
		PasswordHash: string(hashed),
		IsActive:     false,
	}})

	body := `{"email":"ex@doha.local","password":"correcthorse"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req, _ = withSession(t, sm, req)

	res := httptest.NewRecorder()
	handler.handleLogin(res, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestMeWithoutSessionUser(t *testing.T) {
	handler, sm := newTestHandler(t, &stubRepo{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req, _ = withSession(t, sm, req)

	res := httptest.NewRecorder()
	handler.handleMe(res, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
}
