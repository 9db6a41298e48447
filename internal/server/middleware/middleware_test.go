package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/kanban/internal/auth"
	"github.com/gosuda/kanban/internal/domain"
	"github.com/gosuda/kanban/internal/server/middleware"
)

// okHandler is a simple handler that writes 200 OK.
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// principalHandler captures the principal set by middleware.
type principalHandler struct {
	principal domain.Principal
	called    bool
}

func (h *principalHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.principal, _ = middleware.PrincipalFromContext(r.Context())
	w.WriteHeader(http.StatusOK)
}

func withPrincipal(r *http.Request, id uuid.UUID) *http.Request {
	return r.WithContext(middleware.WithPrincipal(r.Context(), domain.Principal{ID: id, Role: domain.RoleMember}))
}

func TestPrincipalFromContext(t *testing.T) {
	t.Parallel()

	t.Run("present", func(t *testing.T) {
		t.Parallel()

		want := domain.Principal{ID: uuid.New(), Role: domain.RoleAdmin}
		got, ok := middleware.PrincipalFromContext(middleware.WithPrincipal(context.Background(), want))

		require.True(t, ok)
		assert.Equal(t, want, got)
	})

	t.Run("absent", func(t *testing.T) {
		t.Parallel()

		got, ok := middleware.PrincipalFromContext(context.Background())

		assert.False(t, ok)
		assert.Equal(t, domain.Principal{}, got)
	})

	t.Run("wrong type", func(t *testing.T) {
		t.Parallel()

		ctx := context.WithValue(context.Background(), middleware.ContextKeyPrincipal, "admin")

		_, ok := middleware.PrincipalFromContext(ctx)
		assert.False(t, ok)
	})
}

// ===========================================================================
// Rate limiting
// ===========================================================================

func TestRateLimit_NoPrincipal_PassesThrough(t *testing.T) {
	t.Parallel()

	handler := middleware.RateLimit(t.Context(), 0.001, 1)(okHandler)

	for range 3 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimit_BurstExceeded_Returns429(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	// Very low rate (effectively zero refill during the test) with burst of 2.
	handler := middleware.RateLimit(t.Context(), 0.001, 2)(okHandler)

	for i := range 2 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, withPrincipal(httptest.NewRequest(http.MethodGet, "/", http.NoBody), id))
		require.Equalf(t, http.StatusOK, rec.Code, "request %d should pass", i+1)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, withPrincipal(httptest.NewRequest(http.MethodGet, "/", http.NoBody), id))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"rate limit exceeded"}`, rec.Body.String())
}

func TestRateLimit_IndependentPerPrincipal(t *testing.T) {
	t.Parallel()

	a, b := uuid.New(), uuid.New()
	handler := middleware.RateLimit(t.Context(), 0.001, 1)(okHandler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, withPrincipal(httptest.NewRequest(http.MethodGet, "/", http.NoBody), a))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, withPrincipal(httptest.NewRequest(http.MethodGet, "/", http.NoBody), a))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, withPrincipal(httptest.NewRequest(http.MethodGet, "/", http.NoBody), b))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitByIP(t *testing.T) {
	t.Parallel()

	handler := middleware.RateLimitByIP(t.Context(), 0.001, 1)(okHandler)

	req := func(addr string) *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/auth/login", http.NoBody)
		r.RemoteAddr = addr
		return r
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req("10.0.0.1"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req("10.0.0.2"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

// ===========================================================================
// Auth middleware
// ===========================================================================

const testJWTSecret = "test-jwt-secret-for-middleware-tests"

func TestAuth_ValidToken_PopulatesPrincipal(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	token, err := auth.IssueAccessToken(testJWTSecret, userID, domain.RoleAdmin, 15*time.Minute)
	require.NoError(t, err)

	capture := &principalHandler{}
	handler := middleware.Auth(testJWTSecret)(capture)

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	require.True(t, capture.called, "inner handler must be called")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.Principal{ID: userID, Role: domain.RoleAdmin}, capture.principal)
}

func TestAuth_QueryToken(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	token, err := auth.IssueAccessToken(testJWTSecret, userID, domain.RoleMember, 15*time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name       string
		mw         func(string) func(http.Handler) http.Handler
		wantCalled bool
		wantCode   int
	}{
		{name: "api routes ignore it", mw: middleware.Auth, wantCalled: false, wantCode: http.StatusUnauthorized},
		{name: "websocket upgrade accepts it", mw: middleware.WebSocketAuth, wantCalled: true, wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			capture := &principalHandler{}
			rec := httptest.NewRecorder()
			tt.mw(testJWTSecret)(capture).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws?access_token="+token, http.NoBody))

			assert.Equal(t, tt.wantCalled, capture.called)
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCalled {
				assert.Equal(t, userID, capture.principal.ID)
			}
		})
	}
}

func TestWebSocketAuth_PrefersHeader(t *testing.T) {
	t.Parallel()

	headerUser := uuid.New()
	headerTok, err := auth.IssueAccessToken(testJWTSecret, headerUser, domain.RoleMember, time.Minute)
	require.NoError(t, err)
	queryTok, err := auth.IssueAccessToken(testJWTSecret, uuid.New(), domain.RoleMember, time.Minute)
	require.NoError(t, err)

	capture := &principalHandler{}
	req := httptest.NewRequest(http.MethodGet, "/ws?access_token="+queryTok, http.NoBody)
	req.Header.Set("Authorization", "Bearer "+headerTok)

	middleware.WebSocketAuth(testJWTSecret)(capture).ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, capture.called)
	assert.Equal(t, headerUser, capture.principal.ID)
}

func TestAuth_Rejections(t *testing.T) {
	t.Parallel()

	expired, err := auth.IssueAccessToken(testJWTSecret, uuid.New(), domain.RoleMember, -time.Second)
	require.NoError(t, err)
	wrongSecret, err := auth.IssueAccessToken("some-other-secret", uuid.New(), domain.RoleMember, time.Minute)
	require.NoError(t, err)
	refresh, err := auth.IssueRefreshToken(testJWTSecret, uuid.New(), domain.RoleMember, time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{name: "no credentials", header: ""},
		{name: "garbage token", header: "Bearer totally.invalid.token"},
		{name: "expired token", header: "Bearer " + expired},
		{name: "wrong secret", header: "Bearer " + wrongSecret},
		{name: "refresh token used as access token", header: "Bearer " + refresh},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			capture := &principalHandler{}
			handler := middleware.Auth(testJWTSecret)(capture)

			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.False(t, capture.called)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), `"success":false`)
		})
	}
}

func TestAuth_BearerCaseInsensitive(t *testing.T) {
	t.Parallel()

	token, err := auth.IssueAccessToken(testJWTSecret, uuid.New(), domain.RoleMember, time.Minute)
	require.NoError(t, err)

	for _, scheme := range []string{"Bearer ", "bearer ", "BEARER "} {
		capture := &principalHandler{}
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set("Authorization", scheme+token)
		rec := httptest.NewRecorder()

		middleware.Auth(testJWTSecret)(capture).ServeHTTP(rec, req)

		assert.True(t, capture.called, scheme)
	}
}
