package v1_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/gosuda/kanban/internal/api/v1"
	"github.com/gosuda/kanban/internal/auth"
	"github.com/gosuda/kanban/internal/domain"
)

// ---------------------------------------------------------------------------
// POST /auth/register
// ---------------------------------------------------------------------------

func TestRegister(t *testing.T) {
	t.Parallel()

	fixtureUser := &domain.User{
		ID:           uuid.New(),
		Email:        "alice@acme.io",
		Name:         "Alice",
		Role:         domain.RoleMember,
		PasswordHash: "salt$hash",
	}

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		authSvc := &mockAuthService{
			registerFunc: func(_ context.Context, email, password, name string) (*domain.User, error) {
				assert.Equal(t, "alice@acme.io", email)
				assert.Equal(t, "secretpw1", password)
				assert.Equal(t, "Alice", name)
				return fixtureUser, nil
			},
			loginFunc: func(_ context.Context, _, _ string) (*domain.User, *auth.Tokens, error) {
				return fixtureUser, &auth.Tokens{AccessToken: "access-tok", RefreshToken: "refresh-tok"}, nil
			},
		}
		v1.RegisterAuthRoutes(api, authSvc)

		resp := api.Post("/auth/register", map[string]any{
			"email":    "alice@acme.io",
			"password": "secretpw1",
			"name":     "Alice",
		})

		require.Equal(t, http.StatusCreated, resp.Code)
		assert.NotContains(t, resp.Body.String(), "salt$hash", "password hash must never be serialized")

		env := decode[struct {
			User         *domain.User `json:"user"`
			AccessToken  string       `json:"accessToken"`
			RefreshToken string       `json:"refreshToken"`
		}](t, resp.Body)
		assert.True(t, env.Success)
		assert.Equal(t, fixtureUser.Email, env.Data.User.Email)
		assert.Equal(t, "access-tok", env.Data.AccessToken)
		assert.Equal(t, "refresh-tok", env.Data.RefreshToken)
	})

	t.Run("user_already_exists", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		authSvc := &mockAuthService{
			registerFunc: func(_ context.Context, _, _, _ string) (*domain.User, error) {
				return nil, fmt.Errorf("auth.Register: %w", auth.ErrUserAlreadyExists)
			},
		}
		v1.RegisterAuthRoutes(api, authSvc)

		resp := api.Post("/auth/register", map[string]any{
			"email":    "alice@acme.io",
			"password": "password123",
			"name":     "Alice",
		})

		assert.Equal(t, http.StatusConflict, resp.Code)
		env := decode[any](t, resp.Body)
		assert.False(t, env.Success)
		assert.Equal(t, "user already exists", env.Error)
	})

	t.Run("invalid_input", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		authSvc := &mockAuthService{
			registerFunc: func(_ context.Context, _, _, _ string) (*domain.User, error) {
				return nil, fmt.Errorf("auth.Register: %w", auth.ErrInvalidInput)
			},
		}
		v1.RegisterAuthRoutes(api, authSvc)

		resp := api.Post("/auth/register", map[string]any{
			"email":    "not-an-email",
			"password": "password123",
			"name":     "Alice",
		})

		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("short_password_rejected_before_service", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterAuthRoutes(api, &mockAuthService{})

		resp := api.Post("/auth/register", map[string]any{
			"email":    "alice@acme.io",
			"password": "123",
			"name":     "Alice",
		})

		assert.Equal(t, http.StatusBadRequest, resp.Code)
		env := decode[any](t, resp.Body)
		assert.False(t, env.Success)
		assert.NotEmpty(t, env.Error)
	})

	t.Run("login_after_register_fails", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		authSvc := &mockAuthService{
			registerFunc: func(_ context.Context, _, _, _ string) (*domain.User, error) {
				return fixtureUser, nil
			},
			loginFunc: func(_ context.Context, _, _ string) (*domain.User, *auth.Tokens, error) {
				return nil, nil, errors.New("auth.Login: token issuance failed")
			},
		}
		v1.RegisterAuthRoutes(api, authSvc)

		resp := api.Post("/auth/register", map[string]any{
			"email":    "alice@acme.io",
			"password": "password123",
			"name":     "Alice",
		})

		assert.Equal(t, http.StatusInternalServerError, resp.Code)
		assert.NotContains(t, resp.Body.String(), "token issuance failed")
	})
}

// ---------------------------------------------------------------------------
// POST /auth/login
// ---------------------------------------------------------------------------

func TestLogin(t *testing.T) {
	t.Parallel()

	user := &domain.User{ID: uuid.New(), Email: "bob@acme.io", Name: "Bob", Role: domain.RoleAdmin}

	tests := []struct {
		name     string
		loginErr error
		wantCode int
	}{
		{name: "happy_path", wantCode: http.StatusOK},
		{name: "bad_credentials", loginErr: fmt.Errorf("auth.Login: %w", auth.ErrInvalidCredentials), wantCode: http.StatusUnauthorized},
		{name: "store_failure", loginErr: errors.New("db down"), wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, api := humatest.New(t)
			authSvc := &mockAuthService{
				loginFunc: func(_ context.Context, email, password string) (*domain.User, *auth.Tokens, error) {
					assert.Equal(t, "bob@acme.io", email)
					assert.Equal(t, "hunter22", password)
					if tt.loginErr != nil {
						return nil, nil, tt.loginErr
					}
					return user, &auth.Tokens{AccessToken: "a", RefreshToken: "r"}, nil
				},
			}
			v1.RegisterAuthRoutes(api, authSvc)

			resp := api.Post("/auth/login", map[string]any{
				"email":    "bob@acme.io",
				"password": "hunter22",
			})

			require.Equal(t, tt.wantCode, resp.Code)
			if tt.wantCode == http.StatusOK {
				env := decode[struct {
					User        *domain.User `json:"user"`
					AccessToken string       `json:"accessToken"`
				}](t, resp.Body)
				assert.True(t, env.Success)
				assert.Equal(t, user.ID, env.Data.User.ID)
				assert.Equal(t, "a", env.Data.AccessToken)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// POST /auth/refresh
// ---------------------------------------------------------------------------

func TestRefreshToken(t *testing.T) {
	t.Parallel()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		authSvc := &mockAuthService{
			refreshTokenFunc: func(_ context.Context, tok string) (string, error) {
				assert.Equal(t, "refresh-tok", tok)
				return "new-access", nil
			},
		}
		v1.RegisterAuthRoutes(api, authSvc)

		resp := api.Post("/auth/refresh", map[string]any{"refreshToken": "refresh-tok"})

		require.Equal(t, http.StatusOK, resp.Code)
		env := decode[struct {
			AccessToken string `json:"accessToken"`
		}](t, resp.Body)
		assert.Equal(t, "new-access", env.Data.AccessToken)
	})

	t.Run("rejected", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		authSvc := &mockAuthService{
			refreshTokenFunc: func(_ context.Context, _ string) (string, error) {
				return "", auth.ErrInvalidToken
			},
		}
		v1.RegisterAuthRoutes(api, authSvc)

		resp := api.Post("/auth/refresh", map[string]any{"refreshToken": "stale"})

		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})
}
