package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/kanban/internal/auth"
	"github.com/gosuda/kanban/internal/domain"
)

// mockServiceRepo is a configurable mock implementing domain.UserRepository.
// It captures calls and returns preconfigured responses for service-level tests.
type mockServiceRepo struct {
	getByEmailUser *domain.User
	getByEmailErr  error

	getByIDUser *domain.User
	getByIDErr  error

	createErr   error
	createdUser *domain.User // captures the user passed to Create.
}

func (m *mockServiceRepo) Create(_ context.Context, u *domain.User) error {
	m.createdUser = u
	return m.createErr
}

func (m *mockServiceRepo) GetByID(context.Context, uuid.UUID) (*domain.User, error) {
	return m.getByIDUser, m.getByIDErr
}

func (m *mockServiceRepo) GetByEmail(context.Context, string) (*domain.User, error) {
	return m.getByEmailUser, m.getByEmailErr
}

func (m *mockServiceRepo) ListByIDs(context.Context, []uuid.UUID) ([]*domain.User, error) {
	return nil, nil
}

const (
	testJWTSecret = "test-secret-key-for-unit-tests"
	testEmail     = "alice@example.com"
	testPassword  = "correct-horse-battery-staple"
	testUserName  = "Alice"
)

var (
	testAccessTTL  = 15 * time.Minute
	testRefreshTTL = 7 * 24 * time.Hour
)

func newTestService(repo *mockServiceRepo, admins ...string) *auth.Service {
	return auth.NewService(repo, testJWTSecret, testAccessTTL, testRefreshTTL, admins...)
}

func TestRegister(t *testing.T) {
	t.Parallel()

	t.Run("happy path creates member", func(t *testing.T) {
		t.Parallel()

		repo := &mockServiceRepo{getByEmailErr: domain.ErrNotFound}
		svc := newTestService(repo)

		user, err := svc.Register(t.Context(), " Alice@Example.com ", testPassword, testUserName)

		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, testEmail, user.Email, "email is normalized")
		assert.Equal(t, testUserName, user.Name)
		assert.Equal(t, domain.RoleMember, user.Role, "default role must be member")
		assert.NotEqual(t, uuid.Nil, user.ID)
		assert.False(t, user.CreatedAt.IsZero())
		assert.Same(t, user, repo.createdUser)
	})

	t.Run("configured admin email gets admin role", func(t *testing.T) {
		t.Parallel()

		repo := &mockServiceRepo{getByEmailErr: domain.ErrNotFound}
		svc := newTestService(repo, "ALICE@example.com")

		user, err := svc.Register(t.Context(), testEmail, testPassword, testUserName)

		require.NoError(t, err)
		assert.Equal(t, domain.RoleAdmin, user.Role)
	})

	t.Run("password is hashed not stored as plaintext", func(t *testing.T) {
		t.Parallel()

		repo := &mockServiceRepo{getByEmailErr: domain.ErrNotFound}
		svc := newTestService(repo)

		user, err := svc.Register(t.Context(), testEmail, testPassword, testUserName)

		require.NoError(t, err)
		assert.NotEqual(t, testPassword, user.PasswordHash)
		assert.Contains(t, user.PasswordHash, "$", "argon2id hash must contain salt$hash separator")
	})

	t.Run("user already exists", func(t *testing.T) {
		t.Parallel()

		repo := &mockServiceRepo{getByEmailUser: &domain.User{ID: uuid.New(), Email: testEmail}}
		svc := newTestService(repo)

		user, err := svc.Register(t.Context(), testEmail, testPassword, testUserName)

		require.ErrorIs(t, err, auth.ErrUserAlreadyExists)
		assert.Nil(t, user)
		assert.Nil(t, repo.createdUser)
	})

	t.Run("unique violation on create maps to already exists", func(t *testing.T) {
		t.Parallel()

		repo := &mockServiceRepo{getByEmailErr: domain.ErrNotFound, createErr: domain.ErrConflict}
		svc := newTestService(repo)

		_, err := svc.Register(t.Context(), testEmail, testPassword, testUserName)

		assert.ErrorIs(t, err, auth.ErrUserAlreadyExists)
	})

	t.Run("repo Create error is propagated", func(t *testing.T) {
		t.Parallel()

		repoErr := errors.New("database connection refused")
		repo := &mockServiceRepo{getByEmailErr: domain.ErrNotFound, createErr: repoErr}
		svc := newTestService(repo)

		user, err := svc.Register(t.Context(), testEmail, testPassword, testUserName)

		require.ErrorIs(t, err, repoErr)
		assert.Nil(t, user)
	})

	t.Run("invalid input", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name, email, password, userName string
		}{
			{name: "bad email", email: "not-an-email", password: testPassword, userName: testUserName},
			{name: "short password", email: testEmail, password: "12345", userName: testUserName},
			{name: "blank name", email: testEmail, password: testPassword, userName: "   "},
		}
		for _, tt := range tests {
			repo := &mockServiceRepo{getByEmailErr: domain.ErrNotFound}
			svc := newTestService(repo)

			_, err := svc.Register(t.Context(), tt.email, tt.password, tt.userName)
			require.ErrorIs(t, err, auth.ErrInvalidInput, tt.name)
			assert.Nil(t, repo.createdUser, tt.name)
		}
	})
}

func TestLogin(t *testing.T) {
	t.Parallel()

	registered := func(t *testing.T) *domain.User {
		t.Helper()

		repo := &mockServiceRepo{getByEmailErr: domain.ErrNotFound}
		_, err := newTestService(repo).Register(t.Context(), testEmail, testPassword, testUserName)
		require.NoError(t, err)
		return repo.createdUser
	}

	t.Run("happy path returns two valid tokens", func(t *testing.T) {
		t.Parallel()

		u := registered(t)
		svc := newTestService(&mockServiceRepo{getByEmailUser: u})

		user, tokens, err := svc.Login(t.Context(), testEmail, testPassword)
		require.NoError(t, err)
		assert.Equal(t, u.ID, user.ID)

		access, err := auth.ValidateToken(testJWTSecret, tokens.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "access", access.TokenType)
		assert.Equal(t, u.ID.String(), access.UserID)
		assert.Equal(t, "member", access.Role)

		refresh, err := auth.ValidateToken(testJWTSecret, tokens.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, "refresh", refresh.TokenType)
	})

	t.Run("wrong password", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(&mockServiceRepo{getByEmailUser: registered(t)})

		user, tokens, err := svc.Login(t.Context(), testEmail, "wrong-password")
		require.ErrorIs(t, err, auth.ErrInvalidCredentials)
		assert.Nil(t, user)
		assert.Nil(t, tokens)
	})

	t.Run("user not found", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(&mockServiceRepo{getByEmailErr: domain.ErrNotFound})

		_, _, err := svc.Login(t.Context(), "nobody@example.com", testPassword)
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("corrupt stored hash", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(&mockServiceRepo{getByEmailUser: &domain.User{PasswordHash: "zz$zz"}})

		_, _, err := svc.Login(t.Context(), testEmail, testPassword)
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})
}

func TestRefreshToken(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	t.Run("uses current role from repo not stale token role", func(t *testing.T) {
		t.Parallel()

		repo := &mockServiceRepo{getByIDUser: &domain.User{ID: userID, Role: domain.RoleAdmin}}
		svc := newTestService(repo)

		refreshToken, err := auth.IssueRefreshToken(testJWTSecret, userID, domain.RoleMember, testRefreshTTL)
		require.NoError(t, err)

		newAccess, err := svc.RefreshToken(t.Context(), refreshToken)
		require.NoError(t, err)

		claims, err := auth.ValidateToken(testJWTSecret, newAccess)
		require.NoError(t, err)
		assert.Equal(t, "access", claims.TokenType)
		assert.Equal(t, "admin", claims.Role)
	})

	t.Run("access token rejected", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(&mockServiceRepo{})
		accessToken, err := auth.IssueAccessToken(testJWTSecret, userID, domain.RoleMember, testAccessTTL)
		require.NoError(t, err)

		newAccess, err := svc.RefreshToken(t.Context(), accessToken)
		require.ErrorIs(t, err, auth.ErrInvalidToken)
		assert.Empty(t, newAccess)
	})

	t.Run("expired token", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(&mockServiceRepo{})
		expired, err := auth.IssueRefreshToken(testJWTSecret, userID, domain.RoleMember, -1*time.Second)
		require.NoError(t, err)

		_, err = svc.RefreshToken(t.Context(), expired)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("user deleted after token issued", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(&mockServiceRepo{getByIDErr: domain.ErrNotFound})
		refreshToken, err := auth.IssueRefreshToken(testJWTSecret, userID, domain.RoleMember, testRefreshTTL)
		require.NoError(t, err)

		_, err = svc.RefreshToken(t.Context(), refreshToken)
		assert.ErrorIs(t, err, auth.ErrUserNotFound)
	})
}

func TestGetUser(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	t.Run("happy path returns user", func(t *testing.T) {
		t.Parallel()

		want := &domain.User{ID: userID, Email: testEmail, Name: testUserName, Role: domain.RoleMember}
		svc := newTestService(&mockServiceRepo{getByIDUser: want})

		user, err := svc.GetUser(t.Context(), userID)
		require.NoError(t, err)
		assert.Equal(t, want, user)
	})

	t.Run("not found is wrapped", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(&mockServiceRepo{getByIDErr: domain.ErrNotFound})

		user, err := svc.GetUser(t.Context(), userID)
		require.ErrorIs(t, err, domain.ErrNotFound)
		assert.Nil(t, user)
	})
}
