package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/kanban/internal/auth"
	"github.com/gosuda/kanban/internal/domain"
)

type RegisterInput struct {
	Body struct {
		Name     string `json:"name" minLength:"1" maxLength:"255" doc:"Display name"`
		Email    string `json:"email" minLength:"3" maxLength:"255" doc:"User email"`
		Password string `json:"password" minLength:"6" maxLength:"128" doc:"Password"` //nolint:gosec // G117: login credential DTO
	}
}

type LoginInput struct {
	Body struct {
		Email    string `json:"email" minLength:"3" maxLength:"255" doc:"User email"`
		Password string `json:"password" minLength:"1" maxLength:"128" doc:"Password"` //nolint:gosec // G117: login credential DTO
	}
}

// Session is returned by register and login.
type Session struct {
	User         *domain.User `json:"user"`
	AccessToken  string       `json:"accessToken"`  //nolint:gosec // G117: auth response DTO
	RefreshToken string       `json:"refreshToken"` //nolint:gosec // G117: auth response DTO
}

type SessionOutput struct {
	Body Envelope[*Session]
}

type RefreshInput struct {
	Body struct {
		RefreshToken string `json:"refreshToken" minLength:"1" doc:"Refresh token"` //nolint:gosec // G117: token refresh DTO
	}
}

type AccessToken struct {
	AccessToken string `json:"accessToken"` //nolint:gosec // G117: auth response DTO
}

type RefreshOutput struct {
	Body Envelope[AccessToken]
}

func RegisterAuthRoutes(api huma.API, authSvc AuthService) {
	huma.Register(api, huma.Operation{
		OperationID:   "register",
		Method:        http.MethodPost,
		Path:          "/auth/register",
		Summary:       "Register a new user",
		Tags:          []string{"Auth"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *RegisterInput) (*SessionOutput, error) {
		_, err := authSvc.Register(ctx, input.Body.Email, input.Body.Password, input.Body.Name)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrUserAlreadyExists):
				return nil, huma.Error409Conflict("user already exists")
			case errors.Is(err, auth.ErrInvalidInput):
				return nil, huma.Error400BadRequest("please provide a name, a valid email and a password of at least 6 characters")
			}
			return nil, huma.Error500InternalServerError("failed to register user", err)
		}

		user, tokens, err := authSvc.Login(ctx, input.Body.Email, input.Body.Password)
		if err != nil {
			return nil, huma.Error500InternalServerError("registered but failed to issue tokens", err)
		}

		return &SessionOutput{Body: ok(session(user, tokens))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Login with email and password",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *LoginInput) (*SessionOutput, error) {
		user, tokens, err := authSvc.Login(ctx, input.Body.Email, input.Body.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				return nil, huma.Error401Unauthorized("invalid credentials")
			}
			return nil, huma.Error500InternalServerError("login failed", err)
		}

		return &SessionOutput{Body: ok(session(user, tokens))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "refresh-token",
		Method:      http.MethodPost,
		Path:        "/auth/refresh",
		Summary:     "Refresh access token",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *RefreshInput) (*RefreshOutput, error) {
		accessToken, err := authSvc.RefreshToken(ctx, input.Body.RefreshToken)
		if err != nil {
			return nil, huma.Error401Unauthorized("invalid or expired refresh token")
		}

		return &RefreshOutput{Body: ok(AccessToken{AccessToken: accessToken})}, nil
	})
}

func session(user *domain.User, tokens *auth.Tokens) *Session {
	return &Session{
		User:         user,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}
}
