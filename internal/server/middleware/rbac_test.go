package middleware_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/gosuda/kanban/internal/domain"
	"github.com/gosuda/kanban/internal/server/middleware"
)

type pingOutput struct {
	Body struct {
		OK bool `json:"ok"`
	}
}

func newRBACAPI(t *testing.T, roles ...domain.Role) humatest.TestAPI {
	t.Helper()

	_, api := humatest.New(t)
	huma.Register(api, huma.Operation{
		OperationID: "ping",
		Method:      http.MethodGet,
		Path:        "/ping",
		Middlewares: huma.Middlewares{middleware.RequireRole(api, "only admins can do this", roles...)},
	}, func(context.Context, *struct{}) (*pingOutput, error) {
		out := &pingOutput{}
		out.Body.OK = true
		return out, nil
	})
	return api
}

func principalCtx(role domain.Role) context.Context {
	return middleware.WithPrincipal(context.Background(), domain.Principal{ID: uuid.New(), Role: role})
}

func TestRequireRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		allowed []domain.Role
		role    domain.Role
		want    int
	}{
		{name: "admin allowed for admin-only", allowed: []domain.Role{domain.RoleAdmin}, role: domain.RoleAdmin, want: http.StatusOK},
		{name: "member blocked for admin-only", allowed: []domain.Role{domain.RoleAdmin}, role: domain.RoleMember, want: http.StatusForbidden},
		{name: "member allowed when listed", allowed: []domain.Role{domain.RoleAdmin, domain.RoleMember}, role: domain.RoleMember, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			api := newRBACAPI(t, tt.allowed...)
			resp := api.GetCtx(principalCtx(tt.role), "/ping")

			assert.Equal(t, tt.want, resp.Code)
			if tt.want == http.StatusForbidden {
				assert.Contains(t, resp.Body.String(), "only admins can do this")
			}
		})
	}
}

func TestRequireRole_NoPrincipal_Returns401(t *testing.T) {
	t.Parallel()

	api := newRBACAPI(t, domain.RoleAdmin)
	resp := api.Get("/ping")

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestRequireAdmin(t *testing.T) {
	t.Parallel()

	_, api := humatest.New(t)
	huma.Register(api, huma.Operation{
		OperationID: "admin-only",
		Method:      http.MethodGet,
		Path:        "/admin",
		Middlewares: huma.Middlewares{middleware.RequireAdmin(api, "only admins can create boards")},
	}, func(context.Context, *struct{}) (*pingOutput, error) {
		return &pingOutput{}, nil
	})

	assert.Equal(t, http.StatusOK, api.GetCtx(principalCtx(domain.RoleAdmin), "/admin").Code)
	assert.Equal(t, http.StatusForbidden, api.GetCtx(principalCtx(domain.RoleMember), "/admin").Code)
}
