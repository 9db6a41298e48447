package v1_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/gosuda/kanban/internal/api/v1"
	"github.com/gosuda/kanban/internal/domain"
)

// ---------------------------------------------------------------------------
// GET /boards
// ---------------------------------------------------------------------------

func TestListBoards(t *testing.T) {
	t.Parallel()

	t.Run("returns_boards_for_caller", func(t *testing.T) {
		t.Parallel()

		uid := uuid.New()
		boards := []*domain.Board{
			{ID: uuid.New(), Name: "Roadmap", OwnerID: uid, Members: []uuid.UUID{uid}},
			{ID: uuid.New(), Name: "Ops", OwnerID: uuid.New(), Members: []uuid.UUID{uid}},
		}

		_, api := humatest.New(t)
		svc := &mockBoardService{
			listBoardsFunc: func(_ context.Context, p domain.Principal) ([]*domain.Board, error) {
				assert.Equal(t, uid, p.ID)
				return boards, nil
			},
		}
		v1.RegisterBoardRoutes(api, svc)

		resp := api.GetCtx(memberCtx(uid), "/boards")

		require.Equal(t, http.StatusOK, resp.Code)
		env := decode[[]domain.Board](t, resp.Body)
		assert.True(t, env.Success)
		require.Len(t, env.Data, 2)
		assert.Equal(t, "Roadmap", env.Data[0].Name)
	})

	t.Run("empty_is_array_not_null", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		svc := &mockBoardService{
			listBoardsFunc: func(_ context.Context, _ domain.Principal) ([]*domain.Board, error) {
				return nil, nil
			},
		}
		v1.RegisterBoardRoutes(api, svc)

		resp := api.GetCtx(memberCtx(uuid.New()), "/boards")

		require.Equal(t, http.StatusOK, resp.Code)
		assert.Contains(t, resp.Body.String(), `"data":[]`)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterBoardRoutes(api, &mockBoardService{})

		resp := api.Get("/boards")

		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// POST /boards
// ---------------------------------------------------------------------------

func TestCreateBoard(t *testing.T) {
	t.Parallel()

	t.Run("admin_creates_board", func(t *testing.T) {
		t.Parallel()

		uid := uuid.New()
		now := time.Now().Truncate(time.Second)

		_, api := humatest.New(t)
		svc := &mockBoardService{
			createBoardFunc: func(_ context.Context, p domain.Principal, name string) (*domain.Board, error) {
				assert.Equal(t, uid, p.ID)
				assert.Equal(t, "Sprint 12", name)
				return &domain.Board{ID: uuid.New(), Name: name, OwnerID: uid, Members: []uuid.UUID{uid}, CreatedAt: now, UpdatedAt: now}, nil
			},
		}
		v1.RegisterBoardRoutes(api, svc)

		resp := api.PostCtx(adminCtx(uid), "/boards", map[string]any{"name": "Sprint 12"})

		require.Equal(t, http.StatusCreated, resp.Code)
		env := decode[domain.Board](t, resp.Body)
		assert.Equal(t, "Sprint 12", env.Data.Name)
		assert.Equal(t, []uuid.UUID{uid}, env.Data.Members)
	})

	t.Run("member_forbidden", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterBoardRoutes(api, &mockBoardService{})

		resp := api.PostCtx(memberCtx(uuid.New()), "/boards", map[string]any{"name": "Sprint 12"})

		assert.Equal(t, http.StatusForbidden, resp.Code)
		env := decode[any](t, resp.Body)
		assert.Equal(t, "only admins can create boards", env.Error)
	})

	t.Run("validation_error_from_service", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		svc := &mockBoardService{
			createBoardFunc: func(_ context.Context, _ domain.Principal, _ string) (*domain.Board, error) {
				return nil, domain.Errorf(domain.ErrValidation, "please add a board name")
			},
		}
		v1.RegisterBoardRoutes(api, svc)

		resp := api.PostCtx(adminCtx(uuid.New()), "/boards", map[string]any{"name": ""})

		assert.Equal(t, http.StatusBadRequest, resp.Code)
		env := decode[any](t, resp.Body)
		assert.False(t, env.Success)
		assert.Equal(t, "please add a board name", env.Error)
	})
}

// ---------------------------------------------------------------------------
// GET /boards/{id}
// ---------------------------------------------------------------------------

func TestGetBoard(t *testing.T) {
	t.Parallel()

	uid := uuid.New()
	bid := uuid.New()
	lid := uuid.New()

	snapshot := &domain.BoardSnapshot{
		Board:   &domain.Board{ID: bid, Name: "Roadmap", OwnerID: uid, Members: []uuid.UUID{uid}},
		Members: []domain.UserSummary{{ID: uid, Name: "Alice", Email: "alice@acme.io"}},
		Lists:   []*domain.List{{ID: lid, BoardID: bid, Name: "Todo", Position: 0}},
		Tasks: []*domain.TaskView{{
			Task: domain.Task{ID: uuid.New(), BoardID: bid, ListID: lid, Title: "Ship", AssignedUsers: []uuid.UUID{uid}},
			Assignees: []domain.UserSummary{{ID: uid, Name: "Alice", Email: "alice@acme.io"}},
		}},
	}

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{name: "happy_path", wantCode: http.StatusOK},
		{name: "not_a_member", err: domain.Errorf(domain.ErrForbidden, "not authorized to view this board"), wantCode: http.StatusForbidden, wantMsg: "not authorized to view this board"},
		{name: "not_found", err: fmt.Errorf("board.Service.GetBoard: %w", domain.Errorf(domain.ErrNotFound, "board not found")), wantCode: http.StatusNotFound, wantMsg: "board not found"},
		{name: "store_failure_hides_detail", err: errors.New("pgx: connection reset"), wantCode: http.StatusInternalServerError, wantMsg: "failed to load board"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, api := humatest.New(t)
			svc := &mockBoardService{
				getBoardFunc: func(_ context.Context, p domain.Principal, boardID uuid.UUID) (*domain.BoardSnapshot, error) {
					assert.Equal(t, uid, p.ID)
					assert.Equal(t, bid, boardID)
					if tt.err != nil {
						return nil, tt.err
					}
					return snapshot, nil
				},
			}
			v1.RegisterBoardRoutes(api, svc)

			resp := api.GetCtx(memberCtx(uid), "/boards/"+bid.String())

			require.Equal(t, tt.wantCode, resp.Code)
			if tt.err != nil {
				env := decode[any](t, resp.Body)
				assert.Equal(t, tt.wantMsg, env.Error)
				return
			}

			env := decode[domain.BoardSnapshot](t, resp.Body)
			assert.Equal(t, "Roadmap", env.Data.Board.Name)
			require.Len(t, env.Data.Lists, 1)
			require.Len(t, env.Data.Tasks, 1)
			assert.Equal(t, "Alice", env.Data.Tasks[0].Assignees[0].Name)
		})
	}

	t.Run("malformed_id", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterBoardRoutes(api, &mockBoardService{})

		resp := api.GetCtx(memberCtx(uid), "/boards/not-a-uuid")

		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// DELETE /boards/{id}
// ---------------------------------------------------------------------------

func TestDeleteBoard(t *testing.T) {
	t.Parallel()

	bid := uuid.New()
	called := false

	_, api := humatest.New(t)
	svc := &mockBoardService{
		deleteBoardFunc: func(_ context.Context, _ domain.Principal, boardID uuid.UUID) error {
			called = true
			assert.Equal(t, bid, boardID)
			return nil
		},
	}
	v1.RegisterBoardRoutes(api, svc)

	resp := api.DeleteCtx(memberCtx(uuid.New()), "/boards/"+bid.String())

	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, called)
	assert.True(t, decode[any](t, resp.Body).Success)
}

// ---------------------------------------------------------------------------
// PUT /boards/{id}/members
// ---------------------------------------------------------------------------

func TestAddMember(t *testing.T) {
	t.Parallel()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		bid := uuid.New()
		newcomer := domain.UserSummary{ID: uuid.New(), Name: "Carol", Email: "carol@acme.io"}

		_, api := humatest.New(t)
		svc := &mockBoardService{
			addMemberFunc: func(_ context.Context, _ domain.Principal, boardID uuid.UUID, email string) (*domain.UserSummary, error) {
				assert.Equal(t, bid, boardID)
				assert.Equal(t, "carol@acme.io", email)
				return &newcomer, nil
			},
		}
		v1.RegisterBoardRoutes(api, svc)

		resp := api.PutCtx(memberCtx(uuid.New()), "/boards/"+bid.String()+"/members", map[string]any{"email": "carol@acme.io"})

		require.Equal(t, http.StatusOK, resp.Code)
		env := decode[domain.UserSummary](t, resp.Body)
		assert.Equal(t, newcomer, env.Data)
	})

	t.Run("already_member", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		svc := &mockBoardService{
			addMemberFunc: func(_ context.Context, _ domain.Principal, _ uuid.UUID, _ string) (*domain.UserSummary, error) {
				return nil, domain.Errorf(domain.ErrConflict, "user is already a member of this board")
			},
		}
		v1.RegisterBoardRoutes(api, svc)

		resp := api.PutCtx(memberCtx(uuid.New()), "/boards/"+uuid.NewString()+"/members", map[string]any{"email": "carol@acme.io"})

		assert.Equal(t, http.StatusConflict, resp.Code)
		assert.Equal(t, "user is already a member of this board", decode[any](t, resp.Body).Error)
	})
}

// ---------------------------------------------------------------------------
// GET /boards/{id}/activity
// ---------------------------------------------------------------------------

func TestBoardActivity(t *testing.T) {
	t.Parallel()

	t.Run("passes_limit", func(t *testing.T) {
		t.Parallel()

		bid := uuid.New()

		_, api := humatest.New(t)
		svc := &mockBoardService{
			activityFunc: func(_ context.Context, _ domain.Principal, boardID uuid.UUID, limit int) ([]*domain.ActivityRecord, error) {
				assert.Equal(t, bid, boardID)
				assert.Equal(t, 10, limit)
				return []*domain.ActivityRecord{{ID: uuid.New(), BoardID: bid, Action: "taskCreated"}}, nil
			},
		}
		v1.RegisterBoardRoutes(api, svc)

		resp := api.GetCtx(memberCtx(uuid.New()), "/boards/"+bid.String()+"/activity?limit=10")

		require.Equal(t, http.StatusOK, resp.Code)
		env := decode[[]domain.ActivityRecord](t, resp.Body)
		require.Len(t, env.Data, 1)
		assert.Equal(t, "taskCreated", env.Data[0].Action)
	})

	t.Run("limit_above_cap_rejected", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterBoardRoutes(api, &mockBoardService{})

		resp := api.GetCtx(memberCtx(uuid.New()), "/boards/"+uuid.NewString()+"/activity?limit=1000")

		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})
}
