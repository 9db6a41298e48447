package v1_test

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/kanban/internal/auth"
	"github.com/gosuda/kanban/internal/board"
	"github.com/gosuda/kanban/internal/domain"
	"github.com/gosuda/kanban/internal/server/middleware"
)

// ---------------------------------------------------------------------------
// Context helpers
// ---------------------------------------------------------------------------

func asUser(id uuid.UUID, role domain.Role) context.Context {
	return middleware.WithPrincipal(context.Background(), domain.Principal{ID: id, Role: role})
}

func memberCtx(id uuid.UUID) context.Context { return asUser(id, domain.RoleMember) }
func adminCtx(id uuid.UUID) context.Context  { return asUser(id, domain.RoleAdmin) }

// envelope decodes {success, data} or {success, error}.
type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
}

func decode[T any](t *testing.T, r io.Reader) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.NewDecoder(r).Decode(&env))
	return env
}

// ---------------------------------------------------------------------------
// Mock BoardService
// ---------------------------------------------------------------------------

type mockBoardService struct {
	createBoardFunc  func(ctx context.Context, p domain.Principal, name string) (*domain.Board, error)
	listBoardsFunc   func(ctx context.Context, p domain.Principal) ([]*domain.Board, error)
	getBoardFunc     func(ctx context.Context, p domain.Principal, boardID uuid.UUID) (*domain.BoardSnapshot, error)
	addMemberFunc    func(ctx context.Context, p domain.Principal, boardID uuid.UUID, email string) (*domain.UserSummary, error)
	deleteBoardFunc  func(ctx context.Context, p domain.Principal, boardID uuid.UUID) error
	activityFunc     func(ctx context.Context, p domain.Principal, boardID uuid.UUID, limit int) ([]*domain.ActivityRecord, error)
	createListFunc   func(ctx context.Context, p domain.Principal, boardID uuid.UUID, name string) (*domain.List, error)
	updateListFunc   func(ctx context.Context, p domain.Principal, listID uuid.UUID, name string) (*domain.List, error)
	deleteListFunc   func(ctx context.Context, p domain.Principal, listID uuid.UUID) error
	reorderListsFunc func(ctx context.Context, p domain.Principal, boardID uuid.UUID, listIDs []uuid.UUID) ([]uuid.UUID, error)
	createTaskFunc   func(ctx context.Context, p domain.Principal, in board.NewTask) (*domain.TaskView, error)
	updateTaskFunc   func(ctx context.Context, p domain.Principal, taskID uuid.UUID, patch domain.TaskPatch) (*domain.TaskView, error)
	deleteTaskFunc   func(ctx context.Context, p domain.Principal, taskID uuid.UUID) error
	moveTaskFunc     func(ctx context.Context, p domain.Principal, taskID, newListID uuid.UUID, newPosition int) (*domain.TaskMove, error)
}

func (m *mockBoardService) CreateBoard(ctx context.Context, p domain.Principal, name string) (*domain.Board, error) {
	return m.createBoardFunc(ctx, p, name)
}

func (m *mockBoardService) ListBoards(ctx context.Context, p domain.Principal) ([]*domain.Board, error) {
	return m.listBoardsFunc(ctx, p)
}

func (m *mockBoardService) GetBoard(ctx context.Context, p domain.Principal, boardID uuid.UUID) (*domain.BoardSnapshot, error) {
	return m.getBoardFunc(ctx, p, boardID)
}

func (m *mockBoardService) AddMember(ctx context.Context, p domain.Principal, boardID uuid.UUID, email string) (*domain.UserSummary, error) {
	return m.addMemberFunc(ctx, p, boardID, email)
}

func (m *mockBoardService) DeleteBoard(ctx context.Context, p domain.Principal, boardID uuid.UUID) error {
	return m.deleteBoardFunc(ctx, p, boardID)
}

func (m *mockBoardService) Activity(ctx context.Context, p domain.Principal, boardID uuid.UUID, limit int) ([]*domain.ActivityRecord, error) {
	return m.activityFunc(ctx, p, boardID, limit)
}

func (m *mockBoardService) CreateList(ctx context.Context, p domain.Principal, boardID uuid.UUID, name string) (*domain.List, error) {
	return m.createListFunc(ctx, p, boardID, name)
}

func (m *mockBoardService) UpdateList(ctx context.Context, p domain.Principal, listID uuid.UUID, name string) (*domain.List, error) {
	return m.updateListFunc(ctx, p, listID, name)
}

func (m *mockBoardService) DeleteList(ctx context.Context, p domain.Principal, listID uuid.UUID) error {
	return m.deleteListFunc(ctx, p, listID)
}

func (m *mockBoardService) ReorderLists(ctx context.Context, p domain.Principal, boardID uuid.UUID, listIDs []uuid.UUID) ([]uuid.UUID, error) {
	return m.reorderListsFunc(ctx, p, boardID, listIDs)
}

func (m *mockBoardService) CreateTask(ctx context.Context, p domain.Principal, in board.NewTask) (*domain.TaskView, error) {
	return m.createTaskFunc(ctx, p, in)
}

func (m *mockBoardService) UpdateTask(ctx context.Context, p domain.Principal, taskID uuid.UUID, patch domain.TaskPatch) (*domain.TaskView, error) {
	return m.updateTaskFunc(ctx, p, taskID, patch)
}

func (m *mockBoardService) DeleteTask(ctx context.Context, p domain.Principal, taskID uuid.UUID) error {
	return m.deleteTaskFunc(ctx, p, taskID)
}

func (m *mockBoardService) MoveTask(ctx context.Context, p domain.Principal, taskID, newListID uuid.UUID, newPosition int) (*domain.TaskMove, error) {
	return m.moveTaskFunc(ctx, p, taskID, newListID, newPosition)
}

// ---------------------------------------------------------------------------
// Mock AuthService
// ---------------------------------------------------------------------------

type mockAuthService struct {
	registerFunc     func(ctx context.Context, email, password, name string) (*domain.User, error)
	loginFunc        func(ctx context.Context, email, password string) (*domain.User, *auth.Tokens, error)
	refreshTokenFunc func(ctx context.Context, refreshToken string) (string, error)
}

func (m *mockAuthService) Register(ctx context.Context, email, password, name string) (*domain.User, error) {
	return m.registerFunc(ctx, email, password, name)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*domain.User, *auth.Tokens, error) {
	return m.loginFunc(ctx, email, password)
}

func (m *mockAuthService) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	return m.refreshTokenFunc(ctx, refreshToken)
}
