package v1

import (
	"context"

	"github.com/google/uuid"

	"github.com/gosuda/kanban/internal/auth"
	"github.com/gosuda/kanban/internal/board"
	"github.com/gosuda/kanban/internal/domain"
)

// BoardService abstracts the board aggregate operations for handler testing.
// *board.Service satisfies this interface.
type BoardService interface {
	CreateBoard(ctx context.Context, p domain.Principal, name string) (*domain.Board, error)
	ListBoards(ctx context.Context, p domain.Principal) ([]*domain.Board, error)
	GetBoard(ctx context.Context, p domain.Principal, boardID uuid.UUID) (*domain.BoardSnapshot, error)
	AddMember(ctx context.Context, p domain.Principal, boardID uuid.UUID, email string) (*domain.UserSummary, error)
	DeleteBoard(ctx context.Context, p domain.Principal, boardID uuid.UUID) error
	Activity(ctx context.Context, p domain.Principal, boardID uuid.UUID, limit int) ([]*domain.ActivityRecord, error)

	CreateList(ctx context.Context, p domain.Principal, boardID uuid.UUID, name string) (*domain.List, error)
	UpdateList(ctx context.Context, p domain.Principal, listID uuid.UUID, name string) (*domain.List, error)
	DeleteList(ctx context.Context, p domain.Principal, listID uuid.UUID) error
	ReorderLists(ctx context.Context, p domain.Principal, boardID uuid.UUID, listIDs []uuid.UUID) ([]uuid.UUID, error)

	CreateTask(ctx context.Context, p domain.Principal, in board.NewTask) (*domain.TaskView, error)
	UpdateTask(ctx context.Context, p domain.Principal, taskID uuid.UUID, patch domain.TaskPatch) (*domain.TaskView, error)
	DeleteTask(ctx context.Context, p domain.Principal, taskID uuid.UUID) error
	MoveTask(ctx context.Context, p domain.Principal, taskID, newListID uuid.UUID, newPosition int) (*domain.TaskMove, error)
}

// AuthService abstracts authentication operations for handler testing.
// *auth.Service satisfies this interface.
type AuthService interface {
	Register(ctx context.Context, email, password, name string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*domain.User, *auth.Tokens, error)
	RefreshToken(ctx context.Context, refreshToken string) (string, error)
}
