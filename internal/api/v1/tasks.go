package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/kanban/internal/board"
	"github.com/gosuda/kanban/internal/domain"
)

type CreateTaskInput struct {
	Body struct {
		Title         string      `json:"title" doc:"Task title"`
		Description   string      `json:"description,omitempty" doc:"Task description"`
		ListID        uuid.UUID   `json:"listId" doc:"List ID"`
		BoardID       uuid.UUID   `json:"boardId" doc:"Board ID"`
		AssignedUsers []uuid.UUID `json:"assignedUsers,omitempty" doc:"Board members to assign"`
	}
}

type TaskOutput struct {
	Body Envelope[*domain.TaskView]
}

// UpdateTaskInput carries a partial update. Absent fields are left unchanged.
type UpdateTaskInput struct {
	ID   uuid.UUID `path:"id" doc:"Task ID"`
	Body struct {
		Title         *string      `json:"title,omitempty" doc:"Task title"`
		Description   *string      `json:"description,omitempty" doc:"Task description"`
		AssignedUsers *[]uuid.UUID `json:"assignedUsers,omitempty" doc:"Replacement assignee set"`
		List          *uuid.UUID   `json:"list,omitempty" doc:"Destination list; the task is appended to it"`
		IsCompleted   *bool        `json:"isCompleted,omitempty" doc:"Completion status"`
	}
}

type TaskPathInput struct {
	ID uuid.UUID `path:"id" doc:"Task ID"`
}

type MoveTaskInput struct {
	ID   uuid.UUID `path:"id" doc:"Task ID"`
	Body struct {
		NewListID   uuid.UUID `json:"newListId" doc:"Destination list ID"`
		NewPosition int       `json:"newPosition" minimum:"0" doc:"Zero-based destination index"`
	}
}

type MoveTaskOutput struct {
	Body Envelope[*domain.TaskMove]
}

func RegisterTaskRoutes(api huma.API, svc BoardService) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Append a task to a list",
		Tags:          []string{"Tasks"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateTaskInput) (*TaskOutput, error) {
		p, err := principal(ctx)
		if err != nil {
			return nil, err
		}

		view, err := svc.CreateTask(ctx, p, board.NewTask{
			BoardID:       input.Body.BoardID,
			ListID:        input.Body.ListID,
			Title:         input.Body.Title,
			Description:   input.Body.Description,
			AssignedUsers: input.Body.AssignedUsers,
		})
		if err != nil {
			return nil, mapError(err, "failed to create task")
		}

		return &TaskOutput{Body: ok(view)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPut,
		Path:        "/tasks/{id}",
		Summary:     "Update a task; members may only change completion",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *UpdateTaskInput) (*TaskOutput, error) {
		p, err := principal(ctx)
		if err != nil {
			return nil, err
		}

		view, err := svc.UpdateTask(ctx, p, input.ID, domain.TaskPatch{
			Title:         input.Body.Title,
			Description:   input.Body.Description,
			AssignedUsers: input.Body.AssignedUsers,
			ListID:        input.Body.List,
			IsCompleted:   input.Body.IsCompleted,
		})
		if err != nil {
			return nil, mapError(err, "failed to update task")
		}

		return &TaskOutput{Body: ok(view)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{id}",
		Summary:     "Delete a task",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *TaskPathInput) (*EmptyOutput, error) {
		p, err := principal(ctx)
		if err != nil {
			return nil, err
		}

		if err := svc.DeleteTask(ctx, p, input.ID); err != nil {
			return nil, mapError(err, "failed to delete task")
		}

		return &EmptyOutput{Body: ok(Empty{})}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "move-task",
		Method:      http.MethodPut,
		Path:        "/tasks/{id}/move",
		Summary:     "Move a task to a list and index",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *MoveTaskInput) (*MoveTaskOutput, error) {
		p, err := principal(ctx)
		if err != nil {
			return nil, err
		}

		move, err := svc.MoveTask(ctx, p, input.ID, input.Body.NewListID, input.Body.NewPosition)
		if err != nil {
			return nil, mapError(err, "failed to move task")
		}

		return &MoveTaskOutput{Body: ok(move)}, nil
	})
}
