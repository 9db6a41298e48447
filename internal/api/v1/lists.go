package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/kanban/internal/domain"
)

type CreateListInput struct {
	Body struct {
		Name    string    `json:"name" doc:"List name"`
		BoardID uuid.UUID `json:"boardId" doc:"Board ID"`
	}
}

type UpdateListInput struct {
	ID   uuid.UUID `path:"id" doc:"List ID"`
	Body struct {
		Name string `json:"name" doc:"List name"`
	}
}

type ListOutput struct {
	Body Envelope[*domain.List]
}

type ListPathInput struct {
	ID uuid.UUID `path:"id" doc:"List ID"`
}

type ReorderListsInput struct {
	Body struct {
		BoardID uuid.UUID   `json:"boardId" doc:"Board ID"`
		ListIDs []uuid.UUID `json:"listIds" doc:"Every list of the board in the desired order"`
	}
}

type ReorderListsOutput struct {
	Body Envelope[[]uuid.UUID]
}

func RegisterListRoutes(api huma.API, svc BoardService) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-list",
		Method:        http.MethodPost,
		Path:          "/lists",
		Summary:       "Append a list to a board",
		Tags:          []string{"Lists"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateListInput) (*ListOutput, error) {
		p, err := principal(ctx)
		if err != nil {
			return nil, err
		}

		l, err := svc.CreateList(ctx, p, input.Body.BoardID, input.Body.Name)
		if err != nil {
			return nil, mapError(err, "failed to create list")
		}

		return &ListOutput{Body: ok(l)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reorder-lists",
		Method:      http.MethodPut,
		Path:        "/lists/reorder",
		Summary:     "Replace the list order of a board",
		Tags:        []string{"Lists"},
	}, func(ctx context.Context, input *ReorderListsInput) (*ReorderListsOutput, error) {
		p, err := principal(ctx)
		if err != nil {
			return nil, err
		}

		order, err := svc.ReorderLists(ctx, p, input.Body.BoardID, input.Body.ListIDs)
		if err != nil {
			return nil, mapError(err, "failed to reorder lists")
		}

		return &ReorderListsOutput{Body: ok(order)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-list",
		Method:      http.MethodPut,
		Path:        "/lists/{id}",
		Summary:     "Rename a list",
		Tags:        []string{"Lists"},
	}, func(ctx context.Context, input *UpdateListInput) (*ListOutput, error) {
		p, err := principal(ctx)
		if err != nil {
			return nil, err
		}

		l, err := svc.UpdateList(ctx, p, input.ID, input.Body.Name)
		if err != nil {
			return nil, mapError(err, "failed to update list")
		}

		return &ListOutput{Body: ok(l)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-list",
		Method:      http.MethodDelete,
		Path:        "/lists/{id}",
		Summary:     "Delete a list and its tasks",
		Tags:        []string{"Lists"},
	}, func(ctx context.Context, input *ListPathInput) (*EmptyOutput, error) {
		p, err := principal(ctx)
		if err != nil {
			return nil, err
		}

		if err := svc.DeleteList(ctx, p, input.ID); err != nil {
			return nil, mapError(err, "failed to delete list")
		}

		return &EmptyOutput{Body: ok(Empty{})}, nil
	})
}
