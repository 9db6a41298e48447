package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/kanban/internal/domain"
	"github.com/gosuda/kanban/internal/server/middleware"
)

type BoardPathInput struct {
	ID uuid.UUID `path:"id" doc:"Board ID"`
}

type CreateBoardInput struct {
	Body struct {
		Name string `json:"name" doc:"Board name, at most 50 characters"`
	}
}

type BoardOutput struct {
	Body Envelope[*domain.Board]
}

type ListBoardsOutput struct {
	Body Envelope[[]*domain.Board]
}

type SnapshotOutput struct {
	Body Envelope[*domain.BoardSnapshot]
}

type AddMemberInput struct {
	ID   uuid.UUID `path:"id" doc:"Board ID"`
	Body struct {
		Email string `json:"email" doc:"Email of the user to add"`
	}
}

type MemberOutput struct {
	Body Envelope[*domain.UserSummary]
}

type ActivityInput struct {
	ID    uuid.UUID `path:"id" doc:"Board ID"`
	Limit int       `query:"limit" minimum:"0" maximum:"200" doc:"Maximum records to return (default 50)"`
}

type ActivityOutput struct {
	Body Envelope[[]*domain.ActivityRecord]
}

type EmptyOutput struct {
	Body Envelope[Empty]
}

func RegisterBoardRoutes(api huma.API, svc BoardService) {
	huma.Register(api, huma.Operation{
		OperationID: "list-boards",
		Method:      http.MethodGet,
		Path:        "/boards",
		Summary:     "List the boards the caller owns or belongs to",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, _ *struct{}) (*ListBoardsOutput, error) {
		p, err := principal(ctx)
		if err != nil {
			return nil, err
		}

		boards, err := svc.ListBoards(ctx, p)
		if err != nil {
			return nil, mapError(err, "failed to list boards")
		}
		if boards == nil {
			boards = []*domain.Board{}
		}

		return &ListBoardsOutput{Body: ok(boards)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-board",
		Method:        http.MethodPost,
		Path:          "/boards",
		Summary:       "Create a board",
		Tags:          []string{"Boards"},
		DefaultStatus: http.StatusCreated,
		Middlewares:   huma.Middlewares{middleware.RequireAdmin(api, "only admins can create boards")},
	}, func(ctx context.Context, input *CreateBoardInput) (*BoardOutput, error) {
		p, err := principal(ctx)
		if err != nil {
			return nil, err
		}

		b, err := svc.CreateBoard(ctx, p, input.Body.Name)
		if err != nil {
			return nil, mapError(err, "failed to create board")
		}

		return &BoardOutput{Body: ok(b)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-board",
		Method:      http.MethodGet,
		Path:        "/boards/{id}",
		Summary:     "Get a board with its members, lists and tasks",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *BoardPathInput) (*SnapshotOutput, error) {
		p, err := principal(ctx)
		if err != nil {
			return nil, err
		}

		snap, err := svc.GetBoard(ctx, p, input.ID)
		if err != nil {
			return nil, mapError(err, "failed to load board")
		}

		return &SnapshotOutput{Body: ok(snap)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-board",
		Method:      http.MethodDelete,
		Path:        "/boards/{id}",
		Summary:     "Delete a board and everything on it",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *BoardPathInput) (*EmptyOutput, error) {
		p, err := principal(ctx)
		if err != nil {
			return nil, err
		}

		if err := svc.DeleteBoard(ctx, p, input.ID); err != nil {
			return nil, mapError(err, "failed to delete board")
		}

		return &EmptyOutput{Body: ok(Empty{})}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-board-member",
		Method:      http.MethodPut,
		Path:        "/boards/{id}/members",
		Summary:     "Add a registered user to a board",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *AddMemberInput) (*MemberOutput, error) {
		p, err := principal(ctx)
		if err != nil {
			return nil, err
		}

		member, err := svc.AddMember(ctx, p, input.ID, input.Body.Email)
		if err != nil {
			return nil, mapError(err, "failed to add member")
		}

		return &MemberOutput{Body: ok(member)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "board-activity",
		Method:      http.MethodGet,
		Path:        "/boards/{id}/activity",
		Summary:     "Recent activity on a board, newest first",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *ActivityInput) (*ActivityOutput, error) {
		p, err := principal(ctx)
		if err != nil {
			return nil, err
		}

		records, err := svc.Activity(ctx, p, input.ID, input.Limit)
		if err != nil {
			return nil, mapError(err, "failed to load activity")
		}
		if records == nil {
			records = []*domain.ActivityRecord{}
		}

		return &ActivityOutput{Body: ok(records)}, nil
	})
}
