package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Activity action tags.
const (
	ActionBoardCreated   = "created board"
	ActionMemberAdded    = "added member"
	ActionListCreated    = "created list"
	ActionListUpdated    = "updated list"
	ActionListDeleted    = "deleted list"
	ActionListsReordered = "reordered lists"
	ActionTaskCreated    = "created task"
	ActionTaskUpdated    = "updated task"
	ActionTaskStatus     = "updated task status"
	ActionTaskDeleted    = "deleted task"
	ActionTaskMoved      = "moved task"
)

// ActivityRecord is an append-only audit entry for a board.
type ActivityRecord struct {
	ID          uuid.UUID  `json:"id"`
	PrincipalID uuid.UUID  `json:"principalId"`
	BoardID     uuid.UUID  `json:"boardId"`
	Action      string     `json:"action"`
	TaskID      *uuid.UUID `json:"taskId,omitempty"`
	Detail      string     `json:"detail"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type ActivityRepository interface {
	Record(ctx context.Context, rec *ActivityRecord) error
	ListByBoard(ctx context.Context, boardID uuid.UUID, limit int) ([]*ActivityRecord, error)
	DeleteByBoard(ctx context.Context, boardID uuid.UUID) error
}
