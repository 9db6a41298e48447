package domain

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Task struct {
	ID            uuid.UUID   `json:"id"`
	BoardID       uuid.UUID   `json:"boardId"`
	ListID        uuid.UUID   `json:"listId"`
	Title         string      `json:"title"`
	Description   string      `json:"description,omitempty"`
	AssignedUsers []uuid.UUID `json:"assignedUsers"`
	Position      int         `json:"position"`
	IsCompleted   bool        `json:"isCompleted"`
	CompletedBy   *uuid.UUID  `json:"completedBy,omitempty"` // set iff IsCompleted
	CompletedAt   *time.Time  `json:"completedAt,omitempty"` // set iff IsCompleted
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// SetCompleted applies a completion toggle. Marking an open task complete
// stamps by/at; marking it open clears both. Re-marking a completed task keeps
// the original stamp.
func (t *Task) SetCompleted(completed bool, by uuid.UUID, at time.Time) {
	if !completed {
		t.IsCompleted = false
		t.CompletedBy = nil
		t.CompletedAt = nil
		return
	}
	if t.IsCompleted && t.CompletedBy != nil && t.CompletedAt != nil {
		return
	}
	t.IsCompleted = true
	t.CompletedBy = &by
	t.CompletedAt = &at
}

// CompletionConsistent reports whether the completion stamp matches IsCompleted.
func (t *Task) CompletionConsistent() bool {
	if t.IsCompleted {
		return t.CompletedBy != nil && t.CompletedAt != nil
	}
	return t.CompletedBy == nil && t.CompletedAt == nil
}

// Clone returns a deep copy of t.
func (t *Task) Clone() *Task {
	c := *t
	c.AssignedUsers = slices.Clone(t.AssignedUsers)
	if t.CompletedBy != nil {
		by := *t.CompletedBy
		c.CompletedBy = &by
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}

// TaskField names a mutable task attribute in a patch.
type TaskField string

const (
	TaskFieldTitle         TaskField = "title"
	TaskFieldDescription   TaskField = "description"
	TaskFieldAssignedUsers TaskField = "assignedUsers"
	TaskFieldList          TaskField = "list"
	TaskFieldIsCompleted   TaskField = "isCompleted"
)

// taskCapabilities lists, per board role, the fields that role may patch.
// A field missing from a role's entry is denied.
var taskCapabilities = map[BoardRole][]TaskField{ //nolint:gochecknoglobals // capability table
	BoardRoleOwner: {
		TaskFieldTitle,
		TaskFieldDescription,
		TaskFieldAssignedUsers,
		TaskFieldList,
		TaskFieldIsCompleted,
	},
	BoardRoleMember: {
		TaskFieldIsCompleted,
	},
}

// ForbiddenTaskFields returns the subset of fields that role may not patch.
func ForbiddenTaskFields(role BoardRole, fields []TaskField) []TaskField {
	allowed := taskCapabilities[role]
	var denied []TaskField
	for _, f := range fields {
		if !slices.Contains(allowed, f) {
			denied = append(denied, f)
		}
	}
	return denied
}

// TaskPatch carries a partial task update. Nil fields are absent.
type TaskPatch struct {
	Title         *string
	Description   *string
	AssignedUsers *[]uuid.UUID
	ListID        *uuid.UUID
	IsCompleted   *bool
}

// Fields returns the fields present in the patch in a stable order.
func (p TaskPatch) Fields() []TaskField {
	var fields []TaskField
	if p.Title != nil {
		fields = append(fields, TaskFieldTitle)
	}
	if p.Description != nil {
		fields = append(fields, TaskFieldDescription)
	}
	if p.AssignedUsers != nil {
		fields = append(fields, TaskFieldAssignedUsers)
	}
	if p.ListID != nil {
		fields = append(fields, TaskFieldList)
	}
	if p.IsCompleted != nil {
		fields = append(fields, TaskFieldIsCompleted)
	}
	return fields
}

// Validate checks the values carried by the patch, independent of role.
func (p TaskPatch) Validate() error {
	if len(p.Fields()) == 0 {
		return errors.New("task patch: no fields to update")
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return errors.New("task patch: title can not be empty")
	}
	if p.ListID != nil && *p.ListID == uuid.Nil {
		return errors.New("task patch: list ID can not be empty")
	}
	return nil
}

type TaskRepository interface {
	Create(ctx context.Context, t *Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*Task, error)
	// ListByList returns the list's tasks ordered by position, then id.
	ListByList(ctx context.Context, listID uuid.UUID) ([]*Task, error)
	// ListByBoard returns every task of the board ordered by position, then id.
	ListByBoard(ctx context.Context, boardID uuid.UUID) ([]*Task, error)
	Update(ctx context.Context, t *Task) error
	SetPositions(ctx context.Context, listID uuid.UUID, positions map[uuid.UUID]int) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByList(ctx context.Context, listID uuid.UUID) (int64, error)
}
