package board

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gosuda/kanban/internal/domain"
	"github.com/gosuda/kanban/internal/ordering"
)

// NewTask holds the fields of a task to create.
type NewTask struct {
	BoardID       uuid.UUID
	ListID        uuid.UUID
	Title         string
	Description   string
	AssignedUsers []uuid.UUID
}

func taskScope(ctx context.Context, tx domain.Store, listID uuid.UUID) ([]ordering.Entry[uuid.UUID], []uuid.UUID, error) {
	tasks, err := tx.Tasks().ListByList(ctx, listID)
	if err != nil {
		return nil, nil, fmt.Errorf("load tasks: %w", err)
	}
	entries := make([]ordering.Entry[uuid.UUID], len(tasks))
	for i, t := range tasks {
		entries[i] = ordering.Entry[uuid.UUID]{ID: t.ID, Position: t.Position}
	}
	return entries, ordering.Normalize(entries), nil
}

// loadTask reads a task and locks its board, re-reading the task under the lock.
func loadTask(ctx context.Context, tx domain.Store, taskID uuid.UUID) (*domain.Task, error) {
	t, err := tx.Tasks().GetByID(ctx, taskID)
	if err != nil {
		return nil, notFound(err, "task not found")
	}
	if err := tx.Boards().Lock(ctx, t.BoardID); err != nil {
		return nil, notFound(err, "board not found")
	}
	t, err = tx.Tasks().GetByID(ctx, taskID)
	if err != nil {
		return nil, notFound(err, "task not found")
	}
	return t, nil
}

// boardList loads listID and checks that it belongs to boardID.
func boardList(ctx context.Context, tx domain.Store, boardID, listID uuid.UUID) (*domain.List, error) {
	l, err := tx.Lists().GetByID(ctx, listID)
	if err != nil {
		return nil, notFound(err, "list not found")
	}
	if l.BoardID != boardID {
		return nil, domain.Errorf(domain.ErrValidation, "list does not belong to this board")
	}
	return l, nil
}

func writeTaskPositions(ctx context.Context, tx domain.Store, listID uuid.UUID, positions map[uuid.UUID]int) error {
	if len(positions) == 0 {
		return nil
	}
	if err := tx.Tasks().SetPositions(ctx, listID, positions); err != nil {
		return fmt.Errorf("set task positions: %w", err)
	}
	return nil
}

// placeTask moves t to target in destListID and rewrites the sibling
// positions of every scope it touches. t itself is updated in memory only;
// the caller persists it. It reports whether anything changed.
func placeTask(ctx context.Context, tx domain.Store, t *domain.Task, destListID uuid.UUID, target int) (bool, error) {
	srcEntries, src, err := taskScope(ctx, tx, t.ListID)
	if err != nil {
		return false, err
	}
	from := slices.Index(src, t.ID)

	if destListID == t.ListID {
		after, pos, err := ordering.Move(src, from, target)
		if err != nil {
			return false, err
		}
		diff := ordering.Diff(srcEntries, after)
		delete(diff, t.ID)
		if err := writeTaskPositions(ctx, tx, t.ListID, diff); err != nil {
			return false, err
		}
		changed := len(diff) > 0 || t.Position != pos
		t.Position = pos
		return changed, nil
	}

	dstEntries, dst, err := taskScope(ctx, tx, destListID)
	if err != nil {
		return false, err
	}
	newSrc, newDst, pos, err := ordering.MoveAcross(src, dst, from, target)
	if err != nil {
		return false, err
	}
	if err := writeTaskPositions(ctx, tx, t.ListID, ordering.Diff(srcEntries, newSrc)); err != nil {
		return false, err
	}
	dstDiff := ordering.Diff(dstEntries, newDst)
	delete(dstDiff, t.ID)
	if err := writeTaskPositions(ctx, tx, destListID, dstDiff); err != nil {
		return false, err
	}
	t.ListID = destListID
	t.Position = pos
	return true, nil
}

func taskView(ctx context.Context, tx domain.Store, t *domain.Task) (*domain.TaskView, error) {
	assignees, err := resolveAssignees(ctx, tx.Users(), t.AssignedUsers)
	if err != nil {
		return nil, err
	}
	return &domain.TaskView{Task: *t.Clone(), Assignees: assignees}, nil
}

// CreateTask appends a task to a list.
func (s *Service) CreateTask(ctx context.Context, p domain.Principal, in NewTask) (_ *domain.TaskView, err error) {
	ctx, span := s.startSpan(ctx, "CreateTask", p,
		attribute.String("board.id", in.BoardID.String()),
		attribute.String("list.id", in.ListID.String()))
	defer func() { endSpan(span, err) }()

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, domain.Errorf(domain.ErrValidation, "please add a task title")
	}

	now := s.now()
	t := &domain.Task{
		ID:          uuid.New(),
		BoardID:     in.BoardID,
		ListID:      in.ListID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var view *domain.TaskView
	err = s.store.WithinTx(ctx, func(tx domain.Store) error {
		b, err := requireOwner(ctx, tx, p, in.BoardID, "add tasks to this board")
		if err != nil {
			return err
		}
		if _, err := boardList(ctx, tx, in.BoardID, in.ListID); err != nil {
			return err
		}
		if t.AssignedUsers, err = checkAssignees(b, in.AssignedUsers); err != nil {
			return err
		}

		entries, order, err := taskScope(ctx, tx, in.ListID)
		if err != nil {
			return err
		}
		after, pos := ordering.InsertAt(order, t.ID, len(order))
		t.Position = pos
		repair := ordering.Diff(entries, after)
		delete(repair, t.ID)
		if err := writeTaskPositions(ctx, tx, in.ListID, repair); err != nil {
			return err
		}
		if err := tx.Tasks().Create(ctx, t); err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		view, err = taskView(ctx, tx, t)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("board.Service.CreateTask: %w", err)
	}

	s.publish(ctx, t.BoardID, domain.EventTaskCreated, view)
	s.record(ctx, p, t.BoardID, domain.ActionTaskCreated, &t.ID, fmt.Sprintf("created task %q", t.Title))
	return view, nil
}

// UpdateTask applies patch to a task. The fields a principal may patch come
// from its board role; a patch carrying any field outside that set is
// rejected whole. Changing the list moves the task to the end of the new list.
func (s *Service) UpdateTask(ctx context.Context, p domain.Principal, taskID uuid.UUID, patch domain.TaskPatch) (_ *domain.TaskView, err error) {
	ctx, span := s.startSpan(ctx, "UpdateTask", p, attribute.String("task.id", taskID.String()))
	defer func() { endSpan(span, err) }()

	if err := patch.Validate(); err != nil {
		return nil, invalid(err)
	}

	var (
		view  *domain.TaskView
		moved *domain.TaskMove
	)
	err = s.store.WithinTx(ctx, func(tx domain.Store) error {
		t, err := loadTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		b, err := lockBoard(ctx, tx, t.BoardID)
		if err != nil {
			return err
		}

		role := b.RoleOf(p.ID)
		if role == domain.BoardRoleNone {
			return domain.Errorf(domain.ErrForbidden, "not authorized to update this task")
		}
		if denied := domain.ForbiddenTaskFields(role, patch.Fields()); len(denied) > 0 {
			if role == domain.BoardRoleMember {
				return domain.Errorf(domain.ErrForbidden, "users can only update task status")
			}
			return domain.Errorf(domain.ErrForbidden, "not authorized to update %v", denied)
		}

		now := s.now()
		if patch.Title != nil {
			t.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Description != nil {
			t.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.AssignedUsers != nil {
			if t.AssignedUsers, err = checkAssignees(b, *patch.AssignedUsers); err != nil {
				return err
			}
		}
		if patch.IsCompleted != nil {
			t.SetCompleted(*patch.IsCompleted, p.ID, now)
		}
		if patch.ListID != nil && *patch.ListID != t.ListID {
			if _, err := boardList(ctx, tx, t.BoardID, *patch.ListID); err != nil {
				return err
			}
			if _, err := placeTask(ctx, tx, t, *patch.ListID, math.MaxInt); err != nil {
				return err
			}
			moved = &domain.TaskMove{TaskID: t.ID, NewListID: t.ListID, NewPosition: t.Position}
		}

		t.UpdatedAt = now
		if err := tx.Tasks().Update(ctx, t); err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		view, err = taskView(ctx, tx, t)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("board.Service.UpdateTask: %w", err)
	}

	if moved != nil {
		s.publish(ctx, view.BoardID, domain.EventTaskMoved, *moved)
	}
	s.publish(ctx, view.BoardID, domain.EventTaskUpdated, view)

	if fields := patch.Fields(); len(fields) == 1 && fields[0] == domain.TaskFieldIsCompleted {
		state := "incomplete"
		if view.IsCompleted {
			state = "completed"
		}
		s.record(ctx, p, view.BoardID, domain.ActionTaskStatus, &view.ID,
			fmt.Sprintf("marked task %q as %s", view.Title, state))
	} else {
		s.record(ctx, p, view.BoardID, domain.ActionTaskUpdated, &view.ID,
			fmt.Sprintf("updated task %q", view.Title))
	}
	return view, nil
}

// DeleteTask removes a task and closes the gap in its list.
func (s *Service) DeleteTask(ctx context.Context, p domain.Principal, taskID uuid.UUID) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteTask", p, attribute.String("task.id", taskID.String()))
	defer func() { endSpan(span, err) }()

	var t *domain.Task
	err = s.store.WithinTx(ctx, func(tx domain.Store) error {
		cur, err := loadTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		t = cur
		if _, err := requireOwner(ctx, tx, p, t.BoardID, "delete this task"); err != nil {
			return err
		}

		entries, order, err := taskScope(ctx, tx, t.ListID)
		if err != nil {
			return err
		}
		after, _, err := ordering.RemoveAt(order, slices.Index(order, t.ID))
		if err != nil {
			return err
		}
		if err := tx.Tasks().Delete(ctx, t.ID); err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		return writeTaskPositions(ctx, tx, t.ListID, ordering.Diff(entries, after))
	})
	if err != nil {
		return fmt.Errorf("board.Service.DeleteTask: %w", err)
	}

	s.publish(ctx, t.BoardID, domain.EventTaskDeleted, t.ID)
	s.record(ctx, p, t.BoardID, domain.ActionTaskDeleted, &t.ID, fmt.Sprintf("deleted task %q", t.Title))
	return nil
}

// MoveTask moves a task to newPosition in newListID. A nil newListID keeps
// the task in its current list. newPosition is clamped to the destination.
// Moving a task onto its current place changes nothing but is still broadcast.
func (s *Service) MoveTask(ctx context.Context, p domain.Principal, taskID, newListID uuid.UUID, newPosition int) (_ *domain.TaskMove, err error) {
	ctx, span := s.startSpan(ctx, "MoveTask", p,
		attribute.String("task.id", taskID.String()),
		attribute.String("list.id", newListID.String()),
		attribute.Int("position", newPosition))
	defer func() { endSpan(span, err) }()

	var (
		t        *domain.Task
		fromList uuid.UUID
		move     domain.TaskMove
	)
	err = s.store.WithinTx(ctx, func(tx domain.Store) error {
		cur, err := loadTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		t = cur
		fromList = t.ListID
		if _, err := requireOwner(ctx, tx, p, t.BoardID, "move this task"); err != nil {
			return err
		}

		dest := newListID
		if dest == uuid.Nil {
			dest = t.ListID
		} else if _, err := boardList(ctx, tx, t.BoardID, dest); err != nil {
			return err
		}

		changed, err := placeTask(ctx, tx, t, dest, newPosition)
		if err != nil {
			return err
		}
		move = domain.TaskMove{TaskID: t.ID, NewListID: t.ListID, NewPosition: t.Position}
		if !changed {
			return nil
		}
		t.UpdatedAt = s.now()
		if err := tx.Tasks().Update(ctx, t); err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("board.Service.MoveTask: %w", err)
	}

	s.publish(ctx, t.BoardID, domain.EventTaskMoved, move)
	detail := fmt.Sprintf("moved task %q to position %d", t.Title, move.NewPosition)
	if fromList != move.NewListID {
		detail = fmt.Sprintf("moved task %q to another list at position %d", t.Title, move.NewPosition)
	}
	s.record(ctx, p, t.BoardID, domain.ActionTaskMoved, &t.ID, detail)
	return &move, nil
}
