package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gosuda/kanban/internal/domain"
)

type TaskRepo struct {
	db querier
}

const taskColumns = `id, board_id, list_id, title, description, assigned_users, position,
	is_completed, completed_by, completed_at, created_at, updated_at`

func (r *TaskRepo) Create(ctx context.Context, t *domain.Task) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO tasks (`+taskColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.BoardID, t.ListID, t.Title, t.Description, assignees(t.AssignedUsers), t.Position,
		t.IsCompleted, t.CompletedBy, t.CompletedAt, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("taskRepo.Create: %w", translate(err))
	}

	return nil
}

func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	t, err := scanTask(r.db.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("taskRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("taskRepo.GetByID: %w", err)
	}

	return t, nil
}

func (r *TaskRepo) ListByList(ctx context.Context, listID uuid.UUID) ([]*domain.Task, error) {
	return r.list(ctx, "taskRepo.ListByList",
		`SELECT `+taskColumns+` FROM tasks WHERE list_id = $1 ORDER BY position, id`,
		listID,
	)
}

func (r *TaskRepo) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]*domain.Task, error) {
	return r.list(ctx, "taskRepo.ListByBoard",
		`SELECT `+taskColumns+` FROM tasks WHERE board_id = $1 ORDER BY position, id`,
		boardID,
	)
}

func (r *TaskRepo) list(ctx context.Context, caller, sql string, args ...any) ([]*domain.Task, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", caller, err)
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		tasks = append(tasks, t)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return tasks, nil
}

func (r *TaskRepo) Update(ctx context.Context, t *domain.Task) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE tasks SET list_id = $1, title = $2, description = $3, assigned_users = $4, position = $5,
		 is_completed = $6, completed_by = $7, completed_at = $8, updated_at = $9
		 WHERE id = $10 AND board_id = $11`,
		t.ListID, t.Title, t.Description, assignees(t.AssignedUsers), t.Position,
		t.IsCompleted, t.CompletedBy, t.CompletedAt, t.UpdatedAt,
		t.ID, t.BoardID,
	)
	if err != nil {
		return fmt.Errorf("taskRepo.Update: %w", translate(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("taskRepo.Update: %w", domain.ErrNotFound)
	}

	return nil
}

// SetPositions rewrites the positions of tasks in listID. Every id must
// belong to the list.
func (r *TaskRepo) SetPositions(ctx context.Context, listID uuid.UUID, positions map[uuid.UUID]int) error {
	if len(positions) == 0 {
		return nil
	}
	ids, pos := positionArrays(positions)

	tag, err := r.db.Exec(ctx,
		`UPDATE tasks AS t SET position = u.position
		 FROM unnest($2::uuid[], $3::int[]) AS u(id, position)
		 WHERE t.id = u.id AND t.list_id = $1`,
		listID, ids, pos,
	)
	if err != nil {
		return fmt.Errorf("taskRepo.SetPositions: %w", translate(err))
	}
	if tag.RowsAffected() != int64(len(positions)) {
		return fmt.Errorf("taskRepo.SetPositions: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *TaskRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("taskRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("taskRepo.Delete: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *TaskRepo) DeleteByList(ctx context.Context, listID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE list_id = $1`, listID)
	if err != nil {
		return 0, fmt.Errorf("taskRepo.DeleteByList: %w", err)
	}

	return tag.RowsAffected(), nil
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var t domain.Task
	err := row.Scan(
		&t.ID, &t.BoardID, &t.ListID, &t.Title, &t.Description, &t.AssignedUsers, &t.Position,
		&t.IsCompleted, &t.CompletedBy, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// assignees keeps the column NOT NULL for tasks without assignees.
func assignees(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}
