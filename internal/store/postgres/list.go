package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gosuda/kanban/internal/domain"
)

type ListRepo struct {
	db querier
}

func (r *ListRepo) Create(ctx context.Context, l *domain.List) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO lists (id, board_id, name, position, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		l.ID, l.BoardID, l.Name, l.Position, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("listRepo.Create: %w", translate(err))
	}

	return nil
}

func (r *ListRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.List, error) {
	var l domain.List
	err := r.db.QueryRow(ctx,
		`SELECT id, board_id, name, position, created_at, updated_at
		 FROM lists WHERE id = $1`,
		id,
	).Scan(&l.ID, &l.BoardID, &l.Name, &l.Position, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("listRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("listRepo.GetByID: %w", err)
	}

	return &l, nil
}

func (r *ListRepo) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]*domain.List, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, board_id, name, position, created_at, updated_at
		 FROM lists WHERE board_id = $1 ORDER BY position, id`,
		boardID,
	)
	if err != nil {
		return nil, fmt.Errorf("listRepo.ListByBoard: %w", err)
	}
	defer rows.Close()

	var lists []*domain.List
	for rows.Next() {
		var l domain.List
		err = rows.Scan(&l.ID, &l.BoardID, &l.Name, &l.Position, &l.CreatedAt, &l.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("listRepo.ListByBoard: scan: %w", err)
		}
		lists = append(lists, &l)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("listRepo.ListByBoard: rows: %w", err)
	}

	return lists, nil
}

func (r *ListRepo) UpdateName(ctx context.Context, id uuid.UUID, name string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE lists SET name = $1, updated_at = now() WHERE id = $2`,
		name, id,
	)
	if err != nil {
		return fmt.Errorf("listRepo.UpdateName: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("listRepo.UpdateName: %w", domain.ErrNotFound)
	}

	return nil
}

// SetPositions rewrites the positions of lists on boardID. Every id must
// belong to the board.
func (r *ListRepo) SetPositions(ctx context.Context, boardID uuid.UUID, positions map[uuid.UUID]int) error {
	if len(positions) == 0 {
		return nil
	}
	ids, pos := positionArrays(positions)

	tag, err := r.db.Exec(ctx,
		`UPDATE lists AS l SET position = u.position, updated_at = now()
		 FROM unnest($2::uuid[], $3::int[]) AS u(id, position)
		 WHERE l.id = u.id AND l.board_id = $1`,
		boardID, ids, pos,
	)
	if err != nil {
		return fmt.Errorf("listRepo.SetPositions: %w", translate(err))
	}
	if tag.RowsAffected() != int64(len(positions)) {
		return fmt.Errorf("listRepo.SetPositions: %w", domain.ErrNotFound)
	}

	return nil
}

// Delete removes the list. Its tasks cascade.
func (r *ListRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM lists WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("listRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("listRepo.Delete: %w", domain.ErrNotFound)
	}

	return nil
}

// positionArrays splits a position map into parallel arrays for unnest.
func positionArrays(positions map[uuid.UUID]int) ([]uuid.UUID, []int32) {
	ids := make([]uuid.UUID, 0, len(positions))
	pos := make([]int32, 0, len(positions))
	for id, p := range positions {
		ids = append(ids, id)
		pos = append(pos, int32(p)) //nolint:gosec // positions are bounded by scope size
	}
	return ids, pos
}
