package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gosuda/kanban/internal/domain"
)

type ActivityRepo struct {
	db querier
}

func (r *ActivityRepo) Record(ctx context.Context, rec *domain.ActivityRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO activity (id, principal_id, board_id, action, task_id, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.PrincipalID, rec.BoardID, rec.Action, rec.TaskID, rec.Detail, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("activityRepo.Record: %w", translate(err))
	}

	return nil
}

// ListByBoard returns the newest limit records of the board.
func (r *ActivityRepo) ListByBoard(ctx context.Context, boardID uuid.UUID, limit int) ([]*domain.ActivityRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, principal_id, board_id, action, task_id, detail, created_at
		 FROM activity WHERE board_id = $1
		 ORDER BY created_at DESC, id
		 LIMIT $2`,
		boardID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("activityRepo.ListByBoard: %w", err)
	}
	defer rows.Close()

	var records []*domain.ActivityRecord
	for rows.Next() {
		var rec domain.ActivityRecord
		err = rows.Scan(&rec.ID, &rec.PrincipalID, &rec.BoardID, &rec.Action, &rec.TaskID, &rec.Detail, &rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("activityRepo.ListByBoard: scan: %w", err)
		}
		records = append(records, &rec)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("activityRepo.ListByBoard: rows: %w", err)
	}

	return records, nil
}

func (r *ActivityRepo) DeleteByBoard(ctx context.Context, boardID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM activity WHERE board_id = $1`, boardID)
	if err != nil {
		return fmt.Errorf("activityRepo.DeleteByBoard: %w", err)
	}

	return nil
}
