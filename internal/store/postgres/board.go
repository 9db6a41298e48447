package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gosuda/kanban/internal/domain"
)

type BoardRepo struct {
	db querier
}

const boardColumns = `b.id, b.name, b.owner_id, b.created_at, b.updated_at,
	COALESCE((SELECT array_agg(m.user_id ORDER BY m.seq) FROM board_members m WHERE m.board_id = b.id), '{}')`

// Create inserts the board and its initial members in one statement.
func (r *BoardRepo) Create(ctx context.Context, b *domain.Board) error {
	_, err := r.db.Exec(ctx,
		`WITH board AS (
			INSERT INTO boards (id, name, owner_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		 )
		 INSERT INTO board_members (board_id, user_id)
		 SELECT board.id, m.user_id
		 FROM board, unnest($6::uuid[]) WITH ORDINALITY AS m(user_id, ord)
		 ORDER BY m.ord`,
		b.ID, b.Name, b.OwnerID, b.CreatedAt, b.UpdatedAt, b.Members,
	)
	if err != nil {
		return fmt.Errorf("boardRepo.Create: %w", translate(err))
	}

	return nil
}

func (r *BoardRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Board, error) {
	b, err := scanBoard(r.db.QueryRow(ctx,
		`SELECT `+boardColumns+` FROM boards b WHERE b.id = $1`,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("boardRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("boardRepo.GetByID: %w", err)
	}

	return b, nil
}

// Lock takes a row lock on the board that is held until the transaction ends.
func (r *BoardRepo) Lock(ctx context.Context, id uuid.UUID) error {
	var locked uuid.UUID
	err := r.db.QueryRow(ctx,
		`SELECT id FROM boards WHERE id = $1 FOR UPDATE`,
		id,
	).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("boardRepo.Lock: %w", domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("boardRepo.Lock: %w", err)
	}

	return nil
}

func (r *BoardRepo) ListForPrincipal(ctx context.Context, principalID uuid.UUID) ([]*domain.Board, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+boardColumns+`
		 FROM boards b
		 WHERE b.owner_id = $1
		    OR EXISTS (SELECT 1 FROM board_members x WHERE x.board_id = b.id AND x.user_id = $1)
		 ORDER BY b.created_at DESC, b.id
		 LIMIT 500`,
		principalID,
	)
	if err != nil {
		return nil, fmt.Errorf("boardRepo.ListForPrincipal: %w", err)
	}
	defer rows.Close()

	var boards []*domain.Board
	for rows.Next() {
		b, err := scanBoard(rows)
		if err != nil {
			return nil, fmt.Errorf("boardRepo.ListForPrincipal: scan: %w", err)
		}
		boards = append(boards, b)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("boardRepo.ListForPrincipal: rows: %w", err)
	}

	return boards, nil
}

// AddMember is idempotent for an existing member.
func (r *BoardRepo) AddMember(ctx context.Context, boardID, userID uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO board_members (board_id, user_id) VALUES ($1, $2)
		 ON CONFLICT (board_id, user_id) DO NOTHING`,
		boardID, userID,
	)
	if err != nil {
		return fmt.Errorf("boardRepo.AddMember: %w", translate(err))
	}
	if tag.RowsAffected() > 0 {
		_, err = r.db.Exec(ctx, `UPDATE boards SET updated_at = now() WHERE id = $1`, boardID)
		if err != nil {
			return fmt.Errorf("boardRepo.AddMember: touch board: %w", err)
		}
	}

	return nil
}

// Delete removes the board. Lists, tasks, members and activity cascade.
func (r *BoardRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM boards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("boardRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("boardRepo.Delete: %w", domain.ErrNotFound)
	}

	return nil
}

func scanBoard(row pgx.Row) (*domain.Board, error) {
	var b domain.Board
	err := row.Scan(&b.ID, &b.Name, &b.OwnerID, &b.CreatedAt, &b.UpdatedAt, &b.Members)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
