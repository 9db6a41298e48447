package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// List is an ordered column of tasks. Position is dense and zero-based per board.
type List struct {
	ID        uuid.UUID `json:"id"`
	BoardID   uuid.UUID `json:"boardId"`
	Name      string    `json:"name"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ListRepository interface {
	Create(ctx context.Context, l *List) error
	GetByID(ctx context.Context, id uuid.UUID) (*List, error)
	// ListByBoard returns the board's lists ordered by position, then id.
	ListByBoard(ctx context.Context, boardID uuid.UUID) ([]*List, error)
	UpdateName(ctx context.Context, id uuid.UUID, name string) error
	SetPositions(ctx context.Context, boardID uuid.UUID, positions map[uuid.UUID]int) error
	Delete(ctx context.Context, id uuid.UUID) error
}
