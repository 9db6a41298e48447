package domain

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxBoardNameLen = 50

type Board struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	OwnerID   uuid.UUID   `json:"ownerId"`
	Members   []uuid.UUID `json:"members"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// NewBoard creates a Board owned by ownerID. The owner is listed as the first member.
func NewBoard(ownerID uuid.UUID, name string) (*Board, error) {
	name = strings.TrimSpace(name)
	if ownerID == uuid.Nil {
		return nil, errors.New("board: owner ID is required")
	}
	if name == "" {
		return nil, errors.New("board: name is required")
	}
	if len(name) > maxBoardNameLen {
		return nil, errors.New("board: name can not be more than 50 characters")
	}
	now := time.Now()
	return &Board{
		ID:        uuid.New(),
		Name:      name,
		OwnerID:   ownerID,
		Members:   []uuid.UUID{ownerID},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// RoleOf returns the board-relative role of principalID. The owner counts as
// a member even when absent from Members.
func (b *Board) RoleOf(principalID uuid.UUID) BoardRole {
	if b.OwnerID == principalID {
		return BoardRoleOwner
	}
	if b.HasMember(principalID) {
		return BoardRoleMember
	}
	return BoardRoleNone
}

func (b *Board) HasMember(principalID uuid.UUID) bool {
	return b.OwnerID == principalID || slices.Contains(b.Members, principalID)
}

type BoardRepository interface {
	Create(ctx context.Context, b *Board) error
	GetByID(ctx context.Context, id uuid.UUID) (*Board, error)
	// Lock acquires a write lock on the board for the rest of the enclosing
	// transaction. Implementations without row locks may treat it as an existence check.
	Lock(ctx context.Context, id uuid.UUID) error
	ListForPrincipal(ctx context.Context, principalID uuid.UUID) ([]*Board, error)
	AddMember(ctx context.Context, boardID, userID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}
