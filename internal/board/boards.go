package board

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gosuda/kanban/internal/domain"
)

// notFound turns a repository ErrNotFound into a caller-facing message and
// wraps anything else unchanged.
func notFound(err error, msg string) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Errorf(domain.ErrNotFound, "%s", msg)
	}
	return err
}

// invalid marks a constructor or patch error as a validation failure.
func invalid(err error) error {
	return &domain.Error{Kind: domain.ErrValidation, Msg: err.Error()}
}

// CreateBoard creates a board owned by p. Only platform admins create boards.
func (s *Service) CreateBoard(ctx context.Context, p domain.Principal, name string) (_ *domain.Board, err error) {
	ctx, span := s.startSpan(ctx, "CreateBoard", p)
	defer func() { endSpan(span, err) }()

	if p.Role != domain.RoleAdmin {
		return nil, domain.Errorf(domain.ErrForbidden, "only admins can create boards")
	}
	b, err := domain.NewBoard(p.ID, name)
	if err != nil {
		return nil, invalid(err)
	}
	b.CreatedAt, b.UpdatedAt = s.now(), s.now()

	if err := s.store.Boards().Create(ctx, b); err != nil {
		return nil, fmt.Errorf("board.Service.CreateBoard: %w", err)
	}

	s.record(ctx, p, b.ID, domain.ActionBoardCreated, nil, fmt.Sprintf("created board %q", b.Name))
	return b, nil
}

// ListBoards returns the boards p owns or belongs to, newest first.
func (s *Service) ListBoards(ctx context.Context, p domain.Principal) ([]*domain.Board, error) {
	boards, err := s.store.Boards().ListForPrincipal(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("board.Service.ListBoards: %w", err)
	}
	return boards, nil
}

// GetBoard returns the full snapshot of a board. The snapshot is read under
// the board lock so it never observes a half-applied mutation.
func (s *Service) GetBoard(ctx context.Context, p domain.Principal, boardID uuid.UUID) (_ *domain.BoardSnapshot, err error) {
	ctx, span := s.startSpan(ctx, "GetBoard", p, attribute.String("board.id", boardID.String()))
	defer func() { endSpan(span, err) }()

	var snap *domain.BoardSnapshot
	err = s.store.WithinTx(ctx, func(tx domain.Store) error {
		b, err := lockBoard(ctx, tx, boardID)
		if err != nil {
			return err
		}
		if !b.HasMember(p.ID) {
			return domain.Errorf(domain.ErrForbidden, "not authorized to view this board")
		}

		lists, err := tx.Lists().ListByBoard(ctx, boardID)
		if err != nil {
			return fmt.Errorf("load lists: %w", err)
		}
		tasks, err := tx.Tasks().ListByBoard(ctx, boardID)
		if err != nil {
			return fmt.Errorf("load tasks: %w", err)
		}

		ids := append([]uuid.UUID(nil), b.Members...)
		if !slices.Contains(ids, b.OwnerID) {
			ids = append([]uuid.UUID{b.OwnerID}, ids...)
		}
		for _, t := range tasks {
			ids = append(ids, t.AssignedUsers...)
		}
		users, err := tx.Users().ListByIDs(ctx, dedupe(ids))
		if err != nil {
			return fmt.Errorf("load users: %w", err)
		}
		byID := make(map[uuid.UUID]domain.UserSummary, len(users))
		for _, u := range users {
			byID[u.ID] = u.Summary()
		}

		snap = &domain.BoardSnapshot{
			Board:   b,
			Members: summaries(byID, b.Members),
			Lists:   lists,
			Tasks:   make([]*domain.TaskView, 0, len(tasks)),
		}
		if !slices.Contains(b.Members, b.OwnerID) {
			snap.Members = append(summaries(byID, []uuid.UUID{b.OwnerID}), snap.Members...)
		}
		for _, t := range tasks {
			snap.Tasks = append(snap.Tasks, &domain.TaskView{Task: *t, Assignees: summaries(byID, t.AssignedUsers)})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("board.Service.GetBoard: %w", err)
	}
	return snap, nil
}

// AddMember adds the user registered under email to the board.
func (s *Service) AddMember(ctx context.Context, p domain.Principal, boardID uuid.UUID, email string) (_ *domain.UserSummary, err error) {
	ctx, span := s.startSpan(ctx, "AddMember", p, attribute.String("board.id", boardID.String()))
	defer func() { endSpan(span, err) }()

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, domain.Errorf(domain.ErrValidation, "email is required")
	}

	var added domain.UserSummary
	err = s.store.WithinTx(ctx, func(tx domain.Store) error {
		b, err := requireOwner(ctx, tx, p, boardID, "add members to this board")
		if err != nil {
			return err
		}
		u, err := tx.Users().GetByEmail(ctx, email)
		if err != nil {
			return notFound(err, "user not found")
		}
		if b.HasMember(u.ID) {
			return domain.Errorf(domain.ErrValidation, "user is already a member of this board")
		}
		if err := tx.Boards().AddMember(ctx, boardID, u.ID); err != nil {
			return fmt.Errorf("add member: %w", err)
		}
		added = u.Summary()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("board.Service.AddMember: %w", err)
	}

	s.record(ctx, p, boardID, domain.ActionMemberAdded, nil, fmt.Sprintf("added %s to the board", added.Email))
	return &added, nil
}

// DeleteBoard removes the board with its lists, tasks and activity.
func (s *Service) DeleteBoard(ctx context.Context, p domain.Principal, boardID uuid.UUID) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteBoard", p, attribute.String("board.id", boardID.String()))
	defer func() { endSpan(span, err) }()

	err = s.store.WithinTx(ctx, func(tx domain.Store) error {
		if _, err := requireOwner(ctx, tx, p, boardID, "delete this board"); err != nil {
			return err
		}
		lists, err := tx.Lists().ListByBoard(ctx, boardID)
		if err != nil {
			return fmt.Errorf("load lists: %w", err)
		}
		for _, l := range lists {
			if _, err := tx.Tasks().DeleteByList(ctx, l.ID); err != nil {
				return fmt.Errorf("delete tasks of list %s: %w", l.ID, err)
			}
			if err := tx.Lists().Delete(ctx, l.ID); err != nil {
				return fmt.Errorf("delete list %s: %w", l.ID, err)
			}
		}
		if err := tx.Activity().DeleteByBoard(ctx, boardID); err != nil {
			return fmt.Errorf("delete activity: %w", err)
		}
		return tx.Boards().Delete(ctx, boardID)
	})
	if err != nil {
		return fmt.Errorf("board.Service.DeleteBoard: %w", err)
	}
	return nil
}

// Activity returns the newest activity records of a board. limit defaults to
// 50 and is capped at 200.
func (s *Service) Activity(ctx context.Context, p domain.Principal, boardID uuid.UUID, limit int) ([]*domain.ActivityRecord, error) {
	b, err := s.store.Boards().GetByID(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("board.Service.Activity: %w", notFound(err, "board not found"))
	}
	if !b.HasMember(p.ID) {
		return nil, domain.Errorf(domain.ErrForbidden, "not authorized to view this board")
	}

	switch {
	case limit <= 0:
		limit = defaultActivityLimit
	case limit > maxActivityLimit:
		limit = maxActivityLimit
	}

	recs, err := s.store.Activity().ListByBoard(ctx, boardID, limit)
	if err != nil {
		return nil, fmt.Errorf("board.Service.Activity: %w", err)
	}
	return recs, nil
}

// CanView reports whether p may subscribe to the board's channel. A missing
// board is reported as false rather than an error.
func (s *Service) CanView(ctx context.Context, p domain.Principal, boardID uuid.UUID) (bool, error) {
	b, err := s.store.Boards().GetByID(ctx, boardID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("board.Service.CanView: %w", err)
	}
	return b.HasMember(p.ID), nil
}

func summaries(byID map[uuid.UUID]domain.UserSummary, ids []uuid.UUID) []domain.UserSummary {
	out := make([]domain.UserSummary, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u)
		}
	}
	return out
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
