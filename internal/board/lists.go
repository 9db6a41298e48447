package board

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gosuda/kanban/internal/domain"
	"github.com/gosuda/kanban/internal/ordering"
)

func checkListName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", domain.Errorf(domain.ErrValidation, "please add a list name")
	}
	return name, nil
}

// listScope loads the board's lists as stored entries and their dense order.
func listScope(ctx context.Context, tx domain.Store, boardID uuid.UUID) ([]ordering.Entry[uuid.UUID], []uuid.UUID, error) {
	lists, err := tx.Lists().ListByBoard(ctx, boardID)
	if err != nil {
		return nil, nil, fmt.Errorf("load lists: %w", err)
	}
	entries := make([]ordering.Entry[uuid.UUID], len(lists))
	for i, l := range lists {
		entries[i] = ordering.Entry[uuid.UUID]{ID: l.ID, Position: l.Position}
	}
	return entries, ordering.Normalize(entries), nil
}

// loadList reads a list and locks its board. The list is re-read under the
// lock so a concurrent delete is observed.
func loadList(ctx context.Context, tx domain.Store, listID uuid.UUID) (*domain.List, error) {
	l, err := tx.Lists().GetByID(ctx, listID)
	if err != nil {
		return nil, notFound(err, "list not found")
	}
	if err := tx.Boards().Lock(ctx, l.BoardID); err != nil {
		return nil, notFound(err, "board not found")
	}
	l, err = tx.Lists().GetByID(ctx, listID)
	if err != nil {
		return nil, notFound(err, "list not found")
	}
	return l, nil
}

func writeListPositions(ctx context.Context, tx domain.Store, boardID uuid.UUID, positions map[uuid.UUID]int) error {
	if len(positions) == 0 {
		return nil
	}
	if err := tx.Lists().SetPositions(ctx, boardID, positions); err != nil {
		return fmt.Errorf("set list positions: %w", err)
	}
	return nil
}

// CreateList appends a list to the board.
func (s *Service) CreateList(ctx context.Context, p domain.Principal, boardID uuid.UUID, name string) (_ *domain.List, err error) {
	ctx, span := s.startSpan(ctx, "CreateList", p, attribute.String("board.id", boardID.String()))
	defer func() { endSpan(span, err) }()

	name, err = checkListName(name)
	if err != nil {
		return nil, err
	}

	now := s.now()
	l := &domain.List{ID: uuid.New(), BoardID: boardID, Name: name, CreatedAt: now, UpdatedAt: now}
	err = s.store.WithinTx(ctx, func(tx domain.Store) error {
		if _, err := requireOwner(ctx, tx, p, boardID, "add lists to this board"); err != nil {
			return err
		}
		entries, order, err := listScope(ctx, tx, boardID)
		if err != nil {
			return err
		}
		after, pos := ordering.InsertAt(order, l.ID, len(order))
		l.Position = pos

		repair := ordering.Diff(entries, after)
		delete(repair, l.ID)
		if err := writeListPositions(ctx, tx, boardID, repair); err != nil {
			return err
		}
		return tx.Lists().Create(ctx, l)
	})
	if err != nil {
		return nil, fmt.Errorf("board.Service.CreateList: %w", err)
	}

	s.publish(ctx, boardID, domain.EventListCreated, l)
	s.record(ctx, p, boardID, domain.ActionListCreated, nil, fmt.Sprintf("created list %q", l.Name))
	return l, nil
}

// UpdateList renames a list.
func (s *Service) UpdateList(ctx context.Context, p domain.Principal, listID uuid.UUID, name string) (_ *domain.List, err error) {
	ctx, span := s.startSpan(ctx, "UpdateList", p, attribute.String("list.id", listID.String()))
	defer func() { endSpan(span, err) }()

	name, err = checkListName(name)
	if err != nil {
		return nil, err
	}

	var l *domain.List
	err = s.store.WithinTx(ctx, func(tx domain.Store) error {
		cur, err := loadList(ctx, tx, listID)
		if err != nil {
			return err
		}
		if _, err := requireOwner(ctx, tx, p, cur.BoardID, "update this list"); err != nil {
			return err
		}
		if err := tx.Lists().UpdateName(ctx, listID, name); err != nil {
			return fmt.Errorf("rename list: %w", err)
		}
		l, err = tx.Lists().GetByID(ctx, listID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("board.Service.UpdateList: %w", err)
	}

	s.publish(ctx, l.BoardID, domain.EventListUpdated, l)
	s.record(ctx, p, l.BoardID, domain.ActionListUpdated, nil, fmt.Sprintf("renamed list to %q", l.Name))
	return l, nil
}

// DeleteList removes a list together with its tasks and closes the gap it
// leaves in the board's list order.
func (s *Service) DeleteList(ctx context.Context, p domain.Principal, listID uuid.UUID) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteList", p, attribute.String("list.id", listID.String()))
	defer func() { endSpan(span, err) }()

	var (
		l       *domain.List
		removed int64
	)
	err = s.store.WithinTx(ctx, func(tx domain.Store) error {
		cur, err := loadList(ctx, tx, listID)
		if err != nil {
			return err
		}
		l = cur
		if _, err := requireOwner(ctx, tx, p, l.BoardID, "delete this list"); err != nil {
			return err
		}

		entries, order, err := listScope(ctx, tx, l.BoardID)
		if err != nil {
			return err
		}
		pos := slices.Index(order, listID)
		after, _, err := ordering.RemoveAt(order, pos)
		if err != nil {
			return err
		}

		if removed, err = tx.Tasks().DeleteByList(ctx, listID); err != nil {
			return fmt.Errorf("delete tasks: %w", err)
		}
		if err := tx.Lists().Delete(ctx, listID); err != nil {
			return fmt.Errorf("delete list: %w", err)
		}
		return writeListPositions(ctx, tx, l.BoardID, ordering.Diff(entries, after))
	})
	if err != nil {
		return fmt.Errorf("board.Service.DeleteList: %w", err)
	}

	s.publish(ctx, l.BoardID, domain.EventListDeleted, l.ID)
	s.record(ctx, p, l.BoardID, domain.ActionListDeleted, nil,
		fmt.Sprintf("deleted list %q and %d task(s)", l.Name, removed))
	return nil
}

// ReorderLists replaces the board's list order. Lists missing from listIDs
// keep their relative order after the given ones; unknown ids are ignored.
// It returns the resulting full order.
func (s *Service) ReorderLists(ctx context.Context, p domain.Principal, boardID uuid.UUID, listIDs []uuid.UUID) (_ []uuid.UUID, err error) {
	ctx, span := s.startSpan(ctx, "ReorderLists", p, attribute.String("board.id", boardID.String()))
	defer func() { endSpan(span, err) }()

	var after []uuid.UUID
	err = s.store.WithinTx(ctx, func(tx domain.Store) error {
		if _, err := requireOwner(ctx, tx, p, boardID, "reorder lists on this board"); err != nil {
			return err
		}
		entries, order, err := listScope(ctx, tx, boardID)
		if err != nil {
			return err
		}
		after = ordering.ReorderFull(order, listIDs)
		return writeListPositions(ctx, tx, boardID, ordering.Diff(entries, after))
	})
	if err != nil {
		return nil, fmt.Errorf("board.Service.ReorderLists: %w", err)
	}

	s.publish(ctx, boardID, domain.EventListsReordered, after)
	s.record(ctx, p, boardID, domain.ActionListsReordered, nil, fmt.Sprintf("reordered %d list(s)", len(after)))
	return after, nil
}
