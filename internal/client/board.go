package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/kanban/internal/domain"
)

// API is the subset of the REST surface the Board controller needs.
// *HTTPAPI satisfies it.
type API interface {
	GetBoard(ctx context.Context, boardID uuid.UUID) (*domain.BoardSnapshot, error)
	MoveTask(ctx context.Context, taskID, newListID uuid.UUID, newPosition int) (*domain.TaskMove, error)
	ReorderLists(ctx context.Context, boardID uuid.UUID, listIDs []uuid.UUID) ([]uuid.UUID, error)
	UpdateTask(ctx context.Context, taskID uuid.UUID, patch domain.TaskPatch) (*domain.TaskView, error)
}

// Board applies user gestures optimistically to a View and confirms them with
// the server. A failed request discards local state and refetches the board.
// Board is safe for concurrent use.
type Board struct {
	api     API
	boardID uuid.UUID
	userID  uuid.UUID

	mu   sync.Mutex
	view *View

	// onChange, if set, is called after every change to the view.
	onChange func()
}

// NewBoard creates a controller for boardID acting as userID. Call Load
// before using it.
func NewBoard(api API, boardID, userID uuid.UUID) *Board {
	return &Board{
		api:     api,
		boardID: boardID,
		userID:  userID,
		view:    NewView(&domain.BoardSnapshot{Board: &domain.Board{ID: boardID}}),
	}
}

// OnChange registers fn to be called after the view changes. fn runs without
// the controller lock held.
func (b *Board) OnChange(fn func()) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

func (b *Board) ID() uuid.UUID { return b.boardID }

// Load fetches the board snapshot and replaces the view with it.
func (b *Board) Load(ctx context.Context) error {
	return b.Refetch(ctx)
}

// Refetch replaces the whole view with a fresh snapshot. Drag overlays are
// dropped.
func (b *Board) Refetch(ctx context.Context) error {
	snap, err := b.api.GetBoard(ctx, b.boardID)
	if err != nil {
		return fmt.Errorf("client.Board.Refetch: %w", err)
	}
	b.update(func(v *View) { v.Replace(snap) })
	return nil
}

// Lists returns the lists in render order.
func (b *Board) Lists() []*domain.List {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.view.Lists()
}

// Tasks returns the tasks shown in listID in render order, including a task
// dragged over it.
func (b *Board) Tasks(listID uuid.UUID) []*domain.TaskView {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.view.Tasks(listID)
}

func (b *Board) Task(taskID uuid.UUID) (*domain.TaskView, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.view.Task(taskID)
}

// Snapshot returns the board and its members as last seen.
func (b *Board) Snapshot() (domain.Board, []domain.UserSummary) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.view.Board(), b.view.Members()
}

// DragOver shows taskID in listID while a drag is in progress. Nothing is
// renumbered until DragEnd.
func (b *Board) DragOver(taskID, listID uuid.UUID) {
	b.update(func(v *View) { v.Propose(taskID, listID) })
}

// DragCancel abandons a drag and restores the task to its own list.
func (b *Board) DragCancel(taskID uuid.UUID) {
	b.update(func(v *View) { v.ClearProposal(taskID) })
}

// DragEnd drops taskID at pos in listID. A negative pos drops it at the end
// of the list. The move is applied locally first and then sent to the server.
func (b *Board) DragEnd(ctx context.Context, taskID, listID uuid.UUID, pos int) error {
	var (
		final   int
		moveErr error
	)
	b.update(func(v *View) {
		v.ClearProposal(taskID)
		if pos < 0 {
			pos = v.taskCount(listID)
			if t, ok := v.tasks[taskID]; ok && t.ListID == listID {
				pos--
			}
		}
		final, moveErr = v.moveTask(taskID, listID, pos)
	})
	if moveErr != nil {
		return b.recover(ctx, fmt.Errorf("client.Board.DragEnd: %w", moveErr))
	}

	m, err := b.api.MoveTask(ctx, taskID, listID, final)
	if err != nil {
		return b.recover(ctx, fmt.Errorf("client.Board.DragEnd: %w", err))
	}

	// The server's answer is authoritative; it usually matches already.
	var confirmErr error
	b.update(func(v *View) {
		_, confirmErr = v.moveTask(m.TaskID, m.NewListID, m.NewPosition)
	})
	if confirmErr != nil {
		return b.recover(ctx, fmt.Errorf("client.Board.DragEnd: %w", confirmErr))
	}
	return nil
}

// ReorderLists applies a new list order locally and sends it to the server.
func (b *Board) ReorderLists(ctx context.Context, order []uuid.UUID) error {
	b.update(func(v *View) { v.reorderLists(order) })

	confirmed, err := b.api.ReorderLists(ctx, b.boardID, order)
	if err != nil {
		return b.recover(ctx, fmt.Errorf("client.Board.ReorderLists: %w", err))
	}
	b.update(func(v *View) { v.reorderLists(confirmed) })
	return nil
}

// ToggleComplete flips the completion status of taskID locally and sends the
// change to the server.
func (b *Board) ToggleComplete(ctx context.Context, taskID uuid.UUID) error {
	var (
		completed bool
		found     bool
	)
	b.update(func(v *View) {
		t, ok := v.tasks[taskID]
		if !ok {
			return
		}
		found = true
		completed = !t.IsCompleted
		t.SetCompleted(completed, b.userID, time.Now().UTC())
	})
	if !found {
		return b.recover(ctx, fmt.Errorf("client.Board.ToggleComplete: task %s: %w", taskID, ErrDiverged))
	}

	t, err := b.api.UpdateTask(ctx, taskID, domain.TaskPatch{IsCompleted: &completed})
	if err != nil {
		return b.recover(ctx, fmt.Errorf("client.Board.ToggleComplete: %w", err))
	}
	b.update(func(v *View) { v.upsertTask(t) })
	return nil
}

// HandleEvent applies a channel event. If the event cannot be applied the
// board is refetched.
func (b *Board) HandleEvent(ctx context.Context, ev domain.RawBoardEvent) error {
	var applyErr error
	b.update(func(v *View) { applyErr = v.Apply(ev) })
	if applyErr != nil {
		return b.recover(ctx, fmt.Errorf("client.Board.HandleEvent: %w", applyErr))
	}
	return nil
}

// recover refetches the board after a failed gesture and returns cause,
// joined with the refetch error if that fails too.
func (b *Board) recover(ctx context.Context, cause error) error {
	log.Debug().Err(cause).Str("board_id", b.boardID.String()).Msg("refetching board")
	if err := b.Refetch(ctx); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

func (b *Board) update(fn func(v *View)) {
	b.mu.Lock()
	fn(b.view)
	notify := b.onChange
	b.mu.Unlock()

	if notify != nil {
		notify()
	}
}
