package client_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/kanban/internal/client"
	"github.com/gosuda/kanban/internal/domain"
)

type mockAPI struct {
	getBoardFunc     func(ctx context.Context, boardID uuid.UUID) (*domain.BoardSnapshot, error)
	moveTaskFunc     func(ctx context.Context, taskID, newListID uuid.UUID, newPosition int) (*domain.TaskMove, error)
	reorderListsFunc func(ctx context.Context, boardID uuid.UUID, listIDs []uuid.UUID) ([]uuid.UUID, error)
	updateTaskFunc   func(ctx context.Context, taskID uuid.UUID, patch domain.TaskPatch) (*domain.TaskView, error)
}

func (m *mockAPI) GetBoard(ctx context.Context, boardID uuid.UUID) (*domain.BoardSnapshot, error) {
	return m.getBoardFunc(ctx, boardID)
}

func (m *mockAPI) MoveTask(ctx context.Context, taskID, newListID uuid.UUID, newPosition int) (*domain.TaskMove, error) {
	return m.moveTaskFunc(ctx, taskID, newListID, newPosition)
}

func (m *mockAPI) ReorderLists(ctx context.Context, boardID uuid.UUID, listIDs []uuid.UUID) ([]uuid.UUID, error) {
	return m.reorderListsFunc(ctx, boardID, listIDs)
}

func (m *mockAPI) UpdateTask(ctx context.Context, taskID uuid.UUID, patch domain.TaskPatch) (*domain.TaskView, error) {
	return m.updateTaskFunc(ctx, taskID, patch)
}

// loadedBoard returns a controller loaded from the fixture snapshot and a
// counter of GetBoard calls, including the initial load.
func loadedBoard(t *testing.T, f fixture, api *mockAPI) (*client.Board, *atomic.Int32) {
	t.Helper()

	var fetches atomic.Int32
	if api.getBoardFunc == nil {
		api.getBoardFunc = func(_ context.Context, boardID uuid.UUID) (*domain.BoardSnapshot, error) {
			fetches.Add(1)
			assert.Equal(t, f.boardID, boardID)
			return f.snapshot(), nil
		}
	}

	b := client.NewBoard(api, f.boardID, uuid.New())
	require.NoError(t, b.Load(t.Context()))
	return b, &fetches
}

func TestBoard_DragEnd(t *testing.T) {
	t.Parallel()

	f := newFixture()

	var sent domain.TaskMove
	api := &mockAPI{
		moveTaskFunc: func(_ context.Context, taskID, newListID uuid.UUID, newPosition int) (*domain.TaskMove, error) {
			sent = domain.TaskMove{TaskID: taskID, NewListID: newListID, NewPosition: newPosition}
			return &sent, nil
		},
	}
	b, fetches := loadedBoard(t, f, api)

	b.DragOver(f.a, f.done)
	require.NoError(t, b.DragEnd(t.Context(), f.a, f.done, 0))

	assert.Equal(t, domain.TaskMove{TaskID: f.a, NewListID: f.done, NewPosition: 0}, sent)
	assert.Equal(t, []uuid.UUID{f.b, f.c}, taskIDs(b.Tasks(f.todo)))
	assert.Equal(t, []uuid.UUID{f.a, f.d}, taskIDs(b.Tasks(f.done)))
	assert.Equal(t, int32(1), fetches.Load())
}

func TestBoard_DragEndAppends(t *testing.T) {
	t.Parallel()

	f := newFixture()

	tests := []struct {
		name    string
		task    func(f fixture) uuid.UUID
		list    func(f fixture) uuid.UUID
		wantPos int
	}{
		{
			name:    "other_list",
			task:    func(f fixture) uuid.UUID { return f.a },
			list:    func(f fixture) uuid.UUID { return f.done },
			wantPos: 1,
		},
		{
			name:    "same_list",
			task:    func(f fixture) uuid.UUID { return f.a },
			list:    func(f fixture) uuid.UUID { return f.todo },
			wantPos: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var gotPos int
			api := &mockAPI{
				moveTaskFunc: func(_ context.Context, taskID, newListID uuid.UUID, newPosition int) (*domain.TaskMove, error) {
					gotPos = newPosition
					return &domain.TaskMove{TaskID: taskID, NewListID: newListID, NewPosition: newPosition}, nil
				},
			}
			b, _ := loadedBoard(t, f, api)

			require.NoError(t, b.DragEnd(t.Context(), tt.task(f), tt.list(f), -1))

			assert.Equal(t, tt.wantPos, gotPos)
			task, ok := b.Task(tt.task(f))
			require.True(t, ok)
			assert.Equal(t, tt.wantPos, task.Position)
		})
	}
}

func TestBoard_DragEndFailureRefetches(t *testing.T) {
	t.Parallel()

	f := newFixture()
	api := &mockAPI{
		moveTaskFunc: func(context.Context, uuid.UUID, uuid.UUID, int) (*domain.TaskMove, error) {
			return nil, &client.APIError{Status: 403, Message: "not authorized to update this board"}
		},
	}
	b, fetches := loadedBoard(t, f, api)

	err := b.DragEnd(t.Context(), f.a, f.done, 0)

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 403, apiErr.Status)
	assert.Equal(t, int32(2), fetches.Load())
	assert.Equal(t, []uuid.UUID{f.a, f.b, f.c}, taskIDs(b.Tasks(f.todo)), "server state restored")
}

func TestBoard_DragEndRefetchAlsoFails(t *testing.T) {
	t.Parallel()

	f := newFixture()
	calls := 0
	api := &mockAPI{
		getBoardFunc: func(context.Context, uuid.UUID) (*domain.BoardSnapshot, error) {
			calls++
			if calls > 1 {
				return nil, errors.New("connection refused")
			}
			return f.snapshot(), nil
		},
		moveTaskFunc: func(context.Context, uuid.UUID, uuid.UUID, int) (*domain.TaskMove, error) {
			return nil, errors.New("timeout")
		},
	}
	b, _ := loadedBoard(t, f, api)

	err := b.DragEnd(t.Context(), f.a, f.done, 0)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestBoard_DragCancel(t *testing.T) {
	t.Parallel()

	f := newFixture()
	b, _ := loadedBoard(t, f, &mockAPI{})

	b.DragOver(f.a, f.done)
	assert.Equal(t, []uuid.UUID{f.d, f.a}, taskIDs(b.Tasks(f.done)))

	b.DragCancel(f.a)
	assert.Equal(t, []uuid.UUID{f.d}, taskIDs(b.Tasks(f.done)))
	assert.Equal(t, []uuid.UUID{f.a, f.b, f.c}, taskIDs(b.Tasks(f.todo)))
}

func TestBoard_ReorderLists(t *testing.T) {
	t.Parallel()

	f := newFixture()

	t.Run("ok", func(t *testing.T) {
		t.Parallel()

		api := &mockAPI{
			reorderListsFunc: func(_ context.Context, boardID uuid.UUID, listIDs []uuid.UUID) ([]uuid.UUID, error) {
				assert.Equal(t, f.boardID, boardID)
				return listIDs, nil
			},
		}
		b, _ := loadedBoard(t, f, api)

		require.NoError(t, b.ReorderLists(t.Context(), []uuid.UUID{f.done, f.todo}))
		assert.Equal(t, []uuid.UUID{f.done, f.todo}, listIDs(b.Lists()))
	})

	t.Run("rejected", func(t *testing.T) {
		t.Parallel()

		api := &mockAPI{
			reorderListsFunc: func(context.Context, uuid.UUID, []uuid.UUID) ([]uuid.UUID, error) {
				return nil, &client.APIError{Status: 400, Message: "list IDs must match the board's lists exactly"}
			},
		}
		b, fetches := loadedBoard(t, f, api)

		require.Error(t, b.ReorderLists(t.Context(), []uuid.UUID{f.done}))
		assert.Equal(t, []uuid.UUID{f.todo, f.done}, listIDs(b.Lists()))
		assert.Equal(t, int32(2), fetches.Load())
	})
}

func TestBoard_ToggleComplete(t *testing.T) {
	t.Parallel()

	f := newFixture()
	by := uuid.New()

	var patch domain.TaskPatch
	api := &mockAPI{
		updateTaskFunc: func(_ context.Context, taskID uuid.UUID, p domain.TaskPatch) (*domain.TaskView, error) {
			patch = p
			tv := &domain.TaskView{Task: domain.Task{ID: taskID, BoardID: f.boardID, ListID: f.todo, Position: 0, Title: "a"}}
			tv.SetCompleted(*p.IsCompleted, by, tv.CreatedAt)
			return tv, nil
		},
	}
	b, _ := loadedBoard(t, f, api)

	require.NoError(t, b.ToggleComplete(t.Context(), f.a))

	require.NotNil(t, patch.IsCompleted)
	assert.True(t, *patch.IsCompleted)
	assert.Equal(t, []domain.TaskField{domain.TaskFieldIsCompleted}, patch.Fields())

	a, ok := b.Task(f.a)
	require.True(t, ok)
	assert.True(t, a.IsCompleted)
	require.NotNil(t, a.CompletedBy)
	assert.Equal(t, by, *a.CompletedBy, "server copy replaces the optimistic one")
}

func TestBoard_ToggleCompleteRejected(t *testing.T) {
	t.Parallel()

	f := newFixture()
	api := &mockAPI{
		updateTaskFunc: func(context.Context, uuid.UUID, domain.TaskPatch) (*domain.TaskView, error) {
			return nil, &client.APIError{Status: 403, Message: "not authorized to update this board"}
		},
	}
	b, fetches := loadedBoard(t, f, api)

	require.Error(t, b.ToggleComplete(t.Context(), f.a))

	a, ok := b.Task(f.a)
	require.True(t, ok)
	assert.False(t, a.IsCompleted)
	assert.Nil(t, a.CompletedBy)
	assert.Equal(t, int32(2), fetches.Load())
}

func TestBoard_HandleEvent(t *testing.T) {
	t.Parallel()

	f := newFixture()

	t.Run("applies", func(t *testing.T) {
		t.Parallel()

		b, fetches := loadedBoard(t, f, &mockAPI{})

		var changes atomic.Int32
		b.OnChange(func() { changes.Add(1) })

		require.NoError(t, b.HandleEvent(t.Context(), f.event(t, domain.EventTaskDeleted, f.b)))

		assert.Equal(t, []uuid.UUID{f.a, f.c}, taskIDs(b.Tasks(f.todo)))
		assert.Equal(t, int32(1), changes.Load())
		assert.Equal(t, int32(1), fetches.Load())
	})

	t.Run("diverged_refetches", func(t *testing.T) {
		t.Parallel()

		b, fetches := loadedBoard(t, f, &mockAPI{})

		err := b.HandleEvent(t.Context(), f.event(t, domain.EventTaskMoved, domain.TaskMove{TaskID: uuid.New(), NewListID: f.todo}))

		require.ErrorIs(t, err, client.ErrDiverged)
		assert.Equal(t, int32(2), fetches.Load())
	})
}
