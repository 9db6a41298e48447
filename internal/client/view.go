// Package client keeps a local board view consistent with the server while
// requests are in flight.
//
// Every change, whether an optimistic local edit or a broadcast event, goes
// through the same id-keyed replace. Rendering order always comes from the
// position fields, never from collection order. On any failure the whole view
// is replaced by a fresh snapshot.
package client

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/gosuda/kanban/internal/domain"
	"github.com/gosuda/kanban/internal/ordering"
)

// ErrDiverged is returned when an event references state the view does not
// have. The caller should refetch.
var ErrDiverged = errors.New("client: local view diverged from server")

// View is the local copy of one board. It is not safe for concurrent use;
// Board serializes access.
type View struct {
	board   domain.Board
	members []domain.UserSummary
	lists   map[uuid.UUID]*domain.List
	tasks   map[uuid.UUID]*domain.TaskView

	// proposed is the drag overlay: task id to the list it hovers over.
	proposed map[uuid.UUID]uuid.UUID
}

// NewView builds a view from a board snapshot.
func NewView(snap *domain.BoardSnapshot) *View {
	v := &View{}
	v.Replace(snap)
	return v
}

// Replace discards all local state, including drag overlays, in favour of snap.
func (v *View) Replace(snap *domain.BoardSnapshot) {
	v.board = domain.Board{}
	if snap.Board != nil {
		v.board = *snap.Board
	}
	v.members = slices.Clone(snap.Members)
	v.lists = make(map[uuid.UUID]*domain.List, len(snap.Lists))
	for _, l := range snap.Lists {
		cp := *l
		v.lists[l.ID] = &cp
	}
	v.tasks = make(map[uuid.UUID]*domain.TaskView, len(snap.Tasks))
	for _, t := range snap.Tasks {
		v.tasks[t.ID] = cloneTask(t)
	}
	v.proposed = make(map[uuid.UUID]uuid.UUID)
}

func (v *View) BoardID() uuid.UUID { return v.board.ID }

func (v *View) Board() domain.Board { return v.board }

func (v *View) Members() []domain.UserSummary { return slices.Clone(v.members) }

// Lists returns copies of the board's lists in position order.
func (v *View) Lists() []*domain.List {
	out := make([]*domain.List, 0, len(v.lists))
	for _, l := range v.lists {
		cp := *l
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *domain.List) int {
		if a.Position != b.Position {
			return a.Position - b.Position
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out
}

// Tasks returns copies of the tasks shown in listID, in position order.
// Tasks dragged over the list from elsewhere are shown after its own tasks.
func (v *View) Tasks(listID uuid.UUID) []*domain.TaskView {
	var own, visiting []*domain.TaskView
	for _, t := range v.tasks {
		if v.effectiveList(t) != listID {
			continue
		}
		if t.ListID == listID {
			own = append(own, cloneTask(t))
		} else {
			visiting = append(visiting, cloneTask(t))
		}
	}
	sortTasks(own)
	sortTasks(visiting)
	return append(own, visiting...)
}

// Task returns a copy of the task with the given id.
func (v *View) Task(id uuid.UUID) (*domain.TaskView, bool) {
	t, ok := v.tasks[id]
	if !ok {
		return nil, false
	}
	return cloneTask(t), true
}

// Proposed returns the list a task is being dragged over, if any.
func (v *View) Proposed(taskID uuid.UUID) (uuid.UUID, bool) {
	id, ok := v.proposed[taskID]
	return id, ok
}

func (v *View) effectiveList(t *domain.TaskView) uuid.UUID {
	if id, ok := v.proposed[t.ID]; ok {
		return id
	}
	return t.ListID
}

// Propose sets the drag overlay for a task. No position changes.
func (v *View) Propose(taskID, listID uuid.UUID) {
	if _, ok := v.tasks[taskID]; !ok {
		return
	}
	if _, ok := v.lists[listID]; !ok {
		return
	}
	v.proposed[taskID] = listID
}

// ClearProposal removes the drag overlay for a task.
func (v *View) ClearProposal(taskID uuid.UUID) {
	delete(v.proposed, taskID)
}

// Apply merges one channel event into the view. Events for other boards and
// control replies are ignored. Applying an event that reflects state the view
// already has changes nothing, so a client may receive the echo of its own
// optimistic change safely.
func (v *View) Apply(ev domain.RawBoardEvent) error {
	if ev.BoardID != v.board.ID {
		return nil
	}

	switch ev.Type {
	case domain.EventListCreated, domain.EventListUpdated:
		var l domain.List
		if err := decodeData(ev, &l); err != nil {
			return err
		}
		v.lists[l.ID] = &l

	case domain.EventListDeleted:
		var id uuid.UUID
		if err := decodeData(ev, &id); err != nil {
			return err
		}
		v.removeList(id)

	case domain.EventListsReordered:
		var order []uuid.UUID
		if err := decodeData(ev, &order); err != nil {
			return err
		}
		v.reorderLists(order)

	case domain.EventTaskCreated, domain.EventTaskUpdated:
		var t domain.TaskView
		if err := decodeData(ev, &t); err != nil {
			return err
		}
		v.tasks[t.ID] = &t

	case domain.EventTaskDeleted:
		var id uuid.UUID
		if err := decodeData(ev, &id); err != nil {
			return err
		}
		v.removeTask(id)

	case domain.EventTaskMoved:
		var m domain.TaskMove
		if err := decodeData(ev, &m); err != nil {
			return err
		}
		if _, err := v.moveTask(m.TaskID, m.NewListID, m.NewPosition); err != nil {
			return fmt.Errorf("client.View.Apply: %s: %w", ev.Type, err)
		}
	}
	return nil
}

// upsertTask replaces the local copy of t.
func (v *View) upsertTask(t *domain.TaskView) {
	v.tasks[t.ID] = cloneTask(t)
}

// taskCount returns how many tasks belong to listID, ignoring drag overlays.
func (v *View) taskCount(listID uuid.UUID) int {
	n := 0
	for _, t := range v.tasks {
		if t.ListID == listID {
			n++
		}
	}
	return n
}

func decodeData(ev domain.RawBoardEvent, dst any) error {
	if err := sonic.Unmarshal(ev.Data, dst); err != nil {
		return fmt.Errorf("client.View.Apply: decode %s: %w", ev.Type, err)
	}
	return nil
}

// moveTask places a task at pos in listID using the same ordering rules as the
// server, renumbering the affected scopes. It returns the final position.
func (v *View) moveTask(taskID, listID uuid.UUID, pos int) (int, error) {
	t, ok := v.tasks[taskID]
	if !ok {
		return 0, fmt.Errorf("task %s: %w", taskID, ErrDiverged)
	}
	if _, ok := v.lists[listID]; !ok {
		return 0, fmt.Errorf("list %s: %w", listID, ErrDiverged)
	}

	src := v.taskScope(t.ListID)
	from := slices.Index(src, taskID)

	if t.ListID == listID {
		after, final, err := ordering.Move(src, from, pos)
		if err != nil {
			return 0, err
		}
		v.setTaskPositions(listID, after)
		return final, nil
	}

	newSrc, newDst, final, err := ordering.MoveAcross(src, v.taskScope(listID), from, pos)
	if err != nil {
		return 0, err
	}
	v.setTaskPositions(listID, newDst)
	v.setTaskPositionsOf(newSrc)
	return final, nil
}

func (v *View) removeTask(id uuid.UUID) {
	t, ok := v.tasks[id]
	if !ok {
		return
	}
	delete(v.tasks, id)
	delete(v.proposed, id)
	v.setTaskPositionsOf(v.taskScope(t.ListID))
}

func (v *View) removeList(id uuid.UUID) {
	delete(v.lists, id)
	for tid, t := range v.tasks {
		if t.ListID == id {
			delete(v.tasks, tid)
			delete(v.proposed, tid)
		}
	}
	for tid, lid := range v.proposed {
		if lid == id {
			delete(v.proposed, tid)
		}
	}
	v.setListPositions(v.listScope())
}

func (v *View) reorderLists(order []uuid.UUID) {
	v.setListPositions(ordering.ReorderFull(v.listScope(), order))
}

// taskScope returns the dense order of a list's tasks from their positions.
func (v *View) taskScope(listID uuid.UUID) []uuid.UUID {
	var entries []ordering.Entry[uuid.UUID]
	for _, t := range v.tasks {
		if t.ListID == listID {
			entries = append(entries, ordering.Entry[uuid.UUID]{ID: t.ID, Position: t.Position})
		}
	}
	return normalize(entries)
}

func (v *View) listScope() []uuid.UUID {
	entries := make([]ordering.Entry[uuid.UUID], 0, len(v.lists))
	for _, l := range v.lists {
		entries = append(entries, ordering.Entry[uuid.UUID]{ID: l.ID, Position: l.Position})
	}
	return normalize(entries)
}

func (v *View) setTaskPositions(listID uuid.UUID, order []uuid.UUID) {
	for i, id := range order {
		if t, ok := v.tasks[id]; ok {
			t.ListID = listID
			t.Position = i
		}
	}
}

func (v *View) setTaskPositionsOf(order []uuid.UUID) {
	for i, id := range order {
		if t, ok := v.tasks[id]; ok {
			t.Position = i
		}
	}
}

func (v *View) setListPositions(order []uuid.UUID) {
	for i, id := range order {
		if l, ok := v.lists[id]; ok {
			l.Position = i
		}
	}
}

// normalize orders entries by position, breaking ties by id so that map
// iteration order never leaks into the result.
func normalize(entries []ordering.Entry[uuid.UUID]) []uuid.UUID {
	slices.SortFunc(entries, func(a, b ordering.Entry[uuid.UUID]) int {
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return ordering.Normalize(entries)
}

func sortTasks(ts []*domain.TaskView) {
	slices.SortFunc(ts, func(a, b *domain.TaskView) int {
		if a.Position != b.Position {
			return a.Position - b.Position
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
}

func cloneTask(t *domain.TaskView) *domain.TaskView {
	return &domain.TaskView{Task: *t.Task.Clone(), Assignees: slices.Clone(t.Assignees)}
}
