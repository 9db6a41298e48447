package memory

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/kanban/internal/domain"
)

func cloneBoard(b *domain.Board) *domain.Board {
	c := *b
	c.Members = slices.Clone(b.Members)
	return &c
}

// byPosition orders by position, then id.
func byPosition(pa, pb int, ia, ib uuid.UUID) int {
	if c := cmp.Compare(pa, pb); c != 0 {
		return c
	}
	return bytes.Compare(ia[:], ib[:])
}

// --- Boards ---

type BoardRepo struct {
	db access
}

func (r *BoardRepo) Create(_ context.Context, b *domain.Board) error {
	return r.db.write(func(d *data) error {
		if _, ok := d.boards[b.ID]; ok {
			return fmt.Errorf("boardRepo.Create: %w", domain.ErrConflict)
		}
		d.boards[b.ID] = cloneBoard(b)
		return nil
	})
}

func (r *BoardRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Board, error) {
	var out *domain.Board
	err := r.db.read(func(d *data) error {
		b, ok := d.boards[id]
		if !ok {
			return fmt.Errorf("boardRepo.GetByID: %w", domain.ErrNotFound)
		}
		out = cloneBoard(b)
		return nil
	})
	return out, err
}

// Lock is an existence check; transactions already hold the store lock.
func (r *BoardRepo) Lock(_ context.Context, id uuid.UUID) error {
	return r.db.read(func(d *data) error {
		if _, ok := d.boards[id]; !ok {
			return fmt.Errorf("boardRepo.Lock: %w", domain.ErrNotFound)
		}
		return nil
	})
}

func (r *BoardRepo) ListForPrincipal(_ context.Context, principalID uuid.UUID) ([]*domain.Board, error) {
	var out []*domain.Board
	err := r.db.read(func(d *data) error {
		for _, b := range d.boards {
			if b.HasMember(principalID) {
				out = append(out, cloneBoard(b))
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b *domain.Board) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, err
}

func (r *BoardRepo) AddMember(_ context.Context, boardID, userID uuid.UUID) error {
	return r.db.write(func(d *data) error {
		b, ok := d.boards[boardID]
		if !ok {
			return fmt.Errorf("boardRepo.AddMember: %w", domain.ErrNotFound)
		}
		if !slices.Contains(b.Members, userID) {
			b.Members = append(b.Members, userID)
			b.UpdatedAt = time.Now()
		}
		return nil
	})
}

// Delete removes the board and everything that references it.
func (r *BoardRepo) Delete(_ context.Context, id uuid.UUID) error {
	return r.db.write(func(d *data) error {
		if _, ok := d.boards[id]; !ok {
			return fmt.Errorf("boardRepo.Delete: %w", domain.ErrNotFound)
		}
		delete(d.boards, id)
		for lid, l := range d.lists {
			if l.BoardID == id {
				delete(d.lists, lid)
			}
		}
		for tid, t := range d.tasks {
			if t.BoardID == id {
				delete(d.tasks, tid)
			}
		}
		d.activity = slices.DeleteFunc(d.activity, func(a *domain.ActivityRecord) bool {
			return a.BoardID == id
		})
		return nil
	})
}

// --- Lists ---

type ListRepo struct {
	db access
}

func (r *ListRepo) Create(_ context.Context, l *domain.List) error {
	return r.db.write(func(d *data) error {
		if _, ok := d.boards[l.BoardID]; !ok {
			return fmt.Errorf("listRepo.Create: board: %w", domain.ErrNotFound)
		}
		if _, ok := d.lists[l.ID]; ok {
			return fmt.Errorf("listRepo.Create: %w", domain.ErrConflict)
		}
		cp := *l
		d.lists[l.ID] = &cp
		return nil
	})
}

func (r *ListRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.List, error) {
	var out *domain.List
	err := r.db.read(func(d *data) error {
		l, ok := d.lists[id]
		if !ok {
			return fmt.Errorf("listRepo.GetByID: %w", domain.ErrNotFound)
		}
		cp := *l
		out = &cp
		return nil
	})
	return out, err
}

func (r *ListRepo) ListByBoard(_ context.Context, boardID uuid.UUID) ([]*domain.List, error) {
	var out []*domain.List
	err := r.db.read(func(d *data) error {
		for _, l := range d.lists {
			if l.BoardID == boardID {
				cp := *l
				out = append(out, &cp)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b *domain.List) int {
		return byPosition(a.Position, b.Position, a.ID, b.ID)
	})
	return out, err
}

func (r *ListRepo) UpdateName(_ context.Context, id uuid.UUID, name string) error {
	return r.db.write(func(d *data) error {
		l, ok := d.lists[id]
		if !ok {
			return fmt.Errorf("listRepo.UpdateName: %w", domain.ErrNotFound)
		}
		l.Name = name
		l.UpdatedAt = time.Now()
		return nil
	})
}

func (r *ListRepo) SetPositions(_ context.Context, boardID uuid.UUID, positions map[uuid.UUID]int) error {
	return r.db.write(func(d *data) error {
		for id := range positions {
			if l, ok := d.lists[id]; !ok || l.BoardID != boardID {
				return fmt.Errorf("listRepo.SetPositions: list %s: %w", id, domain.ErrNotFound)
			}
		}
		for id, pos := range positions {
			d.lists[id].Position = pos
		}
		return nil
	})
}

func (r *ListRepo) Delete(_ context.Context, id uuid.UUID) error {
	return r.db.write(func(d *data) error {
		if _, ok := d.lists[id]; !ok {
			return fmt.Errorf("listRepo.Delete: %w", domain.ErrNotFound)
		}
		delete(d.lists, id)
		for tid, t := range d.tasks {
			if t.ListID == id {
				delete(d.tasks, tid)
			}
		}
		return nil
	})
}

// --- Tasks ---

type TaskRepo struct {
	db access
}

func (r *TaskRepo) Create(_ context.Context, t *domain.Task) error {
	return r.db.write(func(d *data) error {
		l, ok := d.lists[t.ListID]
		if !ok || l.BoardID != t.BoardID {
			return fmt.Errorf("taskRepo.Create: list: %w", domain.ErrNotFound)
		}
		if _, ok := d.tasks[t.ID]; ok {
			return fmt.Errorf("taskRepo.Create: %w", domain.ErrConflict)
		}
		d.tasks[t.ID] = t.Clone()
		return nil
	})
}

func (r *TaskRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	var out *domain.Task
	err := r.db.read(func(d *data) error {
		t, ok := d.tasks[id]
		if !ok {
			return fmt.Errorf("taskRepo.GetByID: %w", domain.ErrNotFound)
		}
		out = t.Clone()
		return nil
	})
	return out, err
}

func (r *TaskRepo) list(match func(t *domain.Task) bool) ([]*domain.Task, error) {
	var out []*domain.Task
	err := r.db.read(func(d *data) error {
		for _, t := range d.tasks {
			if match(t) {
				out = append(out, t.Clone())
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b *domain.Task) int {
		return byPosition(a.Position, b.Position, a.ID, b.ID)
	})
	return out, err
}

func (r *TaskRepo) ListByList(_ context.Context, listID uuid.UUID) ([]*domain.Task, error) {
	return r.list(func(t *domain.Task) bool { return t.ListID == listID })
}

func (r *TaskRepo) ListByBoard(_ context.Context, boardID uuid.UUID) ([]*domain.Task, error) {
	return r.list(func(t *domain.Task) bool { return t.BoardID == boardID })
}

func (r *TaskRepo) Update(_ context.Context, t *domain.Task) error {
	return r.db.write(func(d *data) error {
		if _, ok := d.tasks[t.ID]; !ok {
			return fmt.Errorf("taskRepo.Update: %w", domain.ErrNotFound)
		}
		if l, ok := d.lists[t.ListID]; !ok || l.BoardID != t.BoardID {
			return fmt.Errorf("taskRepo.Update: list: %w", domain.ErrNotFound)
		}
		d.tasks[t.ID] = t.Clone()
		return nil
	})
}

func (r *TaskRepo) SetPositions(_ context.Context, listID uuid.UUID, positions map[uuid.UUID]int) error {
	return r.db.write(func(d *data) error {
		for id := range positions {
			if t, ok := d.tasks[id]; !ok || t.ListID != listID {
				return fmt.Errorf("taskRepo.SetPositions: task %s: %w", id, domain.ErrNotFound)
			}
		}
		for id, pos := range positions {
			d.tasks[id].Position = pos
		}
		return nil
	})
}

func (r *TaskRepo) Delete(_ context.Context, id uuid.UUID) error {
	return r.db.write(func(d *data) error {
		if _, ok := d.tasks[id]; !ok {
			return fmt.Errorf("taskRepo.Delete: %w", domain.ErrNotFound)
		}
		delete(d.tasks, id)
		return nil
	})
}

func (r *TaskRepo) DeleteByList(_ context.Context, listID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.write(func(d *data) error {
		for id, t := range d.tasks {
			if t.ListID == listID {
				delete(d.tasks, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

// --- Activity ---

type ActivityRepo struct {
	db access
}

func (r *ActivityRepo) Record(_ context.Context, rec *domain.ActivityRecord) error {
	cp := *rec
	return r.db.write(func(d *data) error {
		d.activity = append(d.activity, &cp)
		return nil
	})
}

// ListByBoard returns up to limit records, newest first.
func (r *ActivityRepo) ListByBoard(_ context.Context, boardID uuid.UUID, limit int) ([]*domain.ActivityRecord, error) {
	var out []*domain.ActivityRecord
	err := r.db.read(func(d *data) error {
		for i := len(d.activity) - 1; i >= 0 && len(out) < limit; i-- {
			if a := d.activity[i]; a.BoardID == boardID {
				cp := *a
				out = append(out, &cp)
			}
		}
		return nil
	})
	return out, err
}

func (r *ActivityRepo) DeleteByBoard(_ context.Context, boardID uuid.UUID) error {
	return r.db.write(func(d *data) error {
		d.activity = slices.DeleteFunc(d.activity, func(a *domain.ActivityRecord) bool {
			return a.BoardID == boardID
		})
		return nil
	})
}

// --- Users ---

type UserRepo struct {
	db access
}

func (r *UserRepo) Create(_ context.Context, u *domain.User) error {
	return r.db.write(func(d *data) error {
		for _, existing := range d.users {
			if existing.ID == u.ID || strings.EqualFold(existing.Email, u.Email) {
				return fmt.Errorf("userRepo.Create: %w", domain.ErrConflict)
			}
		}
		cp := *u
		d.users[u.ID] = &cp
		return nil
	})
}

func (r *UserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	var out *domain.User
	err := r.db.read(func(d *data) error {
		u, ok := d.users[id]
		if !ok {
			return fmt.Errorf("userRepo.GetByID: %w", domain.ErrNotFound)
		}
		cp := *u
		out = &cp
		return nil
	})
	return out, err
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	var out *domain.User
	err := r.db.read(func(d *data) error {
		for _, u := range d.users {
			if strings.EqualFold(u.Email, email) {
				cp := *u
				out = &cp
				return nil
			}
		}
		return fmt.Errorf("userRepo.GetByEmail: %w", domain.ErrNotFound)
	})
	return out, err
}

func (r *UserRepo) ListByIDs(_ context.Context, ids []uuid.UUID) ([]*domain.User, error) {
	var out []*domain.User
	err := r.db.read(func(d *data) error {
		for _, id := range ids {
			if u, ok := d.users[id]; ok {
				cp := *u
				out = append(out, &cp)
			}
		}
		return nil
	})
	return out, err
}
