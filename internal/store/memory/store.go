// Package memory is an in-process implementation of domain.Store used for
// tests and single-node development. Transactions take the store's write
// lock, run against a private copy of the data and swap it in on success.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/gosuda/kanban/internal/domain"
)

type data struct {
	boards   map[uuid.UUID]*domain.Board
	lists    map[uuid.UUID]*domain.List
	tasks    map[uuid.UUID]*domain.Task
	users    map[uuid.UUID]*domain.User
	activity []*domain.ActivityRecord
}

func newData() *data {
	return &data{
		boards: make(map[uuid.UUID]*domain.Board),
		lists:  make(map[uuid.UUID]*domain.List),
		tasks:  make(map[uuid.UUID]*domain.Task),
		users:  make(map[uuid.UUID]*domain.User),
	}
}

func (d *data) clone() *data {
	c := newData()
	for id, b := range d.boards {
		c.boards[id] = cloneBoard(b)
	}
	for id, l := range d.lists {
		cp := *l
		c.lists[id] = &cp
	}
	for id, t := range d.tasks {
		c.tasks[id] = t.Clone()
	}
	for id, u := range d.users {
		cp := *u
		c.users[id] = &cp
	}
	c.activity = append(c.activity, d.activity...)
	return c
}

// access runs fn against the data with the appropriate locking.
type access interface {
	read(fn func(d *data) error) error
	write(fn func(d *data) error) error
}

type Store struct {
	mu   sync.RWMutex
	data *data
}

func New() *Store {
	return &Store{data: newData()}
}

func (s *Store) read(fn func(d *data) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.data)
}

func (s *Store) write(fn func(d *data) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func (s *Store) Boards() domain.BoardRepository      { return &BoardRepo{db: s} }
func (s *Store) Lists() domain.ListRepository        { return &ListRepo{db: s} }
func (s *Store) Tasks() domain.TaskRepository        { return &TaskRepo{db: s} }
func (s *Store) Activity() domain.ActivityRepository { return &ActivityRepo{db: s} }
func (s *Store) Users() domain.UserRepository        { return &UserRepo{db: s} }

// WithinTx serializes fn with every other transaction and commits its
// writes only when fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &txStore{data: s.data.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.data = tx.data
	return nil
}

// txStore is the view handed to WithinTx callbacks. The parent's write lock
// is held for its lifetime, so it needs no locking of its own.
type txStore struct {
	data *data
}

func (t *txStore) read(fn func(d *data) error) error  { return fn(t.data) }
func (t *txStore) write(fn func(d *data) error) error { return fn(t.data) }

func (t *txStore) Boards() domain.BoardRepository      { return &BoardRepo{db: t} }
func (t *txStore) Lists() domain.ListRepository        { return &ListRepo{db: t} }
func (t *txStore) Tasks() domain.TaskRepository        { return &TaskRepo{db: t} }
func (t *txStore) Activity() domain.ActivityRepository { return &ActivityRepo{db: t} }
func (t *txStore) Users() domain.UserRepository        { return &UserRepo{db: t} }

func (t *txStore) WithinTx(_ context.Context, fn func(tx domain.Store) error) error {
	return fn(t)
}
