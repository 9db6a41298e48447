// Package ordering maintains dense, zero-based positions within one scope
// (the tasks of a list, or the lists of a board).
//
// A scope is represented as a slice of ids where the index is the position,
// so every result is dense by construction. Functions never mutate their
// inputs and hold no state; callers own concurrency control.
package ordering

import (
	"errors"
	"fmt"
	"slices"
)

// ErrOutOfRange is returned when a source position does not exist in the scope.
var ErrOutOfRange = errors.New("ordering: position out of range")

// Entry is an id paired with its stored position, as read from storage.
type Entry[ID comparable] struct {
	ID       ID
	Position int
}

// Normalize builds a dense scope from stored entries. Entries are stably
// sorted by position, so sparse or duplicated positions collapse into
// 0..N-1 with input order breaking ties.
func Normalize[ID comparable](entries []Entry[ID]) []ID {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b Entry[ID]) int {
		return a.Position - b.Position
	})
	out := make([]ID, len(sorted))
	for i, e := range sorted {
		out[i] = e.ID
	}
	return out
}

// InsertAt places id at target, clamped to [0, len(items)]. Items at or after
// target shift up by one. It returns the new scope and the position used.
func InsertAt[ID comparable](items []ID, id ID, target int) ([]ID, int) {
	target = clamp(target, 0, len(items))
	out := make([]ID, 0, len(items)+1)
	out = append(out, items[:target]...)
	out = append(out, id)
	out = append(out, items[target:]...)
	return out, target
}

// RemoveAt removes the item at pos. Items after pos shift down by one.
func RemoveAt[ID comparable](items []ID, pos int) ([]ID, ID, error) {
	var zero ID
	if pos < 0 || pos >= len(items) {
		return nil, zero, fmt.Errorf("ordering.RemoveAt: %d of %d: %w", pos, len(items), ErrOutOfRange)
	}
	removed := items[pos]
	out := make([]ID, 0, len(items)-1)
	out = append(out, items[:pos]...)
	out = append(out, items[pos+1:]...)
	return out, removed, nil
}

// Move relocates the item at from to to within one scope. Moving down shifts
// (from, to] down by one; moving up shifts [to, from) up by one. to is
// clamped to [0, len(items)-1]. It returns the new scope and the final position.
func Move[ID comparable](items []ID, from, to int) ([]ID, int, error) {
	if from < 0 || from >= len(items) {
		return nil, 0, fmt.Errorf("ordering.Move: %d of %d: %w", from, len(items), ErrOutOfRange)
	}
	to = clamp(to, 0, len(items)-1)
	if from == to {
		return slices.Clone(items), to, nil
	}
	rest, id, err := RemoveAt(items, from)
	if err != nil {
		return nil, 0, fmt.Errorf("ordering.Move: %w", err)
	}
	out, pos := InsertAt(rest, id, to)
	return out, pos, nil
}

// MoveAcross removes the item at from in src and inserts it at to in dst.
// The two scopes are independent position spaces.
func MoveAcross[ID comparable](src, dst []ID, from, to int) (newSrc, newDst []ID, pos int, err error) {
	newSrc, id, err := RemoveAt(src, from)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("ordering.MoveAcross: %w", err)
	}
	newDst, pos = InsertAt(dst, id, to)
	return newSrc, newDst, pos, nil
}

// ReorderFull replaces the scope order with order. Ids in order that are not
// in items, and repeated ids, are ignored. Items omitted from order keep their
// prior relative order and are appended at the end.
func ReorderFull[ID comparable](items, order []ID) []ID {
	known := make(map[ID]struct{}, len(items))
	for _, id := range items {
		known[id] = struct{}{}
	}

	out := make([]ID, 0, len(items))
	placed := make(map[ID]struct{}, len(items))
	for _, id := range order {
		if _, ok := known[id]; !ok {
			continue
		}
		if _, dup := placed[id]; dup {
			continue
		}
		placed[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range items {
		if _, ok := placed[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// Diff returns the ids of after whose stored position differs from their
// index in after, mapped to that index. Ids absent from stored are included.
func Diff[ID comparable](stored []Entry[ID], after []ID) map[ID]int {
	prev := make(map[ID]int, len(stored))
	for _, e := range stored {
		prev[e.ID] = e.Position
	}
	out := make(map[ID]int)
	for i, id := range after {
		if p, ok := prev[id]; !ok || p != i {
			out[id] = i
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
