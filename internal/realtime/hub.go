// Package realtime fans committed board events out to the connections that
// joined each board's channel. Delivery is at most once: a subscriber whose
// send buffer is full misses the event and nothing is replayed.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/kanban/internal/domain"
)

// ErrUnknownConnection is returned when joining with an unregistered connection id.
var ErrUnknownConnection = errors.New("realtime: unknown connection")

const DefaultBufferSize = 64

// Subscriber is one registered connection.
type Subscriber struct {
	id      string
	send    chan []byte
	boards  map[uuid.UUID]struct{} // guarded by Hub.mu
	dropped atomic.Int64
}

func (s *Subscriber) ID() string { return s.id }

// Messages yields encoded events for every joined board. It is closed by
// Hub.Unregister.
func (s *Subscriber) Messages() <-chan []byte { return s.send }

// Dropped counts events discarded because the buffer was full.
func (s *Subscriber) Dropped() int64 { return s.dropped.Load() }

type Hub struct {
	mu       sync.RWMutex
	conns    map[string]*Subscriber
	channels map[uuid.UUID]map[string]*Subscriber
	bufSize  int
}

// NewHub creates a Hub whose subscribers buffer up to bufSize events.
func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Hub{
		conns:    make(map[string]*Subscriber),
		channels: make(map[uuid.UUID]map[string]*Subscriber),
		bufSize:  bufSize,
	}
}

// Register adds a connection. Registering an id twice replaces the earlier
// subscriber, which is unregistered first.
func (h *Hub) Register(connID string) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.conns[connID]; ok {
		h.removeLocked(old)
	}
	sub := &Subscriber{
		id:     connID,
		send:   make(chan []byte, h.bufSize),
		boards: make(map[uuid.UUID]struct{}),
	}
	h.conns[connID] = sub
	return sub
}

// Unregister leaves every channel the connection joined and closes its
// message stream.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.conns[connID]; ok {
		h.removeLocked(sub)
	}
}

func (h *Hub) removeLocked(sub *Subscriber) {
	for boardID := range sub.boards {
		h.leaveLocked(sub, boardID)
	}
	delete(h.conns, sub.id)
	close(sub.send)
}

// Join subscribes the connection to the board's channel. Joining twice is a no-op.
func (h *Hub) Join(connID string, boardID uuid.UUID) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.conns[connID]
	if !ok {
		return fmt.Errorf("realtime.Hub.Join: %s: %w", connID, ErrUnknownConnection)
	}
	members, ok := h.channels[boardID]
	if !ok {
		members = make(map[string]*Subscriber)
		h.channels[boardID] = members
	}
	members[connID] = sub
	sub.boards[boardID] = struct{}{}
	return nil
}

// Leave unsubscribes the connection from the board's channel.
func (h *Hub) Leave(connID string, boardID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.conns[connID]; ok {
		h.leaveLocked(sub, boardID)
	}
}

func (h *Hub) leaveLocked(sub *Subscriber, boardID uuid.UUID) {
	delete(sub.boards, boardID)
	members := h.channels[boardID]
	delete(members, sub.id)
	if len(members) == 0 {
		delete(h.channels, boardID)
	}
}

// Members returns the number of connections joined to the board's channel.
func (h *Hub) Members(boardID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[boardID])
}

// Deliver hands payload to every subscriber of the board without blocking
// and returns how many accepted it.
func (h *Hub) Deliver(boardID uuid.UUID, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, sub := range h.channels[boardID] {
		select {
		case sub.send <- payload:
			delivered++
		default:
			sub.dropped.Add(1)
			log.Debug().
				Str("conn_id", sub.id).
				Str("board_id", boardID.String()).
				Msg("realtime: subscriber buffer full, event dropped")
		}
	}
	return delivered
}

// Publish encodes ev and delivers it to the board's local subscribers.
func (h *Hub) Publish(_ context.Context, ev domain.BoardEvent) error {
	payload, err := Encode(ev)
	if err != nil {
		return fmt.Errorf("realtime.Hub.Publish: %w", err)
	}
	h.Deliver(ev.BoardID, payload)
	return nil
}

// Encode renders ev in the wire format shared by the hub, the Redis relay
// and clients.
func Encode(ev domain.BoardEvent) ([]byte, error) {
	payload, err := sonic.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	return payload, nil
}

// Decode parses a wire event, leaving its payload raw.
func Decode(payload []byte) (domain.RawBoardEvent, error) {
	var ev domain.RawBoardEvent
	if err := sonic.Unmarshal(payload, &ev); err != nil {
		return ev, fmt.Errorf("decode event: %w", err)
	}
	if ev.Type == "" || ev.BoardID == uuid.Nil {
		return ev, errors.New("decode event: missing type or board id")
	}
	return ev, nil
}
