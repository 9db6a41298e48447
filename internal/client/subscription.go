package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/kanban/internal/domain"
	"github.com/gosuda/kanban/internal/realtime"
)

// ErrJoinRejected is returned by Subscribe when the server refuses to add the
// connection to the board channel.
var ErrJoinRejected = errors.New("client: join rejected")

type channelMessage struct {
	Action  string    `json:"action"`
	BoardID uuid.UUID `json:"boardId"`
}

// Subscription feeds a board channel into a Board until closed.
type Subscription struct {
	conn  *websocket.Conn
	board *Board

	cancel context.CancelFunc
	done   chan struct{}

	closing   atomic.Bool
	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

// Subscribe dials the server's board channel endpoint, joins b's board and
// starts applying its events to b. Once the server acknowledges the join, b
// is refetched before any event is applied, so changes committed between an
// earlier Load and the join are not lost. Events that arrive during the
// refetch are applied on top of it.
func (h *HTTPAPI) Subscribe(ctx context.Context, b *Board) (*Subscription, error) {
	wsURL, err := h.websocketURL()
	if err != nil {
		return nil, fmt.Errorf("client.Subscribe: %w", err)
	}

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{ //nolint:bodyclose // closed by the websocket library
		HTTPHeader: h.authHeader(),
	})
	if err != nil {
		return nil, fmt.Errorf("client.Subscribe: dial: %w", err)
	}
	conn.SetReadLimit(1 << 20)

	if err := join(ctx, conn, b.ID()); err != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		return nil, fmt.Errorf("client.Subscribe: %w", err)
	}
	if err := b.Refetch(ctx); err != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		return nil, fmt.Errorf("client.Subscribe: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Subscription{
		conn:   conn,
		board:  b,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.run(runCtx)
	return s, nil
}

// join sends the join request and waits for the server's reply.
func join(ctx context.Context, conn *websocket.Conn, boardID uuid.UUID) error {
	if err := wsjson.Write(ctx, conn, channelMessage{Action: "join", BoardID: boardID}); err != nil {
		return fmt.Errorf("send join: %w", err)
	}
	for {
		_, payload, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("await join: %w", err)
		}
		ev, err := realtime.Decode(payload)
		if err != nil || ev.BoardID != boardID {
			continue
		}
		switch ev.Type {
		case domain.EventJoined:
			return nil
		case domain.EventChannelError:
			var msg string
			_ = decodeData(ev, &msg)
			return fmt.Errorf("%w: %s", ErrJoinRejected, msg)
		}
	}
}

func (s *Subscription) run(ctx context.Context) {
	defer close(s.done)
	for {
		_, payload, err := s.conn.Read(ctx)
		if err != nil {
			if !s.closing.Load() && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				s.setErr(err)
			}
			return
		}

		ev, err := realtime.Decode(payload)
		if err != nil {
			log.Debug().Err(err).Msg("client: dropping malformed channel message")
			continue
		}
		if err := s.board.HandleEvent(ctx, ev); err != nil {
			log.Warn().Err(err).Str("board_id", ev.BoardID.String()).Msg("client: event not applied")
		}
	}
}

func (s *Subscription) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Done is closed when the subscription stops receiving events.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err reports why the subscription stopped, or nil if it was closed.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close leaves the board channel and closes the connection.
func (s *Subscription) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		_ = wsjson.Write(ctx, s.conn, channelMessage{Action: "leave", BoardID: s.board.ID()})
		err = s.conn.Close(websocket.StatusNormalClosure, "")
		s.cancel()
		<-s.done
	})
	if err != nil {
		return fmt.Errorf("client.Subscription.Close: %w", err)
	}
	return nil
}
