package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/kanban/internal/domain"
	"github.com/gosuda/kanban/internal/realtime"
	"github.com/gosuda/kanban/internal/server/middleware"
)

// BoardAuthorizer decides whether a principal may join a board channel.
// *board.Service satisfies this interface.
type BoardAuthorizer interface {
	CanView(ctx context.Context, p domain.Principal, boardID uuid.UUID) (bool, error)
}

const (
	actionJoin  = "join"
	actionLeave = "leave"

	shutdownReason = "server shutting down"
)

type clientMessage struct {
	Action  string    `json:"action"`
	BoardID uuid.UUID `json:"boardId"`
}

// Handler serves the board channel WebSocket. One connection may join any
// number of boards; every committed event of a joined board is forwarded.
type Handler struct {
	hub            *realtime.Hub
	boards         BoardAuthorizer
	originPatterns []string

	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool
}

// NewHandler creates a Handler. originPatterns is passed to websocket.Accept;
// an empty list allows same-origin upgrades only.
func NewHandler(hub *realtime.Hub, boards BoardAuthorizer, originPatterns ...string) *Handler {
	return &Handler{
		hub:            hub,
		boards:         boards,
		originPatterns: originPatterns,
		conns:          make(map[*websocket.Conn]struct{}),
	}
}

// CloseAll closes every open connection with StatusGoingAway and refuses
// connections accepted afterwards. It returns once every close handshake has
// finished or timed out. http.Server.Shutdown does not track hijacked
// connections, so servers call this from RegisterOnShutdown.
func (h *Handler) CloseAll() {
	h.mu.Lock()
	h.closed = true
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Close(websocket.StatusGoingAway, shutdownReason)
		}()
	}
	wg.Wait()

	if len(conns) > 0 {
		log.Info().Int("connections", len(conns)).Msg("websocket: closed connections for shutdown")
	}
}

// Open reports the number of tracked connections.
func (h *Handler) Open() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Handler) track(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.conns[conn] = struct{}{}
	return true
}

func (h *Handler) untrack(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
}

// ServeHTTP must run behind middleware.WebSocketAuth.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "not authorized", http.StatusUnauthorized)
		return
	}

	// Lift the server's read/write timeouts; the connection is long-lived.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	if !h.track(conn) {
		_ = conn.Close(websocket.StatusGoingAway, shutdownReason)
		return
	}
	defer h.untrack(conn)

	connID := uuid.NewString()
	sub := h.hub.Register(connID)
	defer h.hub.Unregister(connID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.forward(ctx, cancel, conn, sub)

	for {
		var msg clientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				log.Debug().Err(err).Str("conn_id", connID).Msg("websocket read")
			}
			return
		}
		if err := h.handle(ctx, conn, p, connID, msg); err != nil {
			log.Debug().Err(err).Str("conn_id", connID).Msg("websocket write")
			return
		}
	}
}

func (h *Handler) handle(ctx context.Context, conn *websocket.Conn, p domain.Principal, connID string, msg clientMessage) error {
	switch msg.Action {
	case actionJoin:
		allowed, err := h.boards.CanView(ctx, p, msg.BoardID)
		if err != nil {
			log.Warn().Err(err).Str("board_id", msg.BoardID.String()).Msg("websocket: membership check failed")
			return reply(ctx, conn, domain.EventChannelError, msg.BoardID, "failed to join board")
		}
		if !allowed {
			return reply(ctx, conn, domain.EventChannelError, msg.BoardID, "not authorized to view this board")
		}
		if err := h.hub.Join(connID, msg.BoardID); err != nil {
			return reply(ctx, conn, domain.EventChannelError, msg.BoardID, "failed to join board")
		}
		return reply(ctx, conn, domain.EventJoined, msg.BoardID, nil)

	case actionLeave:
		h.hub.Leave(connID, msg.BoardID)
		return reply(ctx, conn, domain.EventLeft, msg.BoardID, nil)

	default:
		return reply(ctx, conn, domain.EventChannelError, msg.BoardID, "unknown action")
	}
}

// forward copies the subscriber's events to the connection until either side
// goes away.
func (h *Handler) forward(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, sub *realtime.Subscriber) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Messages():
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "channel closed")
				return
			}
			if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
				log.Debug().Err(err).Str("conn_id", sub.ID()).Msg("websocket write")
				return
			}
		}
	}
}

func reply(ctx context.Context, conn *websocket.Conn, typ domain.EventType, boardID uuid.UUID, data any) error {
	payload, err := realtime.Encode(domain.BoardEvent{Type: typ, BoardID: boardID, Data: data})
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, payload)
}
