// Package board is the aggregate store for boards, lists and tasks. It is the
// only writer of positions: every mutation authorizes the principal, applies
// the ordering package inside one store transaction, and broadcasts the
// committed change to the board's channel.
package board

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gosuda/kanban/internal/domain"
)

// Broadcaster delivers committed board events to the board's subscribers.
// *realtime.Hub and *redis.Broadcaster satisfy this interface.
type Broadcaster interface {
	Publish(ctx context.Context, ev domain.BoardEvent) error
}

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 200
)

// Service implements the board aggregate operations.
type Service struct {
	store       domain.Store
	broadcaster Broadcaster
	tracer      trace.Tracer
	now         func() time.Time
}

const tracerName = "github.com/gosuda/kanban/internal/board"

// Option configures a Service.
type Option func(*Service)

// WithTracerProvider records spans through tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		s.tracer = tp.Tracer(tracerName)
	}
}

// NewService creates a Service persisting through store and publishing through broadcaster.
func NewService(store domain.Store, broadcaster Broadcaster, opts ...Option) *Service {
	s := &Service{
		store:       store,
		broadcaster: broadcaster,
		tracer:      otel.Tracer(tracerName),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// startSpan opens a span for one aggregate operation.
func (s *Service) startSpan(ctx context.Context, op string, p domain.Principal, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("principal.id", p.ID.String()))
	return s.tracer.Start(ctx, "board."+op, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// publish sends ev after commit. Delivery failures never fail the request.
func (s *Service) publish(ctx context.Context, boardID uuid.UUID, typ domain.EventType, data any) {
	ev := domain.BoardEvent{Type: typ, BoardID: boardID, Data: data}
	if err := s.broadcaster.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).
			Str("board_id", boardID.String()).
			Str("event", string(typ)).
			Msg("board: broadcast failed")
	}
}

// record appends an activity entry (fire and forget).
func (s *Service) record(ctx context.Context, p domain.Principal, boardID uuid.UUID, action string, taskID *uuid.UUID, detail string) {
	rec := &domain.ActivityRecord{
		ID:          uuid.New(),
		PrincipalID: p.ID,
		BoardID:     boardID,
		Action:      action,
		TaskID:      taskID,
		Detail:      detail,
		CreatedAt:   s.now(),
	}
	if err := s.store.Activity().Record(ctx, rec); err != nil {
		log.Warn().Err(err).
			Str("board_id", boardID.String()).
			Str("action", action).
			Msg("board: failed to record activity")
	}
}

// lockBoard takes the board's write lock and loads it.
func lockBoard(ctx context.Context, tx domain.Store, boardID uuid.UUID) (*domain.Board, error) {
	if err := tx.Boards().Lock(ctx, boardID); err != nil {
		return nil, notFound(err, "board not found")
	}
	b, err := tx.Boards().GetByID(ctx, boardID)
	if err != nil {
		return nil, notFound(err, "board not found")
	}
	return b, nil
}

// requireOwner loads and locks the board and checks that p owns it.
func requireOwner(ctx context.Context, tx domain.Store, p domain.Principal, boardID uuid.UUID, action string) (*domain.Board, error) {
	b, err := lockBoard(ctx, tx, boardID)
	if err != nil {
		return nil, err
	}
	if b.RoleOf(p.ID) != domain.BoardRoleOwner {
		return nil, domain.Errorf(domain.ErrForbidden, "not authorized to %s", action)
	}
	return b, nil
}

// resolveAssignees returns summaries for ids, in the order of ids.
func resolveAssignees(ctx context.Context, users domain.UserRepository, ids []uuid.UUID) ([]domain.UserSummary, error) {
	out := make([]domain.UserSummary, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	found, err := users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve assignees: %w", err)
	}
	byID := make(map[uuid.UUID]*domain.User, len(found))
	for _, u := range found {
		byID[u.ID] = u
	}
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u.Summary())
		}
	}
	return out, nil
}

// checkAssignees dedupes ids and requires every one to be a board member.
func checkAssignees(b *domain.Board, ids []uuid.UUID) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		if !b.HasMember(id) {
			return nil, domain.Errorf(domain.ErrValidation, "assignee %s is not a member of this board", id)
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
