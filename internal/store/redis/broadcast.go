package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/kanban/internal/domain"
	"github.com/gosuda/kanban/internal/realtime"
)

// Broadcaster publishes board events to the board's Redis channel so every
// server instance can relay them to its own connections.
type Broadcaster struct {
	ps *PubSub
}

func NewBroadcaster(ps *PubSub) *Broadcaster {
	return &Broadcaster{ps: ps}
}

func (b *Broadcaster) Publish(ctx context.Context, ev domain.BoardEvent) error {
	payload, err := realtime.Encode(ev)
	if err != nil {
		return fmt.Errorf("redis.Broadcaster.Publish: %w", err)
	}
	if err := b.ps.Publish(ctx, BoardChannel(ev.BoardID), payload); err != nil {
		return fmt.Errorf("redis.Broadcaster.Publish: %w", err)
	}
	return nil
}

// Deliverer receives relayed payloads. *realtime.Hub implements it.
type Deliverer interface {
	Deliver(boardID uuid.UUID, payload []byte) int
}

// Relay forwards every board channel message to a local Deliverer.
type Relay struct {
	ps      *PubSub
	target  Deliverer
	backoff time.Duration
}

func NewRelay(ps *PubSub, target Deliverer) *Relay {
	return &Relay{ps: ps, target: target, backoff: time.Second}
}

// Run relays messages until ctx is done, resubscribing after a dropped
// subscription. It returns nil on cancellation.
func (r *Relay) Run(ctx context.Context) error {
	for {
		messages, cleanup, err := r.ps.PSubscribe(ctx, BoardChannelPattern)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Msg("redis relay: subscribe failed, retrying")
		} else {
			log.Info().Str("pattern", BoardChannelPattern).Msg("redis relay subscribed")
			r.forward(messages)
			cleanup()
		}

		if ctx.Err() != nil {
			return nil
		}
		log.Warn().Dur("backoff", r.backoff).Msg("redis relay: subscription closed, reconnecting")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.backoff):
		}
	}
}

func (r *Relay) forward(messages <-chan Message) {
	for msg := range messages {
		boardID, err := ParseBoardChannel(msg.Channel)
		if err != nil {
			log.Warn().Err(err).Msg("redis relay: skipping message")
			continue
		}
		r.target.Deliver(boardID, msg.Payload)
	}
}
