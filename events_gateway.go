package mirror

import (
	"context"
	"fmt"
	"time"

	"github.com/WelcomerTeam/Mirror/discord"
)

// GatewayHandler handles a single gateway opcode. generation identifies the
// transport the message was read from.
type GatewayHandler func(ctx context.Context, c *Connection, generation uint64, msg *discord.GatewayPayload) error

var gatewayHandlers = make(map[discord.GatewayOp]GatewayHandler)

func registerGatewayEvent(op discord.GatewayOp, handler GatewayHandler) {
	gatewayHandlers[op] = handler
}

// GatewayDispatch routes a message to the handler registered for its op.
func GatewayDispatch(ctx context.Context, c *Connection, generation uint64, msg *discord.GatewayPayload) error {
	handler, ok := gatewayHandlers[msg.Op]
	if !ok {
		return ErrNoGatewayHandler
	}

	return handler(ctx, c, generation, msg)
}

func gatewayOpHello(ctx context.Context, c *Connection, generation uint64, msg *discord.GatewayPayload) error {
	var hello discord.Hello

	err := c.codec.Unmarshal(msg.Data, &hello)
	if err != nil {
		return fmt.Errorf("failed to unmarshal hello: %w", err)
	}

	if hello.HeartbeatInterval <= 0 {
		c.forceReconnect(generation, "invalid hello")

		return ErrInvalidHeartbeatInterval
	}

	interval := time.Duration(hello.HeartbeatInterval) * time.Millisecond

	c.mu.Lock()

	if generation != c.generation {
		c.mu.Unlock()

		return nil
	}

	c.heartbeat.Arm(interval, func() { c.beat(generation) })
	transport := c.transport
	c.mu.Unlock()

	c.Logger.Debug().Dur("interval", interval).Msg("Received hello")

	if transport == nil {
		return ErrNotReady
	}

	return c.handshake(ctx, generation, transport)
}

func gatewayOpDispatch(ctx context.Context, c *Connection, generation uint64, msg *discord.GatewayPayload) error {
	c.mu.Lock()

	if generation != c.generation {
		c.mu.Unlock()

		return nil
	}

	if msg.Sequence != nil {
		if expected, ok := c.session.Advance(*msg.Sequence); !ok {
			c.Logger.Warn().
				Uint64("expected", expected).
				Uint64("received", *msg.Sequence).
				Msg("Received out of order sequence")
		}
	}

	c.mu.Unlock()

	if !discord.KnownEvent(msg.Type) {
		c.Logger.Debug().Str("type", msg.Type).Msg("Received dispatch without a dedicated variant")
	}

	event, err := discord.DecodeEvent(msg.Type, msg.Data, c.codec.Unmarshal)
	if err != nil {
		mirrorDecodeErrors.WithLabelValues(c.options.Identifier).Inc()

		return fmt.Errorf("failed to decode %s: %w", msg.Type, err)
	}

	switch event := event.(type) {
	case *discord.Ready:
		c.mu.Lock()
		c.session.Established(event.SessionID, event.ResumeGatewayURL)
		c.setStateLocked(StateReady)
		c.mu.Unlock()

		c.ready.Store(true)

		c.Logger.Info().Str("session_id", event.SessionID).Msg("Received READY payload")

		c.emitStatus(StatusUpdate{Kind: StatusReady})
	case *discord.Resumed:
		c.mu.Lock()
		c.setStateLocked(StateReady)
		presence := c.presence
		c.mu.Unlock()

		c.ready.Store(true)

		c.Logger.Info().Msg("Resumed gateway session")

		if presence != nil {
			if err := c.Send(ctx, discord.GatewayOpPresenceUpdate, presence); err != nil {
				c.Logger.Warn().Err(err).Msg("Failed to restore presence after resume")
			}
		}

		c.emitStatus(StatusUpdate{Kind: StatusResumed})
	}

	mirrorDispatchCount.WithLabelValues(c.options.Identifier, msg.Type).Inc()

	if handled := c.bus.Publish(ctx, event.EventName(), event); handled == 0 {
		c.Logger.Debug().Str("type", msg.Type).Msg("No handler for dispatch")
	}

	return nil
}

func gatewayOpHeartbeat(ctx context.Context, c *Connection, generation uint64, _ *discord.GatewayPayload) error {
	c.mu.Lock()

	if generation != c.generation {
		c.mu.Unlock()

		return nil
	}

	sequence := c.session.Sequence()
	transport := c.transport
	c.heartbeat.MarkSent()
	c.mu.Unlock()

	if transport == nil {
		return ErrNotReady
	}

	err := c.write(ctx, transport, discord.GatewayOpHeartbeat, sequence)
	if err != nil {
		return fmt.Errorf("failed to send requested heartbeat: %w", err)
	}

	return nil
}

func gatewayOpReconnect(_ context.Context, c *Connection, generation uint64, _ *discord.GatewayPayload) error {
	c.Logger.Info().Msg("Gateway requested reconnect")

	c.forceReconnect(generation, "requested")

	return nil
}

func gatewayOpInvalidSession(_ context.Context, c *Connection, generation uint64, msg *discord.GatewayPayload) error {
	var resumable discord.InvalidSession

	if len(msg.Data) > 0 {
		if err := c.codec.Unmarshal(msg.Data, &resumable); err != nil {
			return fmt.Errorf("failed to unmarshal invalid session: %w", err)
		}
	}

	c.Logger.Warn().Bool("resumable", bool(resumable)).Msg("Received invalid session")

	c.mu.Lock()

	if generation != c.generation {
		c.mu.Unlock()

		return nil
	}

	if !resumable {
		c.session.Invalidate()
	}

	c.mu.Unlock()

	c.ready.Store(false)
	c.forceReconnect(generation, "invalid session")

	return nil
}

func gatewayOpHeartbeatAck(_ context.Context, c *Connection, generation uint64, _ *discord.GatewayPayload) error {
	c.mu.Lock()

	if generation != c.generation {
		c.mu.Unlock()

		return nil
	}

	latency := c.heartbeat.Ack()
	c.mu.Unlock()

	mirrorGatewayLatency.WithLabelValues(c.options.Identifier).Set(float64(latency.Milliseconds()))

	return nil
}

func init() {
	registerGatewayEvent(discord.GatewayOpDispatch, gatewayOpDispatch)
	registerGatewayEvent(discord.GatewayOpHeartbeat, gatewayOpHeartbeat)
	registerGatewayEvent(discord.GatewayOpReconnect, gatewayOpReconnect)
	registerGatewayEvent(discord.GatewayOpInvalidSession, gatewayOpInvalidSession)
	registerGatewayEvent(discord.GatewayOpHello, gatewayOpHello)
	registerGatewayEvent(discord.GatewayOpHeartbeatACK, gatewayOpHeartbeatAck)
}
