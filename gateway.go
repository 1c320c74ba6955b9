package mirror

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/WelcomerTeam/Mirror/codec"
	"github.com/WelcomerTeam/Mirror/discord"
	"github.com/WelcomerTeam/Mirror/pkg/clock"
	"github.com/WelcomerTeam/Mirror/pkg/eventbus"
	"github.com/WelcomerTeam/Mirror/pkg/limiter"
	"github.com/rs/zerolog"
	gotils_strconv "github.com/savsgio/gotils/strconv"
	"go.uber.org/atomic"
	"nhooyr.io/websocket"
)

const (
	DefaultGatewayURL = "wss://gateway.discord.gg"

	// Number of failed dials before a reconnect gives up.
	ConnectRetries = 10

	MinReconnectWait = 1 * time.Second
	MaxReconnectWait = 60 * time.Second

	// Discord allows 120 gateway commands a minute. Heartbeats and the
	// handshake bypass the limiter, so external sends get slightly less.
	GatewayCommandLimit  = 110
	GatewayCommandWindow = time.Minute

	StatusChannelBuffer = 16
)

// ConnectionOptions configures a Connection.
type ConnectionOptions struct {
	Logger zerolog.Logger

	Codec  codec.Codec
	Dialer Dialer
	Clock  clock.Clock

	// Jitter overrides the random delay before the first heartbeat.
	Jitter func() time.Duration

	Identifier  string
	Token       string
	GatewayURL  string
	Properties  discord.IdentifyProperties
	Presence    *discord.UpdateStatus
	ClientState discord.ClientState

	Capabilities discord.Capabilities
	Compress     bool

	Retries          int32
	MinReconnectWait time.Duration
	MaxReconnectWait time.Duration
}

// Connection is the gateway protocol state machine. Session, heartbeat and
// transport state are guarded by mu. Each dial starts a new generation;
// read loops and timers belonging to an older generation exit without
// touching any state.
type Connection struct {
	Logger zerolog.Logger

	options ConnectionOptions
	codec   codec.Codec
	dialer  Dialer

	bus     *eventbus.Bus[discord.Event]
	limiter *limiter.DurationLimiter

	ready *atomic.Bool

	status chan StatusUpdate

	mu sync.Mutex

	ctx context.Context

	session   Session
	heartbeat *HeartbeatMonitor
	transport Transport
	presence  *discord.UpdateStatus

	state      ConnectionState
	generation uint64

	// epoch changes on every manual Disconnect and stops pending reconnects.
	epoch uint64
}

// NewConnection creates a closed connection that publishes dispatch events
// to bus.
func NewConnection(options ConnectionOptions, bus *eventbus.Bus[discord.Event]) *Connection {
	if options.Codec == nil {
		options.Codec = codec.NewJSON()
	}

	if options.Dialer == nil {
		options.Dialer = WebsocketDialer{}
	}

	if options.GatewayURL == "" {
		options.GatewayURL = DefaultGatewayURL
	}

	if options.Capabilities == 0 {
		options.Capabilities = discord.DefaultCapabilities
	}

	if options.Retries == 0 {
		options.Retries = ConnectRetries
	}

	if options.MinReconnectWait == 0 {
		options.MinReconnectWait = MinReconnectWait
	}

	if options.MaxReconnectWait == 0 {
		options.MaxReconnectWait = MaxReconnectWait
	}

	if bus == nil {
		bus = eventbus.New[discord.Event]()
	}

	return &Connection{
		Logger: options.Logger.With().Str("codec", options.Codec.Name()).Logger(),

		options: options,
		codec:   options.Codec,
		dialer:  options.Dialer,

		bus:     bus,
		limiter: limiter.NewDurationLimiter("gateway", GatewayCommandLimit, GatewayCommandWindow),

		ready: atomic.NewBool(false),

		status: make(chan StatusUpdate, StatusChannelBuffer),

		ctx: context.Background(),

		heartbeat: NewHeartbeatMonitor(options.Clock, options.Jitter),
		presence:  options.Presence,

		state: StateClosed,
	}
}

// Bus returns the bus dispatch events are published on.
func (c *Connection) Bus() *eventbus.Bus[discord.Event] {
	return c.bus
}

// Status returns the channel readiness and close notifications are sent on.
func (c *Connection) Status() <-chan StatusUpdate {
	return c.status
}

// IsReady reports if READY or RESUMED was received on the current connection.
func (c *Connection) IsReady() bool {
	return c.ready.Load()
}

func (c *Connection) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Session returns a copy of the current session.
func (c *Connection) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.session
}

// HeartbeatState returns the state of the heartbeat monitor.
func (c *Connection) HeartbeatState() HeartbeatState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.heartbeat.State()
}

// Connect dials the gateway and starts reading. It is a no-op while a
// connection is being established or open. ctx bounds the lifetime of the
// connection and of any reconnects it performs.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateClosed {
		c.mu.Unlock()

		return nil
	}

	c.ctx = ctx
	c.mu.Unlock()

	return c.connect(ctx, false)
}

func (c *Connection) connect(ctx context.Context, reconnecting bool) error {
	c.mu.Lock()

	if reconnecting && c.state != StateReconnecting {
		c.mu.Unlock()

		return ErrClosed
	}

	if !reconnecting && c.state != StateClosed {
		c.mu.Unlock()

		return nil
	}

	c.generation++
	generation := c.generation
	gatewayURL := c.gatewayURLLocked()
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	c.Logger.Debug().Str("url", gatewayURL).Msg("Connecting to gateway")

	transport, err := c.dialer.Dial(ctx, gatewayURL)

	c.mu.Lock()

	if generation != c.generation {
		c.mu.Unlock()

		if transport != nil {
			_ = transport.Close(discord.CloseManualDisconnect, "")
		}

		return ErrClosed
	}

	if err != nil {
		if reconnecting {
			c.setStateLocked(StateReconnecting)
		} else {
			c.setStateLocked(StateClosed)
		}

		c.mu.Unlock()

		c.Logger.Error().Err(err).Msg("Failed to dial gateway")

		return fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	c.transport = transport
	c.setStateLocked(StateAwaitingHello)
	c.mu.Unlock()

	// The command budget is per socket.
	c.limiter.Reset()

	go c.readLoop(ctx, generation, transport)

	return nil
}

// gatewayURLLocked returns the url to dial, preferring the resume url when
// the next handshake resumes.
func (c *Connection) gatewayURLLocked() string {
	base := c.options.GatewayURL

	if c.session.ShouldResume && c.session.ResumeGatewayURL != "" {
		base = c.session.ResumeGatewayURL
	}

	u, err := url.Parse(base)
	if err != nil {
		c.Logger.Warn().Err(err).Str("url", base).Msg("Invalid gateway url, using default")

		u, _ = url.Parse(DefaultGatewayURL)
	}

	query := u.Query()
	query.Set("v", strconv.Itoa(discord.GatewayVersion))
	query.Set("encoding", c.codec.Name())
	u.RawQuery = query.Encode()

	return u.String()
}

func (c *Connection) readLoop(ctx context.Context, generation uint64, transport Transport) {
	for {
		messageType, data, err := transport.Read(ctx)
		if err != nil {
			c.onTransportClosed(ctx, generation, err)

			return
		}

		if c.stale(generation) {
			return
		}

		mirrorEventCount.WithLabelValues(c.options.Identifier).Inc()

		if messageType == websocket.MessageBinary && c.codec.MessageType() == websocket.MessageText {
			data, err = codec.Inflate(data)
			if err != nil {
				c.Logger.Error().Err(err).Msg("Failed to inflate frame")
				mirrorDecodeErrors.WithLabelValues(c.options.Identifier).Inc()

				continue
			}
		}

		msg, err := c.codec.Decode(data)
		if err != nil {
			c.Logger.Error().Err(err).Msg("Failed to decode frame")
			mirrorDecodeErrors.WithLabelValues(c.options.Identifier).Inc()

			continue
		}

		if c.Logger.GetLevel() <= zerolog.TraceLevel && messageType == websocket.MessageText {
			c.Logger.Trace().Msg(">>> " + gotils_strconv.B2S(data))
		}

		c.OnEvent(ctx, generation, msg)
	}
}

// OnEvent routes a decoded message to its gateway handler.
func (c *Connection) OnEvent(ctx context.Context, generation uint64, msg *discord.GatewayPayload) {
	err := GatewayDispatch(ctx, c, generation, msg)
	if err != nil {
		if errors.Is(err, ErrNoGatewayHandler) {
			c.Logger.Warn().
				Int("op", int(msg.Op)).
				Str("type", msg.Type).
				Msg("Gateway sent unknown packet")

			return
		}

		c.Logger.Error().Err(err).Str("op", msg.Op.String()).Msg("Failed to handle gateway message")
	}
}

func (c *Connection) onTransportClosed(ctx context.Context, generation uint64, err error) {
	code, reason, hasCode := closeStatus(err)

	c.mu.Lock()

	if generation != c.generation {
		c.mu.Unlock()

		return
	}

	transport := c.teardownLocked()

	switch {
	case ctx.Err() != nil:
		c.Logger.Info().Err(ctx.Err()).Msg("Connection context done, closing")

		c.setStateLocked(StateClosed)
		c.mu.Unlock()

		if transport != nil {
			_ = transport.Close(discord.CloseManualDisconnect, "")
		}

		c.emitStatus(StatusUpdate{Kind: StatusClosed, Reason: ctx.Err().Error()})
	case !hasCode, code == discord.CloseReconnectRequested:
		c.Logger.Warn().Err(err).Int("code", code).Msg("Gateway connection dropped, resuming")

		c.session.MarkResumable()
		c.setStateLocked(StateReconnecting)
		c.mu.Unlock()

		go c.reconnect("dropped")
	default:
		c.Logger.Error().Int("code", code).Str("reason", reason).Msg("Gateway closed connection")

		c.setStateLocked(StateClosed)
		c.mu.Unlock()

		c.emitStatus(StatusUpdate{Kind: StatusClosed, Code: code, Reason: reason})
	}
}

// forceReconnect closes the current transport with the reconnect code and
// dials again, resuming if a session exists.
func (c *Connection) forceReconnect(generation uint64, reason string) {
	c.mu.Lock()

	if generation != c.generation {
		c.mu.Unlock()

		return
	}

	c.session.MarkResumable()
	transport := c.teardownLocked()
	c.setStateLocked(StateReconnecting)
	c.mu.Unlock()

	if transport != nil {
		if err := transport.Close(discord.CloseReconnectRequested, reason); err != nil {
			c.Logger.Debug().Err(err).Msg("Encountered error closing websocket")
		}
	}

	go c.reconnect(reason)
}

// reconnect dials until it succeeds, retries run out or Disconnect is called.
// The first attempt is immediate.
func (c *Connection) reconnect(reason string) {
	c.mu.Lock()
	epoch := c.epoch
	ctx := c.ctx
	c.mu.Unlock()

	mirrorReconnects.WithLabelValues(c.options.Identifier, reason).Inc()
	c.emitStatus(StatusUpdate{Kind: StatusReconnecting, Reason: reason})

	wait := c.options.MinReconnectWait
	retries := c.options.Retries

	for {
		c.mu.Lock()
		cancelled := epoch != c.epoch
		c.mu.Unlock()

		if cancelled {
			return
		}

		if ctx.Err() != nil {
			c.stopReconnecting(epoch, ctx.Err())

			return
		}

		c.Logger.Info().Str("reason", reason).Msg("Trying to reconnect to gateway")

		err := c.connect(ctx, true)
		if err == nil {
			return
		}

		if errors.Is(err, ErrClosed) {
			return
		}

		if ctx.Err() != nil {
			c.stopReconnecting(epoch, ctx.Err())

			return
		}

		retries--
		if retries <= 0 {
			c.Logger.Error().Err(err).Msg("Ran out of retries whilst reconnecting")

			c.stopReconnecting(epoch, err)

			return
		}

		c.Logger.Warn().Err(err).Dur("retry", wait).Msg("Failed to reconnect to gateway")

		select {
		case <-ctx.Done():
			c.stopReconnecting(epoch, ctx.Err())

			return
		case <-time.After(wait):
		}

		wait *= 2
		if wait > c.options.MaxReconnectWait {
			wait = c.options.MaxReconnectWait
		}
	}
}

// stopReconnecting closes a connection whose reconnect loop has given up.
// It does nothing if Disconnect was called in the meantime.
func (c *Connection) stopReconnecting(epoch uint64, err error) {
	c.mu.Lock()

	if epoch != c.epoch {
		c.mu.Unlock()

		return
	}

	transport := c.teardownLocked()
	c.setStateLocked(StateClosed)
	c.mu.Unlock()

	if transport != nil {
		_ = transport.Close(discord.CloseManualDisconnect, "")
	}

	c.emitStatus(StatusUpdate{Kind: StatusClosed, Reason: err.Error()})
}

// Disconnect stops heartbeating and closes the transport with code. It does
// not reconnect and is idempotent.
func (c *Connection) Disconnect(code int) {
	c.mu.Lock()

	c.epoch++

	if c.state == StateClosed && c.transport == nil {
		c.mu.Unlock()

		return
	}

	transport := c.teardownLocked()
	c.setStateLocked(StateClosed)
	c.mu.Unlock()

	c.Logger.Info().Int("code", code).Msg("Closing gateway connection")

	if transport != nil {
		if err := transport.Close(code, ""); err != nil {
			c.Logger.Debug().Err(err).Msg("Encountered error closing websocket")
		}
	}

	c.emitStatus(StatusUpdate{Kind: StatusClosed, Code: code, Reason: "disconnect"})
}

// teardownLocked invalidates the current generation, cancels heartbeats and
// detaches the transport, which the caller closes after unlocking.
func (c *Connection) teardownLocked() (transport Transport) {
	c.generation++
	c.heartbeat.Stop()
	c.ready.Store(false)

	transport = c.transport
	c.transport = nil

	return transport
}

func (c *Connection) stale(generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return generation != c.generation
}

func (c *Connection) setStateLocked(state ConnectionState) {
	if c.state == state {
		return
	}

	c.Logger.Debug().Str("from", c.state.String()).Str("to", state.String()).Msg("Connection state changed")

	c.state = state
}

func (c *Connection) emitStatus(update StatusUpdate) {
	select {
	case c.status <- update:
	default:
		c.Logger.Warn().Str("kind", update.Kind.String()).Msg("Status channel full, dropping update")
	}
}

// Send encodes and writes a gateway command. It fails with ErrNotReady when
// no transport is open. Sends are rate limited.
func (c *Connection) Send(ctx context.Context, op discord.GatewayOp, data any) error {
	c.mu.Lock()
	transport := c.transport
	c.mu.Unlock()

	if transport == nil {
		return ErrNotReady
	}

	if op != discord.GatewayOpHeartbeat {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("failed to wait for %s ratelimit: %w", c.limiter.Name(), err)
		}
	}

	return c.write(ctx, transport, op, data)
}

// write sends directly on transport without rate limiting.
func (c *Connection) write(ctx context.Context, transport Transport, op discord.GatewayOp, data any) error {
	frame, err := c.codec.Encode(op, data)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	if c.Logger.GetLevel() <= zerolog.TraceLevel && c.codec.MessageType() == websocket.MessageText {
		c.Logger.Trace().Msg("<<< " + gotils_strconv.B2S(frame))
	}

	err = transport.Write(ctx, c.codec.MessageType(), frame)
	if err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

// UpdatePresence sends a presence update and remembers it so it is restored
// after a resume.
func (c *Connection) UpdatePresence(ctx context.Context, presence discord.UpdateStatus) error {
	c.mu.Lock()
	c.presence = &presence
	c.mu.Unlock()

	return c.Send(ctx, discord.GatewayOpPresenceUpdate, presence)
}

// RequestGuildMembers asks the gateway for members of a guild.
func (c *Connection) RequestGuildMembers(ctx context.Context, request discord.RequestGuildMembers) error {
	return c.Send(ctx, discord.GatewayOpRequestGuildMembers, request)
}

// beat runs on the heartbeat timer.
func (c *Connection) beat(generation uint64) {
	c.mu.Lock()

	if generation != c.generation {
		c.mu.Unlock()

		return
	}

	if !c.heartbeat.Beat() {
		c.mu.Unlock()

		c.Logger.Warn().Msg("Heartbeat was not acknowledged, reconnecting")

		c.forceReconnect(generation, "zombie")

		return
	}

	c.heartbeat.Schedule(func() { c.beat(generation) })

	sequence := c.session.Sequence()
	transport := c.transport
	ctx := c.ctx
	c.mu.Unlock()

	if transport == nil {
		return
	}

	if err := c.write(ctx, transport, discord.GatewayOpHeartbeat, sequence); err != nil {
		c.Logger.Error().Err(err).Msg("Failed to heartbeat")
	}
}

// handshake sends the identify or resume packet for the current session.
func (c *Connection) handshake(ctx context.Context, generation uint64, transport Transport) error {
	c.mu.Lock()

	if generation != c.generation {
		c.mu.Unlock()

		return nil
	}

	var (
		op   discord.GatewayOp
		data any
	)

	if c.session.Consume() {
		op = discord.GatewayOpResume
		data = discord.Resume{
			Token:     c.options.Token,
			SessionID: c.session.SessionID,
			Sequence:  c.session.LastSequence,
		}

		c.setStateLocked(StateResuming)
	} else {
		op = discord.GatewayOpIdentify
		data = discord.Identify{
			Token:        c.options.Token,
			Capabilities: c.options.Capabilities,
			Properties:   c.options.Properties,
			Presence:     c.presence,
			Compress:     c.options.Compress,
			ClientState:  c.options.ClientState,
		}

		c.setStateLocked(StateIdentifying)
	}

	c.mu.Unlock()

	c.Logger.Debug().Str("op", op.String()).Msg("Sending handshake")

	return c.write(ctx, transport, op, data)
}
