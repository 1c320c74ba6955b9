package mirror

import (
	"context"
	"fmt"
	"time"

	"github.com/WelcomerTeam/Mirror/codec"
	"github.com/WelcomerTeam/Mirror/discord"
	"github.com/WelcomerTeam/Mirror/pkg/clock"
	"github.com/WelcomerTeam/Mirror/pkg/eventbus"
	"github.com/WelcomerTeam/Mirror/pkg/nonce"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

const Version = "1.0.0"

const (
	// ReadyPollInterval is how often WaitForReady checks readiness.
	ReadyPollInterval = 250 * time.Millisecond

	// ReadyLogInterval is how often WaitForReady reports it is still waiting.
	ReadyLogInterval = 15 * time.Second
)

// ClientOptions configures a Client.
type ClientOptions struct {
	Logger     zerolog.Logger
	Identifier string

	// Codec defaults to json.
	Codec  codec.Codec
	Dialer Dialer
	Clock  clock.Clock

	Token       string
	GatewayURL  string
	Properties  discord.IdentifyProperties
	Presence    *discord.UpdateStatus
	ClientState discord.ClientState
	Compress    bool

	REST     RESTClient
	Store    OriginalStore
	Flags    FeatureFlags
	Consumer Consumer

	Nonces *nonce.Generator
}

// Client ties a gateway connection to an event pump and exposes the
// operations consumers need.
type Client struct {
	Logger zerolog.Logger

	connection *Connection
	pump       *EventPump
	bus        *eventbus.Bus[discord.Event]

	rest   RESTClient
	nonces *nonce.Generator

	// Set while the dispatch rate sampler runs.
	sampling *atomic.Bool
}

func NewClient(options ClientOptions) (*Client, error) {
	if options.Token == "" {
		return nil, ErrMissingToken
	}

	if options.Consumer == nil {
		return nil, ErrMissingConsumer
	}

	if options.Nonces == nil {
		options.Nonces = nonce.New(nil)
	}

	logger := options.Logger.With().Str("identifier", options.Identifier).Logger()

	bus := eventbus.New[discord.Event]()

	connection := NewConnection(ConnectionOptions{
		Logger:      logger.With().Str("component", "gateway").Logger(),
		Codec:       options.Codec,
		Dialer:      options.Dialer,
		Clock:       options.Clock,
		Identifier:  options.Identifier,
		Token:       options.Token,
		GatewayURL:  options.GatewayURL,
		Properties:  options.Properties,
		Presence:    options.Presence,
		ClientState: options.ClientState,
		Compress:    options.Compress,
	}, bus)

	pump := NewEventPump(PumpOptions{
		Logger:     logger.With().Str("component", "pump").Logger(),
		Identifier: options.Identifier,
		Clock:      options.Clock,
		REST:       options.REST,
		Store:      options.Store,
		Flags:      options.Flags,
		Consumer:   options.Consumer,
	})

	pump.Register(bus)

	return &Client{
		Logger: logger,

		connection: connection,
		pump:       pump,
		bus:        bus,

		rest:   options.REST,
		nonces: options.Nonces,

		sampling: atomic.NewBool(false),
	}, nil
}

func (c *Client) Connection() *Connection {
	return c.connection
}

func (c *Client) State() *MirroredState {
	return c.pump.State()
}

// Bus exposes the dispatch bus for additional subscribers.
func (c *Client) Bus() *eventbus.Bus[discord.Event] {
	return c.bus
}

func (c *Client) Status() <-chan StatusUpdate {
	return c.connection.Status()
}

// Connect opens the gateway connection. ctx bounds the lifetime of the
// connection and of event rate sampling.
func (c *Client) Connect(ctx context.Context) error {
	if c.sampling.CompareAndSwap(false, true) {
		go func() {
			c.pump.Events().Run(ctx)
			c.sampling.Store(false)
		}()
	}

	return c.connection.Connect(ctx)
}

// EventsPerMinute returns the number of dispatches handled in the last
// minute of samples.
func (c *Client) EventsPerMinute() int64 {
	return c.pump.Events().Last(eventSamples).Sum()
}

func (c *Client) Disconnect() {
	c.connection.Disconnect(discord.CloseManualDisconnect)
}

// Close disconnects and removes the pump's subscriptions.
func (c *Client) Close() {
	c.Disconnect()
	c.pump.Close()
}

func (c *Client) UpdatePresence(ctx context.Context, presence discord.UpdateStatus) error {
	return c.connection.UpdatePresence(ctx, presence)
}

// IsReady reports if the connection is open and the state has been
// initialised.
func (c *Client) IsReady() bool {
	return c.connection.IsReady() && c.pump.State().IsReady()
}

// WaitForReady blocks until the client is ready or ctx is done.
func (c *Client) WaitForReady(ctx context.Context) error {
	if c.IsReady() {
		return nil
	}

	ticker := time.NewTicker(ReadyPollInterval)
	defer ticker.Stop()

	started := time.Now()
	lastLog := started

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to wait for ready: %w", ctx.Err())
		case now := <-ticker.C:
			if c.IsReady() {
				return nil
			}

			if now.Sub(lastLog) > ReadyLogInterval {
				c.Logger.Warn().Dur("waiting", now.Sub(started)).Msg("Still waiting for gateway to be ready")

				lastLog = now
			}
		}
	}
}

// SendMessage sends content to a channel once the client is ready. The echo
// of the message on the gateway is suppressed by its nonce.
func (c *Client) SendMessage(ctx context.Context, channelID discord.Snowflake, content string) (*discord.Message, error) {
	if c.rest == nil {
		return nil, ErrMissingREST
	}

	if err := c.WaitForReady(ctx); err != nil {
		return nil, err
	}

	messageNonce := c.nonces.Next()
	c.pump.TrackNonce(messageNonce)

	message, err := c.rest.SendMessage(ctx, channelID, content, messageNonce)
	if err != nil {
		c.pump.ForgetNonce(messageNonce)

		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	return message, nil
}
