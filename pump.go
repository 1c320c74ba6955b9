package mirror

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/WelcomerTeam/Mirror/discord"
	"github.com/WelcomerTeam/Mirror/pkg/accumulator"
	"github.com/WelcomerTeam/Mirror/pkg/clock"
	"github.com/WelcomerTeam/Mirror/pkg/eventbus"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// DefaultLookupTimeout bounds original store access.
	DefaultLookupTimeout = 2 * time.Second

	// DefaultNonceTTL is how long a sent message nonce waits for its echo.
	DefaultNonceTTL = 5 * time.Minute

	// Original writes queued for the store before new ones are dropped.
	originalWriteBuffer = 256
)

const (
	eventSamples        = 60
	eventSampleInterval = time.Second
)

// PumpOptions configures an EventPump.
type PumpOptions struct {
	Logger     zerolog.Logger
	Identifier string
	Clock      clock.Clock

	State    *MirroredState
	REST     RESTClient
	Store    OriginalStore
	Flags    FeatureFlags
	Consumer Consumer

	LookupTimeout time.Duration
	NonceTTL      time.Duration
}

type originalWrite struct {
	key  originalKey
	seq  uint64
	data []byte
}

type unflushedOriginal struct {
	seq  uint64
	data []byte
}

// EventPump turns dispatch events into normalized events, folds them into
// the mirrored state and hands them to the consumer.
type EventPump struct {
	Logger zerolog.Logger

	identifier string
	clock      clock.Clock

	state    *MirroredState
	rest     RESTClient
	store    OriginalStore
	flags    FeatureFlags
	consumer Consumer

	// Nonces of messages sent by this client that have not been echoed yet.
	pending  *Cache[string, time.Time]
	nonceTTL time.Duration

	// Originals are written to the store off the read path. Lookups see
	// writes that have not been flushed yet.
	writes    chan originalWrite
	writeSeq  *atomic.Uint64
	unflushed *Cache[originalKey, unflushedOriginal]

	done      chan struct{}
	closeOnce sync.Once

	// Dispatches handled per second.
	events *accumulator.Accumulator

	lookupTimeout time.Duration

	unsubscribeMu sync.Mutex
	unsubscribe   []func()
}

func NewEventPump(options PumpOptions) *EventPump {
	if options.State == nil {
		options.State = NewMirroredState()
	}

	if options.Clock == nil {
		options.Clock = clock.Real()
	}

	if options.Store == nil {
		options.Store = NewMemoryStore(MemoryStoreOptions{Clock: options.Clock})
	}

	if options.Flags == nil {
		options.Flags = StaticFlags{}
	}

	if options.Consumer == nil {
		options.Consumer = func(context.Context, []NormalizedEvent) {}
	}

	if options.LookupTimeout == 0 {
		options.LookupTimeout = DefaultLookupTimeout
	}

	if options.NonceTTL == 0 {
		options.NonceTTL = DefaultNonceTTL
	}

	p := &EventPump{
		Logger: options.Logger,

		identifier: options.Identifier,
		clock:      options.Clock,

		state:    options.State,
		rest:     options.REST,
		store:    options.Store,
		flags:    options.Flags,
		consumer: options.Consumer,

		pending:  NewCache[string, time.Time](16),
		nonceTTL: options.NonceTTL,

		writes:    make(chan originalWrite, originalWriteBuffer),
		writeSeq:  atomic.NewUint64(0),
		unflushed: NewCache[originalKey, unflushedOriginal](originalWriteBuffer),

		done: make(chan struct{}),

		events: accumulator.New(eventSamples, eventSampleInterval),

		lookupTimeout: options.LookupTimeout,
	}

	go p.flushOriginals()

	return p
}

func (p *EventPump) State() *MirroredState {
	return p.state
}

// Events returns the dispatch rate accumulator. It only samples while its
// Run method is running.
func (p *EventPump) Events() *accumulator.Accumulator {
	return p.events
}

// Register subscribes a handler for every known dispatch event.
func (p *EventPump) Register(bus *eventbus.Bus[discord.Event]) {
	p.unsubscribeMu.Lock()
	defer p.unsubscribeMu.Unlock()

	for name, handler := range dispatchHandlers {
		p.unsubscribe = append(p.unsubscribe, bus.Subscribe(name, p.wrap(name, handler)))
	}
}

// Close removes every subscription made by Register and stops writing
// originals to the store.
func (p *EventPump) Close() {
	p.unsubscribeMu.Lock()
	defer p.unsubscribeMu.Unlock()

	for _, unsubscribe := range p.unsubscribe {
		unsubscribe()
	}

	p.unsubscribe = nil

	p.closeOnce.Do(func() { close(p.done) })
}

// TrackNonce marks a nonce as belonging to a pending local send. Nonces
// older than the nonce ttl are dropped.
func (p *EventPump) TrackNonce(nonce string) {
	now := p.clock.Now()

	var expired []string

	p.pending.Range(func(pending string, tracked time.Time) bool {
		if now.Sub(tracked) >= p.nonceTTL {
			expired = append(expired, pending)
		}

		return false
	})

	for _, pending := range expired {
		p.pending.Delete(pending)
	}

	p.pending.Store(nonce, now)
}

// ForgetNonce drops a nonce whose send failed.
func (p *EventPump) ForgetNonce(nonce string) {
	p.pending.Delete(nonce)
}

// consumeNonce reports if nonce was pending and clears it.
func (p *EventPump) consumeNonce(nonce string) bool {
	if nonce == "" {
		return false
	}

	tracked, ok := p.pending.Load(nonce)
	if !ok {
		return false
	}

	p.pending.Delete(nonce)

	return p.clock.Now().Sub(tracked) < p.nonceTTL
}

func (p *EventPump) wrap(name string, handler DispatchHandler) eventbus.Handler[discord.Event] {
	return func(ctx context.Context, event discord.Event) {
		defer func() {
			if r := recover(); r != nil {
				p.Logger.Error().
					Str("event", name).
					Interface("panic", r).
					Str("stack", string(debug.Stack())).
					Msg("Recovered panic in dispatch handler")

				mirrorHandlerPanics.WithLabelValues(p.identifier, name).Inc()
			}
		}()

		p.events.Increment()

		events, err := handler(ctx, p, event)
		if err != nil {
			p.Logger.Error().Err(err).Str("event", name).Msg("Failed to handle dispatch")

			return
		}

		p.publish(ctx, events)
	}
}

// publish applies events to the state then passes them to the consumer.
func (p *EventPump) publish(ctx context.Context, events []NormalizedEvent) {
	if len(events) == 0 {
		return
	}

	for _, event := range events {
		p.state.Apply(event)
		recordEmitted(p.identifier, event)
	}

	p.consumer(ctx, events)

	UpdateStateMetrics(p.identifier, p.state.Counts())
}

// mirrors reports if events scoped to guildID are mirrored.
func (p *EventPump) mirrors(guildID discord.Snowflake) bool {
	return guildID.IsNil() || p.flags.MirrorGuilds()
}

// putOriginal queues an object for the original store.
func (p *EventPump) putOriginal(kind string, id discord.Snowflake, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal original: %w", err)
	}

	p.queueOriginal(originalKey{kind, id}, data)

	return nil
}

func (p *EventPump) queueOriginal(key originalKey, data []byte) {
	seq := p.writeSeq.Inc()

	p.unflushed.Store(key, unflushedOriginal{seq: seq, data: data})

	select {
	case p.writes <- originalWrite{key: key, seq: seq, data: data}:
	default:
		p.unflushed.DeleteIf(key, func(value unflushedOriginal) bool { return value.seq == seq })

		p.Logger.Warn().Str("kind", key.kind).Str("id", key.id.String()).Msg("Original store queue full, dropping write")
	}
}

// flushOriginals writes queued originals to the store in order until the
// pump is closed.
func (p *EventPump) flushOriginals() {
	for {
		select {
		case <-p.done:
			return
		case write := <-p.writes:
			ctx, cancel := context.WithTimeout(context.Background(), p.lookupTimeout)
			err := p.store.Put(ctx, write.key.kind, write.key.id, write.data)
			cancel()

			if err != nil {
				p.Logger.Warn().Err(err).Str("kind", write.key.kind).Str("id", write.key.id.String()).Msg("Failed to store original")
			}

			p.unflushed.DeleteIf(write.key, func(value unflushedOriginal) bool { return value.seq == write.seq })
		}
	}
}

// getOriginal prefers writes that have not reached the store yet.
func (p *EventPump) getOriginal(ctx context.Context, key originalKey) ([]byte, bool, error) {
	if pending, ok := p.unflushed.Load(key); ok {
		return pending.data, true, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.lookupTimeout)
	defer cancel()

	return p.store.Get(ctx, key.kind, key.id)
}

// mergeOriginal overlays fields onto the stored copy of an object. ok is
// false when no stored copy exists.
func (p *EventPump) mergeOriginal(ctx context.Context, kind string, id discord.Snowflake, fields map[string]any, v any) (ok bool, err error) {
	key := originalKey{kind, id}

	data, ok, err := p.getOriginal(ctx, key)
	if err != nil || !ok {
		return false, err
	}

	var original map[string]any

	if err = json.Unmarshal(data, &original); err != nil {
		return false, fmt.Errorf("failed to unmarshal original: %w", err)
	}

	for field, value := range fields {
		original[field] = value
	}

	merged, err := json.Marshal(original)
	if err != nil {
		return false, fmt.Errorf("failed to marshal merged original: %w", err)
	}

	if err = json.Unmarshal(merged, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal merged original: %w", err)
	}

	p.queueOriginal(key, merged)

	return true, nil
}

// trackAnalytics reports an event to the REST collaborator without blocking
// the read path.
func (p *EventPump) trackAnalytics(name string, properties map[string]any) {
	if p.rest == nil || !p.flags.EmitAnalytics() {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.lookupTimeout)
		defer cancel()

		if err := p.rest.TrackEvent(ctx, name, properties); err != nil {
			p.Logger.Warn().Err(err).Str("name", name).Msg("Failed to track analytics event")
		}
	}()
}
