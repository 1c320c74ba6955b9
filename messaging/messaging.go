package messaging

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	mirror "github.com/WelcomerTeam/Mirror"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrUnknownProducer = errors.New("unknown producer")

// Producer forwards encoded batches to a message broker.
type Producer interface {
	String() string
	Channel() string
	Connect(ctx context.Context, clientName string, args map[string]any) error
	Publish(ctx context.Context, subject string, data []byte) error
	Close()
}

var producers = make(map[string]func() Producer)

func registerProducer(name string, constructor func() Producer) {
	producers[name] = constructor
}

// Producers lists the names of every available producer.
func Producers() []string {
	names := make([]string, 0, len(producers))

	for name := range producers {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// NewProducer returns an unconnected producer by name.
func NewProducer(name string) (Producer, error) {
	constructor, ok := producers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProducer, name)
	}

	return constructor(), nil
}

// GetEntry returns the first value of m whose key matches case insensitively.
func GetEntry(m map[string]any, key string) any {
	key = strings.ToLower(key)

	for i, k := range m {
		if strings.ToLower(i) == key {
			return k
		}
	}

	return nil
}

// Batch is the payload published for every consumer call.
type Batch struct {
	Identifier string                   `json:"identifier"`
	Events     []mirror.NormalizedEvent `json:"events"`
}

const (
	DefaultPublishBuffer  = 1024
	DefaultPublishTimeout = 10 * time.Second
)

// Publisher forwards normalized event batches to a producer. Batches are
// encoded on the caller's goroutine and published in order by Run, so a slow
// broker never stalls the gateway read loop.
type Publisher struct {
	logger     zerolog.Logger
	producer   Producer
	identifier string
	timeout    time.Duration

	batches chan []byte
}

// NewPublisher creates a publisher that buffers up to buffer batches.
// Batches are published under identifier as the subject.
func NewPublisher(logger zerolog.Logger, producer Producer, identifier string, buffer int) *Publisher {
	if buffer <= 0 {
		buffer = DefaultPublishBuffer
	}

	return &Publisher{
		logger:     logger,
		producer:   producer,
		identifier: identifier,
		timeout:    DefaultPublishTimeout,

		batches: make(chan []byte, buffer),
	}
}

// Consume queues events for publishing. It never blocks; batches are dropped
// when the buffer is full.
func (p *Publisher) Consume(_ context.Context, events []mirror.NormalizedEvent) {
	data, err := json.Marshal(Batch{
		Identifier: p.identifier,
		Events:     events,
	})
	if err != nil {
		p.logger.Error().Err(err).Msg("Failed to marshal batch")

		return
	}

	select {
	case p.batches <- data:
	default:
		p.logger.Error().Str("producer", p.producer.String()).Int("events", len(events)).Msg("Publish buffer full, dropping batch")
	}
}

// Run publishes queued batches until ctx is done, then flushes whatever is
// still buffered.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.flush()

			return
		case data := <-p.batches:
			p.publish(ctx, data)
		}
	}
}

func (p *Publisher) flush() {
	for {
		select {
		case data := <-p.batches:
			p.publish(context.Background(), data)
		default:
			return
		}
	}
}

func (p *Publisher) publish(ctx context.Context, data []byte) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.producer.Publish(ctx, p.identifier, data); err != nil {
		p.logger.Error().Err(err).Str("producer", p.producer.String()).Msg("Failed to publish batch")
	}
}

func parseBool(v any) (value bool, ok bool) {
	switch v := v.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(v) {
		case "true", "1", "yes":
			return true, true
		case "false", "0", "no":
			return false, true
		}
	}

	return false, false
}
