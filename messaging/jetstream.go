package messaging

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

func init() {
	registerProducer("jetstream", func() Producer { return &JetStreamProducer{} })
}

// JetStreamProducer publishes to <channel>.<subject> on a memory backed stream.
type JetStreamProducer struct {
	natsConn *nats.Conn

	JetStreamClient jetstream.JetStream `json:"-"`
	JetStreamStream jetstream.Stream    `json:"-"`

	channel string
}

func (p *JetStreamProducer) String() string {
	return "jetstream"
}

func (p *JetStreamProducer) Channel() string {
	return p.channel
}

func (p *JetStreamProducer) Connect(ctx context.Context, clientName string, args map[string]any) error {
	var ok bool

	var address string

	if address, ok = GetEntry(args, "Address").(string); !ok {
		return errors.New("jetstream connect: string type assertion failed for Address")
	}

	if p.channel, ok = GetEntry(args, "Channel").(string); !ok {
		return errors.New("jetstream connect: string type assertion failed for Channel")
	}

	var err error

	p.natsConn, err = nats.Connect(address, nats.Name(clientName))
	if err != nil {
		return fmt.Errorf("jetstream connect nats: %w", err)
	}

	p.JetStreamClient, err = jetstream.New(p.natsConn)
	if err != nil {
		return fmt.Errorf("jetstream new: %w", err)
	}

	retention := jetstream.WorkQueuePolicy

	if interest, _ := parseBool(GetEntry(args, "UseInterestPolicy")); interest {
		retention = jetstream.InterestPolicy
	}

	p.JetStreamStream, err = p.JetStreamClient.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:              p.channel,
		Subjects:          []string{p.channel + ".*"},
		Retention:         retention,
		Discard:           jetstream.DiscardOld,
		MaxAge:            5 * time.Minute,
		Storage:           jetstream.MemoryStorage,
		MaxMsgsPerSubject: 1_000_000,
		MaxMsgSize:        math.MaxInt32,
		NoAck:             false,
	})
	if err != nil {
		return fmt.Errorf("jetstream create stream: %w", err)
	}

	return nil
}

func (p *JetStreamProducer) Publish(ctx context.Context, subject string, data []byte) error {
	_, err := p.JetStreamClient.Publish(ctx, p.channel+"."+subject, data)
	if err != nil {
		return fmt.Errorf("jetstream publish: %w", err)
	}

	return nil
}

func (p *JetStreamProducer) Close() {
	if p.natsConn != nil {
		p.natsConn.Close()
	}
}
