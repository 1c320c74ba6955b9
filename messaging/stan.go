package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/stan.go"
)

func init() {
	registerProducer("stan", func() Producer { return &StanProducer{} })
}

// StanProducer publishes to the <channel>.<subject> NATS streaming channel.
type StanProducer struct {
	NatsClient *nats.Conn `json:"-"`
	StanClient stan.Conn  `json:"-"`

	async bool

	channel string
	cluster string
}

func (p *StanProducer) String() string {
	return "stan"
}

func (p *StanProducer) Channel() string {
	return p.channel
}

func (p *StanProducer) Connect(_ context.Context, clientName string, args map[string]any) (err error) {
	var ok bool

	var address string

	if address, ok = GetEntry(args, "Address").(string); !ok {
		return errors.New("stan connect: string type assertion failed for Address")
	}

	if p.cluster, ok = GetEntry(args, "Cluster").(string); !ok {
		return errors.New("stan connect: string type assertion failed for Cluster")
	}

	if p.channel, ok = GetEntry(args, "Channel").(string); !ok {
		return errors.New("stan connect: string type assertion failed for Channel")
	}

	useNatsConnection, ok := parseBool(GetEntry(args, "UseNATSConnection"))
	if !ok {
		useNatsConnection = true
	}

	p.async, _ = parseBool(GetEntry(args, "Async"))

	var option stan.Option

	if useNatsConnection {
		p.NatsClient, err = nats.Connect(address)
		if err != nil {
			return fmt.Errorf("stan connect nats: %w", err)
		}

		option = stan.NatsConn(p.NatsClient)
	} else {
		option = stan.NatsURL(address)
	}

	p.StanClient, err = stan.Connect(p.cluster, clientName, option)
	if err != nil {
		return fmt.Errorf("stan connect stan: %w", err)
	}

	return nil
}

func (p *StanProducer) Publish(_ context.Context, subject string, data []byte) (err error) {
	if p.async {
		_, err = p.StanClient.PublishAsync(p.channel+"."+subject, data, nil)
	} else {
		err = p.StanClient.Publish(p.channel+"."+subject, data)
	}

	if err != nil {
		return fmt.Errorf("stan publish: %w", err)
	}

	return nil
}

func (p *StanProducer) Close() {
	if p.StanClient != nil {
		_ = p.StanClient.Close()
	}

	if p.NatsClient != nil {
		p.NatsClient.Close()
	}
}
