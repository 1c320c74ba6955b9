package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
)

func init() {
	registerProducer("kafka", func() Producer { return &KafkaProducer{} })
}

// KafkaProducer writes batches to the channel topic keyed by subject.
type KafkaProducer struct {
	KafkaClient *kafka.Writer

	channel string
}

func parseKafkaBalancer(balancer string) kafka.Balancer {
	switch balancer {
	case "crc32":
		return &kafka.CRC32Balancer{}
	case "hash":
		return &kafka.Hash{}
	case "murmur2":
		return &kafka.Murmur2Balancer{}
	case "roundrobin":
		return &kafka.RoundRobin{}
	case "leastbytes":
		return &kafka.LeastBytes{}
	default:
		return nil
	}
}

func (p *KafkaProducer) String() string {
	return "kafka"
}

func (p *KafkaProducer) Channel() string {
	return p.channel
}

func (p *KafkaProducer) Connect(_ context.Context, _ string, args map[string]any) error {
	var ok bool

	var address string

	if address, ok = GetEntry(args, "Address").(string); !ok {
		return errors.New("kafka connect: string type assertion failed for Address")
	}

	if p.channel, ok = GetEntry(args, "Channel").(string); !ok {
		return errors.New("kafka connect: string type assertion failed for Channel")
	}

	balancerName, _ := GetEntry(args, "Balancer").(string)
	async, _ := parseBool(GetEntry(args, "Async"))

	p.KafkaClient = &kafka.Writer{
		Addr:     kafka.TCP(address),
		Topic:    p.channel,
		Balancer: parseKafkaBalancer(balancerName),
		Async:    async,
	}

	return nil
}

func (p *KafkaProducer) Publish(ctx context.Context, subject string, data []byte) error {
	err := p.KafkaClient.WriteMessages(ctx, kafka.Message{
		Key:   []byte(subject),
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("kafka publish: %w", err)
	}

	return nil
}

func (p *KafkaProducer) Close() {
	if p.KafkaClient != nil {
		_ = p.KafkaClient.Close()
	}
}
