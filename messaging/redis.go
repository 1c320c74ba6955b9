package messaging

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
)

func init() {
	registerProducer("redis", func() Producer { return &RedisProducer{} })
}

// RedisProducer publishes to the <channel>:<subject> pub/sub channel.
type RedisProducer struct {
	redisClient *redis.Client

	channel string
}

func (p *RedisProducer) String() string {
	return "redis"
}

func (p *RedisProducer) Channel() string {
	return p.channel
}

func (p *RedisProducer) Connect(ctx context.Context, clientName string, args map[string]any) error {
	var ok bool

	var address string

	if address, ok = GetEntry(args, "Address").(string); !ok {
		return errors.New("redis connect: string type assertion failed for Address")
	}

	if p.channel, ok = GetEntry(args, "Channel").(string); !ok {
		return errors.New("redis connect: string type assertion failed for Channel")
	}

	password, _ := GetEntry(args, "Password").(string)

	var db int

	switch value := GetEntry(args, "DB").(type) {
	case int:
		db = value
	case string:
		var err error

		db, err = strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("redis connect db atoi: %w", err)
		}
	}

	p.redisClient = redis.NewClient(&redis.Options{
		Addr:       address,
		Password:   password,
		DB:         db,
		ClientName: clientName,
	})

	err := p.redisClient.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("redis connect ping: %w", err)
	}

	return nil
}

func (p *RedisProducer) Publish(ctx context.Context, subject string, data []byte) error {
	err := p.redisClient.Publish(ctx, p.channel+":"+subject, data).Err()
	if err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}

	return nil
}

func (p *RedisProducer) Close() {
	if p.redisClient != nil {
		_ = p.redisClient.Close()
	}
}
