package store

import (
	"context"
	"encoding/json"
	"io"

	"github.com/redis/go-redis/v9"

	"vblock/internal/bus"
	"vblock/pkg/conn"
)

const DefaultChannel = "vblock:bars"

type publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisSink publishes each bar as JSON on a pub/sub channel.
type RedisSink struct {
	client  publisher
	channel string
}

// OpenRedisSink connects to opt.Addrs. An empty channel selects DefaultChannel.
func OpenRedisSink(ctx context.Context, opt conn.Redis) (*RedisSink, error) {
	client, err := conn.OpenRedis(ctx, opt)
	if err != nil {
		return nil, err
	}
	return newRedisSink(client, opt.Channel), nil
}

func newRedisSink(client publisher, channel string) *RedisSink {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisSink{client: client, channel: channel}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Write(ctx context.Context, e bus.Event) error {
	payload, err := json.Marshal(NewBarRecord(e))
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, s.channel, payload).Err()
}

func (s *RedisSink) Close() error {
	if c, ok := s.client.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
