package events

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	xerrors "Attest-Resolver/internal/errors"
)

// RedisConfig 描述 Redis 事件发布的连接参数。
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	// List 保存事件历史，供离线消费者读取。
	List string
	// Channel 用于实时订阅。
	Channel string
	// MaxLen 限制历史列表长度，<=0 表示不截断。
	MaxLen int64
}

// RedisPublisher 将事件写入 Redis list 并同时 PUBLISH 到频道。
type RedisPublisher struct {
	client  redis.UniversalClient
	list    string
	channel string
	maxLen  int64
}

// NewRedisPublisher 创建 Redis 事件发布器。
func NewRedisPublisher(ctx context.Context, cfg RedisConfig) (*RedisPublisher, error) {
	if cfg.Address == "" {
		return nil, errors.New("Redis address 不能为空")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, xerrors.Wrap(xerrors.CodePublishFailure, err, "连接 Redis 失败")
	}
	return NewRedisPublisherWithClient(client, cfg), nil
}

// NewRedisPublisherWithClient 复用已有的客户端。
func NewRedisPublisherWithClient(client redis.UniversalClient, cfg RedisConfig) *RedisPublisher {
	list := cfg.List
	if list == "" {
		list = "resolver:events"
	}
	channel := cfg.Channel
	if channel == "" {
		channel = "resolver.events"
	}
	return &RedisPublisher{client: client, list: list, channel: channel, maxLen: cfg.MaxLen}
}

// Publish 实现 Publisher。
func (p *RedisPublisher) Publish(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, ev := range events {
			payload, err := json.Marshal(ev)
			if err != nil {
				return err
			}
			pipe.LPush(ctx, p.list, payload)
			pipe.Publish(ctx, p.channel, payload)
		}
		if p.maxLen > 0 {
			pipe.LTrim(ctx, p.list, 0, p.maxLen-1)
		}
		return nil
	})
	if err != nil {
		return xerrors.Wrap(xerrors.CodePublishFailure, err, "Redis 发布事件失败")
	}
	return nil
}

// Close 关闭 Redis 连接。
func (p *RedisPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
