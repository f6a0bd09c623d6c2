package redis

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	xerrors "Attest-Resolver/internal/errors"
	"Attest-Resolver/internal/storage"
)

// Config 描述 Redis 存储的连接参数。
type Config struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

// Store 将解析器状态保存为 Redis 字符串键。
type Store struct {
	client redis.UniversalClient
	prefix string
}

var _ storage.Store = (*Store)(nil)

// Open 连接 Redis 并校验连通性。
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Address == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "Redis address 不能为空")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "连接 Redis 失败")
	}
	return NewWithClient(client, cfg.Prefix), nil
}

// NewWithClient 复用已有的客户端。
func NewWithClient(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "resolver:"
	}
	return &Store{client: client, prefix: prefix}
}

// Begin 开启一个乐观事务。
func (s *Store) Begin(_ context.Context) (storage.Txn, error) {
	return &txn{
		store:  s,
		reads:  make(map[string]snapshot),
		writes: make(map[string][]byte),
	}, nil
}

// Close 关闭 Redis 客户端。
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

type snapshot struct {
	value  []byte
	exists bool
}

type txn struct {
	store  *Store
	reads  map[string]snapshot
	writes map[string][]byte
	order  []string
	done   bool
}

func (t *txn) key(k string) string { return t.store.prefix + k }

func (t *txn) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if t.done {
		return nil, false, xerrors.New(xerrors.CodeStorageFailure, "事务已结束")
	}
	if value, ok := t.writes[key]; ok {
		return value, true, nil
	}
	if snap, ok := t.reads[key]; ok {
		return snap.value, snap.exists, nil
	}
	value, err := t.store.client.Get(ctx, t.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		t.reads[key] = snapshot{}
		return nil, false, nil
	}
	if err != nil {
		return nil, false, xerrors.Wrap(xerrors.CodeStorageFailure, err, fmt.Sprintf("读取状态 %s 失败", key))
	}
	t.reads[key] = snapshot{value: value, exists: true}
	return value, true, nil
}

func (t *txn) Put(_ context.Context, key string, value []byte) error {
	if t.done {
		return xerrors.New(xerrors.CodeStorageFailure, "事务已结束")
	}
	if _, ok := t.writes[key]; !ok {
		t.order = append(t.order, key)
	}
	t.writes[key] = append([]byte(nil), value...)
	return nil
}

func (t *txn) Commit(ctx context.Context) error {
	if t.done {
		return xerrors.New(xerrors.CodeStorageFailure, "事务已结束")
	}
	t.done = true
	if len(t.writes) == 0 {
		return nil
	}

	watched := make([]string, 0, len(t.reads))
	for key := range t.reads {
		watched = append(watched, t.key(key))
	}

	err := t.store.client.Watch(ctx, func(tx *redis.Tx) error {
		for key, snap := range t.reads {
			current, err := tx.Get(ctx, t.key(key)).Bytes()
			exists := true
			if errors.Is(err, redis.Nil) {
				exists, err = false, nil
			}
			if err != nil {
				return err
			}
			if exists != snap.exists || !bytes.Equal(current, snap.value) {
				return xerrors.New(xerrors.CodeConflict, "键 "+key+" 已被并发修改")
			}
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, key := range t.order {
				pipe.Set(ctx, t.key(key), t.writes[key], 0)
			}
			return nil
		})
		return err
	}, watched...)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return xerrors.Wrap(xerrors.CodeConflict, err, "Redis 事务被并发修改打断")
	case xerrors.CodeOf(err) == xerrors.CodeConflict:
		return err
	default:
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "提交 Redis 事务失败")
	}
}

func (t *txn) Rollback() error {
	t.done = true
	t.writes = nil
	return nil
}
