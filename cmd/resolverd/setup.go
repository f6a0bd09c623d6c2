package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"Attest-Resolver/internal/auth"
	"Attest-Resolver/internal/config"
	"Attest-Resolver/internal/events"
	"Attest-Resolver/internal/host"
	"Attest-Resolver/internal/observability/alerting"
	"Attest-Resolver/internal/resolver"
	"Attest-Resolver/internal/resolver/fee"
	"Attest-Resolver/internal/resolver/reward"
	"Attest-Resolver/internal/storage"
	"Attest-Resolver/internal/storage/memory"
	"Attest-Resolver/internal/storage/mysql"
	"Attest-Resolver/internal/storage/redis"
	"Attest-Resolver/internal/token"
	"Attest-Resolver/pkg/logger"
)

// daemon 汇总守护进程运行期间持有的资源。
type daemon struct {
	Host      *host.Host
	Registry  *resolver.Registry
	store     storage.Store
	publisher events.Publisher
}

// Close 释放存储与事件发布器。
func (rt *daemon) Close() {
	log := logger.Named("resolverd")
	if err := rt.publisher.Close(); err != nil {
		log.Warn("close publisher failed", slog.Any("error", err))
	}
	if err := rt.store.Close(); err != nil {
		log.Warn("close store failed", slog.Any("error", err))
	}
}

// setup 按配置组装存储、事件、授权与解析器，并完成代币部署和解析器构造。
func setup(ctx context.Context, cfg *config.Config) (*daemon, error) {
	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	publisher, err := openPublisher(ctx, cfg.Events)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	rt := &daemon{store: store, publisher: publisher}

	verifier, err := auth.NewVerifier(auth.Mode(cfg.Auth.Mode))
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Host = host.New(store,
		host.WithVerifier(verifier),
		host.WithPublisher(publisher),
		host.WithAlertDispatcher(alerting.NewFanout(&alerting.LogNotifier{})),
	)

	if err := deployTokens(ctx, rt.Host, cfg.Tokens); err != nil {
		rt.Close()
		return nil, err
	}
	registry, err := buildResolvers(ctx, rt.Host, cfg.Resolvers)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Registry = registry
	return rt, nil
}

func openStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Driver {
	case "memory", "":
		return memory.New(), nil
	case "mysql":
		return mysql.Open(ctx, mysql.Config{
			DSN:             cfg.MySQL.DSN,
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.MySQL.ConnMaxLifetimeSeconds) * time.Second,
			ConnMaxIdleTime: time.Duration(cfg.MySQL.ConnMaxIdleTimeSeconds) * time.Second,
		})
	case "redis":
		return redis.Open(ctx, redis.Config{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
	default:
		return nil, fmt.Errorf("未知的存储驱动: %s", cfg.Driver)
	}
}

func openPublisher(ctx context.Context, cfg config.EventsConfig) (events.Publisher, error) {
	switch cfg.Driver {
	case "none", "":
		return events.Discard{}, nil
	case "memory":
		return events.NewMemoryPublisher(cfg.Memory.Limit), nil
	case "redis":
		return events.NewRedisPublisher(ctx, events.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			List:     cfg.Redis.List,
			Channel:  cfg.Redis.Channel,
			MaxLen:   cfg.Redis.MaxLen,
		})
	case "rabbitmq":
		return events.NewRabbitMQPublisher(events.RabbitMQConfig{
			URL:        cfg.RabbitMQ.URL,
			Queue:      cfg.RabbitMQ.Queue,
			Durable:    cfg.RabbitMQ.Durable,
			AutoDelete: cfg.RabbitMQ.AutoDelete,
		})
	default:
		return nil, fmt.Errorf("未知的事件驱动: %s", cfg.Driver)
	}
}

// deployTokens 部署尚不存在的代币；已存在的代币不会重复发行。
func deployTokens(ctx context.Context, h *host.Host, tokens []config.TokenConfig) error {
	for _, tc := range tokens {
		addr, err := config.ParseAddress(tc.Address)
		if err != nil {
			return err
		}
		deployed, err := h.TokenDeployed(ctx, addr)
		if err != nil {
			return err
		}
		if deployed {
			continue
		}
		if err := h.DeployToken(ctx, addr, token.Metadata{Name: tc.Name, Symbol: tc.Symbol, Decimals: tc.Decimals}); err != nil {
			return err
		}
		for _, m := range tc.Mints {
			to, err := config.ParseAddress(m.To)
			if err != nil {
				return err
			}
			amount, err := config.ParseAmount(m.Amount)
			if err != nil {
				return err
			}
			if err := h.MintToken(ctx, addr, to, amount); err != nil {
				return err
			}
		}
	}
	return nil
}

// constructor 在实例未初始化时完成构造。
type constructor interface {
	resolver.Resolver
	resolver.Inspector
}

// buildResolvers 绑定配置中的解析器并构造尚未初始化的实例。
func buildResolvers(ctx context.Context, h *host.Host, cfgs []config.ResolverConfig) (*resolver.Registry, error) {
	registry := resolver.NewRegistry()
	for _, rc := range cfgs {
		res, construct, err := bindResolver(h, rc)
		if err != nil {
			return nil, err
		}
		initialized, err := res.Initialized(ctx)
		if err != nil {
			return nil, err
		}
		if !initialized {
			if err := construct(ctx); err != nil {
				return nil, fmt.Errorf("构造解析器 %s 失败: %w", rc.Name, err)
			}
		}
		if err := registry.Register(rc.Name, res); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func bindResolver(h *host.Host, rc config.ResolverConfig) (constructor, func(context.Context) error, error) {
	address, err := config.ParseAddress(rc.Address)
	if err != nil {
		return nil, nil, err
	}
	admin, err := config.ParseAddress(rc.Admin)
	if err != nil {
		return nil, nil, err
	}
	tok, err := config.ParseAddress(rc.Token)
	if err != nil {
		return nil, nil, err
	}
	beneficiary, err := config.ParseAddress(rc.Beneficiary)
	if err != nil {
		return nil, nil, err
	}
	amount, err := config.ParseAmount(rc.Amount)
	if err != nil {
		return nil, nil, err
	}

	switch rc.Kind {
	case config.KindReward:
		r := reward.New(h, address, reward.WithProtocolCallerCheck(rc.EnforceProtocolCaller))
		return r, func(ctx context.Context) error {
			return r.Construct(ctx, reward.Params{Admin: admin, Token: tok, RewardAmount: amount, ProtocolCaller: beneficiary})
		}, nil
	case config.KindFee:
		r := fee.New(h, address)
		return r, func(ctx context.Context) error {
			return r.Construct(ctx, fee.Params{Admin: admin, Token: tok, Fee: amount, Recipient: beneficiary})
		}, nil
	default:
		return nil, nil, fmt.Errorf("未知的解析器类型: %s", rc.Kind)
	}
}
