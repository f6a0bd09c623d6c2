package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"Attest-Resolver/internal/api"
	"Attest-Resolver/internal/config"
	"Attest-Resolver/internal/observability/metrics"
	"Attest-Resolver/pkg/logger"
)

// main 是解析器守护进程的入口。
func main() {
	configPath := flag.String("config", "", "配置文件路径，默认读取 "+config.EnvConfigPath)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config.ResolvePath(*configPath)); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("resolverd 运行失败: %v", err)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.Outputs,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Logging.Audit.Enabled,
			Path:       cfg.Logging.Audit.Path,
			MaxSizeMB:  cfg.Logging.Audit.MaxSizeMB,
			MaxBackups: cfg.Logging.Audit.MaxBackups,
			MaxAgeDays: cfg.Logging.Audit.MaxAgeDays,
			Compress:   cfg.Logging.Audit.Compress,
		},
	}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	lg := logger.Named("resolverd")

	rt, err := setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	if cfg.Metrics.Address != "" {
		go func() {
			if err := metrics.StartServer(ctx, cfg.Metrics.Address); err != nil && !errors.Is(err, context.Canceled) {
				lg.Error("metrics server stopped", slog.Any("error", err))
			}
		}()
	}

	lg.Info("resolverd started",
		slog.String("storage", cfg.Storage.Driver),
		slog.String("events", cfg.Events.Driver),
		slog.String("auth", cfg.Auth.Mode),
		slog.Int("resolvers", len(cfg.Resolvers)),
	)
	server := api.NewServer(cfg.Server.Address, rt.Registry)
	return server.Start(ctx)
}
