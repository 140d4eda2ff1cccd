package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/NogaLive/SNIUGB/internal/notification"
	"github.com/NogaLive/SNIUGB/internal/platform/config"
	"github.com/NogaLive/SNIUGB/internal/platform/kafka"
	"github.com/NogaLive/SNIUGB/internal/platform/logger"
	"github.com/NogaLive/SNIUGB/internal/platform/postgres"
	platformredis "github.com/NogaLive/SNIUGB/internal/platform/redis"
	pgstore "github.com/NogaLive/SNIUGB/internal/storage/postgres"
	transferservice "github.com/NogaLive/SNIUGB/internal/transfer/service"
	"github.com/NogaLive/SNIUGB/internal/transfer/sweeper"
	"github.com/NogaLive/SNIUGB/pkg/platform/circuit"
)

// runtime holds the dependencies shared by every command that talks to the
// database.
type runtime struct {
	cfg    *config.Config
	logger *slog.Logger
	sqlDB  *sql.DB
	store  *pgstore.DB
}

func bootstrap(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	sqlDB, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return &runtime{
		cfg:    cfg,
		logger: log,
		sqlDB:  sqlDB,
		store:  pgstore.New(sqlDB, pgstore.WithTimeout(cfg.Database.TxTimeout)),
	}, nil
}

func (rt *runtime) Close() {
	if err := rt.sqlDB.Close(); err != nil {
		rt.logger.Warn("failed to close database", "error", err)
	}
}

// notifier publishes to Kafka when brokers are configured and falls back to
// the log otherwise. The returned func releases the producer.
func (rt *runtime) notifier(ctx context.Context) (transferservice.Notifier, func(), error) {
	client, err := kafka.New(rt.cfg.Kafka)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		rt.logger.InfoContext(ctx, "no kafka brokers configured, transfer notices go to the log")
		return notification.NewLogGateway(rt.logger), func() {}, nil
	}
	if err := kafka.EnsureTopic(ctx, client, rt.cfg.Kafka); err != nil {
		rt.logger.WarnContext(ctx, "could not ensure notice topic", "topic", rt.cfg.Kafka.Topic, "error", err)
	}
	breaker := circuit.New("kafka-notifications")
	return notification.NewKafkaGateway(client, rt.cfg.Kafka.Topic, rt.logger, notification.WithBreaker(breaker)), client.Close, nil
}

// redis connects when REDIS_URL is set. A nil client means the sweeper runs
// without the cross-replica lock.
func (rt *runtime) redis(ctx context.Context) (*platformredis.Client, error) {
	client, err := platformredis.New(ctx, rt.cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if client == nil {
		rt.logger.InfoContext(ctx, "no redis configured, expiry sweeps are not coordinated across replicas")
	}
	return client, nil
}

func (rt *runtime) sweeperOptions(client *platformredis.Client) []sweeper.Option {
	opts := []sweeper.Option{
		sweeper.WithInterval(rt.cfg.Sweeper.Interval),
		sweeper.WithWindow(rt.cfg.Sweeper.Window),
		sweeper.WithLogger(rt.logger),
	}
	if client != nil {
		opts = append(opts, sweeper.WithLocker(platformredis.NewLocker(client.Client)))
	}
	return opts
}
