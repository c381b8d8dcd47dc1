package redis

import (
	"context"
	"time"

	"chwone-controlplane/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the shared client used by the sweep lock, the readiness
// probe and the asynq client.
var Module = fx.Module("redis",
	fx.Provide(New),
)

func New(lc fx.Lifecycle, c *config.Config) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:        c.Redis.Addr,
		Password:    c.Redis.Password,
		DB:          c.Redis.DB,
		PoolSize:    c.Redis.PoolSize,
		PoolTimeout: c.Redis.PoolTimeout,
	})

	log := zap.L().With(zap.String("addr", c.Redis.Addr), zap.Int("db", c.Redis.DB))
	if err := waitReady(rdb, c.Redis.ConnectRetries, c.Redis.RetryInterval, log); err != nil {
		// Sweeps and readiness degrade; license reads and writes only need the database.
		log.Error("[Redis] unreachable, continuing without it", zap.Error(err))
	} else {
		log.Info("[Redis] connected", zap.Int("pool_size", c.Redis.PoolSize))
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return rdb.Close()
		},
	})

	return rdb
}

func waitReady(rdb *redis.Client, attempts int, interval time.Duration, log *zap.Logger) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = rdb.Ping(ctx).Err()
		cancel()
		if err == nil {
			return nil
		}
		if i < attempts {
			log.Warn("[Redis] not ready", zap.Int("attempt", i), zap.Duration("retry_in", interval), zap.Error(err))
			time.Sleep(interval)
		}
	}
	return err
}
