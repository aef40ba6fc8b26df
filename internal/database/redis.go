package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisClient backs admission windows, draft pointers, the org cache,
// the IP guard and the report fan-out channel.
var RedisClient *redis.Client

func tuneRedis(opt *redis.Options) {
	opt.PoolSize = 20
	opt.MinIdleConns = 2
	opt.MaxRetries = 2
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 2 * time.Second
	opt.WriteTimeout = 2 * time.Second
	opt.ConnMaxIdleTime = 10 * time.Minute
}

func ConnectRedis(redisURI string, logger *zap.Logger) error {
	opt, err := redis.ParseURL(redisURI)
	if err != nil {
		return fmt.Errorf("parse redis uri: %w", err)
	}
	tuneRedis(opt)

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), opt.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("ping redis: %w", err)
	}

	RedisClient = client
	logger.Info("connected to Redis", zap.Int("db", opt.DB), zap.Int("pool_size", opt.PoolSize))
	return nil
}

func DisconnectRedis() error {
	if RedisClient == nil {
		return nil
	}
	err := RedisClient.Close()
	RedisClient = nil
	return err
}
