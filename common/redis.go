package common

import (
	"context"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/go-redis/redis/v8"

	"github.com/ierezell/ml-infra/common/logger"
)

// RedisOptions describes how to reach the result cache.
type RedisOptions struct {
	ConnString string
	MasterName string
	Password   string
}

// NewRedisClient builds a client from opts and pings it. A plain connection
// string is parsed as a redis:// URL; a master name switches to sentinel mode
// with a comma separated address list.
func NewRedisClient(ctx context.Context, opts RedisOptions) (redis.UniversalClient, error) {
	if opts.ConnString == "" {
		return nil, errors.New("redis connection string is empty")
	}

	var client redis.UniversalClient
	if opts.MasterName == "" {
		opt, err := redis.ParseURL(opts.ConnString)
		if err != nil {
			return nil, errors.Wrap(err, "parse redis connection string")
		}
		client = redis.NewClient(opt)
		logger.Logger.Info("redis enabled")
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:      strings.Split(opts.ConnString, ","),
			Password:   opts.Password,
			MasterName: opts.MasterName,
		})
		logger.Logger.Info("redis sentinel mode enabled")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "redis ping")
	}

	return client, nil
}
