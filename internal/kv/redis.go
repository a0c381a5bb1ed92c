package kv

import (
	"context"
	"time"

	"github.com/gomodule/redigo/redis"
)

// Redis is a Store backed by a redigo connection pool.
type Redis struct {
	pool *redis.Pool
}

// NewRedis creates a redis-backed store for the given address
// (host:port).
func NewRedis(addr string) *Redis {
	return &Redis{
		pool: &redis.Pool{
			MaxIdle:     4,
			MaxActive:   16,
			IdleTimeout: 240 * time.Second,
			Wait:        true,
			Dial: func() (redis.Conn, error) {
				return redis.Dial("tcp", addr,
					redis.DialConnectTimeout(5*time.Second),
					redis.DialReadTimeout(5*time.Second),
					redis.DialWriteTimeout(5*time.Second),
				)
			},
		},
	}
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	value, err := redis.String(redis.DoContext(conn, ctx, "GET", key))
	if err == redis.ErrNil {
		return "", ErrNotFound
	}
	return value, err
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = redis.DoContext(conn, ctx, "SET", key, value)
	return err
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = redis.DoContext(conn, ctx, "DEL", key)
	return err
}

// Ping verifies the redis connection is alive.
func (r *Redis) Ping(ctx context.Context) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = redis.DoContext(conn, ctx, "PING")
	return err
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.pool.Close()
}
