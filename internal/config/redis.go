package config

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig locates the Redis server behind the rate limiter and the
// catalogue cache.
type RedisConfig struct {
	Addr        string // REDIS_HOST+REDIS_PORT, else REDIS_ADDR, else localhost:6379
	Password    string // REDIS_PASSWORD
	DB          int    // REDIS_DB
	TLS         bool   // REDIS_TLS
	TLSInsecure bool   // REDIS_TLS_INSECURE skips certificate checks
}

func LoadRedisConfig() RedisConfig {
	addr := envStr("REDIS_ADDR", "localhost:6379")
	if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
		addr = net.JoinHostPort(host, port)
	}
	return RedisConfig{
		Addr:        addr,
		Password:    os.Getenv("REDIS_PASSWORD"),
		DB:          envInt("REDIS_DB", 0),
		TLS:         envBool("REDIS_TLS", false),
		TLSInsecure: envBool("REDIS_TLS_INSECURE", false),
	}
}

// NewRedisClient connects and pings within 2s.  On error no client is
// returned; callers then run the middlewares in pass-through mode.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	opts := &redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
	if cfg.TLS {
		host, _, _ := net.SplitHostPort(cfg.Addr)
		opts.TLSConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			ServerName:         host,
			InsecureSkipVerify: cfg.TLSInsecure,
		}
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}
