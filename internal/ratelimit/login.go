// Package ratelimit throttles repeated failed logins per username and per client IP in Redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited is returned by Check once a username or IP has used its failure budget.
	ErrRateLimited = errors.New("too many failed login attempts")
	// ErrUnavailable wraps Redis failures.
	ErrUnavailable = errors.New("rate limiter unavailable")
)

// LoginLimiter counts failed logins in fixed windows that start at the first failure.
type LoginLimiter struct {
	redis       redis.UniversalClient
	maxAttempts int64
	cooldown    time.Duration
}

// NewLoginLimiter returns a limiter allowing maxAttempts failures per cooldown window.
func NewLoginLimiter(client redis.UniversalClient, maxAttempts int, cooldown time.Duration) *LoginLimiter {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	if cooldown <= 0 {
		cooldown = 15 * time.Minute
	}
	return &LoginLimiter{redis: client, maxAttempts: int64(maxAttempts), cooldown: cooldown}
}

// NewClient parses a redis:// or rediss:// URL and returns a client for it.
func NewClient(rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Check returns ErrRateLimited when either the username or the IP has exhausted its budget.
func (l *LoginLimiter) Check(ctx context.Context, username, ip string) error {
	for _, key := range l.keys(username, ip) {
		n, err := l.redis.Get(ctx, key).Int64()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if n >= l.maxAttempts {
			return ErrRateLimited
		}
	}
	return nil
}

// RecordFailure counts one failed attempt against username and ip.
func (l *LoginLimiter) RecordFailure(ctx context.Context, username, ip string) error {
	for _, key := range l.keys(username, ip) {
		n, err := l.redis.Incr(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if n == 1 {
			if err := l.redis.Expire(ctx, key, l.cooldown).Err(); err != nil {
				return fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
		}
	}
	return nil
}

// Reset clears the username counter after a successful login. The IP counter is kept so a
// single client cannot spray many accounts by interleaving one valid login.
func (l *LoginLimiter) Reset(ctx context.Context, username string) error {
	if err := l.redis.Del(ctx, userKey(username)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (l *LoginLimiter) keys(username, ip string) []string {
	keys := []string{userKey(username)}
	if ip != "" {
		keys = append(keys, "login:fail:ip:"+ip)
	}
	return keys
}

func userKey(username string) string {
	return "login:fail:user:" + strings.ToLower(strings.TrimSpace(username))
}

// HealthCheck pings Redis. It satisfies the readiness Checker.
func (l *LoginLimiter) HealthCheck(ctx context.Context) error {
	if err := l.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
