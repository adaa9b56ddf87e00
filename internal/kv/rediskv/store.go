// Package rediskv provides the Redis-backed key-value engine.
package rediskv

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/bandhanheal/backend/internal/kv"
)

// Config holds Redis engine configuration.
type Config struct {
	Addr        string        // host:port
	MaxIdle     int           // idle connections in the pool (default: 4)
	IdleTimeout time.Duration // default: 4 minutes
}

// Store is a kv.Store backed by a Redis server.
type Store struct {
	pool *redis.Pool
}

// NewStore creates a connection pool against cfg.Addr and verifies it with a
// PING.
func NewStore(cfg Config) (*Store, error) {
	maxIdle := cfg.MaxIdle
	if maxIdle <= 0 {
		maxIdle = 4
	}
	idleTimeout := cfg.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = 4 * time.Minute
	}

	pool := &redis.Pool{
		MaxIdle:     maxIdle,
		IdleTimeout: idleTimeout,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialContext(ctx, "tcp", cfg.Addr)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}

	conn, err := pool.GetContext(context.Background())
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	defer conn.Close()
	if _, err := conn.Do("PING"); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Get returns the value stored under key, or kv.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	defer conn.Close()

	value, err := redis.Bytes(redis.DoContext(conn, ctx, "GET", key))
	if err == redis.ErrNil {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return value, nil
}

// Set writes value under key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	defer conn.Close()

	if _, err := redis.DoContext(conn, ctx, "SET", key, value); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// SetIfMatch writes next under key only if the current value equals expected,
// using WATCH/MULTI/EXEC so a concurrent write aborts the transaction.
func (s *Store) SetIfMatch(ctx context.Context, key string, expected, next []byte) (bool, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return false, fmt.Errorf("set-if-match %q: %w", key, err)
	}
	defer conn.Close()

	if _, err := redis.DoContext(conn, ctx, "WATCH", key); err != nil {
		return false, fmt.Errorf("set-if-match %q: %w", key, err)
	}

	current, err := redis.Bytes(redis.DoContext(conn, ctx, "GET", key))
	if err == redis.ErrNil || (err == nil && !bytes.Equal(current, expected)) {
		_, _ = redis.DoContext(conn, ctx, "UNWATCH")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("set-if-match %q: %w", key, err)
	}

	if err := conn.Send("MULTI"); err != nil {
		return false, fmt.Errorf("set-if-match %q: %w", key, err)
	}
	if err := conn.Send("SET", key, next); err != nil {
		return false, fmt.Errorf("set-if-match %q: %w", key, err)
	}
	reply, err := redis.DoContext(conn, ctx, "EXEC")
	if err != nil {
		return false, fmt.Errorf("set-if-match %q: %w", key, err)
	}
	// EXEC replies nil when the watched key changed under us.
	return reply != nil, nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	defer conn.Close()

	if _, err := redis.DoContext(conn, ctx, "DEL", key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// ScanPrefix iterates SCAN with a MATCH pattern and fetches each value. SCAN
// only guarantees keys present for the whole iteration are returned, which
// matches the contract's relaxed snapshot semantics.
func (s *Store) ScanPrefix(ctx context.Context, prefix string) ([]kv.Entry, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan %q: %w", prefix, err)
	}
	defer conn.Close()

	pattern := escapeGlob(prefix) + "*"
	var keys []string
	cursor := 0
	for {
		reply, err := redis.Values(redis.DoContext(conn, ctx, "SCAN", cursor, "MATCH", pattern, "COUNT", 100))
		if err != nil {
			return nil, fmt.Errorf("scan %q: %w", prefix, err)
		}
		cursor, err = redis.Int(reply[0], nil)
		if err != nil {
			return nil, fmt.Errorf("scan %q: %w", prefix, err)
		}
		batch, err := redis.Strings(reply[1], nil)
		if err != nil {
			return nil, fmt.Errorf("scan %q: %w", prefix, err)
		}
		keys = append(keys, batch...)
		if cursor == 0 {
			break
		}
	}

	entries := make([]kv.Entry, 0, len(keys))
	for _, key := range keys {
		value, err := redis.Bytes(redis.DoContext(conn, ctx, "GET", key))
		if err == redis.ErrNil {
			continue // deleted mid-scan
		}
		if err != nil {
			return nil, fmt.Errorf("scan %q: %w", prefix, err)
		}
		entries = append(entries, kv.Entry{Key: key, Value: value})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

// Close drains the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// escapeGlob backslash-escapes SCAN MATCH metacharacters so prefixes are
// matched literally.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
