package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	maxWatchRetries = 16
	scanBatch       = 256
)

// Redis keeps each record under its own key, "<prefix>:<id>". Update
// WATCHes only that key, so writes to other posts never abort it.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix + ":"}
}

func (r *Redis) key(id string) string {
	return r.prefix + id
}

// matchPattern is the SCAN pattern for every record key, with glob
// metacharacters in the prefix escaped.
func (r *Redis) matchPattern() string {
	var b strings.Builder
	for _, c := range r.prefix {
		switch c {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	b.WriteByte('*')
	return b.String()
}

func (r *Redis) Put(ctx context.Context, id string, value []byte) error {
	return r.client.Set(ctx, r.key(id), value, 0).Err()
}

func (r *Redis) Get(ctx context.Context, id string) ([]byte, error) {
	v, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return v, err
}

func (r *Redis) Update(ctx context.Context, id string, fn UpdateFunc) error {
	key := r.key(id)
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, ErrSkipUpdate) {
			return nil
		}
		return err
	}
	return fmt.Errorf("update of %s kept conflicting after %d attempts", id, maxWatchRetries)
}

// Scan walks the record keys with SCAN and reads each batch with MGET. SCAN
// may repeat keys, so keys already seen in this scan are dropped; keys
// deleted between SCAN and MGET are skipped.
func (r *Redis) Scan(ctx context.Context, fn ScanFunc) error {
	seen := make(map[string]struct{})
	pattern := r.matchPattern()
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return err
		}

		fresh := keys[:0]
		for _, k := range keys {
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				fresh = append(fresh, k)
			}
		}
		if len(fresh) > 0 {
			values, err := r.client.MGet(ctx, fresh...).Result()
			if err != nil {
				return err
			}
			for i, v := range values {
				s, ok := v.(string)
				if !ok {
					continue
				}
				if err := fn(strings.TrimPrefix(fresh[i], r.prefix), []byte(s)); err != nil {
					return err
				}
			}
		}

		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Flush is a no-op: a write is acknowledged once the server applied it, and
// on-disk persistence follows the server's appendfsync policy.
func (r *Redis) Flush(context.Context) error { return nil }

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close leaves the client open; it belongs to the redis provider.
func (r *Redis) Close() error { return nil }
