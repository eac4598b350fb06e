package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var postsBucket = []byte("posts")

// Bolt keeps records in a single bbolt bucket. Every Put and Update is its
// own write transaction, so per-key atomicity comes from bbolt's single writer.
type Bolt struct {
	db     *bolt.DB
	path   string
	logger *zap.Logger
}

func NewBolt(path string, logger *zap.Logger) (*Bolt, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(postsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create posts bucket: %w", err)
	}

	logger.Info("Opened bolt store", zap.String("path", path))

	return &Bolt{db: db, path: path, logger: logger}, nil
}

func (b *Bolt) Put(ctx context.Context, id string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(postsBucket).Put([]byte(id), value)
	})
}

func (b *Bolt) Get(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(postsBucket).Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}
		out = copyBytes(v)
		return nil
	})
	return out, err
}

func (b *Bolt) Update(ctx context.Context, id string, fn UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(postsBucket)
		current := bucket.Get([]byte(id))
		if current == nil {
			return ErrNotFound
		}
		next, err := fn(copyBytes(current))
		if err != nil {
			return err
		}
		return bucket.Put([]byte(id), next)
	})
	if errors.Is(err, ErrSkipUpdate) {
		return nil
	}
	return err
}

// Scan runs inside one read transaction. fn must not write to the store.
func (b *Bolt) Scan(ctx context.Context, fn ScanFunc) error {
	return b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(postsBucket).ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(string(k), copyBytes(v))
		})
	})
}

func (b *Bolt) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.db.Sync(); err != nil {
		return fmt.Errorf("failed to sync bolt store: %w", err)
	}
	return nil
}

func (b *Bolt) Ping(context.Context) error {
	return b.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(postsBucket) == nil {
			return errors.New("posts bucket missing")
		}
		return nil
	})
}

func (b *Bolt) Close() error {
	b.logger.Info("Closing bolt store", zap.String("path", b.path))
	return b.db.Close()
}
