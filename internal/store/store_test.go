package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func engines(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemory()
		},
		"bolt": func(t *testing.T) Store {
			s, err := NewBolt(filepath.Join(t.TempDir(), "board.db"), zap.NewNop())
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func TestStore_PutGet(t *testing.T) {
	for name, open := range engines(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			require.NoError(t, s.Put(ctx, "a", []byte("one")))
			v, err := s.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, []byte("one"), v)

			require.NoError(t, s.Put(ctx, "a", []byte("two")))
			v, err = s.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, []byte("two"), v, "put overwrites")

			_, err = s.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_GetReturnsCopy(t *testing.T) {
	for name, open := range engines(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			value := []byte("abc")
			require.NoError(t, s.Put(ctx, "k", value))
			value[0] = 'X'

			got, err := s.Get(ctx, "k")
			require.NoError(t, err)
			got[1] = 'Y'

			again, err := s.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("abc"), again)
		})
	}
}

func TestStore_Update(t *testing.T) {
	for name, open := range engines(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			require.NoError(t, s.Put(ctx, "k", []byte("v1")))

			err := s.Update(ctx, "k", func(cur []byte) ([]byte, error) {
				assert.Equal(t, []byte("v1"), cur)
				return []byte("v2"), nil
			})
			require.NoError(t, err)
			v, _ := s.Get(ctx, "k")
			assert.Equal(t, []byte("v2"), v)

			t.Run("missing key", func(t *testing.T) {
				called := false
				err := s.Update(ctx, "nope", func(cur []byte) ([]byte, error) {
					called = true
					return cur, nil
				})
				assert.ErrorIs(t, err, ErrNotFound)
				assert.False(t, called)
			})

			t.Run("skip", func(t *testing.T) {
				err := s.Update(ctx, "k", func([]byte) ([]byte, error) {
					return []byte("ignored"), ErrSkipUpdate
				})
				require.NoError(t, err)
				v, _ := s.Get(ctx, "k")
				assert.Equal(t, []byte("v2"), v)
			})

			t.Run("callback error", func(t *testing.T) {
				boom := errors.New("boom")
				err := s.Update(ctx, "k", func([]byte) ([]byte, error) {
					return nil, boom
				})
				assert.ErrorIs(t, err, boom)
				v, _ := s.Get(ctx, "k")
				assert.Equal(t, []byte("v2"), v)
			})
		})
	}
}

func TestStore_ConcurrentUpdatesDoNotLoseWrites(t *testing.T) {
	for name, open := range engines(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			require.NoError(t, s.Put(ctx, "counter", []byte("0")))

			const workers = 20
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := s.Update(ctx, "counter", func(cur []byte) ([]byte, error) {
						var n int
						fmt.Sscanf(string(cur), "%d", &n)
						return []byte(fmt.Sprintf("%d", n+1)), nil
					})
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			v, err := s.Get(ctx, "counter")
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("%d", workers), string(v))
		})
	}
}

func TestStore_Scan(t *testing.T) {
	for name, open := range engines(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			want := map[string]string{"a": "1", "b": "2", "c": "3"}
			for k, v := range want {
				require.NoError(t, s.Put(ctx, k, []byte(v)))
			}

			got := map[string]string{}
			err := s.Scan(ctx, func(id string, value []byte) error {
				got[id] = string(value)
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, want, got)

			stop := errors.New("stop")
			visited := 0
			err = s.Scan(ctx, func(string, []byte) error {
				visited++
				return stop
			})
			assert.ErrorIs(t, err, stop)
			assert.Equal(t, 1, visited)
		})
	}
}

func TestStore_FlushAndPing(t *testing.T) {
	for name, open := range engines(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			require.NoError(t, s.Put(ctx, "a", []byte("1")))
			assert.NoError(t, s.Flush(ctx))
			assert.NoError(t, s.Ping(ctx))
		})
	}
}

func TestBolt_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "board.db")

	s, err := NewBolt(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "a", []byte("kept")))
	require.NoError(t, s.Flush(ctx))
	require.NoError(t, s.Close())

	reopened, err := NewBolt(path, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	v, err := reopened.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("kept"), v)
}

func TestStore_CanceledContext(t *testing.T) {
	for name, open := range engines(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			require.NoError(t, s.Put(context.Background(), "a", []byte("1")))

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			err := s.Scan(ctx, func(string, []byte) error { return nil })
			assert.ErrorIs(t, err, context.Canceled)
		})
	}
}
