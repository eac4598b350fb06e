package seeder

import (
	"context"
	"testing"

	"threadboard/internal/app/post"
	"threadboard/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSeed_EmptyBoard(t *testing.T) {
	ctx := context.Background()
	repo, err := post.NewRepository(ctx, store.NewMemory(), nil, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, NewSeeder(repo, zap.NewNop()).Seed(ctx))

	stats := repo.Stats()
	assert.Equal(t, 1, stats.Threads)
	assert.Equal(t, 1, stats.Replies)

	page, err := repo.ListTopLevel(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, "Welcome", page.Posts[0].Title)

	thread, err := repo.GetThread(ctx, page.Posts[0].ID)
	require.NoError(t, err)
	assert.Len(t, thread.Replies, 1)
}

func TestSeed_SkipsWhenThreadsExist(t *testing.T) {
	ctx := context.Background()
	repo, err := post.NewRepository(ctx, store.NewMemory(), nil, zap.NewNop())
	require.NoError(t, err)
	_, err = repo.Create(ctx, post.CreateParams{Title: "already here"}, 1)
	require.NoError(t, err)

	require.NoError(t, NewSeeder(repo, zap.NewNop()).Seed(ctx))

	stats := repo.Stats()
	assert.Equal(t, 1, stats.Threads)
	assert.Equal(t, 0, stats.Replies)
}
