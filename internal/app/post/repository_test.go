package post

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"threadboard/internal/metrics"
	"threadboard/internal/store"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRepo(t *testing.T, st store.Store) Repository {
	t.Helper()
	repo, err := NewRepository(context.Background(), st, nil, zap.NewNop())
	require.NoError(t, err)
	return repo
}

func mustCreate(t *testing.T, repo Repository, params CreateParams, now uint64) *CreateResult {
	t.Helper()
	res, err := repo.Create(context.Background(), params, now)
	require.NoError(t, err)
	return res
}

func ids(posts []*Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestRepository_CreateThread(t *testing.T) {
	repo := newTestRepo(t, store.NewMemory())

	res := mustCreate(t, repo, CreateParams{Title: "hi", Message: "first"}, 100)

	assert.Equal(t, res.Post.ID, res.Redirect)
	assert.False(t, res.Bumped)
	assert.Len(t, res.Post.ID, 36)

	thread, err := repo.GetThread(context.Background(), res.Post.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Post, thread.Post)
	assert.Empty(t, thread.Replies)
}

func TestRepository_ReplyBumpsThread(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, store.NewMemory())

	op := mustCreate(t, repo, CreateParams{Title: "op"}, 10)
	reply := mustCreate(t, repo, CreateParams{Message: "r", ParentID: &op.Post.ID}, 30)

	assert.Equal(t, op.Post.ID, reply.Redirect)
	assert.True(t, reply.Bumped)

	thread, err := repo.GetThread(ctx, op.Post.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(30), thread.Post.Timestamp)
	require.Len(t, thread.Replies, 1)
	assert.Equal(t, uint64(30), thread.Replies[0].Timestamp)
}

func TestRepository_BumpFollowsLatestReply(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, store.NewMemory())

	op := mustCreate(t, repo, CreateParams{Title: "op"}, 10)
	other := mustCreate(t, repo, CreateParams{Title: "other"}, 12)
	for _, ts := range []uint64{11, 12, 13} {
		res := mustCreate(t, repo, CreateParams{Message: "r", ParentID: &op.Post.ID}, ts)
		require.True(t, res.Bumped)

		thread, err := repo.GetThread(ctx, op.Post.ID)
		require.NoError(t, err)
		assert.Equal(t, ts, thread.Post.Timestamp)
	}

	page, err := repo.ListTopLevel(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{op.Post.ID, other.Post.ID}, ids(page.Posts))
	assert.Equal(t, uint64(13), page.Posts[0].Timestamp)
}

func TestRepository_RepliesOldestFirst(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, store.NewMemory())

	op := mustCreate(t, repo, CreateParams{Title: "op"}, 1)
	byTS := map[uint64]string{}
	for _, ts := range []uint64{30, 10, 20} {
		r := mustCreate(t, repo, CreateParams{Message: "r", ParentID: &op.Post.ID}, ts)
		byTS[ts] = r.Post.ID
	}
	want := []string{byTS[10], byTS[20], byTS[30]}

	thread, err := repo.GetThread(ctx, op.Post.ID)
	require.NoError(t, err)
	assert.Equal(t, want, ids(thread.Replies))
}

func TestRepository_ListOrdersByBump(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, store.NewMemory())

	a := mustCreate(t, repo, CreateParams{Title: "A"}, 5)
	b := mustCreate(t, repo, CreateParams{Title: "B"}, 15)

	page, err := repo.ListTopLevel(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{b.Post.ID, a.Post.ID}, ids(page.Posts))

	mustCreate(t, repo, CreateParams{Message: "up", ParentID: &a.Post.ID}, 20)

	page, err = repo.ListTopLevel(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{a.Post.ID, b.Post.ID}, ids(page.Posts))
	assert.Equal(t, 2, page.Total)
}

func TestRepository_ListTieBreaksByID(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	for _, id := range []string{"c", "a", "b"} {
		data, err := encodePost(&Post{ID: id, Title: id, Timestamp: 9})
		require.NoError(t, err)
		require.NoError(t, st.Put(ctx, id, data))
	}
	repo := newTestRepo(t, st)

	page, err := repo.ListTopLevel(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(page.Posts))
}

func TestRepository_ListPagination(t *testing.T) {
	ctx := context.Background()
	const pageSize = 3

	tests := []struct {
		threads  int
		page     int
		wantLen  int
		wantPrev bool
		wantNext bool
	}{
		{threads: 0, page: 0, wantLen: 0},
		{threads: pageSize, page: 0, wantLen: pageSize},
		{threads: pageSize + 1, page: 0, wantLen: pageSize, wantNext: true},
		{threads: pageSize + 1, page: 1, wantLen: 1, wantPrev: true},
		{threads: pageSize + 1, page: 5, wantLen: 0, wantPrev: true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d threads page %d", tt.threads, tt.page), func(t *testing.T) {
			repo := newTestRepo(t, store.NewMemory())
			for i := 0; i < tt.threads; i++ {
				mustCreate(t, repo, CreateParams{Title: "t"}, uint64(i+1))
			}

			page, err := repo.ListTopLevel(ctx, tt.page, pageSize)
			require.NoError(t, err)
			assert.Len(t, page.Posts, tt.wantLen)
			assert.Equal(t, tt.wantPrev, page.HasPrev)
			assert.Equal(t, tt.wantNext, page.HasNext)
			assert.Equal(t, tt.threads, page.Total)
		})
	}
}

func TestRepository_ListRejectsBadPageSize(t *testing.T) {
	repo := newTestRepo(t, store.NewMemory())
	_, err := repo.ListTopLevel(context.Background(), 0, 0)
	assert.True(t, IsValidationError(err))
}

func TestRepository_DanglingReplies(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, store.NewMemory())

	orphan := mustCreate(t, repo, CreateParams{Message: "lost", ParentID: strPtr("no-such-thread")}, 5)
	assert.False(t, orphan.Bumped)
	assert.Equal(t, "no-such-thread", orphan.Redirect)

	op := mustCreate(t, repo, CreateParams{Title: "op"}, 10)
	r1 := mustCreate(t, repo, CreateParams{Message: "r1", ParentID: &op.Post.ID}, 20)
	nested := mustCreate(t, repo, CreateParams{Message: "r2", ParentID: &r1.Post.ID}, 30)
	assert.False(t, nested.Bumped)

	thread, err := repo.GetThread(ctx, op.Post.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), thread.Post.Timestamp, "nested reply does not bump the thread")
	assert.Equal(t, []string{r1.Post.ID}, ids(thread.Replies))

	page, err := repo.ListTopLevel(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{op.Post.ID}, ids(page.Posts))

	stats := repo.Stats()
	assert.Equal(t, 1, stats.Threads)
	assert.Equal(t, 3, stats.Replies)
	assert.Equal(t, 2, stats.DanglingReplies)
}

func TestRepository_GetThreadNotFound(t *testing.T) {
	repo := newTestRepo(t, store.NewMemory())
	_, err := repo.GetThread(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_SkipsCorruptRecords(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	require.NoError(t, st.Put(ctx, "junk", []byte("not json")))
	good, err := encodePost(&Post{ID: "good", Title: "ok", Timestamp: 1})
	require.NoError(t, err)
	require.NoError(t, st.Put(ctx, "good", good))
	require.NoError(t, st.Put(ctx, "alias", good))

	m := metrics.New()
	repo, err := NewRepository(ctx, st, m, zap.NewNop())
	require.NoError(t, err)

	page, err := repo.ListTopLevel(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"good"}, ids(page.Posts))
	assert.Equal(t, 2, repo.Stats().SkippedRecords)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.SkippedRecords))

	for i := 0; i < 5; i++ {
		_, err = repo.GetThread(ctx, "junk")
		assert.ErrorIs(t, err, ErrNotFound)
	}
	require.NoError(t, repo.Rebuild(ctx))
	assert.Equal(t, 2, repo.Stats().SkippedRecords, "each record is counted once")
	assert.Equal(t, float64(2), testutil.ToFloat64(m.SkippedRecords))
}

func TestRepository_RecordUnderForeignKeyIsNotFound(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	good, err := encodePost(&Post{ID: "good", Title: "ok", Timestamp: 1})
	require.NoError(t, err)
	require.NoError(t, st.Put(ctx, "good", good))
	require.NoError(t, st.Put(ctx, "alias", good))
	repo := newTestRepo(t, st)

	_, err = repo.GetThread(ctx, "alias")
	assert.ErrorIs(t, err, ErrNotFound)

	thread, err := repo.GetThread(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, "good", thread.Post.ID)
	assert.Equal(t, 1, repo.Stats().SkippedRecords)
}

func TestRepository_CorruptRecordFoundOnRead(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	m := metrics.New()
	repo, err := NewRepository(ctx, st, m, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, st.Put(ctx, "late", []byte("{broken")))
	for i := 0; i < 3; i++ {
		_, err = repo.GetThread(ctx, "late")
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, 1, repo.Stats().SkippedRecords)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SkippedRecords))
}

func TestRepository_ReadsNewerRecordVersions(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	require.NoError(t, st.Put(ctx, "new", []byte(`{"v":2,"id":"new","title":"from the future","timestamp":5,"extra":"x"}`)))
	repo := newTestRepo(t, st)

	page, err := repo.ListTopLevel(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, ids(page.Posts))
	assert.Equal(t, 0, repo.Stats().SkippedRecords)

	reply := mustCreate(t, repo, CreateParams{Message: "r", ParentID: strPtr("new")}, 8)
	assert.True(t, reply.Bumped)
}

func TestRepository_RebuildFromBolt(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "board.db")

	st, err := store.NewBolt(path, zap.NewNop())
	require.NoError(t, err)
	repo := newTestRepo(t, st)
	a := mustCreate(t, repo, CreateParams{Title: "A"}, 1)
	b := mustCreate(t, repo, CreateParams{Title: "B"}, 2)
	mustCreate(t, repo, CreateParams{Message: "r", ParentID: &a.Post.ID}, 3)
	require.NoError(t, st.Close())

	st, err = store.NewBolt(path, zap.NewNop())
	require.NoError(t, err)
	defer st.Close()
	repo = newTestRepo(t, st)

	page, err := repo.ListTopLevel(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{a.Post.ID, b.Post.ID}, ids(page.Posts))

	thread, err := repo.GetThread(ctx, a.Post.ID)
	require.NoError(t, err)
	assert.Len(t, thread.Replies, 1)
	assert.Equal(t, uint64(3), thread.Post.Timestamp)
}

func TestRepository_RebuildPicksUpExternalWrites(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	repo := newTestRepo(t, st)

	data, err := encodePost(&Post{ID: "ext", Title: "written elsewhere", Timestamp: 4})
	require.NoError(t, err)
	require.NoError(t, st.Put(ctx, "ext", data))
	assert.Equal(t, 0, repo.Stats().Threads)

	require.NoError(t, repo.Rebuild(ctx))
	assert.Equal(t, 1, repo.Stats().Threads)
}

func TestRepository_ConcurrentReplies(t *testing.T) {
	ctx := context.Background()
	m := metrics.New()
	repo, err := NewRepository(ctx, store.NewMemory(), m, zap.NewNop())
	require.NoError(t, err)
	op := mustCreate(t, repo, CreateParams{Title: "busy"}, 1)

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(ts uint64) {
			defer wg.Done()
			if _, err := repo.Create(ctx, CreateParams{Message: "r", ParentID: &op.Post.ID}, ts); err != nil {
				errs <- err
			}
		}(uint64(i + 2))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	thread, err := repo.GetThread(ctx, op.Post.ID)
	require.NoError(t, err)
	require.Len(t, thread.Replies, n)
	for i := 1; i < n; i++ {
		assert.LessOrEqual(t, thread.Replies[i-1].Timestamp, thread.Replies[i].Timestamp)
	}
	assert.Equal(t, float64(n), testutil.ToFloat64(m.Bumps))
	assert.Equal(t, float64(n), testutil.ToFloat64(m.PostsCreated.WithLabelValues("reply")))

	page, err := repo.ListTopLevel(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, thread.Post.Timestamp, page.Posts[0].Timestamp)
}

type failingFlushStore struct {
	*store.Memory
}

var errDiskFull = errors.New("disk full")

func (failingFlushStore) Flush(context.Context) error { return errDiskFull }

func TestRepository_FlushFailure(t *testing.T) {
	m := metrics.New()
	repo, err := NewRepository(context.Background(), failingFlushStore{store.NewMemory()}, m, zap.NewNop())
	require.NoError(t, err)

	_, err = repo.Create(context.Background(), CreateParams{Title: "t"}, 1)
	assert.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.StoreWriteErrors))
}
