package post

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"threadboard/internal/metrics"
	"threadboard/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Repository interface {
	Create(ctx context.Context, params CreateParams, now uint64) (*CreateResult, error)
	GetThread(ctx context.Context, id string) (*Thread, error)
	ListTopLevel(ctx context.Context, page, pageSize int) (*Page, error)
	Stats() Stats
	Rebuild(ctx context.Context) error
}

const bumpStripes = 64

type repository struct {
	store   store.Store
	metrics *metrics.Metrics
	logger  *zap.SugaredLogger

	// writes hold rebuildMu shared; Rebuild holds it exclusively so no write
	// lands between its scan and the index swap.
	rebuildMu sync.RWMutex
	idx       atomic.Pointer[index]

	// bumpMu serializes bumps of the same thread so the index sees them in
	// the order the store applied them.
	bumpMu [bumpStripes]sync.Mutex
}

// NewRepository builds the in-memory indexes from one scan of st.
func NewRepository(ctx context.Context, st store.Store, m *metrics.Metrics, logger *zap.Logger) (Repository, error) {
	r := &repository{
		store:   st,
		metrics: m,
		logger:  logger.Sugar(),
	}
	if err := r.Rebuild(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *repository) Rebuild(ctx context.Context) error {
	r.rebuildMu.Lock()
	defer r.rebuildMu.Unlock()

	ix := newIndex()
	err := r.store.Scan(ctx, func(id string, value []byte) error {
		p, err := r.decode(id, value)
		if err != nil {
			ix.skip(id)
			r.logger.Warnw("Skipping unreadable record", "id", id, "error", err)
			return nil
		}
		ix.add(p)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan post store: %w", err)
	}

	r.idx.Store(ix)
	stats := ix.stats()
	if r.metrics != nil {
		r.metrics.SkippedRecords.Set(float64(stats.SkippedRecords))
	}

	r.logger.Infow("Post index built",
		"threads", stats.Threads,
		"replies", stats.Replies,
		"dangling_replies", stats.DanglingReplies,
		"skipped_records", stats.SkippedRecords,
	)
	return nil
}

func (r *repository) Create(ctx context.Context, params CreateParams, now uint64) (*CreateResult, error) {
	r.rebuildMu.RLock()
	defer r.rebuildMu.RUnlock()

	p := &Post{
		ID:        uuid.NewString(),
		ParentID:  params.ParentID,
		Title:     params.Title,
		Message:   params.Message,
		File:      params.File,
		Timestamp: now,
	}

	data, err := encodePost(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode post: %w", err)
	}
	if err := r.store.Put(ctx, p.ID, data); err != nil {
		r.writeFailed()
		return nil, fmt.Errorf("failed to store post: %w", err)
	}
	r.idx.Load().add(p)

	result := &CreateResult{Redirect: p.ID, Post: p}
	kind := "thread"
	if p.ParentID != nil {
		kind = "reply"
		result.Redirect = *p.ParentID
		bumped, err := r.bump(ctx, *p.ParentID, now)
		if err != nil {
			r.writeFailed()
			return nil, fmt.Errorf("failed to bump thread %s: %w", *p.ParentID, err)
		}
		result.Bumped = bumped
	}

	if err := r.store.Flush(ctx); err != nil {
		r.writeFailed()
		return nil, fmt.Errorf("failed to flush post store: %w", err)
	}

	if r.metrics != nil {
		r.metrics.PostsCreated.WithLabelValues(kind).Inc()
	}
	return result, nil
}

// bump sets the parent thread's timestamp to now with a single-key
// read-modify-write. A missing parent, or a parent that is itself a reply,
// is left alone and reported as not bumped.
func (r *repository) bump(ctx context.Context, parentID string, now uint64) (bool, error) {
	mu := &r.bumpMu[stripe(parentID)]
	mu.Lock()
	defer mu.Unlock()

	bumped := false
	err := r.store.Update(ctx, parentID, func(current []byte) ([]byte, error) {
		bumped = false
		parent, err := r.decode(parentID, current)
		if err != nil {
			r.logger.Warnw("Parent record is undecodable, not bumping", "parent_id", parentID, "error", err)
			return nil, store.ErrSkipUpdate
		}
		if !parent.IsThread() {
			return nil, store.ErrSkipUpdate
		}
		parent.Timestamp = now
		next, err := encodePost(parent)
		if err != nil {
			return nil, err
		}
		bumped = true
		return next, nil
	})
	if errors.Is(err, store.ErrNotFound) {
		err = nil
	}
	if err != nil {
		return false, err
	}

	if !bumped {
		r.logger.Debugw("Reply stored without bump", "parent_id", parentID)
		if r.metrics != nil {
			r.metrics.DanglingReplies.Inc()
		}
		return false, nil
	}

	r.idx.Load().bump(parentID, now)
	if r.metrics != nil {
		r.metrics.Bumps.Inc()
	}
	return true, nil
}

func (r *repository) GetThread(ctx context.Context, id string) (*Thread, error) {
	p, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}

	ids := r.idx.Load().replyIDs(id)
	replies, err := r.loadMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	return &Thread{Post: p, Replies: replies}, nil
}

func (r *repository) ListTopLevel(ctx context.Context, page, pageSize int) (*Page, error) {
	if pageSize < 1 {
		return nil, NewValidationError("page_size", "must be positive")
	}
	if page < 0 {
		page = 0
	}

	ids, w := r.idx.Load().threadPage(page, pageSize)
	posts, err := r.loadMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	return &Page{Posts: posts, Window: w}, nil
}

func (r *repository) Stats() Stats {
	return r.idx.Load().stats()
}

// decode reads a record stored under key. A record whose id differs from
// its key is rejected like an undecodable one.
func (r *repository) decode(key string, data []byte) (*Post, error) {
	p, version, err := decodeRecord(data)
	if err != nil {
		return nil, err
	}
	if p.ID != key {
		return nil, fmt.Errorf("record for %s is stored under key %s", p.ID, key)
	}
	if version > recordVersion {
		r.logger.Debugw("Read record from a newer version", "id", key, "version", version)
	}
	return p, nil
}

// load returns nil, nil for ids that are absent or unreadable.
func (r *repository) load(ctx context.Context, id string) (*Post, error) {
	data, err := r.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read post %s: %w", id, err)
	}
	p, err := r.decode(id, data)
	if err != nil {
		r.skip(id, err)
		return nil, nil
	}
	return p, nil
}

func (r *repository) loadMany(ctx context.Context, ids []string) ([]*Post, error) {
	posts := make([]*Post, 0, len(ids))
	for _, id := range ids {
		p, err := r.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if p != nil {
			posts = append(posts, p)
		}
	}
	return posts, nil
}

func (r *repository) skip(id string, err error) {
	count, added := r.idx.Load().skip(id)
	if !added {
		return
	}
	r.logger.Warnw("Skipping unreadable record", "id", id, "error", err)
	if r.metrics != nil {
		r.metrics.SkippedRecords.Set(float64(count))
	}
}

func (r *repository) writeFailed() {
	if r.metrics != nil {
		r.metrics.StoreWriteErrors.Inc()
	}
}

func stripe(id string) int {
	h := fnv.New32a()
	h.Write([]byte(id))
	return int(h.Sum32() % bumpStripes)
}
