package post

import (
	"sort"
	"sync"

	"threadboard/internal/pagination"
)

type entry struct {
	id string
	ts uint64
}

// newerFirst is the thread listing order: bump time descending, id ascending
// on ties.
func newerFirst(a, b entry) bool {
	if a.ts != b.ts {
		return a.ts > b.ts
	}
	return a.id < b.id
}

// olderFirst is the reply order inside a thread.
func olderFirst(a, b entry) bool {
	if a.ts != b.ts {
		return a.ts < b.ts
	}
	return a.id < b.id
}

// index replaces full store scans on reads. It is rebuilt from one scan on
// open and kept current by every write that goes through the repository.
type index struct {
	mu       sync.RWMutex
	threads  []entry
	threadTS map[string]uint64
	children map[string][]entry
	replies  int
	// skipped holds the keys of records left out of results, so each one
	// is counted once however often it is read.
	skipped map[string]struct{}
}

func newIndex() *index {
	return &index{
		threadTS: make(map[string]uint64),
		children: make(map[string][]entry),
		skipped:  make(map[string]struct{}),
	}
}

// skip records key as unreadable and reports the number of distinct
// skipped keys, and whether key was new.
func (ix *index) skip(key string) (int, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.skipped[key]; ok {
		return len(ix.skipped), false
	}
	ix.skipped[key] = struct{}{}
	return len(ix.skipped), true
}

func (ix *index) add(p *Post) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if p.ParentID == nil {
		ix.insertThreadLocked(entry{id: p.ID, ts: p.Timestamp})
		return
	}
	parent := *p.ParentID
	e := entry{id: p.ID, ts: p.Timestamp}
	list := ix.children[parent]
	i := sort.Search(len(list), func(i int) bool { return !olderFirst(list[i], e) })
	list = append(list, entry{})
	copy(list[i+1:], list[i:])
	list[i] = e
	ix.children[parent] = list
	ix.replies++
}

func (ix *index) insertThreadLocked(e entry) {
	ix.threadTS[e.id] = e.ts
	i := sort.Search(len(ix.threads), func(i int) bool { return !newerFirst(ix.threads[i], e) })
	ix.threads = append(ix.threads, entry{})
	copy(ix.threads[i+1:], ix.threads[i:])
	ix.threads[i] = e
}

func (ix *index) removeThreadLocked(e entry) {
	i := sort.Search(len(ix.threads), func(i int) bool { return !newerFirst(ix.threads[i], e) })
	if i < len(ix.threads) && ix.threads[i] == e {
		ix.threads = append(ix.threads[:i], ix.threads[i+1:]...)
	}
	delete(ix.threadTS, e.id)
}

// bump moves a thread to its new timestamp. Unknown ids are ignored.
func (ix *index) bump(id string, ts uint64) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	old, ok := ix.threadTS[id]
	if !ok {
		return
	}
	ix.removeThreadLocked(entry{id: id, ts: old})
	ix.insertThreadLocked(entry{id: id, ts: ts})
}

// threadPage returns the ids inside one page of the thread listing. The
// window is computed under the same lock the ids are read with.
func (ix *index) threadPage(page, pageSize int) ([]string, pagination.Window) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	w := pagination.Compute(len(ix.threads), page, pageSize)
	ids := make([]string, 0, w.Len())
	for _, e := range ix.threads[w.Start:w.End] {
		ids = append(ids, e.id)
	}
	return ids, w
}

func (ix *index) replyIDs(parent string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	list := ix.children[parent]
	ids := make([]string, len(list))
	for i, e := range list {
		ids[i] = e.id
	}
	return ids
}

func (ix *index) stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	s := Stats{
		Threads:        len(ix.threads),
		Replies:        ix.replies,
		SkippedRecords: len(ix.skipped),
	}
	for parent, list := range ix.children {
		if _, ok := ix.threadTS[parent]; !ok {
			s.DanglingReplies += len(list)
		}
	}
	return s
}
