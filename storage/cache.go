package storage

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"taskledger-api/domain"
)

// DefaultCacheSize bounds the view cache when no explicit size is
// configured.
const DefaultCacheSize = 256

// backend is the slice of the store the cache sits in front of.
type backend interface {
	ListCurrent(ctx context.Context, accountID uuid.UUID, day time.Time) ([]domain.TaskRow, error)
	CreateTask(ctx context.Context, accountID uuid.UUID, content string) (uuid.UUID, error)
	AppendEvent(ctx context.Context, accountID, taskID uuid.UUID, kind domain.EventKind) error
	Ping(ctx context.Context) error
}

// Cache wraps a store with an in-process view cache keyed by account id.
// Entries are whole snapshots, replaced atomically and bounded by an LRU
// eviction once capacity is exceeded. Concurrent misses for the same account
// collapse into a single build; the internal lock is never held across the
// storage query.
type Cache struct {
	base   backend
	render func(string) string

	mu      sync.Mutex
	entries map[uuid.UUID]*list.Element
	order   *list.List // front = most recently used
	size    int
	// gens lets an invalidation that lands while a build is in flight win
	// over the build's (possibly stale) result.
	gens map[uuid.UUID]uint64

	group singleflight.Group
}

type cacheEntry struct {
	accountID uuid.UUID
	snapshot  domain.ViewSnapshot
}

// NewCache creates a view cache over base. render formats task content for
// display when a snapshot is built; size bounds the entry count.
func NewCache(base backend, render func(string) string, size int) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if render == nil {
		render = func(s string) string { return s }
	}
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Cache{
		base:    base,
		render:  render,
		entries: make(map[uuid.UUID]*list.Element, size),
		order:   list.New(),
		size:    size,
		gens:    make(map[uuid.UUID]uint64),
	}
}

// FetchView returns the account's snapshot for the given day, building it
// from the event store on a miss. A snapshot built for another day counts as
// a miss.
func (c *Cache) FetchView(ctx context.Context, accountID uuid.UUID, day time.Time) (domain.ViewSnapshot, error) {
	date := day.Format(domain.DateLayout)
	if snapshot, ok := c.lookup(accountID, date); ok {
		return snapshot, nil
	}

	v, err, _ := c.group.Do(accountID.String(), func() (any, error) {
		// An earlier flight may have filled the entry while this caller
		// was queued behind the key.
		if snapshot, ok := c.lookup(accountID, date); ok {
			return snapshot, nil
		}

		gen := c.generation(accountID)
		rows, err := c.base.ListCurrent(ctx, accountID, day)
		if err != nil {
			return domain.ViewSnapshot{}, err
		}
		snapshot := domain.Group(rows, day, c.render)
		c.storeIfCurrent(accountID, snapshot, gen)
		return snapshot, nil
	})
	if err != nil {
		return domain.ViewSnapshot{}, err
	}
	return v.(domain.ViewSnapshot), nil
}

// CreateTask writes through to the store and clears the account's entry only
// after the transaction committed; a failed create leaves the cache alone.
func (c *Cache) CreateTask(ctx context.Context, accountID uuid.UUID, content string) (uuid.UUID, error) {
	taskID, err := c.base.CreateTask(ctx, accountID, content)
	if err != nil {
		return uuid.Nil, err
	}
	c.Invalidate(accountID)
	return taskID, nil
}

// AppendEvent writes through to the store and invalidates on success only.
func (c *Cache) AppendEvent(ctx context.Context, accountID, taskID uuid.UUID, kind domain.EventKind) error {
	if err := c.base.AppendEvent(ctx, accountID, taskID, kind); err != nil {
		return err
	}
	c.Invalidate(accountID)
	return nil
}

// Ping delegates to the store.
func (c *Cache) Ping(ctx context.Context) error { return c.base.Ping(ctx) }

// Invalidate drops the account's snapshot unconditionally; a no-op when
// absent. Builds already in flight for the key are cut loose so the next
// miss starts fresh, and their late results are discarded.
func (c *Cache) Invalidate(accountID uuid.UUID) {
	c.mu.Lock()
	if el, ok := c.entries[accountID]; ok {
		c.order.Remove(el)
		delete(c.entries, accountID)
	}
	c.gens[accountID]++
	c.mu.Unlock()

	c.group.Forget(accountID.String())
}

func (c *Cache) lookup(accountID uuid.UUID, date string) (domain.ViewSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[accountID]
	if !ok {
		return domain.ViewSnapshot{}, false
	}
	entry := el.Value.(*cacheEntry)
	if entry.snapshot.Date != date {
		// Built for another day; drop it and report a miss.
		c.order.Remove(el)
		delete(c.entries, accountID)
		return domain.ViewSnapshot{}, false
	}
	c.order.MoveToFront(el)
	return entry.snapshot, true
}

func (c *Cache) generation(accountID uuid.UUID) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[accountID]
}

func (c *Cache) storeIfCurrent(accountID uuid.UUID, snapshot domain.ViewSnapshot, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gens[accountID] != gen {
		// Invalidated while the snapshot was being built; the rows it
		// read may predate the write that triggered the invalidation.
		return
	}

	if el, ok := c.entries[accountID]; ok {
		el.Value.(*cacheEntry).snapshot = snapshot
		c.order.MoveToFront(el)
		return
	}
	c.entries[accountID] = c.order.PushFront(&cacheEntry{accountID: accountID, snapshot: snapshot})
	for c.order.Len() > c.size {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).accountID)
	}
}

// Len reports the number of cached snapshots.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
