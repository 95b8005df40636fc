package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hyperjump/kotaeru/internal/blob"
	"go.uber.org/zap"
)

// Cache is the process-wide registry of resident document indices with
// write-through persistence to a blob store. It is constructed explicitly
// at startup and passed to every component that needs it.
//
// Operations on different documents run in parallel; operations on the
// same document are serialized through a per-document lock so a
// load-in-progress is never duplicated and a delete cannot race a load.
// Indices are immutable, so a returned *DocumentIndex is always safe to
// search concurrently.
type Cache struct {
	store       blob.Store
	maxResident int
	logger      *zap.Logger

	mu      sync.Mutex
	entries map[string]*cacheEntry
	locks   map[string]*docLock
}

type cacheEntry struct {
	index      *DocumentIndex
	lastAccess time.Time
}

// docLock serializes operations on one document. refs counts holders and
// waiters (guarded by Cache.mu) so the map entry can be pruned once idle,
// keeping the lock map bounded by in-flight work rather than by every doc
// id ever seen.
type docLock struct {
	mu   sync.Mutex
	refs int
}

// NewCache creates a cache over store. maxResident bounds the number of
// indices held in memory; 0 means unbounded. logger may be nil.
func NewCache(store blob.Store, maxResident int, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		store:       store,
		maxResident: maxResident,
		logger:      logger,
		entries:     make(map[string]*cacheEntry),
		locks:       make(map[string]*docLock),
	}
}

// lockDoc acquires the serialization lock for docID, creating it on first use.
func (c *Cache) lockDoc(docID string) *docLock {
	c.mu.Lock()
	l, ok := c.locks[docID]
	if !ok {
		l = &docLock{}
		c.locks[docID] = l
	}
	l.refs++
	c.mu.Unlock()
	l.mu.Lock()
	return l
}

// unlockDoc releases l and prunes the map entry once no caller holds or
// waits on it.
func (c *Cache) unlockDoc(docID string, l *docLock) {
	l.mu.Unlock()
	c.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(c.locks, docID)
	}
	c.mu.Unlock()
}

// lookup returns the resident index for docID and refreshes its access time.
func (c *Cache) lookup(docID string) (*DocumentIndex, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[docID]
	if !ok {
		return nil, false
	}
	e.lastAccess = time.Now()
	return e.index, true
}

func (c *Cache) insert(docID string, idx *DocumentIndex) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[docID] = &cacheEntry{index: idx, lastAccess: time.Now()}
	if c.maxResident <= 0 || len(c.entries) <= c.maxResident {
		return
	}
	// LRU eviction among resident entries; never the one just inserted.
	victim := ""
	var oldest time.Time
	for id, e := range c.entries {
		if id == docID {
			continue
		}
		if victim == "" || e.lastAccess.Before(oldest) {
			victim = id
			oldest = e.lastAccess
		}
	}
	if victim != "" {
		delete(c.entries, victim)
		c.logger.Debug("evicted index from cache", zap.String("doc_id", victim))
	}
}

// GetOrLoad returns the resident index for docID, loading it from the
// blob store on a miss. Concurrent calls for the same document perform at
// most one durable read. Fails with ErrNotFound when no durable record
// exists, or ErrCorruptIndex when the record cannot be decoded.
func (c *Cache) GetOrLoad(ctx context.Context, docID string) (*DocumentIndex, error) {
	if idx, ok := c.lookup(docID); ok {
		return idx, nil
	}
	l := c.lockDoc(docID)
	defer c.unlockDoc(docID, l)
	// Another caller may have loaded it while we waited.
	if idx, ok := c.lookup(docID); ok {
		return idx, nil
	}
	data, err := c.store.Read(ctx, docID)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, docID)
	}
	if err != nil {
		return nil, fmt.Errorf("read index record %s: %w", docID, err)
	}
	idx, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode index %s: %w", docID, err)
	}
	c.insert(docID, idx)
	c.logger.Debug("loaded index from durable storage", zap.String("doc_id", docID), zap.Int("chunks", idx.Len()))
	return idx, nil
}

// Put inserts a newly built index and synchronously persists it. When Put
// returns nil the index survives a process restart; when persistence
// fails, no cache entry and no durable record remain.
func (c *Cache) Put(ctx context.Context, idx *DocumentIndex) error {
	docID := idx.DocID()
	l := c.lockDoc(docID)
	defer c.unlockDoc(docID, l)
	data, err := idx.Encode()
	if err != nil {
		return fmt.Errorf("encode index %s: %w", docID, err)
	}
	if err := c.store.Write(ctx, docID, data); err != nil {
		_ = c.store.Delete(context.WithoutCancel(ctx), docID)
		return fmt.Errorf("persist index %s: %w", docID, err)
	}
	c.insert(docID, idx)
	return nil
}

// Evict removes docID from the cache without touching durable storage.
// A later GetOrLoad transparently reloads it.
func (c *Cache) Evict(docID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, docID)
}

// Delete removes docID from the cache and deletes its durable record.
// Irreversible.
func (c *Cache) Delete(ctx context.Context, docID string) error {
	l := c.lockDoc(docID)
	defer c.unlockDoc(docID, l)
	c.Evict(docID)
	if err := c.store.Delete(ctx, docID); err != nil {
		return fmt.Errorf("delete index record %s: %w", docID, err)
	}
	return nil
}

// Len returns the number of resident indices.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
