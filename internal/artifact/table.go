package artifact

import (
	"context"
	"crypto/sha256"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Hash returns the content digest used to validate cache entries
func Hash(content string) [32]byte {
	return sha256.Sum256([]byte(content))
}

type entry[T any] struct {
	hash      [32]byte
	value     T
	writtenAt time.Time
}

// Table is one bounded artifact table. It is safe for concurrent use.
type Table[T any] struct {
	name   string
	lru    *lru.Cache[string, entry[T]]
	maxAge time.Duration
	now    func() time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewTable creates a table holding at most size entries. A zero maxAge
// disables age-based expiry.
func NewTable[T any](name string, size int, maxAge time.Duration) (*Table[T], error) {
	c, err := lru.New[string, entry[T]](size)
	if err != nil {
		return nil, err
	}
	return &Table[T]{
		name:   name,
		lru:    c,
		maxAge: maxAge,
		now:    time.Now,
	}, nil
}

// Get returns the artifact stored under key if it was computed from
// exactly this content.
func (t *Table[T]) Get(key, content string) (T, bool) {
	return t.GetHash(key, Hash(content))
}

// GetHash is Get with a precomputed content hash
func (t *Table[T]) GetHash(key string, hash [32]byte) (T, bool) {
	var zero T

	e, ok := t.lru.Peek(key)
	if !ok || e.hash != hash {
		t.miss()
		return zero, false
	}
	if t.expired(e) {
		t.miss()
		return zero, false
	}

	t.hits.Add(1)
	recordCacheHit(context.Background(), t.name)
	return e.value, true
}

// Put stores value as the artifact for key computed from content
func (t *Table[T]) Put(key, content string, value T) {
	t.PutHash(key, Hash(content), value)
}

// PutHash is Put with a precomputed content hash
func (t *Table[T]) PutHash(key string, hash [32]byte, value T) {
	evicted := t.lru.Add(key, entry[T]{hash: hash, value: value, writtenAt: t.now()})
	if evicted {
		t.evictions.Add(1)
		recordCacheEviction(context.Background(), t.name)
	}
}

// Invalidate drops the entry for key
func (t *Table[T]) Invalidate(key string) {
	t.lru.Remove(key)
}

// InvalidateAll empties the table
func (t *Table[T]) InvalidateAll() {
	t.lru.Purge()
}

// Len returns the number of entries, including expired ones not yet pruned
func (t *Table[T]) Len() int {
	return t.lru.Len()
}

// Prune removes every expired entry and returns how many were removed.
// Expired entries are otherwise only reported as misses.
func (t *Table[T]) Prune() int {
	if t.maxAge <= 0 {
		return 0
	}
	removed := 0
	for _, key := range t.lru.Keys() {
		if e, ok := t.lru.Peek(key); ok && t.expired(e) {
			if t.lru.Remove(key) {
				removed++
			}
		}
	}
	return removed
}

func (t *Table[T]) expired(e entry[T]) bool {
	return t.maxAge > 0 && t.now().Sub(e.writtenAt) > t.maxAge
}

func (t *Table[T]) miss() {
	t.misses.Add(1)
	recordCacheMiss(context.Background(), t.name)
}
