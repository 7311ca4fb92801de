// Package cache holds finished segment translations in memory so a
// rerun over the same material costs no provider calls.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"golang.org/x/text/language"
)

const DefaultMaxSize = 1000

type key struct {
	hash     string
	source   string
	target   string
	provider string
}

type entry struct {
	translation string
	insertedAt  time.Time
}

// Cache maps a segment, its language pair and the serving provider to
// the finished translation. Once maxSize is reached, inserting a new
// key first evicts the oldest tenth of the entries.
type Cache struct {
	mu      sync.Mutex
	maxSize int
	entries map[key]entry
	// clock is swapped in tests to order insertions deterministically.
	clock func() time.Time
}

func New(maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Cache{
		maxSize: maxSize,
		entries: make(map[key]entry),
		clock:   time.Now,
	}
}

// Get returns the cached translation for one segment.
func (c *Cache) Get(text string, source, target language.Tag, providerID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[makeKey(text, source, target, providerID)]
	if !ok {
		return "", false
	}
	return e.translation, true
}

// GetMultiple resolves a batch of segments in one lock acquisition and
// returns the hits keyed by their original text.
func (c *Cache) GetMultiple(texts []string, source, target language.Tag, providerID string) map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	hits := make(map[string]string)
	for _, text := range texts {
		if e, ok := c.entries[makeKey(text, source, target, providerID)]; ok {
			hits[text] = e.translation
		}
	}
	return hits
}

// Put stores one finished translation.
func (c *Cache) Put(text, translation string, source, target language.Tag, providerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.putLocked(makeKey(text, source, target, providerID), translation)
}

// PutMultiple stores a batch of finished translations keyed by their
// original text.
func (c *Cache) PutMultiple(translations map[string]string, source, target language.Tag, providerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for text, translation := range translations {
		c.putLocked(makeKey(text, source, target, providerID), translation)
	}
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[key]entry)
}

func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

func (c *Cache) putLocked(k key, translation string) {
	if _, exists := c.entries[k]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}
	c.entries[k] = entry{translation: translation, insertedAt: c.clock()}
}

// evictOldestLocked drops the oldest tenth of the entries, at least one.
func (c *Cache) evictOldestLocked() {
	type aged struct {
		k  key
		at time.Time
	}

	all := make([]aged, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, aged{k: k, at: e.insertedAt})
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].at.Before(all[j].at)
	})

	evict := c.maxSize / 10
	if evict < 1 {
		evict = 1
	}
	if evict > len(all) {
		evict = len(all)
	}
	for _, a := range all[:evict] {
		delete(c.entries, a.k)
	}
}

func makeKey(text string, source, target language.Tag, providerID string) key {
	sum := sha256.Sum256([]byte(text))
	return key{
		hash:     hex.EncodeToString(sum[:]),
		source:   source.String(),
		target:   target.String(),
		provider: providerID,
	}
}
