package pending

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avoronov/billfold/internal/domain"
)

// DefaultTTL is how long an extracted candidate waits for confirmation
// before the shortcut flow treats it as gone.
const DefaultTTL = 60 * time.Second

// Status is the three-way outcome of a lookup. Expired is reported only
// while the dead entry is still in the map; the lookup itself sweeps it, so
// a later call for the same id reports NotFound.
type Status int

const (
	Found Status = iota
	NotFound
	Expired
)

// Entry is one not-yet-confirmed transaction waiting in the cache.
type Entry struct {
	ID        string
	UserID    string
	Data      domain.Transaction
	ExpiresAt time.Time
}

// Cache holds extracted transaction candidates between the shortcut upload
// call and the confirmation call. Entries live only in process memory; a
// restart drops them all, which is an accepted limitation of the flow.
type Cache struct {
	mu      sync.Mutex
	entries map[string]Entry
	ttl     time.Duration
	now     func() time.Time
}

// New creates a cache with the given TTL; ttl <= 0 uses DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]Entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Put stores data under a fresh unique token and returns it. Tokens are
// UUIDs, never reused, so concurrent uploads cannot collide.
func (c *Cache) Put(data domain.Transaction, userID string) string {
	id := uuid.NewString()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked()

	c.entries[id] = Entry{
		ID:        id,
		UserID:    userID,
		Data:      data,
		ExpiresAt: c.now().Add(c.ttl),
	}
	return id
}

// Get looks up an entry without consuming it. An entry past its TTL is
// removed and reported as Expired; unknown (or already swept) ids are
// NotFound. Ownership by a different user reads as NotFound, live or
// expired, so a foreign caller learns nothing about the token.
func (c *Cache) Get(id, userID string) (Entry, Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok {
		c.sweepLocked()
		return Entry{}, NotFound
	}
	if entry.UserID != userID {
		return Entry{}, NotFound
	}
	if c.now().After(entry.ExpiresAt) {
		delete(c.entries, id)
		c.sweepLocked()
		return Entry{}, Expired
	}
	return entry, Found
}

// Take atomically removes and returns the entry so that confirmation
// materializes at most once: of two concurrent Take calls for the same id,
// exactly one sees Found and the other NotFound.
func (c *Cache) Take(id, userID string) (Entry, Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok {
		c.sweepLocked()
		return Entry{}, NotFound
	}
	if entry.UserID != userID {
		return Entry{}, NotFound
	}
	if c.now().After(entry.ExpiresAt) {
		delete(c.entries, id)
		c.sweepLocked()
		return Entry{}, Expired
	}
	delete(c.entries, id)
	return entry, Found
}

// TTL reports the configured entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Len reports the number of live entries after a sweep.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked()
	return len(c.entries)
}

// sweepLocked purges every entry past its TTL. Callers hold c.mu.
func (c *Cache) sweepLocked() {
	now := c.now()
	for id, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, id)
		}
	}
}
