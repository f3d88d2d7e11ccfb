// Package replaycache implements the Replay Cache (C2): a per-device
// bounded, ordered set of recently observed message_id values, guarded by
// a mutex sharded on device_id for parallel throughput.
package replaycache

import (
	"hash/fnv"
	"sync"
)

const defaultShardCount = 32

// Cache is a process-local, volatile replay cache. It is safe for
// concurrent use by many goroutines across many devices.
type Cache struct {
	shards   []*shard
	capacity int
}

type shard struct {
	mu      sync.Mutex
	devices map[string]*deviceEntries
}

// deviceEntries is the FIFO-ordered set of message IDs seen for one device.
type deviceEntries struct {
	order []string
	seen  map[string]struct{}
}

// New builds a Cache with the given per-device capacity and shard count.
// A shardCount of 0 uses the default (32).
func New(capacity, shardCount int) *Cache {
	if shardCount <= 0 {
		shardCount = defaultShardCount
	}
	shards := make([]*shard, shardCount)
	for i := range shards {
		shards[i] = &shard{devices: make(map[string]*deviceEntries)}
	}
	return &Cache{shards: shards, capacity: capacity}
}

// Contains reports whether message_id has already been recorded for
// device_id. Exposed mainly for tests; the hot path uses CheckAndInsert to
// keep the check-then-act atomic.
func (c *Cache) Contains(deviceID, messageID string) bool {
	s := c.shardFor(deviceID)
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.devices[deviceID]
	if !ok {
		return false
	}
	_, seen := entries.seen[messageID]
	return seen
}

// CheckAndInsert atomically checks whether (device_id, message_id) was
// already seen and, if not, inserts it, evicting the oldest entry for that
// device once the per-device cap is exceeded. It returns true if the pair
// was already present (a replay) and false if it was freshly inserted.
func (c *Cache) CheckAndInsert(deviceID, messageID string) (alreadySeen bool) {
	s := c.shardFor(deviceID)
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.devices[deviceID]
	if !ok {
		entries = &deviceEntries{seen: make(map[string]struct{})}
		s.devices[deviceID] = entries
	}

	if _, seen := entries.seen[messageID]; seen {
		return true
	}

	entries.order = append(entries.order, messageID)
	entries.seen[messageID] = struct{}{}

	if c.capacity > 0 && len(entries.order) > c.capacity {
		oldest := entries.order[0]
		entries.order = entries.order[1:]
		delete(entries.seen, oldest)
	}

	return false
}

// Size returns the number of message IDs currently retained for device_id.
func (c *Cache) Size(deviceID string) int {
	s := c.shardFor(deviceID)
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.devices[deviceID]
	if !ok {
		return 0
	}
	return len(entries.order)
}

func (c *Cache) shardFor(deviceID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(deviceID))
	return c.shards[h.Sum32()%uint32(len(c.shards))]
}
