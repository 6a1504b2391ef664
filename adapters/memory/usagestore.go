// Package memory provides in-memory store implementations.
// Suitable for single-node deployments and tests; the sqlite and redis
// adapters cover persistence and multi-node setups.
package memory

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/pkkmi/andikar-gate/domain/usage"
	"github.com/pkkmi/andikar-gate/ports"
)

// usageShard is a single shard of the usage store.
type usageShard struct {
	mu      sync.RWMutex
	records map[string]usage.Record
}

// UsageStore is a sharded in-memory implementation of ports.UsageStore.
// Sharding keeps lock contention per-user rather than global; increments
// for one user serialize on that user's shard lock.
type UsageStore struct {
	shards    []*usageShard
	numShards int
}

// NewUsageStore creates a new sharded in-memory usage store.
func NewUsageStore(numShards int) *UsageStore {
	if numShards <= 0 {
		numShards = 32
	}
	s := &UsageStore{
		shards:    make([]*usageShard, numShards),
		numShards: numShards,
	}
	for i := range s.shards {
		s.shards[i] = &usageShard{records: make(map[string]usage.Record)}
	}
	return s
}

func (s *UsageStore) getShard(userID string) *usageShard {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return s.shards[h.Sum32()%uint32(s.numShards)]
}

// Get returns the rolled-over record for a user. Reads never mutate
// stored state: the rollover is applied to the returned copy, so two
// reads with no intervening increment are identical.
func (s *UsageStore) Get(ctx context.Context, userID string, now time.Time) (usage.Record, error) {
	shard := s.getShard(userID)
	shard.mu.RLock()
	rec, ok := shard.records[userID]
	shard.mu.RUnlock()

	if !ok {
		return usage.NewRecord(userID, now), nil
	}
	return usage.Rollover(rec, now), nil
}

// Increment atomically applies one request of the given word count.
func (s *UsageStore) Increment(ctx context.Context, userID string, words int64, now time.Time) (usage.Record, error) {
	shard := s.getShard(userID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	rec, ok := shard.records[userID]
	if !ok {
		rec = usage.NewRecord(userID, now)
	}
	rec = usage.Apply(rec, words, now)
	shard.records[userID] = rec
	return rec, nil
}

// Len returns the number of tracked users (for testing).
func (s *UsageStore) Len() int {
	total := 0
	for _, shard := range s.shards {
		shard.mu.RLock()
		total += len(shard.records)
		shard.mu.RUnlock()
	}
	return total
}

var _ ports.UsageStore = (*UsageStore)(nil)
