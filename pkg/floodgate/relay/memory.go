package relay

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/haveachin/floodgate/pkg/floodgate/envelope"
)

const defaultShardCount = 32

type memoryEntry struct {
	env       envelope.Envelope
	createdAt time.Time
}

type memoryShard struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]memoryEntry
}

// MemoryStore is a Store that lives in process memory.
type MemoryStore struct {
	shards []*memoryShard
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return newMemoryStore(defaultShardCount, time.Now)
}

func newMemoryStore(shardCount int, now func() time.Time) *MemoryStore {
	shards := make([]*memoryShard, shardCount)
	for i := range shards {
		shards[i] = &memoryShard{
			entries: map[uuid.UUID]memoryEntry{},
		}
	}

	return &MemoryStore{
		shards: shards,
		now:    now,
	}
}

func (s *MemoryStore) shard(id uuid.UUID) *memoryShard {
	return s.shards[xxhash.Sum64(id[:])%uint64(len(s.shards))]
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (envelope.Envelope, bool, error) {
	sh := s.shard(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	e, ok := sh.entries[id]
	return e.env, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, id uuid.UUID, env envelope.Envelope) error {
	sh := s.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.entries[id] = memoryEntry{
		env:       env,
		createdAt: s.now(),
	}
	return nil
}

func (s *MemoryStore) Replace(ctx context.Context, id uuid.UUID, env envelope.Envelope) error {
	return s.Put(ctx, id, env)
}

func (s *MemoryStore) Remove(_ context.Context, id uuid.UUID) error {
	sh := s.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	delete(sh.entries, id)
	return nil
}

// Len returns the number of entries across all shards.
func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

// Sweep removes every entry older than maxAge and returns how many were removed.
func (s *MemoryStore) Sweep(maxAge time.Duration) int {
	deadline := s.now().Add(-maxAge)
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, e := range sh.entries {
			if e.createdAt.Before(deadline) {
				delete(sh.entries, id)
				n++
			}
		}
		sh.mu.Unlock()
	}
	return n
}
