// Package cache stores short-lived resolution results (handle to DID, DID to PDS endpoint).
package cache

import (
	"context"
	"time"

	"github.com/alanbriolat/bsky-video-dl/internal/sync_"
)

type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Close() error
}

type memoryEntry struct {
	value   string
	expires time.Time
}

type memoryEntries = map[string]memoryEntry

// Memory is an in-process Cache. Expired entries are dropped lazily on Get.
type Memory struct {
	entries *sync_.Mutexed[memoryEntries]
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		entries: sync_.NewMutexed(make(memoryEntries)),
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) (value string, ok bool) {
	_ = m.entries.Locked(func(entries *memoryEntries) error {
		var entry memoryEntry
		if entry, ok = (*entries)[key]; !ok {
			return nil
		}
		if !entry.expires.IsZero() && !m.now().Before(entry.expires) {
			delete(*entries, key)
			ok = false
			return nil
		}
		value = entry.value
		return nil
	})
	return value, ok
}

// Set stores the value; a ttl of zero means it never expires.
func (m *Memory) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expires = m.now().Add(ttl)
	}
	return m.entries.Locked(func(entries *memoryEntries) error {
		(*entries)[key] = entry
		return nil
	})
}

func (m *Memory) Close() error {
	m.entries.Set(make(memoryEntries))
	return nil
}
