package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps wizards between requests.
type Store interface {
	Get(ctx context.Context, id string) (*Wizard, error)
	Save(ctx context.Context, w *Wizard) error
	Delete(ctx context.Context, id string) error
}

var (
	_ Store = (*RedisStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// RedisStore keeps wizards as JSON values that expire after ttl.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a RedisStore.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func wizardKey(id string) string {
	return "wizard:" + id
}

// Get loads a wizard.
func (s *RedisStore) Get(ctx context.Context, id string) (*Wizard, error) {
	data, err := s.client.Get(ctx, wizardKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get wizard %s: %w", id, err)
	}

	var w Wizard
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode wizard %s: %w", id, err)
	}
	return &w, nil
}

// Save stores a wizard and resets its expiry.
func (s *RedisStore) Save(ctx context.Context, w *Wizard) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("marshal wizard: %w", err)
	}
	if err := s.client.Set(ctx, wizardKey(w.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save wizard %s: %w", w.ID, err)
	}
	return nil
}

// Delete removes a wizard.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, wizardKey(id)).Err(); err != nil {
		return fmt.Errorf("delete wizard %s: %w", id, err)
	}
	return nil
}

// MemoryStore keeps wizards in process memory. It is used when no Redis
// address is configured.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryStore creates a MemoryStore.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

// Get loads a wizard.
func (s *MemoryStore) Get(_ context.Context, id string) (*Wizard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if s.ttl > 0 && !s.now().Before(e.expiresAt) {
		delete(s.entries, id)
		return nil, ErrNotFound
	}

	var w Wizard
	if err := json.Unmarshal(e.data, &w); err != nil {
		return nil, fmt.Errorf("decode wizard %s: %w", id, err)
	}
	return &w, nil
}

// Save stores a copy of w and resets its expiry.
func (s *MemoryStore) Save(_ context.Context, w *Wizard) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("marshal wizard: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[w.ID] = memoryEntry{data: data, expiresAt: s.now().Add(s.ttl)}
	return nil
}

// Delete removes a wizard.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}
