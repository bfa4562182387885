package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sukanihq/sukani/model"
)

// CommitStore deduplicates execute calls. The key format is
// "commit:{sessionId}:{key}". A replay with the same key and the same
// compiled plan returns the original commit result; the same key with a
// different plan is a conflict.
type CommitStore interface {
	// Check looks up a previous result by key. If the key exists and the
	// plan hash matches, it returns the cached result. If the key exists
	// but the hash differs, it returns a 409 conflict error.
	Check(ctx context.Context, key string, planHash string) (result *model.CommitResult, found bool, err error)

	// Get looks up a previous result by key alone, without comparing plan
	// hashes. Used to replay an execute whose session was already closed
	// by the original success.
	Get(ctx context.Context, key string) (result *model.CommitResult, found bool, err error)

	// Store saves a commit result keyed by the idempotency key with a TTL.
	Store(ctx context.Context, key string, planHash string, result model.CommitResult, ttl time.Duration) error
}

// commitEntry is the stored value for a commit key.
type commitEntry struct {
	PlanHash string             `json:"plan_hash"`
	Result   model.CommitResult `json:"result"`
}

// FormatCommitKey builds the standard commit idempotency key.
func FormatCommitKey(sessionID, key string) string {
	return fmt.Sprintf("commit:%s:%s", sessionID, key)
}

// HashPlan derives a stable hash of the compiled payload being committed.
func HashPlan(payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal plan for hashing: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// --- MemoryCommitStore ---

// MemoryCommitStore is an in-memory CommitStore with TTL support. Suitable
// for testing and single-instance deployments.
type MemoryCommitStore struct {
	mu      sync.RWMutex
	entries map[string]*memCommitEntry
}

type memCommitEntry struct {
	data      commitEntry
	expiresAt time.Time
}

// NewMemoryCommitStore creates a new in-memory commit store.
func NewMemoryCommitStore() *MemoryCommitStore {
	return &MemoryCommitStore{entries: make(map[string]*memCommitEntry)}
}

// Check looks up a cached result. Returns conflict error if the plan hash differs.
func (s *MemoryCommitStore) Check(_ context.Context, key string, planHash string) (*model.CommitResult, bool, error) {
	s.mu.RLock()
	entry, exists := s.entries[key]
	s.mu.RUnlock()

	if !exists {
		return nil, false, nil
	}

	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false, nil
	}

	if entry.data.PlanHash != planHash {
		return nil, true, model.NewConflictError(
			fmt.Sprintf("idempotency key %q already used with a different plan", key),
		)
	}

	result := entry.data.Result
	return &result, true, nil
}

// Get looks up a cached result by key alone.
func (s *MemoryCommitStore) Get(_ context.Context, key string) (*model.CommitResult, bool, error) {
	s.mu.RLock()
	entry, exists := s.entries[key]
	s.mu.RUnlock()

	if !exists || time.Now().After(entry.expiresAt) {
		return nil, false, nil
	}
	result := entry.data.Result
	return &result, true, nil
}

// Store saves a result with TTL.
func (s *MemoryCommitStore) Store(_ context.Context, key string, planHash string, result model.CommitResult, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = &memCommitEntry{
		data:      commitEntry{PlanHash: planHash, Result: result},
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Len returns the number of entries (including expired ones). For testing.
func (s *MemoryCommitStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// --- RedisCommitStore ---

// RedisCommitStore is a Redis-backed CommitStore with TTL.
type RedisCommitStore struct {
	client redis.Cmdable
}

// NewRedisCommitStore creates a new Redis-backed commit store.
func NewRedisCommitStore(client redis.Cmdable) *RedisCommitStore {
	return &RedisCommitStore{client: client}
}

// Check looks up a cached result in Redis. Returns conflict error if the plan hash differs.
func (s *RedisCommitStore) Check(ctx context.Context, key string, planHash string) (*model.CommitResult, bool, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}

	var entry commitEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, fmt.Errorf("unmarshal commit entry %q: %w", key, err)
	}

	if entry.PlanHash != planHash {
		return nil, true, model.NewConflictError(
			fmt.Sprintf("idempotency key %q already used with a different plan", key),
		)
	}

	return &entry.Result, true, nil
}

// Get looks up a cached result in Redis by key alone.
func (s *RedisCommitStore) Get(ctx context.Context, key string) (*model.CommitResult, bool, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}

	var entry commitEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, fmt.Errorf("unmarshal commit entry %q: %w", key, err)
	}
	return &entry.Result, true, nil
}

// HealthCheck pings Redis. Used by the readiness endpoint.
func (s *RedisCommitStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Store saves a result in Redis with TTL.
func (s *RedisCommitStore) Store(ctx context.Context, key string, planHash string, result model.CommitResult, ttl time.Duration) error {
	entry := commitEntry{PlanHash: planHash, Result: result}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal commit entry: %w", err)
	}

	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}
