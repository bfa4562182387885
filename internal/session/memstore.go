package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sukanihq/sukani/model"
)

// MemoryDraftStore is an in-memory DraftStore for testing and
// single-instance deployments.
type MemoryDraftStore struct {
	mu     sync.RWMutex
	drafts map[string]Draft // key: session ID
}

// NewMemoryDraftStore creates a new in-memory draft store.
func NewMemoryDraftStore() *MemoryDraftStore {
	return &MemoryDraftStore{drafts: make(map[string]Draft)}
}

// Save inserts or replaces a draft.
func (s *MemoryDraftStore) Save(_ context.Context, draft Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[draft.SessionID] = draft
	return nil
}

// Get retrieves a draft by session ID, scoped to tenant.
func (s *MemoryDraftStore) Get(_ context.Context, tenantID, sessionID string) (Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, exists := s.drafts[sessionID]
	if !exists || d.TenantID != tenantID {
		return Draft{}, model.NewNotFoundError(
			fmt.Sprintf("draft for session %q not found", sessionID),
		)
	}
	return d, nil
}

// Delete removes a draft.
func (s *MemoryDraftStore) Delete(_ context.Context, tenantID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, exists := s.drafts[sessionID]
	if exists && d.TenantID == tenantID {
		delete(s.drafts, sessionID)
	}
	return nil
}

// DeleteExpired removes drafts not updated since the cutoff.
func (s *MemoryDraftStore) DeleteExpired(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, d := range s.drafts {
		if d.UpdatedAt.Before(cutoff) {
			delete(s.drafts, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored drafts. For testing.
func (s *MemoryDraftStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.drafts)
}
