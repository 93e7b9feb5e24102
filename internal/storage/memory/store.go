// Package memory is an in-memory interaction store for tests and
// storage-less deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tjfontaine/httpsim/internal/storage"
)

// Store is an in-memory implementation of storage.InteractionStore.
type Store struct {
	mu           sync.RWMutex
	interactions []*storage.Interaction
}

var _ storage.InteractionStore = (*Store)(nil)

// New creates a new in-memory store.
func New() *Store {
	return &Store{}
}

func (s *Store) SaveInteraction(ctx context.Context, in *storage.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now()
	}
	cp := *in
	s.interactions = append(s.interactions, &cp)
	return nil
}

func (s *Store) ListInteractions(ctx context.Context, limit int) ([]*storage.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.interactions) {
		limit = len(s.interactions)
	}

	// Newest first, matching the SQLite store.
	out := make([]*storage.Interaction, 0, limit)
	for i := len(s.interactions) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *s.interactions[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) Close() error { return nil }
