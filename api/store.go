package api

import (
	"sync"

	"github.com/use-agent/chateval/models"
)

// Store holds the latest run summary for the results viewer.
// Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	summary *models.RunSummary
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Set replaces the stored summary.
func (s *Store) Set(summary *models.RunSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = summary
}

// Latest returns the stored summary, or nil when no run has finished yet.
func (s *Store) Latest() *models.RunSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary
}
