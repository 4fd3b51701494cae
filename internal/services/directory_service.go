// Package services – DirectoryService
//
// This file implements the bot directory: a read model over the persisted
// bot registry with a short-lived cache. The cache exists so one automation
// cycle reads the registry once, not once per bot; it is never allowed to go
// silently stale beyond one cycle, and Refresh forces the next read to hit
// the database (used after bulk admin edits).
package services

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-community-sim/internal/domain"
	"github.com/tbourn/go-community-sim/internal/repo"
)

// DirectoryService lists and filters registered bots.
type DirectoryService struct {
	// DB is the GORM handle used for registry reads.
	DB *gorm.DB
	// TTL bounds cache staleness; it should not exceed the automation
	// interval. Zero or negative disables caching entirely.
	TTL time.Duration

	mu        sync.Mutex
	cached    []domain.Bot
	fetchedAt time.Time
}

// NewDirectoryService constructs a DirectoryService whose cache expires
// after ttl.
func NewDirectoryService(db *gorm.DB, ttl time.Duration) *DirectoryService {
	return &DirectoryService{DB: db, TTL: ttl}
}

// All returns the full bot registry, served from cache while fresh.
func (s *DirectoryService) All(ctx context.Context) ([]domain.Bot, error) {
	s.mu.Lock()
	if s.TTL > 0 && s.cached != nil && time.Since(s.fetchedAt) < s.TTL {
		out := make([]domain.Bot, len(s.cached))
		copy(out, s.cached)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	bots, err := repo.ListBots(ctx, s.DB)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cached = bots
	s.fetchedAt = time.Now()
	s.mu.Unlock()

	out := make([]domain.Bot, len(bots))
	copy(out, bots)
	return out, nil
}

// Active returns the bots with status "active".
func (s *DirectoryService) Active(ctx context.Context) ([]domain.Bot, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Bot, 0, len(all))
	for _, b := range all {
		if b.Status == domain.BotStatusActive {
			out = append(out, b)
		}
	}
	return out, nil
}

// ActiveByType returns active bots grouped by behavioral type.
func (s *DirectoryService) ActiveByType(ctx context.Context) (map[string][]domain.Bot, error) {
	active, err := s.Active(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]domain.Bot, 3)
	for _, b := range active {
		out[b.Type] = append(out[b.Type], b)
	}
	return out, nil
}

// Refresh drops the cache so the next read bypasses memoization. Call after
// bulk admin edits to guarantee the next cycle sees current config.
func (s *DirectoryService) Refresh() {
	s.mu.Lock()
	s.cached = nil
	s.fetchedAt = time.Time{}
	s.mu.Unlock()
}
