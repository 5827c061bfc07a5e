package cache

import (
	"context"
	"sync"
	"time"

	"github.com/emilythestrangee/kaen/internal/models"
)

type entry struct {
	comments []models.Comment
	storedAt time.Time
}

// Memory is an in-process Store. A zero ttl keeps entries until invalidated.
type Memory struct {
	mu      sync.RWMutex
	entries map[int]entry
	gens    map[int]uint64
	ttl     time.Duration
	now     func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		entries: make(map[int]entry),
		gens:    make(map[int]uint64),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, postID int) ([]models.Comment, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[postID]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if m.ttl > 0 && m.now().Sub(e.storedAt) > m.ttl {
		m.mu.Lock()
		if cur, still := m.entries[postID]; still && cur.storedAt.Equal(e.storedAt) {
			delete(m.entries, postID)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	return clone(e.comments), true, nil
}

func (m *Memory) Set(_ context.Context, postID int, comments []models.Comment) error {
	e := entry{comments: clone(comments), storedAt: m.now()}
	m.mu.Lock()
	m.entries[postID] = e
	m.mu.Unlock()
	return nil
}

func (m *Memory) Generation(_ context.Context, postID int) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gens[postID], nil
}

func (m *Memory) Fill(_ context.Context, postID int, gen uint64, comments []models.Comment) (bool, error) {
	e := entry{comments: clone(comments), storedAt: m.now()}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gens[postID] != gen {
		return false, nil
	}
	m.entries[postID] = e
	return true, nil
}

func (m *Memory) Invalidate(_ context.Context, postID int) error {
	m.mu.Lock()
	delete(m.entries, postID)
	m.gens[postID]++
	m.mu.Unlock()
	return nil
}

// Len returns the number of cached posts.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
