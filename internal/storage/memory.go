package storage

import (
	"context"
	"slices"
	"sync"
)

// Ensure MemoryStorage implements Store
var _ Store = (*MemoryStorage)(nil)

// MemoryStorage keeps profiles in process memory. Upserts are serialized by
// a single mutex.
type MemoryStorage struct {
	users      map[int64]*Profile
	usersMutex sync.RWMutex
}

// NewMemoryStorage creates a new storage instance
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users: make(map[int64]*Profile),
	}
}

// UpsertUser creates or updates a profile.
func (s *MemoryStorage) UpsertUser(_ context.Context, p Profile) error {
	s.usersMutex.Lock()
	defer s.usersMutex.Unlock()

	if existing, ok := s.users[p.ID]; ok {
		p.FirstSeen = existing.FirstSeen
		p.LoginCount = existing.LoginCount + 1
	} else {
		p.LoginCount = 1
	}
	s.users[p.ID] = &p
	return nil
}

// GetUser returns a copy of the stored profile.
func (s *MemoryStorage) GetUser(_ context.Context, id int64) (*Profile, error) {
	s.usersMutex.RLock()
	defer s.usersMutex.RUnlock()

	p, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *p
	return &cp, nil
}

// ListUsers returns all profiles ordered by id.
func (s *MemoryStorage) ListUsers(_ context.Context) ([]Profile, error) {
	s.usersMutex.RLock()
	defer s.usersMutex.RUnlock()

	users := make([]Profile, 0, len(s.users))
	for _, p := range s.users {
		users = append(users, *p)
	}
	slices.SortFunc(users, func(a, b Profile) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return users, nil
}

func (s *MemoryStorage) Close() error {
	return nil
}
