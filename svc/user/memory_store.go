package user

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps users in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]User
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory user store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]User),
		now:   time.Now,
	}
}

// Get returns the user with id, or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return cloneUser(u), nil
}

// FindByBillingCustomerID returns the user linked to a ledger customer, or ErrNotFound.
func (s *MemoryStore) FindByBillingCustomerID(_ context.Context, customerID string) (User, error) {
	if customerID == "" {
		return User{}, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.BillingCustomerID == customerID {
			return cloneUser(u), nil
		}
	}
	return User{}, ErrNotFound
}

// Ensure creates the user or refreshes its profile fields. The billing customer id and mirror are kept.
func (s *MemoryStore) Ensure(_ context.Context, in User) (User, error) {
	if in.ID == "" {
		return User{}, ErrMissingID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	u, ok := s.users[in.ID]
	if !ok {
		u = User{ID: in.ID, CreatedAt: now}
	}
	u.Email = in.Email
	u.Name = in.Name
	u.UpdatedAt = now
	s.users[in.ID] = u
	return cloneUser(u), nil
}

// SetBillingCustomerID links the user to a ledger customer.
func (s *MemoryStore) SetBillingCustomerID(_ context.Context, id, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.BillingCustomerID = customerID
	u.UpdatedAt = s.now()
	s.users[id] = u
	return nil
}

// SetMirror replaces the user's subscription mirror.
func (s *MemoryStore) SetMirror(_ context.Context, id string, m Mirror) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Mirror = &m
	u.UpdatedAt = s.now()
	s.users[id] = u
	return nil
}

func cloneUser(u User) User {
	if u.Mirror != nil {
		m := *u.Mirror
		u.Mirror = &m
	}
	return u
}
