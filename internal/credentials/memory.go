package credentials

import (
	"context"
	"sync"
)

// MemoryStore keeps credentials in process. Useful for local runs and tests;
// everything is lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	creds map[string]Credential
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{creds: make(map[string]Credential)}
}

func (s *MemoryStore) Get(_ context.Context, shop string) (Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.creds[shop]
	if !ok {
		return Credential{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) Set(_ context.Context, cred Credential) error {
	if err := cred.Validate(); err != nil {
		return err
	}
	if cred.UpdatedAt.IsZero() {
		cred.UpdatedAt = now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[cred.Shop] = cred
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, shop string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, shop)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
