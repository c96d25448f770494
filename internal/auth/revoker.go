package auth

import (
	"context"
	"sync"
	"time"
)

// Revoker tracks tokens invalidated before their expiry: single tokens on
// logout, and every token issued before a cutoff on password change.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	RevokeIssuedBefore(ctx context.Context, userID string, cutoff time.Time, ttl time.Duration) error
	IsRevoked(ctx context.Context, id Identity) (bool, error)
}

// MemoryRevoker keeps revocations in process memory.
type MemoryRevoker struct {
	mu      sync.Mutex
	tokens  map[string]time.Time
	cutoffs map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{
		tokens:  map[string]time.Time{},
		cutoffs: map[string]time.Time{},
		now:     time.Now,
	}
}

func (m *MemoryRevoker) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tokens[tokenID] = expiresAt
	for id, exp := range m.tokens {
		if exp.Before(m.now()) {
			delete(m.tokens, id)
		}
	}
	return nil
}

func (m *MemoryRevoker) RevokeIssuedBefore(_ context.Context, userID string, cutoff time.Time, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cutoffs[userID] = cutoff.Truncate(time.Second)
	return nil
}

func (m *MemoryRevoker) IsRevoked(_ context.Context, id Identity) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tokens[id.TokenID]; ok {
		return true, nil
	}
	cutoff, ok := m.cutoffs[id.UserID.Hex()]
	return ok && id.IssuedAt.Before(cutoff), nil
}
