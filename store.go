package linkauthn

import (
	"context"
	"strings"
	"sync"
	"time"
)

// SecretStore persists the pending login secret of user accounts.
//
// Implementations must perform IssueSecret and Consume atomically per account:
// of two concurrent Consume calls for the same secret at most one may succeed.
type SecretStore interface {
	// IssueSecret stores secret as the pending secret of the account with the
	// given (lowercased) email, overwriting any previous one.
	// Returns ErrUnknownUser if there is no such account.
	IssueSecret(ctx context.Context, email, secret string, issuedAt time.Time) (*UserAccount, error)

	// FindBySecret returns the account currently holding secret.
	// Returns ErrNotFound if no account holds it. An empty secret never matches.
	FindBySecret(ctx context.Context, secret string) (*UserAccount, error)

	// Consume clears the pending secret of account uid if it is still secret.
	// Returns ErrNotFound if the account no longer holds secret.
	Consume(ctx context.Context, uid int64, secret string) error
}

// MemoryStore is a SecretStore keeping accounts in memory.
// It's safe to use it concurrently from multiple goroutines.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*UserAccount // Keyed by lowercased email
}

// NewMemoryStore creates a MemoryStore holding the given accounts.
func NewMemoryStore(accounts ...UserAccount) *MemoryStore {
	s := &MemoryStore{accounts: map[string]*UserAccount{}}
	for _, a := range accounts {
		s.Put(a)
	}
	return s
}

// Put adds or replaces an account.
func (s *MemoryStore) Put(a UserAccount) {
	a.Email = strings.ToLower(a.Email)
	s.mu.Lock()
	s.accounts[a.Email] = &a
	s.mu.Unlock()
}

// IssueSecret implements SecretStore.
func (s *MemoryStore) IssueSecret(ctx context.Context, email, secret string, issuedAt time.Time) (*UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.accounts[email]
	if a == nil {
		return nil, ErrUnknownUser
	}
	ms := issuedAt.UnixMilli()
	a.Secret, a.SecretIssuedAt = &secret, &ms
	return copyAccount(a), nil
}

// FindBySecret implements SecretStore.
func (s *MemoryStore) FindBySecret(ctx context.Context, secret string) (*UserAccount, error) {
	if secret == "" {
		return nil, ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.Secret != nil && *a.Secret == secret {
			return copyAccount(a), nil
		}
	}
	return nil, ErrNotFound
}

// Consume implements SecretStore.
func (s *MemoryStore) Consume(ctx context.Context, uid int64, secret string) error {
	if secret == "" {
		return ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.UID == uid && a.Secret != nil && *a.Secret == secret {
			a.Secret, a.SecretIssuedAt = nil, nil
			return nil
		}
	}
	return ErrNotFound
}

// copyAccount returns a deep copy so callers can't alter stored accounts.
func copyAccount(a *UserAccount) *UserAccount {
	c := *a
	if a.Secret != nil {
		secret := *a.Secret
		c.Secret = &secret
	}
	if a.SecretIssuedAt != nil {
		ms := *a.SecretIssuedAt
		c.SecretIssuedAt = &ms
	}
	return &c
}
