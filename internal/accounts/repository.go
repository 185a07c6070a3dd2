package accounts

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/linkwave/portal/internal/shared"
)

// Store defines persistence operations for accounts. Emails passed in are
// already normalized. FindByEmail returns shared.ErrNotFound when absent and
// Insert returns shared.ErrDuplicate when the email is taken.
type Store interface {
	FindByEmail(ctx context.Context, email string) (Account, error)
	Insert(ctx context.Context, account Account) (string, error)
	UpdateByEmail(ctx context.Context, email string, patch Patch) (int64, error)
	Count(ctx context.Context) (int64, error)
	// ClaimBootstrap atomically records email as the bootstrap account owner.
	// It reports true when email owns the claim, including on a repeated
	// claim by the same email.
	ClaimBootstrap(ctx context.Context, email string) (bool, error)
	// BootstrapOwner returns the email holding the bootstrap claim, or ""
	// when nothing has been claimed yet.
	BootstrapOwner(ctx context.Context) (string, error)
	List(ctx context.Context) ([]Account, error)
}

// MemoryStore is a process-local Store used for development and tests.
type MemoryStore struct {
	mu        sync.Mutex
	accounts  map[string]Account
	bootstrap string
	now       func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]Account), now: time.Now}
}

// FindByEmail fetches an account by email.
func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[email]
	if !ok {
		return Account{}, shared.ErrNotFound
	}
	acct.Grants = acct.Grants.Clone()
	return acct, nil
}

// Insert stores a new account.
func (s *MemoryStore) Insert(ctx context.Context, account Account) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.Email]; ok {
		return "", shared.ErrDuplicate
	}
	now := s.now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now
	account.Grants = account.Grants.Clone()
	s.accounts[account.Email] = account
	return account.ID, nil
}

// UpdateByEmail applies patch to the account with the given email.
func (s *MemoryStore) UpdateByEmail(ctx context.Context, email string, patch Patch) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[email]
	if !ok {
		return 0, nil
	}
	acct = patch.Apply(acct)
	acct.UpdatedAt = s.now().UTC()
	s.accounts[email] = acct
	return 1, nil
}

// Count returns the number of stored accounts.
func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.accounts)), nil
}

// ClaimBootstrap records the first claimant.
func (s *MemoryStore) ClaimBootstrap(ctx context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bootstrap == "" {
		s.bootstrap = email
	}
	return s.bootstrap == email, nil
}

// BootstrapOwner returns the recorded claimant.
func (s *MemoryStore) BootstrapOwner(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bootstrap, nil
}

// List returns all accounts ordered by email.
func (s *MemoryStore) List(ctx context.Context) ([]Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Account, 0, len(s.accounts))
	for _, acct := range s.accounts {
		acct.Grants = acct.Grants.Clone()
		out = append(out, acct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
