package sweep

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/fslongjin/bandsweep/internal/lifecycle"
	"github.com/fslongjin/bandsweep/internal/security"
	"github.com/fslongjin/bandsweep/pkg/model"
)

// CredentialStore persists the Credential in its named slot.
type CredentialStore interface {
	Save(ctx context.Context, cred *model.Credential) error
	Load(ctx context.Context) (*model.Credential, error)
	Clear(ctx context.Context) error
}

// AuthSession holds the current Credential. It is replaced only wholesale
// and never while a deletion is in flight.
type AuthSession struct {
	store    CredentialStore
	inflight *lifecycle.Tracker

	mu   sync.RWMutex
	cred *model.Credential
}

func NewAuthSession(store CredentialStore, inflight *lifecycle.Tracker) *AuthSession {
	if inflight == nil {
		inflight = lifecycle.NewTracker()
	}
	return &AuthSession{store: store, inflight: inflight}
}

// Load reads the persisted credential into memory. A missing slot is not an error.
func (s *AuthSession) Load(ctx context.Context) (*model.Credential, error) {
	cred, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cred = cred
	s.mu.Unlock()
	return copyCredential(cred), nil
}

// Current returns a copy of the in-memory credential, or nil.
func (s *AuthSession) Current() *model.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyCredential(s.cred)
}

// Replace persists cred and swaps it in.
func (s *AuthSession) Replace(ctx context.Context, cred *model.Credential) error {
	if cred == nil {
		return validationErr(ErrNotAuthenticated)
	}
	if err := model.Validate(cred); err != nil {
		return &ValidationError{Message: "incomplete credential", Err: err}
	}
	err := s.inflight.WhenIdle(func() error {
		if err := s.store.Save(ctx, cred); err != nil {
			return err
		}
		s.mu.Lock()
		s.cred = copyCredential(cred)
		s.mu.Unlock()
		return nil
	})
	if errors.Is(err, lifecycle.ErrBusy) {
		return &ConflictError{Resource: "credential", Message: "cannot replace the credential while a deletion is in flight"}
	}
	if err != nil {
		return err
	}
	slog.Info("credential replaced", "component", "auth_session",
		"user_key", cred.IdentityID, "token_fp", security.Fingerprint(cred.AccessToken))
	return nil
}

// Clear erases the persisted and in-memory credential.
func (s *AuthSession) Clear(ctx context.Context) error {
	err := s.inflight.WhenIdle(func() error {
		if err := s.store.Clear(ctx); err != nil {
			return err
		}
		s.mu.Lock()
		s.cred = nil
		s.mu.Unlock()
		return nil
	})
	if errors.Is(err, lifecycle.ErrBusy) {
		return &ConflictError{Resource: "credential", Message: "cannot log out while a deletion is in flight"}
	}
	if err != nil {
		return err
	}
	slog.Info("credential cleared", "component", "auth_session")
	return nil
}

func copyCredential(c *model.Credential) *model.Credential {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// MemoryStore is a CredentialStore that keeps the credential in memory.
type MemoryStore struct {
	mu   sync.Mutex
	cred *model.Credential
}

func NewMemoryStore(cred *model.Credential) *MemoryStore {
	return &MemoryStore{cred: copyCredential(cred)}
}

func (m *MemoryStore) Save(_ context.Context, cred *model.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = copyCredential(cred)
	return nil
}

func (m *MemoryStore) Load(context.Context) (*model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyCredential(m.cred), nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = nil
	return nil
}
