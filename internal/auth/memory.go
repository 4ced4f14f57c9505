package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"optibid.com/internal/ids"
)

var _ CredentialStore = (*MemoryStore)(nil)

// MemoryStore is a CredentialStore over a fixed set of principals. It is
// immutable after construction and safe for concurrent use without locking.
type MemoryStore struct {
	byEmail map[string]Credential
	order   []string
}

type memoryConfig struct {
	hashCost int
}

// MemoryOption configures NewMemoryStore.
type MemoryOption func(*memoryConfig)

// WithHashCost sets the bcrypt cost used for plaintext seed passwords.
func WithHashCost(cost int) MemoryOption {
	return func(c *memoryConfig) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			c.hashCost = cost
		}
	}
}

// NewMemoryStore validates seeds and hashes any plaintext passwords.
func NewMemoryStore(seeds []Seed, opts ...MemoryOption) (*MemoryStore, error) {
	cfg := memoryConfig{hashCost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(&cfg)
	}
	creds, err := BuildCredentials(seeds, cfg.hashCost)
	if err != nil {
		return nil, err
	}

	s := &MemoryStore{byEmail: make(map[string]Credential, len(creds))}
	for _, cred := range creds {
		key := NormalizeEmail(cred.Principal.Email)
		s.byEmail[key] = cred
		s.order = append(s.order, key)
	}
	return s, nil
}

// BuildCredentials validates seeds, rejects duplicate emails and hashes
// plaintext passwords with the given bcrypt cost.
func BuildCredentials(seeds []Seed, cost int) ([]Credential, error) {
	if len(seeds) == 0 {
		return nil, errors.New("auth: at least one principal is required")
	}
	seen := make(map[string]struct{}, len(seeds))
	out := make([]Credential, 0, len(seeds))
	for i, seed := range seeds {
		cred, err := credentialFromSeed(seed, cost)
		if err != nil {
			return nil, fmt.Errorf("principal %d: %w", i, err)
		}
		key := NormalizeEmail(cred.Principal.Email)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEmail, key)
		}
		seen[key] = struct{}{}
		out = append(out, cred)
	}
	return out, nil
}

func credentialFromSeed(seed Seed, cost int) (Credential, error) {
	email := strings.TrimSpace(seed.Email)
	if email == "" || !strings.Contains(email, "@") {
		return Credential{}, fmt.Errorf("%w: email %q", ErrValidation, seed.Email)
	}
	role, err := ParseRole(seed.Role)
	if err != nil {
		return Credential{}, err
	}

	hash := strings.TrimSpace(seed.PasswordHash)
	switch {
	case hash != "":
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return Credential{}, fmt.Errorf("password_hash for %s: %w", email, err)
		}
	case seed.Password != "":
		hash, err = HashPasswordCost(seed.Password, cost)
		if err != nil {
			return Credential{}, fmt.Errorf("hash password for %s: %w", email, err)
		}
	default:
		return Credential{}, fmt.Errorf("%w: %s has no password", ErrValidation, email)
	}

	id := strings.TrimSpace(seed.ID)
	if id == "" {
		id = ids.New()
	}
	name := strings.TrimSpace(seed.Name)
	if name == "" {
		name = email
	}
	perms := seed.Permissions
	if len(perms) == 0 {
		perms = DefaultPermissions(role)
	}
	return Credential{
		Principal:    NewPrincipal(id, email, name, role, strings.TrimSpace(seed.OrganizationID), perms),
		PasswordHash: hash,
	}, nil
}

// FindByEmail implements CredentialStore.
func (s *MemoryStore) FindByEmail(_ context.Context, email string) (Credential, error) {
	cred, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return Credential{}, ErrNotFound
	}
	return cred, nil
}

// Principals implements CredentialStore, preserving seed order.
func (s *MemoryStore) Principals(_ context.Context) ([]Principal, error) {
	out := make([]Principal, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.byEmail[key].Principal)
	}
	return out, nil
}
