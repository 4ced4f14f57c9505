package auth

import (
	"context"
	"strings"
)

// CredentialStore answers read-only lookups of principals and their secrets.
type CredentialStore interface {
	// FindByEmail matches email case-insensitively; ErrNotFound when absent.
	FindByEmail(ctx context.Context, email string) (Credential, error)
	// Principals lists every known principal without secrets.
	Principals(ctx context.Context) ([]Principal, error)
}

// Pinger is implemented by stores backed by a remote resource.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NormalizeEmail trims and lower-cases an email for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
