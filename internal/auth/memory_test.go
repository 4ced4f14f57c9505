package auth

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newDemoStore(t *testing.T) *MemoryStore {
	t.Helper()
	store, err := NewMemoryStore(DemoSeeds(), WithHashCost(bcrypt.MinCost))
	require.NoError(t, err)
	return store
}

func TestMemoryStoreFindByEmailIsCaseInsensitive(t *testing.T) {
	store := newDemoStore(t)
	ctx := context.Background()

	for _, email := range []string{"admin@optibid.com", "ADMIN@OptiBid.com", "  admin@optibid.com "} {
		cred, err := store.FindByEmail(ctx, email)
		require.NoError(t, err, email)
		assert.Equal(t, "usr-admin", cred.Principal.ID)
		assert.NoError(t, VerifyPassword(cred.PasswordHash, "admin123"))
	}

	_, err := store.FindByEmail(ctx, "nobody@optibid.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreRejectsDuplicateEmails(t *testing.T) {
	seeds := []Seed{
		{Email: "ops@optibid.com", Role: "admin", Password: "secret-1"},
		{Email: "OPS@optibid.com", Role: "user", Password: "secret-2"},
	}
	_, err := NewMemoryStore(seeds, WithHashCost(bcrypt.MinCost))
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestMemoryStoreRejectsBadSeeds(t *testing.T) {
	cases := map[string]Seed{
		"role":     {Email: "a@optibid.com", Role: "superuser", Password: "x"},
		"email":    {Email: "not-an-email", Role: "user", Password: "x"},
		"password": {Email: "a@optibid.com", Role: "user"},
		"hash":     {Email: "a@optibid.com", Role: "user", PasswordHash: "plain"},
	}
	for name, seed := range cases {
		_, err := NewMemoryStore([]Seed{seed}, WithHashCost(bcrypt.MinCost))
		assert.Error(t, err, name)
	}
	_, err := NewMemoryStore(nil)
	assert.Error(t, err)
}

func TestMemoryStoreAcceptsPrecomputedHash(t *testing.T) {
	hash, err := HashPasswordCost("s3cret-pass", bcrypt.MinCost)
	require.NoError(t, err)

	store, err := NewMemoryStore([]Seed{{Email: "ops@optibid.com", Role: "trader", PasswordHash: hash}})
	require.NoError(t, err)

	cred, err := store.FindByEmail(context.Background(), "ops@optibid.com")
	require.NoError(t, err)
	assert.Equal(t, hash, cred.PasswordHash)
	assert.NotEmpty(t, cred.Principal.ID)
	assert.Equal(t, "ops@optibid.com", cred.Principal.DisplayName)
	assert.ElementsMatch(t, DefaultPermissions(RoleTrader), cred.Principal.Permissions())
}

func TestDemoPrincipalsNeverExposeSecrets(t *testing.T) {
	store := newDemoStore(t)
	principals, err := store.Principals(context.Background())
	require.NoError(t, err)
	require.Len(t, principals, 3)

	emails := map[string]bool{}
	for _, p := range principals {
		key := strings.ToLower(p.Email)
		assert.False(t, emails[key], "duplicate email %s", key)
		emails[key] = true

		data, err := json.Marshal(p)
		require.NoError(t, err)
		assert.NotContains(t, strings.ToLower(string(data)), "password")
		assert.NotContains(t, string(data), "$2a$")
	}

	cred, err := store.FindByEmail(context.Background(), "admin@optibid.com")
	require.NoError(t, err)
	data, err := json.Marshal(cred)
	require.NoError(t, err)
	assert.NotContains(t, string(data), cred.PasswordHash)
	assert.True(t, cred.Principal.HasPermission(PermAdminSystem))
}

func TestPrincipalJSONRoundTrip(t *testing.T) {
	p := NewPrincipal("usr-1", "a@optibid.com", "A", RoleTrader, "org", []string{"b", "a", "a", " "})
	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"usr-1","email":"a@optibid.com","name":"A","role":"trader","organization_id":"org","permissions":["a","b"]}`, string(data))

	var back Principal
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, p.Permissions(), back.Permissions())
	assert.True(t, back.HasPermission("a"))
}

func TestLoadSeeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "principals.yaml")
	doc := `principals:
  - id: usr-ops
    email: ops@optibid.com
    name: Ops
    role: Admin
    organization_id: org-1
    permissions: [admin.system, trading.view]
    password: ops-password
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	seeds, err := LoadSeeds(path)
	require.NoError(t, err)
	require.Len(t, seeds, 1)

	store, err := NewMemoryStore(seeds, WithHashCost(bcrypt.MinCost))
	require.NoError(t, err)
	cred, err := store.FindByEmail(context.Background(), "ops@optibid.com")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, cred.Principal.Role)
	assert.Equal(t, []string{"admin.system", "trading.view"}, cred.Principal.Permissions())

	_, err = ParseSeeds([]byte("principals: []"))
	assert.Error(t, err)
	_, err = LoadSeeds(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
