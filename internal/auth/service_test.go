package auth

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type auditRecord struct {
	event  string
	fields map[string]any
}

type recordingAudit struct {
	mu      sync.Mutex
	records []auditRecord
}

func (r *recordingAudit) LogEvent(_ context.Context, event string, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, auditRecord{event: event, fields: fields})
	return nil
}

func (r *recordingAudit) all() []auditRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]auditRecord(nil), r.records...)
}

type recordingObserver struct {
	mu       sync.Mutex
	attempts []LoginAttempt
}

func (o *recordingObserver) ObserveLogin(_ context.Context, a LoginAttempt) {
	o.mu.Lock()
	o.attempts = append(o.attempts, a)
	o.mu.Unlock()
}

type failingStore struct{}

func (failingStore) FindByEmail(context.Context, string) (Credential, error) {
	return Credential{}, errors.New("database unavailable")
}

func (failingStore) Principals(context.Context) ([]Principal, error) {
	return nil, errors.New("database unavailable")
}

func newTestService(t *testing.T, opts ...ServiceOption) (*Service, *Issuer, *recordingAudit) {
	t.Helper()
	iss, err := NewIssuer(testKey)
	require.NoError(t, err)
	rec := &recordingAudit{}
	svc, err := NewService(newDemoStore(t), iss, append([]ServiceOption{WithAudit(rec)}, opts...)...)
	require.NoError(t, err)
	return svc, iss, rec
}

func TestLoginSucceedsForEveryDemoPrincipal(t *testing.T) {
	svc, iss, _ := newTestService(t)
	ctx := context.Background()

	for _, seed := range DemoSeeds() {
		session, err := svc.Login(ctx, seed.Email, seed.Password)
		require.NoError(t, err, seed.Email)

		assert.Equal(t, TokenTypeBearer, session.TokenType)
		assert.Equal(t, seed.ID, session.Principal.ID)
		assert.Equal(t, DefaultAccessTTL, session.AccessToken.ExpiresAt.Sub(session.AccessToken.IssuedAt))
		assert.Equal(t, DefaultRefreshTTL, session.RefreshToken.ExpiresAt.Sub(session.RefreshToken.IssuedAt))
		assert.NotEqual(t, session.AccessToken.Value, session.RefreshToken.Value)

		claims, err := iss.Verify(session.AccessToken.Value, TokenAccess)
		require.NoError(t, err)
		assert.Equal(t, seed.ID, claims.Subject)
		assert.Equal(t, seed.Email, claims.Email)
		assert.Equal(t, Role(seed.Role), claims.Role)

		refreshClaims, err := iss.Verify(session.RefreshToken.Value, TokenRefresh)
		require.NoError(t, err)
		assert.Equal(t, seed.ID, refreshClaims.Subject)
	}
}

func TestLoginTwiceYieldsDistinctTokens(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Login(ctx, "trader@optibid.com", "trader123")
	require.NoError(t, err)
	b, err := svc.Login(ctx, "trader@optibid.com", "trader123")
	require.NoError(t, err)

	assert.NotEqual(t, a.AccessToken.Value, b.AccessToken.Value)
	assert.NotEqual(t, a.RefreshToken.Value, b.RefreshToken.Value)
}

func TestLoginDoesNotRevealWhichPartWasWrong(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, wrongPassword := svc.Login(ctx, "demo@optibid.com", "wrongpass")
	_, unknownEmail := svc.Login(ctx, "ghost@optibid.com", "wrongpass")

	require.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	require.ErrorIs(t, unknownEmail, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestLoginValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		email, password string
		fields          []string
	}{
		{"", "x", []string{"email"}},
		{"x", "", []string{"password"}},
		{"   ", "", []string{"email", "password"}},
	}
	for _, tc := range cases {
		_, err := svc.Login(ctx, tc.email, tc.password)
		require.ErrorIs(t, err, ErrValidation)
		assert.False(t, errors.Is(err, ErrInvalidCredentials))

		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "email and password required", verr.Message)
		for _, f := range tc.fields {
			assert.Contains(t, verr.Fields, f)
		}
	}
}

func TestLoginStoreFailureIsInternal(t *testing.T) {
	iss, err := NewIssuer(testKey)
	require.NoError(t, err)
	svc, err := NewService(failingStore{}, iss)
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "admin@optibid.com", "admin123")
	require.ErrorIs(t, err, ErrInternal)
	assert.False(t, errors.Is(err, ErrInvalidCredentials))
}

func TestLoginAuditsWithoutPassword(t *testing.T) {
	observer := &recordingObserver{}
	svc, _, rec := newTestService(t, WithLoginObserver(observer))
	ctx := ContextWithClient(context.Background(), ClientInfo{IP: "10.1.2.3", UserAgent: "test"})

	_, err := svc.Login(ctx, "Admin@OptiBid.com", "admin123")
	require.NoError(t, err)
	_, err = svc.Login(ctx, "admin@optibid.com", "hunter2-secret")
	require.Error(t, err)

	records := rec.all()
	require.Len(t, records, 2)
	assert.Equal(t, "auth.login.succeeded", records[0].event)
	assert.Equal(t, "admin@optibid.com", records[0].fields["email"])
	assert.Equal(t, "usr-admin", records[0].fields["principal_id"])
	assert.Equal(t, "10.1.2.3", records[0].fields["remote_ip"])
	assert.Equal(t, "auth.login.failed", records[1].event)
	assert.Equal(t, "invalid_credentials", records[1].fields["result"])

	for _, r := range records {
		data, err := json.Marshal(r.fields)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "admin123")
		assert.NotContains(t, string(data), "hunter2-secret")
		assert.NotContains(t, strings.ToLower(string(data)), "password")
	}

	require.Len(t, observer.attempts, 2)
	assert.True(t, observer.attempts[0].Success)
	assert.Equal(t, "test", observer.attempts[0].Client.UserAgent)
	assert.False(t, observer.attempts[1].Success)
}

func TestAuthenticateAndRefresh(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := context.Background()

	session, err := svc.Login(ctx, "trader@optibid.com", "trader123")
	require.NoError(t, err)

	p, claims, err := svc.Authenticate(ctx, session.AccessToken.Value)
	require.NoError(t, err)
	assert.Equal(t, "usr-trader", p.ID)
	assert.Equal(t, session.AccessToken.ID, claims.ID)

	_, _, err = svc.Authenticate(ctx, session.RefreshToken.Value)
	assert.ErrorIs(t, err, ErrInvalidToken, "refresh token must not authenticate requests")

	access, p2, err := svc.Refresh(ctx, session.RefreshToken.Value)
	require.NoError(t, err)
	assert.Equal(t, p.ID, p2.ID)
	assert.Equal(t, TokenAccess, access.Kind)
	assert.NotEqual(t, session.AccessToken.Value, access.Value)

	_, _, err = svc.Refresh(ctx, session.AccessToken.Value)
	assert.ErrorIs(t, err, ErrInvalidToken)

	events := rec.all()
	assert.Equal(t, "auth.token.refreshed", events[len(events)-1].event)
}

func TestAuthenticateRejectsTokenForUnknownSubject(t *testing.T) {
	svc, iss, _ := newTestService(t)
	tok, err := iss.Issue("usr-ghost", "ghost@optibid.com", RoleUser, TokenAccess, time.Hour)
	require.NoError(t, err)

	_, _, err = svc.Authenticate(context.Background(), tok.Value)
	assert.ErrorIs(t, err, ErrInvalidToken)

	mismatched, err := iss.Issue("usr-other", "demo@optibid.com", RoleUser, TokenAccess, time.Hour)
	require.NoError(t, err)
	_, _, err = svc.Authenticate(context.Background(), mismatched.Value)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLoginConcurrent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	tokens := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := svc.Login(ctx, "demo@optibid.com", "demo123")
			errs[i] = err
			tokens[i] = s.AccessToken.Value
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[tokens[i]], "token reused")
		seen[tokens[i]] = true
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	iss, err := NewIssuer(testKey)
	require.NoError(t, err)
	_, err = NewService(nil, iss)
	assert.Error(t, err)
	_, err = NewService(newDemoStore(t), nil)
	assert.ErrorIs(t, err, ErrMissingSigningKey)
}
