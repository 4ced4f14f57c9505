package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"optibid.com/internal/obs"
)

// TokenTypeBearer is the token_type reported in session payloads.
const TokenTypeBearer = "bearer"

// AuditSink receives append-only audit events. Implementations must not
// block the caller for long; returned errors are ignored.
type AuditSink interface {
	LogEvent(ctx context.Context, event string, fields map[string]any) error
}

// LoginAttempt describes a finished login call. It never carries the password.
type LoginAttempt struct {
	Email       string
	PrincipalID string
	Success     bool
	Reason      string
	At          time.Time
	Client      ClientInfo
}

// LoginObserver is notified after every login attempt.
type LoginObserver interface {
	ObserveLogin(ctx context.Context, attempt LoginAttempt)
}

// Session is the result of a successful login.
type Session struct {
	AccessToken  Token
	RefreshToken Token
	TokenType    string
	Principal    Principal
}

// Service authenticates credentials and issues session tokens.
type Service struct {
	store      CredentialStore
	issuer     *Issuer
	accessTTL  time.Duration
	refreshTTL time.Duration
	audit      AuditSink
	observers  []LoginObserver
	now        func() time.Time
	log        *zap.Logger
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithAudit sets the audit sink.
func WithAudit(sink AuditSink) ServiceOption {
	return func(s *Service) { s.audit = sink }
}

// WithLoginObserver registers an observer of login attempts.
func WithLoginObserver(o LoginObserver) ServiceOption {
	return func(s *Service) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// WithServiceClock overrides the time source used for attempt timestamps.
func WithServiceClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithLogger overrides the logger used for internal failures.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// NewService wires the login flow over a credential store and a token issuer.
func NewService(store CredentialStore, issuer *Issuer, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: credential store is required")
	}
	if issuer == nil {
		return nil, ErrMissingSigningKey
	}
	s := &Service{
		store:      store,
		issuer:     issuer,
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = obs.Logger()
	}
	return s, nil
}

// AccessTTL reports the configured access token lifetime.
func (s *Service) AccessTTL() time.Duration { return s.accessTTL }

// Store exposes the underlying credential store (read-only).
func (s *Service) Store() CredentialStore { return s.store }

// Login checks email and password and returns a fresh session. Unknown email
// and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = NormalizeEmail(email)
	if verr := validateLogin(email, password); verr != nil {
		s.finish(ctx, LoginAttempt{Email: email, Reason: "validation"})
		return Session{}, verr
	}

	cred, err := s.store.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrNotFound):
		burnPasswordCheck(password)
		s.finish(ctx, LoginAttempt{Email: email, Reason: "invalid_credentials"})
		return Session{}, ErrInvalidCredentials
	case err != nil:
		s.log.Error("credential lookup failed", zap.String("email", email), zap.Error(err))
		s.finish(ctx, LoginAttempt{Email: email, Reason: "internal"})
		return Session{}, fmt.Errorf("%w: lookup: %w", ErrInternal, err)
	}

	if err := VerifyPassword(cred.PasswordHash, password); err != nil {
		s.finish(ctx, LoginAttempt{Email: email, Reason: "invalid_credentials"})
		return Session{}, ErrInvalidCredentials
	}

	principal := cred.Principal
	session, err := s.mint(principal)
	if err != nil {
		s.log.Error("token issuance failed", zap.String("principal_id", principal.ID), zap.Error(err))
		s.finish(ctx, LoginAttempt{Email: email, PrincipalID: principal.ID, Reason: "internal"})
		return Session{}, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	s.finish(ctx, LoginAttempt{Email: email, PrincipalID: principal.ID, Success: true})
	return session, nil
}

func validateLogin(email, password string) *ValidationError {
	fields := map[string]string{}
	if email == "" {
		fields["email"] = "email is required"
	}
	if password == "" {
		fields["password"] = "password is required"
	}
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Message: "email and password required", Fields: fields}
}

func (s *Service) mint(p Principal) (Session, error) {
	access, err := s.issuer.Issue(p.ID, p.Email, p.Role, TokenAccess, s.accessTTL)
	if err != nil {
		return Session{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.issuer.Issue(p.ID, p.Email, p.Role, TokenRefresh, s.refreshTTL)
	if err != nil {
		return Session{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return Session{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    TokenTypeBearer,
		Principal:    p,
	}, nil
}

func (s *Service) finish(ctx context.Context, attempt LoginAttempt) {
	attempt.At = s.now().UTC()
	attempt.Client = ClientFromContext(ctx)

	result := "success"
	event := "auth.login.succeeded"
	if !attempt.Success {
		result = attempt.Reason
		event = "auth.login.failed"
	}
	obs.ObserveLogin(result)

	if s.audit != nil {
		fields := map[string]any{
			"email":  attempt.Email,
			"result": result,
		}
		if attempt.PrincipalID != "" {
			fields["principal_id"] = attempt.PrincipalID
		}
		if attempt.Client.IP != "" {
			fields["remote_ip"] = attempt.Client.IP
		}
		_ = s.audit.LogEvent(ctx, event, fields)
	}
	for _, o := range s.observers {
		o.ObserveLogin(ctx, attempt)
	}
}

// Authenticate verifies an access token and resolves its principal.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (Principal, *Claims, error) {
	claims, err := s.issuer.Verify(accessToken, TokenAccess)
	if err != nil {
		return Principal{}, nil, err
	}
	p, err := s.resolve(ctx, claims)
	if err != nil {
		return Principal{}, nil, err
	}
	return p, claims, nil
}

// Refresh exchanges a refresh token for a new access token. Refresh tokens are
// not rotated.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Token, Principal, error) {
	claims, err := s.issuer.Verify(refreshToken, TokenRefresh)
	if err != nil {
		return Token{}, Principal{}, err
	}
	p, err := s.resolve(ctx, claims)
	if err != nil {
		return Token{}, Principal{}, err
	}
	access, err := s.issuer.Issue(p.ID, p.Email, p.Role, TokenAccess, s.accessTTL)
	if err != nil {
		s.log.Error("token refresh failed", zap.String("principal_id", p.ID), zap.Error(err))
		return Token{}, Principal{}, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	if s.audit != nil {
		_ = s.audit.LogEvent(ctx, "auth.token.refreshed", map[string]any{
			"principal_id": p.ID,
			"email":        p.Email,
		})
	}
	return access, p, nil
}

func (s *Service) resolve(ctx context.Context, claims *Claims) (Principal, error) {
	cred, err := s.store.FindByEmail(ctx, claims.Email)
	if errors.Is(err, ErrNotFound) {
		return Principal{}, ErrInvalidToken
	}
	if err != nil {
		return Principal{}, fmt.Errorf("%w: lookup: %w", ErrInternal, err)
	}
	if cred.Principal.ID != claims.Subject {
		return Principal{}, ErrInvalidToken
	}
	return cred.Principal, nil
}
