package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"optibid.com/internal/ids"
	"optibid.com/internal/obs"
)

const (
	DefaultAccessTTL  = 7 * 24 * time.Hour
	DefaultRefreshTTL = 30 * 24 * time.Hour

	defaultIssuerName = "optibid"
)

var (
	// ErrMissingSigningKey is fatal at startup; it never surfaces per request.
	ErrMissingSigningKey = errors.New("auth: signing key is not configured")
	ErrInvalidToken      = errors.New("auth: invalid token")
	ErrTokenExpired      = errors.New("auth: token expired")
)

// TokenKind separates access tokens from refresh tokens.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// Token is a minted, signed credential together with its decoded fields.
type Token struct {
	ID           string
	Value        string
	Kind         TokenKind
	SubjectID    string
	SubjectEmail string
	SubjectRole  Role
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// Claims is the JWT payload.
type Claims struct {
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	TokenType TokenKind `json:"token_type"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 tokens with a process-wide key. It holds no
// mutable state and is safe for concurrent use.
type Issuer struct {
	key    []byte
	issuer string
	now    func() time.Time
}

// IssuerOption configures an Issuer.
type IssuerOption func(*Issuer) error

// WithIssuerName overrides the iss claim.
func WithIssuerName(name string) IssuerOption {
	return func(i *Issuer) error {
		name = strings.TrimSpace(name)
		if name != "" {
			i.issuer = name
		}
		return nil
	}
}

// WithClock overrides the time source.
func WithClock(fn func() time.Time) IssuerOption {
	return func(i *Issuer) error {
		if fn != nil {
			i.now = fn
		}
		return nil
	}
}

// NewIssuer returns ErrMissingSigningKey when key is empty.
func NewIssuer(key []byte, opts ...IssuerOption) (*Issuer, error) {
	if len(strings.TrimSpace(string(key))) == 0 {
		return nil, ErrMissingSigningKey
	}
	i := &Issuer{
		key:    append([]byte(nil), key...),
		issuer: defaultIssuerName,
		now:    time.Now,
	}
	for _, opt := range opts {
		if err := opt(i); err != nil {
			return nil, err
		}
	}
	return i, nil
}

// Issue mints a token of the given kind valid for lifetime from now.
func (i *Issuer) Issue(subjectID, email string, role Role, kind TokenKind, lifetime time.Duration) (Token, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return Token{}, errors.New("subject is required")
	}
	if lifetime <= 0 {
		return Token{}, errors.New("lifetime must be greater than zero")
	}
	if kind != TokenAccess && kind != TokenRefresh {
		return Token{}, fmt.Errorf("unknown token kind %q", kind)
	}

	// JWT timestamps carry whole seconds; truncate so the returned Token
	// matches what a verifier decodes.
	issuedAt := i.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(lifetime)
	jti := ids.NewAt(issuedAt)

	claims := Claims{
		Email:     email,
		Role:      role,
		TokenType: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        jti,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	obs.ObserveTokenIssued(string(kind))

	return Token{
		ID:           jti,
		Value:        signed,
		Kind:         kind,
		SubjectID:    subjectID,
		SubjectEmail: email,
		SubjectRole:  role,
		IssuedAt:     issuedAt,
		ExpiresAt:    expiresAt,
	}, nil
}

// Verify checks signature, issuer, expiry and kind. A correctly signed token
// past its expiry yields ErrTokenExpired; every other failure ErrInvalidToken.
func (i *Issuer) Verify(value string, kind TokenKind) (*Claims, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(value, &Claims{}, func(t *jwt.Token) (any, error) {
		return i.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		if expiredOnly(err) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != kind {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// expiredOnly reports whether expiry is the sole reason a token was rejected.
// jwt joins claim failures, so an expired token with a foreign issuer also
// matches ErrTokenExpired.
func expiredOnly(err error) bool {
	if !errors.Is(err, jwt.ErrTokenExpired) {
		return false
	}
	for _, other := range []error{
		jwt.ErrTokenSignatureInvalid,
		jwt.ErrTokenMalformed,
		jwt.ErrTokenUnverifiable,
		jwt.ErrTokenInvalidIssuer,
		jwt.ErrTokenUsedBeforeIssued,
		jwt.ErrTokenNotValidYet,
		jwt.ErrTokenRequiredClaimMissing,
	} {
		if errors.Is(err, other) {
			return false
		}
	}
	return true
}
