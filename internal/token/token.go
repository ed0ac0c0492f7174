package token

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/myopinion/apiserver/types"
)

const defaultTokenTTL = 7 * 24 * time.Hour

// ErrInvalidToken is returned for any token that fails verification:
// bad signature, malformed structure, or lapsed expiry.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the set of attested facts embedded in a token.
type Claims struct {
	jwt.RegisteredClaims
	Email string     `json:"email"`
	Name  string     `json:"name"`
	Role  types.Role `json:"role"`
}

// HasRole reports whether the role claim exactly matches the required role.
// The comparison is case-sensitive on the closed Role type.
func (c Claims) HasRole(role types.Role) bool {
	return c.Role == role
}

// UserID parses the string-encoded subject back into a user id.
func (c Claims) UserID() (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(c.Subject))
	if err != nil || id < 1 {
		return 0, errors.New("invalid subject")
	}
	return id, nil
}

// Authority issues and verifies signed bearer tokens. Issuer and verifier
// share the same symmetric secret; the secret is mandatory configuration.
type Authority struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option customizes an Authority.
type Option func(*Authority)

// WithClock overrides the time source, for deterministic expiry tests.
func WithClock(now func() time.Time) Option {
	return func(a *Authority) { a.now = now }
}

// WithTTL overrides the default 7-day token lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(a *Authority) { a.ttl = ttl }
}

// NewAuthority constructs an Authority signing with the given secret.
func NewAuthority(secret []byte, opts ...Option) *Authority {
	a := &Authority{
		secret: secret,
		ttl:    defaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Issue produces a signed token embedding the user's identity and role.
// Once issued, a token is self-verifying until its expiry; it cannot be
// revoked early.
func (a *Authority) Issue(user types.User) (string, error) {
	now := a.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
		Email: user.Email,
		Name:  user.Username,
		Role:  user.Role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Verify parses and checks a token, failing closed on any defect.
func (a *Authority) Verify(tokenString string) (Claims, error) {
	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	if !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
