// internal/common/auth/tokens.go
package auth

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"leak-audit/internal/common/errors"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by an access token.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenResponse is returned by the login endpoint.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expiresIn"`
}

// Issuer signs and verifies HS256 bearer tokens. With Email and Password set
// only that pair may log in; otherwise any non-empty pair is accepted.
type Issuer struct {
	secret   []byte
	ttl      time.Duration
	email    string
	password string
	now      func() time.Time
}

func NewIssuer(secret string, ttl time.Duration, email, password string) *Issuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{
		secret:   []byte(secret),
		ttl:      ttl,
		email:    email,
		password: password,
		now:      time.Now,
	}
}

func (i *Issuer) Configured() bool {
	return i != nil && len(i.secret) > 0
}

// Login checks the credentials and issues a token for email.
func (i *Issuer) Login(email, password string) (*TokenResponse, error) {
	if !i.Configured() {
		return nil, errors.NewAuthNotConfiguredError()
	}
	if email == "" || password == "" {
		return nil, errors.NewInvalidRequestError("Email and password required", "")
	}
	if i.email != "" || i.password != "" {
		emailOK := subtle.ConstantTimeCompare([]byte(strings.ToLower(email)), []byte(strings.ToLower(i.email))) == 1
		passOK := subtle.ConstantTimeCompare([]byte(password), []byte(i.password)) == 1
		if !emailOK || !passOK {
			return nil, errors.NewInvalidLoginError()
		}
	}

	token, err := i.Issue(email)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{Token: token, ExpiresIn: int(i.ttl.Seconds())}, nil
}

// Issue signs a token with sub and email set to email.
func (i *Issuer) Issue(email string) (string, error) {
	if !i.Configured() {
		return "", errors.NewAuthNotConfiguredError()
	}
	now := i.now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and returns its claims. Every failure maps to
// UNAUTHORIZED.
func (i *Issuer) Verify(token string) (*Claims, error) {
	if !i.Configured() {
		return nil, errors.NewAuthNotConfiguredError()
	}
	if token == "" {
		return nil, errors.NewUnauthorizedError()
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, errors.NewUnauthorizedError()
	}
	return claims, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
