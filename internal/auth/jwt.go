// Package auth issues and verifies session tokens, hashes passwords, and
// gates routes behind an authenticated user.
//
// SESSION FLOW:
//  1. Client registers or logs in → server returns a signed JWT
//  2. Client sends it back on every book request as
//     "Authorization: Bearer <token>"
//  3. RequireAuth validates the token, loads the user it names, and puts the
//     public user view into the request context
//
// Tokens are stateless. Nothing is stored server-side, so a token stays valid
// until it expires; there is no revocation list.
//
// JWT STRUCTURE (three base64url parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"<userID>","iss":"booklog","iat":...,"exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secret)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "booklog"

	// DefaultTokenTTL is how long a session token stays valid: 15 days.
	DefaultTokenTTL = 15 * 24 * time.Hour

	minSecretLen = 16
)

// ErrTokenExpired is returned by Validate for a well-formed token whose
// expiry has passed.
var ErrTokenExpired = errors.New("auth: token expired")

// TokenService handles JWT creation and validation.
//
// It holds the HMAC secret used to sign and verify tokens and the lifetime
// given to new tokens. The secret comes from configuration, never from code.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given secret and token
// lifetime. A zero ttl means DefaultTokenTTL.
//
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("auth: JWT secret must be at least %d characters", minSecretLen)
	}
	if ttl < 0 {
		return nil, errors.New("auth: token TTL must not be negative")
	}
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL reports the lifetime given to tokens from Generate.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// claims is the JWT payload. "sub" carries the user ID.
type claims struct {
	jwt.RegisteredClaims
}

// Generate creates and signs a session token for userID using the
// configured lifetime.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, s.ttl)
}

// GenerateWithDuration creates a token with a custom expiry duration.
// Tests use a negative duration to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("auth: cannot issue a token without a user ID")
	}

	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string and returns the user ID held in
// its "sub" claim.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid
//   - Algorithm is HS256 (a token claiming "none" is rejected)
//   - Issuer is "booklog"
//   - Expiry is present and in the future
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", errors.New("auth: invalid token claims")
	}

	if c.Subject == "" {
		return "", errors.New("auth: token has no subject")
	}

	return c.Subject, nil
}
