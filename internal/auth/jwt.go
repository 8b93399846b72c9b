// Package auth handles passwords, session tokens and the request-scoped
// current user.
//
// SESSION FLOW OVERVIEW:
//  1. The user posts the login (or register) form
//  2. The service verifies the password and issues a signed session token
//  3. The handler stores the token in the HttpOnly "session" cookie
//  4. On every request, LoadUser reads the cookie, validates the token,
//     loads the user row once, and puts it in the request context
//  5. RequireAuth and RequireAdmin gate routes on what LoadUser found
//
// The token is a JWT signed with HS256:
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Payload: {"sub":"42","jti":"cv37rs3pp9olc6atsptg","iss":"musicrec","exp":...}
//
// The signature can be checked with the secret key alone. The user row is
// still loaded on each request so a deleted account loses its session
// immediately.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

const issuer = "musicrec"

// DefaultSessionTTL is used when NewTokenService gets a zero ttl.
const DefaultSessionTTL = 24 * time.Hour

// TokenService creates and validates session tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given secret and session
// lifetime. The secret must be at least 16 characters.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: secret key must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL is the lifetime of tokens from Generate. The session cookie uses the
// same value for Max-Age.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Generate signs a session token for userID with the configured lifetime.
func (s *TokenService) Generate(userID int64) (string, error) {
	return s.GenerateWithDuration(userID, s.ttl)
}

// GenerateWithDuration signs a token with a custom lifetime. A negative d
// yields an already expired token, which the tests rely on.
//
// Every token carries a fresh xid as its jti, so two logins of the same user
// in the same second still get distinct tokens.
func (s *TokenService) GenerateWithDuration(userID int64, d time.Duration) (string, error) {
	if userID <= 0 {
		return "", fmt.Errorf("auth: invalid user id %d", userID)
	}
	now := time.Now()

	c := jwt.RegisteredClaims{
		ID:        xid.New().String(),
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(d)),
		Issuer:    issuer,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate verifies signature, algorithm, issuer and expiry, and returns the
// user id from the subject claim.
//
// jwt.WithValidMethods pins HS256 so a token claiming "alg":"none" (or an
// asymmetric algorithm keyed with our secret) is rejected.
func (s *TokenService) Validate(tokenStr string) (int64, error) {
	var c jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&c,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, fmt.Errorf("auth: token expired")
		}
		return 0, fmt.Errorf("auth: invalid token: %w", err)
	}
	if !token.Valid {
		return 0, fmt.Errorf("auth: invalid token")
	}

	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("auth: token has no valid subject")
	}
	return id, nil
}
