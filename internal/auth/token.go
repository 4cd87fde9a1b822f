// ABOUTME: JWT token verification for authenticating readers on the progress API
// ABOUTME: Uses HS256 signing with the configured secret; "sub" carries the principal id

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the minimum accepted JWT secret length in bytes.
const MinSecretLength = 32

// Token errors
var (
	ErrInvalidToken = errors.New("reader token rejected")
	ErrExpiredToken = errors.New("reader token has expired")
	ErrMissingClaim = errors.New("reader token names no principal")
)

// TokenVerifier resolves a bearer token to the principal it was issued for.
type TokenVerifier interface {
	Verify(tokenString string) (principalID string, err error)
}

// JWTVerifier checks HS256 tokens signed with the gateway secret.
type JWTVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTVerifier creates a verifier for tokens signed with secret.
func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{
		secret: secret,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

// Verify checks the signature and expiry of tokenString and returns the
// principal named by its subject.
func (v *JWTVerifier) Verify(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := v.parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrExpiredToken
	case err != nil:
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return principalOf(&claims)
}

func principalOf(claims *jwt.RegisteredClaims) (string, error) {
	if claims.Subject == "" {
		return "", ErrMissingClaim
	}
	return claims.Subject, nil
}

// Generate creates a token for principalID. A non-positive expiresIn
// produces a token without an expiry.
func (v *JWTVerifier) Generate(principalID string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": principalID,
		"iat": now.Unix(),
	}
	if expiresIn > 0 {
		claims["exp"] = now.Add(expiresIn).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Subject returns the "sub" claim of tokenString without verifying its
// signature. Clients use it to learn which principal a token names; the
// gateway must use Verify.
func Subject(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, &claims); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return principalOf(&claims)
}
