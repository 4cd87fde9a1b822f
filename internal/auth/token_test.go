// ABOUTME: Tests for reader token generation and verification
// ABOUTME: Covers round trips, tampered or foreign tokens, expiry and missing subjects

package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("folio-reader-token-test-secret!!")

func TestJWTVerifier_RoundTrip(t *testing.T) {
	v := NewJWTVerifier(testSecret)

	for _, id := range []string{"reader-1", "reader-2"} {
		token, err := v.Generate(id, time.Hour)
		require.NoError(t, err)

		got, err := v.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, id, got)
	}
}

func TestJWTVerifier_Rejects(t *testing.T) {
	v := NewJWTVerifier(testSecret)
	foreign, err := NewJWTVerifier([]byte("another-secret-entirely-32-bytes")).Generate("reader", time.Hour)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":          "",
		"garbage":        "not-a-jwt",
		"malformed":      "header.payload.signature",
		"foreign secret": foreign,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

// expiredToken signs a token for sub that expired an hour ago.
func expiredToken(t *testing.T, sub string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"iat": time.Now().Add(-2 * time.Hour).Unix(),
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString(testSecret)
	require.NoError(t, err)
	return token
}

func TestJWTVerifier_Expired(t *testing.T) {
	_, err := NewJWTVerifier(testSecret).Verify(expiredToken(t, "reader"))
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTVerifier_NoExpiry(t *testing.T) {
	v := NewJWTVerifier(testSecret)
	token, err := v.Generate("reader", 0)
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)
	assert.NotContains(t, claims, "exp")

	got, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "reader", got)
}

func TestJWTVerifier_RejectsOtherHMAC(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": "reader",
	}).SignedString(testSecret)
	require.NoError(t, err)

	_, err = NewJWTVerifier(testSecret).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTVerifier_MissingSubject(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iat": time.Now().Unix(),
	}).SignedString(testSecret)
	require.NoError(t, err)

	_, err = NewJWTVerifier(testSecret).Verify(token)
	assert.ErrorIs(t, err, ErrMissingClaim)
}

func TestJWTVerifier_RejectsNoneAlgorithm(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "reader",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewJWTVerifier(testSecret).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSubject(t *testing.T) {
	token, err := NewJWTVerifier(testSecret).Generate("reader-9", time.Hour)
	require.NoError(t, err)

	// Readable without the secret.
	sub, err := Subject(token)
	require.NoError(t, err)
	assert.Equal(t, "reader-9", sub)

	_, err = Subject("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"iat": time.Now().Unix()}).SignedString(testSecret)
	require.NoError(t, err)
	_, err = Subject(noSub)
	assert.ErrorIs(t, err, ErrMissingClaim)
}
