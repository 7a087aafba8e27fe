package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTokens = TokenConfig{Secret: "test-secret", Issuer: "footprint-test", TTL: time.Hour}

func TestIssueAndParseToken(t *testing.T) {
	token, expires, err := IssueToken("user-1", "alice", testTokens, time.Now())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	claims, err := ParseToken(token, testTokens)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "alice", claims.Username)
	assert.WithinDuration(t, expires, claims.ExpiresAt, time.Second)
}

func TestParseTokenRejects(t *testing.T) {
	expired, _, err := IssueToken("user-1", "alice", testTokens, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	otherIssuer, _, err := IssueToken("user-1", "alice", TokenConfig{Secret: testTokens.Secret, Issuer: "someone-else"}, time.Now())
	require.NoError(t, err)

	wrongSecret, _, err := IssueToken("user-1", "alice", TokenConfig{Secret: "nope", Issuer: testTokens.Issuer}, time.Now())
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": testTokens.Issuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testTokens.Secret))
	require.NoError(t, err)

	tests := map[string]string{
		"expired":    expired,
		"issuer":     otherIssuer,
		"secret":     wrongSecret,
		"no subject": noSubject,
		"garbage":    "not-a-jwt",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseToken(token, testTokens)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	_, err = ParseToken("  ", testTokens)
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestIssueTokenRequiresSecret(t *testing.T) {
	_, _, err := IssueToken("user-1", "alice", TokenConfig{}, time.Now())
	require.Error(t, err)
}
