package auth

import (
	"net/http"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenWithExpiry(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &SessionClaims{
		UID:   "st1",
		Email: "student@example.com",
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: exp.Unix(),
		},
	})
	raw, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func TestSessionDecodesClaims(t *testing.T) {
	raw := tokenWithExpiry(t, time.Now().Add(time.Hour))
	session, err := NewSession(raw)
	require.NoError(t, err)

	claims := session.Claims()
	assert.Equal(t, "st1", claims.UID)
	assert.Equal(t, "student@example.com", claims.Email)
	assert.False(t, session.Expired())
	assert.Equal(t, raw, session.Token())
}

func TestSessionRejectsEmptyAndGarbageTokens(t *testing.T) {
	_, err := NewSession("")
	assert.ErrorIs(t, err, ErrEmptyToken)

	_, err = NewSession("not-a-jwt")
	assert.Error(t, err)
}

func TestSessionExpiry(t *testing.T) {
	session, err := NewSession(tokenWithExpiry(t, time.Now().Add(-time.Minute)))
	require.NoError(t, err)
	assert.True(t, session.Expired())
	assert.Zero(t, session.Claims().TimeRemaining())
}

func TestSessionAuthorizeSetsBearerHeader(t *testing.T) {
	raw := tokenWithExpiry(t, time.Now().Add(time.Hour))
	session, err := NewSession(raw)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, "http://platform.local/", nil)
	require.NoError(t, err)
	session.Authorize(req)
	assert.Equal(t, "Bearer "+raw, req.Header.Get("Authorization"))
}

func TestSetTokenReplacesClaims(t *testing.T) {
	session, err := NewSession(tokenWithExpiry(t, time.Now().Add(-time.Minute)))
	require.NoError(t, err)
	require.True(t, session.Expired())

	require.NoError(t, session.SetToken(tokenWithExpiry(t, time.Now().Add(time.Hour))))
	assert.False(t, session.Expired())
}
