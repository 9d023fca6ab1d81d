package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer([]byte("super-secret"), time.Hour)
	userID := uuid.New()

	tok, err := issuer.Issue(userID, RoleAdmin)
	require.NoError(t, err)

	p, err := issuer.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, userID, p.UserID)
	assert.Equal(t, RoleAdmin, p.Role)
	assert.True(t, p.IsAdmin())
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer([]byte("secret"), time.Hour)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, err := issuer.Issue(uuid.New(), RoleMember)
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := NewTokenIssuer([]byte("right"), time.Hour).Issue(uuid.New(), RoleMember)
	require.NoError(t, err)

	_, err = NewTokenIssuer([]byte("wrong"), time.Hour).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	_, err := NewTokenIssuer([]byte("k"), time.Hour).Verify("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.True(t, IsAuthError(err))
}

func TestVerify_RejectsUnknownRoleAndBadSubject(t *testing.T) {
	t.Parallel()

	secret := []byte("k")
	sign := func(c Claims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
		require.NoError(t, err)
		return s
	}
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))
	issuer := NewTokenIssuer(secret, time.Hour)

	_, err := issuer.Verify(sign(Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString(), ExpiresAt: exp}, Role: "root"}))
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Verify(sign(Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "42", ExpiresAt: exp}, Role: RoleMember}))
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Verify(sign(Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString()}, Role: RoleMember}))
	assert.ErrorIs(t, err, ErrInvalidToken, "tokens without exp are rejected")
}
