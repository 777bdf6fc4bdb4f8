package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func TestAdminJWT_RoundTrip(t *testing.T) {
	token, exp, err := GenerateAdminJWT("ops", []Role{RoleViewer}, AuthTypeService, testSecret, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := ValidateAdminJWT(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.AdminID)
	assert.Equal(t, []string{"viewer"}, claims.Roles)
	assert.Equal(t, AuthTypeService, claims.AuthType)
}

func TestAdminJWT_Rejects(t *testing.T) {
	valid, _, err := GenerateAdminJWT("ops", []Role{RoleAdmin}, AuthTypeService, testSecret, time.Hour)
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := ValidateAdminJWT(valid, []byte("other"))
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		expired, _, err := GenerateAdminJWT("ops", []Role{RoleAdmin}, AuthTypeService, testSecret, -time.Minute)
		require.NoError(t, err)
		_, err = ValidateAdminJWT(expired, testSecret)
		assert.Error(t, err)
	})

	t.Run("none algorithm", func(t *testing.T) {
		claims := AdminClaims{AdminID: "x", Roles: []string{"admin"}}
		claims.Issuer = adminIssuer
		tok := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
		s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = ValidateAdminJWT(s, testSecret)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ValidateAdminJWT("abc.def.ghi", testSecret)
		assert.Error(t, err)
	})

	t.Run("missing secret", func(t *testing.T) {
		_, _, err := GenerateAdminJWT("ops", nil, AuthTypeService, nil, time.Hour)
		assert.Error(t, err)
	})
}

func TestLogin(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	token, _, err := Login("correct horse", hash, testSecret)
	require.NoError(t, err)

	claims, err := ValidateAdminJWT(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin"}, claims.Roles)
	assert.Equal(t, AuthTypePassword, claims.AuthType)

	_, _, err = Login("wrong", hash, testSecret)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = Login("anything", "", testSecret)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRoles(t *testing.T) {
	assert.True(t, RoleAdmin.HasPermission(RoleViewer))
	assert.False(t, RoleViewer.HasPermission(RoleAdmin))

	assert.True(t, Allowed([]string{"viewer"}))
	assert.True(t, Allowed([]string{"viewer"}, RoleViewer))
	assert.False(t, Allowed([]string{"viewer"}, RoleAdmin))
	assert.True(t, Allowed([]string{"admin"}, RoleViewer, RoleAdmin))
	assert.False(t, Allowed(nil, RoleViewer))

	_, err := ParseRole("root")
	assert.Error(t, err)
	r, err := ParseRole("viewer")
	require.NoError(t, err)
	assert.Equal(t, RoleViewer, r)
}
