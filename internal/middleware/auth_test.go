package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/internal/authz"
	"taskboard/pkg/config"
	"taskboard/pkg/jwtutil"
)

func newJWT() *jwtutil.JWTUtil {
	return jwtutil.New(&config.JWTConfig{SigningKey: "middleware-test-key", ExpirationHours: 1})
}

func runAuth(t *testing.T, jwt *jwtutil.JWTUtil, authHeader string) (*httptest.ResponseRecorder, authz.Identity, bool) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen authz.Identity
	var called bool
	next := func(c echo.Context) error {
		seen, called = IdentityFrom(c)
		return c.NoContent(http.StatusOK)
	}

	err := Auth(jwt)(next)(c)
	require.NoError(t, err)
	return rec, seen, called
}

func TestAuthMissingHeader(t *testing.T) {
	rec, _, called := runAuth(t, newJWT(), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestAuthMalformedHeader(t *testing.T) {
	rec, _, called := runAuth(t, newJWT(), "Token abc123")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestAuthInvalidToken(t *testing.T) {
	rec, _, called := runAuth(t, newJWT(), "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestAuthValidToken(t *testing.T) {
	jwt := newJWT()
	userID := uuid.New()
	tenantID := uuid.New()

	token, err := jwt.GenerateToken(userID, &tenantID, "member@acme.test", "member")
	require.NoError(t, err)

	rec, identity, called := runAuth(t, jwt, "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.True(t, called)
	assert.Equal(t, userID, identity.UserID)
	require.NotNil(t, identity.TenantID)
	assert.Equal(t, tenantID, *identity.TenantID)
	assert.Equal(t, authz.RoleMember, identity.Role)
}

func TestAuthUnknownRoleRejected(t *testing.T) {
	jwt := newJWT()

	token, err := jwt.GenerateToken(uuid.New(), nil, "odd@acme.test", "owner")
	require.NoError(t, err)

	rec, _, called := runAuth(t, jwt, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestAuthWrongKeyRejected(t *testing.T) {
	other := jwtutil.New(&config.JWTConfig{SigningKey: "another-key", ExpirationHours: 1})
	token, err := other.GenerateToken(uuid.New(), nil, "x@acme.test", "member")
	require.NoError(t, err)

	rec, _, called := runAuth(t, newJWT(), "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}
