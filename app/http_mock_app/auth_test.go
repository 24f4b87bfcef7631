package http_mock_app

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestJWTOwnerResolver(t *testing.T) {
	resolver := NewJWTOwnerResolver(testSecret)
	valid := jwt.RegisteredClaims{Subject: "alice", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}

	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{name: "valid token", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), valid), expected: "alice"},
		{name: "lower case scheme", header: "bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), valid), expected: "alice"},
		{name: "missing header"},
		{name: "not bearer", header: "Basic YWxpY2U6cHc="},
		{name: "empty token", header: "Bearer  "},
		{name: "wrong secret", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"), valid)},
		{name: "wrong algorithm", header: "Bearer " + signToken(t, jwt.SigningMethodHS512, []byte(testSecret), valid)},
		{name: "unsigned token", header: "Bearer " + signToken(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid)},
		{
			name:   "expired token",
			header: "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{Subject: "alice", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))}),
		},
		{name: "missing subject", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			owner, err := resolver.ResolveOwner(r)
			if tt.expected == "" {
				assert.True(t, errors.Is(err, ErrUnauthorized), "expected ErrUnauthorized, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, owner)
		})
	}
}

func TestRequireOwner(t *testing.T) {
	var seen string
	h := RequireOwner(NewHeaderOwnerResolver("X-User-Id"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = OwnerFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, seen)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-User-Id", "bob")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bob", seen)
}
