package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubVerifier accepts "good-<uid>" tokens and rejects everything else
type stubVerifier struct {
	claims map[string]interface{}
}

func (v *stubVerifier) VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error) {
	uid, ok := strings.CutPrefix(idToken, "good-")
	if !ok {
		return nil, errors.New("invalid token signature")
	}
	return &auth.Token{UID: uid, Claims: v.claims}, nil
}

func serve(t *testing.T, verifier TokenVerifier, header string) (*httptest.ResponseRecorder, *AuthInfo) {
	t.Helper()
	var captured *AuthInfo
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, ok := GetAuth(r)
		require.True(t, ok)
		userID, ok := GetUserID(r.Context())
		require.True(t, ok)
		require.Equal(t, info.UserID, userID)
		captured = &info
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/cards/card-1/statements", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	NewAuthMiddleware(verifier, zerolog.Nop()).RequireAuth(next).ServeHTTP(w, req)
	return w, captured
}

func TestRequireAuth_ValidToken(t *testing.T) {
	verifier := &stubVerifier{claims: map[string]interface{}{"email": "ana@example.com"}}

	w, info := serve(t, verifier, "Bearer good-user-123")

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, info)
	assert.Equal(t, "user-123", info.UserID)
	assert.Equal(t, "ana@example.com", info.Email)
}

func TestRequireAuth_Rejections(t *testing.T) {
	tests := []struct {
		name          string
		header        string
		expectedError string
	}{
		{"missing header", "", "Missing authorization header"},
		{"basic scheme", "Basic dXNlcjpwYXNz", "Invalid authorization header format"},
		{"lowercase bearer", "bearer good-user", "Invalid authorization header format"},
		{"no token", "Bearer", "Invalid authorization header format"},
		{"empty token", "Bearer ", "Invalid authorization header format"},
		{"extra parts", "Bearer good-user extra", "Invalid authorization header format"},
		{"bad signature", "Bearer forged-user", "Invalid token"},
		{"injection attempt", "Bearer '; DROP TABLE users; --", "Invalid authorization header format"},
		{"oversized token", "Bearer " + strings.Repeat("a", 10000), "Invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, info := serve(t, &stubVerifier{}, tt.header)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedError)
			assert.Nil(t, info, "handler must not run")
		})
	}
}

func TestRequireAuth_EmailClaimTypes(t *testing.T) {
	tests := []struct {
		name          string
		emailClaim    interface{}
		expectedEmail string
	}{
		{"string", "user@example.com", "user@example.com"},
		{"int", 12345, ""},
		{"bool", true, ""},
		{"absent", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := map[string]interface{}{}
			if tt.emailClaim != nil {
				claims["email"] = tt.emailClaim
			}

			w, info := serve(t, &stubVerifier{claims: claims}, "Bearer good-u1")

			assert.Equal(t, http.StatusOK, w.Code)
			require.NotNil(t, info)
			assert.Equal(t, tt.expectedEmail, info.Email)
		})
	}
}

func TestContextHelpers(t *testing.T) {
	_, ok := GetUserID(context.Background())
	assert.False(t, ok)

	_, ok = GetUserID(context.WithValue(context.Background(), UserIDKey, ""))
	assert.False(t, ok, "empty user ID is not authenticated")

	ctx := WithAuth(context.Background(), AuthInfo{UserID: "user-9", Email: "x@y.z"})
	userID, ok := GetUserID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "user-9", userID)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), AuthKey, "not-an-authinfo"))
	_, ok = GetAuth(req)
	assert.False(t, ok)
}

func TestCORS(t *testing.T) {
	called := false
	handler := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	preflight := httptest.NewRequest(http.MethodOptions, "/api/transactions/txn-1", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, preflight)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, called)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
