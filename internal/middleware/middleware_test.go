package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/GiorgiUbiria/investment_wallet/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func protected(iss *auth.Issuer, h http.Handler) http.Handler {
	return Authenticated(iss)(h)
}

func TestAuthenticated(t *testing.T) {
	iss := auth.NewIssuer("secret", time.Hour, nil)
	var gotID uint64
	h := protected(iss, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = UserIDFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{"Missing", "", http.StatusUnauthorized},
		{"WrongScheme", "Basic abc", http.StatusUnauthorized},
		{"BadToken", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			assert.Equal(t, tc.code, rr.Code)
			assert.Contains(t, rr.Body.String(), `"error"`)
		})
	}

	t.Run("Valid", func(t *testing.T) {
		tok, err := iss.Issue(7, auth.RoleUser)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "bearer "+tok)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, uint64(7), gotID)
	})
}

func TestAdminOnly(t *testing.T) {
	iss := auth.NewIssuer("secret", time.Hour, nil)
	h := protected(iss, AdminOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	for role, code := range map[auth.Role]int{auth.RoleUser: http.StatusForbidden, auth.RoleAdmin: http.StatusOK} {
		tok, err := iss.Issue(0, role)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, code, rr.Code, role)
	}
}

func TestRequestLoggerPassesThrough(t *testing.T) {
	h := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Equal(t, "short and stout", rr.Body.String())
}
