package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/user"
)

func newTestUser(role user.Role) *user.User {
	return &user.User{
		ID:    uuid.Must(uuid.NewV4()),
		Email: "token@example.com",
		Name:  "Token",
		Role:  role,
	}
}

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	u := newTestUser(user.RoleAdmin)

	raw, err := tm.Issue(u)
	require.NoError(t, err)

	p, err := tm.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.UserID)
	assert.Equal(t, u.Email, p.Email)
	assert.True(t, p.IsAdmin())
}

func TestTokenManager_Rejects(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	u := newTestUser(user.RoleCustomer)

	raw, err := tm.Issue(u)
	require.NoError(t, err)

	t.Run("wrong_secret", func(t *testing.T) {
		_, err := NewTokenManager("other", time.Hour).Parse(raw)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("tampered", func(t *testing.T) {
		_, err := tm.Parse(raw[:len(raw)-2] + "xx")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewTokenManager("secret", time.Hour)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.Parse(raw)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tm.Parse("not-a-jwt")
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	customer := newTestUser(user.RoleCustomer)
	admin := newTestUser(user.RoleAdmin)

	customerToken, err := tm.Issue(customer)
	require.NoError(t, err)
	adminToken, err := tm.Issue(admin)
	require.NoError(t, err)

	var (
		seen   Principal
		hasSet bool
	)
	record := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, hasSet = PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	protected := Middleware(tm)(record)
	adminOnly := Middleware(tm)(RequireAdmin(record))

	tests := []struct {
		name     string
		h        http.Handler
		header   string
		want     int
		wantUser uuid.UUID
		wantRole user.Role
	}{
		{name: "missing_header", h: protected, header: "", want: http.StatusUnauthorized},
		{name: "wrong_scheme", h: protected, header: "Basic abc", want: http.StatusUnauthorized},
		{name: "bad_token", h: protected, header: "Bearer abc", want: http.StatusUnauthorized},
		{name: "customer_ok", h: protected, header: "Bearer " + customerToken, want: http.StatusNoContent, wantUser: customer.ID, wantRole: user.RoleCustomer},
		{name: "customer_forbidden_admin", h: adminOnly, header: "Bearer " + customerToken, want: http.StatusForbidden},
		{name: "admin_ok", h: adminOnly, header: "Bearer " + adminToken, want: http.StatusNoContent, wantUser: admin.ID, wantRole: user.RoleAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen, hasSet = Principal{}, false

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			tt.h.ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Code)

			if tt.want != http.StatusNoContent {
				assert.False(t, hasSet, "rejected requests must not reach the handler")
				return
			}
			require.True(t, hasSet, "principal missing from request context")
			assert.Equal(t, tt.wantUser, seen.UserID)
			assert.Equal(t, tt.wantRole, seen.Role)
		})
	}
}
