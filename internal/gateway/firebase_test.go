package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presensia/presensia-core/internal/apperr"
)

func signInServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var req signInRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.ReturnSecureToken)

		w.Header().Set("Content-Type", "application/json")
		switch {
		case req.Email == "alice@x.edu" && req.Password == "pw123456":
			_ = json.NewEncoder(w).Encode(signInResponse{LocalID: "uid-alice", Email: req.Email, IDToken: "id-token"})
		case req.Email == "alice@x.edu":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"INVALID_PASSWORD"}}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"EMAIL_NOT_FOUND"}}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFirebaseIdentity_VerifyPassword(t *testing.T) {
	srv := signInServer(t)
	f := NewFirebaseIdentity(nil, "test-key", WithSignInEndpoint(srv.URL), WithHTTPClient(srv.Client()))
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		id, err := f.VerifyPassword(ctx, " alice@x.edu ", "pw123456")
		require.NoError(t, err)
		assert.Equal(t, Identity{UID: "uid-alice", Email: "alice@x.edu", Token: "id-token"}, id)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := f.VerifyPassword(ctx, "alice@x.edu", "nope")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("through the gateway", func(t *testing.T) {
		g := New(f, NewMemoryStore())
		_, err := g.SignIn(ctx, "bob@x.edu", "whatever")
		assert.Equal(t, apperr.KindUserNotFound, apperr.KindOf(err))

		id, err := g.SignIn(ctx, "alice@x.edu", "pw123456")
		require.NoError(t, err)
		assert.Equal(t, "uid-alice", g.CurrentIdentity().UID)
		assert.Equal(t, "id-token", id.Token)
	})
}

func TestFirebaseIdentity_LocalChecks(t *testing.T) {
	f := NewFirebaseIdentity(nil, "k")
	ctx := context.Background()

	_, err := f.CreateAccount(ctx, "alice@x.edu", "123")
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, err = f.VerifyToken(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidToken)

	assert.ErrorIs(t, f.UpdatePassword(ctx, "uid", "1"), ErrWeakPassword)
}
