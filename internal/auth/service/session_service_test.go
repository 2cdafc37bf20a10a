package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presensia/presensia-core/internal/apperr"
	"github.com/presensia/presensia-core/internal/auth/domain"
	"github.com/presensia/presensia-core/internal/auth/repository"
	"github.com/presensia/presensia-core/internal/gateway"
	"github.com/presensia/presensia-core/internal/kvstore"
)

// flakyIdentity fails password checks while failing is set.
type flakyIdentity struct {
	gateway.IdentityProvider
	mu      sync.Mutex
	failing error
}

func (f *flakyIdentity) fail(err error) {
	f.mu.Lock()
	f.failing = err
	f.mu.Unlock()
}

func (f *flakyIdentity) VerifyPassword(ctx context.Context, email, password string) (gateway.Identity, error) {
	f.mu.Lock()
	err := f.failing
	f.mu.Unlock()
	if err != nil {
		return gateway.Identity{}, err
	}
	return f.IdentityProvider.VerifyPassword(ctx, email, password)
}

type harness struct {
	svc      *SessionService
	gw       *gateway.Gateway
	identity *flakyIdentity
	store    *gateway.MemoryStore
	plain    *kvstore.BadgerStore
	secure   *kvstore.SecureStore
	cache    *repository.ProfileCache
	tokens   *repository.TokenStore
	prefs    *repository.Preferences
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	plain, err := kvstore.OpenBadger(kvstore.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = plain.Close() })

	h := &harness{
		identity: &flakyIdentity{IdentityProvider: gateway.NewMemoryIdentity()},
		store:    gateway.NewMemoryStore(),
		plain:    plain,
	}
	h.reopen(t)
	return h
}

// reopen builds a fresh gateway, session and sealed token store over the
// same backends, as a restarted process would.
func (h *harness) reopen(t *testing.T) {
	t.Helper()
	secure, err := kvstore.NewSecureStore(context.Background(), h.plain)
	require.NoError(t, err)
	h.secure = secure
	h.cache = repository.NewProfileCache(h.plain)
	h.tokens = repository.NewTokenStore(h.secure)
	h.prefs = repository.NewPreferences(h.plain)

	h.gw = gateway.New(h.identity, h.store)
	h.svc = NewSessionService(h.gw, repository.NewProfileRepository(h.gw), h.cache, h.tokens,
		WithPreferences(h.prefs),
		WithClock(func() time.Time { return time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC) }))
	stop := h.svc.Start(context.Background())
	t.Cleanup(stop)
}

type transitions struct {
	mu  sync.Mutex
	log []string
}

func (tr *transitions) record(state State, p *domain.UserProfile) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	entry := state.String()
	if p != nil {
		entry += ":" + p.Email
	}
	tr.log = append(tr.log, entry)
}

func (tr *transitions) entries() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.log...)
}

func TestSessionService_StartsUnauthenticated(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, StateUnauthenticated, h.svc.State())
	assert.Nil(t, h.svc.Current())
	assert.Empty(t, h.svc.Token())
}

func TestSessionService_SignUpCanonicalizesRole(t *testing.T) {
	tests := []struct {
		role string
		want domain.Role
	}{
		{"Admin", domain.RoleAdmin},
		{"ADMIN", domain.RoleAdmin},
		{"admin", domain.RoleAdmin},
		{"faculty", domain.RoleFaculty},
		{"FaCuLtY", domain.RoleFaculty},
		{"Faculty", domain.RoleFaculty},
		{"", domain.RoleStudent},
		{"lecturer", domain.RoleStudent},
	}

	h := newHarness(t)
	ctx := context.Background()
	for i, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.role), func(t *testing.T) {
			email := fmt.Sprintf("user%d@x.edu", i)
			p, err := h.svc.SignUp(ctx, email, "pw123456", tt.role, map[string]any{"name": "U"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Role)

			doc, found, err := h.gw.GetDocument(ctx, repository.UsersCollection, p.ID)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, string(tt.want), doc.Data["role"])
		})
	}
}

func TestSessionService_SignUp(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tr := &transitions{}
	h.svc.OnChange(tr.record)

	p, err := h.svc.SignUp(ctx, "alice@x.edu", "pw123456", "ADMIN", map[string]any{
		"name": "Alice", "course": "CS101", "phone": "0812",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, p.Role)
	assert.Equal(t, "2025-03-01T08:00:00.000Z", p.CreatedAt)

	assert.Equal(t, StateAuthenticated, h.svc.State())
	assert.Equal(t, p.ID, h.svc.Current().ID)
	assert.Equal(t, []string{"authenticated:alice@x.edu"}, tr.entries())

	cached, ok, err := h.cache.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, p.ID, cached.ID)
	assert.Equal(t, "0812", cached.Extra["phone"])

	tok, ok, err := h.tokens.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, h.svc.Token(), tok)

	t.Run("duplicate email", func(t *testing.T) {
		_, err := h.svc.SignUp(ctx, "alice@x.edu", "pw123456", "admin", nil)
		assert.Equal(t, apperr.KindEmailAlreadyExists, apperr.KindOf(err))
		assert.Equal(t, err, h.svc.LastError())
		assert.Equal(t, StateAuthenticated, h.svc.State(), "failed sign-up leaves the session alone")
	})

	t.Run("weak password writes nothing", func(t *testing.T) {
		_, err := h.svc.SignUp(ctx, "weak@x.edu", "123", "admin", nil)
		assert.Equal(t, apperr.KindWeakPassword, apperr.KindOf(err))
		docs, err := h.gw.ListCollection(ctx, repository.UsersCollection)
		require.NoError(t, err)
		assert.Len(t, docs, 1)
	})
}

func TestSessionService_SignInAndOut(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	created, err := h.svc.SignUp(ctx, "alice@x.edu", "pw123456", "faculty", nil)
	require.NoError(t, err)
	require.NoError(t, h.svc.SignOut(ctx))
	assert.Equal(t, StateUnauthenticated, h.svc.State())

	t.Run("wrong password", func(t *testing.T) {
		_, err := h.svc.SignIn(ctx, "alice@x.edu", "nope")
		assert.Equal(t, apperr.KindInvalidPassword, apperr.KindOf(err))
		assert.Equal(t, StateUnauthenticated, h.svc.State())
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := h.svc.SignIn(ctx, "ghost@x.edu", "pw123456")
		assert.Equal(t, apperr.KindUserNotFound, apperr.KindOf(err))
	})

	p, err := h.svc.SignIn(ctx, "alice@x.edu", "pw123456")
	require.NoError(t, err)
	assert.Equal(t, created.ID, p.ID)
	assert.Equal(t, domain.RoleFaculty, p.Role)
	assert.True(t, h.svc.IsAuthenticated())
	assert.NoError(t, h.svc.LastError())
}

func TestSessionService_SignOutRetainsProfileCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p, err := h.svc.SignUp(ctx, "alice@x.edu", "pw123456", "admin", nil)
	require.NoError(t, err)
	_, ok, err := h.tokens.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, h.svc.SignOut(ctx))

	_, ok, err = h.tokens.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "token cleared")

	cached, ok, err := h.cache.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok, "profile cache kept")
	assert.Equal(t, p.ID, cached.ID)
	assert.Nil(t, h.svc.Current())
}

func TestSessionService_SignInFallsBackToCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p, err := h.svc.SignUp(ctx, "alice@x.edu", "pw123456", "admin", nil)
	require.NoError(t, err)

	h.identity.fail(gateway.ErrUnavailable)
	got, err := h.svc.SignIn(ctx, "alice@x.edu", "pw123456")
	require.NoError(t, err, "cached profile of the signed-in identity is returned")
	assert.Equal(t, p.ID, got.ID)
	assert.True(t, h.svc.IsAuthenticated())

	t.Run("cached result is reported as unverified", func(t *testing.T) {
		got, verified, err := h.svc.SignInVerified(ctx, "ALICE@x.edu", "pw123456")
		require.NoError(t, err)
		assert.False(t, verified)
		assert.Equal(t, p.ID, got.ID)
	})

	t.Run("another email gets the network error", func(t *testing.T) {
		_, err := h.svc.SignIn(ctx, "mallory@evil.io", "guess")
		assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))
		assert.Equal(t, p.ID, h.svc.Current().ID, "signed-in session untouched")
	})

	t.Run("no fallback without a matching identity", func(t *testing.T) {
		h.identity.fail(nil)
		require.NoError(t, h.svc.SignOut(ctx))
		h.identity.fail(gateway.ErrUnavailable)

		_, err := h.svc.SignIn(ctx, "alice@x.edu", "pw123456")
		assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))
		assert.False(t, h.svc.IsAuthenticated())
	})
}

func TestSessionService_BadCredentialsNeverUseCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	admin, err := h.svc.SignUp(ctx, "admin@x.edu", "pw123456", "admin", nil)
	require.NoError(t, err)
	adminToken := h.svc.Token()
	require.NotEmpty(t, adminToken)

	tests := []struct {
		name     string
		email    string
		password string
		kind     apperr.Kind
	}{
		{"wrong password for another account", "mallory@evil.io", "wrong-password", apperr.KindUserNotFound},
		{"wrong password for the signed-in account", "admin@x.edu", "wrong-password", apperr.KindInvalidPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, verified, err := h.svc.SignInVerified(ctx, tt.email, tt.password)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
			assert.Nil(t, got)
			assert.False(t, verified)
			assert.Equal(t, err, h.svc.LastError())
			assert.Equal(t, admin.ID, h.svc.Current().ID)
			assert.Equal(t, adminToken, h.svc.Token())
		})
	}
}

func TestSessionService_MissingProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.gw.CreateAccount(ctx, "orphan@x.edu", "pw123456")
	require.NoError(t, err)

	_, err = h.svc.SignIn(ctx, "orphan@x.edu", "pw123456")
	assert.Equal(t, apperr.KindUserNotFound, apperr.KindOf(err))
	assert.True(t, errors.Is(err, apperr.ErrUserNotFound))
	assert.Equal(t, StateUnauthenticated, h.svc.State())
}

func TestSessionService_RestoresSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p, err := h.svc.SignUp(ctx, "alice@x.edu", "pw123456", "admin", nil)
	require.NoError(t, err)

	h.reopen(t)
	assert.Equal(t, StateAuthenticated, h.svc.State())
	assert.Equal(t, p.ID, h.svc.Current().ID)

	t.Run("rejected token is cleared", func(t *testing.T) {
		require.NoError(t, h.tokens.Save(ctx, "bogus"))
		h.reopen(t)
		assert.Equal(t, StateUnauthenticated, h.svc.State())
		_, ok, err := h.tokens.Load(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestSessionService_UpdateProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.UpdateProfile(ctx, map[string]any{"name": "x"})
	assert.Equal(t, apperr.KindAuthFailed, apperr.KindOf(err))

	_, err = h.svc.SignUp(ctx, "alice@x.edu", "pw123456", "student", map[string]any{"name": "Alice", "course": "CS101"})
	require.NoError(t, err)

	p, err := h.svc.UpdateProfile(ctx, map[string]any{"name": "Alice B", "role": "admin", "plan": "premium"})
	require.NoError(t, err)
	assert.Equal(t, "Alice B", p.Name)
	assert.Equal(t, "CS101", p.Course, "merge keeps unspecified fields")
	assert.Equal(t, domain.RoleAdmin, p.Role)
	assert.Equal(t, "2025-03-01T08:00:00.000Z", p.UpdatedAt)
	assert.Equal(t, domain.PlanPremium, h.svc.CurrentPlan(ctx))

	cached, _, err := h.cache.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Alice B", cached.Name)
}

func TestSessionService_CurrentPlan(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	assert.Equal(t, domain.PlanFree, h.svc.CurrentPlan(ctx))

	_, err := h.svc.SignUp(ctx, "alice@x.edu", "pw123456", "admin", map[string]any{"plan": "basic"})
	require.NoError(t, err)
	assert.Equal(t, domain.PlanBasic, h.svc.CurrentPlan(ctx))

	require.NoError(t, h.svc.SignOut(ctx))
	assert.Equal(t, domain.PlanBasic, h.svc.CurrentPlan(ctx), "falls back to the cached profile")
}

func TestSessionService_ChangePassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	assert.Equal(t, apperr.KindAuthFailed, apperr.KindOf(h.svc.ChangePassword(ctx, "a", "b")))

	_, err := h.svc.SignUp(ctx, "alice@x.edu", "pw123456", "admin", nil)
	require.NoError(t, err)

	err = h.svc.ChangePassword(ctx, "wrong", "newpass99")
	assert.Equal(t, apperr.KindInvalidPassword, apperr.KindOf(err))

	require.NoError(t, h.svc.ChangePassword(ctx, "pw123456", "newpass99"))
	tok, _, err := h.tokens.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, h.svc.Token(), tok)

	require.NoError(t, h.svc.SignOut(ctx))
	_, err = h.svc.SignIn(ctx, "alice@x.edu", "newpass99")
	assert.NoError(t, err)
}

func TestSessionService_Transitions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tr := &transitions{}
	remove := h.svc.OnChange(tr.record)

	_, err := h.svc.SignUp(ctx, "alice@x.edu", "pw123456", "admin", nil)
	require.NoError(t, err)
	_, err = h.svc.UpdateProfile(ctx, map[string]any{"name": "A"})
	require.NoError(t, err)
	require.NoError(t, h.svc.SignOut(ctx))
	_, err = h.svc.SignIn(ctx, "alice@x.edu", "pw123456")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"authenticated:alice@x.edu",
		"unauthenticated",
		"authenticated:alice@x.edu",
	}, tr.entries(), "profile edits of the same account are not transitions")

	remove()
	require.NoError(t, h.svc.SignOut(ctx))
	assert.Len(t, tr.entries(), 3)
}

func TestSessionService_Language(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.svc.SetLanguage(ctx, "indonesian"))
	lang, ok, err := h.prefs.Language(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, apperr.LocaleIndonesian, lang)

	h.reopen(t)
	_, err = h.svc.SignIn(ctx, "ghost@x.edu", "pw123456")
	require.Error(t, err)
	assert.Equal(t, apperr.MustCatalog().Message(apperr.KindUserNotFound, apperr.LocaleIndonesian),
		apperr.MessageOf(err))
}
