package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presensia/presensia-core/config"
	"github.com/presensia/presensia-core/internal/apperr"
	authdomain "github.com/presensia/presensia-core/internal/auth/domain"
	authservice "github.com/presensia/presensia-core/internal/auth/service"
	coursesdomain "github.com/presensia/presensia-core/internal/courses/domain"
	"github.com/presensia/presensia-core/internal/gateway"
	"github.com/presensia/presensia-core/internal/kvstore"
	usersservice "github.com/presensia/presensia-core/internal/users/service"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Port: "0"},
		Cache:   config.CacheConfig{Driver: config.CacheBadger},
		Gateway: config.GatewayConfig{Backend: config.BackendMemory, Timeout: 5 * time.Second},
		App:     config.AppConfig{Locale: "en"},
	}
}

func newTestApp(t *testing.T, store gateway.DocumentStore) *App {
	t.Helper()
	plain, err := kvstore.OpenBadger(kvstore.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = plain.Close() })

	secure, err := kvstore.NewSecureStore(context.Background(), plain)
	require.NoError(t, err)

	a, err := Assemble(testConfig(), nil, Backends{
		Identity: gateway.NewMemoryIdentity(),
		Store:    store,
		Plain:    plain,
		Secure:   secure,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func TestAdminFlow(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, gateway.NewMemoryStore())
	a.Start(ctx)
	assert.Equal(t, authservice.StateUnauthenticated, a.Session.State())

	profile, err := a.Session.SignUp(ctx, "alice@x.edu", "pw123456", "ADMIN", map[string]any{"name": "Alice"})
	require.NoError(t, err)
	assert.Equal(t, authdomain.RoleAdmin, profile.Role)
	assert.True(t, a.Session.IsAuthenticated())
	assert.Equal(t, 1, a.Users.Len(), "signing in hydrates the users mirror")

	course := coursesdomain.Course{Code: "CS101", Name: "Introduction to Data Science", Latitude: 40.7128, Longitude: -74.006}
	_, err = a.Courses.Create(ctx, course)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Courses.Len())

	_, err = a.Courses.Create(ctx, course)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, 1, a.Courses.Len())

	t.Run("free plan caps managed users", func(t *testing.T) {
		for i := 0; i < authdomain.FreeUserLimit-1; i++ {
			_, err := a.Users.Create(ctx, usersservice.NewUser{
				Email: fmt.Sprintf("student%d@x.edu", i), Role: "student", Course: "CS101",
			})
			require.NoError(t, err)
		}
		assert.Equal(t, authdomain.FreeUserLimit, a.Users.Len())

		_, err := a.Users.Create(ctx, usersservice.NewUser{Email: "late@x.edu"})
		assert.ErrorIs(t, err, apperr.ErrPlanLimitReached)
		assert.Equal(t, authdomain.FreeUserLimit, a.Users.Len())
	})

	t.Run("enrolled users follow courses", func(t *testing.T) {
		assert.Len(t, a.Users.InCourse("CS101", a.Courses), authdomain.FreeUserLimit-1)
		require.NoError(t, a.Courses.Delete(ctx, "CS101"))
		assert.Empty(t, a.Users.Enrolled(a.Courses))
	})

	require.NoError(t, a.Session.SignOut(ctx))
	assert.False(t, a.Session.IsAuthenticated())
}

func TestHydrateOnRestart(t *testing.T) {
	ctx := context.Background()
	store := gateway.NewMemoryStore()
	require.NoError(t, store.Create(ctx, "courses", "CS201", map[string]any{"code": "CS201", "name": "Algorithms"}))

	a := newTestApp(t, store)
	a.Start(ctx)
	assert.Zero(t, a.Courses.Len(), "no hydration without a session")

	_, err := a.Session.SignUp(ctx, "bob@x.edu", "pw123456", "faculty", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Courses.Len())

	require.NoError(t, a.Refresh.RunOnce(ctx))
	assert.Equal(t, 1, a.Courses.Len())
}
