package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presensia/presensia-core/internal/apperr"
)

func newTestGateway(t *testing.T, opts ...Option) (*Gateway, *MemoryIdentity, *MemoryStore) {
	t.Helper()
	ids := NewMemoryIdentity()
	store := NewMemoryStore()
	return New(ids, store, opts...), ids, store
}

type recorder struct {
	mu     sync.Mutex
	events []*Identity
}

func (r *recorder) record(id *Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, id)
}

func (r *recorder) uids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		if e != nil {
			out[i] = e.UID
		}
	}
	return out
}

func TestGateway_AuthStateStream(t *testing.T) {
	ctx := context.Background()
	g, _, _ := newTestGateway(t)

	rec := &recorder{}
	unsubscribe := g.SubscribeAuthState(rec.record)
	require.Equal(t, []string{""}, rec.uids(), "current state delivered on subscribe")

	alice, err := g.SignUp(ctx, "alice@x.edu", "pw123456")
	require.NoError(t, err)
	assert.Equal(t, []string{"", alice.UID}, rec.uids())

	t.Run("same uid is not re-emitted", func(t *testing.T) {
		_, err := g.SignIn(ctx, "alice@x.edu", "pw123456")
		require.NoError(t, err)
		_, err = g.RestoreSession(ctx, alice.Token)
		require.NoError(t, err)
		assert.Len(t, rec.uids(), 2)
	})

	t.Run("sign out emits nil once", func(t *testing.T) {
		require.NoError(t, g.SignOut(ctx))
		require.NoError(t, g.SignOut(ctx))
		assert.Equal(t, []string{"", alice.UID, ""}, rec.uids())
		assert.Nil(t, g.CurrentIdentity())
	})

	t.Run("unsubscribed callbacks stop receiving", func(t *testing.T) {
		unsubscribe()
		unsubscribe()
		_, err := g.SignIn(ctx, "alice@x.edu", "pw123456")
		require.NoError(t, err)
		assert.Len(t, rec.uids(), 3)
	})
}

func TestGateway_SignInFailures(t *testing.T) {
	ctx := context.Background()
	g, _, _ := newTestGateway(t)
	_, err := g.CreateAccount(ctx, "bob@x.edu", "secret1")
	require.NoError(t, err)
	assert.Nil(t, g.CurrentIdentity(), "creating an account does not sign in")

	tests := []struct {
		name     string
		email    string
		password string
		want     apperr.Kind
	}{
		{"wrong password", "bob@x.edu", "nope", apperr.KindInvalidPassword},
		{"unknown email", "carol@x.edu", "secret1", apperr.KindUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.SignIn(ctx, tt.email, tt.password)
			require.Error(t, err)
			assert.Equal(t, tt.want, apperr.KindOf(err))
			assert.Nil(t, g.CurrentIdentity())
		})
	}
}

func TestGateway_CreateAccountFailures(t *testing.T) {
	ctx := context.Background()
	g, _, _ := newTestGateway(t)
	_, err := g.CreateAccount(ctx, "bob@x.edu", "secret1")
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
		want     apperr.Kind
	}{
		{"duplicate email", "BOB@x.edu", "secret1", apperr.KindEmailAlreadyExists},
		{"malformed email", "bob-at-x", "secret1", apperr.KindInvalidEmail},
		{"short password", "dan@x.edu", "123", apperr.KindWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.CreateAccount(ctx, tt.email, tt.password)
			assert.Equal(t, tt.want, apperr.KindOf(err))
		})
	}
}

func TestGateway_RestoreSessionInvalidToken(t *testing.T) {
	g, _, _ := newTestGateway(t)
	_, err := g.RestoreSession(context.Background(), "stale")
	assert.Equal(t, apperr.KindAuthFailed, apperr.KindOf(err))
	assert.Nil(t, g.CurrentIdentity())
}

func TestGateway_ChangePassword(t *testing.T) {
	ctx := context.Background()
	g, _, _ := newTestGateway(t)

	t.Run("requires a signed-in identity", func(t *testing.T) {
		err := g.ChangePassword(ctx, "a", "b")
		assert.Equal(t, apperr.KindAuthFailed, apperr.KindOf(err))
	})

	_, err := g.SignUp(ctx, "alice@x.edu", "pw123456")
	require.NoError(t, err)

	t.Run("wrong current password", func(t *testing.T) {
		err := g.ChangePassword(ctx, "wrong", "newpass1")
		assert.Equal(t, apperr.KindInvalidPassword, apperr.KindOf(err))
	})

	t.Run("weak new password", func(t *testing.T) {
		err := g.ChangePassword(ctx, "pw123456", "x")
		assert.Equal(t, apperr.KindWeakPassword, apperr.KindOf(err))
	})

	t.Run("success", func(t *testing.T) {
		require.NoError(t, g.ChangePassword(ctx, "pw123456", "newpass1"))
		_, err := g.SignIn(ctx, "alice@x.edu", "newpass1")
		assert.NoError(t, err)
		_, err = g.SignIn(ctx, "alice@x.edu", "pw123456")
		assert.Equal(t, apperr.KindInvalidPassword, apperr.KindOf(err))
	})
}

func TestGateway_Documents(t *testing.T) {
	ctx := context.Background()
	g, _, _ := newTestGateway(t)

	t.Run("missing document is not an error", func(t *testing.T) {
		_, found, err := g.GetDocument(ctx, "users", "nope")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("create is create-if-absent", func(t *testing.T) {
		require.NoError(t, g.CreateDocument(ctx, "courses", "CS101", map[string]any{"name": "Intro"}))
		err := g.CreateDocument(ctx, "courses", "CS101", map[string]any{"name": "Other"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAlreadyExists)
		assert.Equal(t, apperr.KindStore, apperr.KindOf(err))

		doc, found, err := g.GetDocument(ctx, "courses", "CS101")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "Intro", doc.Data["name"])
	})

	t.Run("merge set keeps other fields", func(t *testing.T) {
		require.NoError(t, g.SetDocument(ctx, "users", "u1", map[string]any{"name": "A", "role": "Student"}, false))
		require.NoError(t, g.SetDocument(ctx, "users", "u1", map[string]any{"name": "B"}, true))
		doc, _, err := g.GetDocument(ctx, "users", "u1")
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"name": "B", "role": "Student"}, doc.Data)

		require.NoError(t, g.SetDocument(ctx, "users", "u1", map[string]any{"name": "C"}, false))
		doc, _, err = g.GetDocument(ctx, "users", "u1")
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"name": "C"}, doc.Data)
	})

	t.Run("update of a missing document fails", func(t *testing.T) {
		err := g.UpdateDocument(ctx, "users", "ghost", map[string]any{"name": "x"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("add assigns ids and list keeps insertion order", func(t *testing.T) {
		first, err := g.AddDocument(ctx, "notes", map[string]any{"n": 1})
		require.NoError(t, err)
		second, err := g.AddDocument(ctx, "notes", map[string]any{"n": 2})
		require.NoError(t, err)
		assert.NotEqual(t, first, second)

		docs, err := g.ListCollection(ctx, "notes")
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, first, docs[0].ID)
		assert.Equal(t, second, docs[1].ID)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, g.DeleteDocument(ctx, "courses", "CS101"))
		_, found, err := g.GetDocument(ctx, "courses", "CS101")
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestGateway_QueryCollection(t *testing.T) {
	ctx := context.Background()
	g, _, _ := newTestGateway(t)
	for id, data := range map[string]map[string]any{
		"a": {"role": "Admin", "students": 62},
		"b": {"role": "Student", "students": 45.0},
		"c": {"role": "Student"},
	} {
		require.NoError(t, g.SetDocument(ctx, "people", id, data, false))
	}

	ids := func(docs []Document) []string {
		out := make([]string, 0, len(docs))
		for _, d := range docs {
			out = append(out, d.ID)
		}
		return out
	}

	tests := []struct {
		field string
		op    string
		value any
		want  []string
	}{
		{"role", OpEqual, "Student", []string{"b", "c"}},
		{"role", OpNotEqual, "Student", []string{"a"}},
		{"students", OpGreater, 50, []string{"a"}},
		{"students", OpLessEqual, 45, []string{"b"}},
		{"role", OpIn, []string{"Admin", "Faculty"}, []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.field+tt.op, func(t *testing.T) {
			docs, err := g.QueryCollection(ctx, "people", tt.field, tt.op, tt.value)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, ids(docs))
		})
	}

	t.Run("unsupported operator", func(t *testing.T) {
		_, err := g.QueryCollection(ctx, "people", "role", "array-contains", "x")
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})
}

// stallingStore never answers and ignores cancellation.
type stallingStore struct {
	*MemoryStore
	release chan struct{}
}

func (s *stallingStore) Get(ctx context.Context, collection, id string) (Document, error) {
	<-s.release
	return Document{}, errors.New("late")
}

func TestGateway_Timeout(t *testing.T) {
	store := &stallingStore{MemoryStore: NewMemoryStore(), release: make(chan struct{})}
	defer close(store.release)

	g := New(NewMemoryIdentity(), store, WithTimeout(50*time.Millisecond))

	start := time.Now()
	_, _, err := g.GetDocument(context.Background(), "users", "u1")
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))
	assert.ErrorIs(t, err, apperr.ErrNetwork)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestGateway_LocalizedErrors(t *testing.T) {
	g, _, _ := newTestGateway(t)
	g.SetLocale("id")

	_, err := g.SignIn(context.Background(), "nobody@x.edu", "secret1")
	assert.Equal(t, "Email ini belum terdaftar nih.", apperr.MessageOf(err))
}

func TestGateway_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	g, _, _ := newTestGateway(t, WithMetrics(m))
	ctx := context.Background()

	_, _, _ = g.GetDocument(ctx, "users", "u1")
	_ = g.UpdateDocument(ctx, "users", "u1", map[string]any{"x": 1})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.calls.WithLabelValues("get_document", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.calls.WithLabelValues("update_document", "store_error")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
}
