package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/presensia/presensia-core/internal/apperr"
	"github.com/presensia/presensia-core/internal/logging"
)

// DefaultTimeout bounds every outbound call.
const DefaultTimeout = 30 * time.Second

// Gateway composes an IdentityProvider and a DocumentStore, tracks the
// current identity and publishes identity changes to subscribers.
type Gateway struct {
	identity IdentityProvider
	store    DocumentStore
	log      logging.Sink
	metrics  *Metrics
	timeout  time.Duration

	locMu sync.RWMutex
	loc   *apperr.Localizer

	mu      sync.Mutex
	current *Identity
	subs    map[int]func(*Identity)
	nextSub int

	// serializes deliveries so subscribers observe changes in order
	emitMu sync.Mutex
}

// Option configures a Gateway.
type Option func(*Gateway)

func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func WithLogger(l logging.Sink) Option {
	return func(g *Gateway) { g.log = l }
}

func WithMetrics(m *Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

func WithLocalizer(l *apperr.Localizer) Option {
	return func(g *Gateway) { g.loc = l }
}

func New(identity IdentityProvider, store DocumentStore, opts ...Option) *Gateway {
	g := &Gateway{
		identity: identity,
		store:    store,
		log:      logging.Nop(),
		timeout:  DefaultTimeout,
		subs:     make(map[int]func(*Identity)),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.loc == nil {
		g.loc = apperr.NewLocalizer(apperr.MustCatalog(), apperr.DefaultLocale)
	}
	return g
}

// SetLocale switches the language of subsequently mapped errors.
func (g *Gateway) SetLocale(locale string) {
	g.locMu.Lock()
	g.loc = g.loc.WithLocale(locale)
	g.locMu.Unlock()
}

// Localizer returns the localizer currently used for mapped errors.
func (g *Gateway) Localizer() *apperr.Localizer {
	g.locMu.RLock()
	defer g.locMu.RUnlock()
	return g.loc
}

// call runs fn under the per-call deadline. fn runs on its own goroutine so
// a backend that ignores ctx cannot hold the caller past the deadline; its
// late result is discarded.
func (g *Gateway) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- fn(cctx) }()

	var err error
	select {
	case err = <-done:
	case <-cctx.Done():
		err = cctx.Err()
	}
	if err != nil && errors.Is(cctx.Err(), context.DeadlineExceeded) {
		err = context.DeadlineExceeded
	}

	mapped := MapError(g.Localizer(), err)
	g.metrics.observe(op, time.Since(start), mapped)
	if mapped != nil {
		g.log.Warn(logging.TagGateway, "call failed", "op", op,
			"kind", apperr.KindOf(mapped), logging.Err(err))
	}
	return mapped
}

// --- auth ---

// SignUp creates an account and signs it in.
func (g *Gateway) SignUp(ctx context.Context, email, password string) (Identity, error) {
	if _, err := g.CreateAccount(ctx, email, password); err != nil {
		return Identity{}, err
	}
	return g.SignIn(ctx, email, password)
}

// CreateAccount creates an account without touching the current identity.
func (g *Gateway) CreateAccount(ctx context.Context, email, password string) (Identity, error) {
	var id Identity
	err := g.call(ctx, "create_account", func(ctx context.Context) error {
		var err error
		id, err = g.identity.CreateAccount(ctx, email, password)
		return err
	})
	if err != nil {
		return Identity{}, err
	}
	return id, nil
}

// SignIn verifies credentials and makes the result the current identity.
func (g *Gateway) SignIn(ctx context.Context, email, password string) (Identity, error) {
	var id Identity
	err := g.call(ctx, "sign_in", func(ctx context.Context) error {
		var err error
		id, err = g.identity.VerifyPassword(ctx, email, password)
		return err
	})
	if err != nil {
		return Identity{}, err
	}
	g.setCurrent(&id)
	return id, nil
}

// SignOut drops the current identity. Provider sessions are token based, so
// there is no remote call.
func (g *Gateway) SignOut(ctx context.Context) error {
	g.setCurrent(nil)
	return nil
}

// RestoreSession verifies a previously issued token and makes its owner the
// current identity.
func (g *Gateway) RestoreSession(ctx context.Context, token string) (Identity, error) {
	var id Identity
	err := g.call(ctx, "restore_session", func(ctx context.Context) error {
		var err error
		id, err = g.identity.VerifyToken(ctx, token)
		return err
	})
	if err != nil {
		return Identity{}, err
	}
	id.Token = token
	g.setCurrent(&id)
	return id, nil
}

// VerifyToken checks a token without changing the current identity.
func (g *Gateway) VerifyToken(ctx context.Context, token string) (Identity, error) {
	var id Identity
	err := g.call(ctx, "verify_token", func(ctx context.Context) error {
		var err error
		id, err = g.identity.VerifyToken(ctx, token)
		return err
	})
	if err != nil {
		return Identity{}, err
	}
	return id, nil
}

// CurrentIdentity returns a copy of the signed-in identity, or nil.
func (g *Gateway) CurrentIdentity() *Identity {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == nil {
		return nil
	}
	id := *g.current
	return &id
}

// ChangePassword re-authenticates the current identity with current and then
// sets next.
func (g *Gateway) ChangePassword(ctx context.Context, current, next string) error {
	id := g.CurrentIdentity()
	if id == nil {
		return MapError(g.Localizer(), ErrNotSignedIn)
	}

	var reauth Identity
	err := g.call(ctx, "reauthenticate", func(ctx context.Context) error {
		var err error
		reauth, err = g.identity.VerifyPassword(ctx, id.Email, current)
		return err
	})
	if err != nil {
		return err
	}

	err = g.call(ctx, "change_password", func(ctx context.Context) error {
		if err := checkPassword(next); err != nil {
			return err
		}
		return g.identity.UpdatePassword(ctx, reauth.UID, next)
	})
	if err != nil {
		return err
	}
	g.setCurrent(&reauth)
	return nil
}

// SubscribeAuthState registers fn for identity changes. fn is called at once
// with the current identity (nil when signed out), then once per change of
// signed-in UID. Token refreshes for the same UID are not delivered. fn must
// not call auth operations of this Gateway synchronously.
func (g *Gateway) SubscribeAuthState(fn func(*Identity)) (unsubscribe func()) {
	g.emitMu.Lock()
	g.mu.Lock()
	key := g.nextSub
	g.nextSub++
	g.subs[key] = fn
	var cur *Identity
	if g.current != nil {
		c := *g.current
		cur = &c
	}
	g.mu.Unlock()
	fn(cur)
	g.emitMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.subs, key)
			g.mu.Unlock()
		})
	}
}

func (g *Gateway) setCurrent(next *Identity) {
	g.emitMu.Lock()
	defer g.emitMu.Unlock()

	g.mu.Lock()
	prevUID := ""
	if g.current != nil {
		prevUID = g.current.UID
	}
	nextUID := ""
	if next != nil {
		n := *next
		g.current = &n
		nextUID = n.UID
	} else {
		g.current = nil
	}
	subs := make([]func(*Identity), 0, len(g.subs))
	for _, fn := range g.subs {
		subs = append(subs, fn)
	}
	g.mu.Unlock()

	if prevUID == nextUID {
		return
	}
	g.log.Debug(logging.TagGateway, "auth state changed", "uid", nextUID)
	for _, fn := range subs {
		var arg *Identity
		if next != nil {
			n := *next
			arg = &n
		}
		fn(arg)
	}
}

// --- documents ---

// GetDocument returns found=false, without error, for a missing document.
func (g *Gateway) GetDocument(ctx context.Context, collection, id string) (Document, bool, error) {
	var doc Document
	missing := false
	err := g.call(ctx, "get_document", func(ctx context.Context) error {
		var err error
		doc, err = g.store.Get(ctx, collection, id)
		if errors.Is(err, ErrNotFound) {
			missing = true
			return nil
		}
		return err
	})
	if err != nil {
		return Document{}, false, err
	}
	if missing {
		return Document{}, false, nil
	}
	return doc, true, nil
}

func (g *Gateway) SetDocument(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	return g.call(ctx, "set_document", func(ctx context.Context) error {
		return g.store.Set(ctx, collection, id, data, merge)
	})
}

// CreateDocument fails with an error matching ErrAlreadyExists when id is taken.
func (g *Gateway) CreateDocument(ctx context.Context, collection, id string, data map[string]any) error {
	return g.call(ctx, "create_document", func(ctx context.Context) error {
		return g.store.Create(ctx, collection, id, data)
	})
}

func (g *Gateway) AddDocument(ctx context.Context, collection string, data map[string]any) (string, error) {
	var id string
	err := g.call(ctx, "add_document", func(ctx context.Context) error {
		var err error
		id, err = g.store.Add(ctx, collection, data)
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (g *Gateway) UpdateDocument(ctx context.Context, collection, id string, patch map[string]any) error {
	return g.call(ctx, "update_document", func(ctx context.Context) error {
		return g.store.Update(ctx, collection, id, patch)
	})
}

func (g *Gateway) DeleteDocument(ctx context.Context, collection, id string) error {
	return g.call(ctx, "delete_document", func(ctx context.Context) error {
		return g.store.Delete(ctx, collection, id)
	})
}

func (g *Gateway) QueryCollection(ctx context.Context, collection, field, op string, value any) ([]Document, error) {
	var docs []Document
	err := g.call(ctx, "query_collection", func(ctx context.Context) error {
		if err := checkOperator(op); err != nil {
			return err
		}
		var err error
		docs, err = g.store.Query(ctx, collection, field, op, value)
		return err
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (g *Gateway) ListCollection(ctx context.Context, collection string) ([]Document, error) {
	var docs []Document
	err := g.call(ctx, "list_collection", func(ctx context.Context) error {
		var err error
		docs, err = g.store.List(ctx, collection)
		return err
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}
