package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/presensia/presensia-core/internal/apperr"
	"github.com/presensia/presensia-core/internal/auth/domain"
	"github.com/presensia/presensia-core/internal/auth/repository"
	"github.com/presensia/presensia-core/internal/gateway"
	"github.com/presensia/presensia-core/internal/logging"
)

// State is the session state machine position.
type State int

const (
	StateInitializing State = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "initializing"
	}
}

// Listener observes session transitions. profile is nil unless state is
// StateAuthenticated.
type Listener func(state State, profile *domain.UserProfile)

// SessionService owns the current user. Its state follows the gateway's
// auth-state stream; the profile cache is only a fallback copy.
type SessionService struct {
	gw       *gateway.Gateway
	profiles *repository.ProfileRepository
	cache    *repository.ProfileCache
	tokens   *repository.TokenStore
	prefs    *repository.Preferences
	log      logging.Sink
	now      func() time.Time

	mu      sync.RWMutex
	state   State
	profile *domain.UserProfile
	lastErr error

	lmu       sync.Mutex
	listeners map[int]Listener
	nextL     int
}

type Option func(*SessionService)

func WithLogger(l logging.Sink) Option {
	return func(s *SessionService) { s.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *SessionService) { s.now = now }
}

// WithPreferences enables the persisted language preference.
func WithPreferences(p *repository.Preferences) Option {
	return func(s *SessionService) { s.prefs = p }
}

func NewSessionService(
	gw *gateway.Gateway,
	profiles *repository.ProfileRepository,
	cache *repository.ProfileCache,
	tokens *repository.TokenStore,
	opts ...Option,
) *SessionService {
	s := &SessionService{
		gw:        gw,
		profiles:  profiles,
		cache:     cache,
		tokens:    tokens,
		log:       logging.Nop(),
		now:       time.Now,
		state:     StateInitializing,
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start restores a persisted session token, applies the saved language and
// subscribes to the auth-state stream. ctx is used for the profile loads the
// stream triggers, so it must outlive the subscription. The returned func
// unsubscribes.
func (s *SessionService) Start(ctx context.Context) (stop func()) {
	s.applyLanguage(ctx)

	token, ok, err := s.tokens.Load(ctx)
	switch {
	case err != nil:
		s.log.Warn(logging.TagSession, "failed to read session token", logging.Err(err))
	case ok:
		if _, err := s.gw.RestoreSession(ctx, token); err != nil {
			s.log.Warn(logging.TagSession, "stored session token rejected", logging.Err(err))
			s.clearToken(ctx)
		}
	}

	return s.gw.SubscribeAuthState(func(id *gateway.Identity) {
		s.handleAuthState(ctx, id)
	})
}

func (s *SessionService) handleAuthState(ctx context.Context, id *gateway.Identity) {
	if id == nil {
		s.log.Debug(logging.TagSession, "signed out")
		s.clearToken(ctx)
		s.transition(StateUnauthenticated, nil)
		return
	}

	s.log.Debug(logging.TagSession, "signed in, loading profile", "uid", id.UID)
	profile, found, err := s.profiles.Get(ctx, id.UID)
	switch {
	case err != nil:
		s.setLastErr(err)
		if cached := s.cachedFor(ctx, id.UID); cached != nil {
			s.log.Warn(logging.TagSession, "profile fetch failed, using cached profile",
				"uid", id.UID, logging.Err(err))
			s.transition(StateAuthenticated, cached)
			return
		}
		s.log.Error(logging.TagSession, "profile fetch failed", "uid", id.UID, logging.Err(err))
		s.transition(StateUnauthenticated, nil)
	case !found:
		s.log.Error(logging.TagSession, "account has no profile document", "uid", id.UID)
		s.transition(StateUnauthenticated, nil)
	default:
		s.establish(ctx, profile, id.Token)
	}
}

// SignIn authenticates and loads the profile. When the backend is unreachable
// and the same email is still signed in, the cached profile is returned
// instead of the error.
func (s *SessionService) SignIn(ctx context.Context, email, password string) (*domain.UserProfile, error) {
	profile, _, err := s.SignInVerified(ctx, email, password)
	return profile, err
}

// SignInVerified is SignIn that also reports whether the credentials were
// checked by the backend. It is false when the cached profile was used.
func (s *SessionService) SignInVerified(ctx context.Context, email, password string) (*domain.UserProfile, bool, error) {
	s.log.Info(logging.TagSession, "signing in", "email", email)
	s.ClearError()

	id, err := s.gw.SignIn(ctx, email, password)
	if err != nil {
		cached, err := s.fallback(ctx, email, "sign in failed", err)
		return cached, false, err
	}

	profile, found, err := s.profiles.Get(ctx, id.UID)
	if err != nil {
		cached, err := s.fallback(ctx, email, "sign in failed", err)
		return cached, false, err
	}
	if !found {
		err := s.gw.Localizer().New(apperr.KindUserNotFound, domain.ErrProfileNotFound)
		s.log.Error(logging.TagSession, "account has no profile document", "uid", id.UID)
		s.setLastErr(err)
		return nil, false, err
	}
	if profile.Email == "" {
		profile.Email = id.Email
	}

	s.establish(ctx, profile, id.Token)
	s.log.Info(logging.TagSession, "signed in", "uid", profile.ID, "role", profile.Role)
	return profile.Clone(), true, nil
}

// SignUp creates the account, writes its profile with a canonical role and
// signs it in. The two remote writes are not atomic: when the profile write
// fails the account stays behind without a profile.
func (s *SessionService) SignUp(ctx context.Context, email, password, role string, extra map[string]any) (*domain.UserProfile, error) {
	s.log.Info(logging.TagSession, "signing up", "email", email, "role", role)
	s.ClearError()

	id, err := s.gw.CreateAccount(ctx, email, password)
	if err != nil {
		return nil, s.fail("sign up failed", err)
	}

	profile := domain.NewProfile(id.UID, id.Email, role, extra, s.now())
	if profile.Email == "" {
		profile.Email = email
	}
	if err := s.profiles.Put(ctx, profile); err != nil {
		s.log.Error(logging.TagSession, "profile write failed, account left without profile",
			"uid", id.UID, logging.Err(err))
		s.setLastErr(err)
		return nil, err
	}

	signed, err := s.gw.SignIn(ctx, email, password)
	if err != nil {
		return nil, s.fail("sign in after sign up failed", err)
	}

	s.establish(ctx, profile, signed.Token)
	s.log.Info(logging.TagSession, "signed up", "uid", profile.ID, "role", profile.Role)
	return profile.Clone(), nil
}

// SignOut ends the session and clears the token. The profile cache is kept.
func (s *SessionService) SignOut(ctx context.Context) error {
	s.log.Info(logging.TagSession, "signing out")
	s.ClearError()

	if err := s.gw.SignOut(ctx); err != nil {
		return s.fail("sign out failed", err)
	}
	s.clearToken(ctx)
	s.transition(StateUnauthenticated, nil)
	s.log.Info(logging.TagSession, "signed out")
	return nil
}

// UpdateProfile merges patch into the current profile and returns the stored
// result.
func (s *SessionService) UpdateProfile(ctx context.Context, patch map[string]any) (*domain.UserProfile, error) {
	current := s.Current()
	if current == nil {
		return nil, s.fail("update profile rejected",
			s.gw.Localizer().New(apperr.KindAuthFailed, domain.ErrNotAuthenticated))
	}
	s.log.Info(logging.TagSession, "updating profile", "uid", current.ID)

	if err := s.profiles.Merge(ctx, current.ID, domain.ProfilePatch(patch, s.now())); err != nil {
		return nil, s.fail("update profile failed", err)
	}
	updated, found, err := s.profiles.Get(ctx, current.ID)
	if err != nil {
		return nil, s.fail("reload profile failed", err)
	}
	if !found {
		return nil, s.fail("reload profile failed",
			s.gw.Localizer().New(apperr.KindUserNotFound, domain.ErrProfileNotFound))
	}

	s.transition(StateAuthenticated, updated)
	s.saveCache(ctx, updated)
	s.log.Info(logging.TagSession, "profile updated", "uid", updated.ID)
	return updated.Clone(), nil
}

// ChangePassword re-authenticates with current and sets next.
func (s *SessionService) ChangePassword(ctx context.Context, current, next string) error {
	if !s.IsAuthenticated() {
		return s.fail("change password rejected",
			s.gw.Localizer().New(apperr.KindAuthFailed, domain.ErrNotAuthenticated))
	}
	s.log.Info(logging.TagSession, "changing password")
	if err := s.gw.ChangePassword(ctx, current, next); err != nil {
		return s.fail("change password failed", err)
	}
	if id := s.gw.CurrentIdentity(); id != nil {
		s.saveToken(ctx, id.Token)
	}
	s.log.Info(logging.TagSession, "password changed")
	return nil
}

// SetLanguage persists the preferred language and switches error messages
// to it.
func (s *SessionService) SetLanguage(ctx context.Context, lang string) error {
	locale := apperr.NormalizeLocale(lang)
	if s.prefs != nil {
		if err := s.prefs.SetLanguage(ctx, locale); err != nil {
			s.log.Warn(logging.TagStorage, "failed to save language", logging.Err(err))
			return s.gw.Localizer().New(apperr.KindStore, err)
		}
	}
	s.gw.SetLocale(locale)
	return nil
}

func (s *SessionService) applyLanguage(ctx context.Context) {
	if s.prefs == nil {
		return
	}
	lang, ok, err := s.prefs.Language(ctx)
	if err != nil {
		s.log.Warn(logging.TagStorage, "failed to read language", logging.Err(err))
		return
	}
	if ok {
		s.gw.SetLocale(lang)
	}
}

// Current returns a copy of the signed-in profile, or nil.
func (s *SessionService) Current() *domain.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile.Clone()
}

func (s *SessionService) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *SessionService) IsAuthenticated() bool {
	return s.State() == StateAuthenticated
}

// Token returns the token of the signed-in identity, or "".
func (s *SessionService) Token() string {
	if !s.IsAuthenticated() {
		return ""
	}
	if id := s.gw.CurrentIdentity(); id != nil {
		return id.Token
	}
	return ""
}

// CurrentPlan is the plan of the session profile, else of the cached profile,
// else PlanFree.
func (s *SessionService) CurrentPlan(ctx context.Context) domain.Plan {
	if p := s.Current(); p != nil {
		return p.EffectivePlan()
	}
	cached, ok, err := s.cache.Load(ctx)
	if err != nil {
		s.log.Warn(logging.TagStorage, "failed to read cached profile", logging.Err(err))
	}
	if ok {
		return cached.EffectivePlan()
	}
	return domain.PlanFree
}

// OnChange registers fn for every transition. fn runs synchronously on the
// goroutine that caused the transition.
func (s *SessionService) OnChange(fn Listener) (remove func()) {
	s.lmu.Lock()
	key := s.nextL
	s.nextL++
	s.listeners[key] = fn
	s.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.lmu.Lock()
			delete(s.listeners, key)
			s.lmu.Unlock()
		})
	}
}

func (s *SessionService) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Localizer returns the catalog used for session errors.
func (s *SessionService) Localizer() *apperr.Localizer {
	return s.gw.Localizer()
}

func (s *SessionService) ClearError() {
	s.setLastErr(nil)
}

func (s *SessionService) establish(ctx context.Context, profile *domain.UserProfile, token string) {
	s.transition(StateAuthenticated, profile)
	s.saveCache(ctx, profile)
	s.saveToken(ctx, token)
}

// fallback returns the cached profile only for a network failure while the
// same email is still signed in. Every other failure is reported.
func (s *SessionService) fallback(ctx context.Context, email, msg string, err error) (*domain.UserProfile, error) {
	if apperr.KindOf(err) != apperr.KindNetwork {
		return nil, s.fail(msg, err)
	}
	if id := s.gw.CurrentIdentity(); id != nil && strings.EqualFold(strings.TrimSpace(id.Email), strings.TrimSpace(email)) {
		if cached := s.cachedFor(ctx, id.UID); cached != nil {
			s.log.Warn(logging.TagSession, "using cached profile", "uid", id.UID, logging.Err(err))
			s.transition(StateAuthenticated, cached)
			return cached.Clone(), nil
		}
	}
	return nil, s.fail(msg, err)
}

func (s *SessionService) cachedFor(ctx context.Context, uid string) *domain.UserProfile {
	cached, ok, err := s.cache.Load(ctx)
	if err != nil {
		s.log.Warn(logging.TagStorage, "failed to read cached profile", logging.Err(err))
		return nil
	}
	if !ok || cached.ID != uid {
		return nil
	}
	return cached
}

func (s *SessionService) fail(msg string, err error) error {
	s.log.Error(logging.TagSession, msg, "kind", apperr.KindOf(err), logging.Err(err))
	s.setLastErr(err)
	return err
}

func (s *SessionService) setLastErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func (s *SessionService) saveCache(ctx context.Context, p *domain.UserProfile) {
	if err := s.cache.Save(ctx, p); err != nil {
		s.log.Warn(logging.TagStorage, "failed to cache profile", logging.Err(err))
	}
}

func (s *SessionService) saveToken(ctx context.Context, token string) {
	if err := s.tokens.Save(ctx, token); err != nil {
		s.log.Warn(logging.TagStorage, "failed to store session token", logging.Err(err))
	}
}

func (s *SessionService) clearToken(ctx context.Context) {
	if err := s.tokens.Clear(ctx); err != nil {
		s.log.Warn(logging.TagStorage, "failed to clear session token", logging.Err(err))
	}
}

// transition moves the machine and notifies listeners when the state or the
// signed-in account changed.
func (s *SessionService) transition(state State, profile *domain.UserProfile) {
	s.mu.Lock()
	prevState := s.state
	prevUID := ""
	if s.profile != nil {
		prevUID = s.profile.ID
	}
	s.state = state
	s.profile = profile.Clone()
	nextUID := ""
	if profile != nil {
		nextUID = profile.ID
	}
	s.mu.Unlock()

	if prevState == state && prevUID == nextUID {
		return
	}
	s.lmu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.lmu.Unlock()
	for _, fn := range listeners {
		fn(state, profile.Clone())
	}
}
