package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/presensia/presensia-core/internal/apperr"
	"github.com/presensia/presensia-core/internal/auth/domain"
	"github.com/presensia/presensia-core/internal/auth/repository"
	"github.com/presensia/presensia-core/internal/gateway"
	"github.com/presensia/presensia-core/internal/logging"
	"github.com/presensia/presensia-core/internal/mirror"
)

var errPlanLimit = errors.New("free plan user limit reached")

// PlanSource reports the plan of the account managing users.
type PlanSource interface {
	CurrentPlan(ctx context.Context) domain.Plan
}

// CourseLookup resolves course codes against the courses mirror.
type CourseLookup interface {
	HasCourse(code string) bool
}

// NewUser is the input of Create. Without a password only a profile
// document is written; with one an account is created as well, keyed by the
// new account's id.
type NewUser struct {
	Email    string
	Password string
	Role     string
	Name     string
	Course   string
	Extra    map[string]any
}

func (n NewUser) fields() map[string]any {
	out := make(map[string]any, len(n.Extra)+2)
	for k, v := range n.Extra {
		out[k] = v
	}
	if n.Name != "" {
		out[domain.FieldName] = n.Name
	}
	if n.Course != "" {
		out[domain.FieldCourse] = n.Course
	}
	return out
}

// UsersService mirrors the users collection.
type UsersService struct {
	mirror.Tracker

	gw       *gateway.Gateway
	profiles *repository.ProfileRepository
	plans    PlanSource
	users    *mirror.List[domain.UserProfile]
	policy   mirror.Policy[domain.UserProfile]
	log      logging.Sink
	now      func() time.Time
}

type Option func(*UsersService)

func WithLogger(l logging.Sink) Option {
	return func(s *UsersService) { s.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *UsersService) { s.now = now }
}

// WithRefetch reloads the whole collection after every write instead of
// patching the mirror from the write's result.
func WithRefetch() Option {
	return func(s *UsersService) {
		s.policy = mirror.Refetch[domain.UserProfile]{Fetch: s.fetch}
	}
}

func NewUsersService(gw *gateway.Gateway, profiles *repository.ProfileRepository, plans PlanSource, opts ...Option) *UsersService {
	s := &UsersService{
		gw:       gw,
		profiles: profiles,
		plans:    plans,
		users:    mirror.NewList(func(u domain.UserProfile) string { return u.ID }),
		policy:   mirror.Patch[domain.UserProfile]{},
		log:      logging.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchAll replaces the mirror with the remote collection.
func (s *UsersService) FetchAll(ctx context.Context) ([]domain.UserProfile, error) {
	defer s.Begin()()
	s.ClearError()
	s.log.Info(logging.TagUsers, "fetching all users")

	users, err := s.fetch(ctx)
	if err != nil {
		return nil, s.fail("failed to fetch users", err)
	}
	s.users.Replace(users)
	s.log.Debug(logging.TagUsers, "users fetched", "count", len(users))
	return cloneAll(users), nil
}

// Create adds a user. A free plan already managing FreeUserLimit users is
// rejected before any remote call.
func (s *UsersService) Create(ctx context.Context, in NewUser) (*domain.UserProfile, error) {
	defer s.Begin()()
	s.ClearError()

	plan := s.plans.CurrentPlan(ctx)
	if count := s.users.Len(); !plan.AllowsMoreUsers(count) {
		s.log.Warn(logging.TagUsers, "user limit reached", "plan", plan, "count", count)
		return nil, s.Fail(s.gw.Localizer().New(apperr.KindPlanLimitReached, errPlanLimit))
	}
	s.log.Info(logging.TagUsers, "creating user", "email", in.Email)

	var (
		created *domain.UserProfile
		err     error
	)
	if in.Password != "" {
		created, err = s.createAccount(ctx, in)
	} else {
		created, err = s.profiles.Add(ctx, domain.NewProfile("", in.Email, in.Role, in.fields(), s.now()))
	}
	if err != nil {
		return nil, s.fail("failed to create user", err)
	}

	if err := s.policy.Created(ctx, s.users, *created); err != nil {
		return nil, s.fail("failed to refresh users", err)
	}
	s.log.Info(logging.TagUsers, "user created", "id", created.ID)
	return created.Clone(), nil
}

// createAccount registers the account without touching the current session,
// then writes its profile.
func (s *UsersService) createAccount(ctx context.Context, in NewUser) (*domain.UserProfile, error) {
	id, err := s.gw.CreateAccount(ctx, in.Email, in.Password)
	if err != nil {
		return nil, err
	}
	p := domain.NewProfile(id.UID, id.Email, in.Role, in.fields(), s.now())
	if p.Email == "" {
		p.Email = in.Email
	}
	if err := s.profiles.Put(ctx, p); err != nil {
		s.log.Error(logging.TagUsers, "account created without profile", "uid", id.UID, logging.Err(err))
		return nil, err
	}
	return p, nil
}

// Update merges patch into user id, re-reads it and replaces the mirror entry.
func (s *UsersService) Update(ctx context.Context, id string, patch map[string]any) (*domain.UserProfile, error) {
	defer s.Begin()()
	s.ClearError()
	s.log.Info(logging.TagUsers, "updating user", "id", id)

	if err := s.profiles.Update(ctx, id, domain.ProfilePatch(patch, s.now())); err != nil {
		return nil, s.fail("failed to update user", err)
	}
	updated, found, err := s.profiles.Get(ctx, id)
	if err != nil {
		return nil, s.fail("failed to reload user", err)
	}
	if !found {
		return nil, s.fail("user vanished after update",
			s.gw.Localizer().New(apperr.KindUserNotFound, domain.ErrProfileNotFound))
	}

	if err := s.policy.Updated(ctx, s.users, *updated); err != nil {
		return nil, s.fail("failed to refresh users", err)
	}
	s.log.Info(logging.TagUsers, "user updated", "id", id)
	return updated.Clone(), nil
}

// Delete removes the profile document. The auth account, if any, is kept.
func (s *UsersService) Delete(ctx context.Context, id string) error {
	defer s.Begin()()
	s.ClearError()
	s.log.Info(logging.TagUsers, "deleting user", "id", id)

	if err := s.profiles.Delete(ctx, id); err != nil {
		return s.fail("failed to delete user", err)
	}
	if err := s.policy.Deleted(ctx, s.users, id); err != nil {
		return s.fail("failed to refresh users", err)
	}
	s.log.Info(logging.TagUsers, "user deleted", "id", id)
	return nil
}

// Get reads one user remotely; the mirror is not touched.
func (s *UsersService) Get(ctx context.Context, id string) (*domain.UserProfile, bool, error) {
	s.log.Debug(logging.TagUsers, "fetching user", "id", id)
	p, found, err := s.profiles.Get(ctx, id)
	if err != nil {
		return nil, false, s.fail("failed to fetch user", err)
	}
	return p, found, nil
}

// FetchByRole queries users of the canonical form of role remotely.
func (s *UsersService) FetchByRole(ctx context.Context, role string) ([]domain.UserProfile, error) {
	canonical := domain.ParseRole(role)
	s.log.Info(logging.TagUsers, "fetching users by role", "role", canonical)
	return s.query(ctx, domain.FieldRole, string(canonical))
}

// FetchByCourse queries users enrolled in code remotely.
func (s *UsersService) FetchByCourse(ctx context.Context, code string) ([]domain.UserProfile, error) {
	s.log.Info(logging.TagUsers, "fetching users by course", "course", code)
	return s.query(ctx, domain.FieldCourse, code)
}

func (s *UsersService) query(ctx context.Context, field, value string) ([]domain.UserProfile, error) {
	found, err := s.profiles.FindBy(ctx, field, value)
	if err != nil {
		return nil, s.fail("failed to query users", err)
	}
	return derefAll(found), nil
}

// Users returns the mirror in fetch order.
func (s *UsersService) Users() []domain.UserProfile {
	return cloneAll(s.users.Snapshot())
}

func (s *UsersService) Len() int {
	return s.users.Len()
}

// SearchByEmail matches a case-insensitive substring of the email.
func (s *UsersService) SearchByEmail(q string) []domain.UserProfile {
	return s.search(q, func(u domain.UserProfile) string { return u.Email })
}

// SearchByName matches a case-insensitive substring of the name.
func (s *UsersService) SearchByName(q string) []domain.UserProfile {
	return s.search(q, func(u domain.UserProfile) string { return u.Name })
}

func (s *UsersService) FilterByRole(role string) []domain.UserProfile {
	canonical := domain.ParseRole(role)
	return cloneAll(s.users.Filter(func(u domain.UserProfile) bool { return u.Role == canonical }))
}

// InCourse returns the users of course code, or none when code does not
// resolve to an existing course.
func (s *UsersService) InCourse(code string, courses CourseLookup) []domain.UserProfile {
	if code == "" || !courses.HasCourse(code) {
		return []domain.UserProfile{}
	}
	return cloneAll(s.users.Filter(func(u domain.UserProfile) bool { return u.Course == code }))
}

// Enrolled returns the users whose course resolves to an existing course.
// Users pointing at a deleted course are left out, not deleted.
func (s *UsersService) Enrolled(courses CourseLookup) []domain.UserProfile {
	return cloneAll(s.users.Filter(func(u domain.UserProfile) bool {
		return u.Course != "" && courses.HasCourse(u.Course)
	}))
}

func (s *UsersService) search(q string, field func(domain.UserProfile) string) []domain.UserProfile {
	needle := strings.ToLower(strings.TrimSpace(q))
	return cloneAll(s.users.Filter(func(u domain.UserProfile) bool {
		return strings.Contains(strings.ToLower(field(u)), needle)
	}))
}

func (s *UsersService) fetch(ctx context.Context) ([]domain.UserProfile, error) {
	found, err := s.profiles.List(ctx)
	if err != nil {
		return nil, err
	}
	return derefAll(found), nil
}

func (s *UsersService) fail(msg string, err error) error {
	s.log.Error(logging.TagUsers, msg, "kind", apperr.KindOf(err), logging.Err(err))
	return s.Fail(err)
}

func derefAll(in []*domain.UserProfile) []domain.UserProfile {
	out := make([]domain.UserProfile, 0, len(in))
	for _, p := range in {
		out = append(out, *p)
	}
	return out
}

func cloneAll(in []domain.UserProfile) []domain.UserProfile {
	out := make([]domain.UserProfile, 0, len(in))
	for i := range in {
		out = append(out, *in[i].Clone())
	}
	return out
}
