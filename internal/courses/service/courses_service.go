package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/presensia/presensia-core/internal/apperr"
	authdomain "github.com/presensia/presensia-core/internal/auth/domain"
	"github.com/presensia/presensia-core/internal/courses/domain"
	"github.com/presensia/presensia-core/internal/gateway"
	"github.com/presensia/presensia-core/internal/logging"
	"github.com/presensia/presensia-core/internal/mirror"
)

// CoursesCollection holds one document per course, keyed by code.
const CoursesCollection = "courses"

// CoursesService mirrors the courses collection.
type CoursesService struct {
	mirror.Tracker

	gw       *gateway.Gateway
	validate *validator.Validate
	courses  *mirror.List[domain.Course]
	policy   mirror.Policy[domain.Course]
	log      logging.Sink
	now      func() time.Time
}

type Option func(*CoursesService)

func WithLogger(l logging.Sink) Option {
	return func(s *CoursesService) { s.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *CoursesService) { s.now = now }
}

// WithRefetch reloads the whole collection after every write.
func WithRefetch() Option {
	return func(s *CoursesService) {
		s.policy = mirror.Refetch[domain.Course]{Fetch: s.fetch}
	}
}

func NewCoursesService(gw *gateway.Gateway, opts ...Option) *CoursesService {
	s := &CoursesService{
		gw:       gw,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		courses:  mirror.NewList(func(c domain.Course) string { return c.Code }),
		policy:   mirror.Patch[domain.Course]{},
		log:      logging.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchAll replaces the mirror with the remote collection.
func (s *CoursesService) FetchAll(ctx context.Context) ([]domain.Course, error) {
	defer s.Begin()()
	s.ClearError()
	s.log.Info(logging.TagCourses, "fetching all courses")

	courses, err := s.fetch(ctx)
	if err != nil {
		return nil, s.fail("failed to fetch courses", err)
	}
	s.courses.Replace(courses)
	s.log.Debug(logging.TagCourses, "courses fetched", "count", len(courses))
	return courses, nil
}

// Create validates in, rejects a code already present locally or remotely,
// stamps createdAt and appends the course to the mirror.
func (s *CoursesService) Create(ctx context.Context, in domain.Course) (domain.Course, error) {
	defer s.Begin()()
	s.ClearError()

	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	in.CreatedAt, in.UpdatedAt = "", ""
	if err := s.check(in); err != nil {
		return domain.Course{}, s.fail("course rejected", err)
	}
	if s.courses.Contains(in.Code) {
		return domain.Course{}, s.fail("course rejected", s.duplicate(in.Code, nil))
	}
	s.log.Info(logging.TagCourses, "creating course", "code", in.Code)

	in.CreatedAt = authdomain.Timestamp(s.now())
	if err := s.gw.CreateDocument(ctx, CoursesCollection, in.Code, in.Data()); err != nil {
		if errors.Is(err, gateway.ErrAlreadyExists) {
			err = s.duplicate(in.Code, err)
		}
		return domain.Course{}, s.fail("failed to create course", err)
	}

	if err := s.policy.Created(ctx, s.courses, in); err != nil {
		return domain.Course{}, s.fail("failed to refresh courses", err)
	}
	s.log.Info(logging.TagCourses, "course created", "code", in.Code)
	return in, nil
}

// Update validates patch, merges it with a fresh updatedAt, re-reads the
// course and replaces the mirror entry.
func (s *CoursesService) Update(ctx context.Context, code string, patch domain.Patch) (domain.Course, error) {
	defer s.Begin()()
	s.ClearError()

	if err := s.check(patch); err != nil {
		return domain.Course{}, s.fail("course update rejected", err)
	}
	s.log.Info(logging.TagCourses, "updating course", "code", code)

	data := patch.Data()
	data["updatedAt"] = authdomain.Timestamp(s.now())
	if err := s.gw.UpdateDocument(ctx, CoursesCollection, code, data); err != nil {
		return domain.Course{}, s.fail("failed to update course", err)
	}
	updated, found, err := s.Get(ctx, code)
	if err != nil {
		return domain.Course{}, err
	}
	if !found {
		return domain.Course{}, s.fail("course vanished after update",
			s.gw.Localizer().New(apperr.KindStore, domain.ErrCourseNotFound))
	}

	if err := s.policy.Updated(ctx, s.courses, updated); err != nil {
		return domain.Course{}, s.fail("failed to refresh courses", err)
	}
	s.log.Info(logging.TagCourses, "course updated", "code", code)
	return updated, nil
}

// Delete removes the course. Users enrolled in it are not touched.
func (s *CoursesService) Delete(ctx context.Context, code string) error {
	defer s.Begin()()
	s.ClearError()
	s.log.Info(logging.TagCourses, "deleting course", "code", code)

	if err := s.gw.DeleteDocument(ctx, CoursesCollection, code); err != nil {
		return s.fail("failed to delete course", err)
	}
	if err := s.policy.Deleted(ctx, s.courses, code); err != nil {
		return s.fail("failed to refresh courses", err)
	}
	s.log.Info(logging.TagCourses, "course deleted", "code", code)
	return nil
}

// Get reads one course remotely; the mirror is not touched.
func (s *CoursesService) Get(ctx context.Context, code string) (domain.Course, bool, error) {
	s.log.Debug(logging.TagCourses, "fetching course", "code", code)
	doc, found, err := s.gw.GetDocument(ctx, CoursesCollection, code)
	if err != nil {
		return domain.Course{}, false, s.fail("failed to fetch course", err)
	}
	if !found {
		return domain.Course{}, false, nil
	}
	return domain.FromData(doc.ID, doc.Data), true, nil
}

// Courses returns the mirror in fetch order.
func (s *CoursesService) Courses() []domain.Course {
	return s.courses.Snapshot()
}

func (s *CoursesService) Len() int {
	return s.courses.Len()
}

// HasCourse reports whether code is in the mirror.
func (s *CoursesService) HasCourse(code string) bool {
	return s.courses.Contains(code)
}

func (s *CoursesService) SearchByInstructor(q string) []domain.Course {
	return s.search(q, func(c domain.Course) string { return c.Instructor })
}

func (s *CoursesService) SearchByName(q string) []domain.Course {
	return s.search(q, func(c domain.Course) string { return c.Name })
}

// FilterBySemester matches the semester label ignoring case.
func (s *CoursesService) FilterBySemester(semester string) []domain.Course {
	semester = strings.TrimSpace(semester)
	return s.courses.Filter(func(c domain.Course) bool { return strings.EqualFold(c.Semester, semester) })
}

func (s *CoursesService) search(q string, field func(domain.Course) string) []domain.Course {
	needle := strings.ToLower(strings.TrimSpace(q))
	return s.courses.Filter(func(c domain.Course) bool {
		return strings.Contains(strings.ToLower(field(c)), needle)
	})
}

// check runs the struct rules. A missing required field is REQUIRED_FIELD;
// any other violation is VALIDATION_ERROR.
func (s *CoursesService) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	kind := apperr.KindValidation
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			if fe.Tag() == "required" {
				kind = apperr.KindRequiredField
				break
			}
		}
	}
	return s.gw.Localizer().New(kind, err)
}

func (s *CoursesService) duplicate(code string, cause error) error {
	err := fmt.Errorf("%w: %s", domain.ErrDuplicateCode, code)
	if cause != nil {
		err = fmt.Errorf("%w: %w", err, cause)
	}
	return s.gw.Localizer().New(apperr.KindValidation, err)
}

func (s *CoursesService) fetch(ctx context.Context) ([]domain.Course, error) {
	docs, err := s.gw.ListCollection(ctx, CoursesCollection)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Course, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.FromData(d.ID, d.Data))
	}
	return out, nil
}

func (s *CoursesService) fail(msg string, err error) error {
	s.log.Error(logging.TagCourses, msg, "kind", apperr.KindOf(err), logging.Err(err))
	return s.Fail(err)
}
