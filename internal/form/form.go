// Package form holds field-level state, validation and submission for the
// create and edit forms of the admin surfaces.
package form

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/presensia/presensia-core/internal/apperr"
	"github.com/presensia/presensia-core/internal/logging"
)

// Values maps a field name to its current value.
type Values map[string]any

func (v Values) clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// FieldErrors maps a field name to its validation message. It is the cause
// carried by the VALIDATION_ERROR Submit returns.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}
	return strings.Join(parts, "; ")
}

// Fields returns the messages keyed by field name.
func (e FieldErrors) Fields() map[string]string {
	return e
}

// SubmitFunc receives a copy of the values that passed validation.
type SubmitFunc func(ctx context.Context, values Values) error

type Option func(*Form)

func WithLogger(l logging.Sink) Option {
	return func(f *Form) { f.log = l }
}

func WithLocalizer(l *apperr.Localizer) Option {
	return func(f *Form) { f.loc = l }
}

// Form is safe for concurrent use. The submit callback runs without the
// form's lock held, so it may read the form.
type Form struct {
	mu         sync.Mutex
	initial    Values
	rules      Rules
	values     Values
	errors     FieldErrors
	touched    map[string]bool
	submitting bool

	log logging.Sink
	loc *apperr.Localizer
}

func New(initial Values, rules Rules, opts ...Option) *Form {
	f := &Form{
		initial: initial.clone(),
		rules:   rules,
		values:  initial.clone(),
		errors:  FieldErrors{},
		touched: map[string]bool{},
		log:     logging.Nop(),
		loc:     apperr.NewLocalizer(apperr.MustCatalog(), "en"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SetField stores value and clears any error shown for name.
func (f *Form) SetField(name string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[name] = value
	delete(f.errors, name)
}

// BlurField marks name touched and validates it when it has rules.
func (f *Form) BlurField(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched[name] = true
	rules, ok := f.rules[name]
	if !ok {
		return
	}
	if msg := Check(f.values[name], f.values, rules...); msg != "" {
		f.errors[name] = msg
	}
}

// ValidateAll runs every registered rule, replaces the error set with the
// result and reports whether the form is valid.
func (f *Form) ValidateAll() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validateLocked()
}

func (f *Form) validateLocked() bool {
	errs := FieldErrors{}
	for name, rules := range f.rules {
		if msg := Check(f.values[name], f.values, rules...); msg != "" {
			errs[name] = msg
		}
	}
	f.errors = errs
	return len(errs) == 0
}

// Submit validates the form and, when it passes, calls fn with the current
// values while IsSubmitting reports true. A failed validation returns a
// VALIDATION_ERROR wrapping FieldErrors and never calls fn. Errors from fn are
// returned unchanged.
func (f *Form) Submit(ctx context.Context, fn SubmitFunc) error {
	f.mu.Lock()
	if !f.validateLocked() {
		errs := FieldErrors{}
		for k, v := range f.errors {
			errs[k] = v
		}
		f.mu.Unlock()
		f.log.Warn(logging.TagForm, "form validation failed", "fields", len(errs))
		return f.loc.New(apperr.KindValidation, errs)
	}
	if fn == nil {
		f.mu.Unlock()
		return nil
	}
	values := f.values.clone()
	f.submitting = true
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.submitting = false
		f.mu.Unlock()
	}()

	f.log.Debug(logging.TagForm, "form submitted")
	if err := fn(ctx, values); err != nil {
		f.log.Error(logging.TagForm, "submit handler failed", logging.Err(err))
		return err
	}
	return nil
}

// Reset restores the initial values and clears errors, touched marks and the
// submitting flag.
func (f *Form) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values = f.initial.clone()
	f.errors = FieldErrors{}
	f.touched = map[string]bool{}
	f.submitting = false
}

// SetFieldError shows msg for name, e.g. a server-side failure tied to one
// field. An empty msg clears it.
func (f *Form) SetFieldError(name, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg == "" {
		delete(f.errors, name)
		return
	}
	f.errors[name] = msg
}

func (f *Form) Value(name string) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[name]
}

func (f *Form) Values() Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values.clone()
}

func (f *Form) Errors() FieldErrors {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(FieldErrors, len(f.errors))
	for k, v := range f.errors {
		out[k] = v
	}
	return out
}

func (f *Form) Touched() map[string]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]bool, len(f.touched))
	for k, v := range f.touched {
		out[k] = v
	}
	return out
}

func (f *Form) IsSubmitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}
