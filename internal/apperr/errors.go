// Package apperr defines the closed set of failure kinds surfaced by the
// presensia core and the localized messages shown for them.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies a class of failure. The set is closed; callers switch on it.
type Kind string

const (
	KindAuthFailed         Kind = "AUTH_FAILED"
	KindUserNotFound       Kind = "USER_NOT_FOUND"
	KindInvalidPassword    Kind = "INVALID_PASSWORD"
	KindInvalidEmail       Kind = "INVALID_EMAIL"
	KindEmailAlreadyExists Kind = "EMAIL_ALREADY_EXISTS"
	KindWeakPassword       Kind = "WEAK_PASSWORD"
	KindNetwork            Kind = "NETWORK_ERROR"
	KindPermissionDenied   Kind = "PERMISSION_DENIED"
	KindStore              Kind = "STORE_ERROR"
	KindValidation         Kind = "VALIDATION_ERROR"
	KindRequiredField      Kind = "REQUIRED_FIELD"
	KindInvalidFormat      Kind = "INVALID_FORMAT"
	KindPlanLimitReached   Kind = "PLAN_LIMIT_REACHED"
	KindUnknown            Kind = "UNKNOWN_ERROR"
)

// Kinds lists every kind in declaration order.
var Kinds = []Kind{
	KindAuthFailed,
	KindUserNotFound,
	KindInvalidPassword,
	KindInvalidEmail,
	KindEmailAlreadyExists,
	KindWeakPassword,
	KindNetwork,
	KindPermissionDenied,
	KindStore,
	KindValidation,
	KindRequiredField,
	KindInvalidFormat,
	KindPlanLimitReached,
	KindUnknown,
}

// Sentinels usable with errors.Is, e.g. errors.Is(err, apperr.ErrPlanLimitReached).
var (
	ErrAuthFailed         = &Error{Kind: KindAuthFailed}
	ErrUserNotFound       = &Error{Kind: KindUserNotFound}
	ErrInvalidPassword    = &Error{Kind: KindInvalidPassword}
	ErrInvalidEmail       = &Error{Kind: KindInvalidEmail}
	ErrEmailAlreadyExists = &Error{Kind: KindEmailAlreadyExists}
	ErrWeakPassword       = &Error{Kind: KindWeakPassword}
	ErrNetwork            = &Error{Kind: KindNetwork}
	ErrPermissionDenied   = &Error{Kind: KindPermissionDenied}
	ErrStore              = &Error{Kind: KindStore}
	ErrValidation         = &Error{Kind: KindValidation}
	ErrRequiredField      = &Error{Kind: KindRequiredField}
	ErrInvalidFormat      = &Error{Kind: KindInvalidFormat}
	ErrPlanLimitReached   = &Error{Kind: KindPlanLimitReached}
	ErrUnknown            = &Error{Kind: KindUnknown}
)

// Error is a taxonomy-tagged failure. Message is already localized; Err keeps
// the underlying provider failure for diagnostics.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match for any *Error carrying the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// MessageOf returns the localized message carried by err, falling back to
// err.Error() for errors outside the taxonomy.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}

// IsKnown reports whether k belongs to the taxonomy.
func IsKnown(k Kind) bool {
	for _, known := range Kinds {
		if known == k {
			return true
		}
	}
	return false
}
