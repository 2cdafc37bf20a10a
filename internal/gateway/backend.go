// Package gateway is the only component that talks to the auth provider and
// the document store. Every provider failure leaving this package has been
// mapped to an *apperr.Error.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Identity is an authenticated account as seen by the auth provider.
type Identity struct {
	UID   string
	Email string
	Token string
}

// Document is one stored record. Data never contains the id.
type Document struct {
	ID   string
	Data map[string]any
}

// IdentityProvider is the narrow auth-provider boundary.
type IdentityProvider interface {
	CreateAccount(ctx context.Context, email, password string) (Identity, error)
	VerifyPassword(ctx context.Context, email, password string) (Identity, error)
	VerifyToken(ctx context.Context, token string) (Identity, error)
	UpdatePassword(ctx context.Context, uid, newPassword string) error
}

// DocumentStore is the narrow document-database boundary.
type DocumentStore interface {
	// Get returns ErrNotFound for a missing document.
	Get(ctx context.Context, collection, id string) (Document, error)
	// Set writes data; with merge only the given top-level fields change.
	Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error
	// Create fails with ErrAlreadyExists when id is taken.
	Create(ctx context.Context, collection, id string, data map[string]any) error
	// Add stores data under a store-assigned id.
	Add(ctx context.Context, collection string, data map[string]any) (string, error)
	// Update merges patch into an existing document, ErrNotFound otherwise.
	Update(ctx context.Context, collection, id string, patch map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection, field, op string, value any) ([]Document, error)
	List(ctx context.Context, collection string) ([]Document, error)
}

// Backend sentinels. MapError turns these into taxonomy kinds.
var (
	ErrNotFound            = errors.New("document not found")
	ErrAlreadyExists       = errors.New("document already exists")
	ErrEmailExists         = errors.New("email already exists")
	ErrInvalidEmail        = errors.New("invalid email")
	ErrWeakPassword        = errors.New("weak password")
	ErrIdentityNotFound    = errors.New("identity not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidToken        = errors.New("invalid or expired token")
	ErrAccountDisabled     = errors.New("account disabled")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrUnavailable         = errors.New("backend unavailable")
	ErrNotSignedIn         = errors.New("no signed-in identity")
	ErrUnsupportedOperator = errors.New("unsupported query operator")
)

// MinPasswordLength is the provider's minimum password length.
const MinPasswordLength = 6

// Query operators.
const (
	OpEqual        = "=="
	OpNotEqual     = "!="
	OpLess         = "<"
	OpLessEqual    = "<="
	OpGreater      = ">"
	OpGreaterEqual = ">="
	OpIn           = "in"
)

func checkOperator(op string) error {
	switch op {
	case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual, OpIn:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedOperator, op)
}

var credentialValidator = validator.New(validator.WithRequiredStructEnabled())

// checkCredentials applies the provider's account rules before any remote
// call: a well-formed email and a password of at least six characters.
func checkCredentials(email, password string) error {
	if err := credentialValidator.Var(strings.TrimSpace(email), "required,email"); err != nil {
		return ErrInvalidEmail
	}
	return checkPassword(password)
}

func checkPassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

func cloneData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneData(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
