package gateway

import (
	"context"
	"errors"
	"net"
	"strings"

	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/errorutils"
	"github.com/jackc/pgx/v5/pgconn"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/presensia/presensia-core/internal/apperr"
)

// MapError converts a backend failure into the taxonomy. Errors that already
// carry a kind pass through unchanged; unrecognized failures become
// STORE_ERROR. The original failure stays reachable through Unwrap.
func MapError(loc *apperr.Localizer, err error) error {
	if err == nil {
		return nil
	}
	var tagged *apperr.Error
	if errors.As(err, &tagged) {
		return err
	}
	return loc.New(classify(err), err)
}

func classify(err error) apperr.Kind {
	if kind, ok := classifySentinel(err); ok {
		return kind
	}
	if kind, ok := classifyFirebase(err); ok {
		return kind
	}
	if kind, ok := classifyGRPC(err); ok {
		return kind
	}
	if kind, ok := classifyPostgres(err); ok {
		return kind
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperr.KindNetwork
	}
	return apperr.KindStore
}

func classifySentinel(err error) (apperr.Kind, bool) {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled),
		errors.Is(err, ErrUnavailable):
		return apperr.KindNetwork, true
	case errors.Is(err, ErrEmailExists):
		return apperr.KindEmailAlreadyExists, true
	case errors.Is(err, ErrInvalidEmail):
		return apperr.KindInvalidEmail, true
	case errors.Is(err, ErrWeakPassword):
		return apperr.KindWeakPassword, true
	case errors.Is(err, ErrIdentityNotFound):
		return apperr.KindUserNotFound, true
	case errors.Is(err, ErrInvalidCredentials):
		return apperr.KindInvalidPassword, true
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrAccountDisabled),
		errors.Is(err, ErrNotSignedIn):
		return apperr.KindAuthFailed, true
	case errors.Is(err, ErrPermissionDenied):
		return apperr.KindPermissionDenied, true
	case errors.Is(err, ErrUnsupportedOperator):
		return apperr.KindValidation, true
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrAlreadyExists):
		return apperr.KindStore, true
	}
	return "", false
}

// classifyFirebase walks the chain because the SDK predicates only match an
// unwrapped *FirebaseError.
func classifyFirebase(err error) (apperr.Kind, bool) {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if kind, ok := firebaseKind(e); ok {
			return kind, true
		}
	}
	return "", false
}

func firebaseKind(err error) (apperr.Kind, bool) {
	switch {
	case auth.IsEmailAlreadyExists(err):
		return apperr.KindEmailAlreadyExists, true
	case auth.IsInvalidEmail(err):
		return apperr.KindInvalidEmail, true
	case auth.IsUserNotFound(err), auth.IsEmailNotFound(err):
		return apperr.KindUserNotFound, true
	case auth.IsIDTokenInvalid(err), auth.IsIDTokenExpired(err), auth.IsIDTokenRevoked(err),
		auth.IsUserDisabled(err):
		return apperr.KindAuthFailed, true
	case auth.IsInsufficientPermission(err), errorutils.IsPermissionDenied(err):
		return apperr.KindPermissionDenied, true
	case errorutils.IsUnauthenticated(err):
		return apperr.KindAuthFailed, true
	case errorutils.IsUnavailable(err), errorutils.IsDeadlineExceeded(err):
		return apperr.KindNetwork, true
	}
	return "", false
}

func classifyGRPC(err error) (apperr.Kind, bool) {
	st, ok := status.FromError(err)
	if !ok {
		return "", false
	}
	switch st.Code() {
	case codes.PermissionDenied:
		return apperr.KindPermissionDenied, true
	case codes.Unauthenticated:
		return apperr.KindAuthFailed, true
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return apperr.KindNetwork, true
	case codes.InvalidArgument:
		return apperr.KindValidation, true
	}
	return apperr.KindStore, true
}

func classifyPostgres(err error) (apperr.Kind, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	switch {
	case pgErr.Code == "42501":
		return apperr.KindPermissionDenied, true
	case pgErr.Code == "28000", pgErr.Code == "28P01":
		return apperr.KindAuthFailed, true
	case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "57P"):
		return apperr.KindNetwork, true
	case strings.HasPrefix(pgErr.Code, "22"), strings.HasPrefix(pgErr.Code, "23"):
		return apperr.KindValidation, true
	}
	return apperr.KindStore, true
}
