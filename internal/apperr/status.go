package apperr

import "net/http"

// HTTPStatus is the response status used for a failure of kind k.
func HTTPStatus(k Kind) int {
	switch k {
	case KindAuthFailed, KindInvalidPassword:
		return http.StatusUnauthorized
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindUserNotFound:
		return http.StatusNotFound
	case KindEmailAlreadyExists:
		return http.StatusConflict
	case KindInvalidEmail, KindWeakPassword, KindValidation, KindRequiredField, KindInvalidFormat:
		return http.StatusUnprocessableEntity
	case KindPlanLimitReached:
		return http.StatusTooManyRequests
	case KindNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
