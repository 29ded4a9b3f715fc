package response

import "work-platform/internal/apperr"

type ErrorCode int

const (
	OK ErrorCode = 0

	InvalidRequest  ErrorCode = 40001
	NotLoggedIn     ErrorCode = 40101
	AccessDenied    ErrorCode = 40301
	NotFound        ErrorCode = 40401
	StateConflict   ErrorCode = 40901
	InternalFailure ErrorCode = 50001
)

// CodeFor сопоставляет вид ошибки с кодом ответа и HTTP-статусом.
func CodeFor(kind apperr.Kind) (ErrorCode, int) {
	switch kind {
	case apperr.KindValidation:
		return InvalidRequest, 400
	case apperr.KindUnauthenticated:
		return NotLoggedIn, 401
	case apperr.KindForbidden:
		return AccessDenied, 403
	case apperr.KindNotFound:
		return NotFound, 404
	case apperr.KindConflict:
		return StateConflict, 409
	default:
		return InternalFailure, 500
	}
}
