package app

import (
	"net/http"

	"slangdict/api/internal/apperr"
)

var kindStatus = map[apperr.Kind]int{
	apperr.KindAuthenticationRequired: http.StatusUnauthorized,
	apperr.KindPermissionDenied:       http.StatusForbidden,
	apperr.KindNotFound:               http.StatusNotFound,
	apperr.KindInvalidArgument:        http.StatusUnprocessableEntity,
	apperr.KindConflict:               http.StatusConflict,
	apperr.KindInternal:               http.StatusInternalServerError,
}

// mapError turns a service error into the status, code and message written
// to the client.
func mapError(err error) (status int, code, message string) {
	kind := apperr.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status, kind = http.StatusInternalServerError, apperr.KindInternal
	}
	return status, string(kind), apperr.MessageOf(err)
}
