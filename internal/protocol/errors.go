package protocol

import "net/http"

// Error codes carried by ERROR messages and HTTP error bodies.
const (
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrBadRequest      = "E_BAD_REQUEST"
	ErrInvalidTarget   = "E_INVALID_TARGET"
	ErrRateLimited     = "E_RATE_LIMITED"
	ErrInternal        = "E_INTERNAL"
)

var codeStatus = map[string]int{
	ErrProtoBadRequest: http.StatusBadRequest,
	ErrBadRequest:      http.StatusBadRequest,
	ErrInvalidTarget:   http.StatusNotFound,
	ErrRateLimited:     http.StatusTooManyRequests,
	ErrInternal:        http.StatusInternalServerError,
}

// IsKnownCode reports whether code is defined. The empty code is allowed.
func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := codeStatus[code]
	return ok
}

// HTTPStatus maps an error code to the status used by the HTTP API.
func HTTPStatus(code string) int {
	if s, ok := codeStatus[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}
