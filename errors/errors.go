package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

var (
	// Coordinator failures.
	ErrAuthenticationFailed = fmt.Errorf("authentication failed")
	ErrEmptyContent         = fmt.Errorf("message content must not be empty")
	ErrReceiverRequired     = fmt.Errorf("receiver id must not be empty")
	ErrReceiverNotFound     = fmt.Errorf("receiver not found")
	ErrPersistence          = fmt.Errorf("message store unavailable")
	// ErrDuplicateConnection means a connection id was registered twice.
	// Programming error: logged loudly, the offending connection is
	// dropped, the coordinator keeps serving everyone else.
	ErrDuplicateConnection = fmt.Errorf("connection id already registered")

	// Account failures.
	ErrUserAlreadyExists  = fmt.Errorf("username already taken")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrInvalidCredentials = fmt.Errorf("invalid username or password")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")

	ErrWorkerPanic = fmt.Errorf("worker panicked")
)

// Kind names the failure class of an error for the error event sent
// back to a connection.
func Kind(err error) string {
	switch {
	case stderrors.Is(err, ErrAuthenticationFailed),
		stderrors.Is(err, ErrInvalidCredentials):
		return "authentication"
	case stderrors.Is(err, ErrEmptyContent),
		stderrors.Is(err, ErrReceiverRequired),
		stderrors.Is(err, ErrInvalidPassword):
		return "validation"
	case stderrors.Is(err, ErrReceiverNotFound),
		stderrors.Is(err, ErrUserNotFound):
		return "not_found"
	case stderrors.Is(err, ErrPersistence):
		return "persistence"
	case stderrors.Is(err, ErrDuplicateConnection):
		return "invariant"
	default:
		return "internal"
	}
}

// MapToHTTPStatus resolves an error to the status code the REST
// surface reports. The websocket surface uses Kind instead.
func MapToHTTPStatus(err error) int {
	switch {
	case stderrors.Is(err, ErrEmptyContent),
		stderrors.Is(err, ErrReceiverRequired),
		stderrors.Is(err, ErrInvalidPassword):
		return http.StatusBadRequest
	case stderrors.Is(err, ErrAuthenticationFailed),
		stderrors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case stderrors.Is(err, ErrReceiverNotFound),
		stderrors.Is(err, ErrUserNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, ErrUserAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
