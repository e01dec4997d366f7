package api

import (
	"context"
	"errors"
	"net"
	"net/http"
)

// ErrorClass buckets every non-success transport outcome. Callers branch on
// the class, never on raw status codes or wrapped net errors.
type ErrorClass int

const (
	ClassNetworkUnavailable ErrorClass = iota
	ClassUnauthorized
	ClassForbidden
	ClassNotFound
	ClassServerError
	ClassClientError
	ClassTimeout
)

func (c ErrorClass) String() string {
	switch c {
	case ClassNetworkUnavailable:
		return "network_unavailable"
	case ClassUnauthorized:
		return "unauthorized"
	case ClassForbidden:
		return "forbidden"
	case ClassNotFound:
		return "not_found"
	case ClassServerError:
		return "server_error"
	case ClassClientError:
		return "client_error"
	case ClassTimeout:
		return "timeout"
	}
	return "unknown"
}

// ErrSessionExpired is matched by every Unauthorized transport error, so
// callers can trigger re-authentication without inspecting classes.
var ErrSessionExpired = errors.New("session expired, please login again")

// Error is the uniform failure returned by the transport client. Message is
// a category-level user-facing string; Detail carries the server's error
// text when the response included one.
type Error struct {
	Class   ErrorClass
	Status  int
	Message string
	Detail  string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e.Class == ClassUnauthorized {
		return ErrSessionExpired
	}
	return nil
}

// IsRetryable reports whether err is a transport failure that a bounded
// list-load retry may repeat without duplicating side effects.
func IsRetryable(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Class == ClassNetworkUnavailable || apiErr.Class == ClassServerError
}

func IsTimeout(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Class == ClassTimeout
}

func classMessage(class ErrorClass) string {
	switch class {
	case ClassNetworkUnavailable:
		return "cannot connect to server"
	case ClassUnauthorized:
		return "session expired, please login again"
	case ClassForbidden:
		return "you do not have permission to access this resource"
	case ClassNotFound:
		return "resource not found"
	case ClassServerError:
		return "server error, please try again later"
	case ClassTimeout:
		return "request timed out"
	}
	return "request failed"
}

func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusUnauthorized:
		return ClassUnauthorized
	case status == http.StatusForbidden:
		return ClassForbidden
	case status == http.StatusNotFound:
		return ClassNotFound
	case status >= 500:
		return ClassServerError
	default:
		return ClassClientError
	}
}

func newStatusError(status int, detail string) *Error {
	class := classifyStatus(status)
	return &Error{
		Class:   class,
		Status:  status,
		Message: classMessage(class),
		Detail:  detail,
	}
}

func classifyTransport(err error) *Error {
	class := ClassNetworkUnavailable
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) {
		class = ClassTimeout
	} else if errors.As(err, &netErr) && netErr.Timeout() {
		class = ClassTimeout
	}
	return &Error{Class: class, Message: classMessage(class)}
}
