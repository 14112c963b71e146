// Package apierror defines the error taxonomy shared by the upstream clients,
// the pipeline and the HTTP layer.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation      Kind = "validation"
	KindAuth            Kind = "auth"
	KindForbidden       Kind = "forbidden"
	KindBadRequest      Kind = "bad_request"
	KindTimeout         Kind = "timeout"
	KindServerError     Kind = "server_error"
	KindUnreachable     Kind = "unreachable"
	KindInvalidResponse Kind = "invalid_response"
	KindIncomplete      Kind = "incomplete_response"
	KindUpstreamStatus  Kind = "upstream_status"
	KindNotFound        Kind = "not_found"
	KindInternal        Kind = "internal"
)

var statusByKind = map[Kind]int{
	KindValidation:      http.StatusBadRequest,
	KindAuth:            http.StatusUnauthorized,
	KindForbidden:       http.StatusForbidden,
	KindBadRequest:      http.StatusBadRequest,
	KindTimeout:         http.StatusRequestTimeout,
	KindServerError:     http.StatusInternalServerError,
	KindUnreachable:     http.StatusServiceUnavailable,
	KindInvalidResponse: http.StatusBadGateway,
	KindIncomplete:      http.StatusBadGateway,
	KindUpstreamStatus:  http.StatusBadGateway,
	KindNotFound:        http.StatusNotFound,
	KindInternal:        http.StatusInternalServerError,
}

// Error is a classified failure. UpstreamStatus is the status code returned
// by the remote service, when there was one.
type Error struct {
	Kind           Kind
	Service        string
	UpstreamStatus int
	Message        string
	Err            error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Service == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	if e.UpstreamStatus != 0 {
		return fmt.Sprintf("%s %s (http %d): %s", e.Service, e.Kind, e.UpstreamStatus, msg)
	}
	return fmt.Sprintf("%s %s: %s", e.Service, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Status is the HTTP status suggested to callers for this error.
func (e *Error) Status() int {
	if s, ok := statusByKind[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func New(kind Kind, service, message string) *Error {
	return &Error{Kind: kind, Service: service, Message: message}
}

func Wrap(kind Kind, service string, err error) *Error {
	return &Error{Kind: kind, Service: service, Err: err}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// FromStatus classifies a non-200 upstream status code.
func FromStatus(service string, status int, body string) *Error {
	var kind Kind
	switch status {
	case http.StatusBadRequest:
		kind = KindBadRequest
	case http.StatusUnauthorized:
		kind = KindAuth
	case http.StatusForbidden:
		kind = KindForbidden
	case http.StatusInternalServerError:
		kind = KindServerError
	default:
		kind = KindUpstreamStatus
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return &Error{Kind: kind, Service: service, UpstreamStatus: status, Message: body}
}

func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of a classified error, or KindInternal.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// StatusOf maps any error to an HTTP status.
func StatusOf(err error) int {
	if e, ok := As(err); ok {
		return e.Status()
	}
	return http.StatusInternalServerError
}
