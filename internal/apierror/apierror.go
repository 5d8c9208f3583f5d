// Package apierror reduces every failure the gateway can see into a closed
// taxonomy with user-facing copy. It is the only place error text for end users
// is produced.
package apierror

import (
	"fmt"
	"net/http"
)

// Kind is the machine-readable error class.
type Kind string

const (
	KindNetwork Kind = "NETWORK_ERROR"
	KindTimeout Kind = "TIMEOUT_ERROR"
	KindClient  Kind = "CLIENT_ERROR"
	KindServer  Kind = "SERVER_ERROR"
	KindParse   Kind = "PARSE_ERROR"
	KindUnknown Kind = "UNKNOWN_ERROR"
)

// Resource names the thing a request was about; it only changes copy.
type Resource string

const (
	ResourceNone  Resource = ""
	ResourceTask  Resource = "task"
	ResourceClaim Resource = "claim"
	ResourceMap   Resource = "map"
)

// Error is a classified error.
type Error struct {
	Kind       Kind
	StatusCode int // upstream HTTP status, 0 when none
	Message    string
	Suggestion string
	Resource   Resource
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Title is the headline for the error's kind.
func (e *Error) Title() string { return Title(e.Kind) }

// Transient reports whether repeating the request may succeed.
func (e *Error) Transient() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout, KindServer:
		return true
	}
	return false
}

// NotFound reports a 404 from upstream.
func (e *Error) NotFound() bool {
	return e.Kind == KindClient && e.StatusCode == http.StatusNotFound
}

// New builds a classified error with the kind's default suggestion.
func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Suggestion: DefaultSuggestion(kind), Err: err}
}

// BadRequest is a CLIENT_ERROR for gateway-side input validation.
func BadRequest(message string, err error) *Error {
	e := New(KindClient, message, err)
	e.StatusCode = http.StatusBadRequest
	return e
}

// StatusError is a non-2xx response from the task API.
type StatusError struct {
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("upstream responded %d %s: %s", e.Code, e.Status, e.Body)
	}
	return fmt.Sprintf("upstream responded %d %s", e.Code, e.Status)
}

// ParseFailure marks a response body that could not be decoded.
type ParseFailure struct {
	Err error
}

func (e *ParseFailure) Error() string { return "decode response: " + e.Err.Error() }
func (e *ParseFailure) Unwrap() error { return e.Err }

// Denied is a CLIENT_ERROR for a gateway request that failed authentication
// (401) or authorization (403).
func Denied(status int, message string) *Error {
	e := New(KindClient, message, nil)
	e.StatusCode = status
	e.Suggestion = "請重新登入後再試"
	return e
}
