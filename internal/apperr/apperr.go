// Package apperr defines the error taxonomy shared by the submission,
// classification and provisioning flows, and its mapping onto HTTP.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

type Kind int

const (
	// KindConfig marks a missing or invalid external credential.
	KindConfig Kind = iota + 1
	KindValidation
	// KindExternal covers network or service failures of a collaborator.
	KindExternal
	// KindRefusal is a classifier verdict that the content is not a civic issue.
	KindRefusal
	KindNotFound
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindValidation:
		return "validation"
	case KindExternal:
		return "external"
	case KindRefusal:
		return "refusal"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	}
	return "unknown"
}

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func Config(code, message string) *Error {
	return &Error{Kind: KindConfig, Code: code, Message: message}
}

func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// External wraps err with a generic user-facing message.
func External(code, message string, err error) *Error {
	return &Error{Kind: KindExternal, Code: code, Message: message, Err: err}
}

func Refusal(reason string) *Error {
	return &Error{Kind: KindRefusal, Code: "not_civic_issue", Message: reason}
}

func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Code: "unauthorized", Message: message}
}

// RateLimitedError is a validation failure carrying the remaining wait.
type RateLimitedError struct {
	Wait time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: try again in %ds", WaitSeconds(e.Wait))
}

// WaitSeconds rounds d up to whole seconds.
func WaitSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return KindValidation
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps err onto a response status code.
func HTTPStatus(err error) int {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return http.StatusTooManyRequests
	}
	switch KindOf(err) {
	case KindConfig:
		return http.StatusServiceUnavailable
	case KindValidation:
		return http.StatusBadRequest
	case KindExternal:
		return http.StatusBadGateway
	case KindRefusal:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// Message returns the user-facing text for err.
func Message(err error) string {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return fmt.Sprintf("You're submitting too fast. Please wait %d seconds.", WaitSeconds(rl.Wait))
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Something went wrong. Please try again."
}
