// Package apierr classifies failed upstream calls into a single error taxonomy.
//
// Classification runs in two stages. The transport stage looks at what the
// HTTP exchange produced (no request, no response, or a non-2xx status). The
// payload stage inspects a nominally successful 2xx body for an application
// error encoded the way a given provider encodes it, and re-routes it through
// the transport stage as if the status had been returned on the wire.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// Kind is the category of an upstream failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindRateLimited
	KindServerError
	KindNoResponse
	KindRequestSetup
	KindUpstreamApplication
)

var kindNames = map[Kind]string{
	KindUnknown:             "unknown",
	KindBadRequest:          "bad_request",
	KindUnauthorized:        "unauthorized",
	KindForbidden:           "forbidden",
	KindNotFound:            "not_found",
	KindConflict:            "conflict",
	KindRateLimited:         "rate_limited",
	KindServerError:         "server_error",
	KindNoResponse:          "no_response",
	KindRequestSetup:        "request_setup_failure",
	KindUpstreamApplication: "upstream_application_error",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// MarshalText renders the kind by name in JSON payloads.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Notification codes for failures that carry no HTTP status.
const (
	CodeNoResponse     = "no_response"
	CodeRequestSetup   = "err_in_request"
	CodeUpstreamFormat = "malformed_response"
)

// Error describes a classified upstream failure.
type Error struct {
	Kind Kind
	// Status is the HTTP status, either from the wire or embedded in the payload. Zero when none.
	Status int
	// Message is the provider message or a description of the pipeline failure.
	Message string
	// Code is the provider's own error code when it sent one (e.g. "apiKeyInvalid").
	Code string
	// Err is the underlying cause for pipeline failures.
	Err error
}

func (e *Error) Error() string {
	return e.label() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus returns the status the error was classified from, if any.
func (e *Error) HTTPStatus() (int, bool) {
	return e.Status, e.Status != 0
}

// Temporary reports whether a later identical call may succeed.
func (e *Error) Temporary() bool {
	switch e.Kind {
	case KindRateLimited, KindServerError, KindNoResponse:
		return true
	}
	return false
}

// NotifyCode is the de-duplication key reported to the notifier.
func (e *Error) NotifyCode() string {
	switch {
	case e.Status != 0:
		return strconv.Itoa(e.Status)
	case e.Kind == KindNoResponse:
		return CodeNoResponse
	case e.Kind == KindRequestSetup:
		return CodeRequestSetup
	case e.Code != "":
		return e.Code
	}
	return e.Kind.String()
}

func (e *Error) label() string {
	switch e.Kind {
	case KindBadRequest:
		return "Bad Request"
	case KindUnauthorized:
		return "Unauthorized"
	case KindForbidden:
		return "Forbidden"
	case KindNotFound:
		return "Not Found"
	case KindConflict:
		return "Api request limit reached"
	case KindRateLimited:
		return "Too Many Requests"
	case KindServerError:
		if e.Status != 0 {
			return http.StatusText(e.Status)
		}
		return "Internal Server Error"
	case KindNoResponse:
		return "No response"
	case KindRequestSetup:
		return "Error in request setup"
	case KindUpstreamApplication:
		if e.Code != "" {
			return "Upstream error " + e.Code
		}
		return "Upstream error"
	}
	return "HTTP Error"
}

// KindFromStatus maps an HTTP status to its kind. 2xx statuses map to KindUnknown.
func KindFromStatus(status int) Kind {
	switch {
	case status == http.StatusBadRequest:
		return KindBadRequest
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500 && status <= 599:
		return KindServerError
	case status >= 200 && status <= 299:
		return KindUnknown
	}
	return KindUpstreamApplication
}

// KindOf returns the kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Notifier receives one report per classified error for user-facing display.
type Notifier interface {
	Notify(message, code string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message, code string)

func (f NotifierFunc) Notify(message, code string) { f(message, code) }

type discardNotifier struct{}

func (discardNotifier) Notify(string, string) {}

// Classifier produces *Error values and reports each one to its notifier.
type Classifier struct {
	notifier Notifier
}

// NewClassifier returns a classifier reporting to n. A nil n discards reports.
func NewClassifier(n Notifier) *Classifier {
	if n == nil {
		n = discardNotifier{}
	}
	return &Classifier{notifier: n}
}

// Status classifies a non-2xx HTTP status with the message extracted from the body.
func (c *Classifier) Status(status int, message string) *Error {
	if message == "" {
		message = http.StatusText(status)
	}
	if message == "" {
		message = fmt.Sprintf("unexpected status code: %d", status)
	}
	return c.report(&Error{Kind: KindFromStatus(status), Status: status, Message: message})
}

// NoResponse classifies a request that was sent but produced no response.
func (c *Classifier) NoResponse(err error) *Error {
	return c.report(&Error{Kind: KindNoResponse, Message: "No response received from server", Err: err})
}

// Setup classifies a request that could not be built or sent.
func (c *Classifier) Setup(err error) *Error {
	msg := "request could not be constructed"
	if err != nil {
		msg = err.Error()
	}
	return c.report(&Error{Kind: KindRequestSetup, Message: msg, Err: err})
}

// Application classifies an application error that carries no usable HTTP status.
func (c *Classifier) Application(code, message string) *Error {
	if message == "" {
		message = "An unknown error occurred in the upstream API"
	}
	return c.report(&Error{Kind: KindUpstreamApplication, Code: code, Message: message})
}

// Payload runs check over a 2xx body. It returns nil when the body encodes no error.
func (c *Classifier) Payload(check PayloadCheck, body []byte) *Error {
	if check == nil {
		return nil
	}
	f, err := check(body)
	if err != nil {
		return c.report(&Error{
			Kind:    KindUpstreamApplication,
			Code:    CodeUpstreamFormat,
			Message: "malformed response body",
			Err:     err,
		})
	}
	if f == nil {
		return nil
	}
	if f.Status != 0 && f.Status != http.StatusOK {
		e := c.Status(f.Status, f.Message)
		e.Code = f.Code
		return e
	}
	return c.Application(f.Code, f.Message)
}

func (c *Classifier) report(e *Error) *Error {
	c.notifier.Notify(e.Error(), e.NotifyCode())
	return e
}
