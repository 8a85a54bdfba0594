package assist

import (
	"fmt"
	"net/http"
)

// Kind classifies a dispatch failure.
type Kind int

const (
	// KindClient is a bad request: unknown action, malformed body.
	KindClient Kind = iota + 1
	// KindConfig means a required credential is missing.
	KindConfig
	// KindUpstream is a non-success reply from the completion service.
	KindUpstream
	// KindInternal is anything else that went wrong while serving the request.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindClient:
		return "client"
	case KindConfig:
		return "config"
	case KindUpstream:
		return "upstream"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is returned by the dispatcher and translator. Message is safe to show
// to the caller as-is.
type Error struct {
	Kind    Kind
	Message string
	// UpstreamStatus is the HTTP status of the completion service (KindUpstream only).
	UpstreamStatus int
	Err            error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the error kind onto the status returned to the caller.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindClient:
		return http.StatusBadRequest
	case KindConfig:
		return http.StatusServiceUnavailable
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// upstreamExcerptLimit caps how much of an upstream error body is echoed back.
const upstreamExcerptLimit = 300

func upstreamError(status int, body []byte) *Error {
	return &Error{
		Kind:           KindUpstream,
		UpstreamStatus: status,
		Message:        fmt.Sprintf("OpenRouter HTTP %d: %s", status, excerpt(string(body), upstreamExcerptLimit)),
	}
}

func internalError(err error) *Error {
	return &Error{
		Kind:    KindInternal,
		Message: "Internal error: " + err.Error(),
		Err:     err,
	}
}

// excerpt returns at most n runes of s.
func excerpt(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
