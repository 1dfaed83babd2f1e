package http

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// ErrAborted is the failure of a request aborted by its caller while in
// flight, or consumed after being aborted.
var ErrAborted = errors.New("request aborted")

// ErrAlreadyStarted is logged when a request is changed after execution has
// started. The change is ignored.
var ErrAlreadyStarted = errors.New("request already started")

// TransportError is a network or socket failure reported by the transport.
// It is never retried.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// TimeoutError reports that the request was aborted because its timeout
// elapsed before a response arrived.
type TimeoutError struct {
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout of %dms exceeded", e.Elapsed.Milliseconds())
}

// Timeout lets callers treat the error like a net.Error.
func (e *TimeoutError) Timeout() bool { return true }

// CrossOriginError reports a status-less response that was not caused by an
// abort, which browsers produce when the origin policy blocks the call.
type CrossOriginError struct {
	URL string
}

func (e *CrossOriginError) Error() string {
	return "origin is not allowed by Access-Control-Allow-Origin: " + e.URL
}

// RedirectPolicyError reports a redirect that could not be followed: the
// method is not redirectable, the response has no usable Location, or the
// redirect limit was reached. In the last case Response holds the redirect
// response that was not followed.
type RedirectPolicyError struct {
	Method   string
	Response *Response
	Reason   string
}

func (e *RedirectPolicyError) Error() string {
	if e.Response != nil {
		return fmt.Sprintf("%s: stopped at %s from %s", e.Reason, e.Response.Status, e.Response.URL)
	}
	return e.Reason
}

// RedirectLoopError reports a redirect to a URL already present in the
// redirect trail.
type RedirectLoopError struct {
	URL   string
	Trail []string
}

func (e *RedirectLoopError) Error() string {
	return "infinite redirect loop detected at " + e.URL
}

// ProtocolStatusError is returned instead of a body when the final response
// has a client or server error status.
type ProtocolStatusError struct {
	Response *Response
}

func (e *ProtocolStatusError) Error() string {
	return e.Response.Status
}

// StatusCode returns the status code of the offending response.
func (e *ProtocolStatusError) StatusCode() int { return e.Response.StatusCode }

// DeserializationError reports that the parser selected for the response
// content type rejected the body.
type DeserializationError struct {
	ContentType string
	Err         error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("parsing %s body: %v", e.ContentType, e.Err)
}

func (e *DeserializationError) Unwrap() error { return e.Err }
