// Package transport defines the narrow contract between the request engine
// and whatever actually moves bytes: a socket-based HTTP client or a browser
// XHR-like object.
package transport

import (
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Request is a single transport call. Redirect hops are separate calls.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte

	// WithCredentials asks the transport to send and store cookies for
	// this call.
	WithCredentials bool

	// Binary asks for the body as raw bytes rather than decoded text,
	// where the transport makes a difference.
	Binary bool
}

// Response is the raw outcome of a transport call. A zero StatusCode means
// the transport completed without a status, which browsers report for
// blocked cross-origin calls and aborted requests.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
	URL        *url.URL
}

// Direction tells whether a progress notification is about the request body
// or the response body.
type Direction int

const (
	Upload Direction = iota
	Download
)

func (d Direction) String() string {
	if d == Upload {
		return "upload"
	}
	return "download"
}

// Progress reports bytes transferred so far. Total is -1 when unknown.
type Progress struct {
	Direction Direction
	Loaded    int64
	Total     int64
}

// Percent returns Loaded as a percentage of Total, or 0 when Total is unknown.
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Loaded) / float64(p.Total) * 100
}

// Listener receives the notifications of one transport call. OnResponse and
// OnError are mutually exclusive in a well-behaved transport, but receivers
// must tolerate either arriving after the call was aborted.
type Listener struct {
	OnResponse func(*Response)
	OnError    func(error)
	OnProgress func(Progress)
}

// Respond delivers res to the listener, if it has a response callback.
func (l Listener) Respond(res *Response) {
	if l.OnResponse != nil {
		l.OnResponse(res)
	}
}

// Fail delivers err to the listener, if it has an error callback.
func (l Listener) Fail(err error) {
	if l.OnError != nil {
		l.OnError(err)
	}
}

// Notify delivers p to the listener, if it has a progress callback.
func (l Listener) Notify(p Progress) {
	if l.OnProgress != nil {
		l.OnProgress(p)
	}
}

// Handle controls an in-flight call.
type Handle interface {
	// Abort cancels the call. It is safe to call more than once and from
	// within a listener callback.
	Abort()
}

// HandleFunc adapts a function to Handle.
type HandleFunc func()

// Abort calls f.
func (f HandleFunc) Abort() { f() }

// Transport starts calls. Open must not block on network I/O; outcomes are
// reported through the listener, possibly before Open returns.
type Transport interface {
	Open(req *Request, l Listener) Handle
}

// ParseHeaderText parses the CRLF separated header block returned by an
// XHR-like getAllResponseHeaders into an http.Header.
func ParseHeaderText(text string) http.Header {
	header := make(http.Header)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		i := strings.IndexByte(line, ':')
		if i <= 0 {
			continue
		}
		field := strings.ToLower(strings.TrimSpace(line[:i]))
		header.Add(field, strings.TrimSpace(line[i+1:]))
	}
	return header
}
