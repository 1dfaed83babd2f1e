// Package transporttest provides a scripted transport for exercising the
// request engine without a network.
package transporttest

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/wesleyorama2/volley/transport"
)

// ErrAborted is delivered to the listener of a held call when it is aborted.
var ErrAborted = errors.New("transporttest: call aborted")

// Reply scripts the outcome of calls to one URL.
type Reply struct {
	Status int
	Header http.Header
	Body   string

	// Err fails the call with a transport error instead of responding.
	Err error

	// Hold keeps the call in flight until Deliver is called for it.
	Hold bool
}

// Call records one transport call.
type Call struct {
	Method  string
	URL     string
	Header  http.Header
	Body    []byte
	Aborted bool

	target   *url.URL
	reply    Reply
	listener transport.Listener
	handled  bool
}

// Transport answers calls from a table of scripted replies keyed by full URL
// or by path. Unknown URLs get a 404. Replies that are not held are delivered
// synchronously from Open.
type Transport struct {
	mu      sync.Mutex
	replies map[string]Reply
	calls   []*Call
}

// New returns an empty Transport.
func New() *Transport {
	return &Transport{replies: make(map[string]Reply)}
}

// Handle scripts the reply for key, a full URL or a path.
func (t *Transport) Handle(key string, r Reply) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replies[key] = r
	return t
}

// Redirect scripts a redirect from key to location.
func (t *Transport) Redirect(key string, status int, location string) *Transport {
	return t.Handle(key, Reply{Status: status, Header: http.Header{"Location": {location}}})
}

// Open implements transport.Transport.
func (t *Transport) Open(req *transport.Request, l transport.Listener) transport.Handle {
	t.mu.Lock()
	reply, ok := t.replies[req.URL.String()]
	if !ok {
		reply, ok = t.replies[req.URL.Path]
	}
	if !ok {
		reply = Reply{Status: http.StatusNotFound, Body: "not found"}
	}
	call := &Call{
		Method:   req.Method,
		URL:      req.URL.String(),
		Header:   req.Header.Clone(),
		Body:     append([]byte(nil), req.Body...),
		target:   req.URL,
		reply:    reply,
		listener: l,
	}
	t.calls = append(t.calls, call)
	t.mu.Unlock()

	if len(req.Body) > 0 {
		n := int64(len(req.Body))
		l.Notify(transport.Progress{Direction: transport.Upload, Loaded: n, Total: n})
	}

	if !reply.Hold {
		t.deliver(call)
	}

	return transport.HandleFunc(func() {
		t.mu.Lock()
		call.Aborted = true
		pending := !call.handled
		call.handled = true
		t.mu.Unlock()
		if pending {
			l.Fail(ErrAborted)
		}
	})
}

// Deliver completes the i-th call with its scripted reply, even if the call
// was aborted, to simulate a response racing an abort.
func (t *Transport) Deliver(i int) {
	t.mu.Lock()
	call := t.calls[i]
	t.mu.Unlock()
	deliver(call)
}

func (t *Transport) deliver(call *Call) {
	t.mu.Lock()
	if call.handled {
		t.mu.Unlock()
		return
	}
	call.handled = true
	t.mu.Unlock()
	deliver(call)
}

func deliver(call *Call) {
	r := call.reply
	if r.Err != nil {
		call.listener.Fail(r.Err)
		return
	}
	header := r.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	call.listener.Respond(&transport.Response{
		StatusCode: r.Status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(r.Body)),
		URL:        call.target,
	})
}

// Calls returns a snapshot of the calls made so far.
func (t *Transport) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Call, len(t.calls))
	for i, c := range t.calls {
		out[i] = *c
	}
	return out
}

// URLs returns the URL of every call made so far, in order.
func (t *Transport) URLs() []string {
	calls := t.Calls()
	urls := make([]string, len(calls))
	for i, c := range calls {
		urls[i] = c.URL
	}
	return urls
}
