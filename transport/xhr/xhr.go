// Package xhr adapts an XMLHttpRequest-like object to transport.Transport.
//
// The XHR object itself is supplied by the host, for example a syscall/js
// binding in a WebAssembly build. The browser follows redirects and
// decompresses bodies on its own, so this transport only ever reports the
// final response.
package xhr

import (
	"bytes"
	"io"
	"net/http"

	"github.com/wesleyorama2/volley/transport"
)

// StateDone is the readyState of a completed request.
const StateDone = 4

// XHR is the subset of XMLHttpRequest the transport drives.
type XHR interface {
	Open(method, url string)
	SetRequestHeader(field, value string)
	SetWithCredentials(bool)

	// SetResponseType selects "text" or "arraybuffer".
	SetResponseType(string)

	OnReadyStateChange(func())
	OnUploadProgress(func(loaded, total int64))

	Send(body []byte)
	Abort()

	ReadyState() int
	Status() int
	GetAllResponseHeaders() string
	Response() []byte
}

// Factory creates a fresh XHR for each call.
type Factory func() XHR

// Transport opens one XHR per call.
type Transport struct {
	newXHR Factory
}

// New returns a Transport that obtains XHR objects from f.
func New(f Factory) *Transport {
	return &Transport{newXHR: f}
}

// Open implements transport.Transport.
func (t *Transport) Open(req *transport.Request, l transport.Listener) transport.Handle {
	x := t.newXHR()

	if req.WithCredentials {
		x.SetWithCredentials(true)
	}
	if req.Binary {
		x.SetResponseType("arraybuffer")
	}

	x.OnReadyStateChange(func() {
		if x.ReadyState() != StateDone {
			return
		}
		status := x.Status()
		if status == 0 {
			l.Respond(&transport.Response{Header: make(http.Header), Body: http.NoBody, URL: req.URL})
			return
		}
		l.Respond(&transport.Response{
			StatusCode: status,
			Header:     transport.ParseHeaderText(x.GetAllResponseHeaders()),
			Body:       io.NopCloser(bytes.NewReader(x.Response())),
			URL:        req.URL,
		})
	})

	x.OnUploadProgress(func(loaded, total int64) {
		l.Notify(transport.Progress{Direction: transport.Upload, Loaded: loaded, Total: total})
	})

	x.Open(req.Method, req.URL.String())
	for field, values := range req.Header {
		for _, v := range values {
			x.SetRequestHeader(field, v)
		}
	}
	x.Send(req.Body)

	return transport.HandleFunc(x.Abort)
}
