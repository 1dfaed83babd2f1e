package http

import (
	"fmt"
	"net/url"
	"runtime"
	"strings"

	"github.com/pkg/errors"

	"github.com/wesleyorama2/volley/internal/encoding"
	"github.com/wesleyorama2/volley/mime"
	"github.com/wesleyorama2/volley/transport"
	"github.com/wesleyorama2/volley/transport/socket"
	"github.com/wesleyorama2/volley/transport/xhr"
)

// Version is reported in the socket environment User-Agent.
const Version = "0.1.0"

// Environment supplies the platform dependent parts of a request: URL
// interpretation, default headers, body serialization, the transport and
// response decoding.
type Environment interface {
	ResolveURL(raw string) (*url.URL, error)
	DefaultHeaders(method string) map[string]string
	SerializeBody(method, contentType string, body any, reg *mime.Registry) ([]byte, error)
	Transport() transport.Transport
	DecodeResponse(res *transport.Response) (*transport.Response, error)
}

// SocketEnvironment sends requests over sockets with net/http. It is the
// default environment.
type SocketEnvironment struct {
	transport transport.Transport
}

// NewSocketEnvironment returns a socket environment using t, or a default
// socket transport when t is nil.
func NewSocketEnvironment(t transport.Transport) *SocketEnvironment {
	if t == nil {
		t = socket.New()
	}
	return &SocketEnvironment{transport: t}
}

// ResolveURL adds a missing http:// scheme and a missing localhost host.
// Schemes other than http and https are rejected.
func (e *SocketEnvironment) ResolveURL(raw string) (*url.URL, error) {
	switch {
	case strings.HasPrefix(raw, "//"):
		raw = "http:" + raw
	case !strings.Contains(raw, "://"):
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing url %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("unsupported scheme %q in %q", u.Scheme, raw)
	}
	if u.Hostname() == "" {
		host := "localhost"
		if port := u.Port(); port != "" {
			host += ":" + port
		}
		u.Host = host
	}
	return u, nil
}

// DefaultHeaders returns Accept-Encoding (except for HEAD) and User-Agent.
func (e *SocketEnvironment) DefaultHeaders(method string) map[string]string {
	headers := map[string]string{
		"User-Agent": fmt.Sprintf("volley/%s (%s; %s) %s", Version, runtime.GOOS, runtime.GOARCH, runtime.Version()),
	}
	if method != "HEAD" {
		headers["Accept-Encoding"] = "gzip, deflate"
	}
	return headers
}

// SerializeBody encodes structured bodies with the serializer registered for
// contentType. Strings are sent as is.
func (e *SocketEnvironment) SerializeBody(method, contentType string, body any, reg *mime.Registry) ([]byte, error) {
	return serialize(contentType, body, reg)
}

func (e *SocketEnvironment) Transport() transport.Transport {
	return e.transport
}

// DecodeResponse transparently decodes gzip and deflate bodies. Decoded
// responses lose their Content-Encoding and Content-Length headers.
func (e *SocketEnvironment) DecodeResponse(res *transport.Response) (*transport.Response, error) {
	enc := res.Header.Get("Content-Encoding")
	if !encoding.Supported(enc) {
		return res, nil
	}
	decoded := *res
	decoded.Header = res.Header.Clone()
	decoded.Header.Del("Content-Encoding")
	decoded.Header.Del("Content-Length")
	decoded.Body = encoding.Decode(enc, res.Body)
	return &decoded, nil
}

// BrowserEnvironment sends requests through an XHR-like object. Relative
// URLs resolve against the page location.
type BrowserEnvironment struct {
	transport transport.Transport
	location  *url.URL
}

// NewBrowserEnvironment returns a browser environment that creates XHR
// objects with f and resolves URLs against location.
func NewBrowserEnvironment(f xhr.Factory, location *url.URL) *BrowserEnvironment {
	return &BrowserEnvironment{
		transport: xhr.New(f),
		location:  location,
	}
}

func (e *BrowserEnvironment) ResolveURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing url %q", raw)
	}
	if e.location == nil {
		return u, nil
	}
	return e.location.ResolveReference(u), nil
}

// DefaultHeaders is empty; the browser owns its defaults.
func (e *BrowserEnvironment) DefaultHeaders(string) map[string]string {
	return nil
}

// SerializeBody drops bodies for GET and HEAD.
func (e *BrowserEnvironment) SerializeBody(method, contentType string, body any, reg *mime.Registry) ([]byte, error) {
	if method == "GET" || method == "HEAD" {
		return nil, nil
	}
	return serialize(contentType, body, reg)
}

func (e *BrowserEnvironment) Transport() transport.Transport {
	return e.transport
}

// DecodeResponse returns res unchanged.
func (e *BrowserEnvironment) DecodeResponse(res *transport.Response) (*transport.Response, error) {
	return res, nil
}

func serialize(contentType string, body any, reg *mime.Registry) ([]byte, error) {
	switch body := body.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(body), nil
	}
	fn, ok := reg.Serializer(contentType)
	if !ok {
		return nil, errors.Errorf("no serializer registered for %q", contentType)
	}
	data, err := fn(body)
	if err != nil {
		return nil, errors.Wrapf(err, "serializing %s body", mime.Essence(contentType))
	}
	return data, nil
}
