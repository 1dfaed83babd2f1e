// Package socket implements transport.Transport on top of net/http.
//
// Redirects are never followed here and response bodies are never
// decompressed: both are the engine's job, so the client is configured with
// redirects disabled and compression turned off.
package socket

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/publicsuffix"

	"github.com/wesleyorama2/volley/transport"
)

// Transport performs each call as a single net/http round trip on its own
// goroutine. Transport is safe for concurrent use.
type Transport struct {
	client *http.Client

	// jarClient shares client's round tripper but stores cookies; it is
	// used for calls made in credentials mode.
	jarClient *http.Client

	logger *slog.Logger
}

// Option configures a Transport.
type Option func(*Transport)

// WithHTTPClient uses a copy of c for round trips. The copy's redirect policy
// is replaced so that redirect responses are handed back to the engine; c's
// round tripper is used as is, so it should have compression disabled.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) {
		cc := *c
		t.client = &cc
	}
}

// WithInsecureSkipVerify disables TLS certificate verification.
// WARNING: This should only be used for testing purposes.
func WithInsecureSkipVerify() Option {
	return func(t *Transport) {
		t.client.Transport = &http.Transport{
			Proxy:              http.ProxyFromEnvironment,
			DisableCompression: true,
			TLSClientConfig:    &tls.Config{InsecureSkipVerify: true},
		}
	}
}

// WithDialTimeout bounds the time spent establishing each connection.
func WithDialTimeout(d time.Duration) Option {
	return func(t *Transport) {
		t.client.Transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DisableCompression:  true,
			TLSHandshakeTimeout: d,
			DialContext:         (&net.Dialer{Timeout: d, KeepAlive: 30 * time.Second}).DialContext,
		}
	}
}

// WithLogger sets the logger used for transport level diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

// New creates a Transport with the given options.
func New(options ...Option) *Transport {
	t := &Transport{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:              http.ProxyFromEnvironment,
				DisableCompression: true,
			},
		},
		logger: slog.New(slog.DiscardHandler),
	}

	for _, option := range options {
		option(t)
	}

	t.client.CheckRedirect = noRedirect

	// cookiejar.New never returns an error.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	t.jarClient = &http.Client{
		Transport:     t.client.Transport,
		CheckRedirect: noRedirect,
		Jar:           jar,
	}

	return t
}

func noRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

// Open implements transport.Transport.
func (t *Transport) Open(req *transport.Request, l transport.Listener) transport.Handle {
	ctx, cancel := context.WithCancel(context.Background())
	go t.roundTrip(ctx, req, l)
	return transport.HandleFunc(cancel)
}

func (t *Transport) roundTrip(ctx context.Context, req *transport.Request, l transport.Listener) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = &progressReader{
			r:     bytes.NewReader(req.Body),
			total: int64(len(req.Body)),
			l:     l,
		}
	}

	hreq, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), body)
	if err != nil {
		l.Fail(errors.Wrap(err, "building request"))
		return
	}
	if req.Header != nil {
		hreq.Header = req.Header.Clone()
	}
	if body != nil {
		hreq.ContentLength = int64(len(req.Body))
	}

	client := t.client
	if req.WithCredentials {
		client = t.jarClient
	}

	t.logger.Debug("round trip", "method", req.Method, "url", req.URL.String())

	res, err := client.Do(hreq)
	if err != nil {
		l.Fail(errors.Wrapf(err, "%s %s", req.Method, req.URL.Redacted()))
		return
	}

	l.Respond(&transport.Response{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       res.Body,
		URL:        req.URL,
	})
}

// progressReader reports upload progress as the request body is consumed.
type progressReader struct {
	r      io.Reader
	total  int64
	loaded int64
	l      transport.Listener
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.loaded += int64(n)
		p.l.Notify(transport.Progress{
			Direction: transport.Upload,
			Loaded:    p.loaded,
			Total:     p.total,
		})
	}
	return n, err
}
