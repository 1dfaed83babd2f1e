package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/wesleyorama2/volley/transport"
)

// Response starts the request if needed and waits for the final response.
// Error statuses are returned as responses; ctx only bounds the wait.
func (r *Request) Response(ctx context.Context) (*Response, error) {
	return r.response.Read(ctx)
}

// Read starts the request if needed and waits for the parsed body. A 4xx
// or 5xx response fails with a ProtocolStatusError.
func (r *Request) Read(ctx context.Context) (any, error) {
	return r.result.Read(ctx)
}

// ReadInto waits for the response and decodes its JSON body into v. A
// *string or *[]byte receives the raw body.
func (r *Request) ReadInto(ctx context.Context, v any) error {
	res, err := r.response.Read(ctx)
	if err != nil {
		return err
	}
	if res.StatusClass >= 4 {
		return &ProtocolStatusError{Response: res}
	}
	data, err := res.GetBody()
	if err != nil {
		return &TransportError{Err: err}
	}

	switch v := v.(type) {
	case *[]byte:
		*v = data
		return nil
	case *string:
		*v = string(data)
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &DeserializationError{ContentType: res.ContentType, Err: err}
	}
	return nil
}

// Pipe waits for the response and copies its body to w.
func (r *Request) Pipe(ctx context.Context, w io.Writer) (int64, error) {
	res, err := r.response.Read(ctx)
	if err != nil {
		return 0, err
	}
	if res.StatusClass >= 4 {
		return 0, &ProtocolStatusError{Response: res}
	}
	if res.parsed {
		n, err := w.Write(res.rawBody)
		return int64(n), errors.Wrap(err, "writing response body")
	}

	defer res.Body.Close()
	n, err := io.Copy(w, res.Body)
	return n, errors.Wrap(err, "copying response body")
}

// Then starts the request if needed and registers callbacks for the parsed
// body. Callbacks run on the goroutine that completes the request.
func (r *Request) Then(onValue func(any), onError func(error)) *Request {
	r.result.Then(onValue, onError)
	return r
}

// End writes any final chunks of raw body and starts the request without
// waiting for it.
func (r *Request) End(data ...[]byte) *Request {
	for _, chunk := range data {
		_, _ = r.Write(chunk)
	}
	r.response.Start()
	return r
}

// Abort cancels the request. An in-flight request fails with ErrAborted; a
// request that has not started fails with ErrAborted once consumed.
func (r *Request) Abort() *Request {
	r.mu.Lock()
	if r.aborted {
		r.mu.Unlock()
		return r
	}
	r.aborted = true
	started := r.started
	handle := r.handle
	timer := r.timer
	r.timer = nil
	r.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if started && r.response.Error(ErrAborted) {
		r.log.Debug("request aborted")
	}
	if handle != nil {
		handle.Abort()
	}
	r.emit(Event{Kind: EventAbort, Method: r.method, URL: r.URL()})
	return r
}

func (r *Request) start() {
	r.mu.Lock()
	r.started = true
	aborted := r.aborted
	r.mu.Unlock()

	if aborted {
		r.response.Error(ErrAborted)
		return
	}
	if r.err != nil {
		r.fail(r.err)
		return
	}

	contentType := r.headerValue("Content-Type")
	body, err := r.client.env.SerializeBody(r.method, contentType, r.data, r.client.registry)
	if err != nil {
		r.fail(err)
		return
	}

	header := make(http.Header, len(r.header))
	for field, value := range r.header {
		header[field] = []string{value}
	}

	r.startTimer()
	r.open(&transport.Request{
		Method:          r.method,
		URL:             r.target(),
		Header:          header,
		Body:            body,
		WithCredentials: r.withCredentials,
		Binary:          r.responseKind == ResponseBinary,
	})
}

func (r *Request) startTimer() {
	if r.timeout <= 0 {
		return
	}
	r.mu.Lock()
	r.timer = r.client.clock.AfterFunc(r.timeout, r.expire)
	r.mu.Unlock()
}

func (r *Request) stopTimer() {
	r.mu.Lock()
	timer := r.timer
	r.timer = nil
	r.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
}

func (r *Request) expire() {
	r.mu.Lock()
	if r.aborted || r.response.Settled() {
		r.mu.Unlock()
		return
	}
	r.aborted = true
	r.timer = nil
	handle := r.handle
	r.mu.Unlock()

	if r.response.Error(&TimeoutError{Elapsed: r.timeout}) {
		r.log.Debug("request timed out", "timeout", r.timeout)
	}
	if handle != nil {
		handle.Abort()
	}
	r.emit(Event{Kind: EventAbort, Method: r.method, URL: r.URL()})
}

// open issues one transport call. Transports may deliver the outcome before
// Open returns, so no lock is held across the call.
func (r *Request) open(call *transport.Request) {
	r.mu.Lock()
	r.hop++
	hop := r.hop
	r.mu.Unlock()

	r.log.Debug("opening request", "method", call.Method, "url", call.URL.Redacted())
	r.emit(Event{Kind: EventOpen, Method: call.Method, URL: call.URL.String()})

	handle := r.client.env.Transport().Open(call, transport.Listener{
		OnResponse: func(res *transport.Response) { r.receive(call, res) },
		OnError:    r.failed,
		OnProgress: func(p transport.Progress) {
			r.emit(Event{Kind: EventProgress, Method: call.Method, URL: call.URL.String(), Progress: p})
		},
	})

	r.mu.Lock()
	if r.hop != hop {
		r.mu.Unlock()
		return
	}
	r.handle = handle
	aborted := r.aborted
	r.mu.Unlock()

	if aborted {
		handle.Abort()
	}
}

func (r *Request) receive(call *transport.Request, raw *transport.Response) {
	r.mu.Lock()
	aborted := r.aborted
	r.mu.Unlock()

	if r.response.Settled() {
		discard(raw.Body)
		return
	}

	if raw.StatusCode == 0 {
		discard(raw.Body)
		if aborted {
			r.response.Error(&TimeoutError{Elapsed: r.timeout})
			return
		}
		r.fail(&CrossOriginError{URL: call.URL.String()})
		return
	}
	if aborted {
		discard(raw.Body)
		return
	}

	if isRedirect(raw.StatusCode) {
		r.redirect(call, raw)
		return
	}

	decoded, err := r.client.env.DecodeResponse(raw)
	if err != nil {
		discard(raw.Body)
		r.fail(&TransportError{Err: err})
		return
	}

	res := Normalize(decoded.StatusCode, decoded.Header, decoded.Body)
	res.URL = call.URL
	if decoded.URL != nil {
		res.URL = decoded.URL
	}
	res.Body = r.trackDownload(call, res)

	r.mu.Lock()
	r.last = res
	r.mu.Unlock()

	r.stopTimer()
	r.emit(Event{Kind: EventResponse, Method: call.Method, URL: res.URL.String(), Response: res})
	if !r.response.Write(res) {
		discard(res.Body)
		return
	}
	r.log.Debug("request completed", "method", call.Method, "url", res.URL.Redacted(), "status", res.StatusCode)
}

func (r *Request) redirect(call *transport.Request, raw *transport.Response) {
	discard(raw.Body)
	res := Normalize(raw.StatusCode, raw.Header, nil)
	res.URL = call.URL

	r.log.Debug("redirected", "url", call.URL.Redacted(), "status", res.StatusCode, "location", res.GetHeader("Location"))
	r.emit(Event{Kind: EventRedirect, Method: call.Method, URL: call.URL.String(), Response: res})

	if r.method != http.MethodGet && r.method != http.MethodHead {
		r.fail(&RedirectPolicyError{
			Method: r.method,
			Reason: "cannot follow a redirect for " + r.method,
		})
		return
	}

	r.mu.Lock()
	followed := len(r.redirects)
	r.mu.Unlock()
	if followed >= r.maxRedirects {
		r.mu.Lock()
		r.last = res
		r.mu.Unlock()
		r.fail(&RedirectPolicyError{
			Method:   r.method,
			Response: res,
			Reason:   "too many redirects (" + strconv.Itoa(followed) + ")",
		})
		return
	}

	location := res.GetHeader("Location")
	if location == "" {
		r.fail(&RedirectPolicyError{Method: r.method, Reason: "redirect without Location"})
		return
	}
	next, err := resolveLocation(call.URL, location)
	if err != nil {
		r.fail(&RedirectPolicyError{Method: r.method, Reason: err.Error()})
		return
	}

	href := next.String()
	r.mu.Lock()
	loop := slices.Contains(r.redirects, href)
	if !loop {
		r.redirects = append(r.redirects, href)
	}
	trail := slices.Clone(r.redirects)
	r.mu.Unlock()
	if loop {
		r.fail(&RedirectLoopError{URL: href, Trail: trail})
		return
	}

	r.open(&transport.Request{
		Method:          http.MethodGet,
		URL:             next,
		Header:          call.Header.Clone(),
		WithCredentials: call.WithCredentials,
		Binary:          call.Binary,
	})
}

// resolveLocation makes a Location value absolute. Values without a scheme
// take the current scheme, and bare paths the current host.
func resolveLocation(current *url.URL, location string) (*url.URL, error) {
	if !strings.Contains(location, "://") {
		if !strings.HasPrefix(location, "/") {
			ref, err := url.Parse(location)
			if err != nil {
				return nil, errors.Wrapf(err, "parsing Location %q", location)
			}
			return current.ResolveReference(ref), nil
		}
		if !strings.HasPrefix(location, "//") {
			location = "//" + current.Host + location
		}
		location = current.Scheme + ":" + location
	}
	u, err := url.Parse(location)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing Location %q", location)
	}
	return u, nil
}

func (r *Request) failed(err error) {
	r.mu.Lock()
	aborted := r.aborted
	r.mu.Unlock()

	if aborted {
		r.response.Error(&TimeoutError{Elapsed: r.timeout})
		return
	}
	r.fail(&TransportError{Err: err})
}

// fail settles the response with err and stops the timer.
func (r *Request) fail(err error) {
	r.stopTimer()
	if r.response.Error(err) {
		r.log.Debug("request failed", "method", r.method, "error", err)
	}
}

func (r *Request) resolveBody(res *Response) (any, error) {
	if res.StatusClass >= 4 {
		return nil, &ProtocolStatusError{Response: res}
	}
	data, err := res.GetBody()
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	parse := r.parser
	if parse == nil {
		parse, _ = r.client.registry.Parser(res.ContentType)
	}
	if parse == nil || len(data) == 0 {
		if r.responseKind == ResponseBinary {
			return data, nil
		}
		return string(data), nil
	}

	v, err := parse(data)
	if err != nil {
		return nil, &DeserializationError{ContentType: res.ContentType, Err: err}
	}
	return v, nil
}

func (r *Request) trackDownload(call *transport.Request, res *Response) io.ReadCloser {
	total, err := strconv.ParseInt(res.GetHeader("Content-Length"), 10, 64)
	if err != nil {
		total = -1
	}
	return &progressBody{
		ReadCloser: res.Body,
		total:      total,
		notify: func(p transport.Progress) {
			r.emit(Event{Kind: EventProgress, Method: call.Method, URL: res.URL.String(), Progress: p})
		},
	}
}

type progressBody struct {
	io.ReadCloser
	loaded int64
	total  int64
	notify func(transport.Progress)
}

func (p *progressBody) Read(b []byte) (int, error) {
	n, err := p.ReadCloser.Read(b)
	if n > 0 {
		p.loaded += int64(n)
		p.notify(transport.Progress{Direction: transport.Download, Loaded: p.loaded, Total: p.total})
	}
	return n, err
}

func discard(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4<<10))
	_ = body.Close()
}
