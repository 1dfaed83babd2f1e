package http

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/wesleyorama2/volley/deferred"
	"github.com/wesleyorama2/volley/mime"
	"github.com/wesleyorama2/volley/transport"
)

// ResponseKind selects how an unparsed body is returned by Read.
type ResponseKind int

const (
	// ResponseText returns unparsed bodies as a string.
	ResponseText ResponseKind = iota
	// ResponseBinary returns unparsed bodies as []byte.
	ResponseBinary
)

var methods = map[string]bool{
	http.MethodGet:    true,
	http.MethodHead:   true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// Request is a lazily executed HTTP request. It is configured with chained
// builder calls and runs the first time its outcome is asked for through
// Response, Read, ReadInto, Pipe, Then or End.
//
// Builder methods must be called from a single goroutine and are ignored
// once the request has started. Abort, On and the result accessors are safe
// for concurrent use.
type Request struct {
	client *Client
	log    *slog.Logger
	id     string

	method          string
	url             *url.URL
	query           url.Values
	header          map[string]string
	data            any
	timeout         time.Duration
	maxRedirects    int
	withCredentials bool
	responseKind    ResponseKind
	parser          mime.Parser
	err             error

	eventsMu    sync.Mutex
	listeners   []func(Event)
	queue       []Event
	dispatching bool

	mu        sync.Mutex
	started   bool
	aborted   bool
	hop       int
	handle    transport.Handle
	timer     *clock.Timer
	redirects []string
	last      *Response

	response *deferred.Result[*Response]
	result   *deferred.Result[any]
}

func newRequest(c *Client, method, rawURL string) *Request {
	r := &Request{
		client:       c,
		id:           uuid.NewString(),
		method:       method,
		url:          &url.URL{},
		query:        make(url.Values),
		header:       make(map[string]string),
		timeout:      c.timeout,
		maxRedirects: c.maxRedirects,
	}
	r.log = c.logger.With("request_id", r.id)
	r.response = deferred.New(func(*deferred.Result[*Response]) { r.start() })
	r.result = deferred.Map(r.response, r.resolveBody)

	if !methods[method] {
		r.misuse(errors.Errorf("unsupported method %q", method))
	}

	for field, value := range c.env.DefaultHeaders(method) {
		r.setHeader(field, value)
	}
	for field, value := range c.headers {
		r.Set(field, value)
	}

	u, err := c.env.ResolveURL(rawURL)
	if err != nil {
		r.misuse(err)
		return r
	}
	r.query = u.Query()
	u.RawQuery = ""
	if u.User != nil {
		password, _ := u.User.Password()
		r.Auth(u.User.Username(), password)
		u.User = nil
	}
	r.url = u
	return r
}

// misuse records the first builder error. It is reported when the request
// is consumed.
func (r *Request) misuse(err error) {
	if r.err == nil {
		r.err = err
	}
}

// mutable reports whether builder changes are still accepted.
func (r *Request) mutable(op string) bool {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if started {
		r.log.Warn("ignoring change to started request", "op", op, "error", ErrAlreadyStarted)
		return false
	}
	return true
}

// ID returns the request id used in log records.
func (r *Request) ID() string {
	return r.id
}

// Method returns the request method.
func (r *Request) Method() string {
	return r.method
}

// URL returns the target URL including the query string.
func (r *Request) URL() string {
	return r.target().String()
}

func (r *Request) target() *url.URL {
	u := *r.url
	u.RawQuery = r.query.Encode()
	return &u
}

// Body returns the accumulated, not yet serialized body: nil, a string or a
// map[string]any.
func (r *Request) Body() any {
	return r.data
}

// Err returns the first builder error, if any.
func (r *Request) Err() error {
	return r.err
}

// Set sets a header field. Connection management and security sensitive
// fields are ignored.
func (r *Request) Set(field, value string) *Request {
	if !r.mutable("Set") {
		return r
	}
	if IsUnsafeHeader(field) {
		r.log.Debug("ignoring unsafe header", "field", field)
		return r
	}
	r.setHeader(field, value)
	return r
}

// SetHeaders sets every field in headers.
func (r *Request) SetHeaders(headers map[string]string) *Request {
	for field, value := range headers {
		r.Set(field, value)
	}
	return r
}

// Get returns the header value stored under field, matched exactly.
func (r *Request) Get(field string) string {
	return r.header[field]
}

// Header returns a copy of the request headers.
func (r *Request) Header() map[string]string {
	out := make(map[string]string, len(r.header))
	for k, v := range r.header {
		out[k] = v
	}
	return out
}

// setHeader stores value under field, replacing any field that differs
// only in case.
func (r *Request) setHeader(field, value string) {
	for k := range r.header {
		if strings.EqualFold(k, field) {
			delete(r.header, k)
		}
	}
	r.header[field] = value
}

func (r *Request) headerValue(field string) string {
	for k, v := range r.header {
		if strings.EqualFold(k, field) {
			return v
		}
	}
	return ""
}

// Query merges parameters into the query string, replacing existing keys.
// It accepts a raw query string, url.Values, map[string]string,
// map[string][]string and map[string]any.
func (r *Request) Query(v any) *Request {
	if !r.mutable("Query") {
		return r
	}

	var values url.Values
	switch v := v.(type) {
	case string:
		parsed, err := url.ParseQuery(strings.TrimPrefix(v, "?"))
		if err != nil {
			r.misuse(errors.Wrapf(err, "parsing query %q", v))
			return r
		}
		values = parsed
	case url.Values:
		values = v
	case map[string][]string:
		values = v
	case map[string]string:
		values = make(url.Values, len(v))
		for k, s := range v {
			values.Set(k, s)
		}
	case map[string]any:
		parsed, err := url.ParseQuery(mime.Stringify(v))
		if err != nil {
			r.misuse(errors.Wrap(err, "encoding query"))
			return r
		}
		values = parsed
	default:
		r.misuse(errors.Errorf("unsupported query value %T", v))
		return r
	}

	for k, vs := range values {
		r.query[k] = slices.Clone(vs)
	}
	return r
}

// Type sets Content-Type from a MIME type or a short alias like "json" or
// "form".
func (r *Request) Type(token string) *Request {
	return r.setResolved("Type", "Content-Type", token)
}

// Accept sets Accept from a MIME type or a short alias.
func (r *Request) Accept(token string) *Request {
	return r.setResolved("Accept", "Accept", token)
}

func (r *Request) setResolved(op, field, token string) *Request {
	if !r.mutable(op) {
		return r
	}
	resolved := mime.Resolve(token)
	if resolved == "" {
		r.misuse(errors.Errorf("unknown content type %q", token))
		return r
	}
	r.setHeader(field, resolved)
	return r
}

// Send adds to the request body. Strings are appended, joined with "&" when
// the content type is form encoded; the content type defaults to form.
// Structured values are deep merged into the body; the content type
// defaults to JSON. Mixing strings and structured values is an error.
func (r *Request) Send(v any) *Request {
	if !r.mutable("Send") {
		return r
	}

	switch v := v.(type) {
	case nil:
		return r
	case string:
		r.sendString(v)
	case []byte:
		r.sendString(string(v))
	default:
		m, err := toMap(v)
		if err != nil {
			r.misuse(err)
			return r
		}
		if _, ok := r.data.(string); ok {
			r.misuse(errors.New("cannot merge a structured body into a string body"))
			return r
		}
		existing, _ := r.data.(map[string]any)
		r.data = mime.Merge(existing, m)
		if r.headerValue("Content-Type") == "" {
			r.Type("json")
		}
	}
	return r
}

// Write appends p to the raw body without a separator, so a request can be
// the destination of io.Copy. It does not set a content type. Writing after
// the request has started fails with ErrAlreadyStarted.
func (r *Request) Write(p []byte) (int, error) {
	if !r.mutable("Write") {
		return 0, ErrAlreadyStarted
	}
	if _, ok := r.data.(map[string]any); ok {
		err := errors.New("cannot write raw bytes to a structured body")
		r.misuse(err)
		return 0, err
	}
	current, _ := r.data.(string)
	r.data = current + string(p)
	return len(p), nil
}

func (r *Request) sendString(s string) {
	if _, ok := r.data.(map[string]any); ok {
		r.misuse(errors.New("cannot append a string body to a structured body"))
		return
	}
	contentType := r.headerValue("Content-Type")
	if contentType == "" {
		r.Type("form")
		contentType = mime.Form
	}
	current, ok := r.data.(string)
	switch {
	case !ok:
		r.data = s
	case mime.Essence(contentType) == mime.Form:
		r.data = current + "&" + s
	default:
		r.data = current + s
	}
}

func toMap(v any) (map[string]any, error) {
	switch v := v.(type) {
	case map[string]any:
		return v, nil
	case url.Values:
		m := make(map[string]any, len(v))
		for k, vs := range v {
			if len(vs) == 1 {
				m[k] = vs[0]
			} else {
				m[k] = slices.Clone(vs)
			}
		}
		return m, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(err, "converting %T body", v)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return nil, errors.Errorf("body of type %T is not an object", v)
	}
	return m, nil
}

// Auth sets basic authorization.
func (r *Request) Auth(user, password string) *Request {
	if !r.mutable("Auth") {
		return r
	}
	token := base64.StdEncoding.EncodeToString([]byte(user + ":" + password))
	r.setHeader("Authorization", "Basic "+token)
	return r
}

// Path replaces the URL path with the joined segments.
func (r *Request) Path(segments ...string) *Request {
	if !r.mutable("Path") {
		return r
	}
	r.url.Path = path.Join(append([]string{"/"}, segments...)...)
	r.url.RawPath = ""
	return r
}

// Timeout aborts the request with a TimeoutError if no response has arrived
// within d. Zero disables the timeout.
func (r *Request) Timeout(d time.Duration) *Request {
	if !r.mutable("Timeout") {
		return r
	}
	if d < 0 {
		r.misuse(errors.Errorf("negative timeout %s", d))
		return r
	}
	r.timeout = d
	return r
}

// ClearTimeout removes the timeout, stopping its timer if the request is in
// flight.
func (r *Request) ClearTimeout() *Request {
	r.mu.Lock()
	if !r.started {
		r.timeout = 0
	}
	timer := r.timer
	r.timer = nil
	r.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	return r
}

// MaxRedirects limits how many redirects are followed.
func (r *Request) MaxRedirects(n int) *Request {
	if !r.mutable("MaxRedirects") {
		return r
	}
	if n < 0 {
		r.misuse(errors.Errorf("negative redirect limit %d", n))
		return r
	}
	r.maxRedirects = n
	return r
}

// WithCredentials asks the transport to send and store cookies.
func (r *Request) WithCredentials() *Request {
	if !r.mutable("WithCredentials") {
		return r
	}
	r.withCredentials = true
	return r
}

// ResponseType selects text or binary results for unparsed bodies.
func (r *Request) ResponseType(kind ResponseKind) *Request {
	if !r.mutable("ResponseType") {
		return r
	}
	r.responseKind = kind
	return r
}

// Parse overrides the registry parser for the response body.
func (r *Request) Parse(fn mime.Parser) *Request {
	if !r.mutable("Parse") {
		return r
	}
	r.parser = fn
	return r
}

// Redirects returns the URLs followed so far, in order.
func (r *Request) Redirects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.redirects)
}

// LastResponse returns the final response, or the redirect response that
// exceeded the redirect limit.
func (r *Request) LastResponse() *Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
