package http

import (
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/wesleyorama2/volley/mime"
)

// Client creates requests that share an environment, defaults and a logger.
// A Client is safe for concurrent use; the requests it creates are not.
type Client struct {
	env          Environment
	registry     *mime.Registry
	logger       *slog.Logger
	clock        clock.Clock
	baseURL      string
	headers      map[string]string
	timeout      time.Duration
	maxRedirects int
}

// ClientOption is a functional option for configuring the client.
type ClientOption func(*Client)

// NewClient creates a new client with the given options.
func NewClient(options ...ClientOption) *Client {
	c := &Client{
		registry:     mime.Default,
		logger:       slog.New(slog.DiscardHandler),
		clock:        clock.New(),
		headers:      make(map[string]string),
		maxRedirects: math.MaxInt,
	}

	for _, option := range options {
		option(c)
	}

	if c.env == nil {
		c.env = NewSocketEnvironment(nil)
	}
	return c
}

// WithBaseURL prefixes relative request URLs with baseURL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTimeout sets the default request timeout. Zero disables it.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithLogger sets the logger requests report to.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithClock sets the clock used for timeouts.
func WithClock(clk clock.Clock) ClientOption {
	return func(c *Client) {
		c.clock = clk
	}
}

// WithEnvironment sets the environment. The default is a socket environment.
func WithEnvironment(env Environment) ClientOption {
	return func(c *Client) {
		c.env = env
	}
}

// WithRegistry sets the serializer and parser registry.
func WithRegistry(reg *mime.Registry) ClientOption {
	return func(c *Client) {
		c.registry = reg
	}
}

// WithMaxRedirects sets the default redirect limit. Negative values are
// ignored.
func WithMaxRedirects(n int) ClientOption {
	return func(c *Client) {
		if n >= 0 {
			c.maxRedirects = n
		}
	}
}

// DefaultClient is used by the package level request functions.
var DefaultClient = NewClient()

// NewRequest creates a request for method and rawURL. Relative URLs are
// joined to the client's base URL before the environment resolves them.
func (c *Client) NewRequest(method, rawURL string) *Request {
	return newRequest(c, strings.ToUpper(method), c.join(rawURL))
}

func (c *Client) join(rawURL string) string {
	if c.baseURL == "" || strings.Contains(rawURL, "://") || strings.HasPrefix(rawURL, "//") {
		return rawURL
	}
	if rawURL == "" {
		return c.baseURL
	}
	return strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(rawURL, "/")
}

// Get creates a GET request for url.
func (c *Client) Get(url string) *Request { return c.NewRequest(http.MethodGet, url) }

// Head creates a HEAD request for url.
func (c *Client) Head(url string) *Request { return c.NewRequest(http.MethodHead, url) }

// Post creates a POST request for url.
func (c *Client) Post(url string) *Request { return c.NewRequest(http.MethodPost, url) }

// Put creates a PUT request for url.
func (c *Client) Put(url string) *Request { return c.NewRequest(http.MethodPut, url) }

// Patch creates a PATCH request for url.
func (c *Client) Patch(url string) *Request { return c.NewRequest(http.MethodPatch, url) }

// Delete creates a DELETE request for url.
func (c *Client) Delete(url string) *Request { return c.NewRequest(http.MethodDelete, url) }

// NewRequest creates a request with DefaultClient.
func NewRequest(method, url string) *Request { return DefaultClient.NewRequest(method, url) }

// Get creates a GET request with DefaultClient.
func Get(url string) *Request { return DefaultClient.Get(url) }

// Head creates a HEAD request with DefaultClient.
func Head(url string) *Request { return DefaultClient.Head(url) }

// Post creates a POST request with DefaultClient.
func Post(url string) *Request { return DefaultClient.Post(url) }

// Put creates a PUT request with DefaultClient.
func Put(url string) *Request { return DefaultClient.Put(url) }

// Patch creates a PATCH request with DefaultClient.
func Patch(url string) *Request { return DefaultClient.Patch(url) }

// Delete creates a DELETE request with DefaultClient.
func Delete(url string) *Request { return DefaultClient.Delete(url) }
