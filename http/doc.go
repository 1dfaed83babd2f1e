// Package http provides a lazy, fluent HTTP request builder that runs over
// interchangeable environments: a socket based client backed by net/http,
// or a browser XHR-like object.
//
// A request does nothing until its outcome is asked for. Builder calls
// accumulate method, URL, query, headers and body; the first call to
// Response, Read, ReadInto, Pipe, Then or End sends it, follows redirects
// for GET and HEAD, and settles exactly once.
//
// Basic Usage:
//
//	client := http.NewClient(
//	    http.WithBaseURL("https://api.example.com"),
//	    http.WithTimeout(30*time.Second),
//	    http.WithHeader("Authorization", "Bearer token"),
//	)
//
//	body, err := client.Get("/users").
//	    Query("limit=10").
//	    Accept("json").
//	    Read(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Form Example:
//
//	res, err := http.Post("https://auth.example.com/oauth/token").
//	    Send("grant_type=client_credentials").
//	    Send("client_id=xxx").
//	    Response(ctx)
//
// Strings sent to a form request are joined with "&"; maps and structs are
// deep merged and sent as JSON unless another content type is set.
//
// Errors:
//
// Failures are reported as *TransportError, *TimeoutError,
// *CrossOriginError, *RedirectPolicyError, *RedirectLoopError,
// *ProtocolStatusError, *DeserializationError or ErrAborted, and can be
// inspected with errors.As and errors.Is.
//
// Thread Safety:
//
// Client is safe for concurrent use. A Request is built from one goroutine;
// Abort, On and the result accessors may be called from any goroutine.
package http
