package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Response is the normalized view of an HTTP response.
type Response struct {
	// StatusCode is the HTTP status code (e.g., 200, 404, 500)
	StatusCode int

	// StatusClass is StatusCode / 100
	StatusClass int

	// Status is the HTTP status string (e.g., "200 OK")
	Status string

	// Message is the reason phrase for StatusCode
	Message string

	// Header contains the response headers
	Header http.Header

	// ContentType is the bare media type, without parameters
	ContentType string

	// Charset is the charset parameter of the content type, if any
	Charset string

	// Params holds every content type parameter
	Params map[string]string

	// Links maps rel to URL from the Link header; nil when there is none
	Links map[string]string

	// URL is the URL that produced the response
	URL *url.URL

	// Body is the decoded response body
	Body io.ReadCloser

	rawBody []byte
	parsed  bool
}

// Normalize builds a Response from a status code, header and body.
func Normalize(status int, header http.Header, body io.ReadCloser) *Response {
	if header == nil {
		header = make(http.Header)
	}
	if body == nil {
		body = http.NoBody
	}

	res := &Response{
		StatusCode:  status,
		StatusClass: status / 100,
		Message:     http.StatusText(status),
		Header:      header,
		Body:        body,
	}
	res.Status = strings.TrimSpace(fmt.Sprintf("%d %s", status, res.Message))
	res.ContentType, res.Params = parseContentType(header.Get("Content-Type"))
	res.Charset = res.Params["charset"]
	res.Links = parseLinks(header.Get("Link"))
	return res
}

func parseContentType(value string) (string, map[string]string) {
	params := make(map[string]string)
	segments := strings.Split(value, ";")
	for _, segment := range segments[1:] {
		key, val, ok := strings.Cut(segment, "=")
		key = strings.TrimSpace(key)
		val = strings.Trim(strings.TrimSpace(val), `"'`)
		if !ok || key == "" || val == "" {
			continue
		}
		params[key] = val
	}
	return strings.TrimSpace(segments[0]), params
}

func parseLinks(value string) map[string]string {
	if value == "" {
		return nil
	}

	var links map[string]string
	for _, segment := range strings.Split(value, ",") {
		parts := strings.Split(segment, ";")
		target := strings.TrimSpace(parts[0])
		if len(target) < 2 || target[0] != '<' || target[len(target)-1] != '>' {
			continue
		}
		for _, part := range parts[1:] {
			key, val, ok := strings.Cut(part, "=")
			if !ok || !strings.EqualFold(strings.TrimSpace(key), "rel") {
				continue
			}
			rel := strings.Trim(strings.TrimSpace(val), `"'`)
			if rel == "" {
				continue
			}
			if links == nil {
				links = make(map[string]string)
			}
			links[rel] = target[1 : len(target)-1]
			break
		}
	}
	return links
}

// GetBody returns the response body as a byte array.
// The body is cached, so this method can be called multiple times.
func (r *Response) GetBody() ([]byte, error) {
	if r.parsed {
		return r.rawBody, nil
	}

	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	r.rawBody = body
	r.parsed = true
	return body, nil
}

// GetBodyAsString returns the response body as a string.
func (r *Response) GetBodyAsString() (string, error) {
	body, err := r.GetBody()
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// GetBodyAsJSON unmarshals the response body into the provided value.
func (r *Response) GetBodyAsJSON(v any) error {
	body, err := r.GetBody()
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

// GetHeader returns the value of the specified header.
// Returns an empty string if the header is not present.
func (r *Response) GetHeader(key string) string {
	return r.Header.Get(key)
}

// IsSuccess returns true if the response status code is in the 2xx range.
func (r *Response) IsSuccess() bool {
	return r.StatusClass == 2
}

// IsRedirect returns true if the response status code is in the 3xx range.
func (r *Response) IsRedirect() bool {
	return r.StatusClass == 3
}

// IsClientError returns true if the response status code is in the 4xx range.
func (r *Response) IsClientError() bool {
	return r.StatusClass == 4
}

// IsServerError returns true if the response status code is in the 5xx range.
func (r *Response) IsServerError() bool {
	return r.StatusClass == 5
}

// IsError returns true if the response status code indicates an error (4xx or 5xx).
func (r *Response) IsError() bool {
	return r.IsClientError() || r.IsServerError()
}
