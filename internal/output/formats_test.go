package output

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	volley "github.com/wesleyorama2/volley/http"
	"github.com/wesleyorama2/volley/internal/stats"
	"github.com/wesleyorama2/volley/transport/transporttest"
)

// setupTestRequest creates an unstarted request with a header, query and body
func setupTestRequest() *volley.Request {
	client := volley.NewClient(volley.WithEnvironment(volley.NewSocketEnvironment(transporttest.New())))
	return client.Post("https://api.example.com/users").
		Set("Authorization", "Bearer token123").
		Query("page=1").
		Send(map[string]any{"name": "John Doe", "age": 30})
}

// setupTestExchange creates a completed JSON exchange
func setupTestExchange() Exchange {
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Link", `<https://api.example.com/users?page=2>; rel="next"`)
	body := `{"id":1,"name":"John Doe"}`
	resp := volley.Normalize(200, header, io.NopCloser(strings.NewReader(body)))
	return Exchange{
		Response:  resp,
		Body:      []byte(body),
		Redirects: []string{"https://api.example.com/users/1"},
		Elapsed:   123 * time.Millisecond,
		Extracted: map[string]string{"id": "1"},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetFormatter(t *testing.T) {
	assert.IsType(t, &Formatter{}, GetFormatter(FormatText, false, true))
	assert.IsType(t, &JSONFormatter{}, GetFormatter(FormatJSON, true, true))
	assert.IsType(t, &YAMLFormatter{}, GetFormatter(FormatYAML, false, true))
	assert.IsType(t, &Formatter{}, GetFormatter("", false, true))
}

func TestJSONFormatter_FormatRequest(t *testing.T) {
	f := &JSONFormatter{Pretty: true}
	out := f.FormatRequest(setupTestRequest())

	var data RequestData
	require.NoError(t, json.Unmarshal([]byte(out), &data))
	assert.Equal(t, "POST", data.Method)
	assert.Equal(t, "https://api.example.com/users?page=1", data.URL)
	assert.Equal(t, "Bearer token123", data.Headers["Authorization"])
	assert.Equal(t, map[string]any{"name": "John Doe", "age": float64(30)}, data.Body)
	assert.NotEmpty(t, data.ID)
}

func TestJSONFormatter_FormatResponse(t *testing.T) {
	f := &JSONFormatter{}
	out := f.FormatResponse(setupTestExchange())
	assert.False(t, strings.Contains(strings.TrimSpace(out), "\n"), "compact output should be a single line")

	var data ResponseData
	require.NoError(t, json.Unmarshal([]byte(out), &data))
	assert.Equal(t, 200, data.StatusCode)
	assert.Equal(t, "200 OK", data.Status)
	assert.Equal(t, int64(123), data.ResponseTime)
	assert.Equal(t, "application/json", data.Headers["Content-Type"])
	assert.Equal(t, "https://api.example.com/users?page=2", data.Links["next"])
	assert.Equal(t, []string{"https://api.example.com/users/1"}, data.Redirects)
	assert.Equal(t, map[string]any{"id": float64(1), "name": "John Doe"}, data.Body)
	assert.Equal(t, "1", data.Extracted["id"])
}

func TestJSONFormatter_NonJSONBody(t *testing.T) {
	ex := setupTestExchange()
	ex.Body = []byte("plain text")

	var data ResponseData
	require.NoError(t, json.Unmarshal([]byte((&JSONFormatter{}).FormatResponse(ex)), &data))
	assert.Equal(t, "plain text", data.Body)
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{volley.ErrAborted, "aborted"},
		{&volley.TimeoutError{Elapsed: time.Second}, "timeout"},
		{&volley.TransportError{Err: io.EOF}, "transport"},
		{&volley.CrossOriginError{URL: "http://x"}, "cross_origin"},
		{&volley.RedirectPolicyError{Method: "POST", Reason: "no"}, "redirect_policy"},
		{&volley.RedirectLoopError{URL: "http://x"}, "redirect_loop"},
		{&volley.DeserializationError{ContentType: "application/json", Err: io.EOF}, "deserialization"},
		{io.ErrUnexpectedEOF, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorKind(tt.err))
		})
	}
}

func TestJSONFormatter_FormatError(t *testing.T) {
	out := (&JSONFormatter{}).FormatError(&volley.TimeoutError{Elapsed: 250 * time.Millisecond})

	var data ErrorData
	require.NoError(t, json.Unmarshal([]byte(out), &data))
	assert.Equal(t, "timeout", data.Kind)
	assert.Equal(t, "timeout of 250ms exceeded", data.Message)
}

func TestYAMLFormatter(t *testing.T) {
	f := &YAMLFormatter{}
	out := f.FormatResponse(setupTestExchange())
	require.True(t, strings.HasPrefix(out, "---\n"))

	var data ResponseData
	require.NoError(t, yaml.Unmarshal([]byte(out), &data))
	assert.Equal(t, 200, data.StatusCode)
	assert.Equal(t, int64(123), data.ResponseTime)
	assert.Equal(t, "https://api.example.com/users?page=2", data.Links["next"])

	out = f.FormatRequest(setupTestRequest())
	assert.Contains(t, out, "method: POST")
}

func TestSummaryFormatting(t *testing.T) {
	s := stats.Summary{
		Requests: 10,
		Failures: 1,
		Bytes:    2048,
		Elapsed:  2 * time.Second,
		Min:      time.Millisecond,
		Mean:     5 * time.Millisecond,
		Max:      20 * time.Millisecond,
		P50:      4 * time.Millisecond,
		P90:      9 * time.Millisecond,
		P95:      12 * time.Millisecond,
		P99:      19 * time.Millisecond,
	}

	var data SummaryData
	require.NoError(t, json.Unmarshal([]byte((&JSONFormatter{}).FormatSummary(s)), &data))
	assert.Equal(t, int64(10), data.Requests)
	assert.InDelta(t, 0.1, data.ErrorRate, 1e-9)
	assert.InDelta(t, 5.0, data.Throughput, 1e-9)
	assert.InDelta(t, 19.0, data.LatencyMs.P99, 1e-9)

	text := NewFormatter(false, true).FormatSummary(s)
	assert.Contains(t, text, "Requests:   10 (1 failed, 10.0%)")
	assert.Contains(t, text, "Throughput: 5.00 req/s")
	assert.Contains(t, text, "p99 19ms")
}
