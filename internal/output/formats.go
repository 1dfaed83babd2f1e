package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	volley "github.com/wesleyorama2/volley/http"
	"github.com/wesleyorama2/volley/internal/stats"
)

// OutputFormat represents the available output formats
type OutputFormat string

const (
	// FormatText is the default human-readable text format
	FormatText OutputFormat = "text"
	// FormatJSON outputs in JSON format
	FormatJSON OutputFormat = "json"
	// FormatYAML outputs in YAML format
	FormatYAML OutputFormat = "yaml"
)

// ParseFormat validates a format name given on the command line.
func ParseFormat(name string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(name)); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", errors.Errorf("unknown output format %q (want text, json or yaml)", name)
	}
}

// FormatProvider is an interface for different output formatters
type FormatProvider interface {
	FormatRequest(req *volley.Request) string
	FormatResponse(ex Exchange) string
	FormatError(err error) string
	FormatSummary(s stats.Summary) string
}

// RequestData represents the structured data of an HTTP request
type RequestData struct {
	ID        string            `json:"id" yaml:"id"`
	Method    string            `json:"method" yaml:"method"`
	URL       string            `json:"url" yaml:"url"`
	Headers   map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body      any               `json:"body,omitempty" yaml:"body,omitempty"`
	Timestamp string            `json:"timestamp" yaml:"timestamp"`
}

// ResponseData represents the structured data of an HTTP response
type ResponseData struct {
	StatusCode   int               `json:"statusCode" yaml:"statusCode"`
	Status       string            `json:"status" yaml:"status"`
	URL          string            `json:"url,omitempty" yaml:"url,omitempty"`
	Headers      map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Links        map[string]string `json:"links,omitempty" yaml:"links,omitempty"`
	Redirects    []string          `json:"redirects,omitempty" yaml:"redirects,omitempty"`
	Body         any               `json:"body,omitempty" yaml:"body,omitempty"`
	ResponseTime int64             `json:"responseTimeMs" yaml:"responseTimeMs"`
	Extracted    map[string]string `json:"extracted,omitempty" yaml:"extracted,omitempty"`
	Violations   []string          `json:"schemaViolations,omitempty" yaml:"schemaViolations,omitempty"`
	Timestamp    string            `json:"timestamp" yaml:"timestamp"`
}

// ErrorData represents a failed request
type ErrorData struct {
	Kind    string `json:"kind" yaml:"kind"`
	Message string `json:"error" yaml:"error"`
}

// SummaryData represents the latency summary of repeated requests
type SummaryData struct {
	Requests   int64       `json:"requests" yaml:"requests"`
	Failures   int64       `json:"failures" yaml:"failures"`
	Bytes      int64       `json:"bytes" yaml:"bytes"`
	ErrorRate  float64     `json:"errorRate" yaml:"errorRate"`
	Throughput float64     `json:"throughput" yaml:"throughput"`
	LatencyMs  LatencyData `json:"latencyMs" yaml:"latencyMs"`
}

// LatencyData holds latency figures in milliseconds
type LatencyData struct {
	Min  float64 `json:"min" yaml:"min"`
	Mean float64 `json:"mean" yaml:"mean"`
	Max  float64 `json:"max" yaml:"max"`
	P50  float64 `json:"p50" yaml:"p50"`
	P90  float64 `json:"p90" yaml:"p90"`
	P95  float64 `json:"p95" yaml:"p95"`
	P99  float64 `json:"p99" yaml:"p99"`
}

func requestData(req *volley.Request) RequestData {
	return RequestData{
		ID:        req.ID(),
		Method:    req.Method(),
		URL:       req.URL(),
		Headers:   req.Header(),
		Body:      req.Body(),
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func responseData(ex Exchange) ResponseData {
	resp := ex.Response
	headers := make(map[string]string, len(resp.Header))
	for key, values := range resp.Header {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}

	var body any
	if len(ex.Body) > 0 {
		if err := json.Unmarshal(ex.Body, &body); err != nil {
			body = string(ex.Body)
		}
	}

	data := ResponseData{
		StatusCode:   resp.StatusCode,
		Status:       resp.Status,
		Headers:      headers,
		Links:        resp.Links,
		Redirects:    ex.Redirects,
		Body:         body,
		ResponseTime: ex.Elapsed.Milliseconds(),
		Extracted:    ex.Extracted,
		Violations:   ex.Violations,
		Timestamp:    time.Now().Format(time.RFC3339),
	}
	if resp.URL != nil {
		data.URL = resp.URL.String()
	}
	return data
}

func errorData(err error) ErrorData {
	return ErrorData{Kind: ErrorKind(err), Message: err.Error()}
}

func summaryData(s stats.Summary) SummaryData {
	return SummaryData{
		Requests:   s.Requests,
		Failures:   s.Failures,
		Bytes:      s.Bytes,
		ErrorRate:  s.ErrorRate(),
		Throughput: s.Throughput(),
		LatencyMs: LatencyData{
			Min:  ms(s.Min),
			Mean: ms(s.Mean),
			Max:  ms(s.Max),
			P50:  ms(s.P50),
			P90:  ms(s.P90),
			P95:  ms(s.P95),
			P99:  ms(s.P99),
		},
	}
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// ErrorKind names the failure class of a request error.
func ErrorKind(err error) string {
	var (
		transportErr *volley.TransportError
		timeoutErr   *volley.TimeoutError
		corsErr      *volley.CrossOriginError
		policyErr    *volley.RedirectPolicyError
		loopErr      *volley.RedirectLoopError
		statusErr    *volley.ProtocolStatusError
		parseErr     *volley.DeserializationError
	)
	switch {
	case errors.Is(err, volley.ErrAborted):
		return "aborted"
	case errors.As(err, &timeoutErr):
		return "timeout"
	case errors.As(err, &transportErr):
		return "transport"
	case errors.As(err, &corsErr):
		return "cross_origin"
	case errors.As(err, &policyErr):
		return "redirect_policy"
	case errors.As(err, &loopErr):
		return "redirect_loop"
	case errors.As(err, &statusErr):
		return "status"
	case errors.As(err, &parseErr):
		return "deserialization"
	default:
		return "error"
	}
}

// JSONFormatter formats output as JSON
type JSONFormatter struct {
	Verbose bool
	Pretty  bool
}

func (f *JSONFormatter) marshal(v any) string {
	var output []byte
	var err error
	if f.Pretty {
		output, err = json.MarshalIndent(v, "", "  ")
	} else {
		output, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Sprintf(`{"error":"Failed to marshal output: %s"}`, err) + "\n"
	}
	return string(output) + "\n"
}

// FormatRequest formats a request as JSON
func (f *JSONFormatter) FormatRequest(req *volley.Request) string {
	return f.marshal(requestData(req))
}

// FormatResponse formats a response as JSON
func (f *JSONFormatter) FormatResponse(ex Exchange) string {
	return f.marshal(responseData(ex))
}

// FormatError formats a failure as JSON
func (f *JSONFormatter) FormatError(err error) string {
	return f.marshal(errorData(err))
}

// FormatSummary formats a latency summary as JSON
func (f *JSONFormatter) FormatSummary(s stats.Summary) string {
	return f.marshal(summaryData(s))
}

// YAMLFormatter formats output as YAML
type YAMLFormatter struct {
	Verbose bool
}

func (f *YAMLFormatter) marshal(v any) string {
	output, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Sprintf("error: Failed to marshal output: %s\n", err)
	}
	return "---\n" + string(output)
}

// FormatRequest formats a request as YAML
func (f *YAMLFormatter) FormatRequest(req *volley.Request) string {
	return f.marshal(requestData(req))
}

// FormatResponse formats a response as YAML
func (f *YAMLFormatter) FormatResponse(ex Exchange) string {
	return f.marshal(responseData(ex))
}

// FormatError formats a failure as YAML
func (f *YAMLFormatter) FormatError(err error) string {
	return f.marshal(errorData(err))
}

// FormatSummary formats a latency summary as YAML
func (f *YAMLFormatter) FormatSummary(s stats.Summary) string {
	return f.marshal(summaryData(s))
}

// GetFormatter returns a formatter for the given format
func GetFormatter(format OutputFormat, verbose bool, noColor bool) FormatProvider {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Verbose: verbose, Pretty: true}
	case FormatYAML:
		return &YAMLFormatter{Verbose: verbose}
	default:
		return NewFormatter(verbose, noColor)
	}
}
