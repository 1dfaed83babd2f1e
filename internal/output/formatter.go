package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	volley "github.com/wesleyorama2/volley/http"
	"github.com/wesleyorama2/volley/internal/stats"
)

// Exchange is one completed request as presented to the user.
type Exchange struct {
	Response   *volley.Response
	Body       []byte
	Redirects  []string
	Elapsed    time.Duration
	Extracted  map[string]string
	Violations []string
}

// Formatter is responsible for formatting HTTP requests and responses in text format
type Formatter struct {
	Verbose bool
	NoColor bool
	scheme  *ColorScheme
}

// NewFormatter creates a new formatter with the given options
func NewFormatter(verbose, noColor bool) *Formatter {
	scheme := DefaultColorScheme()
	if noColor {
		scheme = NoColorScheme()
	}
	return &Formatter{
		Verbose: verbose,
		NoColor: noColor,
		scheme:  scheme,
	}
}

// FormatRequest formats an HTTP request for display
func (f *Formatter) FormatRequest(req *volley.Request) string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "▶ REQUEST: %s %s\n", f.scheme.Method.Sprint(req.Method()), f.scheme.URL.Sprint(req.URL()))

	if headers := req.Header(); f.Verbose && len(headers) > 0 {
		buf.WriteString("  Headers:\n")
		for _, key := range sortedKeys(headers) {
			fmt.Fprintf(&buf, "    %s: %s\n", f.scheme.HeaderKey.Sprint(key), headers[key])
		}
	}

	if body := req.Body(); body != nil {
		buf.WriteString("  Body: ")
		switch b := body.(type) {
		case string:
			buf.WriteString(formatJSONString(b))
		default:
			encoded, err := json.Marshal(b)
			if err != nil {
				fmt.Fprintf(&buf, "%v", b)
			} else {
				buf.WriteString(formatJSONString(string(encoded)))
			}
		}
		buf.WriteString("\n")
	}

	return buf.String()
}

// FormatResponse formats an HTTP response for display
func (f *Formatter) FormatResponse(ex Exchange) string {
	var buf strings.Builder
	resp := ex.Response

	fmt.Fprintf(&buf, "◀ RESPONSE: %s (%dms)\n", f.scheme.Status(resp.StatusClass).Sprint(resp.Status), ex.Elapsed.Milliseconds())

	if f.Verbose && len(ex.Redirects) > 0 {
		buf.WriteString("  Redirects:\n")
		for _, u := range ex.Redirects {
			fmt.Fprintf(&buf, "    → %s\n", u)
		}
	}

	if f.Verbose {
		buf.WriteString("  Headers:\n")
		writeHeader(&buf, f.scheme, resp.Header)

		if len(resp.Links) > 0 {
			buf.WriteString("  Links:\n")
			for _, rel := range sortedKeys(resp.Links) {
				fmt.Fprintf(&buf, "    %s: %s\n", f.scheme.Highlight.Sprint(rel), resp.Links[rel])
			}
		}
	}

	if len(ex.Body) > 0 {
		buf.WriteString("  Body:\n")
		buf.WriteString(formatJSONString(string(ex.Body)))
		buf.WriteString("\n")
	}

	if len(ex.Extracted) > 0 {
		buf.WriteString("  Extracted:\n")
		for _, name := range sortedKeys(ex.Extracted) {
			fmt.Fprintf(&buf, "    %s = %s\n", f.scheme.Highlight.Sprint(name), ex.Extracted[name])
		}
	}

	if ex.Violations != nil {
		if len(ex.Violations) == 0 {
			fmt.Fprintf(&buf, "  %s Schema validation passed\n", SuccessIcon(f.NoColor))
		} else {
			fmt.Fprintf(&buf, "  %s Schema validation failed:\n", ErrorIcon(f.NoColor))
			for _, v := range ex.Violations {
				fmt.Fprintf(&buf, "    - %s\n", v)
			}
		}
	}

	return buf.String()
}

// FormatError formats a request failure for display
func (f *Formatter) FormatError(err error) string {
	return fmt.Sprintf("%s %s: %s\n", ErrorIcon(f.NoColor), f.scheme.Error.Sprint("ERROR"), err)
}

// FormatSummary formats the latency summary of repeated requests
func (f *Formatter) FormatSummary(s stats.Summary) string {
	var buf strings.Builder

	buf.WriteString(f.scheme.Highlight.Sprint("Summary") + "\n")
	fmt.Fprintf(&buf, "  Requests:   %d (%d failed, %.1f%%)\n", s.Requests, s.Failures, s.ErrorRate()*100)
	fmt.Fprintf(&buf, "  Throughput: %.2f req/s\n", s.Throughput())
	fmt.Fprintf(&buf, "  Received:   %d bytes\n", s.Bytes)
	fmt.Fprintf(&buf, "  Latency:    min %s  mean %s  max %s\n", s.Min, s.Mean, s.Max)
	fmt.Fprintf(&buf, "  Percentile: p50 %s  p90 %s  p95 %s  p99 %s\n", s.P50, s.P90, s.P95, s.P99)
	return buf.String()
}

func writeHeader(buf *strings.Builder, scheme *ColorScheme, header http.Header) {
	keys := make([]string, 0, len(header))
	for key := range header {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		for _, value := range header[key] {
			fmt.Fprintf(buf, "    %s: %s\n", scheme.HeaderKey.Sprint(key), value)
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// formatJSONString attempts to pretty-print a JSON string
func formatJSONString(s string) string {
	var prettyJSON bytes.Buffer
	if err := json.Indent(&prettyJSON, []byte(s), "  ", "  "); err != nil {
		return s
	}
	return prettyJSON.String()
}
