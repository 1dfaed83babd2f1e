package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	volley "github.com/wesleyorama2/volley/http"
	"github.com/wesleyorama2/volley/internal/extract"
	"github.com/wesleyorama2/volley/internal/output"
	"github.com/wesleyorama2/volley/internal/validate"
)

// requestOptions holds the flags of the per-method commands.
type requestOptions struct {
	headers      []string
	query        []string
	data         []string
	json         []string
	contentType  string
	accept       string
	user         string
	timeout      time.Duration
	maxRedirects int
	verbose      bool
	extract      []string
	schema       string
	repeat       int
	concurrency  int
	rate         float64
}

// check describes what to verify on a successful response.
type check struct {
	extract map[string]string
	schema  *validate.Schema
}

func newRequestCmd(root *rootOptions, method string) *cobra.Command {
	opts := &requestOptions{}
	cmd := &cobra.Command{
		Use:   strings.ToLower(method) + " URL",
		Short: fmt.Sprintf("Make a %s request to the specified URL", method),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, root, opts, method, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVarP(&opts.headers, "header", "H", nil, "HTTP header as 'Name: value' (can be used multiple times)")
	flags.StringArrayVarP(&opts.query, "query", "q", nil, "Query string such as 'page=2&sort=asc' (can be used multiple times)")
	flags.StringVar(&opts.contentType, "type", "", "Content-Type as a MIME type or alias (json, form, xml, ...)")
	flags.StringVar(&opts.accept, "accept", "", "Accept as a MIME type or alias")
	flags.StringVarP(&opts.user, "user", "u", "", "Basic auth credentials as user:password")
	flags.DurationVarP(&opts.timeout, "timeout", "t", 30*time.Second, "Request timeout (0 disables it)")
	flags.IntVar(&opts.maxRedirects, "max-redirects", -1, "Maximum redirects to follow (-1 for no limit)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Show headers, links and redirects")
	flags.StringArrayVar(&opts.extract, "extract", nil, "Extract a value as name=$.path (can be used multiple times)")
	flags.StringVar(&opts.schema, "schema", "", "Validate the JSON response against a schema file")
	flags.IntVar(&opts.repeat, "repeat", 1, "Send the request N times and print a latency summary")
	flags.IntVar(&opts.concurrency, "concurrency", 1, "Requests in flight at once when repeating")
	flags.Float64Var(&opts.rate, "rate", 0, "Maximum requests per second when repeating (0 for no limit)")
	if method != http.MethodGet && method != http.MethodHead && method != http.MethodDelete {
		flags.StringArrayVarP(&opts.data, "data", "d", nil, "Request body; repeated values are joined (can be used multiple times)")
		flags.StringArrayVar(&opts.json, "json", nil, "JSON object body; repeated objects are merged (can be used multiple times)")
	}
	return cmd
}

func runRequest(cmd *cobra.Command, root *rootOptions, opts *requestOptions, method, target string) error {
	if opts.repeat < 1 {
		return errors.New("--repeat must be at least 1")
	}
	if opts.concurrency < 1 {
		return errors.New("--concurrency must be at least 1")
	}

	s, err := root.session(cmd, opts.verbose)
	if err != nil {
		return err
	}
	var c check
	if len(opts.extract) > 0 {
		if c.extract, err = extract.ParseAssignments(opts.extract); err != nil {
			return err
		}
	}
	if opts.schema != "" {
		if c.schema, err = validate.CompileFile(opts.schema); err != nil {
			return err
		}
	}

	client := s.client()
	build := func() (*volley.Request, error) {
		return opts.build(client, method, target)
	}

	// Reject bad flags before anything is sent.
	req, err := build()
	if err != nil {
		return err
	}

	if opts.repeat > 1 {
		summary, err := s.repeat(cmd.Context(), build, opts.repeat, opts.concurrency, opts.rate)
		if err != nil {
			return s.report(err)
		}
		fmt.Fprint(s.out, s.formatter.FormatSummary(summary))
		if summary.Failures > 0 {
			return &reportedError{err: errors.Errorf("%d of %d requests failed", summary.Failures, summary.Requests)}
		}
		return nil
	}
	return s.send(cmd.Context(), req, c, opts.verbose)
}

// build turns the flags into an unsent request.
func (o *requestOptions) build(client *volley.Client, method, target string) (*volley.Request, error) {
	req := client.NewRequest(method, target)
	for _, h := range o.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			return nil, errors.Errorf("invalid header %q, want 'Name: value'", h)
		}
		req.Set(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	for _, q := range o.query {
		req.Query(q)
	}
	if o.contentType != "" {
		req.Type(o.contentType)
	}
	if o.accept != "" {
		req.Accept(o.accept)
	}
	for _, d := range o.data {
		req.Send(d)
	}
	for _, j := range o.json {
		var body map[string]any
		if err := json.Unmarshal([]byte(j), &body); err != nil {
			return nil, errors.Wrapf(err, "parsing --json %q", j)
		}
		req.Send(body)
	}
	if o.user != "" {
		user, password, _ := strings.Cut(o.user, ":")
		req.Auth(user, password)
	}
	if o.timeout > 0 {
		req.Timeout(o.timeout)
	}
	if o.maxRedirects >= 0 {
		req.MaxRedirects(o.maxRedirects)
	}
	return req, req.Err()
}

// send executes req once, prints the exchange and applies the checks.
func (s *session) send(ctx context.Context, req *volley.Request, c check, verbose bool) error {
	if s.format == output.FormatText || verbose {
		fmt.Fprint(s.out, s.formatter.FormatRequest(req))
	}
	req.On(func(ev volley.Event) {
		if ev.Kind == volley.EventRedirect {
			s.log.Debug("following redirect", "request_id", req.ID(), "url", ev.URL)
		}
	})

	start := time.Now()
	res, err := req.Response(ctx)
	if ctx.Err() != nil {
		req.Abort()
	}
	if err != nil {
		return s.report(err)
	}
	body, err := res.GetBody()
	if err != nil {
		return s.report(&volley.TransportError{Err: err})
	}

	ex := output.Exchange{
		Response:  res,
		Body:      body,
		Redirects: req.Redirects(),
		Elapsed:   time.Since(start),
	}
	var failure error
	if res.IsError() {
		failure = &volley.ProtocolStatusError{Response: res}
	} else {
		failure = c.apply(&ex)
	}
	fmt.Fprint(s.out, s.formatter.FormatResponse(ex))

	if failure != nil {
		return s.report(failure)
	}
	return nil
}

// apply runs extraction and schema validation against the exchange body.
func (c check) apply(ex *output.Exchange) error {
	var failure error
	if len(c.extract) > 0 {
		values, err := extract.ExtractMultiple(string(ex.Body), c.extract)
		ex.Extracted = values
		if err != nil {
			failure = errors.Wrap(err, "extracting values")
		}
	}
	if c.schema != nil {
		ex.Violations = []string{}
		for _, v := range c.schema.Validate(ex.Body) {
			ex.Violations = append(ex.Violations, v.Error())
		}
		if len(ex.Violations) > 0 && failure == nil {
			failure = errors.New("response does not match schema")
		}
	}
	return failure
}
