package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	volley "github.com/wesleyorama2/volley/http"
	"github.com/wesleyorama2/volley/internal/output"
	"github.com/wesleyorama2/volley/transport/socket"
)

var version = volley.Version

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	output   string
	noColor  bool
	debug    bool
	insecure bool
}

// reportedError marks an error that a command has already written out.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// NewRootCmd builds the volley command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:     "volley",
		Short:   "A lazy, composable HTTP client for the terminal",
		Version: version,
		Long: `Volley builds HTTP requests from flags or configuration files and sends
them only when their result is needed. It follows redirects with loop
detection, decodes compressed bodies, and can extract values from and
validate JSON responses.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.output, "output", "o", string(output.FormatText), "Output format (text, json, yaml)")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	flags.BoolVar(&opts.debug, "debug", false, "Log request lifecycle to stderr")
	flags.BoolVarP(&opts.insecure, "insecure", "k", false, "Skip TLS certificate verification")

	for _, method := range []string{"GET", "HEAD", "DELETE", "POST", "PUT", "PATCH"} {
		cmd.AddCommand(newRequestCmd(opts, method))
	}
	cmd.AddCommand(newRunCmd(opts))
	return cmd
}

// Execute runs the command tree with the process arguments. Errors are
// printed to stderr unless a command already reported them.
func Execute(ctx context.Context) error {
	err := NewRootCmd().ExecuteContext(ctx)
	if err != nil {
		var reported *reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	return err
}

// session carries what a command needs to send requests and print results.
type session struct {
	out       io.Writer
	errOut    io.Writer
	log       *slog.Logger
	format    output.OutputFormat
	formatter output.FormatProvider
	transport *socket.Transport
}

func (o *rootOptions) session(cmd *cobra.Command, verbose bool) (*session, error) {
	format, err := output.ParseFormat(o.output)
	if err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if o.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	transportOptions := []socket.Option{socket.WithLogger(logger)}
	if o.insecure {
		transportOptions = append(transportOptions, socket.WithInsecureSkipVerify())
	}

	noColor := o.noColor || !output.ColorEnabled(os.Stdout)
	return &session{
		out:       cmd.OutOrStdout(),
		errOut:    cmd.ErrOrStderr(),
		log:       logger,
		format:    format,
		formatter: output.GetFormatter(format, verbose, noColor),
		transport: socket.New(transportOptions...),
	}, nil
}

func (s *session) client(options ...volley.ClientOption) *volley.Client {
	options = append([]volley.ClientOption{
		volley.WithEnvironment(volley.NewSocketEnvironment(s.transport)),
		volley.WithLogger(s.log),
	}, options...)
	return volley.NewClient(options...)
}

// report writes err in the selected format and marks it as reported.
func (s *session) report(err error) error {
	w := s.out
	if s.format == output.FormatText {
		w = s.errOut
	}
	fmt.Fprint(w, s.formatter.FormatError(err))
	return &reportedError{err: err}
}
