package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	volley "github.com/wesleyorama2/volley/http"
	"github.com/wesleyorama2/volley/internal/config"
	"github.com/wesleyorama2/volley/internal/validate"
)

type runOptions struct {
	configFile  string
	environment string
	request     string
	vars        []string
	verbose     bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a named request from a configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigRequest(cmd, root, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "Configuration file (YAML or JSON)")
	flags.StringVarP(&opts.environment, "environment", "e", "", "Environment to use")
	flags.StringVarP(&opts.request, "request", "r", "", "Request to run")
	flags.StringArrayVar(&opts.vars, "var", nil, "Override a variable as name=value (can be used multiple times)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Show headers, links and redirects")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("environment")
	_ = cmd.MarkFlagRequired("request")
	return cmd
}

func runConfigRequest(cmd *cobra.Command, root *rootOptions, opts *runOptions) error {
	cfg, err := config.LoadConfig(opts.configFile)
	if err != nil {
		return err
	}
	if problems := config.ValidateConfig(cfg); len(problems) > 0 {
		lines := make([]string, 0, len(problems))
		for _, p := range problems {
			lines = append(lines, "  - "+p.Error())
		}
		return errors.Errorf("configuration validation errors:\n%s", strings.Join(lines, "\n"))
	}
	if err := config.ValidateEnvironment(cfg, opts.environment); err != nil {
		return err
	}
	if err := config.ValidateRequest(cfg, opts.request); err != nil {
		return err
	}

	overrides := make(map[string]string, len(opts.vars))
	for _, v := range opts.vars {
		name, value, ok := strings.Cut(v, "=")
		if !ok || name == "" {
			return errors.Errorf("invalid variable %q, want name=value", v)
		}
		overrides[name] = value
	}
	env, spec, err := config.Resolve(cfg, opts.environment, opts.request, overrides)
	if err != nil {
		return err
	}

	c := check{extract: spec.Extract}
	if spec.Schema != "" {
		if c.schema, err = loadSchema(cfg, opts.configFile, spec.Schema); err != nil {
			return err
		}
	}

	s, err := root.session(cmd, opts.verbose)
	if err != nil {
		return err
	}
	clientOptions, err := environmentOptions(env)
	if err != nil {
		return err
	}
	req, err := buildConfigRequest(s.client(clientOptions...), spec)
	if err != nil {
		return err
	}
	return s.send(cmd.Context(), req, c, opts.verbose)
}

// environmentOptions maps an environment onto client options.
func environmentOptions(env config.Environment) ([]volley.ClientOption, error) {
	options := []volley.ClientOption{volley.WithBaseURL(env.BaseURL)}
	for name, value := range env.Headers {
		options = append(options, volley.WithHeader(name, value))
	}
	if env.Timeout != "" {
		timeout, err := config.ParseDuration(env.Timeout)
		if err != nil {
			return nil, err
		}
		options = append(options, volley.WithTimeout(timeout))
	}
	if env.MaxRedirects != nil {
		options = append(options, volley.WithMaxRedirects(*env.MaxRedirects))
	}
	return options, nil
}

func buildConfigRequest(client *volley.Client, spec config.Request) (*volley.Request, error) {
	req := client.NewRequest(spec.Method, spec.URL)
	req.SetHeaders(spec.Headers)
	if len(spec.Query) > 0 {
		req.Query(spec.Query)
	}
	if spec.Type != "" {
		req.Type(spec.Type)
	}
	if spec.Accept != "" {
		req.Accept(spec.Accept)
	}
	if spec.Body != nil {
		req.Send(spec.Body)
	}
	return req, req.Err()
}

// loadSchema compiles a schema defined in the config's schemas section or,
// failing that, stored in a file relative to the config file.
func loadSchema(cfg *config.Config, configFile, name string) (*validate.Schema, error) {
	if doc, ok := cfg.Schemas[name]; ok {
		schema, err := validate.Compile(doc)
		return schema, errors.Wrapf(err, "schema %s", name)
	}

	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(config.GetConfigDir(configFile), path)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Errorf("schema %s: not defined in config and no such file", name)
	}
	return validate.CompileFile(path)
}
