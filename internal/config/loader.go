package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config represents the top-level configuration
type Config struct {
	Environments map[string]Environment `json:"environments" yaml:"environments"`
	Requests     map[string]Request     `json:"requests" yaml:"requests"`
	Schemas      map[string]any         `json:"schemas,omitempty" yaml:"schemas,omitempty"`
}

// Environment represents an environment configuration
type Environment struct {
	BaseURL      string            `json:"baseUrl" yaml:"baseUrl"`
	Headers      map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Vars         map[string]string `json:"variables,omitempty" yaml:"variables,omitempty"`
	Timeout      string            `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	MaxRedirects *int              `json:"maxRedirects,omitempty" yaml:"maxRedirects,omitempty"`
}

// Request represents a request configuration
type Request struct {
	Method  string            `json:"method" yaml:"method"`
	URL     string            `json:"url" yaml:"url"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Query   map[string]string `json:"query,omitempty" yaml:"query,omitempty"`
	Body    any               `json:"body,omitempty" yaml:"body,omitempty"`
	Type    string            `json:"type,omitempty" yaml:"type,omitempty"`
	Accept  string            `json:"accept,omitempty" yaml:"accept,omitempty"`
	Extract map[string]string `json:"extract,omitempty" yaml:"extract,omitempty"`

	// Schema names an entry of Config.Schemas or a schema file.
	Schema string `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// LoadConfig loads a YAML or JSON configuration file. The format is picked
// by extension; anything other than .json is read as YAML.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf("config file not found: %s", path)
		}
		return nil, errors.Wrap(err, "reading config file")
	}

	config, err := Parse(data, strings.EqualFold(filepath.Ext(path), ".json"))
	if err != nil {
		return nil, errors.Wrapf(err, "parsing config file %s", path)
	}
	return config, nil
}

// Parse decodes a configuration document.
func Parse(data []byte, isJSON bool) (*Config, error) {
	var config Config
	if isJSON {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&config); err != nil {
			return nil, err
		}
		return &config, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// ParseDuration parses duration strings like "30s", "5m", "1 minute".
func ParseDuration(duration string) (time.Duration, error) {
	duration = strings.TrimSpace(duration)
	if duration == "" {
		return 0, errors.New("duration cannot be empty")
	}

	if d, err := time.ParseDuration(duration); err == nil {
		return d, nil
	}

	duration = strings.ToLower(strings.ReplaceAll(duration, " ", ""))
	for _, unit := range []struct{ word, abbrev string }{
		{"milliseconds", "ms"},
		{"millisecond", "ms"},
		{"seconds", "s"},
		{"second", "s"},
		{"minutes", "m"},
		{"minute", "m"},
		{"hours", "h"},
		{"hour", "h"},
	} {
		duration = strings.ReplaceAll(duration, unit.word, unit.abbrev)
	}

	d, err := time.ParseDuration(duration)
	return d, errors.Wrapf(err, "invalid duration %q", duration)
}

// ProcessEnvironment replaces {{name}} placeholders in input.
func ProcessEnvironment(input string, env map[string]string) string {
	result := input
	for key, value := range env {
		result = strings.ReplaceAll(result, "{{"+key+"}}", value)
	}
	return result
}

// ProcessEnvironmentInMap processes placeholders in every value of input.
func ProcessEnvironmentInMap(input map[string]string, env map[string]string) map[string]string {
	if input == nil {
		return nil
	}
	result := make(map[string]string, len(input))
	for key, value := range input {
		result[key] = ProcessEnvironment(value, env)
	}
	return result
}

// ProcessEnvironmentInValue processes placeholders in every string held by
// a decoded body.
func ProcessEnvironmentInValue(input any, env map[string]string) any {
	switch v := input.(type) {
	case string:
		return ProcessEnvironment(v, env)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			out[key] = ProcessEnvironmentInValue(value, env)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, value := range v {
			out[i] = ProcessEnvironmentInValue(value, env)
		}
		return out
	default:
		return v
	}
}

// MergeEnvironments merges two variable sets, with the second taking precedence
func MergeEnvironments(base, override map[string]string) map[string]string {
	result := make(map[string]string, len(base)+len(override))
	for key, value := range base {
		result[key] = value
	}
	for key, value := range override {
		result[key] = value
	}
	return result
}

// Resolve returns the named request with the environment's variables
// substituted into its URL, headers, query and body.
func Resolve(config *Config, envName, reqName string, vars map[string]string) (Environment, Request, error) {
	env, ok := config.Environments[envName]
	if !ok {
		return Environment{}, Request{}, errors.Errorf("environment not found: %s", envName)
	}
	req, ok := config.Requests[reqName]
	if !ok {
		return Environment{}, Request{}, errors.Errorf("request not found: %s", reqName)
	}

	values := MergeEnvironments(env.Vars, vars)
	env.BaseURL = ProcessEnvironment(env.BaseURL, values)
	env.Headers = ProcessEnvironmentInMap(env.Headers, values)

	req.URL = ProcessEnvironment(req.URL, values)
	req.Headers = ProcessEnvironmentInMap(req.Headers, values)
	req.Query = ProcessEnvironmentInMap(req.Query, values)
	req.Body = ProcessEnvironmentInValue(req.Body, values)
	return env, req, nil
}

// GetConfigDir returns the directory containing the config file
func GetConfigDir(configPath string) string {
	return filepath.Dir(configPath)
}
