package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Path    string
	Message string
}

// Error returns the error message
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

var methods = map[string]bool{
	"GET":    true,
	"HEAD":   true,
	"POST":   true,
	"PUT":    true,
	"PATCH":  true,
	"DELETE": true,
}

// ValidateConfig validates the configuration
func ValidateConfig(config *Config) []ValidationError {
	var errs []ValidationError

	if len(config.Environments) == 0 {
		errs = append(errs, ValidationError{
			Path:    "environments",
			Message: "at least one environment is required",
		})
	}

	for name, env := range config.Environments {
		if env.BaseURL == "" {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("environments.%s.baseUrl", name),
				Message: "baseUrl is required",
			})
		}
		if env.Timeout != "" {
			if _, err := ParseDuration(env.Timeout); err != nil {
				errs = append(errs, ValidationError{
					Path:    fmt.Sprintf("environments.%s.timeout", name),
					Message: err.Error(),
				})
			}
		}
		if env.MaxRedirects != nil && *env.MaxRedirects < 0 {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("environments.%s.maxRedirects", name),
				Message: "maxRedirects cannot be negative",
			})
		}
	}

	if len(config.Requests) == 0 {
		errs = append(errs, ValidationError{
			Path:    "requests",
			Message: "at least one request is required",
		})
	}

	for name, req := range config.Requests {
		if req.URL == "" {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("requests.%s.url", name),
				Message: "url is required",
			})
		}

		if req.Method == "" {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("requests.%s.method", name),
				Message: "method is required",
			})
		} else if !methods[strings.ToUpper(req.Method)] {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("requests.%s.method", name),
				Message: fmt.Sprintf("invalid method: %s", req.Method),
			})
		}

		for varName, path := range req.Extract {
			if path == "" {
				errs = append(errs, ValidationError{
					Path:    fmt.Sprintf("requests.%s.extract.%s", name, varName),
					Message: "extract path cannot be empty",
				})
			}
		}
	}

	return errs
}

// ValidateEnvironment validates that an environment exists
func ValidateEnvironment(config *Config, envName string) error {
	if _, ok := config.Environments[envName]; !ok {
		return fmt.Errorf("environment not found: %s", envName)
	}
	return nil
}

// ValidateRequest validates that a request exists
func ValidateRequest(config *Config, reqName string) error {
	if _, ok := config.Requests[reqName]; !ok {
		return fmt.Errorf("request not found: %s", reqName)
	}
	return nil
}
