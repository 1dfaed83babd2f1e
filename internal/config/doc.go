// Package config loads and validates volley configuration files.
//
// A configuration file is YAML or JSON and defines:
//   - Environments: a base URL, default headers, variables, a timeout and a
//     redirect limit for one target deployment
//   - Requests: named request templates with method, URL, headers, query,
//     body, content negotiation, extraction paths and a response schema
//   - Schemas: JSON Schemas that requests refer to by name
//
// Basic Usage:
//
//	cfg, err := config.LoadConfig("volley.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	env, req, err := config.Resolve(cfg, "staging", "getUser", nil)
//
// Variable Substitution:
//
// Variables are defined per environment and used in URLs, headers, query
// values and bodies with the {{variableName}} syntax. Resolve applies them
// together with any overrides:
//
//	env, req, err := config.Resolve(cfg, "staging", "getUser", map[string]string{"id": "42"})
//
// Configuration Validation:
//
// The ValidateConfig function validates the configuration and returns
// a slice of validation errors:
//
//	errors := config.ValidateConfig(cfg)
//	if len(errors) > 0 {
//	    for _, err := range errors {
//	        log.Printf("Validation error: %s", err)
//	    }
//	}
package config
