package mime

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
)

// Serializer encodes a structured body value.
type Serializer func(v any) ([]byte, error)

// Parser decodes a response body into a structured value.
type Parser func(data []byte) (any, error)

// Registry maps MIME types to body codecs. A missing codec is not an error:
// callers pass such bodies through as opaque text or bytes.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	serializers map[string]Serializer
	parsers     map[string]Parser
}

// NewRegistry returns a registry holding the built-in JSON and form codecs.
func NewRegistry() *Registry {
	r := &Registry{
		serializers: make(map[string]Serializer),
		parsers:     make(map[string]Parser),
	}
	r.RegisterSerializer(JSON, json.Marshal)
	r.RegisterParser(JSON, parseJSON)
	r.RegisterSerializer(Form, serializeForm)
	r.RegisterParser(Form, parseForm)
	return r
}

// Default is the registry used by clients that do not configure their own.
var Default = NewRegistry()

// RegisterSerializer installs fn as the serializer for contentType.
func (r *Registry) RegisterSerializer(contentType string, fn Serializer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.serializers[Essence(contentType)] = fn
}

// RegisterParser installs fn as the parser for contentType.
func (r *Registry) RegisterParser(contentType string, fn Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[Essence(contentType)] = fn
}

// Serializer returns the serializer registered for contentType.
func (r *Registry) Serializer(contentType string) (Serializer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.serializers[Essence(contentType)]
	return fn, ok
}

// Parser returns the parser registered for contentType.
func (r *Registry) Parser(contentType string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.parsers[Essence(contentType)]
	return fn, ok
}

func parseJSON(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func serializeForm(v any) ([]byte, error) {
	switch v := v.(type) {
	case map[string]any:
		return []byte(Stringify(v)), nil
	case url.Values:
		return []byte(v.Encode()), nil
	case map[string]string:
		m := make(map[string]any, len(v))
		for k, s := range v {
			m[k] = s
		}
		return []byte(Stringify(m)), nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("cannot form-encode %T", v)
	}
}

func parseForm(data []byte) (any, error) {
	return Parse(string(data))
}
