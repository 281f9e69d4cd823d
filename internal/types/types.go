package types

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Document represents a parsed API description. It is never mutated after loading.
type Document struct {
	BasePath    string               `json:"basePath,omitempty"`
	Definitions map[string]*Schema   `json:"definitions,omitempty"`
	Paths       map[string]*PathItem `json:"paths,omitempty"`
}

// PathItem represents the operations available on a single path template
type PathItem struct {
	Get        *Operation  `json:"get,omitempty"`
	Put        *Operation  `json:"put,omitempty"`
	Post       *Operation  `json:"post,omitempty"`
	Delete     *Operation  `json:"delete,omitempty"`
	Options    *Operation  `json:"options,omitempty"`
	Head       *Operation  `json:"head,omitempty"`
	Patch      *Operation  `json:"patch,omitempty"`
	Parameters []Parameter `json:"parameters,omitempty"`
}

// Operations returns the non-nil operations keyed by upper-case method.
func (p *PathItem) Operations() map[string]*Operation {
	ops := make(map[string]*Operation)
	for method, op := range map[string]*Operation{
		http.MethodGet:     p.Get,
		http.MethodPut:     p.Put,
		http.MethodPost:    p.Post,
		http.MethodDelete:  p.Delete,
		http.MethodOptions: p.Options,
		http.MethodHead:    p.Head,
		http.MethodPatch:   p.Patch,
	} {
		if op != nil {
			ops[method] = op
		}
	}
	return ops
}

// Operation represents one HTTP method bound to one path template
type Operation struct {
	Method      string              `json:"-"`
	Path        string              `json:"-"`
	OperationID string              `json:"operationId,omitempty"`
	Summary     string              `json:"summary,omitempty"`
	Parameters  []Parameter         `json:"parameters,omitempty"`
	Responses   map[string]Response `json:"responses,omitempty"`
	SkipTest    bool                `json:"x-skip-contract-test,omitempty"`
}

// Key returns the "METHOD /path" identifier used for overrides, skips and report groups.
func (o *Operation) Key() string {
	return OperationKey(o.Method, o.Path)
}

// OperationKey builds the "METHOD /path" identifier.
func OperationKey(method, path string) string {
	return fmt.Sprintf("%s %s", strings.ToUpper(method), path)
}

// Parameter represents a declared operation parameter
type Parameter struct {
	Ref      string     `json:"$ref,omitempty"`
	Name     string     `json:"name"`
	In       string     `json:"in"`
	Required bool       `json:"required,omitempty"`
	Type     SchemaType `json:"type,omitempty"`
	Format   string     `json:"format,omitempty"`
	Enum     []any      `json:"enum,omitempty"`
	Default  any        `json:"default,omitempty"`
	Items    *Schema    `json:"items,omitempty"`
	Schema   *Schema    `json:"schema,omitempty"`
}

// Parameter locations.
const (
	InPath   = "path"
	InQuery  = "query"
	InHeader = "header"
	InBody   = "body"
)

// Response represents a declared response for one status code
type Response struct {
	Ref         string            `json:"$ref,omitempty"`
	Description string            `json:"description,omitempty"`
	Schema      *Schema           `json:"schema,omitempty"`
	Headers     map[string]Header `json:"headers,omitempty"`
}

// Header represents a declared response header
type Header struct {
	Description string     `json:"description,omitempty"`
	Type        SchemaType `json:"type,omitempty"`
	Format      string     `json:"format,omitempty"`
	Enum        []any      `json:"enum,omitempty"`
	Items       *Schema    `json:"items,omitempty"`
	Required    bool       `json:"x-required,omitempty"`
}

// Operations returns every operation in the document, sorted by path then method,
// with Method and Path filled in and path-level parameters merged.
func (d *Document) Operations() []*Operation {
	paths := make([]string, 0, len(d.Paths))
	for p := range d.Paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var ops []*Operation
	for _, p := range paths {
		item := d.Paths[p]
		if item == nil {
			continue
		}
		byMethod := item.Operations()
		methods := make([]string, 0, len(byMethod))
		for m := range byMethod {
			methods = append(methods, m)
		}
		sort.Strings(methods)
		for _, m := range methods {
			op := *byMethod[m]
			op.Method = m
			op.Path = p
			op.Parameters = mergeParameters(item.Parameters, op.Parameters)
			ops = append(ops, &op)
		}
	}
	return ops
}

// mergeParameters overlays operation parameters on path-level ones, matching on (name, in).
func mergeParameters(shared, own []Parameter) []Parameter {
	if len(shared) == 0 {
		return own
	}
	merged := make([]Parameter, 0, len(shared)+len(own))
	for _, sp := range shared {
		overridden := false
		for _, op := range own {
			if op.Name == sp.Name && op.In == sp.In {
				overridden = true
				break
			}
		}
		if !overridden {
			merged = append(merged, sp)
		}
	}
	return append(merged, own...)
}

// ValidParamTable maps a parameter name to a known-good literal value
type ValidParamTable map[string]any

// Lookup returns the value for name formatted for the wire.
func (t ValidParamTable) Lookup(name string) (string, bool) {
	v, ok := t[name]
	if !ok || v == nil {
		return "", false
	}
	return FormatValue(v), true
}

// FormatValue renders a parameter value as it appears in a URL or header.
func FormatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprint(val)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = FormatValue(item)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(val)
	}
}

// Override represents explicit request data for a specific operation
type Override struct {
	PathParams  map[string]any    `json:"path_params,omitempty" yaml:"path_params,omitempty"`
	QueryParams map[string]any    `json:"query_params,omitempty" yaml:"query_params,omitempty"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body        any               `json:"body,omitempty" yaml:"body,omitempty"`
	Status      int               `json:"status,omitempty" yaml:"status,omitempty"`
}

// RequestDescriptor represents one concrete request derived for an operation
type RequestDescriptor struct {
	Operation      string
	Method         string
	Path           string
	Query          url.Values
	Headers        map[string]string
	Body           any
	ExpectedStatus int
}

// URL returns the path with the encoded query string appended.
func (r *RequestDescriptor) URL() string {
	if len(r.Query) == 0 {
		return r.Path
	}
	return r.Path + "?" + r.Query.Encode()
}

// RequestResult represents the outcome of executing a RequestDescriptor
type RequestResult struct {
	Request  *RequestDescriptor
	Status   int
	Body     []byte
	Headers  http.Header
	Duration time.Duration
	Err      error
}

// ViolationKind classifies a schema violation
type ViolationKind string

// Violation kinds.
const (
	MissingRequired ViolationKind = "missing-required"
	WrongType       ViolationKind = "wrong-type"
	UnknownProperty ViolationKind = "unknown-property"
	InvalidFormat   ViolationKind = "invalid-format"
	InvalidValue    ViolationKind = "invalid-value"
)

// Violation represents one mismatch between an observed value and its schema
type Violation struct {
	Path    string        `json:"path"`
	Kind    ViolationKind `json:"kind"`
	Message string        `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s (%s)", v.Kind, v.Path, v.Message)
}
