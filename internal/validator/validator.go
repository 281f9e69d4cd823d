// Package validator checks response bodies and headers against their declared
// schemas and reports every mismatch as a separate violation.
package validator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"

	"api-contract-tester/internal/formats"
	"api-contract-tester/internal/resolver"
	"api-contract-tester/internal/types"
)

// Options tune how strictly values are checked.
type Options struct {
	// BanUnknownProperties reports object keys the schema does not declare.
	BanUnknownProperties bool
	// StrictIntegers rejects numbers with a fractional part where an integer is declared.
	StrictIntegers bool
}

// Validator validates decoded values. It holds no mutable state and is safe
// for concurrent use.
type Validator struct {
	resolver *resolver.Resolver
	formats  *formats.Registry
	opts     Options
}

// New creates a validator resolving references with r and checking formats with f.
// A nil registry means formats.Default().
func New(r *resolver.Resolver, f *formats.Registry, opts Options) *Validator {
	if f == nil {
		f = formats.Default()
	}
	return &Validator{resolver: r, formats: f, opts: opts}
}

// outcome classifies one declared property of an object value.
type outcome int

const (
	absent outcome = iota
	presentValid
	presentInvalid
)

// Validate checks value against schema. The returned error is non-nil only
// when a reference cannot be resolved.
func (v *Validator) Validate(value any, schema *types.Schema) ([]types.Violation, error) {
	var out []types.Violation
	if err := v.check("$", value, schema, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (v *Validator) check(path string, value any, schema *types.Schema, out *[]types.Violation) error {
	if schema == nil {
		return nil
	}
	s, err := v.resolver.Resolve(schema)
	if err != nil {
		return err
	}

	if value == nil {
		if s.Type != types.TypeUnspecified && !s.AllowsNull() {
			addf(out, path, types.WrongType, "expected %s, got null", s.Type)
		}
		return nil
	}

	ok, err := v.checkType(path, value, s, out)
	if err != nil || !ok {
		return err
	}

	if len(s.Enum) > 0 && !enumContains(s.Enum, value) {
		addf(out, path, types.InvalidValue, "value %v is not one of %v", value, s.Enum)
	}
	if s.Format != "" {
		if err := v.formats.Validate(s.Format, value); err != nil {
			add(out, path, types.InvalidFormat, err.Error())
		}
	}
	return nil
}

// checkType verifies the runtime type of value and recurses into containers.
// It reports false when the type itself did not match.
func (v *Validator) checkType(path string, value any, s *types.Schema, out *[]types.Violation) (bool, error) {
	mismatch := func() (bool, error) {
		addf(out, path, types.WrongType, "expected %s, got %s", s.Type, dataType(value))
		return false, nil
	}

	switch s.Type {
	case types.TypeString:
		if _, ok := value.(string); !ok {
			return mismatch()
		}
	case types.TypeBoolean:
		if _, ok := value.(bool); !ok {
			return mismatch()
		}
	case types.TypeNumber:
		if _, ok := toFloat(value); !ok {
			return mismatch()
		}
	case types.TypeInteger:
		f, ok := toFloat(value)
		if !ok {
			return mismatch()
		}
		if v.opts.StrictIntegers && f != math.Trunc(f) {
			addf(out, path, types.WrongType, "expected integer, got %v", f)
			return false, nil
		}
	case types.TypeArray:
		items, ok := value.([]any)
		if !ok {
			return mismatch()
		}
		return true, v.checkItems(path, items, s, out)
	case types.TypeObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return mismatch()
		}
		return true, v.checkObject(path, obj, s, out)
	case types.TypeUnspecified:
		// Untyped schemas still constrain the shape they describe.
		switch val := value.(type) {
		case map[string]any:
			if len(s.Properties) > 0 || len(s.Required) > 0 {
				return true, v.checkObject(path, val, s, out)
			}
		case []any:
			if s.Items != nil {
				return true, v.checkItems(path, val, s, out)
			}
		}
	default:
		// Unknown type keywords are not enforced.
	}
	return true, nil
}

func (v *Validator) checkItems(path string, items []any, s *types.Schema, out *[]types.Violation) error {
	if s.Items == nil {
		return nil
	}
	for i, item := range items {
		if err := v.check(fmt.Sprintf("%s[%d]", path, i), item, s.Items, out); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) checkObject(path string, obj map[string]any, s *types.Schema, out *[]types.Violation) error {
	for _, name := range declaredNames(s) {
		result, err := v.field(path+"."+name, obj, name, s.Properties[name], out)
		if err != nil {
			return err
		}
		if result == absent && s.IsRequired(name) {
			add(out, path+"."+name, types.MissingRequired, "required property is absent")
		}
	}

	// A schema without declared properties is a free-form object.
	if !v.opts.BanUnknownProperties || len(s.Properties) == 0 {
		return nil
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		if _, declared := s.Properties[k]; !declared {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		add(out, path+"."+k, types.UnknownProperty, "property is not declared in the schema")
	}
	return nil
}

// field checks one declared property. Absence is reported as such and never
// conflated with a present zero value, which is validated like any other.
func (v *Validator) field(path string, obj map[string]any, name string, schema *types.Schema, out *[]types.Violation) (outcome, error) {
	value, present := obj[name]
	if !present {
		return absent, nil
	}
	before := len(*out)
	if err := v.check(path, value, schema, out); err != nil {
		return presentInvalid, err
	}
	if len(*out) > before {
		return presentInvalid, nil
	}
	return presentValid, nil
}

// declaredNames returns the union of declared and required property names, sorted.
func declaredNames(s *types.Schema) []string {
	seen := make(map[string]bool, len(s.Properties)+len(s.Required))
	names := make([]string, 0, len(s.Properties)+len(s.Required))
	for name := range s.Properties {
		seen[name] = true
		names = append(names, name)
	}
	for _, name := range s.Required {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// DecodeBody decodes a JSON response body. An empty body decodes to nil.
func DecodeBody(body []byte) (any, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	var value any
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return nil, fmt.Errorf("response body is not valid JSON: %w", err)
	}
	return value, nil
}

func add(out *[]types.Violation, path string, kind types.ViolationKind, msg string) {
	*out = append(*out, types.Violation{Path: path, Kind: kind, Message: msg})
}

func addf(out *[]types.Violation, path string, kind types.ViolationKind, format string, args ...any) {
	add(out, path, kind, fmt.Sprintf(format, args...))
}

// dataType names the JSON type of a decoded value.
func dataType(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	if _, ok := toFloat(value); ok {
		return "number"
	}
	return fmt.Sprintf("%T", value)
}

func toFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func enumContains(enum []any, value any) bool {
	for _, candidate := range enum {
		if a, ok := toFloat(candidate); ok {
			if b, ok := toFloat(value); ok && a == b {
				return true
			}
			continue
		}
		if reflect.DeepEqual(candidate, value) {
			return true
		}
	}
	return false
}
