package validator

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"api-contract-tester/internal/types"
)

// ValidateHeaders checks observed response headers against the declared
// header table. Names are compared case-insensitively and wire values are
// coerced to the declared type first. Undeclared headers are never reported.
func (v *Validator) ValidateHeaders(observed http.Header, declared map[string]types.Header) ([]types.Violation, error) {
	if len(declared) == 0 {
		return nil, nil
	}

	values := make(map[string][]string, len(observed))
	for name, vals := range observed {
		key := strings.ToLower(name)
		values[key] = append(values[key], vals...)
	}

	schema := &types.Schema{
		Type:       types.TypeObject,
		Properties: make(map[string]*types.Schema, len(declared)),
	}
	obj := make(map[string]any)

	names := make([]string, 0, len(declared))
	for name := range declared {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		h := declared[name]
		key := strings.ToLower(name)
		prop := &types.Schema{Type: h.Type, Format: h.Format, Enum: h.Enum, Items: h.Items}
		schema.Properties[key] = prop
		if h.Required {
			schema.Required = append(schema.Required, key)
		}
		if vals, ok := values[key]; ok {
			obj[key] = coerce(strings.Join(vals, ","), prop)
		}
	}

	var out []types.Violation
	if err := v.check("headers", obj, schema, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// coerce converts a header's wire string to the declared type. Values that do
// not convert are left as strings so the type check reports them.
func coerce(raw string, s *types.Schema) any {
	switch s.Type {
	case types.TypeInteger, types.TypeNumber:
		if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			return f
		}
	case types.TypeBoolean:
		if b, err := strconv.ParseBool(strings.TrimSpace(raw)); err == nil {
			return b
		}
	case types.TypeArray:
		parts := strings.Split(raw, ",")
		items := make([]any, len(parts))
		item := s.Items
		if item == nil {
			item = &types.Schema{}
		}
		for i, p := range parts {
			items[i] = coerce(strings.TrimSpace(p), item)
		}
		return items
	}
	return raw
}
