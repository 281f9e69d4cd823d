package types

import (
	"encoding/json"
	"fmt"
)

// SchemaType is the primitive type declared by a schema's "type" keyword.
type SchemaType string

// Known schema types. Any other value is carried through unchanged and
// treated as unconstrained by the validator.
const (
	TypeUnspecified SchemaType = ""
	TypeString      SchemaType = "string"
	TypeArray       SchemaType = "array"
	TypeInteger     SchemaType = "integer"
	TypeNumber      SchemaType = "number"
	TypeObject      SchemaType = "object"
	TypeBoolean     SchemaType = "boolean"
)

// Known reports whether t is one of the closed set of schema types.
func (t SchemaType) Known() bool {
	switch t {
	case TypeString, TypeArray, TypeInteger, TypeNumber, TypeObject, TypeBoolean:
		return true
	default:
		return false
	}
}

// Schema represents a JSON Schema fragment as found in a Swagger/OpenAPI document.
// Only the keywords the contract checks need are decoded.
type Schema struct {
	Ref         string             `json:"$ref,omitempty"`
	Type        SchemaType         `json:"type,omitempty"`
	Format      string             `json:"format,omitempty"`
	Description string             `json:"description,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []any              `json:"enum,omitempty"`
	Default     any                `json:"default,omitempty"`
	Nullable    bool               `json:"nullable,omitempty"`
	XNullable   bool               `json:"x-nullable,omitempty"`
}

// IsRef reports whether the schema is a reference pointer.
func (s *Schema) IsRef() bool {
	return s != nil && s.Ref != ""
}

// AllowsNull reports whether an explicit null satisfies the schema.
func (s *Schema) AllowsNull() bool {
	return s != nil && (s.Nullable || s.XNullable)
}

// IsRequired reports whether name is listed in the schema's required set.
func (s *Schema) IsRequired(name string) bool {
	if s == nil {
		return false
	}
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

// UnmarshalJSON decodes a schema, accepting the OpenAPI 3.1 form where "type"
// is an array. The first non-null entry becomes the type and a "null" entry
// marks the schema nullable.
func (s *Schema) UnmarshalJSON(data []byte) error {
	type plain Schema
	var raw struct {
		plain
		Type json.RawMessage `json:"type,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Schema(raw.plain)
	s.Type = TypeUnspecified
	if len(raw.Type) == 0 || string(raw.Type) == "null" {
		return nil
	}

	var single string
	if err := json.Unmarshal(raw.Type, &single); err == nil {
		s.Type = SchemaType(single)
		return nil
	}

	var many []string
	if err := json.Unmarshal(raw.Type, &many); err != nil {
		return fmt.Errorf("schema type must be a string or an array of strings: %w", err)
	}
	for _, t := range many {
		if t == "null" {
			s.Nullable = true
			continue
		}
		if s.Type == TypeUnspecified {
			s.Type = SchemaType(t)
		}
	}
	return nil
}
