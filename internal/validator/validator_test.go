package validator

import (
	"errors"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"api-contract-tester/internal/formats"
	"api-contract-tester/internal/resolver"
	"api-contract-tester/internal/types"
)

func petSchema() *types.Schema {
	return &types.Schema{
		Type:     types.TypeObject,
		Required: []string{"id"},
		Properties: map[string]*types.Schema{
			"id":   {Type: types.TypeString},
			"name": {Type: types.TypeString},
		},
	}
}

func newValidator(doc *types.Document, opts Options) *Validator {
	if doc == nil {
		doc = &types.Document{}
	}
	return New(resolver.New(doc), formats.Default(), opts)
}

func TestValidatePetSchema(t *testing.T) {
	tests := []struct {
		name  string
		value any
		opts  Options
		want  []types.Violation
	}{
		{
			name:  "conformant",
			value: map[string]any{"id": "x"},
		},
		{
			name:  "missing required",
			value: map[string]any{},
			want:  []types.Violation{{Path: "$.id", Kind: types.MissingRequired, Message: "required property is absent"}},
		},
		{
			name:  "wrong type",
			value: map[string]any{"id": float64(1)},
			want:  []types.Violation{{Path: "$.id", Kind: types.WrongType, Message: "expected string, got number"}},
		},
		{
			name:  "unknown property banned",
			value: map[string]any{"id": "x", "extra": float64(1)},
			opts:  Options{BanUnknownProperties: true},
			want:  []types.Violation{{Path: "$.extra", Kind: types.UnknownProperty, Message: "property is not declared in the schema"}},
		},
		{
			name:  "unknown property allowed",
			value: map[string]any{"id": "x", "extra": float64(1)},
		},
		{
			name:  "empty optional value is still type-checked",
			value: map[string]any{"id": "", "name": false},
			want:  []types.Violation{{Path: "$.name", Kind: types.WrongType, Message: "expected string, got boolean"}},
		},
		{
			name:  "body is not an object",
			value: []any{},
			want:  []types.Violation{{Path: "$", Kind: types.WrongType, Message: "expected object, got array"}},
		},
		{
			name:  "null body",
			value: nil,
			want:  []types.Violation{{Path: "$", Kind: types.WrongType, Message: "expected object, got null"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newValidator(nil, tt.opts).Validate(tt.value, petSchema())
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("violations mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValidateResolvesReferences(t *testing.T) {
	doc := &types.Document{Definitions: map[string]*types.Schema{
		"pet": petSchema(),
		"owner": {
			Type: types.TypeObject,
			Properties: map[string]*types.Schema{
				"email": {Type: types.TypeString, Format: "email"},
				"pets":  {Type: types.TypeArray, Items: &types.Schema{Ref: "#/definitions/pet"}},
			},
		},
	}}
	v := newValidator(doc, Options{BanUnknownProperties: true})

	list := &types.Schema{Type: types.TypeArray, Items: &types.Schema{Ref: "#/definitions/owner"}}
	value := []any{
		map[string]any{"email": "jo@example.com", "pets": []any{map[string]any{"id": "1"}}},
		map[string]any{"email": "not-an-email", "pets": []any{map[string]any{"name": "Leo"}, "cat"}},
	}

	got, err := v.Validate(value, list)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "$[1].email", got[0].Path)
	assert.Equal(t, types.InvalidFormat, got[0].Kind)
	assert.Equal(t, types.Violation{Path: "$[1].pets[0].id", Kind: types.MissingRequired, Message: "required property is absent"}, got[1])
	assert.Equal(t, types.Violation{Path: "$[1].pets[1]", Kind: types.WrongType, Message: "expected object, got string"}, got[2])
}

func TestValidateUnresolvedReference(t *testing.T) {
	_, err := newValidator(nil, Options{}).Validate(map[string]any{}, &types.Schema{Ref: "#/definitions/missing"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, resolver.ErrUnresolved))
}

func TestValidateNumbers(t *testing.T) {
	schema := &types.Schema{Type: types.TypeObject, Properties: map[string]*types.Schema{
		"count": {Type: types.TypeInteger},
		"ratio": {Type: types.TypeNumber},
	}}
	value := map[string]any{"count": 1.5, "ratio": float64(2)}

	got, err := newValidator(nil, Options{}).Validate(value, schema)
	require.NoError(t, err)
	assert.Empty(t, got, "integers only need to be numeric by default")

	got, err = newValidator(nil, Options{StrictIntegers: true}).Validate(value, schema)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "$.count", got[0].Path)
	assert.Equal(t, types.WrongType, got[0].Kind)

	got, err = newValidator(nil, Options{}).Validate(map[string]any{"count": "1"}, schema)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "expected integer, got string", got[0].Message)
}

func TestValidateEnumAndNull(t *testing.T) {
	schema := &types.Schema{Type: types.TypeObject, Properties: map[string]*types.Schema{
		"status": {Type: types.TypeString, Enum: []any{"available", "sold"}},
		"level":  {Type: types.TypeInteger, Enum: []any{float64(1), float64(2)}},
		"owner":  {Type: types.TypeString, XNullable: true},
		"tag":    {Type: types.TypeString},
	}}

	got, err := newValidator(nil, Options{}).Validate(map[string]any{
		"status": "lost",
		"level":  float64(2),
		"owner":  nil,
		"tag":    nil,
	}, schema)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, types.Violation{Path: "$.status", Kind: types.InvalidValue, Message: "value lost is not one of [available sold]"}, got[0])
	assert.Equal(t, types.Violation{Path: "$.tag", Kind: types.WrongType, Message: "expected string, got null"}, got[1])
}

func TestValidateFormats(t *testing.T) {
	schema := &types.Schema{Type: types.TypeObject, Properties: map[string]*types.Schema{
		"id":      {Type: types.TypeString, Format: "uuid"},
		"created": {Type: types.TypeString, Format: "date-time"},
		"custom":  {Type: types.TypeString, Format: "made-up"},
	}}

	got, err := newValidator(nil, Options{}).Validate(map[string]any{
		"id":      "550E8400-E29B-41D4-A716-446655440000",
		"created": "2021-02-29T10:00:00Z",
		"custom":  "anything",
	}, schema)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "$.created", got[0].Path)
	assert.Equal(t, "$.id", got[1].Path)
	for _, v := range got {
		assert.Equal(t, types.InvalidFormat, v.Kind)
	}
}

func TestValidateUntypedSchema(t *testing.T) {
	schema := &types.Schema{Required: []string{"id"}, Properties: map[string]*types.Schema{"id": {Type: types.TypeString}}}
	got, err := newValidator(nil, Options{}).Validate(map[string]any{}, schema)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, types.MissingRequired, got[0].Kind)

	got, err = newValidator(nil, Options{BanUnknownProperties: true}).Validate(map[string]any{"a": 1}, &types.Schema{Type: types.TypeObject})
	require.NoError(t, err)
	assert.Empty(t, got, "free-form objects accept any key")
}

func TestValidateHeaders(t *testing.T) {
	declared := map[string]types.Header{
		"X-Rate-Limit": {Type: types.TypeInteger, Required: true},
		"X-Request-Id": {Type: types.TypeString, Format: "uuid"},
		"X-Flags":      {Type: types.TypeArray, Items: &types.Schema{Type: types.TypeInteger}},
		"X-Expires":    {Type: types.TypeString, Format: "date-time", Required: true},
	}
	v := newValidator(nil, Options{BanUnknownProperties: true})

	t.Run("conformant", func(t *testing.T) {
		h := http.Header{}
		h.Set("x-rate-limit", "100")
		h.Set("X-REQUEST-ID", "550e8400-e29b-41d4-a716-446655440000")
		h.Set("X-Flags", "1, 2,3")
		h.Set("X-Expires", "2024-02-29T23:59:60Z")
		h.Set("X-Undeclared", "ignored")
		got, err := v.ValidateHeaders(h, declared)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("violations", func(t *testing.T) {
		h := http.Header{}
		h.Set("X-Rate-Limit", "lots")
		h.Set("X-Request-Id", "nope")
		h.Set("X-Flags", "1,b")
		got, err := v.ValidateHeaders(h, declared)
		require.NoError(t, err)

		paths := make([]string, len(got))
		kinds := make([]types.ViolationKind, len(got))
		for i, vi := range got {
			paths[i] = vi.Path
			kinds[i] = vi.Kind
		}
		assert.Equal(t, []string{"headers.x-expires", "headers.x-flags[1]", "headers.x-rate-limit", "headers.x-request-id"}, paths)
		assert.Equal(t, []types.ViolationKind{types.MissingRequired, types.WrongType, types.WrongType, types.InvalidFormat}, kinds)
	})

	t.Run("nothing declared", func(t *testing.T) {
		got, err := v.ValidateHeaders(http.Header{"X-Any": {"1"}}, nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestDecodeBody(t *testing.T) {
	v, err := DecodeBody([]byte("  "))
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = DecodeBody([]byte(`{"id":"abc"}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "abc"}, v)

	_, err = DecodeBody([]byte(`<html>`))
	assert.ErrorContains(t, err, "not valid JSON")
}
