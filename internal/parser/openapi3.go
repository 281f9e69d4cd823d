package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"api-contract-tester/internal/logger"
	"api-contract-tester/internal/types"

	"github.com/getkin/kin-openapi/openapi3"
)

// The OpenAPI 3 shapes below cover only what is converted into types.Document.
type oas3Document struct {
	Servers []struct {
		URL string `json:"url"`
	} `json:"servers"`
	Paths      map[string]*oas3PathItem `json:"paths"`
	Components struct {
		Schemas       map[string]*types.Schema    `json:"schemas"`
		Parameters    map[string]*oas3Parameter   `json:"parameters"`
		Responses     map[string]*oas3Response    `json:"responses"`
		Headers       map[string]*oas3Header      `json:"headers"`
		RequestBodies map[string]*oas3RequestBody `json:"requestBodies"`
	} `json:"components"`
}

type oas3PathItem struct {
	Get        *oas3Operation   `json:"get"`
	Put        *oas3Operation   `json:"put"`
	Post       *oas3Operation   `json:"post"`
	Delete     *oas3Operation   `json:"delete"`
	Options    *oas3Operation   `json:"options"`
	Head       *oas3Operation   `json:"head"`
	Patch      *oas3Operation   `json:"patch"`
	Parameters []*oas3Parameter `json:"parameters"`
}

type oas3Operation struct {
	OperationID string                   `json:"operationId"`
	Summary     string                   `json:"summary"`
	Parameters  []*oas3Parameter         `json:"parameters"`
	RequestBody *oas3RequestBody         `json:"requestBody"`
	Responses   map[string]*oas3Response `json:"responses"`
	SkipTest    bool                     `json:"x-skip-contract-test"`
}

type oas3Parameter struct {
	Ref      string        `json:"$ref"`
	Name     string        `json:"name"`
	In       string        `json:"in"`
	Required bool          `json:"required"`
	Schema   *types.Schema `json:"schema"`
}

type oas3RequestBody struct {
	Ref      string                   `json:"$ref"`
	Required bool                     `json:"required"`
	Content  map[string]oas3MediaType `json:"content"`
}

type oas3Response struct {
	Ref         string                   `json:"$ref"`
	Description string                   `json:"description"`
	Headers     map[string]*oas3Header   `json:"headers"`
	Content     map[string]oas3MediaType `json:"content"`
}

type oas3Header struct {
	Ref         string        `json:"$ref"`
	Description string        `json:"description"`
	Required    bool          `json:"required"`
	Schema      *types.Schema `json:"schema"`
}

type oas3MediaType struct {
	Schema *types.Schema `json:"schema"`
}

// decodeOpenAPI3 loads the document with kin-openapi, reports structural
// problems as warnings, then converts it to the Swagger-shaped model.
func decodeOpenAPI3(ctx context.Context, data []byte, log *logger.Logger) (*types.Document, error) {
	loader := openapi3.NewLoader()
	loaded, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI doc: %w", err)
	}
	if err := loaded.Validate(ctx); err != nil {
		log.Warnf("OpenAPI document has validation issues: %v", err)
	}

	normalized, err := json.Marshal(loaded)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize OpenAPI doc: %w", err)
	}
	var raw oas3Document
	if err := json.Unmarshal(normalized, &raw); err != nil {
		return nil, fmt.Errorf("failed to read OpenAPI doc: %w", err)
	}

	c := &oas3Converter{raw: &raw}
	doc := &types.Document{
		BasePath:    c.basePath(),
		Definitions: raw.Components.Schemas,
		Paths:       make(map[string]*types.PathItem, len(raw.Paths)),
	}
	if doc.Definitions == nil {
		doc.Definitions = map[string]*types.Schema{}
	}

	for path, item := range raw.Paths {
		if item == nil {
			continue
		}
		converted, err := c.pathItem(item)
		if err != nil {
			return nil, fmt.Errorf("paths %s: %w", path, err)
		}
		doc.Paths[path] = converted
	}
	return doc, nil
}

type oas3Converter struct {
	raw *oas3Document
}

// basePath is the path component of the first server URL.
func (c *oas3Converter) basePath() string {
	if len(c.raw.Servers) == 0 {
		return ""
	}
	u, err := url.Parse(c.raw.Servers[0].URL)
	if err != nil {
		return ""
	}
	return strings.TrimRight(u.Path, "/")
}

func (c *oas3Converter) pathItem(item *oas3PathItem) (*types.PathItem, error) {
	shared, err := c.parameters(item.Parameters)
	if err != nil {
		return nil, err
	}
	out := &types.PathItem{Parameters: shared}
	targets := []struct {
		src *oas3Operation
		dst **types.Operation
	}{
		{item.Get, &out.Get},
		{item.Put, &out.Put},
		{item.Post, &out.Post},
		{item.Delete, &out.Delete},
		{item.Options, &out.Options},
		{item.Head, &out.Head},
		{item.Patch, &out.Patch},
	}
	for _, t := range targets {
		if t.src == nil {
			continue
		}
		op, err := c.operation(t.src)
		if err != nil {
			return nil, err
		}
		*t.dst = op
	}
	return out, nil
}

func (c *oas3Converter) operation(src *oas3Operation) (*types.Operation, error) {
	params, err := c.parameters(src.Parameters)
	if err != nil {
		return nil, err
	}
	if body := c.requestBody(src.RequestBody); body != nil {
		params = append(params, *body)
	}

	op := &types.Operation{
		OperationID: src.OperationID,
		Summary:     src.Summary,
		Parameters:  params,
		Responses:   make(map[string]types.Response, len(src.Responses)),
		SkipTest:    src.SkipTest,
	}
	for code, resp := range src.Responses {
		converted, err := c.response(resp)
		if err != nil {
			return nil, fmt.Errorf("response %s: %w", code, err)
		}
		op.Responses[code] = converted
	}
	return op, nil
}

func (c *oas3Converter) parameters(src []*oas3Parameter) ([]types.Parameter, error) {
	out := make([]types.Parameter, 0, len(src))
	for _, p := range src {
		if p == nil {
			continue
		}
		if p.Ref != "" {
			shared, ok := c.raw.Components.Parameters[refName(p.Ref, "#/components/parameters/")]
			if !ok || shared == nil {
				return nil, fmt.Errorf("unknown parameter reference %q", p.Ref)
			}
			p = shared
		}
		param := types.Parameter{
			Name:     p.Name,
			In:       p.In,
			Required: p.Required,
			Schema:   p.Schema,
		}
		if s := p.Schema; s != nil && !s.IsRef() {
			param.Type = s.Type
			param.Format = s.Format
			param.Enum = s.Enum
			param.Default = s.Default
			param.Items = s.Items
		}
		out = append(out, param)
	}
	return out, nil
}

func (c *oas3Converter) requestBody(src *oas3RequestBody) *types.Parameter {
	if src == nil {
		return nil
	}
	if src.Ref != "" {
		shared, ok := c.raw.Components.RequestBodies[refName(src.Ref, "#/components/requestBodies/")]
		if !ok || shared == nil {
			return nil
		}
		src = shared
	}
	return &types.Parameter{
		Name:     "body",
		In:       types.InBody,
		Required: src.Required,
		Schema:   jsonSchema(src.Content),
	}
}

func (c *oas3Converter) response(src *oas3Response) (types.Response, error) {
	if src == nil {
		return types.Response{}, nil
	}
	if src.Ref != "" {
		shared, ok := c.raw.Components.Responses[refName(src.Ref, "#/components/responses/")]
		if !ok || shared == nil {
			return types.Response{}, fmt.Errorf("unknown response reference %q", src.Ref)
		}
		src = shared
	}

	resp := types.Response{
		Description: src.Description,
		Schema:      jsonSchema(src.Content),
	}
	if len(src.Headers) > 0 {
		resp.Headers = make(map[string]types.Header, len(src.Headers))
	}
	for name, h := range src.Headers {
		if h == nil {
			continue
		}
		if h.Ref != "" {
			shared, ok := c.raw.Components.Headers[refName(h.Ref, "#/components/headers/")]
			if !ok || shared == nil {
				return types.Response{}, fmt.Errorf("unknown header reference %q", h.Ref)
			}
			h = shared
		}
		header := types.Header{Description: h.Description, Required: h.Required}
		if s := h.Schema; s != nil && !s.IsRef() {
			header.Type = s.Type
			header.Format = s.Format
			header.Enum = s.Enum
			header.Items = s.Items
		}
		resp.Headers[name] = header
	}
	return resp, nil
}

// jsonSchema picks the schema of "application/json", falling back to the
// first (sorted) JSON-like media type.
func jsonSchema(content map[string]oas3MediaType) *types.Schema {
	if mt, ok := content["application/json"]; ok {
		return mt.Schema
	}
	keys := make([]string, 0, len(content))
	for k := range content {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.Contains(k, "json") {
			return content[k].Schema
		}
	}
	return nil
}
