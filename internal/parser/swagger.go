// Package parser loads Swagger 2.0 and OpenAPI 3.x documents into the
// engine's document model.
package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"api-contract-tester/internal/logger"
	"api-contract-tester/internal/types"

	"gopkg.in/yaml.v3"
)

// SwaggerParser fetches and decodes API documents
type SwaggerParser struct {
	fetcher  Fetcher
	discover bool
	logger   *logger.Logger
}

// NewSwaggerParser creates a parser reading through fetcher. When discover is
// set and the configured path fails, the WellKnownLocations are tried.
func NewSwaggerParser(fetcher Fetcher, discover bool, log *logger.Logger) *SwaggerParser {
	return &SwaggerParser{
		fetcher:  fetcher,
		discover: discover,
		logger:   log,
	}
}

// Load fetches and decodes the document at path. Any failure is a *FetchError.
func (p *SwaggerParser) Load(ctx context.Context, path string) (*types.Document, error) {
	candidates := []string{path}
	if p.discover {
		for _, loc := range WellKnownLocations {
			if loc != path {
				candidates = append(candidates, loc)
			}
		}
	}

	var lastErr error
	for _, candidate := range candidates {
		p.logger.Debugf("Trying to fetch API documentation from: %s", candidate)
		data, err := p.fetcher.Fetch(ctx, candidate)
		if err != nil {
			p.logger.Debugf("Failed to fetch from %s: %v", candidate, err)
			lastErr = err
			continue
		}
		p.logger.Infof("Fetched API documentation from: %s", candidate)

		doc, err := Decode(ctx, data, p.logger)
		if err != nil {
			return nil, &FetchError{Source: candidate, Cause: err}
		}
		return doc, nil
	}
	return nil, &FetchError{Source: path, Cause: lastErr}
}

// versionHeader reads just enough of a document to pick a decoder.
type versionHeader struct {
	Swagger string `json:"swagger"`
	OpenAPI string `json:"openapi"`
}

// swaggerDocument is the Swagger 2.0 wire shape.
type swaggerDocument struct {
	Swagger     string                     `json:"swagger"`
	BasePath    string                     `json:"basePath"`
	Definitions map[string]*types.Schema   `json:"definitions"`
	Paths       map[string]*types.PathItem `json:"paths"`
	Parameters  map[string]types.Parameter `json:"parameters"`
	Responses   map[string]types.Response  `json:"responses"`
}

// Decode converts raw JSON or YAML document bytes into a Document.
func Decode(ctx context.Context, data []byte, log *logger.Logger) (*types.Document, error) {
	data, err := toJSON(data)
	if err != nil {
		return nil, err
	}

	var header versionHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("failed to parse API document: %w", err)
	}

	switch {
	case strings.HasPrefix(header.OpenAPI, "3."):
		return decodeOpenAPI3(ctx, data, log)
	case header.Swagger == "" || strings.HasPrefix(header.Swagger, "2."):
		return decodeSwagger(data)
	default:
		return nil, fmt.Errorf("unsupported document version %q", header.Swagger)
	}
}

func decodeSwagger(data []byte) (*types.Document, error) {
	var raw swaggerDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse Swagger document: %w", err)
	}

	doc := &types.Document{
		BasePath:    strings.TrimRight(raw.BasePath, "/"),
		Definitions: raw.Definitions,
		Paths:       raw.Paths,
	}
	if doc.Definitions == nil {
		doc.Definitions = map[string]*types.Schema{}
	}

	for path, item := range doc.Paths {
		if item == nil {
			continue
		}
		params, err := inlineParameters(item.Parameters, raw.Parameters)
		if err != nil {
			return nil, fmt.Errorf("paths %s: %w", path, err)
		}
		item.Parameters = params
		for method, op := range item.Operations() {
			if op.Parameters, err = inlineParameters(op.Parameters, raw.Parameters); err != nil {
				return nil, fmt.Errorf("%s: %w", types.OperationKey(method, path), err)
			}
			for code, resp := range op.Responses {
				if resp.Ref == "" {
					continue
				}
				shared, ok := raw.Responses[refName(resp.Ref, "#/responses/")]
				if !ok {
					return nil, fmt.Errorf("%s: response %s: unknown reference %q", types.OperationKey(method, path), code, resp.Ref)
				}
				op.Responses[code] = shared
			}
		}
	}
	return doc, nil
}

// inlineParameters replaces "#/parameters/<name>" references with the shared declaration.
func inlineParameters(params []types.Parameter, shared map[string]types.Parameter) ([]types.Parameter, error) {
	for i, p := range params {
		if p.Ref == "" {
			continue
		}
		decl, ok := shared[refName(p.Ref, "#/parameters/")]
		if !ok {
			return nil, fmt.Errorf("unknown parameter reference %q", p.Ref)
		}
		params[i] = decl
	}
	return params, nil
}

func refName(ref, prefix string) string {
	return strings.TrimPrefix(ref, prefix)
}

// toJSON converts YAML input to JSON; JSON input is returned unchanged.
func toJSON(data []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty API document")
	}
	if trimmed[0] == '{' {
		return trimmed, nil
	}

	var node any
	if err := yaml.Unmarshal(trimmed, &node); err != nil {
		return nil, fmt.Errorf("failed to parse YAML document: %w", err)
	}
	out, err := json.Marshal(normalizeYAML(node))
	if err != nil {
		return nil, fmt.Errorf("failed to convert YAML document: %w", err)
	}
	return out, nil
}

// normalizeYAML rewrites non-string map keys (e.g. unquoted status codes) as strings.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			val[k] = normalizeYAML(item)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalizeYAML(item)
		}
		return out
	case []any:
		for i, item := range val {
			val[i] = normalizeYAML(item)
		}
		return val
	default:
		return v
	}
}
