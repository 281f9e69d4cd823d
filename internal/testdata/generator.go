package testdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"api-contract-tester/internal/logger"
	"api-contract-tester/internal/resolver"
	"api-contract-tester/internal/types"
)

// TemplateFile is the name of the generated params template.
const TemplateFile = "params_template.json"

// maxSampleDepth bounds recursion through self-referencing schemas.
const maxSampleDepth = 6

// Suggester proposes realistic values for the parameters of one operation.
type Suggester interface {
	SuggestParams(ctx context.Context, op *types.Operation, params []types.Parameter) (map[string]any, error)
}

// Chain asks each suggester in turn for the parameters still without a
// value. The first value proposed for a name wins and failures of one
// suggester do not stop the others.
type Chain []Suggester

// SuggestParams implements Suggester.
func (c Chain) SuggestParams(ctx context.Context, op *types.Operation, params []types.Parameter) (map[string]any, error) {
	values := make(map[string]any, len(params))
	var errs []error
	for _, s := range c {
		var remaining []types.Parameter
		for _, p := range params {
			if _, ok := values[p.Name]; !ok {
				remaining = append(remaining, p)
			}
		}
		if len(remaining) == 0 {
			break
		}
		suggested, err := s.SuggestParams(ctx, op, remaining)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, p := range remaining {
			if v, ok := suggested[p.Name]; ok && v != nil {
				values[p.Name] = v
			}
		}
	}
	return values, errors.Join(errs...)
}

// Generator handles the generation of params templates
type Generator struct {
	outputDir string
	suggester Suggester
	logger    *logger.Logger
}

// NewGenerator creates a new instance of Generator. suggester may be nil.
func NewGenerator(outputDir string, suggester Suggester, log *logger.Logger) *Generator {
	return &Generator{
		outputDir: outputDir,
		suggester: suggester,
		logger:    log,
	}
}

// GenerateTemplate writes a params template for doc and returns its path.
func (g *Generator) GenerateTemplate(ctx context.Context, doc *types.Document) (string, error) {
	params := g.Template(ctx, doc)

	if err := os.MkdirAll(g.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	data, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal template: %w", err)
	}
	outputPath := filepath.Join(g.outputDir, TemplateFile)
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write template file: %w", err)
	}
	g.logger.Infof("Params template generated at: %s", outputPath)
	return outputPath, nil
}

// Template builds sample values for every parameter a request needs and an
// override stub, with a sample body where one is declared, for every
// operation other than GET.
func (g *Generator) Template(ctx context.Context, doc *types.Document) *Params {
	res := resolver.New(doc)
	params := &Params{
		Params:    types.ValidParamTable{},
		Endpoints: map[string]types.Override{},
	}

	for _, op := range doc.Operations() {
		needed := neededParameters(op)
		values := make(map[string]any, len(needed))
		for _, p := range needed {
			values[p.Name] = sampleParameter(res, p)
		}
		if g.suggester != nil && len(needed) > 0 {
			suggested, err := g.suggester.SuggestParams(ctx, op, needed)
			if err != nil {
				g.logger.Warnf("No suggestions for %s: %v", op.Key(), err)
			}
			for _, p := range needed {
				if v, ok := suggested[p.Name]; ok && v != nil {
					values[p.Name] = v
				}
			}
		}
		for name, v := range values {
			if _, exists := params.Params[name]; !exists {
				params.Params[name] = v
			}
		}

		if op.Method == http.MethodGet {
			continue
		}
		var override types.Override
		for _, p := range op.Parameters {
			if p.In == types.InBody {
				override.Body = sampleSchema(res, p.Schema, 0)
			}
		}
		params.Endpoints[op.Key()] = override
	}
	return params
}

// neededParameters lists the parameters a planned request must fill: every
// path parameter and the required query and header parameters.
func neededParameters(op *types.Operation) []types.Parameter {
	var needed []types.Parameter
	for _, p := range op.Parameters {
		switch {
		case p.In == types.InPath:
			needed = append(needed, p)
		case p.Required && (p.In == types.InQuery || p.In == types.InHeader):
			needed = append(needed, p)
		}
	}
	return needed
}

func sampleParameter(res *resolver.Resolver, p types.Parameter) any {
	if p.Type == types.TypeUnspecified && p.Schema != nil {
		return sampleSchema(res, p.Schema, 0)
	}
	return sampleSchema(res, &types.Schema{
		Type:    p.Type,
		Format:  p.Format,
		Enum:    p.Enum,
		Default: p.Default,
		Items:   p.Items,
	}, 0)
}

// sampleSchema generates a value that conforms to s.
func sampleSchema(res *resolver.Resolver, s *types.Schema, depth int) any {
	if s == nil || depth > maxSampleDepth {
		return nil
	}
	s, err := res.Resolve(s)
	if err != nil {
		return nil
	}
	if s.Default != nil {
		return s.Default
	}
	if len(s.Enum) > 0 {
		return s.Enum[0]
	}

	switch s.Type {
	case types.TypeString:
		return sampleString(s.Format)
	case types.TypeInteger:
		switch s.Format {
		case "int64":
			return 123456789
		default:
			return 123
		}
	case types.TypeNumber:
		switch s.Format {
		case "double":
			return 123.456789
		default:
			return 123.45
		}
	case types.TypeBoolean:
		return true
	case types.TypeArray:
		if s.Items == nil {
			return []any{"sample_item"}
		}
		return []any{sampleSchema(res, s.Items, depth+1)}
	case types.TypeObject, types.TypeUnspecified:
		if len(s.Properties) == 0 {
			if s.Type == types.TypeObject {
				return map[string]any{}
			}
			return "sample_string"
		}
		result := make(map[string]any, len(s.Properties))
		for name, prop := range s.Properties {
			result[name] = sampleSchema(res, prop, depth+1)
		}
		return result
	}
	return nil
}

func sampleString(format string) string {
	switch format {
	case "email":
		return "test@example.com"
	case "date":
		return "2024-01-01"
	case "date-time":
		return "2024-01-01T12:00:00Z"
	case "uuid":
		return "123e4567-e89b-12d3-a456-426614174000"
	case "uri":
		return "https://example.com"
	case "hostname":
		return "example.com"
	case "ipv4":
		return "192.168.1.1"
	case "ipv6":
		return "2001:db8::1"
	case "hex":
		return "deadbeef"
	default:
		return "sample_string"
	}
}
