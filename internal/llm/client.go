// Package llm asks a language model for realistic parameter values.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"api-contract-tester/internal/logger"
	"api-contract-tester/internal/types"
)

const systemPrompt = "You are a helpful assistant that proposes realistic test values for HTTP API parameters. Always respond with a single JSON object."

// Client suggests parameter values for API operations
type Client interface {
	SuggestParams(ctx context.Context, op *types.Operation, params []types.Parameter) (map[string]any, error)
}

// completer performs one prompt/answer exchange with a provider.
type completer interface {
	complete(ctx context.Context, system, prompt string) (string, error)
}

// BaseClient implements prompt construction and answer parsing on top of a
// provider-specific completer.
type BaseClient struct {
	config    *Config
	logger    *logger.Logger
	completer completer
}

// NewBaseClient creates a new base LLM client
func NewBaseClient(config *Config, logger *logger.Logger, c completer) *BaseClient {
	return &BaseClient{
		config:    config,
		logger:    logger,
		completer: c,
	}
}

// SuggestParams asks the model for one value per parameter. Only names from
// params are kept from the answer.
func (c *BaseClient) SuggestParams(ctx context.Context, op *types.Operation, params []types.Parameter) (map[string]any, error) {
	if len(params) == 0 {
		return map[string]any{}, nil
	}
	prompt := buildPrompt(op, params)
	input := map[string]any{"operation": op.Key(), "parameters": len(params)}

	response, err := c.completer.complete(ctx, systemPrompt, prompt)
	if err != nil {
		c.logger.LogInteraction("SuggestParams", input, nil, err)
		return nil, fmt.Errorf("failed to get suggestions: %w", err)
	}

	var answer map[string]any
	if err := json.Unmarshal([]byte(stripCodeFence(response)), &answer); err != nil {
		c.logger.LogInteraction("SuggestParams", input, response, err)
		return nil, fmt.Errorf("failed to parse LLM response: %w", err)
	}

	suggestions := make(map[string]any, len(params))
	for _, p := range params {
		if v, ok := answer[p.Name]; ok && v != nil {
			suggestions[p.Name] = v
		}
	}
	c.logger.LogInteraction("SuggestParams", input, suggestions, nil)
	return suggestions, nil
}

func buildPrompt(op *types.Operation, params []types.Parameter) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Propose realistic values for the parameters of the API operation %s", op.Key())
	if op.Summary != "" {
		fmt.Fprintf(&b, " (%s)", op.Summary)
	}
	b.WriteString(".\n\nParameters:\n")
	for _, p := range params {
		fmt.Fprintf(&b, "- %s (in: %s", p.Name, p.In)
		typ, format, enum := p.Type, p.Format, p.Enum
		if typ == types.TypeUnspecified && p.Schema != nil {
			typ, format, enum = p.Schema.Type, p.Schema.Format, p.Schema.Enum
		}
		if typ != types.TypeUnspecified {
			fmt.Fprintf(&b, ", type: %s", typ)
		}
		if format != "" {
			fmt.Fprintf(&b, ", format: %s", format)
		}
		if len(enum) > 0 {
			fmt.Fprintf(&b, ", one of: %v", enum)
		}
		b.WriteString(")\n")
	}
	b.WriteString("\nRespond with a JSON object mapping each parameter name to its value.")
	return b.String()
}

// stripCodeFence removes a surrounding ``` block some models add around JSON.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
