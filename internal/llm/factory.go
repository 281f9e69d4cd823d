package llm

import (
	"fmt"

	"api-contract-tester/internal/logger"
)

// NewClient creates a new LLM client based on the provider
func NewClient(config *Config, logger *logger.Logger) (Client, error) {
	switch config.Provider {
	case "openai", "":
		if config.APIKey == "" {
			return nil, fmt.Errorf("API key is required")
		}
		return NewOpenAIClient(config, logger), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", config.Provider)
	}
}
