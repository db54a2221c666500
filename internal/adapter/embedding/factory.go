package embedding

import (
	"fmt"

	"dialogue/config"
	"dialogue/internal/port"
)

// New builds the embedder selected by cfg.Provider.
func New(cfg config.EmbeddingConfig) (port.Embedder, error) {
	switch cfg.Provider {
	case "hash", "":
		return NewHashEmbedder(cfg.Dimension), nil
	case "openai":
		return NewOpenAIEmbedder(cfg.APIKeyEnv, cfg.Model, cfg.Dimension)
	case "deepseek":
		return NewDeepSeekEmbedder(cfg.APIKeyEnv, cfg.Model, cfg.Dimension)
	case "jina":
		return NewJinaEmbedder(cfg.APIKeyEnv, cfg.Model, cfg.Dimension)
	case "ollama":
		return NewOllamaEmbedder(cfg.Model, cfg.BaseURL, cfg.Dimension)
	case "mock":
		return NewMockEmbedder(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}
