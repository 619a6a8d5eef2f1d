package llm

import (
	"fmt"
	"strings"

	"herald/pkg/config"
)

type Config struct {
	Provider string
	Model    string
	APIKey   string
	APIURL   string
}

// LoadConfig loads LLM configuration from LLM_* env vars. DEEPSEEK_API_KEY is
// honored as the key fallback since DeepSeek is the default provider.
func LoadConfig() Config {
	return Config{
		Provider: config.GetEnv("LLM_PROVIDER", "deepseek"),
		Model:    config.GetEnv("LLM_MODEL", "deepseek-chat"),
		APIKey:   config.GetEnv("LLM_API_KEY", config.GetEnv("DEEPSEEK_API_KEY", "")),
		APIURL:   config.GetEnv("LLM_API_URL", ""),
	}
}

func NewProvider(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "deepseek", "openai":
		return NewDeepSeekProvider(cfg), nil
	case "ollama":
		return NewOllamaProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
