package llm

import (
	"context"
	"strings"
)

type OllamaProvider struct {
	deepseek *DeepSeekProvider
}

func NewOllamaProvider(cfg Config) *OllamaProvider {
	cfgCopy := cfg
	if strings.TrimSpace(cfgCopy.APIURL) == "" {
		cfgCopy.APIURL = "http://localhost:11434/v1"
	}
	return &OllamaProvider{
		deepseek: NewDeepSeekProvider(cfgCopy),
	}
}

func (p *OllamaProvider) Complete(ctx context.Context, req Request) (Stream, error) {
	return p.deepseek.Complete(ctx, req)
}
