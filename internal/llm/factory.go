package llm

import (
	"os"
	"strings"

	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/config"
	xerrors "github.com/Streamweaver/CodebaseDocumentationCrew/internal/errors"
)

// NewClient 根据模型名前缀构造对应的大模型客户端。
// claude* 走 Anthropic，gpt* 走 OpenAI，其余模型名视为配置错误。
func NewClient(cfg config.LLMConfig) (Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.APIKeyEnv != "" {
		apiKey = strings.TrimSpace(os.Getenv(cfg.APIKeyEnv))
	}
	if apiKey == "" {
		return nil, xerrors.New(xerrors.CodeLLMConfig, "未提供 API Key")
	}

	model := strings.TrimSpace(cfg.Model)
	switch {
	case strings.HasPrefix(model, "claude"):
		return NewAnthropicClient(AnthropicConfig{
			APIKey:      apiKey,
			BaseURL:     cfg.BaseURL,
			Model:       model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout(),
		})
	case strings.HasPrefix(model, "gpt"):
		return NewOpenAIClient(OpenAIConfig{
			APIKey:      apiKey,
			BaseURL:     cfg.BaseURL,
			Model:       model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout(),
		})
	case model == "":
		return nil, xerrors.New(xerrors.CodeLLMConfig, "未提供模型名")
	default:
		return nil, xerrors.New(xerrors.CodeLLMConfig, "不支持的模型: "+model)
	}
}
