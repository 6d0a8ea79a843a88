package llm

import (
	"errors"
	"testing"

	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/config"
	xerrors "github.com/Streamweaver/CodebaseDocumentationCrew/internal/errors"
)

func TestNewClientByModelPrefix(t *testing.T) {
	cases := []struct {
		model string
		want  string
	}{
		{model: "claude-3-5-sonnet-latest", want: "*llm.AnthropicClient"},
		{model: "gpt-4o", want: "*llm.OpenAIClient"},
	}
	for _, tc := range cases {
		client, err := NewClient(config.LLMConfig{Model: tc.model, APIKey: "test-key"})
		if err != nil {
			t.Fatalf("模型 %s 创建客户端失败: %v", tc.model, err)
		}
		if client.ModelName() != tc.model {
			t.Fatalf("模型名不匹配: %s", client.ModelName())
		}
		switch tc.want {
		case "*llm.AnthropicClient":
			if _, ok := client.(*AnthropicClient); !ok {
				t.Fatalf("模型 %s 应得到 Anthropic 客户端", tc.model)
			}
		case "*llm.OpenAIClient":
			if _, ok := client.(*OpenAIClient); !ok {
				t.Fatalf("模型 %s 应得到 OpenAI 客户端", tc.model)
			}
		}
	}
}

func TestNewClientMissingAPIKey(t *testing.T) {
	_, err := NewClient(config.LLMConfig{Model: "gpt-4o"})
	if err == nil {
		t.Fatalf("expected error for missing api key")
	}
	if !errors.Is(err, xerrors.New(xerrors.CodeLLMConfig, "")) {
		t.Fatalf("expected LLM_CONFIG error, got %v", err)
	}
}

func TestNewClientUnknownModel(t *testing.T) {
	_, err := NewClient(config.LLMConfig{Model: "llama-3", APIKey: "key"})
	if err == nil {
		t.Fatalf("expected error for unknown model")
	}
	if xerrors.CodeOf(err) != xerrors.CodeLLMConfig {
		t.Fatalf("expected LLM_CONFIG code, got %s", xerrors.CodeOf(err))
	}
}
