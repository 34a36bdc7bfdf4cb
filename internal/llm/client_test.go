package llm

import (
	"context"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestNewClientRequiresKey(t *testing.T) {
	for _, p := range []Provider{ProviderAnthropic, ProviderOpenAI, ProviderGemini} {
		_, err := NewClient(context.Background(), p, "")
		assert.Error(t, err, p)
	}

	_, err := NewClient(context.Background(), Provider("mistral"), "key")
	assert.ErrorContains(t, err, "unknown LLM provider")
}

func TestNewClientProviders(t *testing.T) {
	c, err := NewClient(context.Background(), ProviderAnthropic, "key")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", c.Name())

	c, err = NewClient(context.Background(), ProviderOpenAI, "key")
	require.NoError(t, err)
	assert.Equal(t, "openai", c.Name())
}

func TestToOpenAIMessages(t *testing.T) {
	got := toOpenAIMessages("be brief", []ChatMessage{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	})

	require.Len(t, got, 3)
	assert.Equal(t, openai.ChatMessageRoleSystem, got[0].Role)
	assert.Equal(t, "be brief", got[0].Content)
	assert.Equal(t, "assistant", got[2].Role)

	assert.Len(t, toOpenAIMessages("", []ChatMessage{{Role: "user", Content: "hi"}}), 1)
}

func TestToGeminiContents(t *testing.T) {
	got := toGeminiContents([]ChatMessage{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	})

	require.Len(t, got, 2)
	assert.Equal(t, string(genai.RoleUser), got[0].Role)
	assert.Equal(t, string(genai.RoleModel), got[1].Role)
	assert.Equal(t, "hello", got[1].Parts[0].Text)
}

func TestMaxTokensOr(t *testing.T) {
	assert.Equal(t, defaultMaxTokens, maxTokensOr(0))
	assert.Equal(t, 100, maxTokensOr(100))
}
