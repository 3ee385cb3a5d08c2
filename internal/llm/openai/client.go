package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"onemcp/internal/config"
	"onemcp/internal/llm"
	"onemcp/internal/observability"
)

type Client struct {
	sdk   sdk.Client
	model string
}

func New(cfg config.OpenAIConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithHTTPClient(httpClient),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Client{sdk: sdk.NewClient(opts...), model: model}
}

func (c *Client) Chat(ctx context.Context, msgs []llm.Message, opts llm.ChatOptions) (llm.Message, error) {
	model := c.model
	if m := strings.TrimSpace(opts.Model); m != "" {
		model = m
	}
	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(model),
		Messages: adaptMessages(msgs),
	}

	ctx, span := llm.StartRequestSpan(ctx, "OpenAI Chat", model, len(opts.Tools), len(msgs))
	defer span.End()
	log := observability.LoggerWithTrace(ctx)

	start := time.Now()
	comp, err := c.sdk.Chat.Completions.New(ctx, params)
	dur := time.Since(start)
	if err != nil {
		span.RecordError(err)
		log.Error().Err(err).Str("model", model).Dur("duration", dur).Msg("chat_completion_error")
		return llm.Message{}, err
	}
	if len(comp.Choices) == 0 {
		err := fmt.Errorf("openai: empty choices")
		span.RecordError(err)
		return llm.Message{}, err
	}

	llm.RecordTokenAttributes(span,
		int(comp.Usage.PromptTokens), int(comp.Usage.CompletionTokens), int(comp.Usage.TotalTokens))
	log.Debug().
		Str("model", model).
		Dur("duration", dur).
		Int("prompt_tokens", int(comp.Usage.PromptTokens)).
		Int("completion_tokens", int(comp.Usage.CompletionTokens)).
		Msg("chat_completion_ok")

	return llm.Message{Role: "assistant", Content: comp.Choices[0].Message.Content}, nil
}

func adaptMessages(msgs []llm.Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(m.Role)) {
		case "system":
			out = append(out, sdk.SystemMessage(content))
		case "assistant":
			out = append(out, sdk.AssistantMessage(content))
		default:
			out = append(out, sdk.UserMessage(content))
		}
	}
	return out
}
