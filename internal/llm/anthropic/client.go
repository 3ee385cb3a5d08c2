package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"onemcp/internal/config"
	"onemcp/internal/llm"
	"onemcp/internal/observability"
)

// Extraction responses are large JSON documents, so the ceiling is generous.
const defaultMaxTokens int64 = 8192

type Client struct {
	sdk       anthropic.Client
	model     string
	maxTokens int64
}

func New(cfg config.AnthropicConfig, httpClient *http.Client) *Client {
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
		model = string(anthropic.ModelClaude3_7SonnetLatest)
	}
	return &Client{
		sdk:       anthropic.NewClient(opts...),
		model:     model,
		maxTokens: defaultMaxTokens,
	}
}

func (c *Client) Chat(ctx context.Context, msgs []llm.Message, opts llm.ChatOptions) (llm.Message, error) {
	sys, converted, err := adaptMessages(msgs, opts.Cacheable)
	if err != nil {
		return llm.Message{}, err
	}
	model := c.model
	if m := strings.TrimSpace(opts.Model); m != "" {
		model = m
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  converted,
		System:    sys,
		MaxTokens: c.maxTokens,
	}

	ctx, span := llm.StartRequestSpan(ctx, "Anthropic Chat", model, len(opts.Tools), len(msgs))
	defer span.End()
	log := observability.LoggerWithTrace(ctx)

	start := time.Now()
	resp, err := c.sdk.Messages.New(ctx, params)
	dur := time.Since(start)
	if err != nil {
		span.RecordError(err)
		log.Error().Err(err).Str("model", model).Dur("duration", dur).Msg("anthropic_chat_error")
		return llm.Message{}, err
	}

	promptTokens := int(resp.Usage.CacheCreationInputTokens + resp.Usage.CacheReadInputTokens + resp.Usage.InputTokens)
	completionTokens := int(resp.Usage.OutputTokens)
	llm.RecordTokenAttributes(span, promptTokens, completionTokens, promptTokens+completionTokens)

	log.Debug().
		Str("model", model).
		Dur("duration", dur).
		Int("prompt_tokens", promptTokens).
		Int("completion_tokens", completionTokens).
		Msg("anthropic_chat_ok")

	var sb strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return llm.Message{Role: "assistant", Content: sb.String()}, nil
}

func adaptMessages(msgs []llm.Message, cacheable bool) ([]anthropic.TextBlockParam, []anthropic.MessageParam, error) {
	if len(msgs) == 0 {
		return nil, nil, fmt.Errorf("messages required")
	}
	cacheControl := anthropic.CacheControlEphemeralParam{TTL: anthropic.CacheControlEphemeralTTLTTL5m}
	var system []anthropic.TextBlockParam
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		switch role {
		case "system":
			if strings.TrimSpace(m.Content) == "" {
				continue
			}
			block := anthropic.TextBlockParam{Text: m.Content}
			if cacheable {
				block.CacheControl = cacheControl
			}
			system = append(system, block)
		case "user":
			if strings.TrimSpace(m.Content) != "" {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			}
		case "assistant":
			if strings.TrimSpace(m.Content) != "" {
				out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			}
		default:
			return nil, nil, fmt.Errorf("unsupported role for anthropic provider: %s", m.Role)
		}
	}
	return system, out, nil
}
