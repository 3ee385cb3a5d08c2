package google

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	genai "google.golang.org/genai"

	"onemcp/internal/config"
	"onemcp/internal/llm"
	"onemcp/internal/observability"
)

type Client struct {
	client *genai.Client
	model  string
}

func New(cfg config.GoogleConfig, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-2.0-flash"
	}
	httpOpts := genai.HTTPOptions{}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		httpOpts.BaseURL = strings.TrimSuffix(base, "/") + "/"
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      strings.TrimSpace(cfg.APIKey),
		HTTPClient:  httpClient,
		HTTPOptions: httpOpts,
	})
	if err != nil {
		return nil, fmt.Errorf("init google client: %w", err)
	}
	return &Client{client: client, model: model}, nil
}

func (c *Client) Chat(ctx context.Context, msgs []llm.Message, opts llm.ChatOptions) (llm.Message, error) {
	model := c.model
	if m := strings.TrimSpace(opts.Model); m != "" {
		model = m
	}

	ctx, span := llm.StartRequestSpan(ctx, "Google Chat", model, len(opts.Tools), len(msgs))
	defer span.End()
	log := observability.LoggerWithTrace(ctx)

	contents, cfg, err := toContents(msgs)
	if err != nil {
		span.RecordError(err)
		return llm.Message{}, err
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, model, contents, cfg)
	dur := time.Since(start)
	if err != nil {
		span.RecordError(err)
		log.Error().Err(err).Str("model", model).Dur("duration", dur).Msg("google_chat_error")
		return llm.Message{}, err
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return llm.Message{}, fmt.Errorf("request blocked by google: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return llm.Message{}, fmt.Errorf("no candidates in google response")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	log.Debug().Str("model", model).Dur("duration", dur).Msg("google_chat_ok")
	return llm.Message{Role: "assistant", Content: sb.String()}, nil
}

func toContents(msgs []llm.Message) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	if len(msgs) == 0 {
		return nil, nil, fmt.Errorf("messages required")
	}
	var cfg *genai.GenerateContentConfig
	var contents []*genai.Content
	for _, m := range msgs {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(m.Role)) {
		case "system":
			if cfg == nil {
				cfg = &genai.GenerateContentConfig{}
			}
			if cfg.SystemInstruction == nil {
				cfg.SystemInstruction = &genai.Content{}
			}
			cfg.SystemInstruction.Parts = append(cfg.SystemInstruction.Parts, genai.NewPartFromText(content))
		case "assistant":
			contents = append(contents, &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{genai.NewPartFromText(content)},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{genai.NewPartFromText(content)},
			})
		}
	}
	if len(contents) == 0 {
		return nil, nil, fmt.Errorf("at least one user message required")
	}
	return contents, cfg, nil
}
