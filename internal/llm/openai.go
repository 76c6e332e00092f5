package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chgenberg/frejfund-site/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig holds settings for the OpenAI chat and image backends.
type OpenAIConfig struct {
	APIKey       string
	Model        string
	BaseURL      string
	TextTimeout  time.Duration
	ImageTimeout time.Duration
}

// OpenAI talks to the chat completions and image endpoints.
type OpenAI struct {
	client       *openai.Client
	model        string
	textTimeout  time.Duration
	imageTimeout time.Duration
	logger       *slog.Logger
}

// NewOpenAI creates an OpenAI client. It fails with ErrMissingCredential when
// no API key is configured.
func NewOpenAI(cfg OpenAIConfig, logger *slog.Logger) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("create openai client: %w", ErrMissingCredential)
	}
	if logger == nil {
		logger = slog.Default()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4o
	}
	o := &OpenAI{
		client:       openai.NewClientWithConfig(clientCfg),
		model:        model,
		textTimeout:  cfg.TextTimeout,
		imageTimeout: cfg.ImageTimeout,
		logger:       logger,
	}
	if o.textTimeout <= 0 {
		o.textTimeout = DefaultTextTimeout
	}
	if o.imageTimeout <= 0 {
		o.imageTimeout = DefaultImageTimeout
	}
	return o, nil
}

// Name implements TextGenerator.
func (o *OpenAI) Name() string { return "openai:" + o.model }

// Generate sends the system prompt, the history and the prompt as one chat completion.
func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	req = req.withDefaults()
	ctx, cancel := context.WithTimeout(ctx, o.textTimeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    chatMessages(req),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		o.logger.Error("OpenAI chat completion failed", "model", o.model, "error", err)
		return "", fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("create chat completion: %w", ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

func chatMessages(req Request) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt})
	for _, m := range req.History {
		role := openai.ChatMessageRoleUser
		if m.Role == domain.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})
}

// GenerateImage creates one 1024x1024 DALL·E 3 image and returns its URL.
func (o *OpenAI) GenerateImage(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.imageTimeout)
	defer cancel()

	resp, err := o.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          openai.CreateImageModelDallE3,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		Quality:        openai.CreateImageQualityStandard,
		Style:          openai.CreateImageStyleVivid,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		o.logger.Error("OpenAI image generation failed", "error", err)
		return "", fmt.Errorf("create image: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", fmt.Errorf("create image: %w", ErrEmptyResponse)
	}
	return resp.Data[0].URL, nil
}

var (
	_ TextGenerator  = (*OpenAI)(nil)
	_ ImageGenerator = (*OpenAI)(nil)
)
