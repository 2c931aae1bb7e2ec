package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"astra/errs"
	"astra/logger"
	"astra/models"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider は OpenAI と OpenAI 互換 API を go-openai で呼び出す
type OpenAIProvider struct {
	client     *openai.Client
	model      string
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
}

func NewOpenAIProvider(cfg LLMConfig) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &OpenAIProvider{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
}

func (p *OpenAIProvider) Model() string {
	return p.model
}

func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openAIRole(m.Role),
			Content: m.Content,
		})
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	}
	if req.JSONMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	var resp openai.ChatCompletionResponse
	err := withRetry(ctx, p.maxRetries, p.retryDelay, isRetryableOpenAIError, func() error {
		callCtx, cancel := callContext(ctx, p.timeout)
		defer cancel()

		var err error
		resp, err = p.client.CreateChatCompletion(callCtx, chatReq)
		if err != nil {
			logger.Warn("chat completion failed", "model", p.model, "error", err)
		}
		return err
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrLLMRequestFailed, err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, errs.ErrLLMEmptyResponse
	}

	usage := Usage{
		PromptTokens: resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	if resp.Usage.PromptTokensDetails != nil {
		usage.CachedTokens = resp.Usage.PromptTokensDetails.CachedTokens
	}

	model := resp.Model
	if model == "" {
		model = p.model
	}
	return &Completion{
		Text:  resp.Choices[0].Message.Content,
		Model: model,
		Usage: usage,
	}, nil
}

func openAIRole(role string) string {
	switch models.SanitizeRole(role) {
	case models.RoleSystem:
		return openai.ChatMessageRoleSystem
	case models.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

// 認証や入力の誤り (4xx) は再試行しない。429 は再試行する
func isRetryableOpenAIError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return true
}
