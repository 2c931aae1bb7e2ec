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

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

const defaultClaudeModel = "claude-sonnet-4-20250514"

// ClaudeProvider は Anthropic Messages API を呼ぶ
type ClaudeProvider struct {
	client     anthropicsdk.Client
	model      string
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
}

func NewClaudeProvider(cfg LLMConfig) *ClaudeProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = defaultClaudeModel
	}

	return &ClaudeProvider{
		client:     anthropicsdk.NewClient(opts...),
		model:      model,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
}

func (c *ClaudeProvider) Model() string {
	return c.model
}

func (c *ClaudeProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	params := claudeParams(c.model, req)

	var msg *anthropicsdk.Message
	err := withRetry(ctx, c.maxRetries, c.retryDelay, isRetryableClaudeError, func() error {
		callCtx, cancel := callContext(ctx, c.timeout)
		defer cancel()

		var err error
		msg, err = c.client.Messages.New(callCtx, params)
		if err != nil {
			logger.Warn("claude message failed", "model", c.model, "error", err)
		}
		return err
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrLLMRequestFailed, err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		text.WriteString(block.Text)
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, errs.ErrLLMEmptyResponse
	}

	cacheRead := int(msg.Usage.CacheReadInputTokens)
	cacheWrite := int(msg.Usage.CacheCreationInputTokens)
	return &Completion{
		Text:  text.String(),
		Model: string(msg.Model),
		Usage: Usage{
			// input_tokens にはキャッシュ分が含まれないので足し戻す
			PromptTokens:     int(msg.Usage.InputTokens) + cacheRead + cacheWrite,
			CachedTokens:     cacheRead,
			CacheWriteTokens: cacheWrite,
			OutputTokens:     int(msg.Usage.OutputTokens),
		},
	}, nil
}

// claudeParams はシステムメッセージを system ブロックに、残りを会話に振り分ける
// 連続する同じロールのメッセージは1つにまとめる
func claudeParams(model string, req CompletionRequest) anthropicsdk.MessageNewParams {
	var (
		system   []anthropicsdk.TextBlockParam
		messages []anthropicsdk.MessageParam
		lastRole string
	)
	for _, m := range req.Messages {
		role := models.SanitizeRole(m.Role)
		if role == models.RoleSystem {
			if len(messages) == 0 {
				system = append(system, anthropicsdk.TextBlockParam{Text: m.Content})
				continue
			}
			// 会話の途中のシステム指示はユーザー発話として渡す
			role = models.RoleUser
		}

		block := anthropicsdk.NewTextBlock(m.Content)
		if role == lastRole {
			last := &messages[len(messages)-1]
			last.Content = append(last.Content, block)
			continue
		}

		msgRole := anthropicsdk.MessageParamRoleUser
		if role == models.RoleAssistant {
			msgRole = anthropicsdk.MessageParamRoleAssistant
		}
		messages = append(messages, anthropicsdk.MessageParam{
			Role:    msgRole,
			Content: []anthropicsdk.ContentBlockParamUnion{block},
		})
		lastRole = role
	}

	// 人物設定と会話ごとの文脈の2か所でキャッシュを区切る
	if len(system) > 0 {
		system[0].CacheControl = anthropicsdk.NewCacheControlEphemeralParam()
		system[len(system)-1].CacheControl = anthropicsdk.NewCacheControlEphemeralParam()
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
		System:    system,
	}
	if req.Temperature > 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	return params
}

func isRetryableClaudeError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *anthropicsdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return true
}
