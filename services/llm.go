package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"astra/config"
	"astra/errs"
)

type Message struct {
	Role    string
	Content string
}

type CompletionRequest struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
	// JSONMode は JSON オブジェクトだけを返すよう要求する (対応していないプロバイダでは無視)
	JSONMode bool
}

// Usage はプロンプトキャッシュの計測に使うトークン数
type Usage struct {
	PromptTokens     int
	CachedTokens     int
	CacheWriteTokens int
	OutputTokens     int
}

func (u Usage) Total() int {
	return u.PromptTokens + u.OutputTokens
}

type Completion struct {
	Text  string
	Model string
	Usage Usage
}

// LLM はチャット補完を提供するプロバイダ
type LLM interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
	Model() string
}

type LLMConfig struct {
	Provider   string
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

func LLMConfigFrom(cfg *config.Config) LLMConfig {
	return LLMConfig{
		Provider:   cfg.LLMProvider,
		APIKey:     cfg.LLMAPIKey,
		Model:      cfg.LLMModel,
		BaseURL:    cfg.LLMBaseURL,
		Timeout:    cfg.LLMTimeout,
		MaxRetries: cfg.LLMMaxRetries,
		RetryDelay: cfg.LLMRetryDelay,
	}
}

// OpenAI 互換 API のプロバイダとベース URL
// 追加するときはここに1行足して {PROVIDER}_API_KEY を設定する
var openAICompatibleProviders = map[string]string{
	"mistral":    "https://api.mistral.ai/v1",
	"groq":       "https://api.groq.com/openai/v1",
	"together":   "https://api.together.xyz/v1",
	"deepseek":   "https://api.deepseek.com/v1",
	"fireworks":  "https://api.fireworks.ai/inference/v1",
	"perplexity": "https://api.perplexity.ai",
}

func NewLLM(cfg LLMConfig) (LLM, error) {
	if cfg.APIKey == "" && cfg.Provider != "ollama" {
		return nil, errs.WithMessage(errs.ErrLLMAPIKeyMissing, fmt.Sprintf("api key for %s is not set", cfg.Provider))
	}

	switch cfg.Provider {
	case "claude", "anthropic":
		return NewClaudeProvider(cfg), nil
	case "openai":
		if cfg.BaseURL == "" {
			cfg.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Model == "" {
			cfg.Model = "gpt-4o-mini"
		}
		return NewOpenAIProvider(cfg), nil
	case "kimi":
		cfg.BaseURL = "https://api.moonshot.ai/v1"
		if cfg.Model == "" {
			cfg.Model = "kimi-k2-0711-preview"
		}
		return NewOpenAIProvider(cfg), nil
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		cfg.BaseURL = baseURL + "/v1"
		cfg.APIKey = "ollama"
		if cfg.Model == "" {
			cfg.Model = "qwen2:0.5b"
		}
		return NewOpenAIProvider(cfg), nil
	default:
		baseURL, ok := openAICompatibleProviders[cfg.Provider]
		if !ok {
			return nil, errs.WithMessage(errs.ErrUnknownLLMProvider, fmt.Sprintf("unknown provider: %s", cfg.Provider))
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = baseURL
		}
		return NewOpenAIProvider(cfg), nil
	}
}

// KnownProviders returns all known provider IDs
func KnownProviders() []string {
	providers := []string{"claude", "openai", "kimi", "ollama"}
	extra := make([]string, 0, len(openAICompatibleProviders))
	for p := range openAICompatibleProviders {
		extra = append(extra, p)
	}
	sort.Strings(extra)
	return append(providers, extra...)
}

func IsKnownProvider(provider string) bool {
	switch provider {
	case "claude", "anthropic", "openai", "kimi", "ollama":
		return true
	default:
		_, ok := openAICompatibleProviders[provider]
		return ok
	}
}
