package services

import (
	"strings"
	"time"

	"astra/models"
)

// modelPrice は入力 100 万トークンあたりの USD 単価とキャッシュ読み出しの割引率
type modelPrice struct {
	prefix   string
	input    float64
	discount float64
}

// 前方一致で先に当たったものを使う
var modelPrices = []modelPrice{
	{"gpt-4o-mini", 0.15, 0.5},
	{"gpt-4.1-mini", 0.40, 0.75},
	{"gpt-4.1", 2.00, 0.75},
	{"gpt-4o", 2.50, 0.5},
	{"claude-3-5-haiku", 0.80, 0.9},
	{"claude-haiku", 0.80, 0.9},
	{"claude-sonnet", 3.00, 0.9},
	{"claude-opus", 15.00, 0.9},
	{"deepseek", 0.27, 0.74},
}

var defaultPrice = modelPrice{input: 0.15, discount: 0.5}

func priceFor(model string) modelPrice {
	model = strings.ToLower(model)
	for _, p := range modelPrices {
		if strings.HasPrefix(model, p.prefix) {
			return p
		}
	}
	return defaultPrice
}

// CacheHitRate は prompt 中のキャッシュ済みトークンの割合 (0..1)
func CacheHitRate(u Usage) float64 {
	if u.PromptTokens <= 0 {
		return 0
	}
	return models.ClampScore(float64(u.CachedTokens) / float64(u.PromptTokens))
}

// CostSaved はキャッシュで節約できた USD
func CostSaved(model string, cachedTokens int) float64 {
	p := priceFor(model)
	return float64(cachedTokens) * p.input / 1_000_000 * p.discount
}

// NewCachePerformance は1回の呼び出しの計測行を作る
func NewCachePerformance(userID int64, sessionID string, c *Completion) *models.CachePerformance {
	uid := userID
	return &models.CachePerformance{
		UserID:       &uid,
		SessionID:    sessionID,
		Model:        c.Model,
		TotalTokens:  c.Usage.PromptTokens,
		CachedTokens: c.Usage.CachedTokens,
		OutputTokens: c.Usage.OutputTokens,
		HitRate:      CacheHitRate(c.Usage),
		CostSaved:    CostSaved(c.Model, c.Usage.CachedTokens),
		CreatedAt:    time.Now().UTC(),
	}
}
