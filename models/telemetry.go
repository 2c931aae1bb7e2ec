package models

import (
	"time"
)

// CachePerformance は1リクエスト分のプロンプトキャッシュ計測
type CachePerformance struct {
	ID           int64     `json:"id"`
	UserID       *int64    `json:"user_id,omitempty"`
	SessionID    string    `json:"session_id,omitempty"`
	Model        string    `json:"model"`
	TotalTokens  int       `json:"total_tokens"`
	CachedTokens int       `json:"cached_tokens"`
	OutputTokens int       `json:"output_tokens"`
	HitRate      float64   `json:"cache_hit_rate"` // 0..1
	CostSaved    float64   `json:"cost_saved"`
	CreatedAt    time.Time `json:"created_at"`
}

// CacheStats は集計結果
type CacheStats struct {
	Requests       int     `json:"requests"`
	TotalTokens    int64   `json:"total_tokens"`
	CachedTokens   int64   `json:"cached_tokens"`
	OutputTokens   int64   `json:"output_tokens"`
	HitRate        float64 `json:"cache_hit_rate"`
	TotalCostSaved float64 `json:"total_cost_saved"`
}

type ConsolidationStatus string

const (
	ConsolidationPending ConsolidationStatus = "pending"
	ConsolidationSuccess ConsolidationStatus = "success"
	ConsolidationFailed  ConsolidationStatus = "failed"
)

// ConsolidationLogEntry は統合処理1回分の監査記録
type ConsolidationLogEntry struct {
	ID              int64               `json:"id"`
	UserID          int64               `json:"user_id"`
	SessionID       string              `json:"session_id"`
	InputMessages   int                 `json:"input_messages"`
	FactsExtracted  int                 `json:"facts_extracted"`
	FactsSuperseded int                 `json:"facts_superseded"`
	SummaryWritten  bool                `json:"summary_written"`
	Status          ConsolidationStatus `json:"status"`
	ErrorMessage    string              `json:"error_message,omitempty"`
	TokensUsed      int                 `json:"tokens_used"`
	DurationMs      int64               `json:"duration_ms"`
	StartedAt       time.Time           `json:"started_at"`
	FinishedAt      *time.Time          `json:"finished_at,omitempty"`
}
