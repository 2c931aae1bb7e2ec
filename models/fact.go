package models

import (
	"time"
)

type FactStatus string

const (
	FactActive     FactStatus = "active"
	FactSuperseded FactStatus = "superseded"
	FactRetracted  FactStatus = "retracted"
)

// Valid は既知のステータスかどうか
func (s FactStatus) Valid() bool {
	switch s {
	case FactActive, FactSuperseded, FactRetracted:
		return true
	}
	return false
}

// CanTransitionTo は active からの遷移だけを許す (superseded/retracted は終端)
func (s FactStatus) CanTransitionTo(next FactStatus) bool {
	return s == FactActive && (next == FactSuperseded || next == FactRetracted)
}

var FactTypes = []string{"career", "relationship", "health", "personal", "financial", "family"}

var FactCategories = []string{"current_situation", "goals", "challenges", "achievements", "life_events"}

var FactTimeframes = []string{"current", "past", "future_goal", "ongoing"}

// UserFact は会話から抽出された個別の事実
type UserFact struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"user_id"`
	FactType        string     `json:"fact_type"`
	Category        string     `json:"category"`
	FactText        string     `json:"fact_text"`
	FactSummary     string     `json:"fact_summary,omitempty"`
	Confidence      float64    `json:"confidence_score"`
	Importance      float64    `json:"importance_score"`
	Status          FactStatus `json:"status"`
	Timeframe       string     `json:"timeframe,omitempty"`
	SourceSessionID string     `json:"source_session_id,omitempty"`
	LastReferenced  *time.Time `json:"last_referenced,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ClampScore は [0,1] に収める
func ClampScore(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Normalize は書き込み前に既定値を埋め、スコアを [0,1] に収める
func (f *UserFact) Normalize() {
	f.Confidence = ClampScore(f.Confidence)
	f.Importance = ClampScore(f.Importance)
	if f.Status == "" {
		f.Status = FactActive
	}
	if !contains(FactTypes, f.FactType) {
		f.FactType = "personal"
	}
	if !contains(FactCategories, f.Category) {
		f.Category = "current_situation"
	}
	if f.Timeframe != "" && !contains(FactTimeframes, f.Timeframe) {
		f.Timeframe = "current"
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
