package models

import (
	"time"
)

// ConversationSummary は (user, session) ごとに1件だけ持つセッション要約
type ConversationSummary struct {
	ID                int64     `json:"id"`
	UserID            int64     `json:"user_id"`
	SessionID         string    `json:"session_id"`
	SummaryText       string    `json:"summary_text"`
	KeyTopics         []string  `json:"key_topics"`
	EmotionalState    string    `json:"emotional_state,omitempty"`
	SuggestedRemedies []string  `json:"suggested_remedies,omitempty"`
	FollowUps         []string  `json:"follow_ups,omitempty"`
	MessageCount      int       `json:"message_count"`
	SessionStart      time.Time `json:"session_start"`
	SessionEnd        time.Time `json:"session_end"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
