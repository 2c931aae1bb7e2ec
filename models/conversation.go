package models

import (
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Conversation はセッション内の1メッセージ (書き込み後は不変)
type Conversation struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"user_id"`
	SessionID        string    `json:"session_id"`
	MessageIndex     int       `json:"message_index"`
	Role             string    `json:"role"`
	Content          string    `json:"content"`
	DetectedLanguage string    `json:"detected_language,omitempty"`
	Intent           string    `json:"intent,omitempty"`
	Topics           []string  `json:"topics,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// SanitizeRole は保存済みのロール名をプロバイダが受け付ける形にそろえる
func SanitizeRole(role string) string {
	switch role {
	case RoleUser, RoleSystem:
		return role
	case "astrologer", "astra", "bot", RoleAssistant:
		return RoleAssistant
	default:
		return RoleUser
	}
}
