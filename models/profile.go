package models

import (
	"strings"
	"time"
)

// UserProfile はユーザーごとに1件の長期的な傾向
type UserProfile struct {
	UserID             int64          `json:"user_id"`
	PreferredLanguage  string         `json:"preferred_language"`
	CommunicationStyle string         `json:"communication_style,omitempty"`
	TopicsOfInterest   []string       `json:"topics_of_interest"`
	PersonalityTraits  map[string]any `json:"personality_traits,omitempty"`
	EmotionalPatterns  map[string]any `json:"emotional_patterns,omitempty"`
	InteractionCount   int            `json:"interaction_count"`
	LastInteraction    *time.Time     `json:"last_interaction,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// ProfileUpdate は統合処理が抽出したプロフィールの差分
type ProfileUpdate struct {
	PreferredLanguage  string         `json:"preferred_language"`
	CommunicationStyle string         `json:"communication_style"`
	TopicsOfInterest   []string       `json:"topics_of_interest"`
	PersonalityTraits  map[string]any `json:"personality_traits"`
	EmotionalPatterns  map[string]any `json:"emotional_patterns"`
}

// Merge は差分を取り込む (トピックは重複なし、空の値は上書きしない)
func (p *UserProfile) Merge(u ProfileUpdate, interactions int, at time.Time) {
	if u.PreferredLanguage != "" {
		p.PreferredLanguage = u.PreferredLanguage
	}
	if u.CommunicationStyle != "" {
		p.CommunicationStyle = u.CommunicationStyle
	}

	seen := make(map[string]bool, len(p.TopicsOfInterest))
	for _, t := range p.TopicsOfInterest {
		seen[strings.ToLower(t)] = true
	}
	for _, t := range u.TopicsOfInterest {
		t = strings.TrimSpace(t)
		if t == "" || seen[strings.ToLower(t)] {
			continue
		}
		seen[strings.ToLower(t)] = true
		p.TopicsOfInterest = append(p.TopicsOfInterest, t)
	}

	p.PersonalityTraits = mergeMap(p.PersonalityTraits, u.PersonalityTraits)
	p.EmotionalPatterns = mergeMap(p.EmotionalPatterns, u.EmotionalPatterns)

	p.InteractionCount += interactions
	p.LastInteraction = &at
	p.UpdatedAt = at
}

func mergeMap(dst, src map[string]any) map[string]any {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
