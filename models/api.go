package models

import (
	"encoding/json"
	"strings"
)

// CharacterRef は "marriage" と {"id":"marriage","name":...} の両方を受け付ける
type CharacterRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

func (c *CharacterRef) UnmarshalJSON(b []byte) error {
	var id string
	if err := json.Unmarshal(b, &id); err == nil {
		c.ID = id
		return nil
	}
	type plain CharacterRef
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*c = CharacterRef(p)
	return nil
}

// ChatRequest は /api/v1/chat の入力
type ChatRequest struct {
	Name              string       `json:"name"`
	BirthDate         string       `json:"birth_date"`
	BirthTime         string       `json:"birth_time"`
	BirthLocation     string       `json:"birth_location"`
	Location          string       `json:"location"`
	Latitude          *float64     `json:"latitude"`
	Longitude         *float64     `json:"longitude"`
	Timezone          string       `json:"timezone"`
	Message           string       `json:"message"`
	Query             string       `json:"query"`
	Character         CharacterRef `json:"character"`
	CharacterID       string       `json:"character_id"`
	PreferredLanguage string       `json:"preferred_language"`
	PromptVariant     string       `json:"prompt_variant"`
	SessionID         string       `json:"session_id"`
	UserID            *int64       `json:"user_id"`
}

// Text は message、なければ別名の query
func (r ChatRequest) Text() string {
	if strings.TrimSpace(r.Message) != "" {
		return strings.TrimSpace(r.Message)
	}
	return strings.TrimSpace(r.Query)
}

func (r ChatRequest) CharacterKey() string {
	if r.Character.ID != "" {
		return strings.TrimSpace(r.Character.ID)
	}
	return strings.TrimSpace(r.CharacterID)
}

func (r ChatRequest) Birth() BirthDetails {
	loc := r.BirthLocation
	if strings.TrimSpace(loc) == "" {
		loc = r.Location
	}
	return BirthDetails{
		Name:      strings.TrimSpace(r.Name),
		BirthDate: strings.TrimSpace(r.BirthDate),
		BirthTime: strings.TrimSpace(r.BirthTime),
		Location:  strings.TrimSpace(loc),
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Timezone:  strings.TrimSpace(r.Timezone),
	}
}

// MissingFields は必須項目のうち空のものを返す
func (r ChatRequest) MissingFields() []string {
	var missing []string
	b := r.Birth()
	if b.Name == "" {
		missing = append(missing, "name")
	}
	if b.BirthDate == "" {
		missing = append(missing, "birth_date")
	}
	if b.BirthTime == "" {
		missing = append(missing, "birth_time")
	}
	if b.Location == "" {
		missing = append(missing, "birth_location")
	}
	if r.Text() == "" {
		missing = append(missing, "message")
	}
	if r.CharacterKey() == "" {
		missing = append(missing, "character")
	}
	return missing
}

// ChatResponse は /api/v1/chat の出力
type ChatResponse struct {
	Success   bool         `json:"success"`
	Response  string       `json:"response"`
	Messages  []string     `json:"messages"`
	SessionID string       `json:"session_id"`
	UserID    int64        `json:"user_id"`
	Character CharacterRef `json:"character"`
	Language  string       `json:"language"`
	Intent    string       `json:"intent,omitempty"`
}

type SimpleChatResponse struct {
	Success   bool   `json:"success"`
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
	UserID    int64  `json:"user_id"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// FactStatusRequest は PATCH /users/:id/facts/:fact_id の入力
type FactStatusRequest struct {
	Status string `json:"status" binding:"required"`
}
