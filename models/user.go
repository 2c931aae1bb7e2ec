package models

import (
	"time"
)

// User は出生情報 (名前・日付・時刻・場所) の完全一致で特定する
type User struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	BirthDate     string     `json:"birth_date"` // YYYY-MM-DD
	BirthTime     string     `json:"birth_time"` // HH:MM
	BirthLocation string     `json:"birth_location"`
	Latitude      float64    `json:"latitude"`
	Longitude     float64    `json:"longitude"`
	Timezone      string     `json:"timezone"`
	NatalChart    NatalChart `json:"natal_chart"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// BirthDetails はユーザー解決の入力
type BirthDetails struct {
	Name      string
	BirthDate string
	BirthTime string
	Location  string
	Latitude  *float64
	Longitude *float64
	Timezone  string
}

// ChatSession はセッショントークンと所有ユーザーの対応
type ChatSession struct {
	SessionID    string    `json:"session_id"`
	UserID       int64     `json:"user_id"`
	CharacterID  string    `json:"character_id"`
	Language     string    `json:"language"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	LastActive   time.Time `json:"last_active"`
}
