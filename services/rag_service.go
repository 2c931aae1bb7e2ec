package services

import (
	"context"
	"fmt"
	"strings"

	"astra/errs"
	"astra/logger"
	"astra/models"
)

const (
	maxContextFacts = 10
	maxListedFacts  = 100
)

// memoryStore は記憶の読み出しに必要な部分
type memoryStore interface {
	ActiveFacts(ctx context.Context, userID int64, limit int) ([]models.UserFact, error)
	TouchFacts(ctx context.Context, ids []int64) error
	LatestSummary(ctx context.Context, userID int64) (*models.ConversationSummary, error)
	GetSummary(ctx context.Context, userID int64, sessionID string) (*models.ConversationSummary, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetProfile(ctx context.Context, userID int64) (*models.UserProfile, error)
	SetFactStatus(ctx context.Context, userID, factID int64, next models.FactStatus) (*models.UserFact, error)
}

// RAGService は長期記憶 (事実と過去の要約) をプロンプト用の文脈にする
type RAGService struct {
	store memoryStore
}

func NewRAGService(store memoryStore) *RAGService {
	return &RAGService{store: store}
}

// MemoryContext は重要度順の事実と要約を組み立てる
// 現在のセッションの要約があればそれを、なければ直近の要約を使う
func (rs *RAGService) MemoryContext(ctx context.Context, userID int64, sessionID string) (string, error) {
	facts, err := rs.store.ActiveFacts(ctx, userID, maxContextFacts)
	if err != nil {
		return "", err
	}

	summary, err := rs.store.GetSummary(ctx, userID, sessionID)
	if err != nil {
		return "", err
	}
	if summary == nil {
		if summary, err = rs.store.LatestSummary(ctx, userID); err != nil {
			return "", err
		}
	}

	if len(facts) > 0 {
		ids := make([]int64, len(facts))
		for i, f := range facts {
			ids[i] = f.ID
		}
		if err := rs.store.TouchFacts(ctx, ids); err != nil {
			logger.Warn("failed to touch facts", "user_id", userID, "error", err)
		}
	}

	return buildMemoryContext(facts, summary), nil
}

// Facts はユーザーの有効な事実を重要度順に返す
func (rs *RAGService) Facts(ctx context.Context, userID int64) ([]models.UserFact, error) {
	if _, err := rs.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return rs.store.ActiveFacts(ctx, userID, maxListedFacts)
}

func (rs *RAGService) Profile(ctx context.Context, userID int64) (*models.UserProfile, error) {
	if _, err := rs.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return rs.store.GetProfile(ctx, userID)
}

// SetFactStatus はユーザーによる訂正 (retracted) などの状態遷移
func (rs *RAGService) SetFactStatus(ctx context.Context, userID, factID int64, status string) (*models.UserFact, error) {
	next := models.FactStatus(strings.ToLower(strings.TrimSpace(status)))
	if !next.Valid() {
		return nil, errs.ErrInvalidFactStatus
	}
	return rs.store.SetFactStatus(ctx, userID, factID, next)
}

func buildMemoryContext(facts []models.UserFact, summary *models.ConversationSummary) string {
	var b strings.Builder
	if len(facts) > 0 {
		b.WriteString("=== WHAT YOU KNOW ABOUT THE USER ===\n")
	}
	for _, f := range facts {
		text := f.FactText
		if f.FactSummary != "" {
			text = f.FactSummary
		}
		fmt.Fprintf(&b, "- [%s] %s", f.FactType, text)
		if f.Timeframe != "" && f.Timeframe != "current" {
			fmt.Fprintf(&b, " (%s)", f.Timeframe)
		}
		b.WriteString("\n")
	}

	if summary != nil && summary.SummaryText != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("=== PREVIOUS CONVERSATION ===\n")
		b.WriteString(summary.SummaryText)
		b.WriteString("\n")
		if len(summary.KeyTopics) > 0 {
			b.WriteString("Topics: ")
			b.WriteString(strings.Join(summary.KeyTopics, ", "))
			b.WriteString("\n")
		}
		if summary.EmotionalState != "" {
			b.WriteString("Emotional state: ")
			b.WriteString(summary.EmotionalState)
			b.WriteString("\n")
		}
		if len(summary.FollowUps) > 0 {
			b.WriteString("Follow up on: ")
			b.WriteString(strings.Join(summary.FollowUps, "; "))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
