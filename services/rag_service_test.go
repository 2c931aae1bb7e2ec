package services

import (
	"context"
	"errors"
	"testing"

	"astra/errs"
	"astra/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMemoryContext(t *testing.T) {
	facts := []models.UserFact{
		{FactType: "career", FactText: "Works as a software engineer in Pune", FactSummary: "Software engineer, Pune", Timeframe: "current"},
		{FactType: "relationship", FactText: "Wants to marry within two years", Timeframe: "future_goal"},
	}
	summary := &models.ConversationSummary{
		SummaryText:    "Asked about marriage timing.",
		KeyTopics:      []string{"marriage"},
		EmotionalState: "hopeful",
		FollowUps:      []string{"family approval"},
	}

	got := buildMemoryContext(facts, summary)
	assert.Equal(t, `=== WHAT YOU KNOW ABOUT THE USER ===
- [career] Software engineer, Pune
- [relationship] Wants to marry within two years (future_goal)

=== PREVIOUS CONVERSATION ===
Asked about marriage timing.
Topics: marriage
Emotional state: hopeful
Follow up on: family approval`, got)

	assert.Empty(t, buildMemoryContext(nil, nil))
	assert.Equal(t, "=== PREVIOUS CONVERSATION ===\nAsked about marriage timing.\nTopics: marriage\nEmotional state: hopeful\nFollow up on: family approval",
		buildMemoryContext(nil, summary))
}

func TestRAGService_FactsAndStatus(t *testing.T) {
	f := newConsolidationFixture(t)
	ctx := context.Background()
	chat := f.chatTwice(t)
	_, err := f.service.ConsolidateSession(ctx, chat.UserID, chat.SessionID)
	require.NoError(t, err)

	rag := NewRAGService(f.store)
	facts, err := rag.Facts(ctx, chat.UserID)
	require.NoError(t, err)
	require.Len(t, facts, 2)

	_, err = rag.SetFactStatus(ctx, chat.UserID, facts[0].ID, "forgotten")
	assert.True(t, errors.Is(err, errs.ErrInvalidFactStatus))

	updated, err := rag.SetFactStatus(ctx, chat.UserID, facts[0].ID, " Retracted ")
	require.NoError(t, err)
	assert.Equal(t, models.FactRetracted, updated.Status)

	facts, err = rag.Facts(ctx, chat.UserID)
	require.NoError(t, err)
	assert.Len(t, facts, 1)

	_, err = rag.Facts(ctx, 9999)
	assert.True(t, errors.Is(err, errs.ErrUserNotFound))
	_, err = rag.Profile(ctx, 9999)
	assert.True(t, errors.Is(err, errs.ErrUserNotFound))
}
