package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"astra/errs"
	"astra/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestUser(t *testing.T, s *Store, name string) *models.User {
	t.Helper()
	u := &models.User{
		Name:          name,
		BirthDate:     "1990-08-15",
		BirthTime:     "14:30",
		BirthLocation: "Mumbai, India",
		Latitude:      19.076,
		Longitude:     72.8777,
		Timezone:      "Asia/Kolkata",
		NatalChart: models.NatalChart{
			HouseSystem: "whole_sign",
			Planets:     []models.PlanetPosition{{Name: "Sun", Sign: "Cancer", Longitude: 119.2}},
		},
	}
	require.NoError(t, s.CreateUser(context.Background(), u, "hinglish"))
	require.NotZero(t, u.ID)
	return u
}

func createTestSession(t *testing.T, s *Store, userID int64, id string) {
	t.Helper()
	require.NoError(t, s.CreateSession(context.Background(), &models.ChatSession{
		SessionID:   id,
		UserID:      userID,
		CharacterID: "marriage",
		Language:    "Hinglish",
	}))
}

func countRows(t *testing.T, s *Store, table string, userID int64) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE user_id = ?", table), userID).Scan(&n))
	return n
}

func TestUsers_ExactMatchResolution(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := createTestUser(t, s, "Rahul")

	found, err := s.FindUserByBirthDetails(ctx, "Rahul", "1990-08-15", "14:30", "Mumbai, India")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)
	assert.Equal(t, "Cancer", found.NatalChart.Planets[0].Sign)

	_, err = s.FindUserByBirthDetails(ctx, "Rahul", "1990-08-15", "14:31", "Mumbai, India")
	assert.True(t, errors.Is(err, errs.ErrUserNotFound))

	dup := &models.User{Name: "Rahul", BirthDate: "1990-08-15", BirthTime: "14:30", BirthLocation: "Mumbai, India", Timezone: "Asia/Kolkata"}
	err = s.CreateUser(ctx, dup, "hinglish")
	assert.ErrorIs(t, err, ErrUserExists)

	profile, err := s.GetProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "hinglish", profile.PreferredLanguage)
	assert.Equal(t, []string{}, profile.TopicsOfInterest)
}

func TestSessions_ReserveMessageIndexes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := createTestUser(t, s, "Rahul")
	createTestSession(t, s, u.ID, "sess-1")

	first, err := s.ReserveMessageIndexes(ctx, "sess-1", 2, "marriage", "Hinglish")
	require.NoError(t, err)
	assert.Equal(t, 0, first)

	second, err := s.ReserveMessageIndexes(ctx, "sess-1", 2, "love", "English")
	require.NoError(t, err)
	assert.Equal(t, 2, second)

	cs, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 4, cs.MessageCount)
	assert.Equal(t, "love", cs.CharacterID)

	_, err = s.ReserveMessageIndexes(ctx, "missing", 2, "", "")
	assert.True(t, errors.Is(err, errs.ErrSessionNotFound))
}

func TestTurns_HistoryIsBoundedAndChronological(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	turns := NewSQLTurnStore(s)
	u := createTestUser(t, s, "Rahul")
	createTestSession(t, s, u.ID, "sess-1")

	var batch []models.Conversation
	for i := 0; i < 30; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		batch = append(batch, models.Conversation{
			UserID: u.ID, SessionID: "sess-1", MessageIndex: i, Role: role,
			Content: fmt.Sprintf("message %d", i), Topics: []string{"marriage"},
		})
	}
	require.NoError(t, turns.AppendTurns(ctx, batch))

	recent, err := turns.RecentTurns(ctx, u.ID, "sess-1", 20)
	require.NoError(t, err)
	require.Len(t, recent, 20)
	assert.Equal(t, 10, recent[0].MessageIndex)
	assert.Equal(t, 29, recent[19].MessageIndex)
	assert.Equal(t, []string{"marriage"}, recent[0].Topics)

	all, err := turns.SessionTurns(ctx, u.ID, "sess-1")
	require.NoError(t, err)
	assert.Len(t, all, 30)
	assert.Equal(t, "message 0", all[0].Content)
}

func TestTurns_DuplicateMessageIndexRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	turns := NewSQLTurnStore(s)
	u := createTestUser(t, s, "Rahul")

	first := []models.Conversation{{UserID: u.ID, SessionID: "s", MessageIndex: 0, Role: models.RoleUser, Content: "a"}}
	require.NoError(t, turns.AppendTurns(ctx, first))

	again := []models.Conversation{{UserID: u.ID, SessionID: "s", MessageIndex: 0, Role: models.RoleUser, Content: "b"}}
	err := turns.AppendTurns(ctx, again)
	assert.True(t, errors.Is(err, errs.ErrDuplicateMessageIndex))
	assert.True(t, errs.IsKind(err, errs.KindPersistence))
}

func TestSummaries_SecondWriteOverwrites(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := createTestUser(t, s, "Rahul")
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first := &models.ConversationSummary{
		UserID: u.ID, SessionID: "sess-1", SummaryText: "asked about marriage",
		KeyTopics: []string{"marriage"}, MessageCount: 2, SessionStart: start, SessionEnd: start.Add(time.Minute),
	}
	require.NoError(t, s.SaveSummary(ctx, first))

	second := &models.ConversationSummary{
		UserID: u.ID, SessionID: "sess-1", SummaryText: "asked about marriage and next year",
		KeyTopics: []string{"marriage", "timing"}, MessageCount: 4, SessionStart: start, SessionEnd: start.Add(5 * time.Minute),
	}
	require.NoError(t, s.SaveSummary(ctx, second))
	assert.Equal(t, first.ID, second.ID)

	n, err := s.CountSummaries(ctx, u.ID, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.GetSummary(ctx, u.ID, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "asked about marriage and next year", got.SummaryText)
	assert.Equal(t, []string{"marriage", "timing"}, got.KeyTopics)
	assert.Equal(t, 4, got.MessageCount)

	latest, err := s.LatestSummary(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, got.ID, latest.ID)
}

func TestFacts_StatusTransitions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := createTestUser(t, s, "Rahul")

	res, err := s.ApplyConsolidation(ctx, ConsolidationWrite{
		UserID:    u.ID,
		SessionID: "sess-1",
		Facts: []models.UserFact{
			{FactType: "career", Category: "current_situation", FactText: "Works as an engineer", Confidence: 0.9, Importance: 0.4},
			{FactType: "relationship", Category: "goals", FactText: "Wants to marry next year", Confidence: 1.4, Importance: 0.9},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.FactsInserted)

	facts, err := s.ActiveFacts(ctx, u.ID, 15)
	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, "Wants to marry next year", facts[0].FactText)
	assert.Equal(t, 1.0, facts[0].Confidence)
	assert.Equal(t, "sess-1", facts[0].SourceSessionID)

	updated, err := s.SetFactStatus(ctx, u.ID, facts[1].ID, models.FactRetracted)
	require.NoError(t, err)
	assert.Equal(t, models.FactRetracted, updated.Status)

	_, err = s.SetFactStatus(ctx, u.ID, facts[1].ID, models.FactActive)
	assert.True(t, errors.Is(err, errs.ErrInvalidFactTransition))

	_, err = s.SetFactStatus(ctx, u.ID, 9999, models.FactSuperseded)
	assert.True(t, errors.Is(err, errs.ErrFactNotFound))

	_, err = s.SetFactStatus(ctx, u.ID, facts[0].ID, models.FactStatus("gone"))
	assert.True(t, errors.Is(err, errs.ErrInvalidFactStatus))

	require.NoError(t, s.TouchFacts(ctx, []int64{facts[0].ID}))
	f, err := s.GetFact(ctx, u.ID, facts[0].ID)
	require.NoError(t, err)
	assert.NotNil(t, f.LastReferenced)

	active, err := s.ActiveFacts(ctx, u.ID, 15)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestApplyConsolidation_SupersedesAndMergesProfile(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := createTestUser(t, s, "Rahul")
	other := createTestUser(t, s, "Priya")

	_, err := s.ApplyConsolidation(ctx, ConsolidationWrite{
		UserID: u.ID, SessionID: "s1",
		Facts: []models.UserFact{{FactType: "career", Category: "current_situation", FactText: "Unemployed"}},
	})
	require.NoError(t, err)
	_, err = s.ApplyConsolidation(ctx, ConsolidationWrite{
		UserID: other.ID, SessionID: "s9",
		Facts: []models.UserFact{{FactType: "career", Category: "current_situation", FactText: "Teacher"}},
	})
	require.NoError(t, err)

	old, err := s.ActiveFacts(ctx, u.ID, 15)
	require.NoError(t, err)
	otherFacts, err := s.ActiveFacts(ctx, other.ID, 15)
	require.NoError(t, err)

	res, err := s.ApplyConsolidation(ctx, ConsolidationWrite{
		UserID:          u.ID,
		SessionID:       "s2",
		Facts:           []models.UserFact{{FactType: "career", Category: "achievements", FactText: "Got a job at a bank"}},
		SupersededIDs:   []int64{old[0].ID, otherFacts[0].ID},
		Summary:         &models.ConversationSummary{SummaryText: "job news", SessionStart: time.Now(), SessionEnd: time.Now(), MessageCount: 4},
		Profile:         &models.ProfileUpdate{TopicsOfInterest: []string{"career"}, CommunicationStyle: "brief"},
		UserTurnIndexes: []int{0, 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.FactsInserted)
	assert.Equal(t, 1, res.FactsSuperseded, "another user's fact must not be superseded")
	assert.True(t, res.SummaryWritten)

	active, err := s.ActiveFacts(ctx, u.ID, 15)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Got a job at a bank", active[0].FactText)

	p, err := s.GetProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"career"}, p.TopicsOfInterest)
	assert.Equal(t, "brief", p.CommunicationStyle)
	assert.Equal(t, 2, p.InteractionCount)
	assert.NotNil(t, p.LastInteraction)

	// 伸びたセッションを再統合しても、要約済みの発話は数え直さない
	_, err = s.ApplyConsolidation(ctx, ConsolidationWrite{
		UserID:          u.ID,
		SessionID:       "s2",
		Summary:         &models.ConversationSummary{SummaryText: "job news, again", SessionStart: time.Now(), SessionEnd: time.Now(), MessageCount: 6},
		UserTurnIndexes: []int{0, 2, 4},
	})
	require.NoError(t, err)
	p, err = s.GetProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, p.InteractionCount)

	// 別セッションの発話は前回要約に関係なく数える
	_, err = s.ApplyConsolidation(ctx, ConsolidationWrite{
		UserID: u.ID, SessionID: "s3", UserTurnIndexes: []int{0},
	})
	require.NoError(t, err)
	p, err = s.GetProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, p.InteractionCount)
}

func TestDeleteUser_Cascades(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	turns := NewSQLTurnStore(s)
	u := createTestUser(t, s, "Rahul")
	keep := createTestUser(t, s, "Priya")
	createTestSession(t, s, u.ID, "sess-1")

	require.NoError(t, turns.AppendTurns(ctx, []models.Conversation{
		{UserID: u.ID, SessionID: "sess-1", MessageIndex: 0, Role: models.RoleUser, Content: "hi"},
		{UserID: u.ID, SessionID: "sess-1", MessageIndex: 1, Role: models.RoleAssistant, Content: "namaste"},
	}))
	_, err := s.ApplyConsolidation(ctx, ConsolidationWrite{
		UserID: u.ID, SessionID: "sess-1",
		Facts:   []models.UserFact{{FactText: "Lives in Pune"}},
		Summary: &models.ConversationSummary{SummaryText: "greeting", SessionStart: time.Now(), SessionEnd: time.Now()},
	})
	require.NoError(t, err)
	uid := u.ID
	require.NoError(t, s.RecordCachePerformance(ctx, &models.CachePerformance{UserID: &uid, TotalTokens: 100}))
	entry := &models.ConsolidationLogEntry{UserID: u.ID, SessionID: "sess-1"}
	require.NoError(t, s.StartConsolidation(ctx, entry))

	require.NoError(t, s.DeleteUser(ctx, u.ID))

	for _, table := range []string{"user_facts", "user_profiles", "conversations", "conversation_summaries",
		"chat_sessions", "cache_performance", "consolidation_log"} {
		assert.Zero(t, countRows(t, s, table, u.ID), table)
	}
	assert.Equal(t, 1, countRows(t, s, "user_profiles", keep.ID))

	_, err = s.GetUser(ctx, u.ID)
	assert.True(t, errors.Is(err, errs.ErrUserNotFound))
	assert.True(t, errors.Is(s.DeleteUser(ctx, u.ID), errs.ErrUserNotFound))
}

func TestSessionsToConsolidate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := createTestUser(t, s, "Rahul")
	createTestSession(t, s, u.ID, "idle")
	createTestSession(t, s, u.ID, "summarized")
	createTestSession(t, s, u.ID, "empty")

	for _, id := range []string{"idle", "summarized"} {
		_, err := s.ReserveMessageIndexes(ctx, id, 2, "marriage", "Hinglish")
		require.NoError(t, err)
	}
	require.NoError(t, s.SaveSummary(ctx, &models.ConversationSummary{
		UserID: u.ID, SessionID: "summarized", SummaryText: "done", MessageCount: 2,
		SessionStart: time.Now(), SessionEnd: time.Now(),
	}))

	now := time.Now().Add(time.Minute)
	sessions, err := s.SessionsToConsolidate(ctx, now, now.Add(-time.Hour), 2)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "idle", sessions[0].SessionID)

	none, err := s.SessionsToConsolidate(ctx, now.Add(-time.Hour), now.Add(-2*time.Hour), 2)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestConsolidationLog_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := createTestUser(t, s, "Rahul")

	e := &models.ConsolidationLogEntry{UserID: u.ID, SessionID: "sess-1"}
	require.NoError(t, s.StartConsolidation(ctx, e))
	assert.Equal(t, models.ConsolidationPending, e.Status)

	e.Status = models.ConsolidationSuccess
	e.InputMessages = 4
	e.FactsExtracted = 2
	e.SummaryWritten = true
	require.NoError(t, s.FinishConsolidation(ctx, e))

	// 終端状態は上書きされない
	e.Status = models.ConsolidationFailed
	require.NoError(t, s.FinishConsolidation(ctx, e))

	entries, err := s.ConsolidationLog(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ConsolidationSuccess, entries[0].Status)
	assert.Equal(t, 4, entries[0].InputMessages)
	assert.True(t, entries[0].SummaryWritten)
	assert.NotNil(t, entries[0].FinishedAt)
}

func TestCacheStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.RecordCachePerformance(ctx, &models.CachePerformance{Model: "gpt-4o-mini", TotalTokens: 1000, CachedTokens: 600, HitRate: 0.6, CostSaved: 0.000045}))
	require.NoError(t, s.RecordCachePerformance(ctx, &models.CachePerformance{Model: "gpt-4o-mini", TotalTokens: 1000, CachedTokens: 200, HitRate: 7}))

	st, err := s.CacheStats(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, st.Requests)
	assert.Equal(t, int64(2000), st.TotalTokens)
	assert.InDelta(t, 0.4, st.HitRate, 1e-9)
	assert.InDelta(t, 0.000045, st.TotalCostSaved, 1e-12)
}

func TestRebind(t *testing.T) {
	pg := &Store{dialect: DialectPostgres}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)", pg.rebind("SELECT * FROM t WHERE a = ? AND b IN (?, ?)"))

	lite := &Store{dialect: DialectSQLite}
	assert.Equal(t, "SELECT ? FROM t", lite.rebind("SELECT ? FROM t"))
}

func TestSchemaStatements_Dialects(t *testing.T) {
	pg := schemaStatements(DialectPostgres)
	lite := schemaStatements(DialectSQLite)
	require.Equal(t, len(pg), len(lite))

	assert.Contains(t, pg[0], "BIGSERIAL PRIMARY KEY")
	assert.Contains(t, pg[0], "JSONB")
	assert.Contains(t, lite[0], "INTEGER PRIMARY KEY AUTOINCREMENT")
	for _, stmt := range append(pg, lite...) {
		assert.NotContains(t, stmt, "{{")
	}
}
