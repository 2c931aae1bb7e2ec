package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"astra/models"
)

const summaryColumns = `id, user_id, session_id, summary_text, key_topics, emotional_state,
	suggested_remedies, follow_ups, message_count, session_start, session_end, created_at, updated_at`

func scanSummary(row interface{ Scan(...any) error }) (*models.ConversationSummary, error) {
	var (
		cs                          models.ConversationSummary
		topics, remedies, followUps string
	)
	err := row.Scan(&cs.ID, &cs.UserID, &cs.SessionID, &cs.SummaryText, &topics, &cs.EmotionalState,
		&remedies, &followUps, &cs.MessageCount, &cs.SessionStart, &cs.SessionEnd, &cs.CreatedAt, &cs.UpdatedAt)
	if err != nil {
		return nil, err
	}
	decodeJSON(topics, &cs.KeyTopics)
	decodeJSON(remedies, &cs.SuggestedRemedies)
	decodeJSON(followUps, &cs.FollowUps)
	return &cs, nil
}

// upsertSummary は (user_id, session_id) が衝突したら上書きする
func upsertSummary(ctx context.Context, s *Store, q queryer, cs *models.ConversationSummary) error {
	now := time.Now().UTC()
	cs.UpdatedAt = now
	if cs.CreatedAt.IsZero() {
		cs.CreatedAt = now
	}

	err := q.QueryRowContext(ctx, s.rebind(`
		INSERT INTO conversation_summaries
		(user_id, session_id, summary_text, key_topics, emotional_state, suggested_remedies,
		 follow_ups, message_count, session_start, session_end, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, session_id)
		DO UPDATE SET
			summary_text = excluded.summary_text,
			key_topics = excluded.key_topics,
			emotional_state = excluded.emotional_state,
			suggested_remedies = excluded.suggested_remedies,
			follow_ups = excluded.follow_ups,
			message_count = excluded.message_count,
			session_start = excluded.session_start,
			session_end = excluded.session_end,
			updated_at = excluded.updated_at
		RETURNING id
	`), cs.UserID, cs.SessionID, cs.SummaryText, encodeJSON(cs.KeyTopics), cs.EmotionalState,
		encodeJSON(cs.SuggestedRemedies), encodeJSON(cs.FollowUps), cs.MessageCount,
		cs.SessionStart.UTC(), cs.SessionEnd.UTC(), cs.CreatedAt, now).Scan(&cs.ID)
	return dbError(err)
}

// summarizedThrough は既存要約の message_count (要約がなければ 0)
func summarizedThrough(ctx context.Context, s *Store, q queryer, userID int64, sessionID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, s.rebind(`
		SELECT message_count FROM conversation_summaries WHERE user_id = ? AND session_id = ?
	`), userID, sessionID).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, dbError(err)
}

// SaveSummary はトランザクション外での上書き保存
func (s *Store) SaveSummary(ctx context.Context, cs *models.ConversationSummary) error {
	return upsertSummary(ctx, s, s.db, cs)
}

func (s *Store) GetSummary(ctx context.Context, userID int64, sessionID string) (*models.ConversationSummary, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT `+summaryColumns+` FROM conversation_summaries WHERE user_id = ? AND session_id = ?
	`), userID, sessionID)
	cs, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, dbError(err)
	}
	return cs, nil
}

// LatestSummary は直近のセッション要約 (なければ nil)
func (s *Store) LatestSummary(ctx context.Context, userID int64) (*models.ConversationSummary, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT `+summaryColumns+` FROM conversation_summaries
		WHERE user_id = ?
		ORDER BY session_end DESC, id DESC
		LIMIT 1
	`), userID)
	cs, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, dbError(err)
	}
	return cs, nil
}

func (s *Store) CountSummaries(ctx context.Context, userID int64, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT COUNT(*) FROM conversation_summaries WHERE user_id = ? AND session_id = ?
	`), userID, sessionID).Scan(&n)
	return n, dbError(err)
}
