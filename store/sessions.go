package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"astra/errs"
	"astra/models"
)

const sessionColumns = `session_id, user_id, character_id, language, message_count, created_at, last_active`

func scanSession(row interface{ Scan(...any) error }) (*models.ChatSession, error) {
	var cs models.ChatSession
	err := row.Scan(&cs.SessionID, &cs.UserID, &cs.CharacterID, &cs.Language,
		&cs.MessageCount, &cs.CreatedAt, &cs.LastActive)
	if err != nil {
		return nil, err
	}
	return &cs, nil
}

func (s *Store) CreateSession(ctx context.Context, cs *models.ChatSession) error {
	now := time.Now().UTC()
	cs.CreatedAt, cs.LastActive = now, now

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO chat_sessions (session_id, user_id, character_id, language, message_count, created_at, last_active)
		VALUES (?, ?, ?, ?, 0, ?, ?)
	`), cs.SessionID, cs.UserID, cs.CharacterID, cs.Language, now, now)
	return dbError(err)
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+sessionColumns+` FROM chat_sessions WHERE session_id = ?`), sessionID)
	cs, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrSessionNotFound
	}
	if err != nil {
		return nil, dbError(err)
	}
	return cs, nil
}

// ReserveMessageIndexes は n 件分の message_index を確保し、先頭の番号を返す
func (s *Store) ReserveMessageIndexes(ctx context.Context, sessionID string, n int, character, language string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, s.rebind(`
		UPDATE chat_sessions
		SET message_count = message_count + ?, last_active = ?, character_id = ?, language = ?
		WHERE session_id = ?
		RETURNING message_count
	`), n, time.Now().UTC(), character, language, sessionID).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, errs.ErrSessionNotFound
	}
	if err != nil {
		return 0, dbError(err)
	}
	return count - n, nil
}

// ListSessions はユーザーのセッションを新しい順に返す
func (s *Store) ListSessions(ctx context.Context, userID int64) ([]models.ChatSession, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+sessionColumns+` FROM chat_sessions WHERE user_id = ? ORDER BY last_active DESC
	`), userID)
	if err != nil {
		return nil, dbError(err)
	}
	defer rows.Close()

	var sessions []models.ChatSession
	for rows.Next() {
		cs, err := scanSession(rows)
		if err != nil {
			return nil, dbError(err)
		}
		sessions = append(sessions, *cs)
	}
	return sessions, dbError(rows.Err())
}

// SessionsToConsolidate は一定時間アイドルで、要約済み件数より会話が増えたセッションを返す
func (s *Store) SessionsToConsolidate(ctx context.Context, idleBefore, activeSince time.Time, minMessages int) ([]models.ChatSession, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT s.session_id, s.user_id, s.character_id, s.language, s.message_count, s.created_at, s.last_active
		FROM chat_sessions s
		LEFT JOIN conversation_summaries cs
			ON cs.user_id = s.user_id AND cs.session_id = s.session_id
		WHERE s.last_active <= ?
			AND s.last_active >= ?
			AND s.message_count >= ?
			AND (cs.id IS NULL OR cs.message_count < s.message_count)
		ORDER BY s.last_active
	`), idleBefore.UTC(), activeSince.UTC(), minMessages)
	if err != nil {
		return nil, dbError(err)
	}
	defer rows.Close()

	var sessions []models.ChatSession
	for rows.Next() {
		cs, err := scanSession(rows)
		if err != nil {
			return nil, dbError(err)
		}
		sessions = append(sessions, *cs)
	}
	return sessions, dbError(rows.Err())
}
