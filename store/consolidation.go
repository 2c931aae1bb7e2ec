package store

import (
	"context"
	"database/sql"
	"time"

	"astra/models"
)

// ConsolidationWrite は1回の統合処理で書き込む内容
type ConsolidationWrite struct {
	UserID        int64
	SessionID     string
	Facts         []models.UserFact
	SupersededIDs []int64
	Summary       *models.ConversationSummary
	Profile       *models.ProfileUpdate
	At            time.Time

	// UserTurnIndexes はユーザー発話の message_index (前回要約済みの分は数えない)
	UserTurnIndexes []int
}

// ConsolidationResult は実際に反映された件数
type ConsolidationResult struct {
	FactsInserted   int
	FactsSuperseded int
	SummaryWritten  bool
}

// ApplyConsolidation は事実・置き換え・要約・プロフィールを1トランザクションで反映する
func (s *Store) ApplyConsolidation(ctx context.Context, w ConsolidationWrite) (ConsolidationResult, error) {
	var res ConsolidationResult
	at := w.At.UTC()
	if w.At.IsZero() {
		at = time.Now().UTC()
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range w.SupersededIDs {
			ok, err := supersedeFact(ctx, s, tx, w.UserID, id)
			if err != nil {
				return err
			}
			if ok {
				res.FactsSuperseded++
			}
		}

		for i := range w.Facts {
			f := &w.Facts[i]
			f.UserID = w.UserID
			f.SourceSessionID = w.SessionID
			if err := insertFact(ctx, s, tx, f); err != nil {
				return err
			}
			res.FactsInserted++
		}

		prev, err := summarizedThrough(ctx, s, tx, w.UserID, w.SessionID)
		if err != nil {
			return err
		}
		interactions := 0
		for _, idx := range w.UserTurnIndexes {
			if idx >= prev {
				interactions++
			}
		}

		if w.Summary != nil {
			w.Summary.UserID = w.UserID
			w.Summary.SessionID = w.SessionID
			if err := upsertSummary(ctx, s, tx, w.Summary); err != nil {
				return err
			}
			res.SummaryWritten = true
		}

		p, err := getProfile(ctx, s, tx, w.UserID)
		if err != nil {
			return err
		}
		var update models.ProfileUpdate
		if w.Profile != nil {
			update = *w.Profile
		}
		p.Merge(update, interactions, at)
		return saveProfile(ctx, s, tx, p)
	})
	if err != nil {
		return ConsolidationResult{}, err
	}
	return res, nil
}

// StartConsolidation は pending の監査行を作る
func (s *Store) StartConsolidation(ctx context.Context, e *models.ConsolidationLogEntry) error {
	e.Status = models.ConsolidationPending
	e.StartedAt = time.Now().UTC()

	err := s.db.QueryRowContext(ctx, s.rebind(`
		INSERT INTO consolidation_log (user_id, session_id, status, started_at)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`), e.UserID, e.SessionID, string(e.Status), e.StartedAt).Scan(&e.ID)
	return dbError(err)
}

// FinishConsolidation は pending の行を success か failed にする (終端状態は変更しない)
func (s *Store) FinishConsolidation(ctx context.Context, e *models.ConsolidationLogEntry) error {
	now := time.Now().UTC()
	e.FinishedAt = &now

	_, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE consolidation_log SET
			input_messages = ?,
			facts_extracted = ?,
			facts_superseded = ?,
			summary_written = ?,
			status = ?,
			error_message = ?,
			tokens_used = ?,
			duration_ms = ?,
			finished_at = ?
		WHERE id = ? AND status = 'pending'
	`), e.InputMessages, e.FactsExtracted, e.FactsSuperseded, e.SummaryWritten, string(e.Status),
		e.ErrorMessage, e.TokensUsed, e.DurationMs, now, e.ID)
	return dbError(err)
}

func (s *Store) ConsolidationLog(ctx context.Context, userID int64) ([]models.ConsolidationLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, user_id, session_id, input_messages, facts_extracted, facts_superseded,
			summary_written, status, error_message, tokens_used, duration_ms, started_at, finished_at
		FROM consolidation_log
		WHERE user_id = ?
		ORDER BY id
	`), userID)
	if err != nil {
		return nil, dbError(err)
	}
	defer rows.Close()

	var entries []models.ConsolidationLogEntry
	for rows.Next() {
		var (
			e        models.ConsolidationLogEntry
			status   string
			finished sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.SessionID, &e.InputMessages, &e.FactsExtracted,
			&e.FactsSuperseded, &e.SummaryWritten, &status, &e.ErrorMessage, &e.TokensUsed,
			&e.DurationMs, &e.StartedAt, &finished); err != nil {
			return nil, dbError(err)
		}
		e.Status = models.ConsolidationStatus(status)
		e.FinishedAt = nullTime(finished)
		entries = append(entries, e)
	}
	return entries, dbError(rows.Err())
}
