package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"astra/errs"
	"astra/models"
)

const factColumns = `id, user_id, fact_type, category, fact_text, fact_summary, confidence_score,
	importance_score, status, timeframe, source_session_id, last_referenced, created_at, updated_at`

func scanFact(row interface{ Scan(...any) error }) (*models.UserFact, error) {
	var (
		f      models.UserFact
		status string
		lastRe sql.NullTime
	)
	err := row.Scan(&f.ID, &f.UserID, &f.FactType, &f.Category, &f.FactText, &f.FactSummary,
		&f.Confidence, &f.Importance, &status, &f.Timeframe, &f.SourceSessionID, &lastRe,
		&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	f.Status = models.FactStatus(status)
	f.LastReferenced = nullTime(lastRe)
	return &f, nil
}

// ActiveFacts は重要度順に有効な事実を返す
func (s *Store) ActiveFacts(ctx context.Context, userID int64, limit int) ([]models.UserFact, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+factColumns+`
		FROM user_facts
		WHERE user_id = ? AND status = 'active'
		ORDER BY importance_score DESC, COALESCE(last_referenced, created_at) DESC, id DESC
		LIMIT ?
	`), userID, limit)
	if err != nil {
		return nil, dbError(err)
	}
	defer rows.Close()

	facts := make([]models.UserFact, 0)
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, dbError(err)
		}
		facts = append(facts, *f)
	}
	return facts, dbError(rows.Err())
}

// TouchFacts は会話で参照した事実の last_referenced を更新する
func (s *Store) TouchFacts(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	args := []any{time.Now().UTC()}
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE user_facts SET last_referenced = ? WHERE id IN (`+inPlaceholders(len(ids))+`)
	`), args...)
	return dbError(err)
}

func (s *Store) GetFact(ctx context.Context, userID, factID int64) (*models.UserFact, error) {
	return getFact(ctx, s, s.db, userID, factID)
}

func getFact(ctx context.Context, s *Store, q queryer, userID, factID int64) (*models.UserFact, error) {
	row := q.QueryRowContext(ctx, s.rebind(`SELECT `+factColumns+` FROM user_facts WHERE id = ? AND user_id = ?`), factID, userID)
	f, err := scanFact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrFactNotFound
	}
	if err != nil {
		return nil, dbError(err)
	}
	return f, nil
}

// SetFactStatus は active からの遷移だけを許可する
func (s *Store) SetFactStatus(ctx context.Context, userID, factID int64, next models.FactStatus) (*models.UserFact, error) {
	if !next.Valid() {
		return nil, errs.ErrInvalidFactStatus
	}

	var updated *models.UserFact
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		f, err := getFact(ctx, s, tx, userID, factID)
		if err != nil {
			return err
		}
		if !f.Status.CanTransitionTo(next) {
			return errs.ErrInvalidFactTransition
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, s.rebind(`
			UPDATE user_facts SET status = ?, updated_at = ? WHERE id = ? AND user_id = ?
		`), string(next), now, factID, userID); err != nil {
			return dbError(err)
		}
		f.Status = next
		f.UpdatedAt = now
		updated = f
		return nil
	})
	return updated, err
}

func insertFact(ctx context.Context, s *Store, q queryer, f *models.UserFact) error {
	f.Normalize()
	now := time.Now().UTC()
	f.CreatedAt, f.UpdatedAt = now, now

	err := q.QueryRowContext(ctx, s.rebind(`
		INSERT INTO user_facts
		(user_id, fact_type, category, fact_text, fact_summary, confidence_score, importance_score,
		 status, timeframe, source_session_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`), f.UserID, f.FactType, f.Category, f.FactText, f.FactSummary, f.Confidence, f.Importance,
		string(f.Status), f.Timeframe, f.SourceSessionID, now, now).Scan(&f.ID)
	return dbError(err)
}

// supersedeFact は有効な事実だけを superseded にし、更新したかを返す
func supersedeFact(ctx context.Context, s *Store, q queryer, userID, factID int64) (bool, error) {
	res, err := q.ExecContext(ctx, s.rebind(`
		UPDATE user_facts SET status = 'superseded', updated_at = ?
		WHERE id = ? AND user_id = ? AND status = 'active'
	`), time.Now().UTC(), factID, userID)
	if err != nil {
		return false, dbError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, dbError(err)
	}
	return n > 0, nil
}
