package store

import (
	"context"
	"database/sql"
	"time"

	"astra/config"
	"astra/errs"
	"astra/logger"
	"astra/models"
)

// TurnStore は会話ターンの保存先 (SQL または DynamoDB)
type TurnStore interface {
	AppendTurns(ctx context.Context, turns []models.Conversation) error
	// RecentTurns は直近 limit 件を古い順で返す
	RecentTurns(ctx context.Context, userID int64, sessionID string, limit int) ([]models.Conversation, error)
	SessionTurns(ctx context.Context, userID int64, sessionID string) ([]models.Conversation, error)
	DeleteSessions(ctx context.Context, userID int64, sessionIDs []string) error
}

// SQLTurnStore は conversations テーブルを使う
type SQLTurnStore struct {
	store *Store
}

func NewSQLTurnStore(s *Store) *SQLTurnStore {
	return &SQLTurnStore{store: s}
}

// OpenTurnStore は TURN_STORE に応じた保存先を返す
func OpenTurnStore(ctx context.Context, cfg *config.Config, s *Store) (TurnStore, error) {
	if cfg.TurnStore != "dynamodb" {
		return NewSQLTurnStore(s), nil
	}
	client, err := NewDynamoClient(ctx, cfg.DynamoEndpoint, cfg.DynamoRegion)
	if err != nil {
		return nil, err
	}
	d := NewDynamoTurnStore(client, cfg.DynamoTable)
	if err := d.EnsureTable(ctx); err != nil {
		return nil, err
	}
	logger.Info("using dynamodb turn store", "endpoint", cfg.DynamoEndpoint, "table", cfg.DynamoTable)
	return d, nil
}

const turnColumns = `id, user_id, session_id, message_index, role, content, detected_language, intent, topics, created_at`

func (t *SQLTurnStore) AppendTurns(ctx context.Context, turns []models.Conversation) error {
	s := t.store
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for i := range turns {
			turn := &turns[i]
			if turn.CreatedAt.IsZero() {
				turn.CreatedAt = time.Now().UTC()
			}
			err := tx.QueryRowContext(ctx, s.rebind(`
				INSERT INTO conversations
				(user_id, session_id, message_index, role, content, detected_language, intent, topics, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				RETURNING id
			`), turn.UserID, turn.SessionID, turn.MessageIndex, turn.Role, turn.Content,
				turn.DetectedLanguage, turn.Intent, encodeJSON(turn.Topics), turn.CreatedAt.UTC()).Scan(&turn.ID)
			if isUniqueViolation(err) {
				return errs.Wrap(errs.ErrDuplicateMessageIndex, err)
			}
			if err != nil {
				return dbError(err)
			}
		}
		return nil
	})
}

func (t *SQLTurnStore) RecentTurns(ctx context.Context, userID int64, sessionID string, limit int) ([]models.Conversation, error) {
	s := t.store
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+turnColumns+`
		FROM conversations
		WHERE user_id = ? AND session_id = ?
		ORDER BY message_index DESC
		LIMIT ?
	`), userID, sessionID, limit)
	if err != nil {
		return nil, dbError(err)
	}
	turns, err := scanTurns(rows)
	if err != nil {
		return nil, err
	}

	// 新しい順で取得したので時系列に戻す
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (t *SQLTurnStore) SessionTurns(ctx context.Context, userID int64, sessionID string) ([]models.Conversation, error) {
	s := t.store
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+turnColumns+`
		FROM conversations
		WHERE user_id = ? AND session_id = ?
		ORDER BY message_index ASC
	`), userID, sessionID)
	if err != nil {
		return nil, dbError(err)
	}
	return scanTurns(rows)
}

func (t *SQLTurnStore) DeleteSessions(ctx context.Context, userID int64, sessionIDs []string) error {
	if len(sessionIDs) == 0 {
		return nil
	}
	s := t.store
	args := []any{userID}
	for _, id := range sessionIDs {
		args = append(args, id)
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		DELETE FROM conversations WHERE user_id = ? AND session_id IN (`+inPlaceholders(len(sessionIDs))+`)
	`), args...)
	return dbError(err)
}

func scanTurns(rows *sql.Rows) ([]models.Conversation, error) {
	defer rows.Close()

	turns := make([]models.Conversation, 0)
	for rows.Next() {
		var (
			c      models.Conversation
			topics string
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.SessionID, &c.MessageIndex, &c.Role, &c.Content,
			&c.DetectedLanguage, &c.Intent, &topics, &c.CreatedAt); err != nil {
			return nil, dbError(err)
		}
		decodeJSON(topics, &c.Topics)
		turns = append(turns, c)
	}
	return turns, dbError(rows.Err())
}
