package store

import (
	"context"
	"time"

	"astra/models"
)

// RecordCachePerformance は計測値を1行追加する
func (s *Store) RecordCachePerformance(ctx context.Context, cp *models.CachePerformance) error {
	cp.HitRate = models.ClampScore(cp.HitRate)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}

	err := s.db.QueryRowContext(ctx, s.rebind(`
		INSERT INTO cache_performance
		(user_id, session_id, model, total_tokens, cached_tokens, output_tokens, cache_hit_rate, cost_saved, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`), cp.UserID, cp.SessionID, cp.Model, cp.TotalTokens, cp.CachedTokens, cp.OutputTokens,
		cp.HitRate, cp.CostSaved, cp.CreatedAt.UTC()).Scan(&cp.ID)
	return dbError(err)
}

// CacheStats は since 以降の集計 (ヒット率はトークン加重)
func (s *Store) CacheStats(ctx context.Context, since time.Time) (models.CacheStats, error) {
	var st models.CacheStats
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT COUNT(*),
			COALESCE(SUM(total_tokens), 0),
			COALESCE(SUM(cached_tokens), 0),
			COALESCE(SUM(output_tokens), 0),
			COALESCE(SUM(cost_saved), 0)
		FROM cache_performance
		WHERE created_at >= ?
	`), since.UTC()).Scan(&st.Requests, &st.TotalTokens, &st.CachedTokens, &st.OutputTokens, &st.TotalCostSaved)
	if err != nil {
		return models.CacheStats{}, dbError(err)
	}
	if st.TotalTokens > 0 {
		st.HitRate = float64(st.CachedTokens) / float64(st.TotalTokens)
	}
	return st, nil
}
