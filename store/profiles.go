package store

import (
	"context"
	"database/sql"
	"errors"

	"astra/errs"
	"astra/models"
)

func (s *Store) GetProfile(ctx context.Context, userID int64) (*models.UserProfile, error) {
	return getProfile(ctx, s, s.db, userID)
}

func getProfile(ctx context.Context, s *Store, q queryer, userID int64) (*models.UserProfile, error) {
	var (
		p                         models.UserProfile
		topics, traits, emotional string
		lastInteraction           sql.NullTime
	)
	err := q.QueryRowContext(ctx, s.rebind(`
		SELECT user_id, preferred_language, communication_style, topics_of_interest,
			personality_traits, emotional_patterns, interaction_count, last_interaction,
			created_at, updated_at
		FROM user_profiles WHERE user_id = ?
	`), userID).Scan(&p.UserID, &p.PreferredLanguage, &p.CommunicationStyle, &topics,
		&traits, &emotional, &p.InteractionCount, &lastInteraction, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrProfileNotFound
	}
	if err != nil {
		return nil, dbError(err)
	}

	decodeJSON(topics, &p.TopicsOfInterest)
	decodeJSON(traits, &p.PersonalityTraits)
	decodeJSON(emotional, &p.EmotionalPatterns)
	if p.TopicsOfInterest == nil {
		p.TopicsOfInterest = []string{}
	}
	p.LastInteraction = nullTime(lastInteraction)
	return &p, nil
}

func saveProfile(ctx context.Context, s *Store, q queryer, p *models.UserProfile) error {
	_, err := q.ExecContext(ctx, s.rebind(`
		UPDATE user_profiles SET
			preferred_language = ?,
			communication_style = ?,
			topics_of_interest = ?,
			personality_traits = ?,
			emotional_patterns = ?,
			interaction_count = ?,
			last_interaction = ?,
			updated_at = ?
		WHERE user_id = ?
	`), p.PreferredLanguage, p.CommunicationStyle, encodeJSON(p.TopicsOfInterest),
		encodeJSON(p.PersonalityTraits), encodeJSON(p.EmotionalPatterns), p.InteractionCount,
		p.LastInteraction, p.UpdatedAt.UTC(), p.UserID)
	return dbError(err)
}
