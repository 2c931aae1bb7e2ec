package store

import "strings"

// 方言ごとの型の差だけを置き換えて同じテーブル定義を使う
var schemaTemplate = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id {{pk}},
		name TEXT NOT NULL,
		birth_date TEXT NOT NULL,
		birth_time TEXT NOT NULL,
		birth_location TEXT NOT NULL,
		latitude {{float}} NOT NULL,
		longitude {{float}} NOT NULL,
		timezone TEXT NOT NULL,
		natal_chart {{json}} NOT NULL,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_birth_details
		ON users (name, birth_date, birth_time, birth_location)`,

	`CREATE TABLE IF NOT EXISTS user_profiles (
		user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		preferred_language TEXT NOT NULL DEFAULT 'hinglish',
		communication_style TEXT NOT NULL DEFAULT '',
		topics_of_interest {{json}} NOT NULL DEFAULT '[]',
		personality_traits {{json}} NOT NULL DEFAULT '{}',
		emotional_patterns {{json}} NOT NULL DEFAULT '{}',
		interaction_count INTEGER NOT NULL DEFAULT 0,
		last_interaction {{ts}},
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS user_facts (
		id {{pk}},
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		fact_type TEXT NOT NULL,
		category TEXT NOT NULL,
		fact_text TEXT NOT NULL,
		fact_summary TEXT NOT NULL DEFAULT '',
		confidence_score {{float}} NOT NULL DEFAULT 0,
		importance_score {{float}} NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'active',
		timeframe TEXT NOT NULL DEFAULT '',
		source_session_id TEXT NOT NULL DEFAULT '',
		last_referenced {{ts}},
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_facts_user ON user_facts (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_user_facts_status ON user_facts (status)`,
	`CREATE INDEX IF NOT EXISTS idx_user_facts_importance ON user_facts (importance_score)`,

	`CREATE TABLE IF NOT EXISTS chat_sessions (
		session_id TEXT PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		character_id TEXT NOT NULL,
		language TEXT NOT NULL,
		message_count INTEGER NOT NULL DEFAULT 0,
		created_at {{ts}} NOT NULL,
		last_active {{ts}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_sessions_user ON chat_sessions (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_sessions_last_active ON chat_sessions (last_active)`,

	`CREATE TABLE IF NOT EXISTS conversations (
		id {{pk}},
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		session_id TEXT NOT NULL,
		message_index INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		detected_language TEXT NOT NULL DEFAULT '',
		intent TEXT NOT NULL DEFAULT '',
		topics {{json}} NOT NULL DEFAULT '[]',
		created_at {{ts}} NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_session_index
		ON conversations (user_id, session_id, message_index)`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_created ON conversations (created_at)`,

	`CREATE TABLE IF NOT EXISTS conversation_summaries (
		id {{pk}},
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		session_id TEXT NOT NULL,
		summary_text TEXT NOT NULL,
		key_topics {{json}} NOT NULL DEFAULT '[]',
		emotional_state TEXT NOT NULL DEFAULT '',
		suggested_remedies {{json}} NOT NULL DEFAULT '[]',
		follow_ups {{json}} NOT NULL DEFAULT '[]',
		message_count INTEGER NOT NULL DEFAULT 0,
		session_start {{ts}} NOT NULL,
		session_end {{ts}} NOT NULL,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL,
		UNIQUE (user_id, session_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversation_summaries_created ON conversation_summaries (created_at)`,

	`CREATE TABLE IF NOT EXISTS cache_performance (
		id {{pk}},
		user_id BIGINT REFERENCES users(id) ON DELETE CASCADE,
		session_id TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		total_tokens INTEGER NOT NULL DEFAULT 0,
		cached_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		cache_hit_rate {{float}} NOT NULL DEFAULT 0,
		cost_saved {{float}} NOT NULL DEFAULT 0,
		created_at {{ts}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cache_performance_created ON cache_performance (created_at)`,

	`CREATE TABLE IF NOT EXISTS consolidation_log (
		id {{pk}},
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		session_id TEXT NOT NULL,
		input_messages INTEGER NOT NULL DEFAULT 0,
		facts_extracted INTEGER NOT NULL DEFAULT 0,
		facts_superseded INTEGER NOT NULL DEFAULT 0,
		summary_written BOOLEAN NOT NULL DEFAULT FALSE,
		status TEXT NOT NULL DEFAULT 'pending',
		error_message TEXT NOT NULL DEFAULT '',
		tokens_used INTEGER NOT NULL DEFAULT 0,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		started_at {{ts}} NOT NULL,
		finished_at {{ts}}
	)`,
	`CREATE INDEX IF NOT EXISTS idx_consolidation_log_user ON consolidation_log (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_consolidation_log_status ON consolidation_log (status)`,
}

func schemaStatements(d Dialect) []string {
	var r *strings.Replacer
	if d == DialectSQLite {
		r = strings.NewReplacer(
			"{{pk}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
			"{{float}}", "REAL",
			"{{json}}", "TEXT",
			"{{ts}}", "DATETIME",
		)
	} else {
		r = strings.NewReplacer(
			"{{pk}}", "BIGSERIAL PRIMARY KEY",
			"{{float}}", "DOUBLE PRECISION",
			"{{json}}", "JSONB",
			"{{ts}}", "TIMESTAMPTZ",
		)
	}

	stmts := make([]string, len(schemaTemplate))
	for i, s := range schemaTemplate {
		stmts[i] = r.Replace(s)
	}
	return stmts
}
