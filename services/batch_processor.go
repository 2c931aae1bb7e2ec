package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"astra/errs"
	"astra/logger"
	"astra/models"
	"astra/store"
)

const (
	extractionTemperature = 0.3
	extractionMaxTokens   = 800
	existingFactsLimit    = 50
)

type consolidationStore interface {
	GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error)
	ActiveFacts(ctx context.Context, userID int64, limit int) ([]models.UserFact, error)
	ApplyConsolidation(ctx context.Context, w store.ConsolidationWrite) (store.ConsolidationResult, error)
	StartConsolidation(ctx context.Context, e *models.ConsolidationLogEntry) error
	FinishConsolidation(ctx context.Context, e *models.ConsolidationLogEntry) error
	SessionsToConsolidate(ctx context.Context, idleBefore, activeSince time.Time, minMessages int) ([]models.ChatSession, error)
}

// ConsolidationService は会話から事実と要約を抽出して長期記憶に反映する
type ConsolidationService struct {
	store       consolidationStore
	turns       store.TurnStore
	llm         LLM
	minMessages int
}

func NewConsolidationService(s consolidationStore, turns store.TurnStore, llm LLM, minMessages int) *ConsolidationService {
	if minMessages < 2 {
		minMessages = 2
	}
	return &ConsolidationService{store: s, turns: turns, llm: llm, minMessages: minMessages}
}

// extractionResult は LLM が返す JSON
type extractionResult struct {
	Facts             []extractedFact       `json:"facts"`
	SupersededFactIDs []int64               `json:"superseded_fact_ids"`
	Summary           extractedSummary      `json:"summary"`
	Profile           *models.ProfileUpdate `json:"profile"`
}

type extractedFact struct {
	FactType    string  `json:"fact_type"`
	Category    string  `json:"category"`
	FactText    string  `json:"fact_text"`
	FactSummary string  `json:"fact_summary"`
	Timeframe   string  `json:"timeframe"`
	Confidence  float64 `json:"confidence"`
	Importance  float64 `json:"importance"`
}

type extractedSummary struct {
	Text              string   `json:"summary_text"`
	KeyTopics         []string `json:"key_topics"`
	EmotionalState    string   `json:"emotional_state"`
	SuggestedRemedies []string `json:"suggested_remedies"`
	FollowUps         []string `json:"follow_ups"`
}

// ConsolidateSessionByID はセッションの所有者を調べてから統合する
func (c *ConsolidationService) ConsolidateSessionByID(ctx context.Context, sessionID string) (*models.ConsolidationLogEntry, error) {
	session, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return c.ConsolidateSession(ctx, session.UserID, sessionID)
}

// ConsolidateSession は pending の監査行を作り、結果に応じて success か failed で閉じる
// 事実・要約・プロフィールの書き込みは1トランザクションなので failed のとき何も残らない
func (c *ConsolidationService) ConsolidateSession(ctx context.Context, userID int64, sessionID string) (*models.ConsolidationLogEntry, error) {
	entry := &models.ConsolidationLogEntry{UserID: userID, SessionID: sessionID}
	if err := c.store.StartConsolidation(ctx, entry); err != nil {
		return nil, err
	}
	started := time.Now()
	log := logger.With("user_id", userID, "session_id", sessionID)

	err := c.consolidate(ctx, entry)

	entry.DurationMs = time.Since(started).Milliseconds()
	if err != nil {
		entry.Status = models.ConsolidationFailed
		entry.ErrorMessage = err.Error()
		log.Error("consolidation failed", "error", err)
	} else {
		entry.Status = models.ConsolidationSuccess
		log.Info("consolidation finished",
			"messages", entry.InputMessages,
			"facts", entry.FactsExtracted,
			"superseded", entry.FactsSuperseded,
			"tokens", entry.TokensUsed)
	}

	// リクエストが切れていても監査行は閉じる
	if ferr := c.store.FinishConsolidation(context.WithoutCancel(ctx), entry); ferr != nil {
		log.Error("failed to finish consolidation log", "error", ferr)
		if err == nil {
			err = ferr
		}
	}
	return entry, err
}

func (c *ConsolidationService) consolidate(ctx context.Context, entry *models.ConsolidationLogEntry) error {
	turns, err := c.turns.SessionTurns(ctx, entry.UserID, entry.SessionID)
	if err != nil {
		return err
	}
	entry.InputMessages = len(turns)
	if len(turns) < c.minMessages {
		return nil
	}

	existing, err := c.store.ActiveFacts(ctx, entry.UserID, existingFactsLimit)
	if err != nil {
		return err
	}

	completion, err := c.llm.Complete(ctx, CompletionRequest{
		Messages:    []Message{{Role: models.RoleUser, Content: extractionPrompt(turns, existing)}},
		Temperature: extractionTemperature,
		MaxTokens:   extractionMaxTokens,
		JSONMode:    true,
	})
	if err != nil {
		return err
	}
	entry.TokensUsed = completion.Usage.Total()

	result, err := parseExtraction(completion.Text)
	if err != nil {
		return err
	}

	res, err := c.store.ApplyConsolidation(ctx, buildConsolidationWrite(entry, turns, existing, result))
	if err != nil {
		return err
	}
	entry.FactsExtracted = res.FactsInserted
	entry.FactsSuperseded = res.FactsSuperseded
	entry.SummaryWritten = res.SummaryWritten
	return nil
}

func buildConsolidationWrite(entry *models.ConsolidationLogEntry, turns []models.Conversation, existing []models.UserFact, result *extractionResult) store.ConsolidationWrite {
	facts := make([]models.UserFact, 0, len(result.Facts))
	for _, f := range result.Facts {
		if strings.TrimSpace(f.FactText) == "" {
			continue
		}
		facts = append(facts, models.UserFact{
			FactType:    strings.ToLower(strings.TrimSpace(f.FactType)),
			Category:    strings.ToLower(strings.TrimSpace(f.Category)),
			FactText:    strings.TrimSpace(f.FactText),
			FactSummary: strings.TrimSpace(f.FactSummary),
			Timeframe:   strings.ToLower(strings.TrimSpace(f.Timeframe)),
			Confidence:  f.Confidence,
			Importance:  f.Importance,
		})
	}

	// 既存の有効な事実に含まれる ID だけを置き換え対象にする
	known := make(map[int64]bool, len(existing))
	for _, f := range existing {
		known[f.ID] = true
	}
	var superseded []int64
	for _, id := range result.SupersededFactIDs {
		if known[id] {
			superseded = append(superseded, id)
			delete(known, id)
		}
	}

	var userTurns []int
	var topics []string
	seen := make(map[string]bool)
	through := 0
	for _, t := range turns {
		if t.MessageIndex >= through {
			through = t.MessageIndex + 1
		}
		if t.Role != models.RoleUser {
			continue
		}
		userTurns = append(userTurns, t.MessageIndex)
		for _, topic := range t.Topics {
			if !seen[topic] {
				seen[topic] = true
				topics = append(topics, topic)
			}
		}
	}

	s := result.Summary
	if len(s.KeyTopics) == 0 {
		s.KeyTopics = topics
	}
	if strings.TrimSpace(s.Text) == "" {
		s.Text = fallbackSummary(s.KeyTopics)
	}

	return store.ConsolidationWrite{
		UserID:        entry.UserID,
		SessionID:     entry.SessionID,
		Facts:         facts,
		SupersededIDs: superseded,
		Summary: &models.ConversationSummary{
			SummaryText:       strings.TrimSpace(s.Text),
			KeyTopics:         nonNil(s.KeyTopics),
			EmotionalState:    s.EmotionalState,
			SuggestedRemedies: s.SuggestedRemedies,
			FollowUps:         s.FollowUps,
			MessageCount:      through,
			SessionStart:      turns[0].CreatedAt,
			SessionEnd:        turns[len(turns)-1].CreatedAt,
		},
		Profile:         result.Profile,
		UserTurnIndexes: userTurns,
		At:              time.Now().UTC(),
	}
}

func fallbackSummary(topics []string) string {
	if len(topics) == 0 {
		return "General astrology consultation"
	}
	return "Astrology consultation about " + strings.Join(topics, ", ")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func extractionPrompt(turns []models.Conversation, existing []models.UserFact) string {
	var conv strings.Builder
	for _, t := range turns {
		role := "User"
		if t.Role != models.RoleUser {
			role = "Astra"
		}
		fmt.Fprintf(&conv, "%s: %s\n", role, t.Content)
	}

	var known strings.Builder
	for _, f := range existing {
		fmt.Fprintf(&known, "- id=%d [%s/%s] %s\n", f.ID, f.FactType, f.Category, f.FactText)
	}
	if known.Len() == 0 {
		known.WriteString("(none)\n")
	}

	return `Analyze this astrology consultation conversation and extract IMPORTANT, CONCRETE facts about the user.

CONVERSATION:
` + conv.String() + `
FACTS ALREADY KNOWN:
` + known.String() + `
Extract facts that are:
1. Specific and concrete (not vague)
2. Relevant for future consultations
3. Long-term or ongoing (not temporary)
4. Not already in FACTS ALREADY KNOWN

For each fact, provide:
- fact_type: "career", "relationship", "health", "personal", "financial", "family"
- category: "current_situation", "goals", "challenges", "achievements", "life_events"
- fact_text: The complete fact in one sentence
- fact_summary: Short version (5-10 words)
- timeframe: "current", "past", "future_goal", "ongoing"
- confidence: 0.0 to 1.0 (how confident are you?)
- importance: 0.0 to 1.0 (how important is this fact?)

If a new fact replaces a known one (for example the user changed jobs), list the known fact's id in superseded_fact_ids.

Also summarise the session and describe the user.

Return ONLY a JSON object:
{
  "facts": [
    {
      "fact_type": "career",
      "category": "current_situation",
      "fact_text": "User is a software engineer with 3 years experience, currently working at a startup",
      "fact_summary": "Software engineer, 3 yrs, startup",
      "timeframe": "current",
      "confidence": 0.95,
      "importance": 0.85
    }
  ],
  "superseded_fact_ids": [],
  "summary": {
    "summary_text": "2-3 sentences",
    "key_topics": ["career"],
    "emotional_state": "anxious",
    "suggested_remedies": [],
    "follow_ups": []
  },
  "profile": {
    "preferred_language": "Hinglish",
    "communication_style": "casual",
    "topics_of_interest": ["career"],
    "personality_traits": {},
    "emotional_patterns": {}
  }
}

IMPORTANT: Only extract 3-5 MOST IMPORTANT facts. Quality over quantity.`
}

// parseExtraction は前後に余計な文章があっても JSON 部分を取り出す
// 配列だけが返ってきた場合は facts として扱う
func parseExtraction(text string) (*extractionResult, error) {
	text = strings.TrimSpace(text)

	obj := strings.Index(text, "{")
	arr := strings.Index(text, "[")
	if arr >= 0 && (obj < 0 || arr < obj) {
		if end := strings.LastIndex(text, "]"); end > arr {
			var facts []extractedFact
			if err := json.Unmarshal([]byte(text[arr:end+1]), &facts); err == nil {
				return &extractionResult{Facts: facts}, nil
			}
		}
	}
	if obj >= 0 {
		if end := strings.LastIndex(text, "}"); end > obj {
			var result extractionResult
			if err := json.Unmarshal([]byte(text[obj:end+1]), &result); err == nil {
				return &result, nil
			}
		}
	}

	return nil, errs.WithMessage(errs.ErrExtractionParseFailed, "could not parse extraction result: no JSON found")
}

// BatchProcessor は一定時間アイドルのセッションをまとめて統合する
type BatchProcessor struct {
	store       consolidationStore
	service     *ConsolidationService
	quietPeriod time.Duration
	lookback    time.Duration
	minMessages int
}

func NewBatchProcessor(s consolidationStore, service *ConsolidationService, quietPeriod, lookback time.Duration, minMessages int) *BatchProcessor {
	return &BatchProcessor{
		store:       s,
		service:     service,
		quietPeriod: quietPeriod,
		lookback:    lookback,
		minMessages: minMessages,
	}
}

// BatchResult は1回の実行の集計
type BatchResult struct {
	Sessions  int
	Succeeded int
	Failed    int
}

// ProcessSessions は対象セッションを順に処理する。1件の失敗で全体は止めない
func (bp *BatchProcessor) ProcessSessions(ctx context.Context) (BatchResult, error) {
	now := time.Now()
	sessions, err := bp.store.SessionsToConsolidate(ctx, now.Add(-bp.quietPeriod), now.Add(-bp.lookback), bp.minMessages)
	if err != nil {
		return BatchResult{}, fmt.Errorf("failed to list sessions: %w", err)
	}

	res := BatchResult{Sessions: len(sessions)}
	for _, s := range sessions {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if _, err := bp.service.ConsolidateSession(ctx, s.UserID, s.SessionID); err != nil {
			res.Failed++
			continue
		}
		res.Succeeded++
	}

	logger.Info("batch consolidation finished",
		"sessions", res.Sessions, "succeeded", res.Succeeded, "failed", res.Failed)
	return res, nil
}
