package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"astra/errs"
	"astra/logger"
	"astra/models"
	"astra/store"

	"github.com/google/uuid"
)

const (
	chatTemperature = 0.7
	chatMaxTokens   = 150
)

type chatStore interface {
	CreateSession(ctx context.Context, cs *models.ChatSession) error
	GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error)
	ReserveMessageIndexes(ctx context.Context, sessionID string, n int, character, language string) (int, error)
	ListSessions(ctx context.Context, userID int64) ([]models.ChatSession, error)
	GetProfile(ctx context.Context, userID int64) (*models.UserProfile, error)
	RecordCachePerformance(ctx context.Context, cp *models.CachePerformance) error
	DeleteUser(ctx context.Context, id int64) error
}

// ChatDeps は ChatService の依存
type ChatDeps struct {
	Store           chatStore
	Turns           store.TurnStore
	Users           *UserService
	Memory          *RAGService
	Personas        *PersonaCatalog
	Remedies        *RemedyCatalog
	Astro           *AstroService
	LLM             LLM
	Guard           *IdentityGuard
	HistoryLimit    int
	DefaultLanguage string
}

// ChatService は1往復の会話を実行する
type ChatService struct {
	store           chatStore
	turns           store.TurnStore
	users           *UserService
	memory          *RAGService
	personas        *PersonaCatalog
	remedies        *RemedyCatalog
	astro           *AstroService
	llm             LLM
	guard           *IdentityGuard
	historyLimit    int
	defaultLanguage string
	locks           *sessionLocks
	now             func() time.Time
}

func NewChatService(d ChatDeps) *ChatService {
	limit := d.HistoryLimit
	if limit <= 0 {
		limit = 20
	}
	return &ChatService{
		store:           d.Store,
		turns:           d.Turns,
		users:           d.Users,
		memory:          d.Memory,
		personas:        d.Personas,
		remedies:        d.Remedies,
		astro:           d.Astro,
		llm:             d.LLM,
		guard:           d.Guard,
		historyLimit:    limit,
		defaultLanguage: d.DefaultLanguage,
		locks:           newSessionLocks(),
		now:             time.Now,
	}
}

// Chat はユーザーとセッションを解決し、LLM の応答を保存して返す
func (cs *ChatService) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	if missing := req.MissingFields(); len(missing) > 0 {
		return nil, errs.WithMessage(errs.ErrIncompleteRequest, "missing required fields: "+strings.Join(missing, ", "))
	}
	persona, err := cs.personas.Get(req.CharacterKey())
	if err != nil {
		return nil, err
	}
	variant, err := ResolvePromptVariant(req.PromptVariant)
	if err != nil {
		return nil, err
	}

	text := req.Text()
	analysis := AnalyzeQuery(text)
	preferred := strings.TrimSpace(req.PreferredLanguage)

	profileLanguage := preferred
	if profileLanguage == "" {
		profileLanguage = cs.defaultLanguage
	}
	user, err := cs.resolveUser(ctx, req, profileLanguage)
	if err != nil {
		return nil, err
	}

	session, isNew, err := cs.resolveSession(ctx, user.ID, req.SessionID, persona.ID, profileLanguage)
	if err != nil {
		return nil, err
	}
	log := logger.With("user_id", user.ID, "session_id", session.SessionID)

	unlock := cs.locks.Lock(session.SessionID)
	defer unlock()

	language := cs.responseLanguage(ctx, user.ID, preferred)

	history, err := cs.turns.RecentTurns(ctx, user.ID, session.SessionID, cs.historyLimit)
	if err != nil {
		log.Error("failed to load history", "error", err)
		return nil, err
	}

	var completion *Completion
	raw, handled := cs.guard.Check(ctx, text, analysis.Language, persona.Name)
	if !handled {
		memory, err := cs.memory.MemoryContext(ctx, user.ID, session.SessionID)
		if err != nil {
			log.Warn("memory context unavailable", "error", err)
		}

		var remedyContext string
		if analysis.Intent == IntentRemedyRequest {
			remedyContext = cs.remedies.RemedyContext(PlanetsForTopics(analysis.Topics)...)
		}

		msgs := ComposeMessages(PromptInput{
			Persona:        persona,
			Variant:        variant,
			Language:       language,
			NatalContext:   NatalContext(user.NatalChart),
			TransitContext: TransitContext(cs.astro.Transits(cs.now(), user.NatalChart)),
			MemoryContext:  memory,
			RemedyContext:  remedyContext,
			History:        history,
			Query:          text,
		})

		completion, err = cs.llm.Complete(ctx, CompletionRequest{
			Messages:    msgs,
			Temperature: chatTemperature,
			MaxTokens:   chatMaxTokens,
		})
		if err != nil {
			log.Error("llm request failed", "error", err)
			return nil, err
		}
		raw = completion.Text
	}

	segments := CleanReply(raw, analysis.Intent)
	if len(segments) == 0 {
		return nil, errs.ErrLLMEmptyResponse
	}
	reply := JoinSegments(segments)

	if isNew {
		if err := cs.store.CreateSession(ctx, session); err != nil {
			log.Error("failed to create session", "error", err)
			return nil, err
		}
	}
	start, err := cs.store.ReserveMessageIndexes(ctx, session.SessionID, 2, persona.ID, language)
	if err != nil {
		log.Error("failed to reserve message index", "error", err)
		return nil, err
	}
	now := cs.now().UTC()
	turns := []models.Conversation{
		{
			UserID:           user.ID,
			SessionID:        session.SessionID,
			MessageIndex:     start,
			Role:             models.RoleUser,
			Content:          text,
			DetectedLanguage: analysis.Language,
			Intent:           analysis.Intent,
			Topics:           analysis.Topics,
			CreatedAt:        now,
		},
		{
			UserID:       user.ID,
			SessionID:    session.SessionID,
			MessageIndex: start + 1,
			Role:         models.RoleAssistant,
			Content:      reply,
			CreatedAt:    now,
		},
	}
	if err := cs.turns.AppendTurns(ctx, turns); err != nil {
		log.Error("failed to save turns", "error", err)
		return nil, err
	}

	if completion != nil {
		if err := cs.store.RecordCachePerformance(ctx, NewCachePerformance(user.ID, session.SessionID, completion)); err != nil {
			log.Warn("failed to record cache performance", "error", err)
		}
	}

	return &models.ChatResponse{
		Success:   true,
		Response:  reply,
		Messages:  segments,
		SessionID: session.SessionID,
		UserID:    user.ID,
		Character: models.CharacterRef{ID: persona.ID, Name: persona.Name},
		Language:  language,
		Intent:    analysis.Intent,
	}, nil
}

// resolveUser はセッション継続時には既存ユーザーだけを探す
// 知らない出生情報で他人のセッションを指定しても新しいユーザーは作らない
func (cs *ChatService) resolveUser(ctx context.Context, req models.ChatRequest, language string) (*models.User, error) {
	token := strings.TrimSpace(req.SessionID)
	if token == "" {
		return cs.users.Resolve(ctx, req.Birth(), language)
	}
	user, err := cs.users.Find(ctx, req.Birth())
	if errors.Is(err, errs.ErrUserNotFound) {
		return nil, sessionNotFound(token)
	}
	return user, err
}

// resolveSession はトークンがなければ未保存の新しいセッションを返す (isNew)
// 行は応答が確定してから作る
// 既存のトークンは同じユーザーのものでなければ見つからない扱いにする
func (cs *ChatService) resolveSession(ctx context.Context, userID int64, token, character, language string) (*models.ChatSession, bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return &models.ChatSession{
			SessionID:   uuid.NewString(),
			UserID:      userID,
			CharacterID: character,
			Language:    language,
		}, true, nil
	}

	session, err := cs.store.GetSession(ctx, token)
	if err != nil {
		return nil, false, err
	}
	if session.UserID != userID {
		return nil, false, sessionNotFound(token)
	}
	return session, false, nil
}

func sessionNotFound(token string) *errs.Error {
	return errs.WithMessage(errs.ErrSessionNotFound, fmt.Sprintf("session %s not found for this user", token))
}

// responseLanguage はリクエスト、プロフィール、既定値の順に決める
func (cs *ChatService) responseLanguage(ctx context.Context, userID int64, preferred string) string {
	if preferred != "" {
		return preferred
	}
	p, err := cs.store.GetProfile(ctx, userID)
	if err == nil && p.PreferredLanguage != "" {
		return p.PreferredLanguage
	}
	if err != nil && !errors.Is(err, errs.ErrProfileNotFound) {
		logger.Warn("failed to load profile", "user_id", userID, "error", err)
	}
	return cs.defaultLanguage
}

// History はセッションの全ターンを返す (userID が 0 以外なら所有者も確認する)
func (cs *ChatService) History(ctx context.Context, sessionID string, userID int64) ([]models.Conversation, error) {
	session, err := cs.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if userID != 0 && session.UserID != userID {
		return nil, errs.ErrSessionNotFound
	}
	turns, err := cs.turns.SessionTurns(ctx, session.UserID, sessionID)
	if err != nil {
		return nil, err
	}
	if turns == nil {
		turns = []models.Conversation{}
	}
	return turns, nil
}

// DeleteUser はターン (DynamoDB の場合は別ストア) を消してからユーザーを削除する
func (cs *ChatService) DeleteUser(ctx context.Context, userID int64) error {
	sessions, err := cs.store.ListSessions(ctx, userID)
	if err != nil {
		return err
	}
	if len(sessions) > 0 {
		ids := make([]string, len(sessions))
		for i, s := range sessions {
			ids[i] = s.SessionID
		}
		if err := cs.turns.DeleteSessions(ctx, userID, ids); err != nil {
			return err
		}
	}
	if err := cs.store.DeleteUser(ctx, userID); err != nil {
		return err
	}
	logger.Info("user deleted", "user_id", userID, "sessions", len(sessions))
	return nil
}

func (cs *ChatService) Characters() []models.PersonaDescriptor {
	return cs.personas.Descriptors()
}
