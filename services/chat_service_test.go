package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"astra/errs"
	"astra/models"
	"astra/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []CompletionRequest
}

func (f *fakeLLM) Complete(_ context.Context, req CompletionRequest) (*Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	i := len(f.requests) - 1
	if i >= len(f.replies) {
		i = len(f.replies) - 1
	}
	return &Completion{
		Text:  f.replies[i],
		Model: "gpt-4o-mini",
		Usage: Usage{PromptTokens: 1000, CachedTokens: 800, OutputTokens: 30},
	}, nil
}

func (f *fakeLLM) Model() string { return "gpt-4o-mini" }

func (f *fakeLLM) lastRequest(t *testing.T) CompletionRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

type fakeGeocoder struct {
	calls int
	err   error
}

func (g *fakeGeocoder) Geocode(_ context.Context, _ string) (float64, float64, error) {
	g.calls++
	if g.err != nil {
		return 0, 0, g.err
	}
	return 19.076, 72.8777, nil
}

type chatFixture struct {
	chat     *ChatService
	store    *store.Store
	llm      *fakeLLM
	geocoder *fakeGeocoder
}

func newChatFixture(t *testing.T, historyLimit int, guard *IdentityGuard) *chatFixture {
	t.Helper()
	s, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	personas, err := LoadPersonaCatalog("")
	require.NoError(t, err)
	remedies, err := LoadRemedyCatalog()
	require.NoError(t, err)

	llm := &fakeLLM{replies: []string{
		"Hmm, shaadi ka sawaal.|||Teri kundali mein 7th house mein Venus strong hai|||Agle saal acha yog ban raha hai",
	}}
	geo := &fakeGeocoder{}
	astro := NewAstroService()

	chat := NewChatService(ChatDeps{
		Store:           s,
		Turns:           store.NewSQLTurnStore(s),
		Users:           NewUserService(s, geo, astro, "Asia/Kolkata"),
		Memory:          NewRAGService(s),
		Personas:        personas,
		Remedies:        remedies,
		Astro:           astro,
		LLM:             llm,
		Guard:           guard,
		HistoryLimit:    historyLimit,
		DefaultLanguage: "Hinglish",
	})
	return &chatFixture{chat: chat, store: s, llm: llm, geocoder: geo}
}

func rahulRequest(message, sessionID string) models.ChatRequest {
	return models.ChatRequest{
		Name:          "Rahul",
		BirthDate:     "1990-08-15",
		BirthTime:     "14:30",
		BirthLocation: "Mumbai, India",
		Message:       message,
		Character:     models.CharacterRef{ID: "marriage"},
		SessionID:     sessionID,
	}
}

func TestChat_RahulScenario(t *testing.T) {
	f := newChatFixture(t, 20, nil)
	ctx := context.Background()

	first, err := f.chat.Chat(ctx, rahulRequest("When will I get married?", ""))
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.NotEmpty(t, first.Response)
	assert.NotEmpty(t, first.SessionID)
	assert.NotZero(t, first.UserID)
	assert.Equal(t, "Pandit Ravi Sharma", first.Character.Name)
	assert.Equal(t, []string{
		"Hmm, shaadi ka sawaal",
		"Teri kundali mein 7th house mein Venus strong hai",
		"Agle saal acha yog ban raha hai",
	}, first.Messages)
	assert.Equal(t, strings.Join(first.Messages, "|||"), first.Response)

	req := f.llm.lastRequest(t)
	assert.Equal(t, chatTemperature, req.Temperature)
	assert.Equal(t, chatMaxTokens, req.MaxTokens)
	assert.Contains(t, req.Messages[0].Content, "You are Pandit Ravi Sharma")
	assert.True(t, strings.HasPrefix(req.Messages[1].Content, "=== BIRTH CHART ===\nAscendant (Lagna):"))

	second, err := f.chat.Chat(ctx, rahulRequest("What about next year?", first.SessionID))
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, first.UserID, second.UserID)
	assert.Equal(t, 1, f.geocoder.calls)

	// 2回目の文脈には1回目の往復がそのまま順番通りに入る
	msgs := f.llm.lastRequest(t).Messages
	require.Len(t, msgs, 6)
	assert.Equal(t, Message{Role: models.RoleUser, Content: "When will I get married?"}, msgs[2])
	assert.Equal(t, Message{Role: models.RoleAssistant, Content: first.Response}, msgs[3])
	assert.Equal(t, Message{Role: models.RoleUser, Content: "What about next year?"}, msgs[5])

	history, err := f.chat.History(ctx, first.SessionID, first.UserID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	for i, turn := range history {
		assert.Equal(t, i, turn.MessageIndex)
	}
	assert.Equal(t, "english", history[0].DetectedLanguage)
	assert.Equal(t, []string{"marriage"}, history[0].Topics)

	stats, err := f.store.CacheStats(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Requests)
	assert.InDelta(t, 0.8, stats.HitRate, 1e-9)
}

func TestChat_SameBirthDetailsResolveToSameUser(t *testing.T) {
	f := newChatFixture(t, 20, nil)
	ctx := context.Background()

	a, err := f.chat.Chat(ctx, rahulRequest("hello", ""))
	require.NoError(t, err)

	req := rahulRequest("hello again", "")
	req.BirthDate = "15/08/1990"
	b, err := f.chat.Chat(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, a.UserID, b.UserID)
	assert.NotEqual(t, a.SessionID, b.SessionID)
}

func TestChat_HistoryBound(t *testing.T) {
	f := newChatFixture(t, 4, nil)
	ctx := context.Background()

	resp, err := f.chat.Chat(ctx, rahulRequest("When will I get married?", ""))
	require.NoError(t, err)
	for _, q := range []string{"What about next year?", "Love or arranged?", "Any dosha?"} {
		_, err := f.chat.Chat(ctx, rahulRequest(q, resp.SessionID))
		require.NoError(t, err)
	}

	history := 0
	for _, m := range f.llm.lastRequest(t).Messages {
		if m.Role != models.RoleSystem {
			history++
		}
	}
	// 直近4ターンと今回の質問
	assert.Equal(t, 5, history)
}

func TestChat_ValidationErrors(t *testing.T) {
	f := newChatFixture(t, 20, nil)
	ctx := context.Background()

	req := rahulRequest("When will I get married?", "")
	req.Character = models.CharacterRef{ID: "tarot"}
	_, err := f.chat.Chat(ctx, req)
	assert.True(t, errors.Is(err, errs.ErrUnknownCharacter))

	req = rahulRequest("When will I get married?", "")
	req.PromptVariant = "verbose"
	_, err = f.chat.Chat(ctx, req)
	assert.True(t, errors.Is(err, errs.ErrUnknownPromptVariant))

	req = rahulRequest("", "")
	_, err = f.chat.Chat(ctx, req)
	assert.True(t, errors.Is(err, errs.ErrIncompleteRequest))
	assert.Contains(t, err.Error(), "message")

	req = rahulRequest("When will I get married?", "")
	req.BirthTime = "25:99"
	_, err = f.chat.Chat(ctx, req)
	assert.True(t, errors.Is(err, errs.ErrInvalidBirthTime))

	// 何も作られていない
	_, err = f.store.FindUserByBirthDetails(ctx, "Rahul", "1990-08-15", "14:30", "Mumbai, India")
	assert.True(t, errors.Is(err, errs.ErrUserNotFound))
	assert.Empty(t, f.llm.requests)
}

func TestChat_LocationNotFound(t *testing.T) {
	f := newChatFixture(t, 20, nil)
	f.geocoder.err = errs.ErrLocationNotFound

	req := rahulRequest("When will I get married?", "")
	req.BirthLocation = "Atlantis"
	_, err := f.chat.Chat(context.Background(), req)
	assert.True(t, errors.Is(err, errs.ErrLocationNotFound))
	assert.True(t, errs.IsKind(err, errs.KindValidation))

	_, err = f.store.FindUserByBirthDetails(context.Background(), "Rahul", "1990-08-15", "14:30", "Atlantis")
	assert.True(t, errors.Is(err, errs.ErrUserNotFound))
}

func TestChat_ExplicitCoordinates(t *testing.T) {
	f := newChatFixture(t, 20, nil)

	lat, lon := 17.385, 78.4867
	req := rahulRequest("When will I get married?", "")
	req.BirthLocation = "Hyderabad"
	req.Latitude, req.Longitude = &lat, &lon
	_, err := f.chat.Chat(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0, f.geocoder.calls)

	bad := 120.0
	req = rahulRequest("When will I get married?", "")
	req.Name = "Ravi"
	req.Latitude, req.Longitude = &bad, &lon
	_, err = f.chat.Chat(context.Background(), req)
	assert.True(t, errors.Is(err, errs.ErrInvalidCoordinates))
}

func TestChat_SessionOwnership(t *testing.T) {
	f := newChatFixture(t, 20, nil)
	ctx := context.Background()

	rahul, err := f.chat.Chat(ctx, rahulRequest("When will I get married?", ""))
	require.NoError(t, err)

	other := rahulRequest("Meri job ki problem hai", rahul.SessionID)
	other.Name = "Priya"
	_, err = f.chat.Chat(ctx, other)
	assert.True(t, errors.Is(err, errs.ErrSessionNotFound))
	// 見つからないセッションのためにユーザーは作らない
	_, err = f.store.FindUserByBirthDetails(ctx, "Priya", "1990-08-15", "14:30", "Mumbai, India")
	assert.True(t, errors.Is(err, errs.ErrUserNotFound))
	assert.Equal(t, 1, f.geocoder.calls)

	_, err = f.chat.Chat(ctx, rahulRequest("hello", "no-such-session"))
	assert.True(t, errors.Is(err, errs.ErrSessionNotFound))
	assert.True(t, errs.IsKind(err, errs.KindNotFound))

	_, err = f.chat.History(ctx, rahul.SessionID, rahul.UserID+1)
	assert.True(t, errors.Is(err, errs.ErrSessionNotFound))
}

func TestChat_LLMFailureSavesNothing(t *testing.T) {
	f := newChatFixture(t, 20, nil)
	ctx := context.Background()

	first, err := f.chat.Chat(ctx, rahulRequest("When will I get married?", ""))
	require.NoError(t, err)

	f.llm.err = errs.Wrap(errs.ErrLLMRequestFailed, errors.New("timeout"))
	_, err = f.chat.Chat(ctx, rahulRequest("What about next year?", first.SessionID))
	assert.True(t, errs.IsKind(err, errs.KindUpstream))

	history, err := f.chat.History(ctx, first.SessionID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestChat_FirstCallFailureLeavesNoSession(t *testing.T) {
	f := newChatFixture(t, 20, nil)
	ctx := context.Background()

	f.llm.err = errs.Wrap(errs.ErrLLMRequestFailed, errors.New("timeout"))
	_, err := f.chat.Chat(ctx, rahulRequest("When will I get married?", ""))
	assert.True(t, errs.IsKind(err, errs.KindUpstream))

	user, err := f.store.FindUserByBirthDetails(ctx, "Rahul", "1990-08-15", "14:30", "Mumbai, India")
	require.NoError(t, err)
	sessions, err := f.store.ListSessions(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	f.llm.err = nil
	resp, err := f.chat.Chat(ctx, rahulRequest("When will I get married?", ""))
	require.NoError(t, err)
	sessions, err = f.store.ListSessions(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, resp.SessionID, sessions[0].SessionID)
	assert.Equal(t, 2, sessions[0].MessageCount)
}

func TestChat_LanguageAndRemedy(t *testing.T) {
	f := newChatFixture(t, 20, nil)

	req := rahulRequest("Shani ka upay batao, job mein tension hai", "")
	req.PreferredLanguage = "English"
	resp, err := f.chat.Chat(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "English", resp.Language)
	assert.Equal(t, IntentRemedyRequest, resp.Intent)

	msgs := f.llm.lastRequest(t).Messages
	reminder := msgs[len(msgs)-2].Content
	assert.Contains(t, reminder, "Respond in English.")
	assert.Contains(t, reminder, "Saturn (Shani) remedies")
}

func TestChat_IdentityGuard(t *testing.T) {
	f := newChatFixture(t, 20, NewIdentityGuard(&keywordEmbedder{}, 0.8))
	ctx := context.Background()

	req := rahulRequest("Are you a bot?", "")
	req.Character = models.CharacterRef{ID: "general"}
	resp, err := f.chat.Chat(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSuffix(identityResponses["english"], "."), resp.Response)
	assert.Empty(t, f.llm.requests)

	// LLM を呼んでいないので計測行はない
	stats, err := f.store.CacheStats(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Requests)

	history, err := f.chat.History(ctx, resp.SessionID, resp.UserID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestChat_DeleteUser(t *testing.T) {
	f := newChatFixture(t, 20, nil)
	ctx := context.Background()

	resp, err := f.chat.Chat(ctx, rahulRequest("When will I get married?", ""))
	require.NoError(t, err)

	require.NoError(t, f.chat.DeleteUser(ctx, resp.UserID))

	_, err = f.store.GetUser(ctx, resp.UserID)
	assert.True(t, errors.Is(err, errs.ErrUserNotFound))
	_, err = f.store.GetProfile(ctx, resp.UserID)
	assert.True(t, errors.Is(err, errs.ErrProfileNotFound))
	turns, err := store.NewSQLTurnStore(f.store).SessionTurns(ctx, resp.UserID, resp.SessionID)
	require.NoError(t, err)
	assert.Empty(t, turns)

	assert.True(t, errors.Is(f.chat.DeleteUser(ctx, resp.UserID), errs.ErrUserNotFound))
}

func TestChat_ConcurrentSameSession(t *testing.T) {
	f := newChatFixture(t, 20, nil)
	ctx := context.Background()

	first, err := f.chat.Chat(ctx, rahulRequest("When will I get married?", ""))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errCh := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.chat.Chat(ctx, rahulRequest("What about next year?", first.SessionID))
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	history, err := f.chat.History(ctx, first.SessionID, first.UserID)
	require.NoError(t, err)
	require.Len(t, history, 12)
	for i, turn := range history {
		assert.Equal(t, i, turn.MessageIndex)
	}
}
