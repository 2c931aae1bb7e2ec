package services

import (
	"errors"
	"strings"
	"testing"

	"astra/errs"
	"astra/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePromptVariant(t *testing.T) {
	v, err := ResolvePromptVariant("")
	require.NoError(t, err)
	assert.Equal(t, PromptPersona, v)

	v, err = ResolvePromptVariant(" Classic ")
	require.NoError(t, err)
	assert.Equal(t, PromptClassic, v)

	_, err = ResolvePromptVariant("verbose")
	assert.True(t, errors.Is(err, errs.ErrUnknownPromptVariant))
}

func TestPersonalitySection(t *testing.T) {
	s := PersonalitySection(models.Persona{
		Name:          "Pandit Ravi Sharma",
		Age:           52,
		Experience:    "25",
		Specialty:     "Marriage & Relationships",
		LanguageStyle: "traditional",
		About:         "An experienced traditional astrologer",
	})
	assert.Contains(t, s, "## YOUR CHARACTER IDENTITY")
	assert.Contains(t, s, "You are Pandit Ravi Sharma, a 52-year-old Vedic astrologer with 25 years of experience.")
	assert.Contains(t, s, "SPEAKING STYLE: Traditional")
	assert.Contains(t, s, "Draw from your 25 years of wisdom")

	s = PersonalitySection(models.Persona{Name: "Tara"})
	assert.Contains(t, s, "You are Tara, a Vedic astrologer.")
	assert.NotContains(t, s, "years of wisdom")
}

func TestComposeMessages_Order(t *testing.T) {
	msgs := ComposeMessages(PromptInput{
		Persona:        models.Persona{Name: "Astra"},
		Variant:        PromptPersona,
		Language:       "English",
		NatalContext:   "Ascendant (Lagna): Leo",
		TransitContext: "Saturn transiting Aquarius, natal house 7",
		MemoryContext:  "=== WHAT YOU KNOW ABOUT THE USER ===\n- [career] engineer",
		History: []models.Conversation{
			{Role: "user", Content: "When will I get married?"},
			{Role: "astrologer", Content: "Hmm|||7th house dekhte hain"},
			{Role: "system", Content: "ignored"},
		},
		Query: "What about next year?",
	})

	require.Len(t, msgs, 7)
	assert.Equal(t, models.RoleSystem, msgs[0].Role)
	assert.True(t, strings.HasPrefix(msgs[0].Content, baseIdentity))
	assert.Equal(t, "=== BIRTH CHART ===\nAscendant (Lagna): Leo\n\n=== CURRENT TRANSITS ===\nSaturn transiting Aquarius, natal house 7", msgs[1].Content)
	assert.Contains(t, msgs[2].Content, "engineer")
	assert.Equal(t, Message{Role: models.RoleUser, Content: "When will I get married?"}, msgs[3])
	assert.Equal(t, models.RoleAssistant, msgs[4].Role)
	assert.True(t, strings.HasPrefix(msgs[5].Content, "REMINDER:"))
	assert.Contains(t, msgs[5].Content, "Respond in English.")
	assert.Equal(t, Message{Role: models.RoleUser, Content: "What about next year?"}, msgs[6])
}

func TestComposeMessages_NoMemory(t *testing.T) {
	msgs := ComposeMessages(PromptInput{
		Variant:       PromptConcise,
		RemedyContext: "Saturn (Shani) remedies: day Saturday",
		Query:         "Shani ka upay batao",
	})
	require.Len(t, msgs, 4)
	assert.Equal(t, concisePrompt, msgs[0].Content)
	assert.Contains(t, msgs[2].Content, "Saturn (Shani) remedies")
}
