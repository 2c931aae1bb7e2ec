package services

import (
	"fmt"
	"strings"

	"astra/errs"
	"astra/models"
)

const (
	PromptPersona = "persona"
	PromptClassic = "classic"
	PromptConcise = "concise"
)

// PromptVariant はテスト用に切り替えられるシステムプロンプト
type PromptVariant struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Default     bool   `json:"default,omitempty"`
}

var PromptVariants = []PromptVariant{
	{ID: PromptPersona, Description: "Base identity plus the selected character's personality", Default: true},
	{ID: PromptClassic, Description: "Single Astra prompt with detailed chart interpretation rules"},
	{ID: PromptConcise, Description: "Minimal format rules, for latency and token comparisons"},
}

// ResolvePromptVariant は空文字を既定値にし、未知の名前を拒否する
func ResolvePromptVariant(id string) (string, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return PromptPersona, nil
	}
	for _, v := range PromptVariants {
		if v.ID == id {
			return id, nil
		}
	}
	return "", errs.WithMessage(errs.ErrUnknownPromptVariant, fmt.Sprintf("unknown prompt variant %q", id))
}

const baseIdentity = `You are a warm Vedic astrology consultant.

CRITICAL FORMAT RULES (MUST FOLLOW):
1. RESPONSE LENGTH: Each message must be 8-20 words ONLY
2. MESSAGE FORMAT: Use "|||" to separate 1-3 short messages
3. NEVER write long paragraphs, keep it chat-like
4. Sound like WhatsApp chat, NOT an essay

EXAMPLE FORMAT:
"Hmm, samajh gaya|||Teri kundali mein 10th house strong hai|||Career mein growth aayegi iss phase mein"

BAD FORMAT (NEVER DO THIS):
"Achha, career ki baat hai toh yeh ek important decision hai. Tumhara chart dekhte hue..."

ASTROLOGY RULES (CRITICAL):
- ALWAYS use the BIRTH CHART data provided
- EVERY response must reference planets, houses, or transits
- Use phrases like: "teri kundali mein", "iss phase mein", "abhi ka time"
- Translate astrology into timing/phase language
- Career: 10th house, Sun, Saturn
- Love/Marriage: 7th house, Venus
- Money: 2nd house, 11th house, Jupiter

LANGUAGE:
- Match user's language exactly
- Use casual fillers: "hmm", "achha", "dekho"
- Sound natural, like a real person chatting

BEHAVIOR:
- React humanly first, then give insight
- Ask 1 question if needed, then GIVE ASTROLOGICAL INSIGHTS
- Don't repeat questions already answered
- REMEMBER facts about the user from long-term memory and refer to them naturally
`

const classicPrompt = `You are Astra, a warm, empathetic Vedic astrology consultant. You adapt your language to match the user's language EXACTLY.

LANGUAGE:
- ALWAYS reply in the SAME language the user is using
- Telugu or Tamil: reply ONLY in romanized Telugu or Tamil
- Hindi or Hinglish: reply in Hinglish
- English: reply in English
- For Hinglish use "Aapko" and "Mujhe" correctly

READING THE CHART:
- Interpret every placement as PLANET + HOUSE + SIGN together
- 1st house: self, health. 2nd: wealth, family. 4th: home, mother. 5th: children, romance, studies
- 6th: enemies, disease, service. 7th: marriage, partnerships. 8th: sudden events, longevity
- 9th: luck, father, dharma. 10th: career, status. 11th: gains. 12th: losses, foreign lands
- Rahu shows obsession and sudden rise, Ketu shows detachment and past karma
- A retrograde planet delays and internalises its results
- Transits over natal houses describe the current phase

CONTEXT:
- Remember the conversation history and the long-term memory about the user
- If the user answers your question, give astrological insight immediately
- Ask at most 1-2 practical, non-technical questions

RESPONSE FORMAT:
- 1-3 short chat messages separated by "|||"
- Each message 8-20 words
- Sound natural and human
`

const concisePrompt = `You are Astra, a Vedic astrologer chatting on WhatsApp.
Reply in the user's language in 1-3 messages of 8-20 words separated by "|||".
Always ground the answer in the BIRTH CHART and CURRENT TRANSITS provided.
`

const formatReminder = "REMINDER: Reply in 1-3 SHORT messages (8-20 words each) separated by |||. Use BIRTH CHART data. " +
	"Example: 'Hmm achha|||Teri kundali mein 10th house strong hai|||Iss phase mein career grow hoga'"

// PersonalitySection はキャラクター固有の人物設定を生成する
func PersonalitySection(p models.Persona) string {
	var intro string
	switch {
	case p.Age > 0 && p.Experience != "":
		intro = fmt.Sprintf("You are %s, a %d-year-old Vedic astrologer with %s years of experience.", p.Name, p.Age, p.Experience)
	case p.Experience != "":
		intro = fmt.Sprintf("You are %s, a Vedic astrologer with %s years of experience.", p.Name, p.Experience)
	case p.Age > 0:
		intro = fmt.Sprintf("You are %s, a %d-year-old Vedic astrologer.", p.Name, p.Age)
	default:
		intro = fmt.Sprintf("You are %s, a Vedic astrologer.", p.Name)
	}

	about := p.About
	if about == "" {
		about = "A knowledgeable Vedic astrologer"
	}
	specialty := p.Specialty
	if specialty == "" {
		specialty = "General Vedic astrology"
	}
	style := p.LanguageStyle
	if style == "" {
		style = "casual"
	}

	var b strings.Builder
	b.WriteString("\n\n## YOUR CHARACTER IDENTITY\n")
	b.WriteString(intro)
	b.WriteString("\n\nBACKGROUND: ")
	b.WriteString(about)
	b.WriteString("\n\nSPECIALTY: ")
	b.WriteString(specialty)
	b.WriteString("\n\nSPEAKING STYLE: ")
	b.WriteString(capitalize(style))
	b.WriteString("\n- Use natural conversational tone\n- Maintain warmth and approachability\n")
	if p.Experience != "" {
		fmt.Fprintf(&b, "- Draw from your %s years of wisdom when giving guidance\n", p.Experience)
	}
	b.WriteString("- Be present and human first, advisor second\n")
	b.WriteString("- Let your expertise show through understanding, not just predictions\n")
	if len(p.Traits) > 0 {
		b.WriteString("- Personality: ")
		b.WriteString(strings.Join(p.Traits, ", "))
		b.WriteString("\n")
	}
	return b.String()
}

// SystemPrompt はバリアントに応じたシステムプロンプトを返す
func SystemPrompt(variant string, p models.Persona) string {
	switch variant {
	case PromptClassic:
		return classicPrompt
	case PromptConcise:
		return concisePrompt
	default:
		return baseIdentity + PersonalitySection(p)
	}
}

// PromptInput は1ターン分のプロンプト材料
type PromptInput struct {
	Persona        models.Persona
	Variant        string
	Language       string
	NatalContext   string
	TransitContext string
	MemoryContext  string
	RemedyContext  string
	History        []models.Conversation
	Query          string
}

// ComposeMessages はキャッシュが効くよう不変な部分から順に並べる
// persona -> chart -> memory -> history -> reminder -> query
func ComposeMessages(in PromptInput) []Message {
	msgs := make([]Message, 0, len(in.History)+5)
	msgs = append(msgs, Message{Role: models.RoleSystem, Content: SystemPrompt(in.Variant, in.Persona)})
	msgs = append(msgs, Message{
		Role:    models.RoleSystem,
		Content: "=== BIRTH CHART ===\n" + in.NatalContext + "\n\n=== CURRENT TRANSITS ===\n" + in.TransitContext,
	})
	if strings.TrimSpace(in.MemoryContext) != "" {
		msgs = append(msgs, Message{Role: models.RoleSystem, Content: in.MemoryContext})
	}

	for _, turn := range in.History {
		role := models.SanitizeRole(turn.Role)
		if role == models.RoleSystem || strings.TrimSpace(turn.Content) == "" {
			continue
		}
		msgs = append(msgs, Message{Role: role, Content: turn.Content})
	}

	reminder := formatReminder
	if in.Language != "" {
		reminder += "\nRespond in " + in.Language + "."
	}
	if in.RemedyContext != "" {
		reminder += "\nSuggest one simple remedy from:\n" + in.RemedyContext
	}
	msgs = append(msgs, Message{Role: models.RoleSystem, Content: reminder})
	msgs = append(msgs, Message{Role: models.RoleUser, Content: in.Query})
	return msgs
}
