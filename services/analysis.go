package services

import (
	"strings"
	"unicode"
)

// QueryAnalysis は1件のユーザー発話の簡易解析結果
type QueryAnalysis struct {
	Language string
	Intent   string
	Topics   []string
	Problem  bool
}

const (
	IntentGreeting       = "greeting"
	IntentGratitude      = "gratitude"
	IntentAcknowledgment = "acknowledgment"
	IntentRemedyRequest  = "remedy_request"
	IntentUpdate         = "update"
	IntentAboutMe        = "about_me"
	IntentConsultation   = "consultation"
)

// 文字種ごとの Unicode ブロック
var scriptLanguages = []struct {
	lo, hi rune
	lang   string
}{
	{0x0C00, 0x0C7F, "telugu"},
	{0x0B80, 0x0BFF, "tamil"},
	{0x0C80, 0x0CFF, "kannada"},
	{0x0D00, 0x0D7F, "malayalam"},
	{0x0980, 0x09FF, "bengali"},
	{0x0A80, 0x0AFF, "gujarati"},
	{0x0A00, 0x0A7F, "punjabi"},
	{0x0900, 0x097F, "hindi"},
}

var (
	teluguWords  = wordSet("naaku nenu meeru emi ela ekkada eppudu enduku gurinchi chala bagundi ledu undi unnadi chesanu chestanu udyogam intlo bayata roju matladali vastundi vastanu cheppandi kavali")
	tamilWords   = wordSet("naan enna eppadi enga eppo yean ungal enakku unakku romba nalla irukku pannanum vela veedu pesanum pathi seiyareengal theriyum purinjuthu sollunga venum vendam mudiyum")
	hindiWords   = wordSet("hai ho hain ka ki ke ko se mein par nahi nhi kyun kya kaise kab kahan kitna mujhe tumhe aapko mera tera hamara apna accha theek thik acha bahut zyada dhanyawad shukriya namaste pranam mahine saal kundali shaadi naukri")
	englishWords = wordSet("the and you are is am my your what when where why how will i me get about")
)

var (
	greetingWords    = wordSet("hi hello hey namaste namaskar hii helo")
	greetingPhrases  = []string{"kese ho", "kaise ho", "kese hain", "kaise hain", "how are you", "how r u", "good morning", "good evening"}
	gratitudeWords   = wordSet("dhanyawad dhanyavaad thanks thanku shukriya thx")
	gratitudePhrases = []string{"thank you"}
	ackWords         = wordSet("haan ha yes ok okay theek accha hmm han acha thik no nhi nahi")
	remedyWords      = wordSet("upay remedy remedies solution ilaj totka mantra gemstone")
	remedyPhrases    = []string{"kya karu", "kya kru", "kaise thik", "kaise theek", "what should i do"}
	updatePhrases    = []string{"ho gaya", "ho gayi", "mil gaya", "mil gayi", "aa gaya", "accha hua", "got the job", "got selected"}
	aboutMePhrases   = []string{"aap kaha", "where are you", "aap kaun", "who are you", "tum kaun"}
	problemWords     = wordSet("problem dikkat mushkil tension pareshan chinta worry stress fail kharab bura ladaai fight breakup loss haar samasya issue difficulty trouble concern anxious")
)

// 話題ごとのキーワード (判定順)
var topicKeywords = []struct {
	topic string
	words map[string]bool
}{
	{"career", wordSet("job career naukri kaam business work office promotion salary interview company boss")},
	{"marriage", wordSet("shaadi marriage married marry vivah wedding spouse wife husband")},
	{"love", wordSet("love pyaar gf bf girlfriend boyfriend crush relationship partner breakup")},
	{"finance", wordSet("paisa money dhan wealth finance loan karza udhar investment savings income financial pesa")},
	{"health", wordSet("health tabiyat bimar sick ill dard takleef bimari operation disease")},
	{"family", wordSet("family parivar mummy papa mother father maa bhai behen sister brother children bacche ghar")},
	{"education", wordSet("study padhai exam college university result marks admission")},
	{"legal", wordSet("legal court case judge lawyer law suit")},
	{"spirituality", wordSet("spiritual moksha meditation dharma karma puja bhakti")},
}

// 話題ごとに見るべき惑星
var topicPlanets = map[string][]string{
	"career":       {"sun", "saturn"},
	"marriage":     {"venus", "jupiter"},
	"love":         {"venus", "moon"},
	"finance":      {"jupiter", "venus"},
	"health":       {"moon", "mars"},
	"family":       {"moon", "jupiter"},
	"education":    {"mercury", "jupiter"},
	"legal":        {"saturn", "jupiter"},
	"spirituality": {"ketu", "jupiter"},
}

func wordSet(s string) map[string]bool {
	m := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		m[w] = true
	}
	return m
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func countHits(tokens []string, set map[string]bool) int {
	n := 0
	for _, t := range tokens {
		if set[t] {
			n++
		}
	}
	return n
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// DetectLanguage は文字種、次にローマ字表記の頻出語で言語を推定する
func DetectLanguage(text string) string {
	for _, r := range text {
		for _, s := range scriptLanguages {
			if r >= s.lo && r <= s.hi {
				return s.lang
			}
		}
	}

	tokens := tokenize(text)
	telugu := countHits(tokens, teluguWords)
	tamil := countHits(tokens, tamilWords)
	hindi := countHits(tokens, hindiWords)
	english := countHits(tokens, englishWords)

	switch {
	case telugu >= 2 && telugu > tamil:
		return "telugu"
	case tamil >= 2 && tamil > telugu:
		return "tamil"
	case hindi >= 2 && hindi >= english:
		return "hinglish"
	case english > 0 && english > hindi:
		return "english"
	case hindi > 0:
		return "hinglish"
	}
	return "english"
}

// AnalyzeQuery は意図と話題を推定する
func AnalyzeQuery(text string) QueryAnalysis {
	tokens := tokenize(text)
	lower := " " + strings.Join(tokens, " ") + " "

	a := QueryAnalysis{
		Language: DetectLanguage(text),
		Topics:   DetectTopics(text),
		Problem:  countHits(tokens, problemWords) > 0,
	}

	switch {
	case len(tokens) <= 4 && (countHits(tokens, greetingWords) > 0 || containsAny(lower, greetingPhrases)):
		a.Intent = IntentGreeting
	case countHits(tokens, gratitudeWords) > 0 || containsAny(lower, gratitudePhrases):
		a.Intent = IntentGratitude
	case countHits(tokens, remedyWords) > 0 || containsAny(lower, remedyPhrases):
		a.Intent = IntentRemedyRequest
	case containsAny(lower, updatePhrases):
		a.Intent = IntentUpdate
	case len(tokens) > 0 && len(tokens) <= 2 && countHits(tokens, ackWords) == len(tokens):
		a.Intent = IntentAcknowledgment
	case containsAny(lower, aboutMePhrases):
		a.Intent = IntentAboutMe
	default:
		a.Intent = IntentConsultation
	}
	return a
}

// DetectTopics は発話に含まれる話題を判定順に返す
func DetectTopics(text string) []string {
	tokens := tokenize(text)
	topics := make([]string, 0)
	for _, tk := range topicKeywords {
		if countHits(tokens, tk.words) > 0 {
			topics = append(topics, tk.topic)
		}
	}
	return topics
}

// PlanetsForTopics は話題に関係する惑星を重複なしで返す
func PlanetsForTopics(topics []string) []string {
	seen := make(map[string]bool)
	var planets []string
	for _, t := range topics {
		for _, p := range topicPlanets[t] {
			if !seen[p] {
				seen[p] = true
				planets = append(planets, p)
			}
		}
	}
	return planets
}
