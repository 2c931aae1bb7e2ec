package services

import (
	"context"
	"math"
	"strings"
	"sync"

	"astra/errs"
	"astra/logger"

	openai "github.com/sashabaranov/go-openai"
)

// Embedder はテキストをベクトルに変換する
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// OpenAIEmbedder は OpenAI embeddings API を使う
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func NewOpenAIEmbedder(apiKey, baseURL, model string) *OpenAIEmbedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	m := openai.EmbeddingModel(model)
	if model == "" {
		m = openai.SmallEmbedding3
	}
	return &OpenAIEmbedder{client: openai.NewClientWithConfig(cfg), model: m}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrEmbeddingFailed, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, errs.ErrEmbeddingFailed
	}

	out := make([][]float64, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, errs.ErrEmbeddingFailed
		}
		vec := make([]float64, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float64(v)
		}
		out[d.Index] = vec
	}
	return out, nil
}

// 「あなたは誰?」系の質問の代表例
var identityQueries = []string{
	"what are you",
	"who are you",
	"are you an AI",
	"are you a bot",
	"are you chatgpt",
	"are you GPT",
	"what model are you",
	"which model are you using",
	"are you trained by OpenAI",
	"are you an LLM",
	"are you a large language model",
	"are you artificial intelligence",
	"are you a chatbot",
	"are you real",
	"are you human",
	"what's your model name",
	"tell me about your training",
	"who created you",
	"who made you",
	"are you GPT-4",
	"what AI are you",
}

var identityResponses = map[string]string{
	"english":   "I am Astra, your Vedic astrology guide. I help you understand cosmic influences on your life.",
	"hinglish":  "Main Astra hoon, aapka Vedic jyotish guide. Main aapko cosmos ki shaktiyon ke baare mein batata hoon.",
	"telugu":    "Nenu Astra, meeku Vedic jyotisham dwara margadarshakam.",
	"tamil":     "Naan Astra, ungal Vedic jyothidam vettiyaalar.",
	"hindi":     "मैं अस्त्रा हूँ, आपका वैदिक ज्योतिष मार्गदर्शक।",
	"kannada":   "Naanu Astra, nimage Vedic jyotisha margadarshaka.",
	"malayalam": "Njaan Astra, ningalude Vedic jyothisham margadarshakan.",
}

// IdentityGuard は身元を問う質問に LLM を呼ばず定型文で答える
type IdentityGuard struct {
	embedder  Embedder
	threshold float64

	mu        sync.Mutex
	refs      [][]float64
	refsReady bool
}

func NewIdentityGuard(embedder Embedder, threshold float64) *IdentityGuard {
	return &IdentityGuard{embedder: embedder, threshold: threshold}
}

// Check は質問が身元確認なら定型の応答を返す
// 埋め込みに失敗したときはこのリクエストではチェックしない
func (g *IdentityGuard) Check(ctx context.Context, query, language, personaName string) (string, bool) {
	if g == nil || g.embedder == nil || strings.TrimSpace(query) == "" {
		return "", false
	}

	refs, err := g.references(ctx)
	if err != nil {
		logger.Warn("identity guard disabled for request", "error", err)
		return "", false
	}

	vecs, err := g.embedder.Embed(ctx, []string{query})
	if err != nil || len(vecs) == 0 {
		logger.Warn("identity guard disabled for request", "error", err)
		return "", false
	}

	best := 0.0
	for _, ref := range refs {
		if s := CosineSimilarity(vecs[0], ref); s > best {
			best = s
		}
	}
	if best < g.threshold {
		return "", false
	}

	logger.Debug("identity query detected", "similarity", best)
	return IdentityResponse(language, personaName), true
}

// references は代表例の埋め込みを初回だけ計算する (失敗時は次回に再試行)
func (g *IdentityGuard) references(ctx context.Context) ([][]float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refsReady {
		return g.refs, nil
	}

	refs, err := g.embedder.Embed(ctx, identityQueries)
	if err != nil {
		return nil, err
	}
	g.refs, g.refsReady = refs, true
	return refs, nil
}

// IdentityResponse は言語ごとの定型文 (未対応の言語は Hinglish)
func IdentityResponse(language, personaName string) string {
	resp, ok := identityResponses[strings.ToLower(language)]
	if !ok {
		resp = identityResponses["hinglish"]
	}
	if personaName != "" && personaName != "Astra" {
		resp = strings.Replace(resp, "Astra", personaName, 1)
	}
	return resp
}

func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
