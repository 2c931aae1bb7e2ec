package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// keywordEmbedder は "you" を含む文を同じ方向に写す
type keywordEmbedder struct {
	calls int
	err   error
}

func (k *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	k.calls++
	if k.err != nil {
		return nil, k.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		if strings.Contains(strings.ToLower(t), "you") {
			out[i] = []float64{1, 0.1}
		} else {
			out[i] = []float64{0, 1}
		}
	}
	return out, nil
}

func TestIdentityGuard_Check(t *testing.T) {
	emb := &keywordEmbedder{}
	g := NewIdentityGuard(emb, 0.8)

	resp, ok := g.Check(context.Background(), "Who are you really?", "english", "Astra")
	require.True(t, ok)
	assert.Equal(t, identityResponses["english"], resp)

	_, ok = g.Check(context.Background(), "When will I get married?", "english", "Astra")
	assert.False(t, ok)

	// 代表例の埋め込みは1回だけ
	assert.Equal(t, 3, emb.calls)
}

func TestIdentityGuard_EmbeddingFailure(t *testing.T) {
	g := NewIdentityGuard(&keywordEmbedder{err: errors.New("down")}, 0.8)
	_, ok := g.Check(context.Background(), "who are you", "english", "")
	assert.False(t, ok)

	var nilGuard *IdentityGuard
	_, ok = nilGuard.Check(context.Background(), "who are you", "english", "")
	assert.False(t, ok)
}

func TestIdentityResponse(t *testing.T) {
	assert.Equal(t, identityResponses["hinglish"], IdentityResponse("klingon", ""))
	assert.Equal(t, identityResponses["tamil"], IdentityResponse("Tamil", "Astra"))
	assert.True(t, strings.HasPrefix(IdentityResponse("english", "Pandit Ravi Sharma"), "I am Pandit Ravi Sharma"))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float64{1, 2}, []float64{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float64{1}, []float64{1, 2}))
	assert.Equal(t, 0.0, CosineSimilarity([]float64{0, 0}, []float64{1, 2}))
}

func TestOpenAIEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "text-embedding-3-small", body.Model)

		data := make([]map[string]any, len(body.Input))
		for i := range body.Input {
			// 逆順で返しても index で並べ直される
			idx := len(body.Input) - 1 - i
			data[i] = map[string]any{"object": "embedding", "index": idx, "embedding": []float64{float64(idx), 1}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": body.Model})
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder("test-key", srv.URL, "")
	vecs, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float64{0, 1}, vecs[0])
	assert.Equal(t, []float64{1, 1}, vecs[1])
}
