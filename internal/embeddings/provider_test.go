package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectDimension(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"BAAI/bge-base-en-v1.5", 768},
		{"BAAI/bge-small-en-v1.5", 384},
		{"sentence-transformers/all-mpnet-base-v2", 768},
		{"text-embedding-3-small", 1536},
		{"custom-large-model", 1024},
		{"my-mini-encoder", 384},
		{"unknown", 768},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectDimension(tt.model))
		})
	}
}

func TestNewProvider_Unknown(t *testing.T) {
	_, err := NewProvider(ProviderConfig{Provider: "word2vec"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewProvider_TEI(t *testing.T) {
	p, err := NewProvider(ProviderConfig{Provider: "tei", BaseURL: "http://localhost:8080"})
	require.NoError(t, err)
	assert.Equal(t, 768, p.Dimension())
	assert.NoError(t, p.Close())

	_, err = NewProvider(ProviderConfig{Provider: "tei"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func newTEIServer(t *testing.T, dim int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		var req struct {
			Inputs json.RawMessage `json:"inputs"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		n := 1
		var many []string
		if json.Unmarshal(req.Inputs, &many) == nil {
			n = len(many)
		}
		out := make([][]float32, n)
		for i := range out {
			out[i] = make([]float32, dim)
			out[i][0] = float32(i + 1)
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTEIService(t *testing.T) {
	srv := newTEIServer(t, 4)
	svc, err := NewTEIService(TEIConfig{BaseURL: srv.URL + "/", Model: "BAAI/bge-base-en-v1.5"})
	require.NoError(t, err)
	ctx := context.Background()

	docs, err := svc.EmbedDocuments(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, float32(3), docs[2][0])

	q, err := svc.EmbedQuery(ctx, "question")
	require.NoError(t, err)
	assert.Len(t, q, 4)

	_, err = svc.EmbedDocuments(ctx, nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
	_, err = svc.EmbedQuery(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestTEIService_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	svc, err := NewTEIService(TEIConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = svc.EmbedQuery(context.Background(), "q")
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Contains(t, err.Error(), "503")
}

type fakeEmbedder struct {
	err error
}

func (f fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 0}
	}
	return out, nil
}

func (f fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func TestOpenAIProvider(t *testing.T) {
	p := newOpenAIProvider(fakeEmbedder{}, "text-embedding-3-small", 2)
	ctx := context.Background()

	docs, err := p.EmbedDocuments(ctx, []string{"abc", "de"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{3, 0}, {2, 0}}, docs)

	q, err := p.EmbedQuery(ctx, "abcd")
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 1}, q)
	assert.Equal(t, 2, p.Dimension())

	failing := newOpenAIProvider(fakeEmbedder{err: errors.New("401")}, "m", 2)
	_, err = failing.EmbedQuery(ctx, "x")
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}

func TestNewOpenAIProvider_RequiresModel(t *testing.T) {
	_, err := NewOpenAIProvider(OpenAIConfig{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	p, err := NewOpenAIProvider(OpenAIConfig{Model: "text-embedding-3-small", BaseURL: "http://localhost:1/v1"})
	require.NoError(t, err)
	assert.Equal(t, 1536, p.Dimension())
}
