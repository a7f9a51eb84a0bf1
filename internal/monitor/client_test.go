package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/mathrag/internal/feedback"
)

func newMathragServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/feedback/analytics", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_ = json.NewEncoder(w).Encode(feedback.Analytics{
			TotalFeedback:      4,
			AverageRating:      3.75,
			RatingDistribution: map[int]int{5: 2, 3: 1, 2: 1},
		})
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(Health{
			Status:            "degraded",
			Components:        map[string]bool{"llm": true, "vector_store": false},
			KnowledgeBaseSize: 1200,
			TotalFeedback:     4,
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Analytics(t *testing.T) {
	srv := newMathragServer(t)
	client := NewClient(srv.URL + "/")

	a, err := client.Analytics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, a.TotalFeedback)
	assert.InDelta(t, 3.75, a.AverageRating, 1e-9)
	assert.Equal(t, 2, a.RatingDistribution[5])
	assert.Equal(t, 0, a.RatingDistribution[1])
}

func TestClient_Health(t *testing.T) {
	srv := newMathragServer(t)
	client := NewClient(srv.URL)

	h, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.False(t, h.Healthy())
	assert.Equal(t, 1200, h.KnowledgeBaseSize)
	assert.False(t, h.Components["vector_store"])
}

func TestClient_Errors(t *testing.T) {
	t.Run("non-200", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL).Analytics(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected status code 503")
	})

	t.Run("bad json", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("{not json"))
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL).Health(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode response")
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := NewClient(url).Analytics(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "request failed")
	})

	t.Run("cancelled context", func(t *testing.T) {
		srv := newMathragServer(t)
		ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		time.Sleep(time.Millisecond)

		_, err := NewClient(srv.URL).Analytics(ctx)
		require.Error(t, err)
	})
}
