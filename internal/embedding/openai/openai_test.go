package openai

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"faqbot/internal/domain"
)

// fakeEmbeddings serves an OpenAI-compatible /embeddings endpoint returning
// 3-dimensional vectors, one per input, echoed in request order.
func fakeEmbeddings(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		type item struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		resp := struct {
			Object string `json:"object"`
			Data   []item `json:"data"`
			Model  string `json:"model"`
		}{Object: "list", Model: req.Model}
		for i := range req.Input {
			resp.Data = append(resp.Data, item{
				Object:    "embedding",
				Embedding: []float32{1, 2, 2},
				Index:     i,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func newTestEmbedder(t *testing.T, baseURL string) *Embedder {
	t.Helper()
	t.Setenv("TEST_OPENAI_KEY", "sk-test")
	emb, err := NewEmbedder(Config{APIKeyEnv: "TEST_OPENAI_KEY", BaseURL: baseURL + "/v1"})
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}
	return emb
}

func TestNewEmbedderMissingKey(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "")
	_, err := NewEmbedder(Config{APIKeyEnv: "TEST_OPENAI_KEY"})
	if !errors.Is(err, domain.ErrModelLoad) {
		t.Fatalf("NewEmbedder without key: error = %v, want ErrModelLoad", err)
	}
}

func TestEmbedBatch(t *testing.T) {
	ts := fakeEmbeddings(t)
	defer ts.Close()
	emb := newTestEmbedder(t, ts.URL)

	vectors, err := emb.Embed([]string{"server rules", ""})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("Embed returned %d vectors, want 2", len(vectors))
	}
	for i, vec := range vectors {
		if len(vec) != 3 {
			t.Fatalf("vector %d has dimension %d, want 3", i, len(vec))
		}
		norm := 0.0
		for _, v := range vec {
			norm += v * v
		}
		if math.Abs(norm-1) > 1e-9 {
			t.Errorf("vector %d is not L2-normalized: squared norm %v", i, norm)
		}
	}
	if emb.Dimension() != 3 {
		t.Errorf("Dimension = %d, want 3 learned from the response", emb.Dimension())
	}
}

// The knowledge base serves queries from concurrent readers, so Embed and
// Dimension must be safe to call from multiple goroutines at once.
func TestEmbedConcurrentQueries(t *testing.T) {
	ts := fakeEmbeddings(t)
	defer ts.Close()
	emb := newTestEmbedder(t, ts.URL)

	var wg sync.WaitGroup
	errCh := make(chan error, 8)
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			vectors, err := emb.Embed([]string{"server timezone"})
			if err != nil {
				errCh <- err
				return
			}
			if len(vectors) != 1 || len(vectors[0]) != 3 {
				errCh <- errors.New("unexpected vector shape")
			}
		}()
		go func() {
			defer wg.Done()
			if d := emb.Dimension(); d != 3 && d != 1536 {
				errCh <- errors.New("unexpected dimension")
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Error(err)
	}
	if emb.Dimension() != 3 {
		t.Errorf("Dimension = %d, want 3 after concurrent embeds", emb.Dimension())
	}
}
