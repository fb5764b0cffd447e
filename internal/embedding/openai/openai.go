// Package openai embeds text through an OpenAI-compatible embeddings API.
package openai

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"os"
	"sync"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"faqbot/internal/domain"
)

// Embedder calls a remote embeddings endpoint. Vectors are L2-normalized so
// squared Euclidean distance behaves consistently across models.
// Embed may be called from concurrent queries; the lazily learned dimension
// has its own lock.
type Embedder struct {
	client *goopenai.Client
	model  string

	mu        sync.Mutex
	dimension int
}

// Config configures the remote embedder.
type Config struct {
	APIKeyEnv string        // env var holding the API key
	BaseURL   string        // optional override for compatible providers
	Model     string        // embedding model identifier
	Timeout   time.Duration // per-request HTTP timeout
}

// NewEmbedder creates the remote embedder. Construction is the fallible
// model-load step: it fails with domain.ErrModelLoad when no API key is
// available.
func NewEmbedder(cfg Config) (*Embedder, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%w: missing API key in env %s", domain.ErrModelLoad, cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	clientCfg := goopenai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	dim := 1536 // text-embedding-3-small and ada-002
	if cfg.Model == "text-embedding-3-large" {
		dim = 3072
	}
	return &Embedder{
		client:    goopenai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		dimension: dim,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "openai" }

// Prepare is a no-op; the remote model is corpus-independent.
func (e *Embedder) Prepare(corpus []string) error { return nil }

// Dimension returns the dimensionality of the produced vectors.
func (e *Embedder) Dimension() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimension
}

func (e *Embedder) setDimension(dim int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dimension = dim
}

// Embed requests embeddings for all texts in one batch call. The empty
// string is valid input and yields a vector like any other text.
func (e *Embedder) Embed(texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.client.CreateEmbeddings(context.Background(), goopenai.EmbeddingRequest{
		Model: goopenai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}
	vectors := make([][]float64, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("openai embeddings: out-of-range result index %d", d.Index)
		}
		vec := make([]float64, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float64(v)
		}
		normalizeL2(vec)
		vectors[d.Index] = vec
	}
	if len(vectors) > 0 && len(vectors[0]) > 0 {
		// trust the server over the model-name heuristic
		e.setDimension(len(vectors[0]))
	}
	return vectors, nil
}

func normalizeL2(vec []float64) {
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return
	}
	inv := 1.0 / math.Sqrt(norm)
	for i := range vec {
		vec[i] *= inv
	}
}
