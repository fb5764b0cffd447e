// Package kb owns the Q&A corpus and runs the retrieval protocol:
// normalize the query, embed it, search the flat index, turn the nearest
// distance into a similarity score, and accept or fall back.
package kb

import (
	"fmt"
	"sync"

	"faqbot/internal/corpus"
	"faqbot/internal/domain"
	"faqbot/internal/index"
	"faqbot/internal/normalize"
)

// Fallback answers. FallbackUnknown is returned (with confidence exactly 0)
// when no index is available or retrieval faults internally;
// FallbackLowConfidence is returned with the real computed similarity when
// the best match falls under the acceptance bar. Callers can tell the two
// apart by the confidence value.
const (
	FallbackUnknown       = "I don't have information about that topic. Please contact a server admin."
	FallbackLowConfidence = "I don't have a good answer for that question. Please contact a server admin for help."
)

// searchK is how many neighbors are fetched per query. Only the nearest one
// feeds the score today; the rest are a hook for future re-ranking.
const searchK = 5

// KnowledgeBase holds the corpus, its embedding index, and the scoring
// policy. All state sits behind one RWMutex: queries take the read lock,
// loads and rebuilds take the write lock, and a rebuilt index is assigned
// only after it is fully constructed, so a reader sees the old index or the
// new one but never a partial build.
type KnowledgeBase struct {
	mu        sync.RWMutex
	embedder  domain.Embedder
	store     *corpus.Store // nil until LoadCorpus; used by AddPair for persistence
	questions []string
	answers   []string
	index     *index.Flat // nil while no index is built
}

// New creates an empty knowledge base using the given embedder.
func New(embedder domain.Embedder) *KnowledgeBase {
	return &KnowledgeBase{embedder: embedder}
}

// LoadCorpus replaces the corpus wholesale from the Q&A file at path and
// marks the index stale. On failure the previous corpus and index are left
// untouched.
func (kb *KnowledgeBase) LoadCorpus(path string) error {
	store := corpus.NewStore(path)
	pairs, err := store.Load()
	if err != nil {
		return err
	}
	questions := make([]string, len(pairs))
	answers := make([]string, len(pairs))
	for i, p := range pairs {
		questions[i] = p.Question
		answers[i] = p.Answer
	}
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.store = store
	kb.questions = questions
	kb.answers = answers
	kb.index = nil
	return nil
}

// BuildIndex embeds every corpus question and replaces the index atomically.
// It fails with domain.ErrEmptyCorpus when no pairs are loaded; on any
// failure the previous index stays in place.
func (kb *KnowledgeBase) BuildIndex() error {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	return kb.rebuildLocked()
}

func (kb *KnowledgeBase) rebuildLocked() error {
	if len(kb.questions) == 0 {
		return fmt.Errorf("build index: %w", domain.ErrEmptyCorpus)
	}
	if err := kb.embedder.Prepare(kb.questions); err != nil {
		return fmt.Errorf("build index: prepare %s embedder: %w", kb.embedder.Name(), err)
	}
	vectors, err := kb.embedder.Embed(kb.questions)
	if err != nil {
		return fmt.Errorf("build index: embed corpus: %w", err)
	}
	idx, err := index.Build(vectors)
	if err != nil {
		return err
	}
	kb.index = idx
	return nil
}

// AddPair appends a question/answer pair and synchronously rebuilds the
// index, so the knowledge base is consistent again when AddPair returns.
// The pair is written through to the corpus file when one is loaded. On a
// rebuild failure the in-memory corpus is rolled back.
func (kb *KnowledgeBase) AddPair(question, answer string) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	if kb.store != nil {
		if err := kb.store.Append(question, answer); err != nil {
			return err
		}
	}
	kb.questions = append(kb.questions, question)
	kb.answers = append(kb.answers, answer)
	if err := kb.rebuildLocked(); err != nil {
		kb.questions = kb.questions[:len(kb.questions)-1]
		kb.answers = kb.answers[:len(kb.answers)-1]
		// The failed rebuild may have run Prepare over the grown corpus;
		// re-prepare on the rolled-back one so query embeddings stay in the
		// same space as the retained index.
		if len(kb.questions) > 0 {
			if perr := kb.embedder.Prepare(kb.questions); perr != nil {
				kb.index = nil
			}
		}
		return err
	}
	return nil
}

// FindBestAnswer retrieves the answer whose question embeds closest to the
// query. It never fails: without a usable index it returns FallbackUnknown
// with confidence 0, and any internal fault degrades the same way. A best
// match under the adjusted threshold returns FallbackLowConfidence paired
// with the real similarity so callers can see how close the miss was.
func (kb *KnowledgeBase) FindBestAnswer(query string, threshold float64) (string, float64) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	if !kb.readyLocked() {
		return FallbackUnknown, 0
	}
	vectors, err := kb.embedder.Embed([]string{normalize.Normalize(query)})
	if err != nil || len(vectors) != 1 {
		return FallbackUnknown, 0
	}
	matches, err := kb.index.Search(vectors[0], searchK)
	if err != nil || len(matches) == 0 {
		return FallbackUnknown, 0
	}
	best := matches[0]
	// Monotonic map from squared L2 distance to (0,1]. Not a calibrated
	// probability; kept as-is for threshold compatibility.
	similarity := 1 / (1 + best.Distance)
	if similarity >= adjustedThreshold(threshold) && best.Row < len(kb.answers) {
		return kb.answers[best.Row], similarity
	}
	return FallbackLowConfidence, similarity
}

// adjustedThreshold lowers the caller-supplied threshold by a fixed margin,
// floored at 0.5. The policy errs toward answering over refusing.
func adjustedThreshold(threshold float64) float64 {
	adjusted := threshold - 0.1
	if adjusted < 0.5 {
		adjusted = 0.5
	}
	return adjusted
}

// QuestionCount returns the number of loaded Q&A pairs.
func (kb *KnowledgeBase) QuestionCount() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return len(kb.questions)
}

// Ready reports whether the index is built and in sync with the corpus.
func (kb *KnowledgeBase) Ready() bool {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.readyLocked()
}

// readyLocked enforces the stale-index invariant: an index whose row count
// no longer matches the corpus must not serve queries.
func (kb *KnowledgeBase) readyLocked() bool {
	return kb.index != nil && kb.index.Rows() == len(kb.questions)
}

// SaveIndex persists the built index to path as an opaque artifact.
func (kb *KnowledgeBase) SaveIndex(path string) error {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	if kb.index == nil {
		return fmt.Errorf("save index: no index built")
	}
	return kb.index.Save(path)
}

// LoadIndex adopts a previously saved index artifact instead of re-embedding
// the corpus. It reports false without error when the artifact does not
// exist or does not fit the loaded corpus (wrong row count or, once the
// embedder is prepared, wrong dimensionality).
func (kb *KnowledgeBase) LoadIndex(path string) (bool, error) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	idx, ok, err := index.Load(path)
	if err != nil || !ok {
		return false, err
	}
	if idx.Rows() != len(kb.questions) {
		return false, nil
	}
	// Query embedding still needs a prepared model.
	if err := kb.embedder.Prepare(kb.questions); err != nil {
		return false, fmt.Errorf("load index: prepare %s embedder: %w", kb.embedder.Name(), err)
	}
	if d := kb.embedder.Dimension(); d != 0 && d != idx.Dimension() {
		return false, nil
	}
	kb.index = idx
	return true, nil
}
