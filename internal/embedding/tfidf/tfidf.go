// Package tfidf provides a local, deterministic TF-IDF embedder. The corpus
// questions double as the training set: Prepare builds the vocabulary and IDF
// weights, after which any text embeds into the corpus term space. Works
// offline and needs no API key, at the cost of purely lexical semantics.
package tfidf

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"faqbot/internal/domain"
)

// Embedder is a TF-IDF vectorizer over a fixed vocabulary.
type Embedder struct {
	vocabulary   map[string]int
	idf          []float64
	dimension    int
	prepared     bool
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewEmbedder creates an unprepared TF-IDF embedder. Prepare must run over
// the corpus before Embed.
func NewEmbedder() *Embedder {
	return &Embedder{
		vocabulary:   make(map[string]int),
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		stopwords:    defaultStopwords(),
	}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "tfidf" }

// Prepare builds the vocabulary and smoothed IDF weights from the corpus.
// This is the model-load step for the local embedder; it fails on an empty
// or token-free corpus.
func (e *Embedder) Prepare(corpus []string) error {
	if len(corpus) == 0 {
		return fmt.Errorf("tfidf prepare: %w", domain.ErrEmptyCorpus)
	}
	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range e.tokenize(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	if len(terms) == 0 {
		return fmt.Errorf("tfidf prepare: %w: no tokens found in corpus", domain.ErrModelLoad)
	}
	// Stable term ordering so repeated Prepare over the same corpus yields
	// identical vectors.
	sort.Strings(terms)
	e.vocabulary = make(map[string]int, len(terms))
	e.idf = make([]float64, len(terms))
	n := float64(len(corpus))
	for i, term := range terms {
		e.vocabulary[term] = i
		e.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}
	e.dimension = len(terms)
	e.prepared = true
	return nil
}

// Dimension returns the vocabulary size, zero before Prepare.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed computes one L2-normalized TF-IDF vector per input text, in input
// order. Texts with no in-vocabulary tokens (including the empty string)
// embed to the zero vector rather than erroring.
func (e *Embedder) Embed(texts []string) ([][]float64, error) {
	if !e.prepared {
		return nil, fmt.Errorf("tfidf embed: %w: embedder not prepared", domain.ErrModelLoad)
	}
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vectors[i] = e.embedOne(text)
	}
	return vectors, nil
}

func (e *Embedder) embedOne(text string) []float64 {
	vec := make([]float64, e.dimension)
	tf := make(map[int]int)
	total := 0
	for _, tok := range e.tokenize(text) {
		if idx, ok := e.vocabulary[tok]; ok {
			tf[idx]++
			total++
		}
	}
	if total == 0 {
		return vec
	}
	for idx, count := range tf {
		vec[idx] = float64(count) / float64(total) * e.idf[idx]
	}
	normalizeL2(vec)
	return vec
}

func (e *Embedder) tokenize(text string) []string {
	raw := e.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func normalizeL2(vec []float64) {
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
