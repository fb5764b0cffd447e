// Package corpus parses and stores the curated Q&A training data.
//
// The on-disk format is a sequence of blocks:
//
//	Q: What is the server timezone?
//	A: The server runs on UTC.
//
// The parser is deliberately lenient: segments missing an "A:" are skipped
// rather than failing the whole load. That is accepted behavior, not a bug —
// the files are hand-edited and one bad block should not take the bot down.
package corpus

import (
	"fmt"
	"os"
	"strings"

	"faqbot/internal/domain"
)

// Parse extracts Q&A pairs from raw text. It never fails; malformed segments
// are dropped, and a pair is kept only when both sides are non-empty after
// trimming.
func Parse(raw string) []domain.QAPair {
	sections := strings.Split(raw, "Q:")
	if len(sections) < 2 {
		return nil
	}
	var pairs []domain.QAPair
	for _, section := range sections[1:] { // sections[0] is preamble, discard
		question, answer, found := strings.Cut(section, "A:")
		if !found {
			continue
		}
		question = strings.TrimSpace(question)
		answer = strings.TrimSpace(answer)
		if question == "" || answer == "" {
			continue
		}
		pairs = append(pairs, domain.QAPair{Question: question, Answer: answer})
	}
	return pairs
}

// Store reads and appends Q&A pairs in a single text file.
type Store struct {
	path string
}

// NewStore creates a store over the given file path. The file need not exist
// until Load or Append is called.
func NewStore(path string) *Store { return &Store{path: path} }

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Load reads and parses the whole file. I/O errors are surfaced; parse
// problems are not errors (see Parse).
func (s *Store) Load() ([]domain.QAPair, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("corpus load %s: %w", s.path, err)
	}
	return Parse(string(data)), nil
}

// Append writes one Q&A block to the end of the file, creating it if needed.
func (s *Store) Append(question, answer string) error {
	file, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("corpus append %s: %w", s.path, err)
	}
	_, werr := fmt.Fprintf(file, "\nQ: %s\nA: %s\n", question, answer)
	cerr := file.Close()
	if werr != nil {
		return fmt.Errorf("corpus append %s: %w", s.path, werr)
	}
	if cerr != nil {
		return fmt.Errorf("corpus append %s: %w", s.path, cerr)
	}
	return nil
}
