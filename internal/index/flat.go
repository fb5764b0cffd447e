// Package index implements an exhaustive-scan nearest-neighbor index over a
// fixed set of vectors. Corpora are small and rebuilt wholesale, so a flat
// scan beats any approximate structure here; callers hold only the narrow
// Build/Search surface and could swap in a tree index without changing.
package index

import (
	"encoding/gob"
	"fmt"
	"os"
	"sort"

	"faqbot/internal/domain"
)

// Flat is an immutable flat L2 index. Build a new one instead of mutating;
// the knowledge base swaps whole indexes under its write lock.
type Flat struct {
	dimension int
	vectors   [][]float64
}

// Build creates an index over the given vectors. It fails with
// domain.ErrEmptyCorpus when vectors is empty and with
// domain.ErrDimensionMismatch when rows disagree on dimensionality.
func Build(vectors [][]float64) (*Flat, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("index build: %w", domain.ErrEmptyCorpus)
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("index build: %w: zero-length vector at row 0", domain.ErrDimensionMismatch)
	}
	owned := make([][]float64, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("index build: %w: row %d has dimension %d, want %d",
				domain.ErrDimensionMismatch, i, len(v), dim)
		}
		owned[i] = append([]float64(nil), v...)
	}
	return &Flat{dimension: dim, vectors: owned}, nil
}

// Rows returns the number of indexed vectors.
func (f *Flat) Rows() int { return len(f.vectors) }

// Dimension returns the dimensionality of the indexed vectors.
func (f *Flat) Dimension() int { return f.dimension }

// Search returns the k nearest indexed vectors to query by squared Euclidean
// distance, ascending. Result length is min(k, Rows). A query of the wrong
// dimensionality fails fast with domain.ErrDimensionMismatch.
func (f *Flat) Search(query []float64, k int) ([]domain.Match, error) {
	if len(query) != f.dimension {
		return nil, fmt.Errorf("index search: %w: query dimension %d, index dimension %d",
			domain.ErrDimensionMismatch, len(query), f.dimension)
	}
	if k <= 0 {
		k = 5
	}
	matches := make([]domain.Match, len(f.vectors))
	for i, v := range f.vectors {
		matches[i] = domain.Match{Row: i, Distance: sqDistance(v, query)}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].Row < matches[j].Row
	})
	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k], nil
}

func sqDistance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// snapshot is the gob wire form of a Flat index.
type snapshot struct {
	Dimension int
	Vectors   [][]float64
}

// Save writes the index to path as an opaque gob blob. The write goes
// through a temp file and an atomic rename so a crash never leaves a
// truncated artifact behind.
func (f *Flat) Save(path string) error {
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("index save: %w", err)
	}
	if err := gob.NewEncoder(file).Encode(snapshot{Dimension: f.dimension, Vectors: f.vectors}); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("index save: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("index save: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("index save: %w", err)
	}
	return nil
}

// Load reads an index previously written by Save. A missing file is not an
// error: Load reports (nil, false, nil) so callers can fall through to a
// fresh build.
func Load(path string) (*Flat, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("index load: %w", err)
	}
	defer file.Close()
	var snap snapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return nil, false, fmt.Errorf("index load: %w", err)
	}
	if len(snap.Vectors) == 0 || snap.Dimension <= 0 {
		return nil, false, fmt.Errorf("index load: empty or corrupt artifact %s", path)
	}
	return &Flat{dimension: snap.Dimension, vectors: snap.Vectors}, true, nil
}
