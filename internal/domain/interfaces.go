package domain

// QAPair is a single curated question/answer entry in the corpus.
// The question keeps its original, unnormalized wording; the answer is
// returned to users verbatim.
type QAPair struct {
	Question string
	Answer   string
}

// Match is one nearest-neighbor hit: the row of the indexed vector and its
// squared Euclidean distance from the query.
type Match struct {
	Row      int
	Distance float64
}

// Embedder converts text into fixed-dimension numeric vectors.
// Implementations may require a preparation phase over the corpus before
// Embed can be called; remote implementations treat Prepare as a no-op.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(texts []string) ([][]float64, error)
}
