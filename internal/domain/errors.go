package domain

import "errors"

var (
	// ErrModelLoad means the embedding model could not be obtained.
	// Fatal at startup; the core cannot recover from it.
	ErrModelLoad = errors.New("embedding model unavailable")

	// ErrEmptyCorpus means an index build was attempted with zero entries.
	ErrEmptyCorpus = errors.New("corpus is empty")

	// ErrDimensionMismatch means indexed and query vectors disagree on
	// dimensionality. This is a programming error, not user-recoverable.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
