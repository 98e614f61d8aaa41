// Package vectorindex provides an exact, in-memory nearest-neighbour index
// over the embeddings of one document's chunks.
//
// Rows are identified by their insertion position, which is the only link
// between a vector and the chunk it was computed from. Search is brute force
// squared Euclidean distance; documents hold at most a few hundred chunks so
// exactness is cheap.
package vectorindex

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrInvalidDimension is returned when a vector does not match the index dimensionality.
	ErrInvalidDimension = errors.New("invalid vector dimension")
	// ErrEmptyIndex is returned when an index would hold, or holds, no vectors.
	ErrEmptyIndex = errors.New("empty index")
)

// Index is an immutable flat L2 index. It is safe for concurrent Search.
type Index struct {
	dim  int
	rows [][]float32
}

// Hit is a single search result.
type Hit struct {
	Row      int
	Distance float64 // squared L2 distance to the query
}

// Build creates an index over vectors. All vectors must share the length of
// the first one. The vectors are copied.
func Build(vectors [][]float32) (*Index, error) {
	if len(vectors) == 0 {
		return nil, ErrEmptyIndex
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero-length vector", ErrInvalidDimension)
	}

	rows := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrInvalidDimension, i, len(v), dim)
		}
		row := make([]float32, dim)
		copy(row, v)
		rows[i] = row
	}

	return &Index{dim: dim, rows: rows}, nil
}

// Len returns the number of rows.
func (x *Index) Len() int {
	return len(x.rows)
}

// Dim returns the vector dimensionality.
func (x *Index) Dim() int {
	return x.dim
}

// Search returns the row numbers of the k vectors closest to query, nearest
// first. Equal distances keep insertion order. If k exceeds the number of rows
// every row is returned.
func (x *Index) Search(query []float32, k int) ([]int, error) {
	hits, err := x.SearchWithDistances(query, k)
	if err != nil {
		return nil, err
	}

	rows := make([]int, len(hits))
	for i, h := range hits {
		rows[i] = h.Row
	}
	return rows, nil
}

// SearchWithDistances is Search but also reports each row's distance.
func (x *Index) SearchWithDistances(query []float32, k int) ([]Hit, error) {
	if x == nil || len(x.rows) == 0 {
		return nil, ErrEmptyIndex
	}
	if len(query) != x.dim {
		return nil, fmt.Errorf("%w: query has %d values, want %d", ErrInvalidDimension, len(query), x.dim)
	}
	if k <= 0 {
		return []Hit{}, nil
	}

	hits := make([]Hit, len(x.rows))
	for i, row := range x.rows {
		hits[i] = Hit{Row: i, Distance: squaredL2(row, query)}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
