package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryIndex keeps vectors in process and scores them by brute-force
// cosine similarity. It backs local development and tests.
type MemoryIndex struct {
	mu         sync.RWMutex
	dimension  int
	namespaces map[string]map[string]Record
}

// NewMemoryIndex builds an empty index. A zero dimension accepts any
// vector length as long as it is consistent.
func NewMemoryIndex(dimension int) *MemoryIndex {
	return &MemoryIndex{
		dimension:  dimension,
		namespaces: make(map[string]map[string]Record),
	}
}

func (m *MemoryIndex) DescribeNamespaceStats(_ context.Context, namespace string) (NamespaceStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return NamespaceStats{VectorCount: uint64(len(m.namespaces[namespace]))}, nil
}

func (m *MemoryIndex) UpsertNamespace(_ context.Context, namespace string, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range records {
		if m.dimension == 0 {
			m.dimension = len(r.Vector)
		}
		if len(r.Vector) != m.dimension {
			return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(r.Vector), m.dimension)
		}
	}

	ns, ok := m.namespaces[namespace]
	if !ok {
		ns = make(map[string]Record, len(records))
		m.namespaces[namespace] = ns
	}
	for _, r := range records {
		ns[r.ID] = r
	}
	return nil
}

func (m *MemoryIndex) QueryNamespace(_ context.Context, namespace string, vector []float32, topK int) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if topK <= 0 {
		topK = 4
	}
	ns := m.namespaces[namespace]
	matches := make([]Match, 0, len(ns))
	for _, r := range ns {
		matches = append(matches, Match{
			ID:         r.ID,
			Score:      cosine(r.Vector, vector),
			Text:       r.Text,
			Page:       r.Page,
			ChunkIndex: r.ChunkIndex,
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ChunkIndex < matches[j].ChunkIndex
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (m *MemoryIndex) Close() error {
	return nil
}

func cosine(a, b []float32) float32 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
