// Package vectorindex is the namespace-partitioned nearest-neighbour store
// that holds document chunk embeddings. A namespace is a document id.
package vectorindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// pointNamespace seeds deterministic point ids so that re-ingesting a
// document overwrites its points instead of duplicating them.
var pointNamespace = uuid.MustParse("6f1c2f7e-3f0a-4b8e-9a52-0c1d7e4b9a10")

type Record struct {
	ID         string
	Vector     []float32
	Text       string
	Page       int
	ChunkIndex int
}

type Match struct {
	ID         string  `json:"id"`
	Score      float32 `json:"score"`
	Text       string  `json:"text"`
	Page       int     `json:"page"`
	ChunkIndex int     `json:"chunk_index"`
}

type NamespaceStats struct {
	VectorCount uint64
}

// Index is implemented by the Qdrant store and the in-memory store.
type Index interface {
	DescribeNamespaceStats(ctx context.Context, namespace string) (NamespaceStats, error)
	// UpsertNamespace creates the namespace on first write and appends or
	// overwrites records by ID afterwards.
	UpsertNamespace(ctx context.Context, namespace string, records []Record) error
	QueryNamespace(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error)
	Close() error
}

// PointID derives the stable record id of a chunk.
func PointID(namespace string, chunkIndex int) string {
	return uuid.NewSHA1(pointNamespace, []byte(fmt.Sprintf("%s#%d", namespace, chunkIndex))).String()
}

// QueryEmbedder turns a search query into a vector.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Handle is a retriever bound to one namespace.
type Handle struct {
	namespace string
	index     Index
	embedder  QueryEmbedder
}

func NewHandle(index Index, embedder QueryEmbedder, namespace string) *Handle {
	return &Handle{namespace: namespace, index: index, embedder: embedder}
}

func (h *Handle) Namespace() string {
	return h.namespace
}

func (h *Handle) Search(ctx context.Context, query string, topK int) ([]Match, error) {
	vec, err := h.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed search query failed: %w", err)
	}
	matches, err := h.index.QueryNamespace(ctx, h.namespace, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("query namespace %s failed: %w", h.namespace, err)
	}
	return matches, nil
}
