package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"docchat/internal/ai"
	"docchat/internal/logging"
	"docchat/internal/metrics"
	"docchat/internal/model"
	"docchat/internal/vectorindex"
)

const provisionLockPrefix = "docchat:lock:provision:"

// Provisioner makes sure a document has a populated vector namespace.
// Namespace existence is the only signal: a document is ingested and
// embedded at most once, and an existing namespace is never refreshed.
type Provisioner struct {
	docs     DocumentStore
	loader   ChunkLoader
	embedder ai.Embedder
	index    vectorindex.Index
	locker   Locker
	lockTTL  time.Duration
	metrics  *metrics.Metrics

	group singleflight.Group
}

func NewProvisioner(
	docs DocumentStore,
	loader ChunkLoader,
	embedder ai.Embedder,
	index vectorindex.Index,
	locker Locker,
	lockTTL time.Duration,
	m *metrics.Metrics,
) *Provisioner {
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}
	return &Provisioner{
		docs:     docs,
		loader:   loader,
		embedder: embedder,
		index:    index,
		locker:   locker,
		lockTTL:  lockTTL,
		metrics:  m,
	}
}

func (p *Provisioner) EnsureEmbeddings(ctx context.Context, userID uint, documentID string) (*vectorindex.Handle, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return nil, fmt.Errorf("%w: document id is required", ErrInvalidInput)
	}

	doc, err := p.docs.GetByUserAndID(ctx, userID, documentID)
	if err != nil {
		return nil, fmt.Errorf("%w: load document: %w", ErrUpstream, err)
	}
	if doc == nil || doc.DownloadURL == "" {
		return nil, fmt.Errorf("%w: document %s", ErrNotFound, documentID)
	}

	log := logging.FromContext(ctx).With("document_id", documentID)

	exists, err := p.namespaceExists(ctx, documentID)
	if err != nil {
		p.metrics.ProvisionTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if exists {
		log.Info("namespace already exists, reusing embeddings")
		p.metrics.ProvisionTotal.WithLabelValues("reused").Inc()
		return p.handle(documentID), nil
	}

	// Concurrent callers in this process share one population run; the
	// Redis lock covers the other processes.
	result, err, _ := p.group.Do(documentID, func() (any, error) {
		return p.populate(ctx, doc)
	})
	if err != nil {
		p.metrics.ProvisionTotal.WithLabelValues("error").Inc()
		log.Error("provision embeddings failed", "error", err)
		return nil, err
	}
	p.metrics.ProvisionTotal.WithLabelValues(result.(string)).Inc()
	return p.handle(documentID), nil
}

func (p *Provisioner) populate(ctx context.Context, doc *model.Document) (string, error) {
	log := logging.FromContext(ctx).With("document_id", doc.ID)

	if p.locker != nil {
		release, err := p.locker.Acquire(ctx, provisionLockPrefix+doc.ID, p.lockTTL)
		if err != nil {
			return "", fmt.Errorf("%w: acquire provisioning lock: %w", ErrUpstream, err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				log.Warn("release provisioning lock failed", "error", err)
			}
		}()

		// Another process may have finished while we waited.
		exists, err := p.namespaceExists(ctx, doc.ID)
		if err != nil {
			return "", err
		}
		if exists {
			log.Info("namespace populated by another worker, reusing embeddings")
			return "reused", nil
		}
	}

	chunks, err := p.loader.Load(ctx, doc)
	if err != nil {
		return "", err
	}
	p.metrics.IngestChunks.Observe(float64(len(chunks)))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	log.Info("generating embeddings", "chunks", len(chunks))
	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return "", fmt.Errorf("%w: embed chunks: %w", ErrUpstream, err)
	}
	if len(vectors) != len(chunks) {
		return "", fmt.Errorf("%w: got %d embeddings for %d chunks", ErrUpstream, len(vectors), len(chunks))
	}

	records := make([]vectorindex.Record, len(chunks))
	for i, c := range chunks {
		records[i] = vectorindex.Record{
			ID:         vectorindex.PointID(doc.ID, c.Index),
			Vector:     vectors[i],
			Text:       c.Text,
			Page:       c.Page,
			ChunkIndex: c.Index,
		}
	}
	if err := p.index.UpsertNamespace(ctx, doc.ID, records); err != nil {
		return "", fmt.Errorf("%w: upsert namespace: %w", ErrUpstream, err)
	}
	log.Info("stored embeddings in namespace", "vectors", len(records))
	return "created", nil
}

func (p *Provisioner) namespaceExists(ctx context.Context, namespace string) (bool, error) {
	stats, err := p.index.DescribeNamespaceStats(ctx, namespace)
	if err != nil {
		return false, fmt.Errorf("%w: describe namespace: %w", ErrUpstream, err)
	}
	return stats.VectorCount > 0, nil
}

func (p *Provisioner) handle(namespace string) *vectorindex.Handle {
	return vectorindex.NewHandle(p.index, p.embedder, namespace)
}
