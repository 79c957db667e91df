package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"docchat/internal/logging"
	"docchat/internal/model"
	"docchat/internal/pkg/pdfextract"
	"docchat/internal/pkg/textsplit"
	"docchat/internal/storage"
)

const maxDocumentBytes = 64 << 20

// Ingestor fetches a stored document, extracts its text and splits it.
type Ingestor struct {
	fetcher  storage.Fetcher
	splitter *textsplit.Splitter
}

func NewIngestor(fetcher storage.Fetcher, splitter *textsplit.Splitter) *Ingestor {
	return &Ingestor{fetcher: fetcher, splitter: splitter}
}

func (i *Ingestor) Load(ctx context.Context, doc *model.Document) ([]textsplit.Chunk, error) {
	log := logging.FromContext(ctx).With("document_id", doc.ID)

	log.Debug("fetching document", "download_url", doc.DownloadURL)
	rc, err := i.fetcher.Fetch(ctx, doc.DownloadURL)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, fmt.Errorf("%w: stored file of document %s: %w", ErrNotFound, doc.ID, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: fetch document: %w", ErrUpstream, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(io.LimitReader(rc, maxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read document: %w", ErrUpstream, err)
	}
	if len(raw) > maxDocumentBytes {
		return nil, fmt.Errorf("%w: document exceeds %d bytes", ErrInvalidInput, maxDocumentBytes)
	}

	var pages []textsplit.Page
	switch documentKind(doc, raw) {
	case kindPDF:
		pages, err = pdfextract.ExtractPages(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: parse pdf: %w", ErrInvalidInput, err)
		}
	case kindText:
		pages = []textsplit.Page{{Number: 1, Text: string(raw)}}
	default:
		return nil, fmt.Errorf("%w: unsupported content type %q", ErrInvalidInput, doc.ContentType)
	}

	chunks := i.splitter.SplitPages(pages)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: document has no extractable text", ErrInvalidInput)
	}
	log.Info("document split", "pages", len(pages), "chunks", len(chunks))
	return chunks, nil
}

type docKind int

const (
	kindUnknown docKind = iota
	kindPDF
	kindText
)

func documentKind(doc *model.Document, raw []byte) docKind {
	ct := strings.ToLower(doc.ContentType)
	ext := strings.ToLower(path.Ext(doc.Name))
	switch {
	case bytes.HasPrefix(raw, []byte("%PDF-")), ct == "application/pdf", ext == ".pdf":
		return kindPDF
	case strings.HasPrefix(ct, "text/plain"), strings.HasPrefix(ct, "text/markdown"), ext == ".txt", ext == ".md":
		return kindText
	default:
		return kindUnknown
	}
}
