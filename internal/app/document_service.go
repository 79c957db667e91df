package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"docchat/internal/logging"
	"docchat/internal/model"
	"docchat/internal/storage"
)

type UploadStatus string

const (
	StatusUploading  UploadStatus = "uploading"
	StatusUploaded   UploadStatus = "uploaded"
	StatusSaving     UploadStatus = "saving"
	StatusGenerating UploadStatus = "generating"
)

type UploadInput struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
	// OnStatus, when set, observes every stage as it starts.
	OnStatus func(UploadStatus)
}

type UploadResult struct {
	Document        *model.Document `json:"document"`
	Stages          []UploadStatus  `json:"stages"`
	EmbeddingQueued bool            `json:"embedding_queued"`
}

type DocumentService struct {
	docs     DocumentStore
	objects  ObjectStore
	jobs     ProvisionJobPublisher
	maxBytes int64
	now      func() time.Time
}

func NewDocumentService(docs DocumentStore, objects ObjectStore, jobs ProvisionJobPublisher, maxBytes int64) *DocumentService {
	return &DocumentService{
		docs:     docs,
		objects:  objects,
		jobs:     jobs,
		maxBytes: maxBytes,
		now:      time.Now,
	}
}

// Upload stores the file, records it and queues embedding generation.
// A failed enqueue is logged only: the document stays usable and the first
// question provisions it synchronously.
func (s *DocumentService) Upload(ctx context.Context, userID uint, in UploadInput) (*UploadResult, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	name := strings.TrimSpace(path.Base(in.Name))
	if name == "" || name == "." || name == "/" || in.Body == nil {
		return nil, fmt.Errorf("%w: file name and body are required", ErrInvalidInput)
	}
	if s.maxBytes > 0 && in.Size > s.maxBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidInput, s.maxBytes)
	}

	log := logging.FromContext(ctx)
	result := &UploadResult{}
	stage := func(st UploadStatus) {
		result.Stages = append(result.Stages, st)
		if in.OnStatus != nil {
			in.OnStatus(st)
		}
	}

	docID := uuid.NewString()
	objectPath := storage.ObjectPath(userID, docID)
	log = log.With("document_id", docID)

	stage(StatusUploading)
	body := storage.NewProgressReader(in.Body, in.Size, func(read, total int64, percent int) {
		log.Debug("upload progress", "bytes", read, "total", total, "percent", percent)
	})
	var reader io.Reader = body
	if s.maxBytes > 0 {
		reader = storage.NewLimitedReader(body, s.maxBytes)
	}
	downloadURL, written, err := s.objects.Save(ctx, objectPath, reader)
	if errors.Is(err, storage.ErrTooLarge) {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidInput, s.maxBytes)
	}
	if err != nil {
		log.Error("store upload failed", "error", err)
		return nil, fmt.Errorf("%w: store upload: %w", ErrUpstream, err)
	}
	stage(StatusUploaded)

	stage(StatusSaving)
	doc := &model.Document{
		ID:          docID,
		UserID:      userID,
		Name:        name,
		StoragePath: objectPath,
		DownloadURL: downloadURL,
		ContentType: in.ContentType,
		Size:        written,
		CreatedAt:   s.now(),
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("%w: save document: %w", ErrUpstream, err)
	}
	result.Document = doc

	stage(StatusGenerating)
	if s.jobs != nil {
		if err := s.jobs.PublishProvision(ctx, model.ProvisionJob{UserID: userID, DocumentID: docID}); err != nil {
			log.Warn("enqueue embedding job failed", "error", err)
		} else {
			result.EmbeddingQueued = true
		}
	}
	log.Info("document uploaded", "bytes", written, "queued", result.EmbeddingQueued)
	return result, nil
}

func (s *DocumentService) List(ctx context.Context, userID uint) ([]model.Document, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	docs, err := s.docs.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list documents: %w", ErrUpstream, err)
	}
	return docs, nil
}

func (s *DocumentService) Get(ctx context.Context, userID uint, documentID string) (*model.Document, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	doc, err := s.docs.GetByUserAndID(ctx, userID, documentID)
	if err != nil {
		return nil, fmt.Errorf("%w: load document: %w", ErrUpstream, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document %s", ErrNotFound, documentID)
	}
	return doc, nil
}
