package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docchat/internal/app"
	"docchat/internal/transport/http/response"
)

type DocumentHandler struct {
	documents   *app.DocumentService
	provisioner app.EmbeddingProvisioner
	maxBytes    int64
}

func NewDocumentHandler(documents *app.DocumentService, provisioner app.EmbeddingProvisioner, maxBytes int64) *DocumentHandler {
	return &DocumentHandler{documents: documents, provisioner: provisioner, maxBytes: maxBytes}
}

// Upload accepts a multipart form with "file" and an optional display
// "name".
func (h *DocumentHandler) Upload(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	if h.maxBytes > 0 && file.Size > h.maxBytes {
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeBadRequest, "file too large")
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}
	defer f.Close()

	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		name = file.Filename
	}

	result, err := h.documents.Upload(c.Request.Context(), userID, app.UploadInput{
		Name:        name,
		ContentType: file.Header.Get("Content-Type"),
		Size:        file.Size,
		Body:        f,
	})
	if err != nil {
		response.FromError(c, err, "upload failed")
		return
	}
	response.OK(c, result)
}

func (h *DocumentHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	docs, err := h.documents.List(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err, "list documents failed")
		return
	}
	response.OK(c, docs)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	doc, err := h.documents.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		response.FromError(c, err, "get document failed")
		return
	}
	response.OK(c, doc)
}

// GenerateEmbeddings provisions the document's namespace synchronously.
func (h *DocumentHandler) GenerateEmbeddings(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	handle, err := h.provisioner.EnsureEmbeddings(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		response.FromError(c, err, "generate embeddings failed")
		return
	}
	response.OK(c, gin.H{"namespace": handle.Namespace()})
}
