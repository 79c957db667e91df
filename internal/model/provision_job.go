package model

// ProvisionJob asks a worker to make sure a document's embeddings exist.
type ProvisionJob struct {
	UserID     uint   `json:"user_id"`
	DocumentID string `json:"document_id"`
}
