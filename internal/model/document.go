package model

import "time"

// Document is an uploaded file. Its ID doubles as the vector namespace.
type Document struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	Name        string    `gorm:"size:256;not null" json:"name"`
	StoragePath string    `gorm:"size:512;not null" json:"storage_path"`
	DownloadURL string    `gorm:"size:1024" json:"download_url"`
	ContentType string    `gorm:"size:128" json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}
