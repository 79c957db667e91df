package model

import "time"

const (
	RoleHuman = "human"
	RoleAI    = "ai"
)

// ChatTurn is one persisted utterance in a document conversation.
// Turns are append-only; ordering is CreatedAt, then ID.
type ChatTurn struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	DocumentID string    `gorm:"size:36;not null;index:idx_turn_owner_doc,priority:2" json:"document_id"`
	UserID     uint      `gorm:"not null;index:idx_turn_owner_doc,priority:1" json:"user_id"`
	Role       string    `gorm:"size:16;not null" json:"role"`
	Message    string    `gorm:"type:text;not null" json:"message"`
	CreatedAt  time.Time `gorm:"index:idx_turn_owner_doc,priority:3" json:"created_at"`
}
