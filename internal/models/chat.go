package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is one entry in a per-order conversation. Rows are
// append-only; only IsRead/ReadAt are ever updated, and only by the
// reader the message is addressed to.
type ChatMessage struct {
	ID         int        `gorm:"primaryKey" json:"id"`
	OrderID    int        `gorm:"index:idx_chat_order_created" json:"order_id"`
	UserID     uuid.UUID  `gorm:"type:uuid" json:"user_id"`
	SenderRole string     `json:"sender_role"`
	SenderName string     `json:"sender_name"`
	Body       string     `gorm:"type:text" json:"body"`
	Image      string     `gorm:"type:text" json:"image,omitempty"`
	IsRead     bool       `json:"is_read"`
	ReadAt     *time.Time `json:"read_at"`
	CreatedAt  time.Time  `gorm:"index:idx_chat_order_created" json:"created_at"`
}
