package models

import (
	"time"

	"github.com/google/uuid"
)

// Rating is a post-delivery service rating, one per order per buyer.
type Rating struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	OrderID   int       `gorm:"uniqueIndex:idx_rating_order_user" json:"order_id"`
	UserID    uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_rating_order_user" json:"user_id"`
	Stars     int       `json:"stars"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}
