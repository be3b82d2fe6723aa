package models

import (
	"time"

	"github.com/google/uuid"
)

// Payment methods.
const (
	PaymentMethodCOD    = "cod"
	PaymentMethodWallet = "gcash"
)

// Payment statuses.
const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
	PaymentFailed  = "failed"
)

// Fulfillment statuses. Delivered and Cancelled are terminal.
const (
	StatusPending        = "Pending"
	StatusPreparing      = "Preparing"
	StatusOutForDelivery = "Out for Delivery"
	StatusDelivered      = "Delivered"
	StatusCancelled      = "Cancelled"
)

// OrderLine is one cart line embedded in an order. Name and unit price
// are copied from the menu at order time so later menu edits do not
// rewrite order history.
type OrderLine struct {
	ItemID    int     `json:"item_id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}

// Order is a placed order. IDs are serial integers; buyer-facing queue
// numbers are derived from the full order list at display time and
// never stored.
type Order struct {
	ID               int         `gorm:"primaryKey" json:"id"`
	UserID           uuid.UUID   `gorm:"type:uuid;index" json:"user_id"`
	FullName         string      `json:"fullname"`
	Contact          string      `json:"contact"`
	Address          string      `json:"address"`
	Lines            []OrderLine `gorm:"serializer:json" json:"lines"`
	Total            float64     `json:"total"`
	Status           string      `gorm:"default:Pending" json:"status"`
	PaymentMethod    string      `json:"payment_method"`
	PaymentStatus    string      `json:"payment_status"`
	PaymentReference string      `json:"payment_reference"`
	PaymentProof     string      `gorm:"type:text" json:"payment_proof,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// Terminal reports whether the order has left the active queue.
func (o *Order) Terminal() bool {
	return o.Status == StatusDelivered || o.Status == StatusCancelled
}
