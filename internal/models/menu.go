package models

import "time"

// MenuItem is a purchasable catalog entry. Quantity is the remaining
// stock; items are marked unavailable when it reaches zero.
type MenuItem struct {
	ID          int       `gorm:"primaryKey" json:"id"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	ImageURL    string    `json:"image_url"`
	IsAvailable bool      `gorm:"default:true" json:"is_available"`
	Quantity    int       `json:"quantity"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
