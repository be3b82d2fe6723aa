package client

import (
	"time"
)

// Catalog is a read-mostly snapshot of the menu, queried by the cart
// and by order submission. It is populated from FetchMenu and replaced
// wholesale on refresh, never merged.
type Catalog struct {
	items     map[int]MenuItem
	FetchedAt time.Time
}

// NewCatalog builds a snapshot from a fetched menu.
func NewCatalog(items []MenuItem) *Catalog {
	byID := make(map[int]MenuItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	return &Catalog{items: byID, FetchedAt: time.Now()}
}

// Item looks up a catalog entry by id.
func (c *Catalog) Item(id int) (MenuItem, bool) {
	item, ok := c.items[id]
	return item, ok
}

// ValidateLine is the stock reservation check: it rejects a requested
// total quantity for an item against the snapshot. Pure; no side
// effects. Callers must re-run it against a fresh snapshot immediately
// before submission because the catalog may have moved since the item
// entered the cart.
func (c *Catalog) ValidateLine(itemID, requested int) error {
	item, ok := c.items[itemID]
	if !ok || !item.IsAvailable {
		return ErrItemUnavailable
	}
	if item.Quantity == 0 {
		return ErrOutOfStock
	}
	if requested > item.Quantity {
		return &StockConflictError{
			ItemID:    item.ID,
			ItemName:  item.Name,
			Available: item.Quantity,
		}
	}
	return nil
}
