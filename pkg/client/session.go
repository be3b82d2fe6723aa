package client

import (
	"github.com/google/uuid"
)

// CartLine is one line of the transient shopping cart; the same shape
// is embedded into an order on submission.
type CartLine = OrderLine

// Session holds the signed-in identity and the transient cart. It
// makes no network calls; the cart is destroyed on successful order
// submission or an explicit Clear.
type Session struct {
	UserID uuid.UUID
	Name   string
	Role   string

	cart  []CartLine
	State *SessionState
}

// NewSession starts a session for the signed-in user.
func NewSession(creds *Credentials) *Session {
	return &Session{
		UserID: creds.User.ID,
		Name:   creds.User.Name,
		Role:   creds.User.Role,
		State:  NewSessionState(),
	}
}

// Cart returns a copy of the current cart lines.
func (s *Session) Cart() []CartLine {
	out := make([]CartLine, len(s.cart))
	copy(out, s.cart)
	return out
}

// AddToCart adds quantity of a catalog item to the cart, validating
// the combined quantity (existing line + delta) against the snapshot.
// On any validation failure the cart is left untouched.
func (s *Session) AddToCart(catalog *Catalog, itemID, quantity int) error {
	if quantity < 1 {
		return &ValidationError{Field: "quantity", Message: "must be at least 1"}
	}

	existing := 0
	idx := -1
	for i, line := range s.cart {
		if line.ItemID == itemID {
			existing = line.Quantity
			idx = i
			break
		}
	}

	if err := catalog.ValidateLine(itemID, existing+quantity); err != nil {
		return err
	}

	item, _ := catalog.Item(itemID)
	if idx >= 0 {
		s.cart[idx].Quantity += quantity
		return nil
	}

	s.cart = append(s.cart, CartLine{
		ItemID:    item.ID,
		Name:      item.Name,
		UnitPrice: item.Price,
		Quantity:  quantity,
	})
	return nil
}

// SetQuantity replaces a cart line's quantity, validating against the
// snapshot; zero removes the line.
func (s *Session) SetQuantity(catalog *Catalog, itemID, quantity int) error {
	if quantity < 0 {
		return &ValidationError{Field: "quantity", Message: "must not be negative"}
	}

	for i, line := range s.cart {
		if line.ItemID != itemID {
			continue
		}
		if quantity == 0 {
			s.cart = append(s.cart[:i], s.cart[i+1:]...)
			return nil
		}
		if err := catalog.ValidateLine(itemID, quantity); err != nil {
			return err
		}
		s.cart[i].Quantity = quantity
		return nil
	}

	return ErrItemUnavailable
}

// Subtotal sums the cart lines, delivery fee excluded.
func (s *Session) Subtotal() float64 {
	var sum float64
	for _, line := range s.cart {
		sum += line.UnitPrice * float64(line.Quantity)
	}
	return sum
}

// ClearCart empties the cart.
func (s *Session) ClearCart() {
	s.cart = nil
}

// Logout clears the cart and resets the process-wide caches and guards.
func (s *Session) Logout() {
	s.cart = nil
	s.State.Reset()
}
