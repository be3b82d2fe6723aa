package client

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
)

// writeData wraps a payload in the backend's response envelope.
func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func testSession(t *testing.T, role string) *Session {
	t.Helper()
	return &Session{
		UserID: uuid.New(),
		Name:   "Juan Dela Cruz",
		Role:   role,
		State:  NewSessionState(),
	}
}

func testMenu() []MenuItem {
	return []MenuItem{
		{ID: 1, Name: "Adobo", Price: 100, Category: "mains", IsAvailable: true, Quantity: 10},
		{ID: 2, Name: "Lumpia", Price: 20, Category: "sides", IsAvailable: true, Quantity: 10},
		{ID: 3, Name: "Halo-halo", Price: 60, Category: "desserts", IsAvailable: true, Quantity: 3},
	}
}

func testDraft(method string) OrderDraft {
	return OrderDraft{
		FullName:      "Juan Dela Cruz",
		Contact:       "09123456789",
		Address:       "123 Mabini St",
		PaymentMethod: method,
		Lines: []CartLine{
			{ItemID: 1, Name: "Adobo", UnitPrice: 100, Quantity: 1},
			{ItemID: 2, Name: "Lumpia", UnitPrice: 20, Quantity: 2},
		},
	}
}
