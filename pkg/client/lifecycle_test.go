package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ordersFixture(base time.Time) []Order {
	return []Order{
		{ID: 1, Status: StatusDelivered, CreatedAt: base},
		{ID: 2, Status: StatusPending, CreatedAt: base.Add(1 * time.Minute)},
		{ID: 3, Status: StatusPreparing, CreatedAt: base.Add(2 * time.Minute)},
		{ID: 4, Status: StatusCancelled, CreatedAt: base.Add(3 * time.Minute)},
		{ID: 5, Status: StatusOutForDelivery, CreatedAt: base.Add(4 * time.Minute)},
		{ID: 6, Status: StatusPending, CreatedAt: base.Add(5 * time.Minute)},
	}
}

func TestSequentialLabels(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	orders := ordersFixture(base)

	labels := SequentialLabels(orders)

	// Only active orders are numbered, 1..N oldest first.
	assert.Equal(t, map[int]int{2: 1, 3: 2, 5: 3, 6: 4}, labels)

	// Idempotent on the same input.
	assert.Equal(t, labels, SequentialLabels(orders))

	// Input order must not matter.
	reversed := make([]Order, 0, len(orders))
	for i := len(orders) - 1; i >= 0; i-- {
		reversed = append(reversed, orders[i])
	}
	assert.Equal(t, labels, SequentialLabels(reversed))
}

func TestSequentialLabelsTieBrokenByID(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	orders := []Order{
		{ID: 9, Status: StatusPending, CreatedAt: at},
		{ID: 4, Status: StatusPending, CreatedAt: at},
	}

	assert.Equal(t, map[int]int{4: 1, 9: 2}, SequentialLabels(orders))
}

func TestCancellationShiftsOnlyLaterLabels(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	orders := ordersFixture(base)
	before := SequentialLabels(orders)

	// Cancel order 3: every active order created after it moves up one,
	// and orders created before it keep their labels.
	orders[2].Status = StatusCancelled
	after := SequentialLabels(orders)

	assert.Equal(t, before[2], after[2])
	assert.Equal(t, before[5]-1, after[5])
	assert.Equal(t, before[6]-1, after[6])
	_, numbered := after[3]
	assert.False(t, numbered)
}

func TestDisplayLabel(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	orders := ordersFixture(base)
	labels := SequentialLabels(orders)

	assert.Equal(t, "#1", DisplayLabel(orders[1], labels))
	// Terminal orders fall back to their raw persisted id.
	assert.Equal(t, "#1", DisplayLabel(orders[0], labels))
	assert.Equal(t, "#4", DisplayLabel(orders[3], labels))
}

func TestSubmitLocalValidationNeverReachesNetwork(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeData(w, http.StatusOK, nil)
	}))
	defer srv.Close()

	session := testSession(t, RoleBuyer)
	lc := NewLifecycle(New(srv.URL), session, "09947784922")

	cases := []struct {
		name  string
		draft OrderDraft
		field string
	}{
		{"short name", OrderDraft{FullName: "Juan Cruz", Contact: "09123456789", Lines: testDraft(PaymentMethodCOD).Lines, PaymentMethod: PaymentMethodCOD}, "fullname"},
		{"bad contact", OrderDraft{FullName: "Juan Dela Cruz", Contact: "0912345", Lines: testDraft(PaymentMethodCOD).Lines, PaymentMethod: PaymentMethodCOD}, "contact"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := lc.Submit(context.Background(), tc.draft)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tc.field, vErr.Field)
		})
	}

	t.Run("empty cart", func(t *testing.T) {
		draft := testDraft(PaymentMethodCOD)
		draft.Lines = nil
		_, err := lc.Submit(context.Background(), draft)
		assert.ErrorIs(t, err, ErrEmptyCart)
	})

	assert.Zero(t, calls.Load(), "local validation failures must not issue requests")
}

func TestSubmitCashOnDelivery(t *testing.T) {
	var created atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/menu", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, testMenu())
	})
	mux.HandleFunc("POST /api/orders", func(w http.ResponseWriter, r *http.Request) {
		created.Add(1)

		var payload struct {
			FullName      string  `json:"fullname"`
			Contact       string  `json:"contact"`
			PaymentMethod string  `json:"payment_method"`
			PaymentProof  string  `json:"payment_proof"`
			Lines         []CartLine `json:"lines"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, PaymentMethodCOD, payload.PaymentMethod)
		assert.Empty(t, payload.PaymentProof)

		writeData(w, http.StatusCreated, Order{
			ID:            1,
			FullName:      payload.FullName,
			Contact:       payload.Contact,
			Status:        StatusPending,
			PaymentMethod: PaymentMethodCOD,
			PaymentStatus: PaymentPaid,
			Total:         150,
			CreatedAt:     time.Now(),
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	session := testSession(t, RoleBuyer)
	catalog := NewCatalog(testMenu())
	require.NoError(t, session.AddToCart(catalog, 1, 1))
	require.NoError(t, session.AddToCart(catalog, 2, 2))
	require.Equal(t, 140.0, session.Subtotal())

	lc := NewLifecycle(New(srv.URL), session, "09947784922")
	draft := testDraft(PaymentMethodCOD)
	assert.Equal(t, 150.0, lc.Total(draft.Lines))

	result, err := lc.Submit(context.Background(), draft)
	require.NoError(t, err)
	require.NotNil(t, result.Order)
	assert.Nil(t, result.Payment)
	assert.Equal(t, PaymentPaid, result.Order.PaymentStatus)
	assert.Equal(t, StatusPending, result.Order.Status)
	assert.Equal(t, 150.0, result.Order.Total)
	assert.Equal(t, int32(1), created.Load())

	// Cart is destroyed on successful submission.
	assert.Empty(t, session.Cart())
}

func TestSubmitWalletTransferDefersCreation(t *testing.T) {
	var created atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/menu", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, testMenu())
	})
	mux.HandleFunc("POST /api/orders", func(w http.ResponseWriter, r *http.Request) {
		created.Add(1)
		writeData(w, http.StatusCreated, Order{ID: 1})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	session := testSession(t, RoleBuyer)
	catalog := NewCatalog(testMenu())
	require.NoError(t, session.AddToCart(catalog, 1, 1))

	lc := NewLifecycle(New(srv.URL), session, "09947784922")
	result, err := lc.Submit(context.Background(), testDraft(PaymentMethodWallet))
	require.NoError(t, err)
	require.NotNil(t, result.Payment)
	assert.Nil(t, result.Order)

	// No order exists yet and the cart survives until one does.
	assert.Zero(t, created.Load())
	assert.NotEmpty(t, session.Cart())
}

func TestSubmitStockConflictAgainstFreshSnapshot(t *testing.T) {
	depleted := testMenu()
	depleted[0].Quantity = 0
	depleted[0].IsAvailable = false

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/menu", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, depleted)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	session := testSession(t, RoleBuyer)
	lc := NewLifecycle(New(srv.URL), session, "09947784922")

	_, err := lc.Submit(context.Background(), testDraft(PaymentMethodCOD))
	assert.ErrorIs(t, err, ErrItemUnavailable)
}

func TestCancelNotCancelable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api/orders/3", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte("only pending orders can be cancelled, current status: Preparing"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	session := testSession(t, RoleBuyer)
	lc := NewLifecycle(New(srv.URL), session, "09947784922")

	err := lc.Cancel(context.Background(), 3)
	assert.ErrorIs(t, err, ErrNotCancelable)
}

func TestEditNotEditable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/menu", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, testMenu())
	})
	mux.HandleFunc("PUT /api/orders/3", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte("only pending orders can be edited, current status: Delivered"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	session := testSession(t, RoleBuyer)
	lc := NewLifecycle(New(srv.URL), session, "09947784922")

	_, err := lc.Edit(context.Background(), 3, testDraft(PaymentMethodCOD))
	assert.ErrorIs(t, err, ErrNotEditable)
}
