package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"unicode"
)

// DefaultDeliveryFee is the flat fee added to every order total.
const DefaultDeliveryFee = 10.0

// submitGuardKey serializes order submission: at most one create
// request outstanding per session.
const submitGuardKey = "order-submit"

// OrderDraft is everything the buyer supplies to place or edit an order.
type OrderDraft struct {
	FullName      string
	Contact       string
	Address       string
	Lines         []CartLine
	PaymentMethod string
}

// SubmitResult is the tagged outcome of Submit: exactly one field is
// set. Order holds an immediately created (cash-on-delivery) order;
// Payment holds the deferred wallet-transfer flow that will create the
// order once proof is attached.
type SubmitResult struct {
	Order   *Order
	Payment *PaymentFlow
}

// Lifecycle is the client-side authority for one order's journey from
// draft to terminal state: submission, edit-while-pending,
// cancellation, and the derived queue numbering.
type Lifecycle struct {
	api         *Client
	session     *Session
	DeliveryFee float64
	Recipient   string
}

// NewLifecycle wires the engine to a backend client and session.
func NewLifecycle(api *Client, session *Session, walletRecipient string) *Lifecycle {
	return &Lifecycle{
		api:         api,
		session:     session,
		DeliveryFee: DefaultDeliveryFee,
		Recipient:   walletRecipient,
	}
}

// Submit validates the draft, re-checks every line against a fresh
// catalog snapshot, and either creates the order immediately
// (cash-on-delivery, marked paid) or hands off to the payment
// confirmation flow (wallet transfer; no order exists yet). The cart
// is cleared only after an order actually exists.
func (l *Lifecycle) Submit(ctx context.Context, draft OrderDraft) (*SubmitResult, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	if _, err := l.revalidateLines(ctx, draft.Lines); err != nil {
		return nil, err
	}

	switch draft.PaymentMethod {
	case PaymentMethodCOD:
		if !l.session.State.TryAcquireInFlight(submitGuardKey) {
			return nil, ErrRequestInFlight
		}
		defer l.session.State.ReleaseInFlight(submitGuardKey)

		order, err := l.api.CreateOrder(ctx, draft, PaymentMethodCOD, "", "")
		if err != nil {
			return nil, err
		}
		l.session.ClearCart()
		return &SubmitResult{Order: order}, nil

	case PaymentMethodWallet:
		return &SubmitResult{Payment: l.newPaymentFlow(draft)}, nil

	default:
		return nil, &ValidationError{Field: "payment_method", Message: "unsupported payment method"}
	}
}

// Edit replaces a pending order's details, re-validating exactly as
// Submit does. The backend refuses non-pending orders; that refusal
// surfaces as ErrNotEditable.
func (l *Lifecycle) Edit(ctx context.Context, orderID int, draft OrderDraft) (*Order, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	if _, err := l.revalidateLines(ctx, draft.Lines); err != nil {
		return nil, err
	}

	order, err := l.api.UpdateOrder(ctx, orderID, draft)
	if err != nil {
		return nil, mapStateDenial(err, ErrNotEditable)
	}
	return order, nil
}

// Cancel cancels the buyer's pending order; the backend restocks every
// line. Non-pending orders surface ErrNotCancelable.
func (l *Lifecycle) Cancel(ctx context.Context, orderID int) error {
	if err := l.api.CancelOrder(ctx, orderID, l.session.UserID); err != nil {
		return mapStateDenial(err, ErrNotCancelable)
	}
	return nil
}

// mapStateDenial converts a backend state-guard refusal into the
// matching sentinel; other errors pass through untouched.
func mapStateDenial(err error, sentinel error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
		return fmt.Errorf("%w: %s", sentinel, apiErr.Message)
	}
	return err
}

// revalidateLines fetches a fresh catalog snapshot and re-runs the
// stock check on every line.
func (l *Lifecycle) revalidateLines(ctx context.Context, lines []CartLine) (*Catalog, error) {
	items, err := l.api.FetchMenu(ctx)
	if err != nil {
		return nil, err
	}

	catalog := NewCatalog(items)
	for _, line := range lines {
		if err := catalog.ValidateLine(line.ItemID, line.Quantity); err != nil {
			return nil, err
		}
	}
	return catalog, nil
}

// Total computes the order total for a set of lines: line sum plus the
// flat delivery fee.
func (l *Lifecycle) Total(lines []CartLine) float64 {
	var sum float64
	for _, line := range lines {
		sum += line.UnitPrice * float64(line.Quantity)
	}
	return sum + l.DeliveryFee
}

func validateDraft(draft OrderDraft) error {
	if len(strings.Fields(draft.FullName)) < 3 {
		return &ValidationError{Field: "fullname", Message: "must include first, middle, and last name"}
	}
	if !elevenDigits(draft.Contact) {
		return &ValidationError{Field: "contact", Message: "must be exactly 11 digits"}
	}
	if len(draft.Lines) == 0 {
		return ErrEmptyCart
	}
	for _, line := range draft.Lines {
		if line.Quantity < 1 {
			return &ValidationError{Field: "quantity", Message: "must be at least 1"}
		}
	}
	return nil
}

func elevenDigits(s string) bool {
	if len(s) != 11 {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// SequentialLabels derives the buyer- and operator-facing queue
// numbers from a full order list snapshot: active orders (neither
// Delivered nor Cancelled) are sorted oldest first, ties broken by id,
// and numbered 1..N. Pure and deterministic; it must be re-derived
// from the full set on every display refresh because any completion or
// cancellation shifts every later order's number.
func SequentialLabels(orders []Order) map[int]int {
	active := make([]Order, 0, len(orders))
	for _, o := range orders {
		if !o.Terminal() {
			active = append(active, o)
		}
	}

	sort.Slice(active, func(i, j int) bool {
		if active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].ID < active[j].ID
		}
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})

	labels := make(map[int]int, len(active))
	for i, o := range active {
		labels[o.ID] = i + 1
	}
	return labels
}

// DisplayLabel renders an order's human-facing number: its queue label
// while active, its raw persisted id once terminal.
func DisplayLabel(order Order, labels map[int]int) string {
	if label, ok := labels[order.ID]; ok {
		return fmt.Sprintf("#%d", label)
	}
	return fmt.Sprintf("#%d", order.ID)
}
