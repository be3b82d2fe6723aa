package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Payment flow stages.
const (
	StageAwaitingProof        = "awaiting_proof"
	StageAwaitingVerification = "awaiting_manual_verification"
)

// PaymentInstruction tells the buyer how to complete a manual wallet
// transfer. Built locally; no order exists yet when it is shown.
type PaymentInstruction struct {
	Recipient string  `json:"recipient"`
	Amount    float64 `json:"amount"`
	Reference string  `json:"reference"`
	QRPayload string  `json:"qr_payload"`
}

// PaymentFlow is the deferred-creation path for wallet transfers: the
// order is not created until a proof attachment exists. A flow
// abandoned before Submit leaves no backend state behind.
type PaymentFlow struct {
	lc *Lifecycle

	mu    sync.Mutex
	draft OrderDraft
	instr PaymentInstruction
	proof string
	order *Order
}

func (l *Lifecycle) newPaymentFlow(draft OrderDraft) *PaymentFlow {
	reference := newPaymentReference()
	amount := l.Total(draft.Lines)

	return &PaymentFlow{
		lc:    l,
		draft: draft,
		instr: PaymentInstruction{
			Recipient: l.Recipient,
			Amount:    amount,
			Reference: reference,
			QRPayload: fmt.Sprintf("gcash://pay?recipient=%s&amount=%.2f&reference=%s",
				url.QueryEscape(l.Recipient), amount, url.QueryEscape(reference)),
		},
	}
}

// newPaymentReference builds the human-readable transfer reference
// ORDER_{tempID}_{token}. The temp id is a placeholder; the real order
// id does not exist until submission succeeds.
func newPaymentReference() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("ORDER_%s_%s", id[:8], id[24:])
}

// Instruction returns the transfer details shown to the buyer.
func (p *PaymentFlow) Instruction() PaymentInstruction {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.instr
}

// Stage reports where the flow currently stands.
func (p *PaymentFlow) Stage() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.order != nil {
		return StageAwaitingVerification
	}
	return StageAwaitingProof
}

// Order returns the persisted order once Submit has succeeded.
func (p *PaymentFlow) Order() *Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.order
}

// AttachProof records the buyer's transfer screenshot. Before the
// order exists the proof is held locally and embedded at submission;
// once the order exists it is uploaded to the order directly. Both
// paths are reachable from this one entry point.
func (p *PaymentFlow) AttachProof(ctx context.Context, proof string) error {
	if proof == "" {
		return &ValidationError{Field: "payment_proof", Message: "proof attachment is required"}
	}

	p.mu.Lock()
	order := p.order
	p.proof = proof
	p.mu.Unlock()

	if order != nil {
		return p.lc.api.AttachOrderProof(ctx, order.ID, proof)
	}
	return nil
}

// Submit creates the order with the captured proof embedded and
// payment pending manual verification. It refuses to run without a
// proof, re-validates every line against a fresh catalog snapshot
// since stock may have moved while the transfer screen was up, and
// drops a duplicate call while the first request is outstanding via
// the in-flight guard keyed by the reference. On failure no order
// exists and the proof is kept so the buyer can retry.
func (p *PaymentFlow) Submit(ctx context.Context) (*Order, error) {
	p.mu.Lock()
	if p.order != nil {
		order := p.order
		p.mu.Unlock()
		return order, nil
	}
	if p.proof == "" {
		p.mu.Unlock()
		return nil, ErrProofRequired
	}
	draft, proof, reference := p.draft, p.proof, p.instr.Reference
	p.mu.Unlock()

	if _, err := p.lc.revalidateLines(ctx, draft.Lines); err != nil {
		return nil, err
	}

	guardKey := "submit:" + reference
	if !p.lc.session.State.TryAcquireInFlight(guardKey) {
		return nil, ErrRequestInFlight
	}
	defer p.lc.session.State.ReleaseInFlight(guardKey)

	order, err := p.lc.api.CreateOrder(ctx, draft, PaymentMethodWallet, reference, proof)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderCreationFailed, err)
	}

	p.mu.Lock()
	p.order = order
	p.mu.Unlock()

	p.lc.session.ClearCart()
	return order, nil
}

// Abandon discards the flow before submission. Nothing was written to
// the backend, so there is nothing to undo.
func (p *PaymentFlow) Abandon() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.order == nil {
		p.proof = ""
	}
}
