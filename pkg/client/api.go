package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// requestTimeout caps every backend call.
const requestTimeout = 30 * time.Second

// Client is a typed HTTP client for the ordering backend. All calls
// are context-bound; exceeding the request timeout surfaces as
// ErrOperationTimedOut and upstream 502/503 responses as
// ErrTemporarilyUnavailable.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// New constructs a Client for the given backend base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// SetToken installs the bearer token used on authenticated calls.
func (c *Client) SetToken(token string) {
	c.token = token
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s %s", ErrOperationTimedOut, method, path)
		}
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("%w: %s %s", ErrOperationTimedOut, method, path)
		}
		return fmt.Errorf("%w: %v", ErrTemporarilyUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 300 {
		switch resp.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable:
			return fmt.Errorf("%w: status %d", ErrTemporarilyUnavailable, resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decoding response for %s %s: %w", method, path, err)
	}
	if env.Data == nil {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

// Credentials identify the signed-in account.
type Credentials struct {
	Token string
	User  User
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates and installs the returned token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*Credentials, error) {
	var data struct {
		Token string      `json:"token"`
		User  User `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", loginPayload{Email: email, Password: password}, &data); err != nil {
		return nil, err
	}
	c.token = data.Token
	return &Credentials{Token: data.Token, User: data.User}, nil
}

type registerPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a buyer account. The account cannot log in until
// the operator approves it.
func (c *Client) Register(ctx context.Context, name, email, password string) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", registerPayload{Name: name, Email: email, Password: password}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// FetchMenu returns the current catalog.
func (c *Client) FetchMenu(ctx context.Context) ([]MenuItem, error) {
	var items []MenuItem
	if err := c.do(ctx, http.MethodGet, "/api/menu", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

type orderLinePayload struct {
	ItemID   int `json:"item_id"`
	Quantity int `json:"quantity"`
}

type orderPayload struct {
	FullName         string             `json:"fullname"`
	Contact          string             `json:"contact"`
	Address          string             `json:"address"`
	Lines            []orderLinePayload `json:"lines"`
	PaymentMethod    string             `json:"payment_method,omitempty"`
	PaymentReference string             `json:"payment_reference,omitempty"`
	PaymentProof     string             `json:"payment_proof,omitempty"`
}

func linePayloads(lines []OrderLine) []orderLinePayload {
	payloads := make([]orderLinePayload, 0, len(lines))
	for _, l := range lines {
		payloads = append(payloads, orderLinePayload{ItemID: l.ItemID, Quantity: l.Quantity})
	}
	return payloads
}

// CreateOrder persists a new order.
func (c *Client) CreateOrder(ctx context.Context, draft OrderDraft, method, reference, proof string) (*Order, error) {
	payload := orderPayload{
		FullName:         draft.FullName,
		Contact:          draft.Contact,
		Address:          draft.Address,
		Lines:            linePayloads(draft.Lines),
		PaymentMethod:    method,
		PaymentReference: reference,
		PaymentProof:     proof,
	}

	var order Order
	if err := c.do(ctx, http.MethodPost, "/api/orders", payload, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders returns the shared order list snapshot.
func (c *Client) ListOrders(ctx context.Context) ([]Order, error) {
	var orders []Order
	if err := c.do(ctx, http.MethodGet, "/api/orders", nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateOrder replaces a pending order's details and lines.
func (c *Client) UpdateOrder(ctx context.Context, orderID int, draft OrderDraft) (*Order, error) {
	payload := orderPayload{
		FullName: draft.FullName,
		Contact:  draft.Contact,
		Address:  draft.Address,
		Lines:    linePayloads(draft.Lines),
	}

	var order Order
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/orders/%d", orderID), payload, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

type cancelPayload struct {
	UserID uuid.UUID `json:"user_id"`
}

// CancelOrder cancels a pending order, restocking its lines backend-side.
func (c *Client) CancelOrder(ctx context.Context, orderID int, buyerID uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/orders/%d", orderID), cancelPayload{UserID: buyerID}, nil)
}

type proofPayload struct {
	PaymentProof string `json:"payment_proof"`
}

// AttachOrderProof uploads a payment proof for an existing order.
func (c *Client) AttachOrderProof(ctx context.Context, orderID int, proof string) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/api/orders/%d/payment-proof", orderID), proofPayload{PaymentProof: proof}, nil)
}

// ListMessages returns an order's conversation, ascending by creation time.
func (c *Client) ListMessages(ctx context.Context, orderID int) ([]ChatMessage, error) {
	var messages []ChatMessage
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/orders/%d/messages", orderID), nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

type messagePayload struct {
	Body       string `json:"body,omitempty"`
	Image      string `json:"image,omitempty"`
	SenderRole string `json:"sender_role"`
	SenderName string `json:"sender_name"`
}

// SendMessage appends a message to an order's conversation.
func (c *Client) SendMessage(ctx context.Context, orderID int, body, image, senderRole, senderName string) (*ChatMessage, error) {
	payload := messagePayload{Body: body, Image: image, SenderRole: senderRole, SenderName: senderName}

	var message ChatMessage
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/orders/%d/messages", orderID), payload, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

// MarkMessagesRead flags the other party's messages as read; the
// backend derives the reader from the token.
func (c *Client) MarkMessagesRead(ctx context.Context, orderID int) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/api/orders/%d/messages/read", orderID), nil, nil)
}
