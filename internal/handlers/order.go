package handlers

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kusinaph/kusina-server/internal/config"
	"github.com/kusinaph/kusina-server/internal/middleware"
	"github.com/kusinaph/kusina-server/internal/models"
	"github.com/kusinaph/kusina-server/internal/utils"
)

// OrderHandler manages order endpoints.
type OrderHandler struct {
	db  *gorm.DB
	cfg *config.Config
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(db *gorm.DB, cfg *config.Config) *OrderHandler {
	return &OrderHandler{db: db, cfg: cfg}
}

type orderLineRequest struct {
	ItemID   int `json:"item_id"`
	Quantity int `json:"quantity"`
}

type createOrderRequest struct {
	FullName         string             `json:"fullname"`
	Contact          string             `json:"contact"`
	Address          string             `json:"address"`
	Lines            []orderLineRequest `json:"lines"`
	PaymentMethod    string             `json:"payment_method"`
	PaymentReference string             `json:"payment_reference"`
	PaymentProof     string             `json:"payment_proof"`
}

// CreateOrder places an order for the authenticated buyer. Stock is
// decremented inside the same transaction; cash-on-delivery orders are
// marked paid immediately, wallet-transfer orders arrive with proof
// attached and stay pending until the operator verifies them.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := validateOrderFields(req.FullName, req.Contact, req.Lines); err != nil {
		return err
	}

	if req.PaymentMethod != models.PaymentMethodCOD && req.PaymentMethod != models.PaymentMethodWallet {
		return fiber.NewError(fiber.StatusBadRequest, "unsupported payment method")
	}
	if req.PaymentMethod == models.PaymentMethodWallet && req.PaymentProof == "" {
		return fiber.NewError(fiber.StatusBadRequest, "payment proof is required for wallet transfers")
	}

	order := models.Order{
		UserID:           userID,
		FullName:         req.FullName,
		Contact:          req.Contact,
		Address:          req.Address,
		Status:           models.StatusPending,
		PaymentMethod:    req.PaymentMethod,
		PaymentReference: req.PaymentReference,
		PaymentProof:     req.PaymentProof,
	}

	if req.PaymentMethod == models.PaymentMethodCOD {
		order.PaymentStatus = models.PaymentPaid
	} else {
		order.PaymentStatus = models.PaymentPending
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		lines, subtotal, err := deductStock(tx, req.Lines)
		if err != nil {
			return err
		}
		order.Lines = lines
		order.Total = subtotal + h.cfg.DeliveryFee
		return tx.Create(&order).Error
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": order})
}

// ListOrders returns the shared order list. Both buyer and operator
// read the same snapshot; filtering by buyer is a client-side concern.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)

	var orders []models.Order
	if err := h.db.Order("id desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": orders})
}

// GetOrder returns a single order.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var order models.Order
	if err := h.db.First(&order, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

type updateOrderRequest struct {
	FullName string             `json:"fullname"`
	Contact  string             `json:"contact"`
	Address  string             `json:"address"`
	Lines    []orderLineRequest `json:"lines"`
}

// UpdateOrder edits a pending order owned by the caller. Old lines are
// restocked and new lines deducted inside one transaction so the
// catalog never double-counts.
func (h *OrderHandler) UpdateOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req updateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := validateOrderFields(req.FullName, req.Contact, req.Lines); err != nil {
		return err
	}

	var order models.Order
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&order, id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fiber.NewError(fiber.StatusNotFound, "order not found")
			}
			return err
		}

		if order.UserID != userID && middleware.GetCurrentUserRole(c) != models.RoleOperator {
			return fiber.NewError(fiber.StatusForbidden, "you can only edit your own orders")
		}
		if order.Status != models.StatusPending {
			return fiber.NewError(fiber.StatusConflict,
				fmt.Sprintf("only pending orders can be edited, current status: %s", order.Status))
		}

		if err := restockLines(tx, order.Lines); err != nil {
			return err
		}

		lines, subtotal, err := deductStock(tx, req.Lines)
		if err != nil {
			return err
		}

		order.FullName = req.FullName
		order.Contact = req.Contact
		order.Address = req.Address
		order.Lines = lines
		order.Total = subtotal + h.cfg.DeliveryFee
		return tx.Save(&order).Error
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// CancelOrder cancels a pending order and restocks its lines. Buyers
// may cancel their own orders; the operator may cancel any.
func (h *OrderHandler) CancelOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&order, id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fiber.NewError(fiber.StatusNotFound, "order not found")
			}
			return err
		}

		if order.UserID != userID && middleware.GetCurrentUserRole(c) != models.RoleOperator {
			return fiber.NewError(fiber.StatusForbidden, "you can only cancel your own orders")
		}
		if order.Status != models.StatusPending {
			return fiber.NewError(fiber.StatusConflict,
				fmt.Sprintf("only pending orders can be cancelled, current status: %s", order.Status))
		}

		if err := restockLines(tx, order.Lines); err != nil {
			return err
		}

		return tx.Model(&order).Update("status", models.StatusCancelled).Error
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus lets the operator drive fulfillment forward.
func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req updateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	switch req.Status {
	case models.StatusPreparing, models.StatusOutForDelivery, models.StatusDelivered:
	default:
		return fiber.NewError(fiber.StatusBadRequest, "invalid status")
	}

	var order models.Order
	if err := h.db.First(&order, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	if order.Terminal() {
		return fiber.NewError(fiber.StatusConflict,
			fmt.Sprintf("order is already %s", order.Status))
	}

	if err := h.db.Model(&order).Update("status", req.Status).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

type paymentProofRequest struct {
	PaymentProof string `json:"payment_proof"`
}

// UpdatePaymentProof attaches a payment proof to an existing order.
func (h *OrderHandler) UpdatePaymentProof(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req paymentProofRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.PaymentProof == "" {
		return fiber.NewError(fiber.StatusBadRequest, "payment proof is required")
	}

	result := h.db.Model(&models.Order{}).
		Where("id = ?", id).
		Update("payment_proof", req.PaymentProof)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "order not found")
	}

	return c.JSON(fiber.Map{"success": true})
}

type paymentStatusRequest struct {
	PaymentStatus string `json:"payment_status"`
}

// UpdatePaymentStatus records the operator's manual verification verdict.
func (h *OrderHandler) UpdatePaymentStatus(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req paymentStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	switch req.PaymentStatus {
	case models.PaymentPaid, models.PaymentPending, models.PaymentFailed:
	default:
		return fiber.NewError(fiber.StatusBadRequest, "payment status must be paid, pending, or failed")
	}

	result := h.db.Model(&models.Order{}).
		Where("id = ?", id).
		Update("payment_status", req.PaymentStatus)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "order not found")
	}

	return c.JSON(fiber.Map{"success": true})
}

// validateOrderFields applies the shared submit/edit validation rules:
// full name carries at least three space-separated tokens, contact is
// exactly 11 digits, and the cart is not empty.
func validateOrderFields(fullName, contact string, lines []orderLineRequest) error {
	if len(strings.Fields(fullName)) < 3 {
		return fiber.NewError(fiber.StatusBadRequest, "full name must include first, middle, and last name")
	}
	if !isElevenDigits(contact) {
		return fiber.NewError(fiber.StatusBadRequest, "contact number must be exactly 11 digits")
	}
	if len(lines) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "order must contain at least one item")
	}
	for _, line := range lines {
		if line.Quantity < 1 {
			return fiber.NewError(fiber.StatusBadRequest, "line quantity must be at least 1")
		}
	}
	return nil
}

func isElevenDigits(s string) bool {
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

// deductStock validates every requested line against current stock and
// decrements it, copying name and unit price into the order line. Items
// that hit zero are marked unavailable.
func deductStock(tx *gorm.DB, reqs []orderLineRequest) ([]models.OrderLine, float64, error) {
	lines := make([]models.OrderLine, 0, len(reqs))
	var subtotal float64

	for _, req := range reqs {
		var item models.MenuItem
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&item, req.ItemID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, 0, fiber.NewError(fiber.StatusConflict,
					fmt.Sprintf("item %d is no longer on the menu", req.ItemID))
			}
			return nil, 0, err
		}

		if !item.IsAvailable || item.Quantity == 0 {
			return nil, 0, fiber.NewError(fiber.StatusConflict,
				fmt.Sprintf("%s is not available", item.Name))
		}
		if req.Quantity > item.Quantity {
			return nil, 0, fiber.NewError(fiber.StatusConflict,
				fmt.Sprintf("only %d of %s available", item.Quantity, item.Name))
		}

		updates := map[string]any{"quantity": item.Quantity - req.Quantity}
		if item.Quantity-req.Quantity == 0 {
			updates["is_available"] = false
		}
		if err := tx.Model(&item).Updates(updates).Error; err != nil {
			return nil, 0, err
		}

		lines = append(lines, models.OrderLine{
			ItemID:    item.ID,
			Name:      item.Name,
			UnitPrice: item.Price,
			Quantity:  req.Quantity,
		})
		subtotal += item.Price * float64(req.Quantity)
	}

	return lines, subtotal, nil
}

// restockLines returns stock held by the given order lines to the
// catalog, re-enabling items that had sold out.
func restockLines(tx *gorm.DB, lines []models.OrderLine) error {
	for _, line := range lines {
		var item models.MenuItem
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&item, line.ItemID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				// Item deleted from the menu since ordering; nothing to restock.
				continue
			}
			return err
		}

		updates := map[string]any{"quantity": item.Quantity + line.Quantity}
		if item.Quantity == 0 && line.Quantity > 0 {
			updates["is_available"] = true
		}
		if err := tx.Model(&item).Updates(updates).Error; err != nil {
			return err
		}
	}
	return nil
}
