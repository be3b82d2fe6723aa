package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/kusinaph/kusina-server/internal/middleware"
	"github.com/kusinaph/kusina-server/internal/models"
)

// Base64 image payloads are capped around 5MB of binary data.
const maxImagePayload = 7 * 1024 * 1024

// ChatHandler manages per-order conversation endpoints.
type ChatHandler struct {
	db *gorm.DB
}

// NewChatHandler constructs ChatHandler.
func NewChatHandler(db *gorm.DB) *ChatHandler {
	return &ChatHandler{db: db}
}

// ListMessages returns an order's messages in ascending creation order.
// A missing order yields an empty list rather than 404 so viewers of a
// deleted order see a quiet channel instead of an error.
func (h *ChatHandler) ListMessages(c *fiber.Ctx) error {
	orderID, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid order id")
	}

	var order models.Order
	if err := h.db.Select("id").First(&order, orderID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.JSON(fiber.Map{"success": true, "data": []models.ChatMessage{}})
		}
		return err
	}

	// Newest 50, then flipped back to chronological order, so a long
	// conversation never hides its most recent messages.
	var messages []models.ChatMessage
	if err := h.db.Where("order_id = ?", orderID).
		Order("created_at desc, id desc").
		Limit(50).
		Find(&messages).Error; err != nil {
		return err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return c.JSON(fiber.Map{"success": true, "data": messages})
}

type sendMessageRequest struct {
	Body       string `json:"body"`
	Image      string `json:"image"`
	SenderRole string `json:"sender_role"`
	SenderName string `json:"sender_name"`
}

// SendMessage appends a message to an order's conversation. The sender
// role is clamped to the authenticated account's role so a buyer can
// never speak as the operator. An operator reply implicitly marks the
// buyer's earlier messages as read.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	orderID, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid order id")
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	req.Body = strings.TrimSpace(req.Body)
	if req.Body == "" && req.Image == "" {
		return fiber.NewError(fiber.StatusBadRequest, "message body or image is required")
	}

	if req.Image != "" {
		if !strings.HasPrefix(req.Image, "data:image/") {
			return fiber.NewError(fiber.StatusBadRequest, "invalid image format")
		}
		if len(req.Image) > maxImagePayload {
			return fiber.NewError(fiber.StatusBadRequest, "image exceeds the 5MB limit")
		}
	}

	var order models.Order
	if err := h.db.Select("id").First(&order, orderID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	role := middleware.GetCurrentUserRole(c)
	if req.SenderRole != models.RoleOperator || role != models.RoleOperator {
		req.SenderRole = role
	}
	if req.SenderRole == "" {
		req.SenderRole = models.RoleBuyer
	}

	if req.SenderName == "" {
		var user models.User
		if err := h.db.Select("name").First(&user, "id = ?", userID).Error; err == nil {
			req.SenderName = user.Name
		}
	}

	message := models.ChatMessage{
		OrderID:    orderID,
		UserID:     userID,
		SenderRole: req.SenderRole,
		SenderName: req.SenderName,
		Body:       req.Body,
		Image:      req.Image,
	}

	if err := h.db.Create(&message).Error; err != nil {
		return err
	}

	if req.SenderRole == models.RoleOperator {
		if err := h.markRead(orderID, models.RoleBuyer); err != nil {
			return err
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": message})
}

// MarkRead flags the other party's unread messages as read. The reader
// is the authenticated account, never a role claimed in the request.
func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	orderID, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid order id")
	}

	var order models.Order
	if err := h.db.Select("id").First(&order, orderID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	// Reading as operator marks buyer messages; reading as buyer marks
	// operator messages.
	senderRole := models.RoleOperator
	if middleware.GetCurrentUserRole(c) == models.RoleOperator {
		senderRole = models.RoleBuyer
	}

	if err := h.markRead(orderID, senderRole); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true})
}

func (h *ChatHandler) markRead(orderID int, senderRole string) error {
	now := time.Now()
	return h.db.Model(&models.ChatMessage{}).
		Where("order_id = ? AND sender_role = ? AND is_read = ?", orderID, senderRole, false).
		Updates(map[string]any{"is_read": true, "read_at": &now}).Error
}
