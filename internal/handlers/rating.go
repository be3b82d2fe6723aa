package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/kusinaph/kusina-server/internal/middleware"
	"github.com/kusinaph/kusina-server/internal/models"
)

// RatingHandler manages service rating endpoints.
type RatingHandler struct {
	db *gorm.DB
}

// NewRatingHandler constructs RatingHandler.
func NewRatingHandler(db *gorm.DB) *RatingHandler {
	return &RatingHandler{db: db}
}

type ratingRequest struct {
	OrderID int    `json:"order_id"`
	Stars   int    `json:"stars"`
	Comment string `json:"comment"`
}

// SubmitRating records a rating for a delivered order, one per order
// per buyer.
func (h *RatingHandler) SubmitRating(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req ratingRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Stars < 1 || req.Stars > 5 {
		return fiber.NewError(fiber.StatusBadRequest, "stars must be between 1 and 5")
	}

	var order models.Order
	if err := h.db.First(&order, req.OrderID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	if order.UserID != userID {
		return fiber.NewError(fiber.StatusForbidden, "you can only rate your own orders")
	}
	if order.Status != models.StatusDelivered {
		return fiber.NewError(fiber.StatusBadRequest, "only delivered orders can be rated")
	}

	var existing models.Rating
	if err := h.db.Where("order_id = ? AND user_id = ?", req.OrderID, userID).
		First(&existing).Error; err == nil {
		return fiber.NewError(fiber.StatusConflict, "order already rated")
	} else if err != gorm.ErrRecordNotFound {
		return err
	}

	rating := models.Rating{
		OrderID: req.OrderID,
		UserID:  userID,
		Stars:   req.Stars,
		Comment: req.Comment,
	}

	if err := h.db.Create(&rating).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": rating})
}

// ListRatings returns all ratings, newest first.
func (h *RatingHandler) ListRatings(c *fiber.Ctx) error {
	var ratings []models.Rating
	if err := h.db.Order("created_at desc").Find(&ratings).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": ratings})
}
