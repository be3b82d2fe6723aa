package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/kusinaph/kusina-server/internal/config"
	"github.com/kusinaph/kusina-server/internal/handlers"
	"github.com/kusinaph/kusina-server/internal/middleware"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config) {
	authHandler := handlers.NewAuthHandler(db, cfg)
	menuHandler := handlers.NewMenuHandler(db)
	orderHandler := handlers.NewOrderHandler(db, cfg)
	chatHandler := handlers.NewChatHandler(db)
	ratingHandler := handlers.NewRatingHandler(db)

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)

	// Menu is readable without a session; mutations are operator-only.
	api.Get("/menu", menuHandler.ListItems)

	protected := api.Group("", middleware.AuthMiddleware(cfg))

	operator := protected.Group("", middleware.RequireOperator())
	operator.Post("/menu", menuHandler.CreateItem)
	operator.Put("/menu/:id", menuHandler.UpdateItem)
	operator.Delete("/menu/:id", menuHandler.DeleteItem)
	operator.Get("/users", authHandler.ListUsers)
	operator.Put("/users/:id/approve", authHandler.ApproveUser)
	operator.Put("/orders/:id/status", orderHandler.UpdateStatus)
	operator.Put("/orders/:id/payment", orderHandler.UpdatePaymentStatus)

	protected.Post("/orders", orderHandler.CreateOrder)
	protected.Get("/orders", orderHandler.ListOrders)
	protected.Get("/orders/:id", orderHandler.GetOrder)
	protected.Put("/orders/:id", orderHandler.UpdateOrder)
	protected.Delete("/orders/:id", orderHandler.CancelOrder)
	protected.Put("/orders/:id/payment-proof", orderHandler.UpdatePaymentProof)

	protected.Get("/orders/:id/messages", chatHandler.ListMessages)
	protected.Post("/orders/:id/messages", chatHandler.SendMessage)
	protected.Put("/orders/:id/messages/read", chatHandler.MarkRead)

	protected.Post("/ratings", ratingHandler.SubmitRating)
	protected.Get("/ratings", ratingHandler.ListRatings)
}
